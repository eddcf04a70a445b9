// Package stats computes performance figures from raw trade records.
//
// Everything here is recomputed on every call; nothing is cached.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"tradejournal/internal/models"
)

// MonthSummary holds the derived figures for one list of trades.
type MonthSummary struct {
	TotalTrades  int       `json:"totalTrades" yaml:"totalTrades"`
	Wins         int       `json:"wins" yaml:"wins"`
	Losses       int       `json:"losses" yaml:"losses"`
	BreakEven    int       `json:"breakEven" yaml:"breakEven"`
	WinRate      float64   `json:"winRate" yaml:"winRate"`
	NetPnL       float64   `json:"netPnl" yaml:"netPnl"`
	GrossGain    float64   `json:"grossGain" yaml:"grossGain"`
	GrossLoss    float64   `json:"grossLoss" yaml:"grossLoss"`
	ProfitFactor float64   `json:"profitFactor" yaml:"profitFactor"`
	Equity       []float64 `json:"equity" yaml:"equity"`
}

// WinRate returns wins / total * 100, or 0 for no trades.
func WinRate(trades []models.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := count(trades, models.Win)
	return float64(wins) / float64(len(trades)) * 100
}

// NetPnL sums pnlPercent over all trades.
func NetPnL(trades []models.Trade) float64 {
	return floats.Sum(pnlSeries(trades))
}

// GrossGain sums pnlPercent over winning trades.
func GrossGain(trades []models.Trade) float64 {
	return floats.Sum(pnlSeriesOf(trades, models.Win))
}

// GrossLoss returns the absolute sum of pnlPercent over losing trades.
func GrossLoss(trades []models.Trade) float64 {
	return math.Abs(floats.Sum(pnlSeriesOf(trades, models.Loss)))
}

// EquityCurve returns prefix sums of pnlPercent in trade order with a
// leading 0 point for the period start. No trades yields no points.
func EquityCurve(trades []models.Trade) []float64 {
	if len(trades) == 0 {
		return []float64{}
	}
	series := pnlSeries(trades)
	curve := make([]float64, len(series)+1)
	floats.CumSum(curve[1:], series)
	return curve
}

// ProfitFactor returns gross gain / gross loss, 0 when there were no losses.
func ProfitFactor(trades []models.Trade) float64 {
	loss := GrossLoss(trades)
	if loss == 0 {
		return 0
	}
	return GrossGain(trades) / loss
}

// SummarizeTrades computes every figure for a trade list.
func SummarizeTrades(trades []models.Trade) MonthSummary {
	return MonthSummary{
		TotalTrades:  len(trades),
		Wins:         count(trades, models.Win),
		Losses:       count(trades, models.Loss),
		BreakEven:    count(trades, models.BreakEven),
		WinRate:      WinRate(trades),
		NetPnL:       NetPnL(trades),
		GrossGain:    GrossGain(trades),
		GrossLoss:    GrossLoss(trades),
		ProfitFactor: ProfitFactor(trades),
		Equity:       EquityCurve(trades),
	}
}

// SummarizeMonth computes the figures for a month.
func SummarizeMonth(month models.MonthData) MonthSummary {
	return SummarizeTrades(month.Trades)
}

// StrategySummary aggregates a strategy across its months.
type StrategySummary struct {
	StrategyID string                  `json:"strategyId" yaml:"strategyId"`
	Name       string                  `json:"name" yaml:"name"`
	Months     int                     `json:"months" yaml:"months"`
	Overall    MonthSummary            `json:"overall" yaml:"overall"`
	ByMonth    map[string]MonthSummary `json:"byMonth" yaml:"byMonth"`
}

// SummarizeStrategy aggregates all trades of a strategy in month order.
func SummarizeStrategy(strategy models.Strategy) StrategySummary {
	var all []models.Trade
	byMonth := make(map[string]MonthSummary, len(strategy.Months))
	for _, m := range strategy.Months {
		all = append(all, m.Trades...)
		byMonth[m.ID] = SummarizeMonth(m)
	}
	return StrategySummary{
		StrategyID: strategy.ID,
		Name:       strategy.Name,
		Months:     len(strategy.Months),
		Overall:    SummarizeTrades(all),
		ByMonth:    byMonth,
	}
}

// AllTrades returns every trade in the state, strategy by strategy.
func AllTrades(state models.AppState) []models.Trade {
	var out []models.Trade
	for _, s := range state.Strategies {
		for _, m := range s.Months {
			out = append(out, m.Trades...)
		}
	}
	return out
}

func count(trades []models.Trade, result models.Result) int {
	n := 0
	for _, t := range trades {
		if t.Result == result {
			n++
		}
	}
	return n
}

func pnlSeries(trades []models.Trade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.PnLPercent
	}
	return out
}

func pnlSeriesOf(trades []models.Trade, result models.Result) []float64 {
	var out []float64
	for _, t := range trades {
		if t.Result == result {
			out = append(out, t.PnLPercent)
		}
	}
	return out
}

package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"tradejournal/internal/models"
	"tradejournal/internal/stats"
)

const systemPrompt = `You are a professional trading mentor reviewing a trader's backtest journal. ` +
	`Be direct and data-driven. Base every claim on the trades provided.`

// tradeRow is the shape a trade takes inside the prompt.
type tradeRow struct {
	Day       string  `json:"Day"`
	Pair      string  `json:"Pair"`
	Direction string  `json:"Direction"`
	RR        float64 `json:"RR"`
	Result    string  `json:"Result"`
	Pips      float64 `json:"Pips"`
	PnL       float64 `json:"PnL %"`
	Max       float64 `json:"Max %"`
	Notes     string  `json:"Notes,omitempty"`
}

// BuildPrompt renders the review request for one month.
func BuildPrompt(strategy models.Strategy, month models.MonthData) (string, error) {
	rows := make([]tradeRow, 0, len(month.Trades))
	for _, t := range month.Trades {
		rows = append(rows, tradeRow{
			Day:       t.Date,
			Pair:      t.Pair,
			Direction: string(t.Direction),
			RR:        t.RR,
			Result:    string(t.Result),
			Pips:      t.Pips,
			PnL:       t.PnLPercent,
			Max:       t.MaxExcursionPercent,
			Notes:     t.Notes,
		})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding trades: %w", err)
	}

	summary := stats.SummarizeMonth(month)

	var b strings.Builder
	b.WriteString("I want you to act as a professional trading mentor. Analyze the following backtest results for a trading strategy.\n")
	b.WriteString("Provide a detailed, data-driven review with actionable advice.\n\n")

	b.WriteString("### Context\n")
	fmt.Fprintf(&b, "Strategy Name: %s\n", strategy.Name)
	fmt.Fprintf(&b, "Period: %s\n", month.Name)
	if notes := strings.TrimSpace(strategy.Notes); notes != "" {
		fmt.Fprintf(&b, "Strategy Notes: %s\n", notes)
	}
	if notes := strings.TrimSpace(month.Notes); notes != "" {
		fmt.Fprintf(&b, "Month Notes: %s\n", notes)
	}
	fmt.Fprintf(&b, "Trades: %d, Win Rate: %.1f%%, Net PnL: %.2f%%, Profit Factor: %.2f\n\n",
		summary.TotalTrades, summary.WinRate, summary.NetPnL, summary.ProfitFactor)

	b.WriteString("### Trade Data (JSON)\n")
	b.Write(data)
	b.WriteString("\n\n")

	b.WriteString("### Analysis Requirements:\n")
	b.WriteString("1. **Performance Overview**: Assess the overall quality (Good/Average/Poor) and consistency.\n")
	b.WriteString("2. **Risk Assessment**: Analyze drawdowns, actual Risk:Reward ratio vs planned, and specific outliers.\n")
	b.WriteString("3. **Behavioral Analysis**: Does the strategy rely on a few lucky trades? Is the win rate sustainable?\n")
	b.WriteString("4. **Weaknesses**: Identify potential overfitting, time-of-day sensitivity, or pair-specific issues.\n")
	b.WriteString("5. **Actionable Recommendations**: Suggest specific improvements for entry/exit, risk management rules, or filters.\n\n")

	b.WriteString("### Output Format\n")
	b.WriteString("Provide a structured response with clear headings. Use bullet points for readability. ")
	b.WriteString(`Conclude with a "Confidence Score" (0-10) for this strategy based *only* on the provided data.`)
	b.WriteString("\n")

	return b.String(), nil
}

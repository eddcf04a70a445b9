package stats

import (
	"math"

	"tradejournal/internal/models"
)

// ConformSign returns v with the sign required by result:
// non-negative for Win, non-positive for Loss, zero for BE.
func ConformSign(result models.Result, v float64) float64 {
	switch result {
	case models.Win:
		return math.Abs(v)
	case models.Loss:
		if v == 0 {
			return 0
		}
		return -math.Abs(v)
	default:
		return 0
	}
}

// NormalizeTrade returns t with the sign invariant enforced.
// Max excursion only has meaning for wins and is zeroed otherwise.
func NormalizeTrade(t models.Trade) models.Trade {
	t.Pips = ConformSign(t.Result, t.Pips)
	t.PnLPercent = ConformSign(t.Result, t.PnLPercent)
	if t.Result != models.Win {
		t.MaxExcursionPercent = 0
	}
	return t
}

// SignsValid reports whether t satisfies the sign invariant.
func SignsValid(t models.Trade) bool {
	switch t.Result {
	case models.Win:
		return t.Pips >= 0 && t.PnLPercent >= 0
	case models.Loss:
		return t.Pips <= 0 && t.PnLPercent <= 0
	case models.BreakEven:
		return t.Pips == 0 && t.PnLPercent == 0 && t.MaxExcursionPercent == 0
	}
	return false
}

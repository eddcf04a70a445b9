package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPips formats a pip count with sign and one decimal.
func FormatPips(pips float64) string {
	sign := ""
	if pips > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f", sign, pips)
}

// FormatWinRate formats a win rate already expressed in percent.
func FormatWinRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}

// FormatRiskReward formats a risk-reward ratio.
func FormatRiskReward(rr float64) string {
	return fmt.Sprintf("1:%.2f", rr)
}

// FormatProfitFactor formats gross gain over gross loss. Zero means there
// were no losses to divide by.
func FormatProfitFactor(pf float64) string {
	if pf == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", pf)
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders a series as a single line of block characters scaled
// between its minimum and maximum.
func Sparkline(series []float64) string {
	if len(series) == 0 {
		return ""
	}
	lo, hi := series[0], series[0]
	for _, v := range series {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range series {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// FormatDateTime formats a datetime in local time.
func FormatDateTime(t time.Time) string {
	return t.Local().Format("02-Jan-2006 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if n := displayWidth(s); n < length {
		return s + strings.Repeat(" ", length-n)
	}
	return s
}

// marker returns "*" for the selected row of a list.
func marker(selected bool) string {
	if selected {
		return "*"
	}
	return " "
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tradejournal/internal/models"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance. Color follows fatih/color's
// terminal detection and the NO_COLOR convention.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !color.NoColor,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(o.paint(color.FgGreen), format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(o.paint(color.FgRed), format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(o.paint(color.FgYellow), format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(o.paint(color.FgCyan), format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(o.paint(color.Bold), format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(o.paint(color.Faint), format, args...)
}

func (o *Output) line(c *color.Color, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, c.Sprintf(format, args...))
}

// paint returns a color that honors the output's color setting regardless
// of the package-wide default.
func (o *Output) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return o.paint(color.FgGreen).Sprint(text)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return o.paint(color.FgRed).Sprint(text)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return o.paint(color.FgYellow).Sprint(text)
}

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string {
	return o.paint(color.FgCyan).Sprint(text)
}

// BoldText returns bold text.
func (o *Output) BoldText(text string) string {
	return o.paint(color.Bold).Sprint(text)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	return o.paint(color.Faint).Sprint(text)
}

// PnLColor returns the color attribute for a signed figure.
func PnLColor(pnl float64) color.Attribute {
	switch {
	case pnl > 0:
		return color.FgGreen
	case pnl < 0:
		return color.FgRed
	default:
		return color.FgWhite
	}
}

// FormatPnL formats a P&L percentage with color.
func (o *Output) FormatPnL(pnl float64) string {
	return o.paint(PnLColor(pnl)).Sprint(FormatPercent(pnl))
}

// FormatResult colors a trade outcome.
func (o *Output) FormatResult(r models.Result) string {
	switch r {
	case models.Win:
		return o.Green(string(r))
	case models.Loss:
		return o.Red(string(r))
	default:
		return o.Yellow(string(r))
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := displayWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i < len(widths) {
			padding := widths[i] - displayWidth(cell)
			if padding < 0 {
				padding = 0
			}
			padded := cell + strings.Repeat(" ", padding)
			if isHeader {
				padded = t.output.BoldText(padded)
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	t.output.Println(t.output.DimText(strings.Join(parts, "──")))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func displayWidth(s string) int {
	return len([]rune(stripANSI(s)))
}

// Box draws a box around content.
func (o *Output) Box(title string, content []string) {
	maxLen := displayWidth(title)
	for _, line := range content {
		if w := displayWidth(line); w > maxLen {
			maxLen = w
		}
	}

	width := maxLen + 4
	border := strings.Repeat("─", width-2)

	o.Println(o.DimText("┌" + border + "┐"))
	o.Printf("%s %s%s %s\n", o.DimText("│"), o.BoldText(title), strings.Repeat(" ", width-4-displayWidth(title)), o.DimText("│"))
	o.Println(o.DimText("├" + border + "┤"))
	for _, line := range content {
		padding := width - 4 - displayWidth(line)
		o.Printf("%s %s%s %s\n", o.DimText("│"), line, strings.Repeat(" ", padding), o.DimText("│"))
	}
	o.Println(o.DimText("└" + border + "┘"))
}

package journal

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/stats"
)

// ExportFormat selects the encoding of an export.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

// ParseExportFormat accepts json, yaml or yml in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", jerrors.NewValidationError("format", s, "must be json or yaml")
}

// StrategyExport is a strategy with its derived figures attached.
type StrategyExport struct {
	ID      string             `json:"id" yaml:"id"`
	Name    string             `json:"name" yaml:"name"`
	Notes   string             `json:"notes,omitempty" yaml:"notes,omitempty"`
	Overall stats.MonthSummary `json:"overall" yaml:"overall"`
	Months  []MonthExport      `json:"months" yaml:"months"`
}

// MonthExport is a month with its summary.
type MonthExport struct {
	ID         string             `json:"id" yaml:"id"`
	Name       string             `json:"name" yaml:"name"`
	Notes      string             `json:"notes,omitempty" yaml:"notes,omitempty"`
	AIAnalysis string             `json:"aiAnalysis,omitempty" yaml:"aiAnalysis,omitempty"`
	Summary    stats.MonthSummary `json:"summary" yaml:"summary"`
	Trades     []models.Trade     `json:"trades" yaml:"trades"`
}

// BuildExport assembles the export view of a strategy.
func BuildExport(strategy models.Strategy) StrategyExport {
	summary := stats.SummarizeStrategy(strategy)
	out := StrategyExport{
		ID:      strategy.ID,
		Name:    strategy.Name,
		Notes:   strategy.Notes,
		Overall: summary.Overall,
		Months:  make([]MonthExport, 0, len(strategy.Months)),
	}
	for _, m := range strategy.Months {
		me := MonthExport{
			ID:      m.ID,
			Name:    m.Name,
			Notes:   m.Notes,
			Summary: summary.ByMonth[m.ID],
			Trades:  m.Trades,
		}
		if m.AIAnalysis != nil {
			me.AIAnalysis = *m.AIAnalysis
		}
		if me.Trades == nil {
			me.Trades = []models.Trade{}
		}
		out.Months = append(out.Months, me)
	}
	return out
}

// ExportStrategy renders the strategy strategyID of state in format.
func ExportStrategy(state models.AppState, strategyID string, format ExportFormat) ([]byte, error) {
	strategy, ok := state.FindStrategy(strategyID)
	if !ok {
		return nil, jerrors.Wrapf(jerrors.ErrInvalidState, "unknown strategy %s", strategyID)
	}
	export := BuildExport(*strategy)

	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(export)
		if err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
		return data, nil
	}
}

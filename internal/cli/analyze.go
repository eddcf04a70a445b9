package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/journal"
	"tradejournal/internal/logging"
	"tradejournal/internal/models"
	"tradejournal/internal/review"
	"tradejournal/internal/stats"
)

// addAnalysisCommands adds statistics, review and export commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newReviewCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
}

// statsScope describes what a stats command summarized.
type statsScope struct {
	Scope   string             `json:"scope"`
	Name    string             `json:"name"`
	Summary stats.MonthSummary `json:"summary"`
}

func newStatsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show performance figures for the current selection",
		Long: `Show performance figures for the current selection.

With a month selected the month is summarized, with only a strategy selected
all of its months are, and with nothing selected every trade in the journal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			scope := currentScope(app.Journal.State())

			if output.IsJSON() {
				return output.JSON(scope)
			}
			printSummary(output, scope)
			return nil
		},
	}
	return cmd
}

func currentScope(state models.AppState) statsScope {
	if m, ok := state.CurrentMonth(); ok {
		return statsScope{Scope: "month", Name: m.Name, Summary: stats.SummarizeMonth(*m)}
	}
	if s, ok := state.CurrentStrategy(); ok {
		return statsScope{Scope: "strategy", Name: s.Name, Summary: stats.SummarizeStrategy(*s).Overall}
	}
	return statsScope{Scope: "journal", Name: "All strategies", Summary: stats.SummarizeTrades(stats.AllTrades(state))}
}

func printSummary(output *Output, scope statsScope) {
	s := scope.Summary
	lines := []string{
		fmt.Sprintf("Trades:        %d (%s W / %s L / %s BE)", s.TotalTrades,
			output.Green(fmt.Sprint(s.Wins)), output.Red(fmt.Sprint(s.Losses)), output.Yellow(fmt.Sprint(s.BreakEven))),
		fmt.Sprintf("Win rate:      %s", FormatWinRate(s.WinRate)),
		fmt.Sprintf("Net P&L:       %s", output.FormatPnL(s.NetPnL)),
		fmt.Sprintf("Gross gain:    %s", FormatPercent(s.GrossGain)),
		fmt.Sprintf("Gross loss:    %s", FormatPercent(-s.GrossLoss)),
		fmt.Sprintf("Profit factor: %s", FormatProfitFactor(s.ProfitFactor)),
	}
	if len(s.Equity) > 0 {
		lines = append(lines, fmt.Sprintf("Equity:        %s %s", Sparkline(s.Equity), FormatPercent(s.Equity[len(s.Equity)-1])))
	}
	output.Box(fmt.Sprintf("%s (%s)", scope.Name, scope.Scope), lines)
}

func newReviewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Request a written review of the selected month",
		Long: `Request a written review of the selected month from the configured
chat model. The review, or the reason it failed, is stored with the month.

The API key is taken from 'tradejournal settings api-key', then from
review.api_key in config.toml or OPENAI_API_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if _, err := app.User(); err != nil {
				return err
			}

			show, _ := cmd.Flags().GetBool("show")
			state := app.Journal.State()
			m, ok := state.CurrentMonth()
			if !ok {
				return selectionHint(jerrors.ErrInvalidState, "select a month first")
			}
			if show {
				if m.AIAnalysis == nil {
					output.Info("No review stored for %s", m.Name)
					return nil
				}
				return printReview(output, m.Name, *m.AIAnalysis)
			}

			s, _ := state.CurrentStrategy()
			strategyID, monthID, monthName := s.ID, m.ID, m.Name

			start := time.Now()
			if !output.IsJSON() {
				output.Info("Reviewing %s...", monthName)
			}
			results, err := app.Journal.StartReview(ctx)
			if err != nil {
				return err
			}

			var text string
			select {
			case text = <-results:
			case <-ctx.Done():
				return ctx.Err()
			}

			failed := review.Failed(text)
			logging.LogReview(logging.FromContext(ctx), strategyID, monthID, time.Since(start), failed)
			if err := printReview(output, monthName, text); err != nil {
				return err
			}
			if failed {
				return fmt.Errorf("review failed")
			}
			return nil
		},
	}
	cmd.Flags().Bool("show", false, "print the stored review without requesting a new one")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored review of the selected month",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			state := app.Journal.State()
			m, ok := state.CurrentMonth()
			if !ok {
				return selectionHint(jerrors.ErrInvalidState, "select a month first")
			}
			s, _ := state.CurrentStrategy()
			if _, err := app.Dispatch(journal.UpdateMonth{StrategyID: s.ID, MonthID: m.ID, ClearAnalysis: true}); err != nil {
				return err
			}
			output.Success("✓ Review cleared")
			return nil
		},
	})
	return cmd
}

func printReview(output *Output, monthName, text string) error {
	if output.IsJSON() {
		return output.JSON(map[string]string{"month": monthName, "review": text})
	}
	if review.Failed(text) {
		output.Error("%s", text)
		return nil
	}
	output.Bold("Review: %s", monthName)
	output.Println()
	output.Println(text)
	return nil
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [strategy]",
		Short: "Export a strategy with its summaries",
		Long: `Export a strategy with per-month summaries as JSON or YAML.
Defaults to the selected strategy.`,
		Example: `  tradejournal export --format yaml
  tradejournal export "London breakout" --output breakout.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			state := app.Journal.State()

			var strategyID string
			if len(args) == 1 {
				id, err := resolveStrategy(app, args[0])
				if err != nil {
					return err
				}
				strategyID = id
			} else if s, ok := state.CurrentStrategy(); ok {
				strategyID = s.ID
			} else {
				return selectionHint(jerrors.ErrInvalidState, "name a strategy or select one first")
			}

			formatFlag, _ := cmd.Flags().GetString("format")
			if output.IsJSON() && !cmd.Flags().Changed("format") {
				formatFlag = string(journal.FormatJSON)
			}
			format, err := journal.ParseExportFormat(formatFlag)
			if err != nil {
				return err
			}
			data, err := journal.ExportStrategy(state, strategyID, format)
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				_, err := cmd.OutOrStdout().Write(data)
				if err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
					output.Println()
				}
				return err
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			logger := logging.FromContext(cmd.Context())
			logger.Info().
				Str("strategy_id", strategyID).Str("path", path).Str("format", string(format)).Msg("Strategy exported")
			output.Success("✓ Exported to %s", path)
			return nil
		},
	}
	cmd.Flags().String("format", "json", "json or yaml")
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradejournal/internal/models"
	"tradejournal/internal/stats"
)

// tradeIssue locates a stored trade that breaks the sign rules.
type tradeIssue struct {
	Strategy string `json:"strategy"`
	Month    string `json:"month"`
	TradeID  string `json:"tradeId"`
	Result   string `json:"result"`
}

type doctorReport struct {
	ConfigValid   bool         `json:"configValid"`
	ConfigError   string       `json:"configError,omitempty"`
	SignedIn      bool         `json:"signedIn"`
	Backups       []string     `json:"backups"`
	InvalidTrades []tradeIssue `json:"invalidTrades"`
}

func (r doctorReport) healthy() bool {
	return r.ConfigValid && len(r.Backups) == 0 && len(r.InvalidTrades) == 0
}

func newDoctorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and stored journal data",
		Long: `Run health checks over the local installation:
- configuration validity
- corrupt payloads preserved as backups
- trades in the signed-in journal whose signs do not match their result`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			report := doctorReport{
				ConfigValid:   true,
				Backups:       app.Records.Backups(ctx),
				InvalidTrades: invalidTrades(app.Journal.State()),
			}
			if err := app.Config.Validate(); err != nil {
				report.ConfigValid = false
				report.ConfigError = err.Error()
			}
			report.SignedIn = app.Journal.State().User != nil
			if report.Backups == nil {
				report.Backups = []string{}
			}

			if output.IsJSON() {
				return output.JSON(report)
			}

			output.Bold("Health Checks")
			check := func(name string, passed bool, detail string) {
				status := output.Green("✓ PASS")
				if !passed {
					status = output.Red("✗ FAIL")
				}
				output.Printf("  %-20s %s %s\n", name, status, output.DimText(detail))
			}
			check("Configuration", report.ConfigValid, report.ConfigError)
			check("Stored data", len(report.Backups) == 0, count(len(report.Backups), "backup", "backups"))
			if report.SignedIn {
				check("Trade signs", len(report.InvalidTrades) == 0, count(len(report.InvalidTrades), "issue", "issues"))
			} else {
				output.Printf("  %-20s %s\n", "Trade signs", output.DimText("skipped (not signed in)"))
			}

			for _, key := range report.Backups {
				output.Printf("  backup: %s\n", key)
			}
			for _, issue := range report.InvalidTrades {
				output.Printf("  trade %s (%s) in %s / %s\n", issue.TradeID, issue.Result, issue.Strategy, issue.Month)
			}
			if report.healthy() {
				output.Success("✓ No problems found")
			}
			return nil
		},
	}
}

func invalidTrades(state models.AppState) []tradeIssue {
	issues := []tradeIssue{}
	for _, s := range state.Strategies {
		for _, m := range s.Months {
			for _, t := range m.Trades {
				if !stats.SignsValid(t) {
					issues = append(issues, tradeIssue{Strategy: s.Name, Month: m.Name, TradeID: t.ID, Result: string(t.Result)})
				}
			}
		}
	}
	return issues
}

func count(n int, one, many string) string {
	return fmt.Sprintf("%d %s", n, plural(n, one, many))
}

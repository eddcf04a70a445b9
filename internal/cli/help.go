package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"tradejournal/internal/config"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newExamplesCmd(app))
	rootCmd.AddCommand(newQuickstartCmd(app))
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "examples",
		Short:       "Show common workflows",
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Accounts",
					commands: []string{
						"tradejournal register --email you@example.com --password secret1",
						"tradejournal login --email you@example.com --password secret1 --remember  # stay signed in",
						"tradejournal reset request --email you@example.com  # prints a 6-digit code",
						"tradejournal reset complete --email you@example.com --code 123456 --password newpass",
						"tradejournal logout",
					},
				},
				{
					title: "Building a journal",
					commands: []string{
						"tradejournal strategy add London breakout",
						`tradejournal strategy select "London breakout"  # id, id prefix or name`,
						`tradejournal month add "March 2024"`,
						`tradejournal month select "March 2024"`,
						"tradejournal trade add --pair GBPUSD --direction short --result win --pips 45 --pnl 3",
						"tradejournal trade update 01HQ --result loss  # signs follow the result",
					},
				},
				{
					title: "Reviewing",
					commands: []string{
						"tradejournal stats  # month, strategy or whole journal",
						"tradejournal settings api-key sk-...",
						"tradejournal review",
						"tradejournal review --show",
						"tradejournal export --format yaml -o march.yaml",
					},
				},
			}

			for _, ex := range examples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText("# "+strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}

func newQuickstartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "quickstart",
		Short:       "New user guide",
		Long:        "Step-by-step guide for new users.",
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("tradejournal - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{"Create an account", "Accounts live in the local journal database.", "tradejournal register --email you@example.com --password secret1"},
				{"Add a strategy", "Strategies group the months you backtest.", "tradejournal strategy add Trend pullback"},
				{"Add a month", "Select the strategy, then add a period to it.", `tradejournal strategy select "Trend pullback" && tradejournal month add "March 2024"`},
				{"Log trades", "Select the month and add trades as you test.", `tradejournal month select "March 2024" && tradejournal trade add --result win --pnl 2`},
				{"Check the figures", "Win rate, net P&L and the equity curve.", "tradejournal stats"},
				{"Get a review", "Needs an OpenAI-compatible API key.", "tradejournal review"},
			}

			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), i+1, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			path := "~/.config/tradejournal/config.toml"
			if app.Config != nil {
				path = config.ConfigFile(app.Config.Dir)
			}
			output.Bold("Configuration")
			output.Printf("  %s - storage, session, review and logging settings\n", output.Cyan(path))
			output.Println()

			output.Bold("Important Notes")
			output.Printf("  %s Sign-in lasts for this terminal unless you pass --remember\n", output.Yellow("⚠"))
			output.Printf("  %s Two terminals editing the same journal do not merge; the last write wins\n", output.Yellow("⚠"))
			return nil
		},
	}
}

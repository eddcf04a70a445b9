package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/journal"
	"tradejournal/internal/models"
	"tradejournal/internal/security"
	"tradejournal/internal/stats"
)

const (
	maxNameLength  = 100
	maxNotesLength = 10000
)

// addJournalCommands adds strategy, month and trade commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStrategyCmd(app))
	rootCmd.AddCommand(newMonthCmd(app))
	rootCmd.AddCommand(newTradeCmd(app))
}

func newStrategyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "strategy",
		Aliases: []string{"strategies", "s"},
		Short:   "Manage strategies",
		Long:    "Create, rename, annotate, delete and select strategies.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a strategy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name, err := cleanName(strings.Join(args, " "))
			if err != nil {
				return err
			}
			state, err := app.Dispatch(journal.AddStrategy{Name: name})
			if err != nil {
				return err
			}
			created := state.Strategies[len(state.Strategies)-1]
			if output.IsJSON() {
				return output.JSON(created)
			}
			output.Success("✓ Strategy %q added", created.Name)
			output.Dim("  ID: %s", created.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List strategies with their figures",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			state := app.Journal.State()

			summaries := make([]stats.StrategySummary, 0, len(state.Strategies))
			for _, s := range state.Strategies {
				summaries = append(summaries, stats.SummarizeStrategy(s))
			}
			if output.IsJSON() {
				return output.JSON(summaries)
			}
			if len(state.Strategies) == 0 {
				output.Info("No strategies yet. Use 'tradejournal strategy add <name>'.")
				return nil
			}

			table := NewTable(output, "", "ID", "Name", "Months", "Trades", "Win Rate", "Net P&L")
			for i, s := range state.Strategies {
				sum := summaries[i]
				table.AddRow(
					marker(cursorIs(state.CurrentStrategyID, s.ID)),
					s.ID,
					TruncateString(s.Name, 30),
					fmt.Sprintf("%d", sum.Months),
					fmt.Sprintf("%d", sum.Overall.TotalTrades),
					FormatWinRate(sum.Overall.WinRate),
					output.FormatPnL(sum.Overall.NetPnL),
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <strategy> <name>",
		Short: "Rename a strategy",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := resolveStrategy(app, args[0])
			if err != nil {
				return err
			}
			name, err := cleanName(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.UpdateStrategy{ID: id, Name: &name}); err != nil {
				return err
			}
			output.Success("✓ Strategy renamed to %q", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "notes <strategy> [text...]",
		Short: "Replace the notes of a strategy",
		Long:  "Replace the notes of a strategy. With no text the notes are cleared.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := resolveStrategy(app, args[0])
			if err != nil {
				return err
			}
			notes, err := cleanNotes(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.UpdateStrategy{ID: id, Notes: &notes}); err != nil {
				return err
			}
			output.Success("✓ Notes saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <strategy>",
		Short: "Delete a strategy and all its months",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := resolveStrategy(app, args[0])
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.DeleteStrategy{ID: id}); err != nil {
				return err
			}
			output.Success("✓ Strategy deleted")
			return nil
		},
	})

	selectCmd := &cobra.Command{
		Use:   "select [strategy]",
		Short: "Open a strategy, or go back to the list with --none",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			none, _ := cmd.Flags().GetBool("none")

			var target *string
			if !none {
				if len(args) == 0 {
					return fmt.Errorf("give a strategy or --none")
				}
				id, err := resolveStrategy(app, args[0])
				if err != nil {
					return err
				}
				target = &id
			}

			state, err := app.Dispatch(journal.SelectStrategy{ID: target})
			if err != nil {
				return err
			}
			if s, ok := state.CurrentStrategy(); ok {
				output.Success("✓ Selected strategy %q (%d months)", s.Name, len(s.Months))
			} else {
				output.Success("✓ Back to the strategy list")
			}
			return nil
		},
	}
	selectCmd.Flags().Bool("none", false, "clear the selection")
	cmd.AddCommand(selectCmd)

	return cmd
}

func newMonthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "month",
		Aliases: []string{"months", "m"},
		Short:   "Manage months of the selected strategy",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add <name>",
		Short:   "Add a month to the selected strategy",
		Example: `  tradejournal month add "March 2024"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name, err := cleanName(strings.Join(args, " "))
			if err != nil {
				return err
			}
			state, err := app.Dispatch(journal.AddMonth{Name: name})
			if err != nil {
				return selectionHint(err, "select a strategy first")
			}
			s, _ := state.CurrentStrategy()
			created := s.Months[len(s.Months)-1]
			if output.IsJSON() {
				return output.JSON(created)
			}
			output.Success("✓ Month %q added to %s", created.Name, s.Name)
			output.Dim("  ID: %s", created.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List months of the selected strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			state := app.Journal.State()
			s, ok := state.CurrentStrategy()
			if !ok {
				return selectionHint(jerrors.ErrInvalidState, "select a strategy first")
			}

			summary := stats.SummarizeStrategy(*s)
			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Bold("%s", s.Name)
			if len(s.Months) == 0 {
				output.Info("No months yet. Use 'tradejournal month add <name>'.")
				return nil
			}

			table := NewTable(output, "", "ID", "Month", "Trades", "Win Rate", "Net P&L", "Review")
			for _, m := range s.Months {
				ms := summary.ByMonth[m.ID]
				reviewed := ""
				if m.AIAnalysis != nil {
					reviewed = "yes"
				}
				table.AddRow(
					marker(cursorIs(state.CurrentMonthID, m.ID)),
					m.ID,
					m.Name,
					fmt.Sprintf("%d", ms.TotalTrades),
					FormatWinRate(ms.WinRate),
					output.FormatPnL(ms.NetPnL),
					reviewed,
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <month> <name>",
		Short: "Rename a month of the selected strategy",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			strategyID, monthID, err := resolveMonth(app, args[0])
			if err != nil {
				return err
			}
			name, err := cleanName(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.UpdateMonth{StrategyID: strategyID, MonthID: monthID, Name: &name}); err != nil {
				return err
			}
			output.Success("✓ Month renamed to %q", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "notes <month> [text...]",
		Short: "Replace the notes of a month",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			strategyID, monthID, err := resolveMonth(app, args[0])
			if err != nil {
				return err
			}
			notes, err := cleanNotes(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.UpdateMonth{StrategyID: strategyID, MonthID: monthID, Notes: &notes}); err != nil {
				return err
			}
			output.Success("✓ Notes saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <month>",
		Short: "Delete a month and its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			_, monthID, err := resolveMonth(app, args[0])
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.DeleteMonth{ID: monthID}); err != nil {
				return err
			}
			output.Success("✓ Month deleted")
			return nil
		},
	})

	selectCmd := &cobra.Command{
		Use:   "select [month]",
		Short: "Open a month, or go back to the month list with --none",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			none, _ := cmd.Flags().GetBool("none")

			var target *string
			if !none {
				if len(args) == 0 {
					return fmt.Errorf("give a month or --none")
				}
				_, id, err := resolveMonth(app, args[0])
				if err != nil {
					return err
				}
				target = &id
			}

			state, err := app.Dispatch(journal.SelectMonth{ID: target})
			if err != nil {
				return selectionHint(err, "select a strategy first")
			}
			if m, ok := state.CurrentMonth(); ok {
				output.Success("✓ Selected month %q (%d trades)", m.Name, len(m.Trades))
			} else {
				output.Success("✓ Back to the month list")
			}
			return nil
		},
	}
	selectCmd.Flags().Bool("none", false, "clear the selection")
	cmd.AddCommand(selectCmd)

	return cmd
}

func newTradeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trade",
		Aliases: []string{"trades", "t"},
		Short:   "Manage trades of the selected month",
		Long: `Manage trades of the selected month.

The signs of pips, P&L % and max % follow the result: a Win is stored
positive, a Loss negative and a BE keeps what was entered.`,
	}

	add := &cobra.Command{
		Use:     "add",
		Short:   "Add a trade to the selected month",
		Example: `  tradejournal trade add --date 15 --pair GBPUSD --direction short --rr 3 --result win --pips 45 --pnl 3`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			patch, err := tradePatchFromFlags(cmd)
			if err != nil {
				return err
			}
			state, err := app.Dispatch(journal.AddTrade{Patch: patch})
			if err != nil {
				return selectionHint(err, "select a month first")
			}
			m, _ := state.CurrentMonth()
			created := m.Trades[len(m.Trades)-1]
			if output.IsJSON() {
				return output.JSON(created)
			}
			output.Success("✓ Trade added")
			printTrades(output, []models.Trade{created})
			return nil
		},
	}
	addTradeFlags(add)
	cmd.AddCommand(add)

	update := &cobra.Command{
		Use:   "update <trade>",
		Short: "Change fields of a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := resolveTrade(app, args[0])
			if err != nil {
				return err
			}
			patch, err := tradePatchFromFlags(cmd)
			if err != nil {
				return err
			}
			state, err := app.Dispatch(journal.UpdateTrade{ID: id, Patch: patch})
			if err != nil {
				return err
			}
			m, _ := state.CurrentMonth()
			t, _ := m.FindTrade(id)
			if output.IsJSON() {
				return output.JSON(t)
			}
			output.Success("✓ Trade updated")
			printTrades(output, []models.Trade{*t})
			return nil
		},
	}
	addTradeFlags(update)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <trade>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := resolveTrade(app, args[0])
			if err != nil {
				return err
			}
			if _, err := app.Dispatch(journal.DeleteTrade{ID: id}); err != nil {
				return err
			}
			output.Success("✓ Trade deleted")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trades of the selected month",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			m, ok := app.Journal.State().CurrentMonth()
			if !ok {
				return selectionHint(jerrors.ErrInvalidState, "select a month first")
			}
			if output.IsJSON() {
				trades := m.Trades
				if trades == nil {
					trades = []models.Trade{}
				}
				return output.JSON(trades)
			}
			output.Bold("%s", m.Name)
			if len(m.Trades) == 0 {
				output.Info("No trades yet. Use 'tradejournal trade add'.")
				return nil
			}
			printTrades(output, m.Trades)
			return nil
		},
	})

	return cmd
}

func addTradeFlags(cmd *cobra.Command) {
	cmd.Flags().String("date", "", "day of month, e.g. 15")
	cmd.Flags().String("pair", "", "instrument, e.g. EURUSD")
	cmd.Flags().String("direction", "", "long or short")
	cmd.Flags().Float64("rr", 0, "risk-reward ratio")
	cmd.Flags().String("result", "", "win, loss or be")
	cmd.Flags().Float64("pips", 0, "pips gained or lost")
	cmd.Flags().Float64("pnl", 0, "P&L in percent of account")
	cmd.Flags().Float64("max", 0, "maximum favourable excursion in percent")
	cmd.Flags().String("notes", "", "free-form notes")
}

// tradePatchFromFlags builds a patch from the flags that were given.
func tradePatchFromFlags(cmd *cobra.Command) (journal.TradePatch, error) {
	var patch journal.TradePatch
	flags := cmd.Flags()

	if flags.Changed("date") {
		v, _ := flags.GetString("date")
		v = strings.TrimSpace(v)
		if err := security.ValidateDay(v); err != nil {
			return patch, err
		}
		patch.Date = &v
	}
	if flags.Changed("pair") {
		v, _ := flags.GetString("pair")
		if err := security.ValidatePair(v); err != nil {
			return patch, err
		}
		v = strings.ToUpper(strings.TrimSpace(v))
		patch.Pair = &v
	}
	if flags.Changed("direction") {
		v, _ := flags.GetString("direction")
		d, err := ParseDirection(v)
		if err != nil {
			return patch, err
		}
		patch.Direction = &d
	}
	if flags.Changed("rr") {
		v, _ := flags.GetFloat64("rr")
		if err := security.ValidateFinite("rr", v); err != nil {
			return patch, err
		}
		patch.RR = &v
	}
	if flags.Changed("result") {
		v, _ := flags.GetString("result")
		r, err := ParseResult(v)
		if err != nil {
			return patch, err
		}
		patch.Result = &r
	}
	if flags.Changed("pips") {
		v, _ := flags.GetFloat64("pips")
		if err := security.ValidateFinite("pips", v); err != nil {
			return patch, err
		}
		patch.Pips = &v
	}
	if flags.Changed("pnl") {
		v, _ := flags.GetFloat64("pnl")
		if err := security.ValidateFinite("pnl", v); err != nil {
			return patch, err
		}
		patch.PnLPercent = &v
	}
	if flags.Changed("max") {
		v, _ := flags.GetFloat64("max")
		if err := security.ValidateFinite("max", v); err != nil {
			return patch, err
		}
		patch.MaxExcursionPercent = &v
	}
	if flags.Changed("notes") {
		v, _ := flags.GetString("notes")
		notes, err := cleanNotes(v)
		if err != nil {
			return patch, err
		}
		patch.Notes = &notes
	}
	return patch, nil
}

// ParseDirection accepts long or short in any case.
func ParseDirection(s string) (models.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "l", "buy":
		return models.Long, nil
	case "short", "s", "sell":
		return models.Short, nil
	}
	return "", jerrors.NewValidationError("direction", s, "must be long or short")
}

// ParseResult accepts win, loss or be in any case.
func ParseResult(s string) (models.Result, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w":
		return models.Win, nil
	case "loss", "l":
		return models.Loss, nil
	case "be", "breakeven", "break-even":
		return models.BreakEven, nil
	}
	return "", jerrors.NewValidationError("result", s, "must be win, loss or be")
}

func printTrades(output *Output, trades []models.Trade) {
	table := NewTable(output, "Day", "Pair", "Dir", "R:R", "Result", "Pips", "P&L", "Max", "Notes", "ID")
	for _, t := range trades {
		table.AddRow(
			t.Date,
			t.Pair,
			string(t.Direction),
			FormatRiskReward(t.RR),
			output.FormatResult(t.Result),
			FormatPips(t.Pips),
			output.FormatPnL(t.PnLPercent),
			FormatPercent(t.MaxExcursionPercent),
			TruncateString(t.Notes, 24),
			t.ID,
		)
	}
	table.Render()
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(security.SanitizeText(name))
	if err := security.ValidateName(name); err != nil {
		return "", err
	}
	if err := security.ValidateText("name", name, maxNameLength); err != nil {
		return "", err
	}
	return name, nil
}

func cleanNotes(notes string) (string, error) {
	notes = security.SanitizeText(notes)
	if err := security.ValidateText("notes", notes, maxNotesLength); err != nil {
		return "", err
	}
	return notes, nil
}

func cursorIs(cursor *string, id string) bool {
	return cursor != nil && *cursor == id
}

// selectionHint adds a next step to errors caused by a missing selection.
func selectionHint(err error, hint string) error {
	if jerrors.Is(err, jerrors.ErrInvalidState) {
		return jerrors.Wrap(err, hint)
	}
	return err
}

// resolveStrategy finds a strategy by id, unique id prefix or name.
func resolveStrategy(app *App, ref string) (string, error) {
	if _, err := app.User(); err != nil {
		return "", err
	}
	strategies := app.Journal.State().Strategies
	ids := make([]string, len(strategies))
	names := make([]string, len(strategies))
	for i, s := range strategies {
		ids[i], names[i] = s.ID, s.Name
	}
	return resolveRef("strategy", ref, ids, names)
}

// resolveMonth finds a month of the selected strategy.
func resolveMonth(app *App, ref string) (string, string, error) {
	if _, err := app.User(); err != nil {
		return "", "", err
	}
	s, ok := app.Journal.State().CurrentStrategy()
	if !ok {
		return "", "", selectionHint(jerrors.ErrInvalidState, "select a strategy first")
	}
	ids := make([]string, len(s.Months))
	names := make([]string, len(s.Months))
	for i, m := range s.Months {
		ids[i], names[i] = m.ID, m.Name
	}
	id, err := resolveRef("month", ref, ids, names)
	return s.ID, id, err
}

// resolveTrade finds a trade of the selected month.
func resolveTrade(app *App, ref string) (string, error) {
	if _, err := app.User(); err != nil {
		return "", err
	}
	m, ok := app.Journal.State().CurrentMonth()
	if !ok {
		return "", selectionHint(jerrors.ErrInvalidState, "select a month first")
	}
	ids := make([]string, len(m.Trades))
	for i, t := range m.Trades {
		ids[i] = t.ID
	}
	return resolveRef("trade", ref, ids, nil)
}

func resolveRef(kind, ref string, ids, names []string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", jerrors.NewValidationError(kind, ref, "cannot be empty")
	}
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(strings.ToLower(id), strings.ToLower(ref)) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 0 {
		for i, name := range names {
			if strings.EqualFold(name, ref) {
				matches = append(matches, ids[i])
			}
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", jerrors.Wrapf(jerrors.ErrInvalidState, "no %s matches %q", kind, ref)
	default:
		return "", jerrors.Wrapf(jerrors.ErrInvalidState, "%q matches %d %s entries, use more of the id", ref, len(matches), kind)
	}
}

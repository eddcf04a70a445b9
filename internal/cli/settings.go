package cli

import (
	"strings"

	"github.com/spf13/cobra"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/journal"
	"tradejournal/internal/models"
)

// addSettingsCommands adds per-user preference commands.
func addSettingsCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSettingsCmd(app))
	rootCmd.AddCommand(newOnboardCmd(app))
}

func newSettingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View and change your preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show your settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.User(); err != nil {
				return err
			}
			s := app.Journal.State().Settings
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"theme":                s.Theme,
					"language":             s.Language,
					"isOnboardingComplete": s.IsOnboardingComplete,
					"apiKey":               maskedKey(s.APIKey),
				})
			}
			output.Bold("Settings")
			output.Printf("  Theme:      %s\n", s.Theme)
			output.Printf("  Language:   %s\n", s.Language)
			output.Printf("  Onboarded:  %v\n", s.IsOnboardingComplete)
			output.Printf("  API key:    %s\n", maskedKey(s.APIKey))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "theme <light|dark>",
		Short:     "Set the display theme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.ThemeLight), string(models.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			theme := models.Theme(strings.ToLower(args[0]))
			if theme != models.ThemeLight && theme != models.ThemeDark {
				return jerrors.NewValidationError("theme", args[0], "must be light or dark")
			}
			if _, err := app.Dispatch(journal.SetTheme{Theme: theme}); err != nil {
				return err
			}
			output.Success("✓ Theme set to %s", theme)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "language <en|fa>",
		Short:     "Set the display language",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.LanguageEnglish), string(models.LanguageFarsi)},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			lang := models.Language(strings.ToLower(args[0]))
			if lang != models.LanguageEnglish && lang != models.LanguageFarsi {
				return jerrors.NewValidationError("language", args[0], "must be en or fa")
			}
			if _, err := app.Dispatch(journal.SetLanguage{Language: lang}); err != nil {
				return err
			}
			output.Success("✓ Language set to %s", lang)
			return nil
		},
	})

	apiKey := &cobra.Command{
		Use:   "api-key [key]",
		Short: "Store the API key used for reviews",
		Long: `Store the API key used for reviews in your journal settings.
It takes precedence over review.api_key and OPENAI_API_KEY.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			remove, _ := cmd.Flags().GetBool("clear")

			key := ""
			if !remove {
				if len(args) == 0 {
					return jerrors.NewValidationError("key", "", "give a key or --clear")
				}
				key = strings.TrimSpace(args[0])
			}
			if _, err := app.Dispatch(journal.SetAPIKey{Key: key}); err != nil {
				return err
			}
			if key == "" {
				output.Success("✓ API key removed")
			} else {
				output.Success("✓ API key stored (%s)", maskedKey(key))
			}
			return nil
		},
	}
	apiKey.Flags().Bool("clear", false, "remove the stored key")
	cmd.AddCommand(apiKey)

	return cmd
}

func newOnboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Mark the welcome tour as done",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			state, err := app.Dispatch(journal.CompleteOnboarding{})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"isOnboardingComplete": state.Settings.IsOnboardingComplete})
			}
			output.Success("✓ Onboarding complete")
			return nil
		},
	}
}

// Package cli provides the command-line interface for the trading journal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradejournal/internal/config"
	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-01"
)

// Exit codes returned by Execute.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitCredential = 2
)

// skipApp marks commands that run without opening the journal databases.
const skipApp = "skip-app"

// Execute runs the command line and returns the process exit code.
func Execute() int {
	app := &App{}
	rootCmd := NewRootCmd(app)
	err := rootCmd.Execute()

	if cerr := app.Close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	return ExitCode(err)
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, jerrors.ErrInvalidCredentials),
		errors.Is(err, jerrors.ErrUserNotFound),
		errors.Is(err, jerrors.ErrNotAuthenticated),
		errors.Is(err, jerrors.ErrResetCodeInvalid),
		errors.Is(err, jerrors.ErrResetCodeExpired),
		errors.Is(err, jerrors.ErrEmailTaken):
		return ExitCredential
	default:
		return ExitError
	}
}

// NewRootCmd creates the root command for the CLI. A zero App is opened
// from configuration before the first command runs; an App that already
// has a controller is used as is.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradejournal",
		Short: "Backtest trading journal",
		Long: `tradejournal keeps a per-user journal of strategies, monthly periods and
trades, derives performance statistics and requests written reviews of a month.

Sign-in is scoped to the terminal session unless --remember is given.

Use 'tradejournal help <command>' for more information about a command.
Use 'tradejournal examples' to see common workflows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config")

			if !app.Ready() {
				cfg, err := config.Load(configDir)
				if err != nil {
					return err
				}
				logCfg := logConfigFrom(cfg.Log)
				if debug {
					logCfg.Level = "debug"
					logCfg.Console = true
				}
				app.Config = cfg
				app.Logger = logging.NewLoggerWithConfig(logCfg)
				if !cfg.UI.ColorEnabled {
					color.NoColor = true
				}

				if cmd.Annotations[skipApp] == "" {
					if err := app.Open(cmd.Context()); err != nil {
						return err
					}
				}
			} else if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			logger := app.Logger
			if app.Journal != nil {
				if user := app.Journal.State().User; user != nil {
					logger = logging.WithUser(logger, user.ID)
				}
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradejournal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addSettingsCommands(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

func logConfigFrom(c config.LogConfig) logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Level,
		Console:    c.Console,
		File:       c.File,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDoctorCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipApp: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("tradejournal v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}
	skip := map[string]string{skipApp: "true"}

	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Show current configuration",
		Annotations: skip,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				redacted := *app.Config
				redacted.Review.APIKey = maskedKey(redacted.Review.APIKey)
				return output.JSON(redacted)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: skip,
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigFile(app.Config.Dir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: skip,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Write a fresh config.toml template",
		Annotations: skip,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path, err := config.WriteTemplate(app.Config.Dir)
			if err != nil {
				output.Error("Failed to write template: %v", err)
				return err
			}
			output.Success("✓ Template written to %s", path)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Storage.Path)
	output.Printf("  Session DB:      %s\n", cfg.SessionDBPath())
	output.Printf("  Debounce:        %s\n", cfg.Storage.Debounce)
	output.Println()

	output.Bold("Session")
	output.Printf("  Remember me:     %v\n", cfg.Session.RememberMe)
	output.Printf("  Reset code TTL:  %s\n", cfg.Session.ResetCodeTTL)
	output.Println()

	output.Bold("Review")
	output.Printf("  Model:           %s\n", cfg.Review.Model)
	if cfg.Review.BaseURL != "" {
		output.Printf("  Base URL:        %s\n", cfg.Review.BaseURL)
	}
	output.Printf("  API key:         %s\n", maskedKey(cfg.Review.APIKey))
	output.Printf("  Timeout:         %s\n", cfg.Review.Timeout)
	output.Printf("  Max attempts:    %d\n", cfg.Review.MaxAttempts)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Log.Level)
	output.Printf("  File:            %s\n", cfg.Log.FilePath)
	output.Printf("  Audit:           %v (%s)\n", cfg.Audit.Enabled, cfg.Audit.Dir)

	return nil
}

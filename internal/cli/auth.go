package cli

import (
	"github.com/spf13/cobra"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/journal"
	"tradejournal/internal/logging"
	"tradejournal/internal/models"
	"tradejournal/internal/session"
)

// addAuthCommands adds account and sign-in commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRegisterCmd(app))
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLoginExternalCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
	rootCmd.AddCommand(newWhoamiCmd(app))
	rootCmd.AddCommand(newAccountsCmd(app))
	rootCmd.AddCommand(newResetCmd(app))
	rootCmd.AddCommand(newPasswdCmd(app))
	rootCmd.AddCommand(newProfileCmd(app))
}

func newRegisterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a local account and sign in",
		Example: `  tradejournal register --name "Sara" --email sara@example.com --password secret1
  tradejournal register --email sara@example.com --password secret1 --remember`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			logger := logging.WithOperation(logging.FromContext(ctx), "register")

			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			avatar, _ := cmd.Flags().GetString("avatar")
			remember := rememberFlag(cmd, app)

			user, err := app.Sessions.Register(ctx, session.Registration{
				Name:      name,
				Email:     email,
				Password:  password,
				AvatarURL: avatar,
			})
			if err != nil {
				logging.LogAuthEvent(logger, "register", "", err)
				if jerrors.Is(err, jerrors.ErrEmailTaken) {
					output.Error("Email already exists")
				} else {
					output.Error("Registration failed: %v", err)
				}
				return err
			}
			logging.LogAuthEvent(logger, "register", user.ID, nil)

			state, err := app.SignIn(ctx, *user, remember)
			if err != nil {
				output.Error("Account created but sign-in failed: %v", err)
				return err
			}
			return printSignedIn(output, state)
		},
	}
	cmd.Flags().String("name", "", "display name (default: part of the email before @)")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("password", "", "password (min 6 characters)")
	cmd.Flags().String("avatar", "", "avatar URL")
	cmd.Flags().Bool("remember", false, "stay signed in across terminals")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password.

Without --remember the sign-in only lasts for this terminal session.`,
		Example: `  tradejournal login --email sara@example.com --password secret1
  tradejournal login --email sara@example.com --password secret1 --remember`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			logger := logging.WithOperation(logging.FromContext(ctx), "login")

			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			remember := rememberFlag(cmd, app)

			user, err := app.Sessions.Login(ctx, email, password)
			if err != nil {
				logging.LogAuthEvent(logger, "login", "", err)
				if jerrors.Is(err, jerrors.ErrUserNotFound) {
					output.Error("User not found")
				} else {
					output.Error("Invalid credentials")
				}
				return err
			}
			logging.LogAuthEvent(logger, "login", user.ID, nil)

			state, err := app.SignIn(ctx, *user, remember)
			if err != nil {
				output.Error("Sign-in failed: %v", err)
				return err
			}
			return printSignedIn(output, state)
		},
	}
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("password", "", "password")
	cmd.Flags().Bool("remember", false, "stay signed in across terminals")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginExternalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login-external",
		Short: "Sign in with an identity from an external provider",
		Long: `Sign in with an identity asserted by an external provider.

The account is matched by email, then by provider id, and created on first
sign-in. Name and avatar are refreshed from the identity each time.`,
		Example: `  tradejournal login-external --id 1098 --email sara@example.com --name "Sara"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			logger := logging.WithOperation(logging.FromContext(ctx), "login-external")

			var ident session.ExternalIdentity
			ident.ID, _ = cmd.Flags().GetString("id")
			ident.Name, _ = cmd.Flags().GetString("name")
			ident.Email, _ = cmd.Flags().GetString("email")
			ident.AvatarURL, _ = cmd.Flags().GetString("avatar")
			remember := rememberFlag(cmd, app)

			user, err := app.Sessions.LoginExternal(ctx, ident)
			if err != nil {
				logging.LogAuthEvent(logger, "login_external", ident.ID, err)
				output.Error("External sign-in failed: %v", err)
				return err
			}
			logging.LogAuthEvent(logger, "login_external", user.ID, nil)

			state, err := app.SignIn(ctx, *user, remember)
			if err != nil {
				output.Error("Sign-in failed: %v", err)
				return err
			}
			return printSignedIn(output, state)
		},
	}
	cmd.Flags().String("id", "", "provider user id")
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("avatar", "", "avatar URL")
	cmd.Flags().Bool("remember", false, "stay signed in across terminals")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the session",
		Long:  "Sign out on this terminal and forget a remembered sign-in. Journal data is kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			userID := ""
			if user := app.Journal.State().User; user != nil {
				userID = user.ID
			}
			err := app.SignOut(ctx)
			logging.LogAuthEvent(logging.FromContext(ctx), "logout", userID, err)
			if err != nil {
				output.Error("Failed to clear session: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]bool{"signed_out": true})
			}
			output.Success("✓ Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			state := app.Journal.State()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"user": state.User,
					"view": state.View(),
				})
			}
			if state.User == nil {
				output.Warning("Not signed in")
				return nil
			}
			printUser(output, *state.User)
			output.Printf("  View:     %s\n", state.View())
			return nil
		},
	}
}

func newAccountsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			accounts := app.Sessions.ListAccounts(cmd.Context())

			if output.IsJSON() {
				return output.JSON(accounts)
			}
			if len(accounts) == 0 {
				output.Info("No accounts registered. Use 'tradejournal register' to create one.")
				return nil
			}

			current := ""
			if user := app.Journal.State().User; user != nil {
				current = user.ID
			}
			table := NewTable(output, "", "ID", "Name", "Email", "Provider")
			for _, u := range accounts {
				table.AddRow(marker(u.ID == current), u.ID, u.Name, u.Email, string(u.AuthProvider))
			}
			table.Render()
			return nil
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
	}

	request := &cobra.Command{
		Use:   "request",
		Short: "Issue a reset code for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			email, _ := cmd.Flags().GetString("email")

			code, ok := app.Sessions.InitiatePasswordReset(cmd.Context(), email)
			if !ok {
				output.Error("User not found")
				return jerrors.ErrUserNotFound
			}

			ttl := app.Config.Session.ResetCodeTTL
			if ttl <= 0 {
				ttl = session.DefaultResetTTL
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"email": email, "code": code, "expires_in": ttl.String()})
			}
			output.Success("✓ Reset code issued")
			output.Printf("  Code:     %s\n", output.BoldText(code))
			output.Dim("  Valid for %s. Only the latest code is accepted.", FormatDuration(ttl))
			return nil
		},
	}
	request.Flags().String("email", "", "account email")
	request.MarkFlagRequired("email")

	complete := &cobra.Command{
		Use:   "complete",
		Short: "Set a new password with a reset code",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			email, _ := cmd.Flags().GetString("email")
			code, _ := cmd.Flags().GetString("code")
			password, _ := cmd.Flags().GetString("password")

			if !app.Sessions.CompletePasswordReset(cmd.Context(), email, code, password) {
				output.Error("Reset failed: code is wrong or expired, or the password is too short")
				return jerrors.ErrResetCodeInvalid
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"reset": true})
			}
			output.Success("✓ Password updated. Sign in with 'tradejournal login'.")
			return nil
		},
	}
	complete.Flags().String("email", "", "account email")
	complete.Flags().String("code", "", "6-digit reset code")
	complete.Flags().String("password", "", "new password (min 6 characters)")
	complete.MarkFlagRequired("email")
	complete.MarkFlagRequired("code")
	complete.MarkFlagRequired("password")

	cmd.AddCommand(request, complete)
	return cmd
}

func newPasswdCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			user, err := app.User()
			if err != nil {
				output.Error("Not signed in")
				return err
			}
			oldPw, _ := cmd.Flags().GetString("old")
			newPw, _ := cmd.Flags().GetString("new")

			if !app.Sessions.ChangePassword(cmd.Context(), user.ID, oldPw, newPw) {
				output.Error("Current password is incorrect or the new password is too short")
				return jerrors.ErrInvalidCredentials
			}
			output.Success("✓ Password changed")
			return nil
		},
	}
	cmd.Flags().String("old", "", "current password")
	cmd.Flags().String("new", "", "new password (min 6 characters)")
	cmd.MarkFlagRequired("old")
	cmd.MarkFlagRequired("new")
	return cmd
}

func newProfileCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update display name or avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			user, err := app.User()
			if err != nil {
				output.Error("Not signed in")
				return err
			}

			name := user.Name
			if cmd.Flags().Changed("name") {
				name, _ = cmd.Flags().GetString("name")
			}
			avatar := user.AvatarURL
			if cmd.Flags().Changed("avatar") {
				avatar, _ = cmd.Flags().GetString("avatar")
			}

			updated, err := app.Sessions.UpdateProfile(cmd.Context(), user.ID, name, avatar)
			if err != nil {
				output.Error("Profile update failed: %v", err)
				return err
			}
			state, err := app.Dispatch(journal.UpdateUser{Patch: journal.UserPatch{
				Name:      &updated.Name,
				AvatarURL: &updated.AvatarURL,
			}})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(state.User)
			}
			printUser(output, *state.User)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("avatar", "", "avatar URL")
	return cmd
}

// rememberFlag returns --remember when given, otherwise the configured default.
func rememberFlag(cmd *cobra.Command, app *App) bool {
	if cmd.Flags().Changed("remember") {
		remember, _ := cmd.Flags().GetBool("remember")
		return remember
	}
	return app.Config != nil && app.Config.Session.RememberMe
}

func printSignedIn(output *Output, state models.AppState) error {
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"user":       state.User,
			"strategies": len(state.Strategies),
		})
	}
	scope := "this terminal"
	if state.User.RememberMe {
		scope = "all terminals"
	}
	output.Success("✓ Signed in as %s (%s)", state.User.Name, state.User.Email)
	output.Dim("  Session: %s, %d strateg%s", scope, len(state.Strategies), plural(len(state.Strategies), "y", "ies"))
	return nil
}

func printUser(output *Output, u models.User) {
	output.Bold("%s", u.Name)
	output.Printf("  ID:       %s\n", u.ID)
	output.Printf("  Email:    %s\n", u.Email)
	output.Printf("  Provider: %s\n", u.AuthProvider)
	if u.AvatarURL != "" {
		output.Printf("  Avatar:   %s\n", u.AvatarURL)
	}
	output.Printf("  Remember: %v\n", u.RememberMe)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/examdesk/internal/cli/formatter"
	"github.com/alexanderramin/examdesk/internal/session"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				if !app.interactive() {
					return errors.New("--email and --password are required when not running in a terminal")
				}
				if err := loginForm(&email, &password).Run(); err != nil {
					return err
				}
			}

			user, err := app.Auth.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Signed in as %s", formatter.Bold(displayName(user)))))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func loginForm(email, password *string) *huh.Form {
	return newForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(email).Validate(validateRequired),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password).Validate(validateRequired),
		),
	)
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.Auth.Logout(cmd.Context())
			// The local session is gone even when the server call failed.
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Signed out"))
			if err != nil {
				app.logger().Warn("logout_request_failed", "error", err.Error())
			}
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			creds, err := app.Store.Credentials(ctx)
			if err != nil {
				return err
			}
			if creds.AccessToken == "" {
				return session.ErrNoSession
			}
			user, err := app.Store.User(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", formatter.Bold(displayName(user)), formatter.Dim(user.Email))

			claims, err := session.ParseClaims(creds.AccessToken)
			if err != nil {
				fmt.Fprintln(out, formatter.Dim("access token is not a readable JWT"))
				return nil
			}
			role := claims.Role
			if role == "" {
				role = user.Role
			}
			fmt.Fprintf(out, "Role:   %s\n", formatter.OrDash(role))

			now := app.now()
			switch {
			case claims.ExpiresAt.IsZero():
				fmt.Fprintf(out, "Token:  %s\n", formatter.Dim("no expiry"))
			case claims.Expired(now):
				fmt.Fprintf(out, "Token:  %s %s\n", formatter.StyleYellow.Render("expired"),
					formatter.Dim("(renewed on the next request)"))
			default:
				fmt.Fprintf(out, "Token:  expires %s\n", formatter.RelativeTime(claims.ExpiresAt, now))
			}
			return nil
		},
	}
}

func newChangePasswordCmd(app *App) *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if oldPassword == "" || newPassword == "" {
				if !app.interactive() {
					return errors.New("--old and --new are required when not running in a terminal")
				}
				if err := changePasswordForm(&oldPassword, &newPassword).Run(); err != nil {
					return err
				}
			}
			if oldPassword == newPassword {
				return errors.New("the new password must differ from the current one")
			}

			msg, err := app.Auth.ChangePassword(cmd.Context(), oldPassword, newPassword)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Password changed"
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(msg))
			return nil
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	return cmd
}

func changePasswordForm(oldPassword, newPassword *string) *huh.Form {
	var confirm string
	return newForm(
		huh.NewGroup(
			huh.NewInput().Title("Current password").EchoMode(huh.EchoModePassword).Value(oldPassword).Validate(validateRequired),
			huh.NewInput().Title("New password").EchoMode(huh.EchoModePassword).Value(newPassword).Validate(validateRequired),
			huh.NewInput().Title("Repeat new password").EchoMode(huh.EchoModePassword).Value(&confirm).
				Validate(func(s string) error {
					if s != *newPassword {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
	)
}

func displayName(u session.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

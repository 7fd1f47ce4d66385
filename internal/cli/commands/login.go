package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd(provider AppProvider) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to your AllOne vault",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			return runLogin(cmd, app, email, password)
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ALLONE_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ALLONE_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, app *App, email, password string) error {
	out := cmd.OutOrStdout()

	// Check for environment variables (useful for scripts)
	email = strings.TrimSpace(flagOrEnv(email, "ALLONE_EMAIL"))
	password = flagOrEnv(password, "ALLONE_PASSWORD")

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or ALLONE_EMAIL env var)")
	}

	if err := requirePublic(cmd, app); err != nil {
		return err
	}

	if password == "" {
		var err error
		password, err = promptSecret(out, "Password", "use --password flag or ALLONE_PASSWORD env var")
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Logging in to %s...\n", app.Client.BaseURL())

	res, err := app.Client.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %s", api.MessageOr(err, "please check your credentials"))
	}

	if err := app.Session.Login(session.Identity{Email: res.Email, Token: res.Token, UserID: res.UserID}); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	if res.Name != "" {
		fmt.Fprintf(out, "  User: %s (%s)\n", res.Name, res.Email)
	} else {
		fmt.Fprintf(out, "  User: %s\n", res.Email)
	}
	return nil
}

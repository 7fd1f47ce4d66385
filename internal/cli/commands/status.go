package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/auth"
)

// NewStatusCmd creates the status command
func NewStatusCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show whether you are logged in",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			return runStatus(cmd, app, time.Now())
		}),
	}
}

func runStatus(cmd *cobra.Command, app *App, now time.Time) error {
	out := cmd.OutOrStdout()

	phase := app.Bootstrap.Run(cmd.Context())
	state := app.Session.State()

	fmt.Fprintf(out, "Server:  %s\n", app.Client.BaseURL())
	if !state.IsAuthenticated {
		fmt.Fprintf(out, "Session: %s\n", phase)
		fmt.Fprintln(out, "\nLog in with: allone login --email <email>")
		return nil
	}

	fmt.Fprintf(out, "Session: %s\n", phase)
	fmt.Fprintf(out, "Email:   %s\n", state.Email)
	if state.UserID != "" {
		fmt.Fprintf(out, "User ID: %s\n", state.UserID)
	}
	if info, err := auth.Inspect(state.Token); err == nil {
		fmt.Fprintf(out, "Token:   %s\n", info.Describe(now))
	}
	return nil
}

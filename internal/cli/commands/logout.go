package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command. It never contacts the backend.
func NewLogoutCmd(provider AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			email := app.Session.State().Email
			app.Session.Logout()

			if email != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged out %s\n", email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			}
			return nil
		}),
	}
}

package commands

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/web"
)

// NewServeCmd creates the serve command
func NewServeCmd(provider AppProvider) *cobra.Command {
	var listen string
	var open bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"dash"},
		Short:   "Serve the vault in your browser",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if listen != "" {
				app.Config.Web.Listen = listen
			}
			return runServe(cmd, app, open)
		}),
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from config, 127.0.0.1:5173)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the front end in the default browser")

	return cmd
}

func runServe(cmd *cobra.Command, app *App, open bool) error {
	ctx := cmd.Context()

	srv, err := web.New(app.Config.Web, app.Session, app.Bootstrap, app.Client, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	ln, err := net.Listen("tcp", app.Config.Web.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.Config.Web.Listen, err)
	}

	// Pages render the loading view until the stored session settles
	app.Bootstrap.Start(ctx)
	go reportBootstrap(ctx, app)

	url := fmt.Sprintf("http://%s", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "AllOne is running at %s\n", url)

	if open {
		if err := openBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to open browser: %v\nPlease visit: %s\n", err, url)
		}
	}

	return srv.Serve(ctx, ln)
}

// reportBootstrap logs the outcome of the session check once it settles
func reportBootstrap(ctx context.Context, app *App) {
	phase, err := app.Bootstrap.Wait(ctx)
	if err != nil {
		return
	}
	app.Logger.Info().
		Str("session", phase.String()).
		Str("email", app.Session.State().Email).
		Msg("Session check finished")
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

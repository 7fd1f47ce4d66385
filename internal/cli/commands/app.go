package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/auth"
	"github.com/allone-dev/allone/internal/bootstrap"
	"github.com/allone-dev/allone/internal/config"
	"github.com/allone-dev/allone/internal/guard"
	"github.com/allone-dev/allone/internal/session"
	"github.com/allone-dev/allone/internal/sessionstore"
)

// ErrNotLoggedIn is returned by commands that need a session
var ErrNotLoggedIn = errors.New("not logged in. Please run 'allone login' first")

// App holds the per-process session wiring shared by all commands
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     *sessionstore.Store
	Session   *session.Session
	Client    *api.Client
	Bootstrap *bootstrap.Bootstrapper

	// PromptCode asks for a 6 digit code; it fails when stdin is not a terminal
	PromptCode func(label string) (string, error)
}

// NewApp opens the session store and wires the session, API client and bootstrap
func NewApp(cfg *config.Config, log zerolog.Logger) *App {
	store := sessionstore.Open(cfg.Store, cfg.API.URL, log)
	return newApp(cfg, log, store)
}

func newApp(cfg *config.Config, log zerolog.Logger, store *sessionstore.Store) *App {
	sess := session.New(store)

	client := api.New(cfg.API.URL, api.TokenFunc(store.Token),
		api.WithVerifyPath(cfg.API.VerifyPath),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(log),
	)

	opts := []bootstrap.Option{
		bootstrap.WithRetries(cfg.Bootstrap.Retries, cfg.Bootstrap.RetryDelay),
	}
	if cfg.Bootstrap.RetainOnTransient {
		opts = append(opts, bootstrap.WithClassifier(bootstrap.RetainOnTransient))
	}

	return &App{
		Config:     cfg,
		Logger:     log,
		Store:      store,
		Session:    sess,
		Client:     client,
		Bootstrap:  bootstrap.New(sess, client, log, opts...),
		PromptCode: promptCode,
	}
}

// Close releases the session store
func (a *App) Close() error {
	return a.Store.Close()
}

// AppProvider returns the App for a command invocation
type AppProvider func(cmd *cobra.Command) (*App, error)

// requireAuth settles the bootstrap and fails unless the session is authenticated
func requireAuth(cmd *cobra.Command, app *App) error {
	app.Bootstrap.Run(cmd.Context())

	decision := guard.AuthenticatedOnly(app.Session.State(), cmd.CommandPath())
	if !decision.Allow {
		return ErrNotLoggedIn
	}
	return nil
}

// requirePublic settles the bootstrap and fails if a session is already active
func requirePublic(cmd *cobra.Command, app *App) error {
	app.Bootstrap.Run(cmd.Context())

	decision := guard.PublicOnly(app.Session.State())
	if !decision.Allow {
		return fmt.Errorf("already logged in as %s. Run 'allone logout' first", app.Session.State().Email)
	}
	return nil
}

// currentUserID returns the signed in user's id, needed by the list endpoints
func currentUserID(app *App) (string, error) {
	id := app.Session.State().UserID
	if id == "" {
		return "", errors.New("your account id is unknown. Please run 'allone logout' and log in again")
	}
	return id, nil
}

// withApp wraps a command body with the App lookup
func withApp(provider AppProvider, run func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := provider(cmd)
		if err != nil {
			return err
		}
		if cmd.Context() == nil {
			cmd.SetContext(context.Background())
		}
		return run(cmd, app, args)
	}
}

// promptSecret reads a value without echo when stdin is a terminal
func promptSecret(out io.Writer, label, hint string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("%s is required in non-interactive mode (%s)", strings.ToLower(label), hint)
	}

	fmt.Fprintf(out, "%s: ", label)
	value, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return string(value), nil
}

// promptCode reads a one-time code interactively, validating it as it is typed
func promptCode(label string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("%s cannot be prompted for in non-interactive mode", strings.ToLower(label))
	}

	prompt := promptui.Prompt{
		Label:    label,
		Validate: auth.ValidateOTP,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(value), nil
}

// flagOrEnv returns the flag value, falling back to the environment variable
func flagOrEnv(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}

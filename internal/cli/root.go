package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/cli/commands"
	"github.com/allone-dev/allone/internal/config"
	"github.com/allone-dev/allone/internal/logger"
)

var version = "dev" // Will be set during build

var (
	apiURL   string
	store    string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "allone",
	Short: "AllOne - your private vault for notes, dates, documents and photos",
	Long: `AllOne CLI - Manage your AllOne vault from the terminal.

Your session is stored locally and verified against the backend before any
command that needs it. Run 'allone serve' to use the vault in a browser.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app is built once per process, on first use
var app struct {
	once sync.Once
	app  *commands.App
	err  error
}

func provideApp(cmd *cobra.Command) (*commands.App, error) {
	app.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			app.err = fmt.Errorf("failed to load configuration: %w", err)
			return
		}

		if apiURL != "" {
			cfg.API.URL = config.ResolveBaseURL(apiURL)
		}
		if store != "" {
			cfg.Store.Backend = store
		}

		// Keep command output readable unless asked otherwise
		level := cfg.Logging.Level
		switch {
		case logLevel != "":
			level = logLevel
		case os.Getenv("LOG_LEVEL") == "" && cmd.Name() != "serve":
			level = "warn"
		}
		logger.Init(level, cfg.Logging.Format)

		app.app = commands.NewApp(cfg, logger.GetLogger())
	})
	return app.app, app.err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (or set ALLONE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&store, "store", "", "Session store: file, keyring, sqlite, leveldb or memory (or set ALLONE_STORE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (or set LOG_LEVEL)")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "allone version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(provideApp))
	rootCmd.AddCommand(commands.NewLogoutCmd(provideApp))
	rootCmd.AddCommand(commands.NewStatusCmd(provideApp))
	rootCmd.AddCommand(commands.NewSignupCmd(provideApp))
	rootCmd.AddCommand(commands.NewVerifyOTPCmd(provideApp))
	rootCmd.AddCommand(commands.NewForgotPasswordCmd(provideApp))
	rootCmd.AddCommand(commands.NewResetPasswordCmd(provideApp))
	rootCmd.AddCommand(commands.NewNotesCmd(provideApp))
	rootCmd.AddCommand(commands.NewDatesCmd(provideApp))
	rootCmd.AddCommand(commands.NewDocsCmd(provideApp))
	rootCmd.AddCommand(commands.NewAlbumsCmd(provideApp))
	rootCmd.AddCommand(commands.NewServeCmd(provideApp))
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// closeApp releases the session store of the App, if one was built
func closeApp() {
	if app.app == nil {
		return
	}
	if err := app.app.Close(); err != nil {
		app.app.Logger.Warn().Err(err).Msg("Failed to close session store")
	}
}

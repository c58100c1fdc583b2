// Package commands implements the learnctl subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"learnapp/internal/apiclient"
	"learnapp/internal/cachepolicy"
	"learnapp/internal/config"
	"learnapp/internal/history"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ServerEnv names the environment variable that overrides the default server URL.
const ServerEnv = "LEARNCTL_SERVER"

// App carries the resources shared by every subcommand. Fields that are
// already set when a command runs are kept, so tests can inject them.
type App struct {
	Config *config.Config
	Logger *observability.Logger
	Client *apiclient.Client
	Store  *history.Store

	Out        io.Writer
	ErrOut     io.Writer
	In         io.Reader
	IsTerminal func() bool
	Now        func() time.Time

	ServerURL  string
	StoreDSN   string
	ConfigFile string

	closers []func() error
}

// NewApp returns an App bound to the process's standard streams.
func NewApp() *App {
	return &App{
		Out:        os.Stdout,
		ErrOut:     os.Stderr,
		In:         os.Stdin,
		IsTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		Now:        time.Now,
	}
}

// NewRootCommand builds the learnctl command tree.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "learnctl",
		Short: "Learning support command line client",
		Long: `learnctl talks to the learning support API and keeps a local study history.

Recognize text in photos of study material, generate practice questions from it,
answer them in the terminal and review your progress over time.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// One request id per invocation ties its API calls together in the server logs.
			cmd.SetContext(contextutils.WithRequestID(cmd.Context(), uuid.NewString()))
			return app.setup(cmd.Context())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.Close()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Fprintf(app.ErrOut, "Error showing help: %v\n", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.ServerURL, "server", "", "API server URL (default $"+ServerEnv+" or http://localhost:<server.port>)")
	flags.StringVar(&app.StoreDSN, "store", "", "history store DSN: memory://, sqlite://path or redis://host:port/db (default history.store)")
	flags.StringVar(&app.ConfigFile, "config", "", "config file (default $"+config.ConfigFileEnv+" or config.yaml)")

	rootCmd.AddCommand(ocrCmd(app))
	rootCmd.AddCommand(generateCmd(app))
	rootCmd.AddCommand(quizCmd(app))
	rootCmd.AddCommand(HistoryCommands(app))
	rootCmd.AddCommand(SettingsCommands(app))
	rootCmd.AddCommand(healthCmd(app))

	return rootCmd
}

// setup fills every resource that was not injected.
func (a *App) setup(ctx context.Context) error {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.ErrOut == nil {
		a.ErrOut = os.Stderr
	}
	if a.In == nil {
		a.In = os.Stdin
	}
	if a.IsTerminal == nil {
		a.IsTerminal = func() bool { return false }
	}
	if a.Now == nil {
		a.Now = time.Now
	}

	if a.Config == nil {
		if a.ConfigFile != "" {
			if err := os.Setenv(config.ConfigFileEnv, a.ConfigFile); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to set %s: %v", config.ConfigFileEnv, err)
			}
		}
		cfg, err := config.NewConfig()
		if err != nil {
			return contextutils.WrapError(err, "failed to load configuration")
		}
		a.Config = cfg
	}

	if a.Logger == nil {
		// Only errors reach the terminal; the CLI never exports telemetry.
		a.Config.OpenTelemetry.EnableTracing = false
		a.Config.OpenTelemetry.EnableMetrics = false
		a.Config.OpenTelemetry.EnableLogging = true
		a.Config.OpenTelemetry.Endpoint = ""
		tp, mp, logger, err := observability.SetupObservability(&a.Config.OpenTelemetry, "learnctl", "error")
		if err != nil {
			return contextutils.WrapError(err, "failed to initialize logging")
		}
		a.Logger = logger
		a.closers = append(a.closers, func() error {
			if sdkTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
				_ = sdkTP.Shutdown(context.Background())
			}
			if mp != nil {
				_ = mp.Shutdown(context.Background())
			}
			_ = logger.Sync()
			return nil
		})
	}

	if a.Store == nil {
		dsn := a.StoreDSN
		if dsn == "" {
			dsn = a.Config.History.Store
		}
		backend, err := history.OpenBackend(ctx, dsn, a.Config.History.QuotaBytes, a.Logger)
		if err != nil {
			return contextutils.WrapError(err, "failed to open history store")
		}
		a.Store = history.NewStore(backend, a.Config.History.RetentionDays, a.Logger)
		a.closers = append(a.closers, a.Store.Close)
	}

	if a.Client == nil {
		serverURL := a.ServerURL
		if serverURL == "" {
			serverURL = os.Getenv(ServerEnv)
		}
		if serverURL == "" {
			serverURL = "http://localhost:" + a.Config.Server.Port
		}
		a.Client = apiclient.New(serverURL, apiclient.WithCache(cachepolicy.NewResponseCache(config.CacheFirstMaxAge)))
	}
	return nil
}

// Close releases what setup opened, newest first.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

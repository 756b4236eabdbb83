package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"booklet-cli/internal/format"
	"booklet-cli/internal/logging"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/remote"
	"booklet-cli/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	DBPath     string
	RemoteURL  string
	LogLevel   string
	PrettyJSON bool
	Format     string

	cfg     *store.Config
	log     *zap.Logger
	closers []func() error
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "booklet",
		Short:        "Compose exam booklets from versioned questions",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a booklet and seed the question catalogue
  booklet booklets create --title "Midterm" --subject Physics
  booklet questions add --code P-1 --title "Free fall" --subject Physics

  # Edit interactively
  booklet tui 1

  # Scripted edits (use --dry-run to print the fallback plan)
  booklet compose 1 --add 4,5 --move 5:1 --remove 2

  # Serve the store over HTTP and point another CLI at it
  booklet serve --addr :8080
  booklet --remote http://localhost:8080 booklets list
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		app.close()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.DBPath, "db", "", "Path to the sqlite database (default: config db_path, $BOOKLET_DB, ~/.booklet/booklets.sqlite)")
	cmd.PersistentFlags().StringVar(&app.RemoteURL, "remote", "", "Base URL of a booklet server; when set, commands go over HTTP instead of the local db")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("BOOKLET_FORMAT", "json"), "Output format (json|yaml|table)")

	cmd.AddCommand(newBookletsCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newQuestionsCmd(app))
	cmd.AddCommand(newComposeCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

func (app *App) init() error {
	cfg, err := store.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.cfg = cfg

	level := cfg.EffectiveLogLevel()
	if s := strings.TrimSpace(app.LogLevel); s != "" {
		level = s
	}
	if level == "" {
		level = "warn"
	}
	log, err := logging.New(logging.Options{Level: level, Development: cfg.Log.Development})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	app.log = log
	return nil
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		_ = app.closers[i]()
	}
	app.closers = nil
	if app.log != nil {
		_ = app.log.Sync()
	}
}

func (app *App) logger() *zap.Logger {
	if app.log == nil {
		return zap.NewNop()
	}
	return app.log
}

func (app *App) config() *store.Config {
	if app.cfg == nil {
		return &store.Config{}
	}
	return app.cfg
}

func (app *App) remoteURL() string {
	if s := strings.TrimSpace(app.RemoteURL); s != "" {
		return s
	}
	return app.config().EffectiveRemoteURL()
}

// openStore opens the local sqlite store regardless of --remote (serve needs the real db).
func (app *App) openStore(ctx context.Context) (*store.Store, error) {
	path := strings.TrimSpace(app.DBPath)
	if path == "" {
		p, err := app.config().EffectiveDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	st, err := store.Open(ctx, path, store.WithBulkReplace(app.config().BulkReplaceEnabled()))
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.Close)
	return st, nil
}

// backend returns the booklet source commands operate on: the remote server when one is
// configured, the local store otherwise.
func (app *App) backend(ctx context.Context) (store.Backend, error) {
	if u := app.remoteURL(); u != "" {
		return remote.New(u, remote.WithTimeout(app.config().EffectiveHTTPTimeout()))
	}
	return app.openStore(ctx)
}

func (app *App) reconciler(b store.Backend) *reconcile.Reconciler {
	r := reconcile.New(b, app.logger())
	if off := app.config().DisplaceOffset; off > 0 {
		r.DisplaceOffset = off
	}
	return r
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

// writeData wraps data in the {"data": ...} envelope, except for table output where the
// payload renders itself.
func writeData(cmd *cobra.Command, app *App, data any) error {
	if t, ok := data.(format.Tabular); ok && strings.EqualFold(strings.TrimSpace(app.Format), "table") {
		return format.WriteTable(cmd.OutOrStdout(), t)
	}
	return writeOut(cmd, app, map[string]any{"data": data})
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

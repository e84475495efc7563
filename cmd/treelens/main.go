package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oxhq/treelens/db"
	"github.com/oxhq/treelens/internal/config"
	"github.com/oxhq/treelens/internal/registry"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// errReported is returned when failures were already printed.
var errReported = errors.New("failed")

// app carries what every command shares once flags and configuration are resolved.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry

	envFiles  []string
	logLevel  string
	dbPath    string
	noJournal bool
}

func main() {
	ctx := context.Background()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "treelens",
		Short: "Query and edit YAML documents through path expressions",
		Long: `treelens parses files into trees, selects nodes with path expressions and
edits them through grammar-aware views. Edits are dry runs unless --commit is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "Environment files to load (default .env)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides TREELENS_LOG_LEVEL)")
	flags.StringVar(&a.dbPath, "db", "", "Journal database path or libsql URL (overrides TREELENS_DB_PATH)")
	flags.BoolVar(&a.noJournal, "no-journal", false, "Do not record runs in the journal")

	rootCmd.AddCommand(
		newQueryCmd(a),
		newAppendCmd(a),
		newSetCmd(a),
		newHistoryCmd(a),
		newGrammarsCmd(a),
	)
	return rootCmd
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if cfg.LogLevel, err = config.ParseLevel(a.logLevel); err != nil {
			return err
		}
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.noJournal {
		cfg.Journal = false
	}

	a.cfg = cfg
	a.logger = config.NewLogger(cfg.LogLevel, stderr)
	a.registry = registry.Builtin()
	return nil
}

// openJournal connects to the configured journal. The returned close func is never nil.
func (a *app) openJournal() (*db.Journal, func(), error) {
	conn, err := db.Connect(db.Config{
		DSN:       a.cfg.DBPath,
		Driver:    a.cfg.DBDriver,
		AuthToken: a.cfg.DBAuthToken,
		Debug:     a.cfg.DBDebug,
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("open journal: %w", err)
	}
	return db.NewJournal(conn), func() {
		if err := db.Close(conn); err != nil {
			a.logger.Warn("closing journal failed", "error", err)
		}
	}, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

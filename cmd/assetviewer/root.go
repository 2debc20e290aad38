package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chalkpe/assetviewer"
	"github.com/chalkpe/assetviewer/internal/config"
	"github.com/chalkpe/assetviewer/internal/locate"
)

// app holds state shared by every subcommand.
type app struct {
	getenv func(string) string

	// Global flags
	configPath string
	storePath  string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	a := &app{getenv: getenv}

	root := &cobra.Command{
		Use:   "assetviewer",
		Short: "Export game assets into a readable directory tree",
		Long: `assetviewer reads a version manifest from a local asset store and copies
every hashed object it names to a file named after its logical path.

The store is the directory holding indexes/ and objects/; a game directory
containing assets/ is accepted as well. When no store is given, the
platform's default game directory is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (or set "+config.EnvConfig+")")
	flags.StringVarP(&a.storePath, "store", "s", "", "Asset store or game directory (or set "+config.EnvStore+")")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: auto, text, json")

	root.AddCommand(newVersionsCmd(a))
	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newExportCmd(a))
	return root
}

// setup loads configuration and applies global flags over it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.getenv)
	if err != nil {
		return err
	}
	if a.storePath != "" {
		cfg.Store = a.storePath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = newLogger(cmd.ErrOrStderr(), level, cfg.Log.Format).With(
		slog.String("command", cmd.Name()),
	)
	return nil
}

// openStore resolves the configured store, falling back to the platform
// default game directory.
func (a *app) openStore() (*assetviewer.Store, error) {
	path := a.cfg.Store
	if path == "" {
		path = locate.DefaultGameDir()
	}
	store, err := assetviewer.ResolveStore(path)
	if err != nil {
		return nil, fmt.Errorf("%w (use --store to choose one)", err)
	}
	a.logger.Debug("store resolved", slog.String("root", store.Root()))
	return store, nil
}

// newLogger creates a structured logger writing to w.
// With format auto, a terminal gets slog.TextHandler output and anything
// else (pipes, CI, files) gets slog.JSONHandler output.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case config.FormatJSON:
		handler = slog.NewJSONHandler(w, options)
	case config.FormatText:
		handler = slog.NewTextHandler(w, options)
	default:
		if isTerminal(w) {
			handler = slog.NewTextHandler(w, options)
		} else {
			handler = slog.NewJSONHandler(w, options)
		}
	}
	return slog.New(handler)
}

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

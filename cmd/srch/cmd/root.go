// Package cmd provides the CLI commands for srch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpopa-dp/srch/internal/config"
	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/logging"
	"github.com/rpopa-dp/srch/internal/profiling"
	"github.com/rpopa-dp/srch/pkg/version"
)

// annotationNoConfig marks commands that run without loading configuration.
const annotationNoConfig = "srch/no-config"

// globals holds persistent flags and the state built from them before a
// subcommand runs.
type globals struct {
	dir     string
	backend string
	dbPath  string
	debug   bool
	profile profiling.Options

	cfg        *config.Config
	session    *profiling.Session
	logCleanup func()
}

// InvalidCommandError reports an unknown subcommand.
type InvalidCommandError struct {
	Name string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command %q", e.Name)
}

// NewRootCmd creates the root command for the srch CLI.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "srch",
		Short: "Full-text TF-IDF search over a document collection",
		Long: `srch indexes plain-text documents and answers free-text queries with the
ten best documents ranked by TF-IDF.

Documents come from a directory, a Wikipedia XML dump or a Kafka topic.
The index lives in SQLite (default), Postgres or memory.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/srch/config.yaml)
  3. Project config (.srch.yaml, .srch.yml or .srch.toml)
  4. Environment variables (SRCH_*)
  5. Command-line flags`,
		Version:       version.Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &InvalidCommandError{Name: args[0]}
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return g.teardown()
		},
	}

	cmd.SetVersionTemplate("srch version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.dir, "dir", "C", ".", "Directory searched for the project config file")
	flags.StringVar(&g.backend, "backend", "", "Storage backend: sqlite, sqlite3, postgres, memory (overrides storage.backend)")
	flags.StringVar(&g.dbPath, "db", "", "Index database path (overrides storage.path)")
	flags.BoolVar(&g.debug, "debug", false, "Enable debug logging to ~/.srch/logs/")
	flags.StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	flags.StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	flags.StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration, installs the logger and starts profiling.
func (g *globals) setup(cmd *cobra.Command) error {
	logCfg := logging.DefaultConfig()

	if cmd.Annotations[annotationNoConfig] == "" {
		cfg, err := config.Load(g.dir)
		if err != nil {
			return err
		}
		if g.backend != "" {
			cfg.Storage.Backend = g.backend
		}
		if g.dbPath != "" {
			cfg.Storage.Path = g.dbPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		g.cfg = cfg
		logCfg.Level = cfg.Logging.Level
		logCfg.FilePath = cfg.Logging.File
	}

	if g.debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.logCleanup = cleanup
	slog.SetDefault(logger)
	if g.debug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Short()))
	}

	if g.profile.Enabled() {
		g.session, err = profiling.Start(g.profile)
		if err != nil {
			return err
		}
	}
	return nil
}

// teardown stops profiling and flushes the log file.
func (g *globals) teardown() error {
	var err error
	if g.session != nil {
		err = g.session.Stop()
		g.session = nil
	}
	if g.logCleanup != nil {
		g.logCleanup()
		g.logCleanup = nil
	}
	return err
}

// Execute runs the root command against os.Args and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

// printError writes err for a terminal user.
func printError(w io.Writer, err error) {
	var invalid *InvalidCommandError
	if errors.As(err, &invalid) {
		_, _ = fmt.Fprintf(w, "ERROR: %s\n", invalid.Error())
		return
	}
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(w, "Interrupted")
		return
	}
	_, _ = fmt.Fprint(w, srcherr.FormatForCLI(err))
}

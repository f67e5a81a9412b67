// Package cli implements the hcb command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ImShyMike/hcb/internal/config"
	"github.com/ImShyMike/hcb/internal/engine"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Options holds the state shared by all commands. It is filled before a
// command runs.
type Options struct {
	Config config.Config
	DB     *gorm.DB

	// Now is the clock of the engine. If nil, the wall clock is used.
	Now func() time.Time
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Options) engine() *engine.Engine {
	e := engine.New(o.DB, o.Config, engine.Providers(o.Config)...)
	if o.Now != nil {
		e.WithClock(o.Now)
	}
	return e
}

// NewRootCommand creates the hcb command with all subcommands. opts is
// filled when a subcommand runs.
func NewRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hcb",
		Short: "Transaction grouping and reconciliation engine",
		Long: `hcb imports raw bank, card and subsystem transactions, groups them into
canonical transactions, settles pending transactions, maps everything to
events and calculates fees.

Configuration is read from the environment and an optional .env file.`,
		Version:       router.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
	}

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewFixCommand(opts))
	cmd.AddCommand(NewNukeCommand(opts))
	cmd.AddCommand(NewAnomaliesCommand(opts))
	cmd.AddCommand(NewTransitionCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Execute runs the hcb command. SIGINT and SIGTERM cancel the running
// command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &Options{}
	err := NewRootCommand(opts).ExecuteContext(ctx)
	if cerr := opts.close(); cerr != nil {
		log.Error().Err(cerr).Msg("Closing the database failed")
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (o *Options) setup(logOutput io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	setupLogging(cfg, logOutput)

	if dir, ok := sqliteDir(cfg.DatabaseDSN); ok {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("data directory could not be created: %w", err)
		}
	}

	if err := models.Connect(cfg.DatabaseDSN); err != nil {
		return err
	}

	o.Config = cfg
	o.DB = models.DB
	return nil
}

func (o *Options) close() error {
	if o.DB == nil {
		return nil
	}
	defer func() { o.DB = nil }()

	sqlDB, err := o.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// setupLogging configures gin and the global logger.
//
// gin uses debug as the default mode, we use release. The log format
// defaults to human readable for debug mode and JSON otherwise.
func setupLogging(cfg config.Config, output io.Writer) {
	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	if (cfg.LogFormat == "" && gin.IsDebugging()) || cfg.LogFormat == "human" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	level := zerolog.InfoLevel
	if gin.IsDebugging() {
		level = zerolog.DebugLevel
	}
	if cfg.LogLevel != "" {
		if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = l
		}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(output).With().Timestamp().Logger()
}

// sqliteDir returns the directory of an SQLite database file.
func sqliteDir(dsn string) (string, bool) {
	if strings.Contains(dsn, "://") || strings.HasPrefix(dsn, "host=") {
		return "", false
	}

	path, _, _ := strings.Cut(dsn, "?")
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return "", false
	}

	return filepath.Dir(path), true
}

var ErrImportsFailed = errors.New("some imports failed")

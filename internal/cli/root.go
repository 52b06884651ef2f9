// Package cli wires the gosh binary: flag surface, rc file resolution,
// logger construction and the hand-off into the interactive shell.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/gosh/internal/config"
	"github.com/Paintersrp/gosh/internal/readline"
	"github.com/Paintersrp/gosh/internal/shell"
	"github.com/Paintersrp/gosh/internal/tui"
)

const rcFileName = ".gosh.yaml"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{}

	root := &cobra.Command{
		Use:   "gosh",
		Short: "Job-control shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, ctx)
		},
	}

	root.PersistentFlags().StringVar(&ctx.configPath, "config", "", "Path to the rc file (default ~/"+rcFileName+")")
	root.Flags().StringVarP(&ctx.command, "command", "c", "", "Execute a command line and exit")
	root.Flags().StringVar(&ctx.historyFile, "history-file", "", "Override the history file path")
	root.Flags().IntVar(&ctx.maxJobs, "max-jobs", 0, "Override the job table capacity")
	root.Flags().StringVar(&ctx.logFile, "log-file", "", "Write JSON diagnostics to this file")
	root.Flags().StringVar(&ctx.logLevel, "log-level", "", "Diagnostics level (debug, info, warn, error)")
	root.Flags().StringVar(&ctx.apiAddr, "api", "", "Listen address for the control API (enables it)")

	root.AddCommand(newConfigCmd(ctx))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint. There is no NotifyContext here: signal
// dispositions belong to the shell session itself, which must leave SIGINT
// and SIGTERM at their defaults for job control to behave.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	configPath  string
	command     string
	historyFile string
	maxJobs     int
	logFile     string
	logLevel    string
	apiAddr     string

	cfgOnce sync.Once
	cfg     *config.Config
	cfgErr  error
}

// loadConfig resolves the rc file once and folds the flag overrides in.
// An explicit --config path must exist; the default ~/.gosh.yaml may be
// absent, in which case built-in defaults apply.
func (c *context) loadConfig() (*config.Config, error) {
	c.cfgOnce.Do(func() {
		path := c.configPath
		if path != "" {
			if _, err := os.Stat(path); err != nil {
				c.cfgErr = fmt.Errorf("open rc file: %w", err)
				return
			}
		} else {
			path = defaultConfigPath()
		}

		var cfg *config.Config
		if path == "" {
			cfg = config.Default()
		} else {
			loaded, err := config.Load(path)
			if err != nil {
				c.cfgErr = err
				return
			}
			cfg = loaded
		}

		if c.historyFile != "" {
			cfg.Session.HistoryFile = config.ExpandHome(c.historyFile)
		}
		if c.maxJobs > 0 {
			cfg.Session.MaxJobs = c.maxJobs
		}
		if c.logFile != "" || c.logLevel != "" {
			if cfg.Logging == nil {
				cfg.Logging = &config.LoggingSpec{}
			}
			if c.logFile != "" {
				cfg.Logging.File = config.ExpandHome(c.logFile)
			}
			if c.logLevel != "" {
				cfg.Logging.Level = c.logLevel
			}
		}

		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			c.cfgErr = err
			return
		}
		c.cfg = cfg
	})
	return c.cfg, c.cfgErr
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, rcFileName)
}

// buildLogger opens the diagnostics sink described by the logging block.
// With no log file configured, diagnostics are discarded.
func buildLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Logging == nil || cfg.Logging.File == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}

	file, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)})
	return slog.New(handler), func() { file.Close() }, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runShell(cmd *cobra.Command, ctx *context) error {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := shell.Options{
		Prompt:      cfg.Session.Prompt,
		MaxJobs:     cfg.Session.MaxJobs,
		HistoryPath: cfg.Session.HistoryFile,
		Logger:      logger,
		Monitor:     tui.Run,
	}
	if ctx.command != "" {
		opts.Reader = readline.FromString(ctx.command)
	}
	sh := shell.New(opts)

	stopAPI, err := startControlAPI(cmd, ctx, cfg, sh)
	if err != nil {
		return err
	}
	if stopAPI != nil {
		defer func() {
			if err := stopAPI(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
		}()
	}

	if code := sh.Run(); code != 0 {
		return fmt.Errorf("session ended with status %d", code)
	}
	return nil
}

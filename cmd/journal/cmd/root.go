package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"trading-journal/internal/backend"
	"trading-journal/internal/config"
	"trading-journal/internal/logger"
	"trading-journal/internal/remote"
	"trading-journal/internal/trace"
	"trading-journal/internal/tracker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	username   string
	password   string
	outputFmt  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "journal",
	Short: "A trading journal with compounding trade values",
	Long: `Journal records trades, tracks the compounding value of the next trade
and reports balance, win rate and ROI against the starting balance.

Every command signs in with --username/--password (or JOURNAL_USERNAME and
JOURNAL_PASSWORD) against the backend configured in <config>/config.yml.

Examples:
  journal signup --email ana@example.com -u ana -p secret123
  journal add --pair BTCUSDT --type profit --percent 12
  journal list --type loss --sort percent --order asc
  journal stats -o yaml
  journal import trades.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and prints a failing command's error for the user.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", tracker.Message(err))
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "./configs", "directory holding config.yml")
	pf.StringVarP(&username, "username", "u", os.Getenv("JOURNAL_USERNAME"), "username to sign in with")
	pf.StringVarP(&password, "password", "p", os.Getenv("JOURNAL_PASSWORD"), "password to sign in with")
	pf.StringVarP(&outputFmt, "output", "o", "table", "output format: table, json or yaml")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warn")
}

// app holds what one CLI invocation shares across its commands.
type app struct {
	cfg        config.Config
	log        *zap.Logger
	newBackend remote.Factory
	closeStore func() error
}

func setup() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := cfg.Logger
	if !verbose {
		logCfg.Level = "warn"
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(cfg.Tracing.Enabled, os.Stderr); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	newBackend, closeStore, err := backend.NewFactory(&cfg, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, newBackend: newBackend, closeStore: closeStore}, nil
}

func (a *app) shutdown() {
	if err := a.closeStore(); err != nil {
		a.log.Warn("Failed to close backend", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
	_ = a.log.Sync()
}

func (a *app) tracker() *tracker.Tracker {
	return tracker.New(a.newBackend(), tracker.Config{
		Timeout:  a.cfg.Backend.Timeout,
		Defaults: a.cfg.Journal.Settings(),
	}, a.log)
}

// withSession signs in before run and releases the backend afterwards.
func withSession(run func(cmd *cobra.Command, args []string, t *tracker.Tracker) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if username == "" || password == "" {
			return errors.New("credentials required: pass --username and --password or set JOURNAL_USERNAME and JOURNAL_PASSWORD")
		}

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.shutdown()

		t := a.tracker()
		if err := t.Login(cmd.Context(), username, password); err != nil {
			return err
		}
		return run(cmd, args, t)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fwe/internal/config"
	"fwe/internal/history"
	"fwe/internal/logging"
	"fwe/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds the global flags and the per-invocation state built in
// PersistentPreRunE.
type cli struct {
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	cfg   *config.Config
	log   *logging.Logger
	store *history.Store
}

// newRootCmd builds the fwe command tree around c. Callers must call
// c.teardown once the command has finished.
func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fwe",
		Short: "FWE posture-aware scenario client",
		Long: `fwe runs scenarios against the FWE model service.

Given a Posture Index, Conflict Intensity and duration it requests a simulated
outcome (KPIs, diagnostics, notes) and presents it, either once from the
command line or interactively in the dashboard.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: <workspace>/.fwe/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&c.workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newSweepCmd())
	rootCmd.AddCommand(c.newDashboardCmd())
	rootCmd.AddCommand(c.newBatteryCmd())
	rootCmd.AddCommand(c.newHistoryCmd())
	rootCmd.AddCommand(c.newConfigCmd())

	return rootCmd
}

// setup resolves the workspace, loads .env and config, and builds the
// logger and history store.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if c.workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
		c.workspace = cwd
	}

	if err := config.LoadDotEnv(c.workspace); err != nil {
		return err
	}

	path := c.configPath
	if path == "" {
		path = config.DefaultPath(c.workspace)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	c.cfg = cfg

	// The dashboard owns the terminal, so it logs to a file.
	toFile := cmd.Name() == "dashboard"
	c.log, err = logging.New(logging.OptionsFromConfig(cfg.Logging, cfg.LogDir(c.workspace), toFile, c.verbose))
	if err != nil {
		return err
	}

	boot := c.log.Get(logging.CategoryBoot)
	boot.Debug("configuration loaded",
		zap.String("workspace", c.workspace),
		zap.String("config", path))

	if cfg.History.Enabled && recordsHistory(cmd) {
		store, err := history.Open(cfg.HistoryPath(c.workspace), c.log.Get(logging.CategoryHistory))
		if err != nil {
			boot.Warn("run history unavailable", zap.Error(err))
		} else {
			c.store = store
			cmd.SetContext(history.NewContext(cmd.Context(), store))
		}
	}
	return nil
}

// recordsHistory reports whether cmd reads or writes run history.
func recordsHistory(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "run", "sweep", "dashboard", "history", "battery":
		return true
	}
	return false
}

func (c *cli) teardown() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
	if c.log != nil {
		_ = c.log.Close()
		c.log = nil
	}
}

// execute runs the command line args and releases the store and logger
// whether or not the command succeeded.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	defer c.teardown()

	rootCmd := newRootCmd(c)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

// newClient builds the transport client for the resolved endpoint. host is
// the --host/--api flag value; a zero timeout falls back to config.
func (c *cli) newClient(host string, timeout time.Duration) (*transport.Client, string, error) {
	endpoint, src := c.cfg.Endpoint(host)
	if err := config.ValidateBaseURL(endpoint); err != nil {
		return nil, "", fmt.Errorf("invalid endpoint from %s: %w", src, err)
	}
	if timeout <= 0 {
		timeout = c.cfg.GetTimeout()
	}

	client, err := transport.New(transport.Config{
		BaseURL: endpoint,
		Timeout: timeout,
		Logger:  c.log.Get(logging.CategoryTransport),
	})
	if err != nil {
		return nil, "", err
	}
	c.log.Get(logging.CategoryBoot).Debug("endpoint resolved",
		zap.String("endpoint", client.Endpoint()),
		zap.String("source", string(src)),
		zap.Duration("timeout", timeout))
	return client, string(src), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

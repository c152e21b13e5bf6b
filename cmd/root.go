package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"dockyard/internal/config"
	"dockyard/internal/docker"
	"dockyard/internal/scheduler"
	"dockyard/internal/session"
	"dockyard/internal/store"
	"dockyard/internal/stream"
	"dockyard/internal/ui"
	"dockyard/pkg/logging"
)

// probeMaxElapsed bounds how long startup waits for the daemon.
const probeMaxElapsed = 3 * time.Second

type rootOptions struct {
	configPath    string
	statsInterval int
	logFile       string
	logLevel      string
	all           bool
}

var opts rootOptions

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dockyard",
	Short: "A lightweight terminal dashboard for Docker",
	Long: `dockyard shows the containers and images of the local Docker daemon and
lets you start, stop, pause, remove, inspect and shell into them.

Stats are only collected for the containers on screen, spread evenly over the
refresh interval, so the dashboard stays cheap on small hosts.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid flags, unreachable daemon)
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runDashboard,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dockyard version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	addFlags(rootCmd, &opts)
}

func addFlags(cmd *cobra.Command, o *rootOptions) {
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dockyard/config.yaml)")
	f.IntVar(&o.statsInterval, "stats-interval", config.Defaults().StatsInterval,
		fmt.Sprintf("seconds between stats refreshes (%d-%d)", config.MinStatsInterval, config.MaxStatsInterval))
	f.StringVar(&o.logFile, "log-file", "", "write logs to this file (logs are discarded when empty)")
	f.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.BoolVar(&o.all, "all", true, "include stopped containers")
}

// resolveConfig loads the config file and lets explicitly set flags override it.
func resolveConfig(cmd *cobra.Command, o rootOptions) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("stats-interval") {
		cfg.StatsInterval = o.statsInterval
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("all") {
		cfg.ShowAll = o.all
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setupLogging sends logs to the configured file. The terminal belongs to
// the dashboard, so without a file everything is discarded.
func setupLogging(cfg config.Config) (io.Closer, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		logging.Init(level, io.Discard)
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.Init(level, f)
	return f, nil
}

type prober interface {
	Probe(ctx context.Context) error
}

// probeDaemon retries the daemon check with exponential backoff until it
// answers or maxElapsed has passed.
func probeDaemon(ctx context.Context, p prober, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(1*time.Second),
		backoff.WithMaxElapsedTime(maxElapsed),
	)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := p.Probe(ctx)
		if err != nil {
			logging.Warn("startup", "docker daemon not reachable (attempt %d): %v", attempt, err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	version := cmd.Root().Version

	logCloser, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logging.Info("startup", "dockyard %s starting (stats every %ds, margin %d rows)",
		version, cfg.StatsInterval, cfg.ViewportMargin)

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := probeDaemon(ctx, cli, probeMaxElapsed); err != nil {
		logging.Error("startup", err, "giving up on docker daemon")
		return fmt.Errorf("cannot reach the docker daemon: %w", err)
	}

	st := store.New(cfg.LogCapacity, cfg.HistoryCapacity)
	st.SetShowAll(cfg.ShowAll)

	gate := scheduler.NewGate(config.MaxInFlight)
	fetcher := scheduler.NewStatsFetcher(gate, cli, st, cfg.ViewportMargin, cfg.StatsPeriod())
	sched := scheduler.New(gate, cli, st, fetcher, scheduler.Options{
		ContainerEvery: config.ContainerRefreshInterval,
		ImageEvery:     config.ImageRefreshInterval,
		StatsEvery:     cfg.StatsPeriod(),
	})
	dispatcher := scheduler.NewDispatcher(gate, cli, sched)
	logs := stream.NewLogStreamer(ctx, gate, cli, st, cfg.LogTail)
	puller := stream.NewPuller(ctx, gate, cli, st, sched)
	shells := session.NewController(session.DockerCLI{}).WithGate(gate)

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx)
	}()

	model := ui.NewModel(ui.Deps{
		Ctx:      ctx,
		Store:    st,
		Commands: dispatcher,
		Lists:    sched,
		Logs:     logs,
		Pulls:    puller,
		Shells:   shells,
		Version:  version,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()

	// Stop background work before the client closes.
	cancel()
	if err := <-schedDone; err != nil {
		logging.Error("startup", err, "scheduler stopped with an error")
	}
	logs.Wait()
	puller.Wait()

	if runErr != nil {
		return fmt.Errorf("dashboard: %w", runErr)
	}
	logging.Info("startup", "dockyard exited")
	return nil
}

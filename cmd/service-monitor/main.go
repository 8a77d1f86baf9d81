package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/alerts"
	"github.com/ibraheemcisse/service-monitoring-script/internal/config"
	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
	"github.com/ibraheemcisse/service-monitoring-script/internal/metrics"
	"github.com/ibraheemcisse/service-monitoring-script/internal/monitor"
	"github.com/ibraheemcisse/service-monitoring-script/internal/sysinfo"
)

//go:embed config.example.yml
var configExample []byte

func main() {
	configFile := flag.String("config", "", "path to config file")
	dataDir := flag.String("data-dir", "", "path to data directory")
	verbose := flag.Bool("verbose", false, "log probe and retry diagnostics")
	interval := flag.Duration("interval", 0, "re-run every interval instead of exiting (0 = single run)")
	exitCode := flag.Bool("exit-code", false, "exit nonzero when any service is down (single run only)")
	flag.Parse()

	logger.Init(*verbose)

	configPath, baseDir, err := resolveConfigPath(*configFile)
	if err != nil {
		logger.Error("INIT", "Failed to resolve config path: %v", err)
		os.Exit(1)
	}

	if err := ensureDefaultConfig(configPath, configExample); err != nil {
		logger.Error("INIT", "Failed to ensure default config: %v", err)
		os.Exit(1)
	}

	if *dataDir == "" {
		*dataDir = filepath.Join(baseDir, "data")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("INIT", "Failed to load config: %v", err)
		os.Exit(1)
	}
	applyDataDirDefaults(cfg, *dataDir)
	logger.Debug("INIT", "Config loaded from %s (%d services)", configPath, len(cfg.Services))

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("INIT", "Failed to open alert state store: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	notifier := alerts.NewNotifier(cfg.Alerts.Channels)
	alertMgr := alerts.NewManager(store, notifier, cfg.Alerts.CooldownDuration())

	httpTimeout := config.ParseDuration(cfg.Advanced.HTTPTimeout)
	mon := monitor.New(cfg,
		sysinfo.NewSystemd(),
		sysinfo.NewProcSampler(),
		sysinfo.NewJournal(),
		sysinfo.NewHTTPProber(httpTimeout),
		alertMgr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("SYS", "Shutting down...")
		cancel()
	}()

	if *interval <= 0 {
		report := mon.RunOnce(ctx)
		report.Render(os.Stdout)
		if *exitCode && report.DownCount() > 0 {
			os.Exit(1)
		}
		return
	}

	// Watch mode: keep running and optionally expose metrics.
	if cfg.Advanced.MetricsPort > 0 {
		exporter := metrics.NewExporter()
		go exporter.Serve(ctx, cfg.Advanced.MetricsPort)
		runLoop(ctx, mon, *interval, exporter)
		return
	}
	runLoop(ctx, mon, *interval, nil)
}

func runLoop(ctx context.Context, mon *monitor.Monitor, interval time.Duration, exporter *metrics.Exporter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := mon.RunOnce(ctx)
		report.Render(os.Stdout)
		if exporter != nil {
			exporter.Update(report)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func openStore(cfg *config.Config) (alerts.Store, func(), error) {
	if cfg.Alerts.PostgresDSN != "" {
		store, err := alerts.NewPostgresStore(cfg.Alerts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	if cfg.Alerts.StateFile != "" {
		store, err := alerts.NewFileStore(cfg.Alerts.StateFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
	// No persistence configured: dedup only holds within this invocation.
	logger.Warn("INIT", "No alert state backend configured, using in-memory store")
	return alerts.NewMemoryStore(), func() {}, nil
}

func resolveConfigPath(configFile string) (string, string, error) {
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return "", "", err
		}
		return abs, filepath.Dir(abs), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	baseDir := filepath.Join(home, ".service-monitor")
	return filepath.Join(baseDir, "config.yml"), baseDir, nil
}

func ensureDefaultConfig(path string, example []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if len(example) == 0 {
		return fmt.Errorf("embedded config.example.yml is empty")
	}

	return os.WriteFile(path, example, 0o644)
}

func applyDataDirDefaults(cfg *config.Config, dataDir string) {
	if cfg.Alerts.StateFile == "" && cfg.Alerts.PostgresDSN == "" {
		cfg.Alerts.StateFile = filepath.Join(dataDir, "alert-state.json")
	}
}

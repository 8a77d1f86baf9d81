package monitor

import (
	"context"
	"os"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/alerts"
	"github.com/ibraheemcisse/service-monitoring-script/internal/config"
	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
	"github.com/ibraheemcisse/service-monitoring-script/internal/probe"
	"github.com/ibraheemcisse/service-monitoring-script/internal/sysinfo"
)

// StatusSource answers whether a service is active and resolves its main
// process id and start time.
type StatusSource interface {
	IsActive(ctx context.Context, unit string) (bool, error)
	MainPID(ctx context.Context, unit string) (int32, time.Time, error)
}

// ResourceSource samples CPU and memory usage for a process id.
type ResourceSource interface {
	Sample(ctx context.Context, pid int32) (sysinfo.Usage, error)
}

// LogSource counts error-marked log lines in a trailing window and provides
// a recent excerpt for the report.
type LogSource interface {
	CountErrors(ctx context.Context, unit string, window time.Duration, marker string) (int, error)
	Tail(ctx context.Context, unit string, n int) ([]string, error)
}

// Prober performs a single HTTP health-endpoint check.
type Prober interface {
	Check(ctx context.Context, url string) error
}

// Monitor runs the full check sequence over the configured service list.
type Monitor struct {
	cfg       *config.Config
	status    StatusSource
	resources ResourceSource
	logs      LogSource
	httpProbe Prober
	runner    *probe.Runner
	alerts    *alerts.Manager
	hostname  string

	serviceTimeout time.Duration
	logWindow      time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

func New(cfg *config.Config, status StatusSource, resources ResourceSource, logs LogSource, httpProbe Prober, alertMgr *alerts.Manager) *Monitor {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Monitor{
		cfg:            cfg,
		status:         status,
		resources:      resources,
		logs:           logs,
		httpProbe:      httpProbe,
		runner:         probe.NewRunner(cfg.Advanced.ProbeAttempts, config.ParseDuration(cfg.Advanced.ProbeBackoff)),
		alerts:         alertMgr,
		hostname:       hostname,
		serviceTimeout: config.ParseDuration(cfg.Advanced.ServiceTimeout),
		logWindow:      config.ParseDuration(cfg.Advanced.LogWindow),
		now:            time.Now,
	}
}

// RunOnce evaluates every configured service in order and returns the report.
// One service's failure, or an unreachable collaborator, never aborts the
// evaluation of the rest of the stack.
func (m *Monitor) RunOnce(ctx context.Context) *Report {
	report := &Report{
		Host:        m.hostname,
		GeneratedAt: m.now(),
	}

	for _, svc := range m.cfg.Services {
		if err := ctx.Err(); err != nil {
			logger.Warn("RUN", "Run cancelled, skipping remaining services: %v", err)
			break
		}

		svcCtx := ctx
		cancel := func() {}
		if m.serviceTimeout > 0 {
			svcCtx, cancel = context.WithTimeout(ctx, m.serviceTimeout)
		}
		sr := m.evaluateService(svcCtx, svc)
		cancel()

		report.Services = append(report.Services, sr)
	}

	return report
}

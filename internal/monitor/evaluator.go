package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/alerts"
	"github.com/ibraheemcisse/service-monitoring-script/internal/config"
	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
)

// errNotActive marks a negative probe result, as opposed to a collaborator
// that could not be queried at all. The two must never be conflated: an
// unreachable status source is not a down service.
var errNotActive = errors.New("service is not active")

func (m *Monitor) evaluateService(ctx context.Context, svc config.ServiceConfig) ServiceReport {
	now := m.now()
	unit := svc.SystemdUnit()
	sr := ServiceReport{Name: svc.Name}

	m.checkStatus(ctx, svc, unit, now, &sr)
	if svc.HealthURL != "" {
		m.checkHealth(ctx, svc, now, &sr)
	}
	m.checkResources(ctx, svc, unit, now, &sr)
	m.checkLogErrors(ctx, svc, unit, now, &sr)

	if excerpt, err := m.logs.Tail(ctx, unit, m.cfg.Advanced.ExcerptLines); err == nil {
		sr.Excerpt = excerpt
	} else {
		logger.Debug("RUN", "%s: log excerpt unavailable: %v", svc.Name, err)
	}

	return sr
}

// checkStatus drives the down/up state machine. A successful probe after a
// recorded outage is a recovery, which resets every condition for the
// service.
func (m *Monitor) checkStatus(ctx context.Context, svc config.ServiceConfig, unit string, now time.Time, sr *ServiceReport) {
	err := m.runner.Do(ctx, svc.Name+" status", func(ctx context.Context) error {
		active, aerr := m.status.IsActive(ctx, unit)
		if aerr != nil {
			return aerr
		}
		if !active {
			return fmt.Errorf("%w", errNotActive)
		}
		return nil
	})

	switch {
	case err == nil:
		sr.StatusKnown = true
		sr.Running = true
		downKey := alerts.Key{Service: svc.Name, Condition: alerts.ConditionDown}
		if m.alerts.Clear(ctx, now, downKey) {
			// The service was in a recorded outage. Recovery resets
			// everything; each condition re-fires fresh if still breached.
			m.alerts.ClearService(ctx, now, svc.Name)
		}

		pid, startedAt, perr := m.status.MainPID(ctx, unit)
		if perr != nil {
			logger.Warn("RUN", "%s: cannot resolve main PID: %v", svc.Name, perr)
			return
		}
		sr.PIDKnown = true
		sr.PID = pid
		sr.StartedAt = startedAt

	case errors.Is(err, errNotActive):
		sr.StatusKnown = true
		sr.Running = false
		sr.Problems = append(sr.Problems, "down")
		m.alerts.Fire(ctx, now, alerts.Event{
			Key:      alerts.Key{Service: svc.Name, Condition: alerts.ConditionDown},
			Status:   alerts.StatusFiring,
			Severity: "critical",
			Title:    fmt.Sprintf("%s is down", svc.Name),
			Message: fmt.Sprintf("Service %q is not running on host %s as of %s. Restart with `systemctl restart %s` and inspect `journalctl -u %s -n 50`.",
				svc.Name, m.hostname, now.Format(time.RFC3339), unit, unit),
			Details: []alerts.Detail{
				{Label: "Host", Value: m.hostname},
				{Label: "Unit", Value: unit},
			},
			Timestamp: now,
		})

	default:
		// Status source unreachable: neither up nor down. No fire, no clear.
		logger.Warn("RUN", "%s: status unknown: %v", svc.Name, err)
	}
}

// checkHealth probes the configured health URL. It runs independently of the
// service's own process status: a proxy in front of a dead upstream answers
// systemctl but not HTTP.
func (m *Monitor) checkHealth(ctx context.Context, svc config.ServiceConfig, now time.Time, sr *ServiceReport) {
	err := m.runner.Do(ctx, svc.Name+" health", func(ctx context.Context) error {
		return m.httpProbe.Check(ctx, svc.HealthURL)
	})

	key := alerts.Key{Service: svc.Name, Condition: alerts.ConditionHealth}
	if err == nil {
		sr.Health = HealthOK
		m.alerts.Clear(ctx, now, key)
		return
	}
	if ctx.Err() != nil {
		// Run budget exhausted, not a verdict on the endpoint.
		logger.Warn("RUN", "%s: health check aborted: %v", svc.Name, err)
		return
	}

	sr.Health = HealthFailed
	sr.Problems = append(sr.Problems, "health")
	m.alerts.Fire(ctx, now, alerts.Event{
		Key:      key,
		Status:   alerts.StatusFiring,
		Severity: "critical",
		Title:    fmt.Sprintf("%s health check failing", svc.Name),
		Message: fmt.Sprintf("Health endpoint %s is failing on host %s: %v",
			svc.HealthURL, m.hostname, err),
		Details: []alerts.Detail{
			{Label: "Host", Value: m.hostname},
			{Label: "URL", Value: svc.HealthURL},
		},
		Timestamp: now,
	})
}

// checkResources samples CPU and memory for the service's main process and
// compares each against its threshold independently. With no resolvable PID
// the resource conditions are undefined, not failed: no fire, no clear.
func (m *Monitor) checkResources(ctx context.Context, svc config.ServiceConfig, unit string, now time.Time, sr *ServiceReport) {
	if !sr.Running {
		return
	}
	if !sr.PIDKnown || sr.PID == 0 {
		logger.Debug("RUN", "%s: resource usage not available (no main PID)", svc.Name)
		return
	}

	usage, err := m.resources.Sample(ctx, sr.PID)
	if err != nil {
		// An unreadable sample is unknown, never zero.
		logger.Warn("RUN", "%s: resource sample unavailable: %v", svc.Name, err)
		return
	}
	sr.CPU = Sample{Value: usage.CPUPercent, Known: true}
	sr.Memory = Sample{Value: usage.MemoryPercent, Known: true}

	m.checkThreshold(ctx, svc.Name, now, sr, alerts.ConditionCPU, "CPU", usage.CPUPercent, m.cfg.Thresholds.CPUPercent)
	m.checkThreshold(ctx, svc.Name, now, sr, alerts.ConditionMemory, "Memory", usage.MemoryPercent, m.cfg.Thresholds.MemoryPercent)
}

func (m *Monitor) checkThreshold(ctx context.Context, service string, now time.Time, sr *ServiceReport, cond alerts.Condition, label string, value, threshold float64) {
	key := alerts.Key{Service: service, Condition: cond}
	if value > threshold {
		sr.Problems = append(sr.Problems, fmt.Sprintf("%s %.1f%% > %.1f%%", cond, value, threshold))
		m.alerts.Fire(ctx, now, alerts.Event{
			Key:      key,
			Status:   alerts.StatusFiring,
			Severity: "warning",
			Title:    fmt.Sprintf("%s %s usage high", service, cond),
			Message: fmt.Sprintf("%s usage for service %q on host %s is %.1f%% (threshold %.1f%%)",
				label, service, m.hostname, value, threshold),
			Details: []alerts.Detail{
				{Label: "Host", Value: m.hostname},
				{Label: "Current", Value: fmt.Sprintf("%.1f%%", value)},
				{Label: "Threshold", Value: fmt.Sprintf("%.1f%%", threshold)},
			},
			Timestamp: now,
		})
		return
	}
	m.alerts.Clear(ctx, now, key)
}

// checkLogErrors counts error-marked lines in the trailing log window. The
// comparison is strictly greater-than: a count equal to the threshold does
// not fire, including count 0 against threshold 0.
func (m *Monitor) checkLogErrors(ctx context.Context, svc config.ServiceConfig, unit string, now time.Time, sr *ServiceReport) {
	count, err := m.logs.CountErrors(ctx, unit, m.logWindow, m.cfg.Advanced.ErrorMarker)
	if err != nil {
		logger.Warn("RUN", "%s: log error count unavailable: %v", svc.Name, err)
		return
	}
	sr.Errors = CountSample{Value: count, Known: true}

	key := alerts.Key{Service: svc.Name, Condition: alerts.ConditionErrors}
	threshold := m.cfg.Thresholds.ErrorThreshold()
	if count > threshold {
		sr.Problems = append(sr.Problems, fmt.Sprintf("errors %d > %d", count, threshold))
		m.alerts.Fire(ctx, now, alerts.Event{
			Key:      key,
			Status:   alerts.StatusFiring,
			Severity: "warning",
			Title:    fmt.Sprintf("%s logging errors", svc.Name),
			Message: fmt.Sprintf("Service %q on host %s logged %d error lines in the last %s (threshold %d)",
				svc.Name, m.hostname, count, m.logWindow, threshold),
			Details: []alerts.Detail{
				{Label: "Host", Value: m.hostname},
				{Label: "Count", Value: fmt.Sprintf("%d", count)},
				{Label: "Threshold", Value: fmt.Sprintf("%d", threshold)},
				{Label: "Window", Value: m.logWindow.String()},
			},
			Timestamp: now,
		})
		return
	}
	m.alerts.Clear(ctx, now, key)
}

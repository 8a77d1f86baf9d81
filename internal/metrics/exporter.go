package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
	"github.com/ibraheemcisse/service-monitoring-script/internal/monitor"
)

// Exporter publishes the latest run's readings as Prometheus gauges. Only
// used in watch mode; a one-shot run has no server to scrape.
type Exporter struct {
	up        *prometheus.GaugeVec
	health    *prometheus.GaugeVec
	cpu       *prometheus.GaugeVec
	memory    *prometheus.GaugeVec
	logErrors *prometheus.GaugeVec
	problems  *prometheus.GaugeVec
	lastRun   prometheus.Gauge
}

func NewExporter() *Exporter {
	e := &Exporter{
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcmon_service_up",
			Help: "Service running status (1=running, 0=down)",
		}, []string{"service"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcmon_service_healthy",
			Help: "Health endpoint status (1=ok, 0=failing)",
		}, []string{"service"}),
		cpu: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcmon_service_cpu_percent",
			Help: "CPU usage of the service main process",
		}, []string{"service"}),
		memory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcmon_service_memory_percent",
			Help: "Memory usage of the service main process",
		}, []string{"service"}),
		logErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcmon_service_log_errors",
			Help: "Error-marked log lines in the trailing window",
		}, []string{"service"}),
		problems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcmon_service_problems",
			Help: "Number of breached conditions for the service in the last run",
		}, []string{"service"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svcmon_last_run_timestamp",
			Help: "Unix timestamp of the last completed run",
		}),
	}

	prometheus.MustRegister(e.up)
	prometheus.MustRegister(e.health)
	prometheus.MustRegister(e.cpu)
	prometheus.MustRegister(e.memory)
	prometheus.MustRegister(e.logErrors)
	prometheus.MustRegister(e.problems)
	prometheus.MustRegister(e.lastRun)

	return e
}

// Update refreshes every gauge from a completed run. Unknown readings keep
// their previous value rather than being forced to zero.
func (e *Exporter) Update(r *monitor.Report) {
	e.lastRun.Set(float64(r.GeneratedAt.Unix()))

	for _, s := range r.Services {
		labels := prometheus.Labels{"service": s.Name}

		if s.StatusKnown {
			upVal := 0.0
			if s.Running {
				upVal = 1.0
			}
			e.up.With(labels).Set(upVal)
		}

		switch s.Health {
		case monitor.HealthOK:
			e.health.With(labels).Set(1)
		case monitor.HealthFailed:
			e.health.With(labels).Set(0)
		}

		if s.CPU.Known {
			e.cpu.With(labels).Set(s.CPU.Value)
		}
		if s.Memory.Known {
			e.memory.With(labels).Set(s.Memory.Value)
		}
		if s.Errors.Known {
			e.logErrors.With(labels).Set(float64(s.Errors.Value))
		}
		e.problems.With(labels).Set(float64(len(s.Problems)))
	}
}

// Serve exposes /metrics until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Info("METRICS", "Metrics server listening on %s", addr)

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("METRICS", "Metrics server failed on %s: %v", addr, err)
	}
}

package monitor

import (
	"fmt"
	"io"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/utils"
)

type HealthState int

const (
	HealthNotChecked HealthState = iota
	HealthOK
	HealthFailed
)

// Sample is a numeric reading that may be unknown. Unknown is distinct from
// zero: it means the collaborator could not be read.
type Sample struct {
	Value float64
	Known bool
}

type CountSample struct {
	Value int
	Known bool
}

type ServiceReport struct {
	Name        string
	StatusKnown bool
	Running     bool
	PIDKnown    bool
	PID         int32
	StartedAt   time.Time
	Health      HealthState
	CPU         Sample
	Memory      Sample
	Errors      CountSample
	Excerpt     []string
	Problems    []string
}

type Report struct {
	Host        string
	GeneratedAt time.Time
	Services    []ServiceReport
}

// RunningCount returns how many services were confirmed running.
func (r *Report) RunningCount() int {
	n := 0
	for _, s := range r.Services {
		if s.StatusKnown && s.Running {
			n++
		}
	}
	return n
}

// DownCount returns how many services were confirmed down.
func (r *Report) DownCount() int {
	n := 0
	for _, s := range r.Services {
		if s.StatusKnown && !s.Running {
			n++
		}
	}
	return n
}

func (r *Report) healthLabel() string {
	if r.DownCount() > 0 {
		return "CRITICAL"
	}
	for _, s := range r.Services {
		if len(s.Problems) > 0 || !s.StatusKnown {
			return "DEGRADED"
		}
	}
	return "HEALTHY"
}

// Render writes the human-readable report.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Service status report - host %s (%s)\n", r.Host, r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%d/%d services running - %s\n\n", r.RunningCount(), len(r.Services), r.healthLabel())

	for _, s := range r.Services {
		fmt.Fprintf(w, "● %s: %s\n", s.Name, s.statusLine(r.GeneratedAt))

		fmt.Fprintf(w, "    cpu: %s  mem: %s  errors: %s\n",
			s.CPU.percentString(), s.Memory.percentString(), s.Errors.countString())

		switch s.Health {
		case HealthOK:
			fmt.Fprintf(w, "    health: OK\n")
		case HealthFailed:
			fmt.Fprintf(w, "    health: FAILING\n")
		}

		if len(s.Excerpt) > 0 {
			fmt.Fprintf(w, "    recent logs:\n")
			for _, line := range s.Excerpt {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}
}

func (s ServiceReport) statusLine(now time.Time) string {
	if !s.StatusKnown {
		return "UNKNOWN (status source unavailable)"
	}
	if !s.Running {
		return "DOWN"
	}
	if !s.PIDKnown || s.PID == 0 {
		return "RUNNING (pid not available)"
	}
	return fmt.Sprintf("RUNNING (pid %d, up %s)", s.PID, utils.FormatUptime(s.StartedAt, now))
}

func (s Sample) percentString() string {
	if !s.Known {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", s.Value)
}

func (s CountSample) countString() string {
	if !s.Known {
		return "n/a"
	}
	return utils.FormatCount(s.Value)
}

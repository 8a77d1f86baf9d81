package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Systemd answers service liveness questions by shelling out to systemctl.
type Systemd struct{}

func NewSystemd() *Systemd {
	return &Systemd{}
}

// IsActive reports whether the unit is active. A nonzero exit from
// `systemctl is-active` is a negative answer, not a collaborator failure;
// only a failure to run systemctl at all is returned as an error.
func (s *Systemd) IsActive(ctx context.Context, unit string) (bool, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", unit)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("systemctl is-active %s: %w", unit, err)
}

// MainPID returns the unit's main process id and the time the unit entered
// the active state. PID 0 means the unit has no main process.
func (s *Systemd) MainPID(ctx context.Context, unit string) (int32, time.Time, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "show", unit,
		"--property=MainPID,ActiveEnterTimestamp", "--value")
	out, err := cmd.Output()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("systemctl show %s: %w", unit, err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 1 {
		return 0, time.Time{}, fmt.Errorf("systemctl show %s: empty output", unit)
	}

	pid64, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 32)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("systemctl show %s: bad MainPID %q", unit, lines[0])
	}

	var startedAt time.Time
	if len(lines) > 1 {
		startedAt = parseSystemdTimestamp(strings.TrimSpace(lines[1]))
	}

	return int32(pid64), startedAt, nil
}

// parseSystemdTimestamp parses timestamps like "Thu 2026-08-28 09:15:02 UTC".
// "n/a" and unparseable values come back as the zero time.
func parseSystemdTimestamp(s string) time.Time {
	if s == "" || s == "n/a" {
		return time.Time{}
	}
	t, err := time.Parse("Mon 2006-01-02 15:04:05 MST", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

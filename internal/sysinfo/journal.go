package sysinfo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Journal reads service logs from the systemd journal via journalctl.
type Journal struct{}

func NewJournal() *Journal {
	return &Journal{}
}

// CountErrors counts journal lines for the unit within the trailing window
// that contain marker, case-insensitive. A journalctl failure is a
// collaborator error, distinct from a genuine zero count.
func (j *Journal) CountErrors(ctx context.Context, unit string, window time.Duration, marker string) (int, error) {
	since := time.Now().Add(-window).Format("2006-01-02 15:04:05")
	cmd := exec.CommandContext(ctx, "journalctl", "-u", unit,
		"--since", since, "--no-pager", "-q", "-o", "cat")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("journalctl -u %s: %w", unit, err)
	}

	needle := strings.ToLower(marker)
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.Contains(strings.ToLower(scanner.Text()), needle) {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan journal output for %s: %w", unit, err)
	}
	return count, nil
}

// Tail returns the most recent n journal lines for the unit.
func (j *Journal) Tail(ctx context.Context, unit string, n int) ([]string, error) {
	cmd := exec.CommandContext(ctx, "journalctl", "-u", unit,
		"-n", fmt.Sprintf("%d", n), "--no-pager", "-q", "-o", "cat")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("journalctl -u %s: %w", unit, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			lines = append(lines, text)
		}
	}
	return lines, scanner.Err()
}

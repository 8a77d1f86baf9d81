package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatCount formats an integer with thousand separators.
// Examples:
//   - 1 -> "1"
//   - 1000 -> "1,000"
//   - 100000 -> "100,000"
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var formatted strings.Builder
	length := len(s)
	for i, r := range s {
		if i > 0 && (length-i)%3 == 0 {
			formatted.WriteString(",")
		}
		formatted.WriteRune(r)
	}

	if neg {
		return "-" + formatted.String()
	}
	return formatted.String()
}

// FormatUptime renders a duration since a start time as a compact
// human-readable string ("3d4h", "2h15m", "45s").
func FormatUptime(since time.Time, now time.Time) string {
	if since.IsZero() || now.Before(since) {
		return "-"
	}
	d := now.Sub(since).Round(time.Second)

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

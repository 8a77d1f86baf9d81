package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{1, "1"},
		{999, "999"},
		{1000, "1,000"},
		{100000, "100,000"},
		{1234567, "1,234,567"},
		{-1000, "-1,000"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatCount(c.in), "FormatCount(%d)", c.in)
	}
}

func TestFormatUptime(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		since time.Time
		want  string
	}{
		{time.Time{}, "-"},
		{now.Add(time.Hour), "-"},
		{now.Add(-45 * time.Second), "45s"},
		{now.Add(-(2*time.Minute + 15*time.Second)), "2m15s"},
		{now.Add(-(2*time.Hour + 15*time.Minute)), "2h15m"},
		{now.Add(-(76 * time.Hour)), "3d4h"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatUptime(c.since, now))
	}
}

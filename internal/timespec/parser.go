// Package timespec parses the --since and --until flags of the history
// command.
package timespec

import (
	"fmt"
	"time"

	"github.com/dyluth/tuplebridge/pkg/space"
)

// Parse parses a time specification relative to now.
// Supports two formats:
//   - Go duration format: "1h", "30m", "1h30m", "2h45m30s" (that long ago)
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseWindow parses both --since and --until flags into a history window.
// An empty flag leaves that end of the window open.
//
// Validates that since < until if both are specified.
func ParseWindow(since, until string, now time.Time) (space.Window, error) {
	var w space.Window
	var err error

	if since != "" {
		if w.Since, err = Parse(since, now); err != nil {
			return space.Window{}, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		if w.Until, err = Parse(until, now); err != nil {
			return space.Window{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if !w.Since.IsZero() && !w.Until.IsZero() && !w.Since.Before(w.Until) {
		return space.Window{}, fmt.Errorf("--since must be before --until")
	}

	return w, nil
}

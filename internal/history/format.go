package history

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/tuplebridge/pkg/space"
)

// Entry is the JSON view of a stored record. Tuple holds the fields as
// native JSON when they have one, and the display form otherwise.
type Entry struct {
	ID            string `json:"id"`
	Origin        string `json:"origin"`
	PublishedAtMs int64  `json:"published_at_ms"`
	Tuple         any    `json:"tuple"`
}

// NewEntry converts a record to its JSON view.
func NewEntry(rec space.Record) Entry {
	e := Entry{ID: rec.ID, Origin: rec.Origin, PublishedAtMs: rec.PublishedAtMs}
	if m, err := rec.Tuple.ToMap(); err == nil {
		if _, err := json.Marshal(m); err == nil {
			e.Tuple = m
			return e
		}
	}
	e.Tuple = rec.Tuple.String()
	return e
}

// FormatTable writes records as a table with columns ID, TYPE, ORIGIN, AGE
// and FIELDS (truncated). Returns the number of records formatted.
func FormatTable(w io.Writer, records []space.Record, instanceName string) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No tuples found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Tuples for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-10s %-16s %-10s %-8s %s\n", "ID", "TYPE", "ORIGIN", "AGE", "FIELDS")
	fmt.Fprintf(w, "%-10s %-16s %-10s %-8s %s\n",
		"----------", "----------------", "----------", "--------", "--------------------------------------------------")

	for _, r := range records {
		fmt.Fprintf(w, "%-10s %-16s %-10s %-8s %s\n",
			shortID(r.ID),
			formatType(r.Tuple.Type()),
			shortID(r.Origin),
			formatAge(r.PublishedAtMs),
			truncate(r.Tuple.String(), 50),
		)
	}

	noun := "tuple"
	if len(records) != 1 {
		noun = "tuples"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(records), noun)

	return len(records)
}

// FormatJSONL writes records as line-delimited JSON, one Entry per line.
func FormatJSONL(w io.Writer, records []space.Record) error {
	for _, rec := range records {
		data, err := json.Marshal(NewEntry(rec))
		if err != nil {
			return fmt.Errorf("failed to marshal tuple %s: %w", rec.ID, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one record as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, rec space.Record) error {
	data, err := json.MarshalIndent(NewEntry(rec), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tuple %s: %w", rec.ID, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatType(typeName string) string {
	if typeName == "" {
		return "-"
	}
	return truncate(typeName, 16)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// formatAge shows publication time relative to now, like "2m ago".
func formatAge(publishedAtMs int64) string {
	if publishedAtMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(publishedAtMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

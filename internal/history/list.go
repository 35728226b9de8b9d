// Package history reads and formats the tuples stored in a space.
package history

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/tuplebridge/internal/filter"
	"github.com/dyluth/tuplebridge/pkg/space"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

// OutputFormat specifies how to format the history output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated fields
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Store is the read side of a space.
type Store interface {
	History(ctx context.Context, criteria tuple.Tuple, w space.Window) ([]space.Record, error)
	Get(ctx context.Context, id string) (space.Record, error)
}

// List writes the stored records matching criteria in publication order.
// A nil criteria lists everything.
func List(ctx context.Context, store Store, instanceName string, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	if criteria == nil {
		criteria = &filter.Criteria{}
	}

	records, err := store.History(ctx, criteria.Fields, criteria.Window)
	if err != nil {
		return err
	}

	// Field and window filters ran in the store; the type glob runs here.
	matched := records[:0]
	for _, rec := range records {
		if criteria.Matches(rec) {
			matched = append(matched, rec)
		}
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, matched, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, matched); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// Package resolver expands short tuple id prefixes to full ids.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// Scanner lists stored tuple ids by prefix.
type Scanner interface {
	ScanIDs(ctx context.Context, prefix string) ([]string, error)
}

// ResolveTupleID resolves a short ID prefix to a full UUID.
//
// A full UUID is returned unchanged; Get reports whether it exists. A
// prefix must be at least MinShortIDLength characters of hex digits and
// hyphens and match exactly one stored tuple.
func ResolveTupleID(ctx context.Context, scanner Scanner, shortID string) (string, error) {
	if _, err := uuid.Parse(shortID); err == nil && len(shortID) == 36 {
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}
	if strings.Trim(strings.ToLower(shortID), "0123456789abcdef-") != "" {
		return "", fmt.Errorf("short ID '%s' may only contain hex digits and hyphens", shortID)
	}

	matches, err := scanner.ScanIDs(ctx, strings.ToLower(shortID))
	if err != nil {
		return "", fmt.Errorf("failed to search for tuple: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no tuples matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no tuples found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple tuples matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d tuples", e.ShortID, len(e.Matches))
}

// Describe lists the matching ids (up to 10, then "...and N more").
func (e *AmbiguousError) Describe() string {
	var b strings.Builder
	shown := e.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, id := range shown {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(e.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-10)
	}
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var amb *AmbiguousError
	return errors.As(err, &amb)
}

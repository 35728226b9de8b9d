package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	ids []string
	err error
}

func (f fakeScanner) ScanIDs(_ context.Context, prefix string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, id := range f.ids {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

func TestResolveTupleID(t *testing.T) {
	ctx := context.Background()
	scanner := fakeScanner{ids: []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"550e8400-e29b-41d4-a716-446655440001",
		"abcdef01-0000-0000-0000-000000000000",
	}}

	t.Run("full uuid passes through", func(t *testing.T) {
		id, err := ResolveTupleID(ctx, fakeScanner{}, "550e8400-e29b-41d4-a716-446655440000")
		require.NoError(t, err)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id)
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveTupleID(ctx, scanner, "ABCDEF")
		require.NoError(t, err)
		assert.Equal(t, "abcdef01-0000-0000-0000-000000000000", id)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveTupleID(ctx, scanner, "550e8400")
		require.Error(t, err)
		assert.True(t, IsAmbiguousError(err))

		var amb *AmbiguousError
		require.True(t, errors.As(err, &amb))
		assert.Len(t, amb.Matches, 2)
		assert.Contains(t, amb.Describe(), "550e8400-e29b-41d4-a716-446655440001")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := ResolveTupleID(ctx, scanner, "ffffff")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveTupleID(ctx, scanner, "abc")
		assert.ErrorContains(t, err, "at least 6 characters")
	})

	t.Run("glob characters rejected", func(t *testing.T) {
		_, err := ResolveTupleID(ctx, scanner, "abc*ef")
		assert.ErrorContains(t, err, "hex digits")
	})

	t.Run("scan failure", func(t *testing.T) {
		_, err := ResolveTupleID(ctx, fakeScanner{err: errors.New("down")}, "abcdef")
		assert.ErrorContains(t, err, "down")
	})
}

func TestAmbiguousError_DescribeTruncates(t *testing.T) {
	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, fmt.Sprintf("id-%02d", i))
	}
	desc := (&AmbiguousError{ShortID: "id", Matches: ids}).Describe()
	assert.Contains(t, desc, "id-09")
	assert.NotContains(t, desc, "id-10")
	assert.Contains(t, desc, "...and 2 more")
}

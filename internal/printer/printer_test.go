package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/tuplebridge/pkg/tuple"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	restore := SetOutput(&stdout, &stderr)
	t.Cleanup(func() {
		restore()
		color.NoColor = prev
	})
	return &stdout, &stderr
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "This is a test error")
	})

	t.Run("single suggestion printed plainly", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "\nTry this fix\n")
		assert.NotContains(t, stderr.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, stderr := capture(t)
	context := map[string]string{
		"Target":   "requests",
		"Instance": "test-instance",
	}
	err := ErrorWithContext("Test Error", "Explanation", context, nil)
	require.Equal(t, "Test Error", err.Error())
	assert.Contains(t, stderr.String(), "  Instance: test-instance\n  Target: requests\n")
}

func TestTuple(t *testing.T) {
	stdout, _ := capture(t)
	tp, err := tuple.FromMap(map[string]any{"type": "chat", "author": "bob", "seq": 3})
	require.NoError(t, err)

	Tuple(7, tp)
	assert.Equal(t, "[7] author=\"bob\" seq=3 type=\"chat\"\n", stdout.String())
}

func TestSuccessAndWarning(t *testing.T) {
	stdout, stderr := capture(t)
	Success("done\n")
	Warning("careful\n")
	assert.Equal(t, "✓ done\n", stdout.String())
	assert.Equal(t, "⚠️  careful\n", stderr.String())
}

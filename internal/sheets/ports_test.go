package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadRows(t *testing.T) {
	got := PadRows([][]any{
		{"a", "b", "c"},
		{"x"},
		{},
	})
	require.Len(t, got, 3)
	for _, r := range got {
		assert.Len(t, r, 3)
	}
	assert.Equal(t, []any{"x", "", ""}, got[1])
	assert.Empty(t, PadRows(nil))
}

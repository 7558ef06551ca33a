package postprocess

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "pure json",
			in:   `{"company_name": "Ромашка"}`,
			want: map[string]any{"company_name": "Ромашка"},
		},
		{
			name: "fenced block",
			in:   "```json\n{\"a\": 1}\n```",
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "trailing commentary",
			in:   `Here is the result: {"a": "b"} — hope this helps!`,
			want: map[string]any{"a": "b"},
		},
		{
			name: "smart quotes",
			in:   `{“company_name”: “Atlas”}`,
			want: map[string]any{"company_name": "Atlas"},
		},
		{
			name: "trailing commas",
			in:   `{"services": ["a", "b",], "n": 2,}`,
			want: map[string]any{"services": []any{"a", "b"}, "n": float64(2)},
		},
		{
			name: "fenced with commentary and trailing comma",
			in:   "Sure!\n```\n{\"a\": [1, 2,],}\n```\nLet me know.",
			want: map[string]any{"a": []any{float64(1), float64(2)}},
		},
		{
			name: "braces inside strings",
			in:   `prefix {"note": "use {x} placeholders"} suffix`,
			want: map[string]any{"note": "use {x} placeholders"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Repair(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepairFailure(t *testing.T) {
	_, err := Repair("no json here at all")
	require.Error(t, err)

	var repairErr *JSONRepairError
	require.True(t, errors.As(err, &repairErr))
	assert.Equal(t, maxRepairAttempts, repairErr.Attempts)
	assert.Contains(t, repairErr.Input, "no json here")
}

func TestRepairErrorTruncatesInput(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Repair(string(long))
	require.Error(t, err)

	var repairErr *JSONRepairError
	require.True(t, errors.As(err, &repairErr))
	assert.Less(t, len(repairErr.Input), 600)
}

func TestRepairErrorTruncatesOnRuneBoundary(t *testing.T) {
	// Cyrillic is two bytes per rune; the cut must not split one.
	long := strings.Repeat("ы", 600)
	_, err := Repair(long)
	require.Error(t, err)

	var repairErr *JSONRepairError
	require.True(t, errors.As(err, &repairErr))
	assert.True(t, utf8.ValidString(repairErr.Input))
	assert.Less(t, len(repairErr.Input), 600)
}

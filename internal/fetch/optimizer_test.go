package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimalChunkDays(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		want      int
	}{
		{name: "well above the largest bucket", remaining: 100, want: 10},
		{name: "exactly the largest bucket", remaining: 10, want: 10},
		{name: "nine falls back to five", remaining: 9, want: 5},
		{name: "six falls back to five", remaining: 6, want: 5},
		{name: "five", remaining: 5, want: 5},
		{name: "four", remaining: 4, want: 4},
		{name: "three", remaining: 3, want: 3},
		{name: "two", remaining: 2, want: 2},
		{name: "one", remaining: 1, want: 1},
		{name: "zero terminates", remaining: 0, want: 0},
		{name: "negative terminates", remaining: -3, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OptimalChunkDays(tt.remaining))
		})
	}
}

// Greedy selection must cover any remaining count exactly: repeatedly
// subtracting the chosen chunk reaches 0 in finitely many steps and the
// chunks sum to the original remaining.
func TestOptimalChunkDays_FullCoverage(t *testing.T) {
	for remaining := 0; remaining <= 400; remaining++ {
		sum := 0
		left := remaining
		steps := 0
		for {
			chunk := OptimalChunkDays(left)
			if chunk == 0 {
				break
			}
			sum += chunk
			left -= chunk
			steps++
			require.LessOrEqual(t, steps, remaining, "remaining=%d did not terminate", remaining)
		}
		assert.Equal(t, remaining, sum, "chunks for remaining=%d must sum exactly", remaining)
		assert.Equal(t, 0, left)
	}
}

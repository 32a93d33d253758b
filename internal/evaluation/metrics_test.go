package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecallAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"all found", []string{"A", "B"}, []string{"B", "A", "C"}, 10, 1.0},
		{"half found", []string{"A", "B"}, []string{"A", "C"}, 10, 0.5},
		{"cut by k", []string{"A"}, []string{"C", "D", "A"}, 2, 0.0},
		{"duplicates counted once", []string{"A", "B"}, []string{"A", "A"}, 10, 0.5},
		{"no relevant", nil, []string{"A"}, 10, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RecallAtK(tt.relevant, tt.retrieved, tt.k), 1e-9)
		})
	}
}

func TestMRRAtK(t *testing.T) {
	assert.Equal(t, 1.0, MRRAtK([]string{"A"}, []string{"A", "B"}, 10))
	assert.Equal(t, 0.5, MRRAtK([]string{"B"}, []string{"A", "B"}, 10))
	assert.Equal(t, 0.0, MRRAtK([]string{"B"}, []string{"A", "B"}, 1))
	assert.Equal(t, 0.0, MRRAtK([]string{"B"}, nil, 10))
}

package ktask_test

import (
	"testing"

	"github.com/fogfactory/ktask"
	"github.com/maxatome/go-testdeep/td"
	"pgregory.net/rapid"
)

func TestChunkSize(t *testing.T) {
	for _, tc := range []struct {
		name                    string
		total, minSize, workers int
		expected                int
	}{
		{name: "single_worker", total: 1000, minSize: 100, workers: 1, expected: 1000},
		{name: "clamped_to_min", total: 1000, minSize: 100, workers: 4, expected: 100},
		{name: "rounded_down", total: 100000, minSize: 100, workers: 4, expected: 6200},
		{name: "not_rounded_when_equal", total: 1600, minSize: 100, workers: 4, expected: 100},
		{name: "unit_min", total: 1000, minSize: 1, workers: 3, expected: 83},
		{name: "total_below_min", total: 10, minSize: 64, workers: 2, expected: 64},
	} {
		t.Run(tc.name, func(t *testing.T) {
			td.Cmp(t, ktask.ChunkSize(tc.total, tc.minSize, tc.workers), tc.expected)
		})
	}
}

func TestChunkSizeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 1<<20).Draw(t, "total")
		minSize := rapid.IntRange(1, 4096).Draw(t, "minSize")
		workers := rapid.IntRange(1, 64).Draw(t, "workers")

		size := ktask.ChunkSize(total, minSize, workers)

		if workers == 1 {
			if size != total {
				t.Fatalf("single worker chunk %d, want %d", size, total)
			}
			return
		}
		if size < minSize {
			t.Fatalf("chunk %d below minimum %d", size, minSize)
		}
		if size%minSize != 0 {
			t.Fatalf("chunk %d not a multiple of %d", size, minSize)
		}
		if size > minSize && size > (total/workers)>>ktask.LoadBalanceShift {
			t.Fatalf("chunk %d above the balanced share of %d over %d workers", size, total, workers)
		}
	})
}

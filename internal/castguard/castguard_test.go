package castguard

import (
	"sync"
	"testing"

	"moonwalketl/internal/metrics"
)

func TestMeaningful(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		col  []any
		want int
	}{
		{name: "empty_column", col: nil, want: 0},
		{name: "all_nil", col: []any{nil, nil, nil}, want: 0},
		{name: "empty_strings_ignored", col: []any{"", "x", ""}, want: 1},
		{name: "typed_values_count", col: []any{int64(0), float64(0), false}, want: 3},
		{name: "mixed", col: []any{"a", nil, "", int64(7)}, want: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Meaningful(tc.col); got != tc.want {
				t.Fatalf("Meaningful(%v)=%d, want %d", tc.col, got, tc.want)
			}
		})
	}
}

// captureBackend records counter increments for assertions.
type captureBackend struct {
	mu     sync.Mutex
	counts map[string]float64
	labels map[string]metrics.Labels
}

func newCaptureBackend() *captureBackend {
	return &captureBackend{
		counts: make(map[string]float64),
		labels: make(map[string]metrics.Labels),
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := name + "/" + labels["table"] + "/" + labels["column"]
	c.counts[key] += delta
	c.labels[key] = labels
}

func (c *captureBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (c *captureBackend) Close() error                                    { return nil }

func TestCheckCountsLoss(t *testing.T) {
	cb := newCaptureBackend()
	metrics.SetBackend(cb)
	defer metrics.SetBackend(nil)

	Check("sales", "Placed", "date", 100, 97)

	key := metrics.CastLossTotal + "/sales/Placed"
	if got := cb.counts[key]; got != 3 {
		t.Fatalf("cast-loss count=%v, want 3", got)
	}
}

func TestCheckNoLossNoCount(t *testing.T) {
	cb := newCaptureBackend()
	metrics.SetBackend(cb)
	defer metrics.SetBackend(nil)

	Check("sales", "Total", "float", 50, 50)
	Check("sales", "Total", "float", 50, 51)

	if len(cb.counts) != 0 {
		t.Fatalf("unexpected counters recorded: %v", cb.counts)
	}
}

func TestCheckHighDateLoss(t *testing.T) {
	cb := newCaptureBackend()
	metrics.SetBackend(cb)
	defer metrics.SetBackend(nil)

	// 10% date loss is above the rate threshold; still warn-only, only the
	// counter is observable from here.
	Check("items", "Date", "date", 200, 180)

	key := metrics.CastLossTotal + "/items/Date"
	if got := cb.counts[key]; got != 20 {
		t.Fatalf("cast-loss count=%v, want 20", got)
	}
}

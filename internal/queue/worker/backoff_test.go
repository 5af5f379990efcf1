package worker_test

import (
	"testing"
	"time"

	"github.com/markmehq/markme/internal/queue/worker"
)

func TestExponentialBackoff(t *testing.T) {
	jitter := 250 * time.Millisecond

	tests := []struct {
		name    string
		attempt int
		wantMin time.Duration
	}{
		{"first_retry", 0, 2 * time.Second},
		{"second_retry", 1, 4 * time.Second},
		{"third_retry", 2, 8 * time.Second},
		{"caps_at_five_minutes", 20, 5 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := worker.ExponentialBackoff(tt.attempt)

			if got < tt.wantMin || got > tt.wantMin+jitter {
				t.Fatalf("attempt %d: got %v, want within [%v, %v]", tt.attempt, got, tt.wantMin, tt.wantMin+jitter)
			}
		})
	}
}

func TestExponentialBackoffOverflowStaysCapped(t *testing.T) {
	// large attempt counts overflow the float math; the cap must still hold
	got := worker.ExponentialBackoff(10_000)

	if got > 5*time.Minute+250*time.Millisecond {
		t.Fatalf("got %v, want at most the cap plus jitter", got)
	}
}

package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/markmehq/markme/internal/notifications"
)

type flakyNotifier struct {
	err   error
	calls int
}

func (f *flakyNotifier) SendAttendanceMarked(ctx context.Context, in notifications.AttendanceMarkedInput) error {
	f.calls++
	return f.err
}

func TestProtectedNotifierOpensAfterThreshold(t *testing.T) {
	inner := &flakyNotifier{err: errors.New("provider down")}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 2,
		Cooldown:         time.Hour,
	})

	in := notifications.AttendanceMarkedInput{UserID: "u1", Day: "2026-03-14"}

	for i := 0; i < 2; i++ {
		if err := n.SendAttendanceMarked(context.Background(), in); err == nil {
			t.Fatalf("send %d: expected provider error", i)
		}
	}

	// circuit is open now: fail fast without touching the provider
	err := n.SendAttendanceMarked(context.Background(), in)

	if !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}

	if inner.calls != 2 {
		t.Fatalf("provider called %d times, want 2", inner.calls)
	}
}

func TestProtectedNotifierHalfOpenRecovery(t *testing.T) {
	inner := &flakyNotifier{err: errors.New("provider down")}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	in := notifications.AttendanceMarkedInput{UserID: "u1", Day: "2026-03-14"}

	if err := n.SendAttendanceMarked(context.Background(), in); err == nil {
		t.Fatal("expected provider error")
	}

	if !errors.Is(n.SendAttendanceMarked(context.Background(), in), notifications.ErrCircuitOpen) {
		t.Fatal("circuit must be open after the threshold failure")
	}

	// cooldown passes, provider recovers, trial call closes the circuit
	time.Sleep(20 * time.Millisecond)
	inner.err = nil

	if err := n.SendAttendanceMarked(context.Background(), in); err != nil {
		t.Fatalf("half-open trial call failed: %v", err)
	}

	if err := n.SendAttendanceMarked(context.Background(), in); err != nil {
		t.Fatalf("closed circuit must pass calls through: %v", err)
	}
}

func TestProtectedNotifierReopensOnFailedTrial(t *testing.T) {
	inner := &flakyNotifier{err: errors.New("provider down")}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	in := notifications.AttendanceMarkedInput{UserID: "u1", Day: "2026-03-14"}

	_ = n.SendAttendanceMarked(context.Background(), in)

	time.Sleep(20 * time.Millisecond)

	// trial call still fails: back to open without waiting for the threshold
	if err := n.SendAttendanceMarked(context.Background(), in); err == nil {
		t.Fatal("expected provider error on trial call")
	}

	if !errors.Is(n.SendAttendanceMarked(context.Background(), in), notifications.ErrCircuitOpen) {
		t.Fatal("failed trial call must reopen the circuit")
	}

	if inner.calls != 2 {
		t.Fatalf("provider called %d times, want 2", inner.calls)
	}
}

package events_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/auth9/auth9/internal/events"
)

type stubSource struct {
	batches [][]events.UpstreamEvent
	calls   int32
}

func (s *stubSource) Poll(ctx context.Context) ([]events.UpstreamEvent, error) {
	i := atomic.AddInt32(&s.calls, 1) - 1
	if int(i) >= len(s.batches) {
		return nil, nil
	}
	return s.batches[i], nil
}

// TestStubSource_ReturnsQueuedBatch checks the stubSource fixture: a queued
// batch holding each of the three upstream kinds comes back whole from Poll.
// sessionEventType is unexported and ingestOne needs a database, so the
// upstream→session type mapping itself is not exercised here.
func TestStubSource_ReturnsQueuedBatch(t *testing.T) {
	batch := []events.UpstreamEvent{
		{OccurredAt: time.Now(), Email: "a@example.test", Type: events.UpstreamFailedPassword},
		{OccurredAt: time.Now(), Email: "b@example.test", Type: events.UpstreamFailedMFA},
		{OccurredAt: time.Now(), Email: "c@example.test", Type: events.UpstreamLocked},
	}
	source := &stubSource{batches: [][]events.UpstreamEvent{batch}}

	got, err := source.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
}

// TestConsumer_PollFailureDoesNotPanic confirms a Source that always errors
// leaves Run/pollOnce a no-op rather than propagating, matching §9's
// "missing the stream degrades failure analytics but never success
// authentication".
func TestConsumer_PollFailureDoesNotPanic(t *testing.T) {
	failing := &erroringSource{}
	c := events.NewConsumer(failing, nil, nil, slog.Default(), time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	c.Run(ctx) // must return on ctx cancellation without panicking
}

type erroringSource struct{}

func (erroringSource) Poll(ctx context.Context) ([]events.UpstreamEvent, error) {
	return nil, errPollUnavailable
}

var errPollUnavailable = context.DeadlineExceeded

package logging

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Event, len(s.events))
	copy(copied, s.events)
	return copied
}

func waitForEvents(t *testing.T, sink *captureSink, want int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := sink.snapshot()
		if len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", want, len(sink.snapshot()))
	return nil
}

func newTestRouter(t *testing.T, cfg Config, sink Sink) *Router {
	t.Helper()
	base := time.Unix(1_700_000_000, 0)
	router, err := NewRouter(ClockFunc(func() time.Time { return base }), cfg,
		[]NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		router.Close(ctx)
	})
	return router
}

func TestRouterDeliversToSink(t *testing.T) {
	sink := &captureSink{}
	router := newTestRouter(t, DefaultConfig(), sink)

	router.Publish(context.Background(), ViolationDetected(7, "p1", "speed_hack", "too fast", 3))

	events := waitForEvents(t, sink, 1)
	if events[0].Type != EventViolationDetected || events[0].Tick != 7 {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if events[0].Time.IsZero() {
		t.Fatal("router must stamp event time")
	}
	if got := router.Stats().EventsTotal; got != 1 {
		t.Fatalf("expected 1 routed event, got %d", got)
	}
}

func TestRouterFiltersBySeverity(t *testing.T) {
	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.MinimumSeverity = SeverityWarn
	router := newTestRouter(t, cfg, sink)

	// Info-level death event is filtered; warn-level violation passes.
	router.Publish(context.Background(), PlayerDeath(1, "victim", "killer"))
	router.Publish(context.Background(), ViolationDetected(2, "p1", "speed_hack", "", 1))

	events := waitForEvents(t, sink, 1)
	time.Sleep(20 * time.Millisecond)
	events = sink.snapshot()
	if len(events) != 1 || events[0].Type != EventViolationDetected {
		t.Fatalf("expected only the warn event, got %+v", events)
	}
}

func TestRouterMergesDefaultFields(t *testing.T) {
	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.Fields = map[string]any{"lobby": "lobby-1"}
	router := newTestRouter(t, cfg, sink)

	router.Publish(context.Background(), PlayerKicked(3, "p1", "speed_hack", 10))

	events := waitForEvents(t, sink, 1)
	if events[0].Extra["lobby"] != "lobby-1" {
		t.Fatalf("expected default field merged, got %+v", events[0].Extra)
	}
}

func TestRouterIgnoresEmptyType(t *testing.T) {
	sink := &captureSink{}
	router := newTestRouter(t, DefaultConfig(), sink)

	router.Publish(context.Background(), Event{Severity: SeverityError})
	router.Publish(context.Background(), PlayerDeath(1, "victim", ""))

	events := waitForEvents(t, sink, 1)
	if len(events) != 1 || events[0].Type != EventPlayerDeath {
		t.Fatalf("expected the typed event only, got %+v", events)
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	sink := &captureSink{}
	base := time.Unix(1_700_000_000, 0)
	router, err := NewRouter(ClockFunc(func() time.Time { return base }), DefaultConfig(),
		[]NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Must not panic or deliver.
	router.Publish(context.Background(), PlayerDeath(1, "victim", ""))
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("expected no delivery after close, got %d", got)
	}
}

func TestWithFieldsPublisher(t *testing.T) {
	var got Event
	p := WithFields(PublisherFunc(func(_ context.Context, event Event) {
		got = event
	}), map[string]any{"lobby": "lobby-1"})

	p.Publish(context.Background(), ReplayStored("r1", "victim", 24*time.Hour))

	if got.Extra["lobby"] != "lobby-1" {
		t.Fatalf("expected field injected, got %+v", got.Extra)
	}
	if got.Type != EventReplayStored {
		t.Fatalf("unexpected type %s", got.Type)
	}
}

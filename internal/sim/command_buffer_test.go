package sim

import (
	"testing"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

func TestCommandBufferPushDrainOrder(t *testing.T) {
	buffer := NewCommandBuffer(4, nil)

	for _, id := range []string{"a", "b", "c"} {
		if ok := buffer.Push(Command{Type: CommandMove, ActorID: id}); !ok {
			t.Fatalf("expected push to succeed for %s", id)
		}
	}
	if got := buffer.Len(); got != 3 {
		t.Fatalf("expected 3 staged commands, got %d", got)
	}

	drained := buffer.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained commands, got %d", len(drained))
	}
	for i, id := range []string{"a", "b", "c"} {
		if drained[i].ActorID != id {
			t.Fatalf("expected FIFO order, index %d got %s", i, drained[i].ActorID)
		}
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", buffer.Len())
	}
}

func TestCommandBufferRejectsWhenFull(t *testing.T) {
	metrics := telemetry.NewMapMetrics()
	buffer := NewCommandBuffer(2, metrics)

	buffer.Push(Command{ActorID: "a"})
	buffer.Push(Command{ActorID: "b"})
	if ok := buffer.Push(Command{ActorID: "c"}); ok {
		t.Fatal("expected push to fail at capacity")
	}
	if got := metrics.Value(commandBufferOverflowMetricKey); got != 1 {
		t.Fatalf("expected 1 overflow recorded, got %d", got)
	}
	if got := metrics.Value(commandBufferOccupancyMetricKey); got != 2 {
		t.Fatalf("expected occupancy 2, got %d", got)
	}
}

func TestCommandBufferWrapsAround(t *testing.T) {
	buffer := NewCommandBuffer(2, nil)

	buffer.Push(Command{ActorID: "a"})
	buffer.Push(Command{ActorID: "b"})
	buffer.Drain()

	buffer.Push(Command{ActorID: "c"})
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != "c" {
		t.Fatalf("expected single command c after wrap, got %+v", drained)
	}
}

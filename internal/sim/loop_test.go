package sim

import (
	"testing"
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

func newTestLoop(cfg LoopConfig, hooks LoopHooks) *Loop {
	world := NewWorld(WorldConfig{Width: 1000, Height: 1000})
	return NewLoop(world, cfg, nil, telemetry.NopLogger{}, nil, hooks)
}

func TestEnqueuePerActorLimit(t *testing.T) {
	var drops []string
	loop := newTestLoop(LoopConfig{CommandCapacity: 16, PerActorLimit: 2}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) { drops = append(drops, reason) },
	})

	move := Command{Type: CommandMove, ActorID: "p1", Move: &MoveCommand{}}
	for i := 0; i < 2; i++ {
		if ok, _ := loop.Enqueue(move); !ok {
			t.Fatalf("enqueue %d should succeed", i)
		}
	}
	ok, reason := loop.Enqueue(move)
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected per-actor throttle, got ok=%v reason=%q", ok, reason)
	}
	if len(drops) != 1 || drops[0] != CommandRejectQueueLimit {
		t.Fatalf("expected one drop callback, got %v", drops)
	}

	// Another actor is unaffected.
	other := Command{Type: CommandMove, ActorID: "p2", Move: &MoveCommand{}}
	if ok, _ := loop.Enqueue(other); !ok {
		t.Fatal("other actor must not be throttled")
	}
}

func TestEnqueueLimitResetsAfterAdvance(t *testing.T) {
	loop := newTestLoop(LoopConfig{CommandCapacity: 16, PerActorLimit: 1}, LoopHooks{})

	move := Command{Type: CommandMove, ActorID: "p1", Move: &MoveCommand{}}
	loop.Enqueue(move)
	if ok, _ := loop.Enqueue(move); ok {
		t.Fatal("second enqueue should be throttled")
	}

	loop.Advance(time.Now(), 1.0/60.0)

	if ok, _ := loop.Enqueue(move); !ok {
		t.Fatal("throttle must reset once the queue drains")
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	loop := newTestLoop(LoopConfig{CommandCapacity: 1}, LoopHooks{})

	loop.Enqueue(Command{Type: CommandJoin, ActorID: "p1"})
	ok, reason := loop.Enqueue(Command{Type: CommandJoin, ActorID: "p2"})
	if ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full, got ok=%v reason=%q", ok, reason)
	}
}

func TestAdvanceAppliesStagedCommands(t *testing.T) {
	loop := newTestLoop(LoopConfig{CommandCapacity: 16}, LoopHooks{})

	loop.Enqueue(Command{Type: CommandJoin, ActorID: "p1"})
	loop.Enqueue(Command{
		Type: CommandMove, ActorID: "p1",
		Move: &MoveCommand{Direction: geom.Vec2{X: 1}, Sequence: 3},
	})

	result := loop.Advance(time.Now(), 1.0/60.0)

	if result.Tick != 1 {
		t.Fatalf("expected tick 1, got %d", result.Tick)
	}
	if len(result.Commands) != 2 {
		t.Fatalf("expected 2 drained commands, got %d", len(result.Commands))
	}
	if len(result.Snapshot.Players) != 1 || result.Snapshot.Players[0].LastAck != 3 {
		t.Fatalf("expected joined player with ack 3, got %+v", result.Snapshot.Players)
	}
	if loop.Pending() != 0 {
		t.Fatalf("expected empty queue after advance, got %d", loop.Pending())
	}
}

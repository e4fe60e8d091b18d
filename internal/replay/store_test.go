package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewStore(StoreConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func storedReplay(id string) *telemetry.DeathReplay {
	now := time.Now()
	return &telemetry.DeathReplay{
		ID:        id,
		LobbyID:   "lobby-1",
		VictimID:  "victim",
		KillerID:  "killer",
		DeathTick: 399,
		CreatedAt: now,
		ExpiresAt: now.Add(telemetry.DefaultReplayTTL),
		Frames: []telemetry.Frame{
			{
				Tick:      398,
				Timestamp: now.Add(-time.Second / 60),
				Players: []telemetry.PlayerSnapshot{
					{ID: "victim", Position: geom.Vec2{X: 10, Y: 20}, Health: 5, State: telemetry.PlayerAlive},
				},
			},
			{
				Tick:      399,
				Timestamp: now,
				Players: []telemetry.PlayerSnapshot{
					{ID: "victim", Position: geom.Vec2{X: 11, Y: 20}, Health: 0, State: telemetry.PlayerDead},
				},
				Events: []telemetry.CombatEvent{
					{Kind: telemetry.CombatDeath, Tick: 399, ActorID: "killer", TargetID: "victim"},
				},
			},
		},
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := storedReplay("r1")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "lobby-1", "r1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != "r1" || loaded.VictimID != "victim" || loaded.DeathTick != 399 {
		t.Fatalf("unexpected record %+v", loaded)
	}
	if len(loaded.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(loaded.Frames))
	}
	if got := loaded.Frames[1].Players[0].Position; got != (geom.Vec2{X: 11, Y: 20}) {
		t.Fatalf("unexpected position %+v", got)
	}
	if loaded.Frames[1].Events[0].Kind != telemetry.CombatDeath {
		t.Fatalf("expected death event, got %+v", loaded.Frames[1].Events)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), "lobby-1", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSetsRetentionTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec := storedReplay("r1")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	ttl := mr.TTL("replay:lobby-1:r1")
	if ttl <= 0 || ttl > telemetry.DefaultReplayTTL {
		t.Fatalf("expected ttl within 24h window, got %s", ttl)
	}

	// Once the retention window passes, the replay is gone.
	mr.FastForward(telemetry.DefaultReplayTTL + time.Minute)
	if _, err := store.Load(ctx, "lobby-1", "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := storedReplay("r1")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "lobby-1", "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "lobby-1", "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting again is fine.
	if err := store.Delete(ctx, "lobby-1", "r1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestStoreList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		rec := storedReplay(id)
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	other := storedReplay("c")
	other.LobbyID = "lobby-2"
	if err := store.Save(ctx, other); err != nil {
		t.Fatalf("save other lobby: %v", err)
	}

	ids, err := store.List(ctx, "lobby-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 replays in lobby-1, got %v", ids)
	}
}

func TestStoreSaveRequiresID(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Save(context.Background(), &telemetry.DeathReplay{}); err == nil {
		t.Fatal("expected error for a record without an id")
	}
}

package sim

import (
	"math"
	"testing"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

const stepDt = 1.0 / 60.0

func testWorld() *World {
	return NewWorld(WorldConfig{
		Width: 1000, Height: 1000,
		MoveSpeed:         300,
		ProjectileSpeed:   600,
		ProjectileDamage:  40,
		RespawnDelayTicks: 10,
		SpawnInvulnTicks:  5,
		SpawnPoints: []geom.Vec2{
			{X: 100, Y: 100}, {X: 900, Y: 100}, {X: 100, Y: 900}, {X: 900, Y: 900},
		},
	})
}

func stepUntil(t *testing.T, w *World, ticks int) Snapshot {
	t.Helper()
	var snap Snapshot
	for i := 0; i < ticks; i++ {
		snap = w.Step(stepDt)
	}
	return snap
}

func findPlayer(t *testing.T, snap Snapshot, id string) PlayerView {
	t.Helper()
	for _, p := range snap.Players {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("player %s not in snapshot", id)
	return PlayerView{}
}

func TestMoveCommandDrivesPlayer(t *testing.T) {
	w := testWorld()
	w.AddPlayer("p1")
	start, _ := w.PlayerPosition("p1")

	w.Apply([]Command{{
		Type: CommandMove, ActorID: "p1",
		Move: &MoveCommand{Direction: geom.Vec2{X: 1, Y: 0}, Sequence: 7},
	}})
	snap := w.Step(stepDt)

	p := findPlayer(t, snap, "p1")
	want := start.X + 300*stepDt
	if math.Abs(p.Position.X-want) > 1e-9 {
		t.Fatalf("expected X %.4f, got %.4f", want, p.Position.X)
	}
	if p.LastAck != 7 {
		t.Fatalf("expected ack 7, got %d", p.LastAck)
	}
}

func TestMovementClampsToArena(t *testing.T) {
	w := testWorld()
	w.AddPlayer("p1")
	w.Apply([]Command{{
		Type: CommandMove, ActorID: "p1",
		Move: &MoveCommand{Direction: geom.Vec2{X: -1, Y: -1}},
	}})

	snap := stepUntil(t, w, 600)
	p := findPlayer(t, snap, "p1")
	r := w.Config().PlayerRadius
	if p.Position.X != r || p.Position.Y != r {
		t.Fatalf("expected clamp at (%.0f, %.0f), got %+v", r, r, p.Position)
	}
}

func TestOversizedIntentIsNormalized(t *testing.T) {
	w := testWorld()
	w.AddPlayer("p1")
	start, _ := w.PlayerPosition("p1")

	w.Apply([]Command{{
		Type: CommandMove, ActorID: "p1",
		Move: &MoveCommand{Direction: geom.Vec2{X: 10, Y: 0}},
	}})
	snap := w.Step(stepDt)

	p := findPlayer(t, snap, "p1")
	want := start.X + 300*stepDt
	if math.Abs(p.Position.X-want) > 1e-9 {
		t.Fatalf("intent above unit length must not exceed move speed: got %.4f want %.4f", p.Position.X, want)
	}
}

func TestProjectileKillsAndRespawns(t *testing.T) {
	w := NewWorld(WorldConfig{
		Width: 1000, Height: 1000,
		ProjectileSpeed:   600,
		ProjectileDamage:  100,
		RespawnDelayTicks: 10,
		SpawnInvulnTicks:  1,
		SpawnPoints:       []geom.Vec2{{X: 100, Y: 500}, {X: 400, Y: 500}},
	})
	w.AddPlayer("shooter")
	w.AddPlayer("victim")
	w.Step(stepDt)

	victimPos, _ := w.PlayerPosition("victim")
	shooterPos, _ := w.PlayerPosition("shooter")
	direction := victimPos.Sub(shooterPos).Normalized()
	w.Apply([]Command{{Type: CommandFire, ActorID: "shooter", Fire: &FireCommand{Direction: direction}}})

	var deaths []DeathEvent
	var sawDeathEvent bool
	for i := 0; i < 60 && len(deaths) == 0; i++ {
		snap := w.Step(stepDt)
		deaths = append(deaths, snap.Deaths...)
		for _, ev := range snap.Events {
			if ev.Kind == telemetry.CombatDeath {
				sawDeathEvent = true
			}
		}
	}

	if len(deaths) != 1 {
		t.Fatalf("expected exactly one death, got %d", len(deaths))
	}
	if deaths[0].VictimID != "victim" || deaths[0].KillerID != "shooter" {
		t.Fatalf("unexpected attribution %+v", deaths[0])
	}
	if !sawDeathEvent {
		t.Fatal("expected a death combat event alongside the death")
	}

	deathTick := deaths[0].Tick
	snap := w.Step(stepDt)
	p := findPlayer(t, snap, "victim")
	if !p.Respawning || p.Health != 0 {
		t.Fatalf("expected victim dead and awaiting respawn, got %+v", p)
	}

	for w.Tick() < deathTick+10 {
		snap = w.Step(stepDt)
	}
	p = findPlayer(t, snap, "victim")
	if p.Respawning {
		t.Fatal("expected respawn after the delay")
	}
	if p.Health != w.Config().PlayerMaxHealth {
		t.Fatalf("expected full health on respawn, got %.0f", p.Health)
	}
	if !p.Invulnerable {
		t.Fatal("expected spawn protection after respawn")
	}
}

func TestShieldAbsorbsBeforeHealth(t *testing.T) {
	w := NewWorld(WorldConfig{
		Width: 1000, Height: 1000,
		PlayerMaxShield:  30,
		ProjectileDamage: 40,
		ProjectileSpeed:  600,
		SpawnInvulnTicks: 1,
		SpawnPoints:      []geom.Vec2{{X: 100, Y: 500}, {X: 400, Y: 500}},
	})
	w.AddPlayer("shooter")
	w.AddPlayer("victim")
	stepUntil(t, w, 2)

	victimPos, _ := w.PlayerPosition("victim")
	shooterPos, _ := w.PlayerPosition("shooter")
	direction := victimPos.Sub(shooterPos).Normalized()
	w.Apply([]Command{{Type: CommandFire, ActorID: "shooter", Fire: &FireCommand{Direction: direction}}})

	var hit PlayerView
	for i := 0; i < 60; i++ {
		snap := w.Step(stepDt)
		p := findPlayer(t, snap, "victim")
		if p.Health < w.Config().PlayerMaxHealth {
			hit = p
			break
		}
	}
	if hit.ID == "" {
		t.Fatal("projectile never connected")
	}
	// 30 shield absorbs first, 10 spills into health.
	if hit.Shield != 0 || hit.Health != 90 {
		t.Fatalf("expected shield 0 health 90, got shield %.0f health %.0f", hit.Shield, hit.Health)
	}
}

func TestSpawnProtectionBlocksDamage(t *testing.T) {
	w := NewWorld(WorldConfig{
		Width: 1000, Height: 1000,
		ProjectileDamage: 40,
		ProjectileSpeed:  600,
		SpawnInvulnTicks: 1000,
		SpawnPoints:      []geom.Vec2{{X: 100, Y: 500}, {X: 400, Y: 500}},
	})
	w.AddPlayer("shooter")
	w.AddPlayer("victim")

	victimPos, _ := w.PlayerPosition("victim")
	shooterPos, _ := w.PlayerPosition("shooter")
	direction := victimPos.Sub(shooterPos).Normalized()
	w.Apply([]Command{{Type: CommandFire, ActorID: "shooter", Fire: &FireCommand{Direction: direction}}})

	for i := 0; i < 60; i++ {
		snap := w.Step(stepDt)
		p := findPlayer(t, snap, "victim")
		if p.Health < w.Config().PlayerMaxHealth {
			t.Fatal("spawn protection must block damage")
		}
	}
}

func TestFireCooldown(t *testing.T) {
	w := testWorld()
	w.AddPlayer("p1")
	w.Step(stepDt)

	fire := Command{Type: CommandFire, ActorID: "p1", Fire: &FireCommand{Direction: geom.Vec2{X: 1}}}
	w.Apply([]Command{fire, fire, fire})
	snap := w.Step(stepDt)
	if len(snap.Projectiles) != 1 {
		t.Fatalf("cooldown must limit rapid fire, got %d projectiles", len(snap.Projectiles))
	}
}

func TestSpawnSelectionAvoidsOccupiedPoints(t *testing.T) {
	w := testWorld()
	w.AddPlayer("camper")
	camper := w.players["camper"]
	camper.pos = geom.Vec2{X: 900, Y: 900}

	// A fresh spawn must never land on the occupied point, across many
	// respawns.
	for i := 0; i < 20; i++ {
		spawn := w.selectSpawn("newcomer")
		if geom.Dist(spawn, camper.pos) < w.Config().PlayerRadius*2 {
			t.Fatalf("spawn %d landed on an occupied point: %+v", i, spawn)
		}
	}

	// With every point contested the world still produces a spawn.
	for i, p := range w.Config().SpawnPoints {
		id := string(rune('a' + i))
		w.AddPlayer(id)
		w.players[id].pos = p
	}
	spawn := w.selectSpawn("newcomer")
	found := false
	for _, p := range w.Config().SpawnPoints {
		if spawn == p {
			found = true
		}
	}
	if !found {
		t.Fatalf("fallback spawn must still be a configured point, got %+v", spawn)
	}
}

func TestProjectilesExpireOutOfBounds(t *testing.T) {
	w := testWorld()
	w.AddPlayer("p1")
	w.Step(stepDt)

	w.Apply([]Command{{Type: CommandFire, ActorID: "p1", Fire: &FireCommand{Direction: geom.Vec2{X: -1}}}})
	snap := stepUntil(t, w, 120)
	if len(snap.Projectiles) != 0 {
		t.Fatalf("expected projectile culled at the arena edge, got %d", len(snap.Projectiles))
	}
}

func TestRemovePlayer(t *testing.T) {
	w := testWorld()
	w.AddPlayer("p1")
	w.AddPlayer("p2")
	w.Apply([]Command{{Type: CommandLeave, ActorID: "p2"}})
	snap := w.Step(stepDt)
	if len(snap.Players) != 1 || snap.Players[0].ID != "p1" {
		t.Fatalf("expected only p1 to remain, got %+v", snap.Players)
	}
}

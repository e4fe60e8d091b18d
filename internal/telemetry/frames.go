// Package telemetry captures per-tick gameplay frames into a bounded ring
// buffer and extracts death replays from it. Frames are immutable once
// captured; everything handed out of the package is a deep copy.
package telemetry

import (
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
)

// PlayerLifeState is the coarse life-cycle bucket recorded per frame.
type PlayerLifeState string

const (
	PlayerAlive      PlayerLifeState = "alive"
	PlayerDead       PlayerLifeState = "dead"
	PlayerRespawning PlayerLifeState = "respawning"
)

// PlayerSnapshot is the per-player slice of one telemetry frame.
type PlayerSnapshot struct {
	ID           string          `json:"id" msgpack:"id"`
	Position     geom.Vec2       `json:"position" msgpack:"position"`
	Velocity     geom.Vec2       `json:"velocity" msgpack:"velocity"`
	Health       float64         `json:"health" msgpack:"health"`
	Shield       float64         `json:"shield" msgpack:"shield"`
	Invulnerable bool            `json:"invulnerable" msgpack:"invulnerable"`
	Aim          geom.Vec2       `json:"aim" msgpack:"aim"`
	State        PlayerLifeState `json:"state" msgpack:"state"`
}

// ProjectileSnapshot is the per-projectile slice of one telemetry frame.
type ProjectileSnapshot struct {
	ID        string    `json:"id" msgpack:"id"`
	OwnerID   string    `json:"ownerId" msgpack:"ownerId"`
	Position  geom.Vec2 `json:"position" msgpack:"position"`
	Velocity  geom.Vec2 `json:"velocity" msgpack:"velocity"`
	SpawnTick uint64    `json:"spawnTick" msgpack:"spawnTick"`
}

// CombatEvent records a discrete combat occurrence attributed to a tick.
type CombatEvent struct {
	Kind     string  `json:"kind" msgpack:"kind"`
	Tick     uint64  `json:"tick" msgpack:"tick"`
	ActorID  string  `json:"actorId,omitempty" msgpack:"actorId,omitempty"`
	TargetID string  `json:"targetId,omitempty" msgpack:"targetId,omitempty"`
	Amount   float64 `json:"amount,omitempty" msgpack:"amount,omitempty"`
}

// Combat event kinds recorded into frames.
const (
	CombatFire    = "fire"
	CombatDamage  = "damage"
	CombatDeath   = "death"
	CombatRespawn = "respawn"
)

// NetworkStats is the connection-quality block embedded in every frame.
type NetworkStats struct {
	RTTMillis     int64   `json:"rttMillis" msgpack:"rttMillis"`
	JitterMillis  int64   `json:"jitterMillis" msgpack:"jitterMillis"`
	PacketLossPct float64 `json:"packetLossPct" msgpack:"packetLossPct"`
	ServerTick    uint64  `json:"serverTick" msgpack:"serverTick"`
	ClientTick    uint64  `json:"clientTick" msgpack:"clientTick"`
}

// NetworkStatsPatch is a partial update: nil fields leave the current value
// untouched.
type NetworkStatsPatch struct {
	RTTMillis     *int64
	JitterMillis  *int64
	PacketLossPct *float64
	ServerTick    *uint64
}

// Frame is one tick's worth of captured world state.
type Frame struct {
	Tick        uint64               `json:"tick" msgpack:"tick"`
	Timestamp   time.Time            `json:"timestamp" msgpack:"timestamp"`
	Players     []PlayerSnapshot     `json:"players" msgpack:"players"`
	Projectiles []ProjectileSnapshot `json:"projectiles" msgpack:"projectiles"`
	Events      []CombatEvent        `json:"events,omitempty" msgpack:"events,omitempty"`
	Network     NetworkStats         `json:"network" msgpack:"network"`
}

func cloneFrame(frame Frame) Frame {
	cloned := frame
	if frame.Players != nil {
		cloned.Players = make([]PlayerSnapshot, len(frame.Players))
		copy(cloned.Players, frame.Players)
	}
	if frame.Projectiles != nil {
		cloned.Projectiles = make([]ProjectileSnapshot, len(frame.Projectiles))
		copy(cloned.Projectiles, frame.Projectiles)
	}
	if frame.Events != nil {
		cloned.Events = make([]CombatEvent, len(frame.Events))
		copy(cloned.Events, frame.Events)
	}
	return cloned
}

func cloneFrames(frames []Frame) []Frame {
	if frames == nil {
		return nil
	}
	cloned := make([]Frame, len(frames))
	for i, frame := range frames {
		cloned[i] = cloneFrame(frame)
	}
	return cloned
}

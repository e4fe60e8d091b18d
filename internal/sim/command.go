// Package sim owns the authoritative arena simulation: a fixed-timestep
// world stepped by a single goroutine, fed through a bounded command queue.
package sim

import (
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
)

// CommandType identifies the staged command variants.
type CommandType string

const (
	CommandMove  CommandType = "move"
	CommandFire  CommandType = "fire"
	CommandJoin  CommandType = "join"
	CommandLeave CommandType = "leave"
)

// Command is one staged action applied at the start of a tick. Exactly one
// of the payload pointers matching Type is set.
type Command struct {
	Type     CommandType
	ActorID  string
	IssuedAt time.Time

	Move *MoveCommand
	Fire *FireCommand
}

// MoveCommand updates a player's movement intent and aim for subsequent
// ticks. Sequence is the client input sequence acknowledged back in state
// broadcasts.
type MoveCommand struct {
	Direction geom.Vec2
	Aim       geom.Vec2
	Sequence  uint64
	DeltaTime float64
}

// FireCommand spawns a projectile toward the given direction.
type FireCommand struct {
	Direction geom.Vec2
}

package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters aggregates cheap process-wide counters exposed through the
// diagnostics endpoint. All methods are safe for concurrent use.
type Counters struct {
	broadcastBytes    atomic.Uint64
	broadcastEntities atomic.Uint64
	lastBroadcastSize atomic.Uint64
	tickDurationNanos atomic.Int64

	framesCaptured    atomic.Uint64
	replaysExtracted  atomic.Uint64
	replaysStored     atomic.Uint64
	violationsFlagged atomic.Uint64
	playersKicked     atomic.Uint64
	inputsRejected    atomic.Uint64
}

// CountersSnapshot is the JSON shape served by diagnostics.
type CountersSnapshot struct {
	BroadcastBytes     uint64  `json:"broadcastBytes"`
	BroadcastEntities  uint64  `json:"broadcastEntities"`
	LastBroadcastSize  uint64  `json:"lastBroadcastSize"`
	TickDurationMillis float64 `json:"tickDurationMillis"`
	FramesCaptured     uint64  `json:"framesCaptured"`
	ReplaysExtracted   uint64  `json:"replaysExtracted"`
	ReplaysStored      uint64  `json:"replaysStored"`
	ViolationsFlagged  uint64  `json:"violationsFlagged"`
	PlayersKicked      uint64  `json:"playersKicked"`
	InputsRejected     uint64  `json:"inputsRejected"`
}

func NewCounters() *Counters {
	return &Counters{}
}

// RecordBroadcast accumulates the size of one state broadcast.
func (c *Counters) RecordBroadcast(bytes, entities int) {
	if c == nil {
		return
	}
	if bytes > 0 {
		c.broadcastBytes.Add(uint64(bytes))
		c.lastBroadcastSize.Store(uint64(bytes))
	}
	if entities > 0 {
		c.broadcastEntities.Add(uint64(entities))
	}
}

// RecordTickDuration stores the most recent simulation step duration.
func (c *Counters) RecordTickDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.tickDurationNanos.Store(d.Nanoseconds())
}

func (c *Counters) IncrementFramesCaptured() {
	if c != nil {
		c.framesCaptured.Add(1)
	}
}

func (c *Counters) IncrementReplaysExtracted() {
	if c != nil {
		c.replaysExtracted.Add(1)
	}
}

func (c *Counters) IncrementReplaysStored() {
	if c != nil {
		c.replaysStored.Add(1)
	}
}

func (c *Counters) IncrementViolationsFlagged() {
	if c != nil {
		c.violationsFlagged.Add(1)
	}
}

func (c *Counters) IncrementPlayersKicked() {
	if c != nil {
		c.playersKicked.Add(1)
	}
}

func (c *Counters) IncrementInputsRejected() {
	if c != nil {
		c.inputsRejected.Add(1)
	}
}

// Snapshot returns a point-in-time copy of every counter.
func (c *Counters) Snapshot() CountersSnapshot {
	if c == nil {
		return CountersSnapshot{}
	}
	return CountersSnapshot{
		BroadcastBytes:     c.broadcastBytes.Load(),
		BroadcastEntities:  c.broadcastEntities.Load(),
		LastBroadcastSize:  c.lastBroadcastSize.Load(),
		TickDurationMillis: float64(c.tickDurationNanos.Load()) / float64(time.Millisecond),
		FramesCaptured:     c.framesCaptured.Load(),
		ReplaysExtracted:   c.replaysExtracted.Load(),
		ReplaysStored:      c.replaysStored.Load(),
		ViolationsFlagged:  c.violationsFlagged.Load(),
		PlayersKicked:      c.playersKicked.Load(),
		InputsRejected:     c.inputsRejected.Load(),
	}
}

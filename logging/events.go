package logging

import "time"

// Event types emitted by the state-sync core. Observers subscribe by sink;
// the router fans out every event to all enabled sinks.
const (
	EventViolationDetected EventType = "anticheat.violation"
	EventPlayerKicked      EventType = "anticheat.kick"
	EventPlayerDeath       EventType = "combat.death"
	EventReplayExtracted   EventType = "replay.extracted"
	EventReplayStored      EventType = "replay.stored"
	EventClientResync      EventType = "network.resync"
)

// ViolationPayload describes a single failed input validation.
type ViolationPayload struct {
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
	Count   int    `json:"count"`
}

// KickPayload carries the violation that crossed the kick threshold plus the
// running window count, so every kick stays attributable.
type KickPayload struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// DeathPayload identifies the killer for a death event; the victim is the
// event actor.
type DeathPayload struct {
	KillerID string `json:"killerId,omitempty"`
}

// ReplayPayload describes an extracted or stored death replay.
type ReplayPayload struct {
	ReplayID string `json:"replayId"`
	VictimID string `json:"victimId"`
	Frames   int    `json:"frames"`
	TTL      string `json:"ttl,omitempty"`
}

// ViolationDetected builds the event for a failed validation.
func ViolationDetected(tick uint64, playerID, kind, details string, count int) Event {
	return Event{
		Type:     EventViolationDetected,
		Tick:     tick,
		Actor:    EntityRef{ID: playerID, Kind: EntityKindPlayer},
		Severity: SeverityWarn,
		Category: CategoryAnticheat,
		Payload:  ViolationPayload{Kind: kind, Details: details, Count: count},
	}
}

// PlayerKicked builds the event for a crossed kick threshold.
func PlayerKicked(tick uint64, playerID, reason string, count int) Event {
	return Event{
		Type:     EventPlayerKicked,
		Tick:     tick,
		Actor:    EntityRef{ID: playerID, Kind: EntityKindPlayer},
		Severity: SeverityError,
		Category: CategoryAnticheat,
		Payload:  KickPayload{Reason: reason, Count: count},
	}
}

// PlayerDeath builds the event recorded when a player's health reaches zero.
func PlayerDeath(tick uint64, victimID, killerID string) Event {
	event := Event{
		Type:     EventPlayerDeath,
		Tick:     tick,
		Actor:    EntityRef{ID: victimID, Kind: EntityKindPlayer},
		Severity: SeverityInfo,
		Category: CategoryCombat,
		Payload:  DeathPayload{KillerID: killerID},
	}
	if killerID != "" {
		event.Targets = []EntityRef{{ID: killerID, Kind: EntityKindPlayer}}
	}
	return event
}

// ReplayExtracted builds the event for a freshly sliced death replay.
func ReplayExtracted(tick uint64, replayID, victimID string, frames int) Event {
	return Event{
		Type:     EventReplayExtracted,
		Tick:     tick,
		Actor:    EntityRef{ID: replayID, Kind: EntityKindReplay},
		Severity: SeverityInfo,
		Category: CategoryReplay,
		Payload:  ReplayPayload{ReplayID: replayID, VictimID: victimID, Frames: frames},
	}
}

// ReplayStored builds the event emitted once a replay is persisted.
func ReplayStored(replayID, victimID string, ttl time.Duration) Event {
	return Event{
		Type:     EventReplayStored,
		Actor:    EntityRef{ID: replayID, Kind: EntityKindReplay},
		Severity: SeverityInfo,
		Category: CategoryReplay,
		Payload:  ReplayPayload{ReplayID: replayID, VictimID: victimID, TTL: ttl.String()},
	}
}

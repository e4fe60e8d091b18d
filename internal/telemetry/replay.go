package telemetry

import (
	"time"
)

// DefaultReplayTTL is how long an extracted death replay stays retrievable.
const DefaultReplayTTL = 24 * time.Hour

// DeathReplay is a self-contained slice of frames leading up to a kill. It
// shares no memory with the recorder that produced it.
type DeathReplay struct {
	ID             string    `json:"id" msgpack:"id"`
	LobbyID        string    `json:"lobbyId" msgpack:"lobbyId"`
	VictimID       string    `json:"victimId" msgpack:"victimId"`
	KillerID       string    `json:"killerId" msgpack:"killerId"`
	DeathTick      uint64    `json:"deathTick" msgpack:"deathTick"`
	DeathTimestamp time.Time `json:"deathTimestamp" msgpack:"deathTimestamp"`
	Frames         []Frame   `json:"frames" msgpack:"frames"`
	// Flagged marks replays queued for moderation review.
	Flagged   bool      `json:"flagged" msgpack:"flagged"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" msgpack:"expiresAt"`
}

// Expired reports whether the replay's retention window has passed. Storage
// backends also enforce the window; this covers replays held in memory.
func (r *DeathReplay) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Duration is the wall-clock span covered by the captured frames.
func (r *DeathReplay) Duration() time.Duration {
	if len(r.Frames) < 2 {
		return 0
	}
	return r.Frames[len(r.Frames)-1].Timestamp.Sub(r.Frames[0].Timestamp)
}

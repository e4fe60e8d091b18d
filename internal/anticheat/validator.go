// Package anticheat validates client-reported movement against authoritative
// physics limits. Violations are recorded per player in a sliding time
// window; crossing the configured threshold emits a kick signal. The signal
// is advisory: callers decide whether to disconnect, and server movement is
// never blocked by a flagged input.
package anticheat

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
)

// ViolationKind classifies why an input was flagged.
type ViolationKind string

const (
	// ViolationSpeedHack marks a claimed displacement exceeding the maximum
	// legal movement for the elapsed time, plus tolerance.
	ViolationSpeedHack ViolationKind = "speed_hack"
	// ViolationTimestampMismatch marks a client timestamp too far from
	// server time in either direction.
	ViolationTimestampMismatch ViolationKind = "timestamp_mismatch"
)

const (
	// DefaultMaxViolations is the windowed violation count that triggers a
	// kick signal.
	DefaultMaxViolations = 10
	// DefaultViolationWindow is how long a violation counts against a
	// player before it ages out.
	DefaultViolationWindow = 60 * time.Second
	// DefaultSpeedToleranceFactor absorbs jitter, frame-time variance, and
	// prediction error before a displacement is considered cheating.
	DefaultSpeedToleranceFactor = 1.5
	// DefaultTimestampTolerance bounds client/server clock disagreement.
	DefaultTimestampTolerance = 500 * time.Millisecond
)

// Violation is the error returned for a rejected input. It also serves as
// the per-player record retained in the sliding window.
type Violation struct {
	PlayerID string        `json:"playerId"`
	Kind     ViolationKind `json:"kind"`
	Details  string        `json:"details"`
	At       time.Time     `json:"at"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("anticheat: %s by player %s: %s", v.Kind, v.PlayerID, v.Details)
}

// KickSignal is emitted once when a player's windowed violation count
// reaches the configured maximum.
type KickSignal struct {
	PlayerID string
	Reason   ViolationKind
	Count    int
}

// Hooks lets the owner observe validation outcomes without coupling the
// validator to transport or logging concerns. Nil hooks are skipped.
type Hooks struct {
	OnViolation func(Violation)
	OnKick      func(KickSignal)
}

// Config tunes the validator. Zero values fall back to defaults; MaxSpeed
// has no default and must be supplied by the caller.
type Config struct {
	// MaxSpeed is the authoritative movement speed in world units per
	// second. Displacements are judged against MaxSpeed * deltaTime.
	MaxSpeed             float64
	MaxViolations        int
	ViolationWindow      time.Duration
	SpeedToleranceFactor float64
	TimestampTolerance   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxViolations <= 0 {
		c.MaxViolations = DefaultMaxViolations
	}
	if c.ViolationWindow <= 0 {
		c.ViolationWindow = DefaultViolationWindow
	}
	if c.SpeedToleranceFactor <= 0 {
		c.SpeedToleranceFactor = DefaultSpeedToleranceFactor
	}
	if c.TimestampTolerance <= 0 {
		c.TimestampTolerance = DefaultTimestampTolerance
	}
	return c
}

// InputSample is the client-reported data a single validation pass judges.
type InputSample struct {
	Sequence        uint64
	ClientTimestamp time.Time
	// ClaimedPosition is where the client says it ended up after the input.
	ClaimedPosition geom.Vec2
	// DeltaTime is the client frame time in seconds for this input.
	DeltaTime float64
}

// Validator is safe for concurrent use; connection handlers call it directly.
type Validator struct {
	mu    sync.Mutex
	cfg   Config
	clock logging.Clock
	hooks Hooks

	violations map[string][]Violation
	// grants holds one-shot displacement allowances for scripted movement
	// (teleporters, jump pads). Consumed by the next speed check.
	grants map[string]float64
}

// NewValidator constructs a validator. A nil clock falls back to the system
// clock.
func NewValidator(cfg Config, clock logging.Clock, hooks Hooks) *Validator {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Validator{
		cfg:        cfg.withDefaults(),
		clock:      clock,
		hooks:      hooks,
		violations: make(map[string][]Violation),
		grants:     make(map[string]float64),
	}
}

// ValidateInput judges one input against the previous authoritative position.
// serverTime is the authority's receive time for the input. A non-nil return
// is always a *Violation; the caller still applies its own authoritative
// movement regardless.
func (v *Validator) ValidateInput(playerID string, sample InputSample, previousPosition geom.Vec2, serverTime time.Time) error {
	drift := sample.ClientTimestamp.Sub(serverTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.cfg.TimestampTolerance {
		return v.record(playerID, ViolationTimestampMismatch,
			fmt.Sprintf("client clock off by %s (tolerance %s)", drift, v.cfg.TimestampTolerance))
	}

	if sample.DeltaTime > 0 {
		distance := geom.Dist(previousPosition, sample.ClaimedPosition)
		allowed := v.cfg.MaxSpeed * sample.DeltaTime * v.cfg.SpeedToleranceFactor

		v.mu.Lock()
		if grant, ok := v.grants[playerID]; ok {
			allowed += grant
			delete(v.grants, playerID)
		}
		v.mu.Unlock()

		if distance > allowed {
			return v.record(playerID, ViolationSpeedHack,
				fmt.Sprintf("moved %.2f units in %.4fs (max %.2f)", distance, sample.DeltaTime, allowed))
		}
	}

	return nil
}

// AllowDisplacement grants a one-shot extra displacement allowance for the
// player's next speed check, covering legitimate teleports and jump pads.
func (v *Validator) AllowDisplacement(playerID string, units float64) {
	if units <= 0 || math.IsNaN(units) {
		return
	}
	v.mu.Lock()
	v.grants[playerID] += units
	v.mu.Unlock()
}

func (v *Validator) record(playerID string, kind ViolationKind, details string) *Violation {
	now := v.clock.Now()
	violation := Violation{PlayerID: playerID, Kind: kind, Details: details, At: now}

	v.mu.Lock()
	window := v.pruneLocked(playerID, now)
	window = append(window, violation)
	v.violations[playerID] = window
	count := len(window)
	v.mu.Unlock()

	if v.hooks.OnViolation != nil {
		v.hooks.OnViolation(violation)
	}
	if count == v.cfg.MaxViolations && v.hooks.OnKick != nil {
		v.hooks.OnKick(KickSignal{PlayerID: playerID, Reason: kind, Count: count})
	}
	return &violation
}

// pruneLocked drops window entries older than the violation window. Caller
// holds v.mu.
func (v *Validator) pruneLocked(playerID string, now time.Time) []Violation {
	window := v.violations[playerID]
	cutoff := now.Add(-v.cfg.ViolationWindow)
	kept := window[:0]
	for _, rec := range window {
		if rec.At.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	if len(kept) == 0 {
		delete(v.violations, playerID)
		return nil
	}
	v.violations[playerID] = kept
	return kept
}

// ViolationCount reports the player's violations still inside the window.
func (v *Validator) ViolationCount(playerID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pruneLocked(playerID, v.clock.Now()))
}

// Violations returns a copy of the player's windowed violation records.
func (v *Validator) Violations(playerID string) []Violation {
	v.mu.Lock()
	defer v.mu.Unlock()
	window := v.pruneLocked(playerID, v.clock.Now())
	out := make([]Violation, len(window))
	copy(out, window)
	return out
}

// ShouldKick reports whether the player's windowed count has reached the
// kick threshold.
func (v *Validator) ShouldKick(playerID string) bool {
	return v.ViolationCount(playerID) >= v.cfg.MaxViolations
}

// ClearViolations forgives a player's recorded violations, typically after
// a respawn or a round reset.
func (v *Validator) ClearViolations(playerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.violations, playerID)
}

// RemovePlayer drops all validator state for a departed player.
func (v *Validator) RemovePlayer(playerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.violations, playerID)
	delete(v.grants, playerID)
}

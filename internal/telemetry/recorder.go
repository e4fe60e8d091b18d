package telemetry

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
)

const (
	// DefaultMaxFrames retains 30 seconds of history at 60 captures/s.
	DefaultMaxFrames = 1800
	// DefaultReplayFrames covers the final 5 seconds before a death.
	DefaultReplayFrames = 300
	// DefaultCaptureRate is the expected capture frequency in Hz, used to
	// derive per-frame velocities from position deltas.
	DefaultCaptureRate = 60.0
)

// Config tunes the recorder. Zero values fall back to defaults.
type Config struct {
	MaxFrames    int
	ReplayFrames int
	CaptureRate  float64
	LobbyID      string
}

func (c Config) withDefaults() Config {
	if c.MaxFrames <= 0 {
		c.MaxFrames = DefaultMaxFrames
	}
	if c.ReplayFrames <= 0 {
		c.ReplayFrames = DefaultReplayFrames
	}
	if c.CaptureRate <= 0 {
		c.CaptureRate = DefaultCaptureRate
	}
	return c
}

// HealthSample is the per-player vitals block supplied to CaptureFrame.
type HealthSample struct {
	Health       float64
	Shield       float64
	Invulnerable bool
}

// WorldSample is the raw world state the recorder snapshots each tick. Maps
// are read, never retained.
type WorldSample struct {
	Positions   map[string]geom.Vec2
	Health      map[string]HealthSample
	Aim         map[string]geom.Vec2
	Respawning  map[string]bool
	Projectiles []ProjectileSnapshot
	Events      []CombatEvent
}

// Recorder owns a fixed-capacity FIFO of telemetry frames. Safe for
// concurrent use; the simulation tick captures while connection handlers
// patch network stats.
type Recorder struct {
	mu    sync.Mutex
	cfg   Config
	clock logging.Clock

	frames        []Frame
	tick          uint64
	prevPositions map[string]geom.Vec2
	network       NetworkStats
}

// NewRecorder constructs a recorder. A nil clock falls back to the system
// clock.
func NewRecorder(cfg Config, clock logging.Clock) *Recorder {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	cfg = cfg.withDefaults()
	return &Recorder{
		cfg:           cfg,
		clock:         clock,
		frames:        make([]Frame, 0, cfg.MaxFrames),
		prevPositions: make(map[string]geom.Vec2),
	}
}

// CaptureFrame snapshots the sample into a new frame, appends it to the ring,
// and returns a copy. Ticks increase by exactly one per capture. Velocities
// are derived from the previous capture's positions; a player's first frame
// reports zero velocity.
func (r *Recorder) CaptureFrame(sample WorldSample) Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(sample.Positions))
	for id := range sample.Positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	players := make([]PlayerSnapshot, 0, len(ids))
	nextPositions := make(map[string]geom.Vec2, len(ids))
	for _, id := range ids {
		position := sample.Positions[id]
		velocity := geom.Vec2{}
		if prev, ok := r.prevPositions[id]; ok {
			velocity = position.Sub(prev).Scale(r.cfg.CaptureRate)
		}
		nextPositions[id] = position

		snapshot := PlayerSnapshot{
			ID:       id,
			Position: position,
			Velocity: velocity,
			Aim:      sample.Aim[id],
			State:    PlayerAlive,
		}
		if vitals, ok := sample.Health[id]; ok {
			snapshot.Health = vitals.Health
			snapshot.Shield = vitals.Shield
			snapshot.Invulnerable = vitals.Invulnerable
		}
		switch {
		case sample.Respawning[id]:
			snapshot.State = PlayerRespawning
		case snapshot.Health <= 0:
			snapshot.State = PlayerDead
		}
		players = append(players, snapshot)
	}
	r.prevPositions = nextPositions

	network := r.network
	network.ClientTick = r.tick

	frame := Frame{
		Tick:        r.tick,
		Timestamp:   r.clock.Now(),
		Players:     players,
		Projectiles: append([]ProjectileSnapshot(nil), sample.Projectiles...),
		Events:      append([]CombatEvent(nil), sample.Events...),
		Network:     network,
	}
	r.tick++

	if len(r.frames) >= r.cfg.MaxFrames {
		overflow := len(r.frames) - r.cfg.MaxFrames + 1
		copy(r.frames, r.frames[overflow:])
		r.frames = r.frames[:len(r.frames)-overflow]
	}
	r.frames = append(r.frames, cloneFrame(frame))

	return frame
}

// UpdateNetworkStats merges a partial stats update into the block embedded in
// subsequent frames. Nil patch fields keep their current values.
func (r *Recorder) UpdateNetworkStats(patch NetworkStatsPatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patch.RTTMillis != nil {
		r.network.RTTMillis = *patch.RTTMillis
	}
	if patch.JitterMillis != nil {
		r.network.JitterMillis = *patch.JitterMillis
	}
	if patch.PacketLossPct != nil {
		r.network.PacketLossPct = *patch.PacketLossPct
	}
	if patch.ServerTick != nil {
		r.network.ServerTick = *patch.ServerTick
	}
}

// ExtractDeathReplay deep-copies the frames leading up to deathTick into a
// standalone replay record. A deathTick of zero means "up to now". Extraction
// never fails: an empty or over-trimmed buffer yields a stamped replay with
// whatever frames exist, possibly none.
func (r *Recorder) ExtractDeathReplay(victimID, killerID string, deathTick uint64) DeathReplay {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := len(r.frames)
	if deathTick > 0 {
		for end > 0 && r.frames[end-1].Tick > deathTick {
			end--
		}
	}

	start := end - r.cfg.ReplayFrames
	if start < 0 {
		start = 0
	}

	now := r.clock.Now()
	replay := DeathReplay{
		ID:        uuid.NewString(),
		LobbyID:   r.cfg.LobbyID,
		VictimID:  victimID,
		KillerID:  killerID,
		DeathTick: deathTick,
		Frames:    cloneFrames(r.frames[start:end]),
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultReplayTTL),
	}
	if end > 0 {
		replay.DeathTick = r.frames[end-1].Tick
		replay.DeathTimestamp = r.frames[end-1].Timestamp
	}
	return replay
}

// Len reports the number of buffered frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// CurrentTick reports the tick the next capture will be stamped with.
func (r *Recorder) CurrentTick() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

// Frames returns a deep copy of the buffered frames, oldest first.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneFrames(r.frames)
}

// Reset clears all frames, the tick counter, velocity history, and network
// stats, typically between rounds.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = r.frames[:0]
	r.tick = 0
	r.prevPositions = make(map[string]geom.Vec2)
	r.network = NetworkStats{}
}

// Package prediction implements client-side movement prediction with server
// reconciliation. The predictor applies local input immediately, keeps a
// bounded history of inputs the authority has not yet acknowledged, and
// smooths authoritative corrections instead of snapping.
package prediction

import (
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
)

const (
	// DefaultPositionTolerance is the mismatch distance, in world units,
	// beyond which a reconciliation pass is triggered.
	DefaultPositionTolerance = 5.0
	// MaxPendingInputs bounds the unacknowledged-input history. At 60
	// inputs per second this covers roughly two seconds of latency.
	MaxPendingInputs = 120

	correctionDecay   = 0.15
	correctionEpsilon = 0.1
	desyncFactor      = 3.0
)

// InputFrame captures one sampled input and the position predicted after
// applying it. Frames are immutable once created and owned by the predictor
// until the authority acknowledges their sequence.
type InputFrame struct {
	Sequence          uint64    `json:"sequence"`
	Timestamp         time.Time `json:"timestamp"`
	Direction         geom.Vec2 `json:"direction"`
	DeltaTime         float64   `json:"deltaTime"`
	PredictedPosition geom.Vec2 `json:"predictedPosition"`
}

// ServerState is the authoritative reconciliation anchor: the server's
// position for this player and the highest input sequence it has applied.
type ServerState struct {
	Position  geom.Vec2 `json:"position"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// Config tunes the predictor. Zero values fall back to defaults.
type Config struct {
	MoveSpeed         float64
	PositionTolerance float64
	MaxPendingInputs  int
}

func (c Config) withDefaults() Config {
	if c.PositionTolerance <= 0 {
		c.PositionTolerance = DefaultPositionTolerance
	}
	if c.MaxPendingInputs <= 0 {
		c.MaxPendingInputs = MaxPendingInputs
	}
	return c
}

// Predictor owns the local player's predicted position. It is single-owner
// state driven by the client simulation tick; none of its methods block.
type Predictor struct {
	cfg   Config
	clock logging.Clock

	sequence   uint64
	predicted  geom.Vec2
	pending    []InputFrame
	correction geom.Vec2

	lastServer ServerState
	hasServer  bool
}

// NewPredictor constructs a predictor with the provided clock. A nil clock
// falls back to the system clock.
func NewPredictor(cfg Config, clock logging.Clock) *Predictor {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	cfg = cfg.withDefaults()
	return &Predictor{
		cfg:     cfg,
		clock:   clock,
		pending: make([]InputFrame, 0, cfg.MaxPendingInputs),
	}
}

// Initialize resets all state and establishes a known-good anchor.
func (p *Predictor) Initialize(position geom.Vec2, moveSpeed float64) {
	p.cfg.MoveSpeed = moveSpeed
	p.sequence = 0
	p.predicted = position
	p.pending = p.pending[:0]
	p.correction = geom.Vec2{}
	p.lastServer = ServerState{}
	p.hasServer = false
}

// ProcessInput advances the predicted position by one input sample and
// returns the frame to transmit to the authority. Sequences are strictly
// increasing for the life of the session.
func (p *Predictor) ProcessInput(direction geom.Vec2, deltaTime float64) InputFrame {
	p.sequence++
	newPosition := p.predicted.Add(direction.Scale(p.cfg.MoveSpeed * deltaTime))

	frame := InputFrame{
		Sequence:          p.sequence,
		Timestamp:         p.clock.Now(),
		Direction:         direction,
		DeltaTime:         deltaTime,
		PredictedPosition: newPosition,
	}

	if len(p.pending) >= p.cfg.MaxPendingInputs {
		overflow := len(p.pending) - p.cfg.MaxPendingInputs + 1
		copy(p.pending, p.pending[overflow:])
		p.pending = p.pending[:len(p.pending)-overflow]
	}
	p.pending = append(p.pending, frame)
	p.predicted = newPosition

	return frame
}

// ReceiveServerState consumes an authoritative anchor. Acknowledged frames
// are discarded; when the prediction mismatch exceeds the tolerance, the
// remaining pending inputs are replayed in order on top of the server
// position and the resulting shift is folded into the correction offset so
// the rendered position glides rather than teleports.
func (p *Predictor) ReceiveServerState(state ServerState) {
	kept := p.pending[:0]
	for _, frame := range p.pending {
		if frame.Sequence > state.Sequence {
			kept = append(kept, frame)
		}
	}
	p.pending = kept

	p.lastServer = state
	p.hasServer = true

	mismatch := geom.Dist(p.predicted, state.Position)
	if mismatch <= p.cfg.PositionTolerance {
		return
	}

	rebuilt := state.Position
	for _, frame := range p.pending {
		rebuilt = rebuilt.Add(frame.Direction.Scale(p.cfg.MoveSpeed * frame.DeltaTime))
	}
	p.correction = p.correction.Add(rebuilt.Sub(p.predicted))
	p.predicted = rebuilt
}

// RenderPosition returns the smoothed position to draw this frame and decays
// the correction offset toward zero. Below a small threshold the offset is
// zeroed outright so it cannot drift asymptotically.
func (p *Predictor) RenderPosition() geom.Vec2 {
	position := p.predicted.Sub(p.correction)
	p.correction = p.correction.Scale(1 - correctionDecay)
	if p.correction.Length() < correctionEpsilon {
		p.correction = geom.Vec2{}
	}
	return position
}

// HasDesync reports whether live prediction has drifted so far from the last
// authoritative position that the caller should consider a hard resync.
func (p *Predictor) HasDesync() bool {
	if !p.hasServer {
		return false
	}
	return geom.Dist(p.predicted, p.lastServer.Position) > desyncFactor*p.cfg.PositionTolerance
}

// PredictedPosition returns the raw (unsmoothed) predicted position.
func (p *Predictor) PredictedPosition() geom.Vec2 {
	return p.predicted
}

// PendingCount reports the number of unacknowledged input frames.
func (p *Predictor) PendingCount() int {
	return len(p.pending)
}

// LastSequence returns the sequence of the most recent input frame.
func (p *Predictor) LastSequence() uint64 {
	return p.sequence
}

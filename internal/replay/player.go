// Package replay plays back and persists death replays extracted by the
// telemetry recorder. Playback is pull-based: the owner calls Update once
// per render frame and the player decides how far to advance.
package replay

import (
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
)

// State is the playback lifecycle.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

const (
	// MinSpeed and MaxSpeed clamp the playback multiplier.
	MinSpeed = 0.25
	MaxSpeed = 2.0

	// frameDuration assumes frames were captured at 60 Hz.
	frameDuration = time.Second / 60
)

// Hooks lets the owner react to playback changes without polling. Nil hooks
// are skipped. OnFrameChange fires whenever the current frame index moves,
// including on load and seeks.
type Hooks struct {
	OnFrameChange func(index int, frame telemetry.Frame)
	OnStateChange func(State)
	OnPlaybackEnd func()
}

// Player steps through a loaded replay under wall-clock control. Single-owner
// state: the render loop drives it, so no locking.
type Player struct {
	clock logging.Clock
	hooks Hooks

	replay      *telemetry.DeathReplay
	state       State
	index       int
	speed       float64
	lastUpdate  time.Time
	accumulated time.Duration
	endFired    bool
}

// NewPlayer constructs a stopped player at normal speed. A nil clock falls
// back to the system clock.
func NewPlayer(clock logging.Clock, hooks Hooks) *Player {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Player{
		clock: clock,
		hooks: hooks,
		state: StateStopped,
		speed: 1.0,
	}
}

// Load installs a replay, resets playback to the first frame, and emits it
// immediately so the viewer renders something before Play is called.
func (p *Player) Load(replay *telemetry.DeathReplay) {
	p.replay = replay
	p.index = 0
	p.accumulated = 0
	p.endFired = false
	p.setState(StateStopped)
	p.emitFrame()
}

// Play starts or resumes playback. Playing a finished replay restarts it
// from the first frame. No-op without a loaded replay.
func (p *Player) Play() {
	if p.replay == nil || len(p.replay.Frames) == 0 {
		return
	}
	if p.state == StatePlaying {
		return
	}
	if p.index >= len(p.replay.Frames)-1 {
		p.index = 0
		p.emitFrame()
	}
	p.accumulated = 0
	p.lastUpdate = p.clock.Now()
	p.endFired = false
	p.setState(StatePlaying)
}

// Pause freezes playback at the current frame.
func (p *Player) Pause() {
	if p.state != StatePlaying {
		return
	}
	p.setState(StatePaused)
}

// Stop halts playback and rewinds to the first frame.
func (p *Player) Stop() {
	if p.state == StateStopped && p.index == 0 {
		return
	}
	p.setState(StateStopped)
	p.accumulated = 0
	p.endFired = false
	if p.index != 0 {
		p.index = 0
		p.emitFrame()
	}
}

// SetSpeed sets the playback multiplier, clamped to [MinSpeed, MaxSpeed].
func (p *Player) SetSpeed(multiplier float64) {
	if multiplier < MinSpeed {
		multiplier = MinSpeed
	}
	if multiplier > MaxSpeed {
		multiplier = MaxSpeed
	}
	p.speed = multiplier
}

// Speed returns the current playback multiplier.
func (p *Player) Speed() float64 {
	return p.speed
}

// Update advances playback according to wall-clock time elapsed since the
// previous Update, scaled by the speed multiplier. Reaching the final frame
// pauses playback and fires the end hook exactly once per run.
func (p *Player) Update() {
	if p.state != StatePlaying || p.replay == nil {
		return
	}

	now := p.clock.Now()
	elapsed := now.Sub(p.lastUpdate)
	p.lastUpdate = now
	if elapsed < 0 {
		elapsed = 0
	}

	p.accumulated += time.Duration(float64(elapsed) * p.speed)
	steps := int(p.accumulated / frameDuration)
	if steps == 0 {
		return
	}
	p.accumulated -= time.Duration(steps) * frameDuration

	last := len(p.replay.Frames) - 1
	next := p.index + steps
	if next >= last {
		next = last
	}
	if next != p.index {
		p.index = next
		p.emitFrame()
	}

	if p.index >= last {
		p.setState(StatePaused)
		if !p.endFired {
			p.endFired = true
			if p.hooks.OnPlaybackEnd != nil {
				p.hooks.OnPlaybackEnd()
			}
		}
	}
}

// SeekToFrame jumps to the given frame index, clamped to the replay bounds.
func (p *Player) SeekToFrame(index int) {
	if p.replay == nil || len(p.replay.Frames) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if max := len(p.replay.Frames) - 1; index > max {
		index = max
	}
	p.accumulated = 0
	if index != p.index {
		p.index = index
		p.emitFrame()
	}
	if p.index < len(p.replay.Frames)-1 {
		p.endFired = false
	}
}

// SeekToTime jumps to the frame whose timestamp is nearest to ts.
func (p *Player) SeekToTime(ts time.Time) {
	if p.replay == nil || len(p.replay.Frames) == 0 {
		return
	}
	best := 0
	bestDelta := time.Duration(1<<63 - 1)
	for i, frame := range p.replay.Frames {
		delta := frame.Timestamp.Sub(ts)
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	p.SeekToFrame(best)
}

// StepForward advances exactly one frame; pauses playback if running.
func (p *Player) StepForward() {
	if p.state == StatePlaying {
		p.setState(StatePaused)
	}
	p.SeekToFrame(p.index + 1)
}

// StepBackward rewinds exactly one frame; pauses playback if running.
func (p *Player) StepBackward() {
	if p.state == StatePlaying {
		p.setState(StatePaused)
	}
	p.SeekToFrame(p.index - 1)
}

// State reports the current playback state.
func (p *Player) State() State {
	return p.state
}

// FrameIndex reports the current frame index.
func (p *Player) FrameIndex() int {
	return p.index
}

// CurrentFrame returns the frame under the playhead.
func (p *Player) CurrentFrame() (telemetry.Frame, bool) {
	if p.replay == nil || p.index >= len(p.replay.Frames) {
		return telemetry.Frame{}, false
	}
	return p.replay.Frames[p.index], true
}

// Progress reports playback position in [0, 1].
func (p *Player) Progress() float64 {
	if p.replay == nil || len(p.replay.Frames) == 0 {
		return 0
	}
	if len(p.replay.Frames) == 1 {
		return 1
	}
	return float64(p.index) / float64(len(p.replay.Frames)-1)
}

// TimeFromDeath reports the playhead position in seconds relative to the
// moment of death. Negative before death, zero at the final frame.
func (p *Player) TimeFromDeath() float64 {
	if p.replay == nil || len(p.replay.Frames) == 0 {
		return 0
	}
	death := p.replay.DeathTimestamp
	if death.IsZero() {
		death = p.replay.Frames[len(p.replay.Frames)-1].Timestamp
	}
	return p.replay.Frames[p.index].Timestamp.Sub(death).Seconds()
}

func (p *Player) setState(next State) {
	if p.state == next {
		return
	}
	p.state = next
	if p.hooks.OnStateChange != nil {
		p.hooks.OnStateChange(next)
	}
}

func (p *Player) emitFrame() {
	if p.hooks.OnFrameChange == nil || p.replay == nil || len(p.replay.Frames) == 0 {
		return
	}
	p.hooks.OnFrameChange(p.index, p.replay.Frames[p.index])
}

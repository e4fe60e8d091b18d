package sim

import (
	"sync"
	"time"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to
	// per-actor queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is
	// saturated.
	CommandRejectQueueFull = "queue_full"
)

// LoopConfig tunes the command queue and tick cadence.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
}

// LoopResult describes one completed simulation step.
type LoopResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	Snapshot     Snapshot
	Commands     []Command
}

// LoopHooks let the owner observe steps and queue pressure. Nil hooks are
// skipped. AfterStep runs on the loop goroutine: keep it cheap.
type LoopHooks struct {
	AfterStep     func(LoopResult)
	OnCommandDrop func(reason string, cmd Command)
}

// Loop drives the world at a fixed timestep, draining the staged command
// queue once per tick.
type Loop struct {
	world   *World
	buffer  *CommandBuffer
	clock   logging.Clock
	cfg     LoopConfig
	hooks   LoopHooks
	logger  telemetry.Logger
	metrics telemetry.Metrics

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64
}

// NewLoop wraps the world with a bounded queue and a tick runner. A nil
// clock falls back to the system clock.
func NewLoop(world *World, cfg LoopConfig, clock logging.Clock, logger telemetry.Logger, metrics telemetry.Metrics, hooks LoopHooks) *Loop {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 1024
	}
	return &Loop{
		world:         world,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, metrics),
		clock:         clock,
		cfg:           cfg,
		hooks:         hooks,
		logger:        logger,
		metrics:       metrics,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Enqueue stages a command, enforcing per-actor throttling and capacity
// limits. Safe to call from any goroutine.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.cfg.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.cfg.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" && !l.buffer.Push(cmd) {
		reason = CommandRejectQueueFull
		dropCount = l.incrementDropLocked(cmd.ActorID)
	}
	l.queueMu.Unlock()

	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	return l.buffer.Len()
}

// Advance executes a single step with the staged commands. Exposed for
// tests; production callers use Run.
func (l *Loop) Advance(now time.Time, dt float64) LoopResult {
	commands := l.drainCommands()
	l.world.Apply(commands)
	snapshot := l.world.Step(dt)
	return LoopResult{
		Tick:     snapshot.Tick,
		Now:      now,
		Delta:    dt,
		Snapshot: snapshot,
		Commands: commands,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes. Delta
// time is clamped so a stalled host catches up gradually instead of
// simulating one giant step.
func (l *Loop) Run(stop <-chan struct{}) {
	tickRate := l.cfg.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}
	budget := time.Second / time.Duration(tickRate)
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.cfg.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.cfg.CatchupMaxTicks)
	}

	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	last := l.clock.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := l.clock.Now()
			result := l.Advance(now, dt)
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on power-of-two counts to keep a flooding actor from flooding
	// the log as well.
	if count > 0 && count&(count-1) == 0 {
		l.logger.Printf("[backpressure] dropping command actor=%s type=%s reason=%s count=%d",
			cmd.ActorID, cmd.Type, reason, count)
	}
}

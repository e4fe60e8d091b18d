package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/anticheat"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/replay"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/sim"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
)

type session struct {
	id   string
	conn *websocket.Conn

	sendMu        sync.Mutex
	lastHeartbeat time.Time
	lastRTT       int64
	kicked        bool
}

func (s *session) send(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub owns the player sessions and glues the simulation loop to validation,
// telemetry capture, replay persistence, and state broadcasting.
type Hub struct {
	cfg       Config
	clock     logging.Clock
	logger    *zap.Logger
	publisher logging.Publisher
	counters  *telemetry.Counters

	world     *sim.World
	loop      *sim.Loop
	validator *anticheat.Validator
	recorder  *telemetry.Recorder
	store     *replay.Store

	mu        sync.RWMutex
	sessions  map[string]*session
	positions map[string]geom.Vec2
	roster    []playerView
	lastTick  uint64
	nextID    uint64

	storeWG sync.WaitGroup
}

// HubDeps carries the optional collaborators. Nil fields get safe defaults;
// a nil Store disables replay persistence.
type HubDeps struct {
	Clock     logging.Clock
	Logger    *zap.Logger
	Publisher logging.Publisher
	Counters  *telemetry.Counters
	Store     *replay.Store
}

// NewHub wires the world, loop, validator, and recorder from config.
func NewHub(cfg Config, deps HubDeps) *Hub {
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Counters == nil {
		deps.Counters = telemetry.NewCounters()
	}

	h := &Hub{
		cfg:       cfg,
		clock:     deps.Clock,
		logger:    deps.Logger,
		publisher: deps.Publisher,
		counters:  deps.Counters,
		store:     deps.Store,
		sessions:  make(map[string]*session),
		positions: make(map[string]geom.Vec2),
	}

	h.world = sim.NewWorld(cfg.worldConfig())
	h.recorder = telemetry.NewRecorder(cfg.recorderConfig(), deps.Clock)
	h.validator = anticheat.NewValidator(cfg.anticheatConfig(), deps.Clock, anticheat.Hooks{
		OnViolation: h.onViolation,
		OnKick:      h.onKick,
	})
	h.loop = sim.NewLoop(h.world, cfg.loopConfig(), deps.Clock,
		zapPrintf{deps.Logger}, telemetry.NewMapMetrics(), sim.LoopHooks{
			AfterStep: h.afterStep,
		})
	return h
}

// zapPrintf adapts the structured logger to the simulation's printf surface.
type zapPrintf struct {
	logger *zap.Logger
}

func (z zapPrintf) Printf(format string, args ...any) {
	z.logger.Sugar().Infof(format, args...)
}

// RunSimulation drives the loop until stop closes, then waits for pending
// replay persistence.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.loop.Run(stop)
	h.storeWG.Wait()
}

// Join registers a new player and returns the session handshake. The player
// enters the world on the next tick; Players lists the roster as of the last
// completed tick, so the joiner is not in it yet.
func (h *Hub) Join() joinResponse {
	h.mu.Lock()
	h.nextID++
	id := fmt.Sprintf("player-%d", h.nextID)
	h.sessions[id] = &session{id: id, lastHeartbeat: h.clock.Now()}
	players := append([]playerView(nil), h.roster...)
	h.mu.Unlock()

	h.loop.Enqueue(sim.Command{Type: sim.CommandJoin, ActorID: id, IssuedAt: h.clock.Now()})
	h.logger.Info("player joined", zap.String("player", id))

	return joinResponse{
		Ver:     protocolVersion,
		ID:      id,
		LobbyID: h.cfg.Server.LobbyID,
		Rules: clientRules{
			TickRate:    h.cfg.Server.TickRate,
			MoveSpeed:   h.cfg.World.MoveSpeed,
			WorldWidth:  h.cfg.World.Width,
			WorldHeight: h.cfg.World.Height,
		},
		Players: players,
	}
}

// Subscribe attaches a websocket connection to a joined player.
func (h *Hub) Subscribe(id string, conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[id]
	if !ok {
		return fmt.Errorf("unknown player %q", id)
	}
	sess.conn = conn
	sess.lastHeartbeat = h.clock.Now()
	return nil
}

// Disconnect tears down a session and removes the player from the world.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sess, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if sess.conn != nil {
		sess.conn.Close()
	}
	h.loop.Enqueue(sim.Command{Type: sim.CommandLeave, ActorID: id, IssuedAt: h.clock.Now()})
	h.validator.RemovePlayer(id)
	h.logger.Info("player disconnected", zap.String("player", id))
}

// HandleMessage dispatches one decoded client message.
func (h *Hub) HandleMessage(id string, msg clientMessage) {
	switch msg.Type {
	case messageInput:
		h.handleInput(id, msg)
	case messageFire:
		h.handleFire(id, msg)
	case messageHeartbeat:
		h.handleHeartbeat(id, msg)
	default:
		h.logger.Debug("unknown message type",
			zap.String("player", id), zap.String("type", msg.Type))
	}
}

// handleInput validates the claimed movement and stages the authoritative
// move. A flagged input still moves the player: the server simulates from
// its own state, so the violation record is the enforcement, not a block.
func (h *Hub) handleInput(id string, msg clientMessage) {
	now := h.clock.Now()
	claimed := geom.Vec2{X: msg.PX, Y: msg.PY}

	prev, ok := h.lastPosition(id)
	if !ok {
		prev = claimed
	}
	sample := anticheat.InputSample{
		Sequence:        msg.Sequence,
		ClientTimestamp: time.UnixMilli(msg.SentAt),
		ClaimedPosition: claimed,
		DeltaTime:       msg.DeltaTime,
	}
	if err := h.validator.ValidateInput(id, sample, prev, now); err != nil {
		h.counters.IncrementInputsRejected()
	}

	h.loop.Enqueue(sim.Command{
		Type:     sim.CommandMove,
		ActorID:  id,
		IssuedAt: now,
		Move: &sim.MoveCommand{
			Direction: geom.Vec2{X: msg.DX, Y: msg.DY},
			Aim:       geom.Vec2{X: msg.AimX, Y: msg.AimY},
			Sequence:  msg.Sequence,
			DeltaTime: msg.DeltaTime,
		},
	})
}

func (h *Hub) handleFire(id string, msg clientMessage) {
	h.loop.Enqueue(sim.Command{
		Type:     sim.CommandFire,
		ActorID:  id,
		IssuedAt: h.clock.Now(),
		Fire:     &sim.FireCommand{Direction: geom.Vec2{X: msg.AimX, Y: msg.AimY}},
	})
}

// handleHeartbeat refreshes liveness, folds the client-measured RTT into the
// telemetry network block, and echoes the client clock back.
func (h *Hub) handleHeartbeat(id string, msg clientMessage) {
	now := h.clock.Now()

	h.mu.Lock()
	sess, ok := h.sessions[id]
	var patch *telemetry.NetworkStatsPatch
	if ok {
		sess.lastHeartbeat = now
		if msg.RTTMillis > 0 {
			jitter := msg.RTTMillis - sess.lastRTT
			if jitter < 0 {
				jitter = -jitter
			}
			if sess.lastRTT == 0 {
				jitter = 0
			}
			sess.lastRTT = msg.RTTMillis
			rtt := msg.RTTMillis
			tick := h.lastTick
			patch = &telemetry.NetworkStatsPatch{
				RTTMillis:    &rtt,
				JitterMillis: &jitter,
				ServerTick:   &tick,
			}
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	if patch != nil {
		h.recorder.UpdateNetworkStats(*patch)
	}

	payload, err := json.Marshal(heartbeatMessage{
		Ver:        protocolVersion,
		Type:       messageHeartbeat,
		ServerTime: now.UnixMilli(),
		ClientTime: msg.SentAt,
	})
	if err != nil {
		return
	}
	if err := sess.send(payload); err != nil {
		h.logger.Warn("heartbeat send failed", zap.String("player", id), zap.Error(err))
	}
}

// AllowDisplacement forwards a scripted-movement exemption (teleporter,
// jump pad) to the validator so the next claimed jump is not flagged.
func (h *Hub) AllowDisplacement(id string, units float64) {
	h.validator.AllowDisplacement(id, units)
}

func (h *Hub) lastPosition(id string) (geom.Vec2, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	pos, ok := h.positions[id]
	return pos, ok
}

// afterStep runs on the loop goroutine once per tick: cache authoritative
// positions, capture a telemetry frame, resolve deaths, broadcast state.
func (h *Hub) afterStep(result sim.LoopResult) {
	snapshot := result.Snapshot

	positions := make(map[string]geom.Vec2, len(snapshot.Players))
	health := make(map[string]telemetry.HealthSample, len(snapshot.Players))
	aim := make(map[string]geom.Vec2, len(snapshot.Players))
	respawning := make(map[string]bool)
	for _, p := range snapshot.Players {
		positions[p.ID] = p.Position
		health[p.ID] = telemetry.HealthSample{
			Health:       p.Health,
			Shield:       p.Shield,
			Invulnerable: p.Invulnerable,
		}
		aim[p.ID] = p.Aim
		if p.Respawning {
			respawning[p.ID] = true
		}
	}

	h.mu.Lock()
	h.positions = positions
	h.roster = toPlayerViews(snapshot.Players)
	h.lastTick = snapshot.Tick
	h.mu.Unlock()

	frame := h.recorder.CaptureFrame(telemetry.WorldSample{
		Positions:   positions,
		Health:      health,
		Aim:         aim,
		Respawning:  respawning,
		Projectiles: snapshot.Projectiles,
		Events:      snapshot.Events,
	})
	h.counters.IncrementFramesCaptured()
	h.counters.RecordTickDuration(result.Duration)

	for _, death := range snapshot.Deaths {
		h.resolveDeath(death, frame.Tick)
	}

	h.broadcastState(snapshot, result.Now)
	h.dropStaleSessions(result.Now)
}

func (h *Hub) resolveDeath(death sim.DeathEvent, captureTick uint64) {
	ctx := context.Background()
	h.publisher.Publish(ctx, logging.PlayerDeath(death.Tick, death.VictimID, death.KillerID))

	rec := h.recorder.ExtractDeathReplay(death.VictimID, death.KillerID, captureTick)
	h.counters.IncrementReplaysExtracted()
	h.publisher.Publish(ctx, logging.ReplayExtracted(death.Tick, rec.ID, rec.VictimID, len(rec.Frames)))

	h.notifyReplay(rec, death)

	if h.store == nil {
		return
	}
	h.storeWG.Add(1)
	go func() {
		defer h.storeWG.Done()
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := h.store.Save(storeCtx, &rec); err != nil {
			h.logger.Error("replay persistence failed",
				zap.String("replay", rec.ID), zap.Error(err))
			return
		}
		h.counters.IncrementReplaysStored()
		h.publisher.Publish(context.Background(),
			logging.ReplayStored(rec.ID, rec.VictimID, time.Until(rec.ExpiresAt)))
	}()
}

// notifyReplay tells the victim a replay of their death is available.
func (h *Hub) notifyReplay(rec telemetry.DeathReplay, death sim.DeathEvent) {
	payload, err := json.Marshal(deathReplayNotice{
		Ver:      protocolVersion,
		Type:     "deathReplay",
		ReplayID: rec.ID,
		VictimID: rec.VictimID,
		KillerID: rec.KillerID,
		Frames:   len(rec.Frames),
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	sess := h.sessions[death.VictimID]
	h.mu.RUnlock()
	if sess == nil {
		return
	}
	if err := sess.send(payload); err != nil {
		h.logger.Warn("replay notice send failed",
			zap.String("player", death.VictimID), zap.Error(err))
	}
}

func (h *Hub) broadcastState(snapshot sim.Snapshot, now time.Time) {
	msg := stateMessage{
		Ver:         protocolVersion,
		Type:        "state",
		Tick:        snapshot.Tick,
		ServerTime:  now.UnixMilli(),
		Players:     toPlayerViews(snapshot.Players),
		Projectiles: toProjectileViews(snapshot.Projectiles),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("state encode failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.send(payload); err != nil {
			h.logger.Warn("state send failed", zap.String("player", sess.id), zap.Error(err))
		}
	}
	h.counters.RecordBroadcast(len(payload)*len(targets), len(msg.Players)+len(msg.Projectiles))
}

func (h *Hub) dropStaleSessions(now time.Time) {
	var stale []string
	h.mu.RLock()
	for id, sess := range h.sessions {
		if sess.conn != nil && now.Sub(sess.lastHeartbeat) > heartbeatTimeout {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()
	for _, id := range stale {
		h.logger.Warn("dropping stale session", zap.String("player", id))
		h.Disconnect(id)
	}
}

func (h *Hub) onViolation(v anticheat.Violation) {
	h.counters.IncrementViolationsFlagged()
	h.mu.RLock()
	tick := h.lastTick
	h.mu.RUnlock()
	h.publisher.Publish(context.Background(), logging.ViolationDetected(
		tick, v.PlayerID, string(v.Kind), v.Details, h.validator.ViolationCount(v.PlayerID)))
}

// onKick enforces the validator's kick signal: notify, close, remove.
func (h *Hub) onKick(sig anticheat.KickSignal) {
	h.mu.Lock()
	sess, ok := h.sessions[sig.PlayerID]
	if ok {
		if sess.kicked {
			h.mu.Unlock()
			return
		}
		sess.kicked = true
	}
	tick := h.lastTick
	h.mu.Unlock()

	h.counters.IncrementPlayersKicked()
	h.publisher.Publish(context.Background(),
		logging.PlayerKicked(tick, sig.PlayerID, string(sig.Reason), sig.Count))
	h.logger.Warn("kicking player",
		zap.String("player", sig.PlayerID),
		zap.String("reason", string(sig.Reason)),
		zap.Int("violations", sig.Count))

	if ok {
		if payload, err := json.Marshal(kickMessage{
			Ver:    protocolVersion,
			Type:   "kick",
			Reason: string(sig.Reason),
			Count:  sig.Count,
		}); err == nil {
			sess.send(payload)
		}
	}
	h.Disconnect(sig.PlayerID)
}

// DiagnosticsSnapshot is the JSON served by the diagnostics endpoint.
type DiagnosticsSnapshot struct {
	Tick           uint64                     `json:"tick"`
	Sessions       int                        `json:"sessions"`
	PendingCmds    int                        `json:"pendingCommands"`
	BufferedFrames int                        `json:"bufferedFrames"`
	Counters       telemetry.CountersSnapshot `json:"counters"`
}

func (h *Hub) Diagnostics() DiagnosticsSnapshot {
	h.mu.RLock()
	tick := h.lastTick
	sessions := len(h.sessions)
	h.mu.RUnlock()
	return DiagnosticsSnapshot{
		Tick:           tick,
		Sessions:       sessions,
		PendingCmds:    h.loop.Pending(),
		BufferedFrames: h.recorder.Len(),
		Counters:       h.counters.Snapshot(),
	}
}

// Recorder exposes the telemetry recorder, mainly for the replay endpoints.
func (h *Hub) Recorder() *telemetry.Recorder {
	return h.recorder
}

package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/geom"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

// WorldConfig tunes the arena. Zero values fall back to defaults.
type WorldConfig struct {
	Width  float64
	Height float64

	// MoveSpeed is the authoritative player speed in units per second.
	MoveSpeed float64

	PlayerRadius    float64
	PlayerMaxHealth float64
	PlayerMaxShield float64

	ProjectileSpeed  float64
	ProjectileDamage float64
	ProjectileRadius float64

	FireCooldownTicks uint64
	RespawnDelayTicks uint64
	SpawnInvulnTicks  uint64

	// SpawnPoints are candidate respawn locations. Empty defaults to the
	// four arena quadrant centers.
	SpawnPoints []geom.Vec2
}

func (c WorldConfig) withDefaults() WorldConfig {
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if c.MoveSpeed <= 0 {
		c.MoveSpeed = 300
	}
	if c.PlayerRadius <= 0 {
		c.PlayerRadius = 20
	}
	if c.PlayerMaxHealth <= 0 {
		c.PlayerMaxHealth = 100
	}
	if c.PlayerMaxShield < 0 {
		c.PlayerMaxShield = 0
	}
	if c.ProjectileSpeed <= 0 {
		c.ProjectileSpeed = 900
	}
	if c.ProjectileDamage <= 0 {
		c.ProjectileDamage = 25
	}
	if c.ProjectileRadius <= 0 {
		c.ProjectileRadius = 6
	}
	if c.FireCooldownTicks == 0 {
		c.FireCooldownTicks = 12
	}
	if c.RespawnDelayTicks == 0 {
		c.RespawnDelayTicks = 180
	}
	if c.SpawnInvulnTicks == 0 {
		c.SpawnInvulnTicks = 120
	}
	if len(c.SpawnPoints) == 0 {
		c.SpawnPoints = []geom.Vec2{
			{X: c.Width * 0.25, Y: c.Height * 0.25},
			{X: c.Width * 0.75, Y: c.Height * 0.25},
			{X: c.Width * 0.25, Y: c.Height * 0.75},
			{X: c.Width * 0.75, Y: c.Height * 0.75},
		}
	}
	return c
}

// DeathEvent reports a kill resolved during a step.
type DeathEvent struct {
	VictimID string
	KillerID string
	Tick     uint64
}

// PlayerView is the per-player block of a world snapshot.
type PlayerView struct {
	ID           string
	Position     geom.Vec2
	Aim          geom.Vec2
	Health       float64
	Shield       float64
	Invulnerable bool
	Respawning   bool
	LastAck      uint64
	Kills        int
	Deaths       int
}

// Snapshot is the full world state after a step, already detached from the
// world's internal storage.
type Snapshot struct {
	Tick        uint64
	Players     []PlayerView
	Projectiles []telemetry.ProjectileSnapshot
	Events      []telemetry.CombatEvent
	Deaths      []DeathEvent
}

type playerState struct {
	id     string
	pos    geom.Vec2
	intent geom.Vec2
	aim    geom.Vec2

	health float64
	shield float64

	invulnUntil uint64
	respawning  bool
	respawnAt   uint64
	lastFire    uint64
	lastAck     uint64

	kills  int
	deaths int
}

func (p *playerState) alive() bool {
	return !p.respawning
}

type projectileState struct {
	id        string
	ownerID   string
	pos       geom.Vec2
	vel       geom.Vec2
	spawnTick uint64
}

// World is the authoritative arena state. It is single-owner: only the loop
// goroutine may call its methods.
type World struct {
	cfg  WorldConfig
	tick uint64

	players     map[string]*playerState
	projectiles []*projectileState

	nextProjectile uint64
	nextSpawn      int
}

// NewWorld constructs an empty arena.
func NewWorld(cfg WorldConfig) *World {
	return &World{
		cfg:     cfg.withDefaults(),
		players: make(map[string]*playerState),
	}
}

// Config returns the effective configuration after defaults.
func (w *World) Config() WorldConfig {
	return w.cfg
}

// Tick reports the last completed tick.
func (w *World) Tick() uint64 {
	return w.tick
}

// AddPlayer spawns a player and returns its spawn position. Re-adding an
// existing id returns the current position unchanged.
func (w *World) AddPlayer(id string) geom.Vec2 {
	if existing, ok := w.players[id]; ok {
		return existing.pos
	}
	spawn := w.selectSpawn(id)
	w.players[id] = &playerState{
		id:          id,
		pos:         spawn,
		health:      w.cfg.PlayerMaxHealth,
		shield:      w.cfg.PlayerMaxShield,
		invulnUntil: w.tick + w.cfg.SpawnInvulnTicks,
	}
	return spawn
}

// RemovePlayer drops a player and its in-flight attribution.
func (w *World) RemovePlayer(id string) {
	delete(w.players, id)
}

// PlayerPosition reports a player's authoritative position.
func (w *World) PlayerPosition(id string) (geom.Vec2, bool) {
	p, ok := w.players[id]
	if !ok {
		return geom.Vec2{}, false
	}
	return p.pos, true
}

// Apply consumes staged commands in order.
func (w *World) Apply(cmds []Command) {
	for _, cmd := range cmds {
		switch cmd.Type {
		case CommandJoin:
			w.AddPlayer(cmd.ActorID)
		case CommandLeave:
			w.RemovePlayer(cmd.ActorID)
		case CommandMove:
			if cmd.Move == nil {
				continue
			}
			p, ok := w.players[cmd.ActorID]
			if !ok {
				continue
			}
			p.intent = clampDirection(cmd.Move.Direction)
			p.aim = cmd.Move.Aim
			if cmd.Move.Sequence > p.lastAck {
				p.lastAck = cmd.Move.Sequence
			}
		case CommandFire:
			if cmd.Fire == nil {
				continue
			}
			w.fire(cmd.ActorID, cmd.Fire.Direction)
		}
	}
}

func clampDirection(dir geom.Vec2) geom.Vec2 {
	if dir.Length() > 1 {
		return dir.Normalized()
	}
	return dir
}

func (w *World) fire(actorID string, direction geom.Vec2) {
	p, ok := w.players[actorID]
	if !ok || !p.alive() {
		return
	}
	if p.lastFire > 0 && w.tick < p.lastFire+w.cfg.FireCooldownTicks {
		return
	}
	dir := direction.Normalized()
	if dir == (geom.Vec2{}) {
		return
	}
	p.lastFire = w.tick

	w.nextProjectile++
	w.projectiles = append(w.projectiles, &projectileState{
		id:        fmt.Sprintf("proj-%d", w.nextProjectile),
		ownerID:   actorID,
		pos:       p.pos.Add(dir.Scale(w.cfg.PlayerRadius + w.cfg.ProjectileRadius)),
		vel:       dir.Scale(w.cfg.ProjectileSpeed),
		spawnTick: w.tick,
	})
}

// Step advances the world by dt seconds and returns a detached snapshot.
func (w *World) Step(dt float64) Snapshot {
	w.tick++

	var events []telemetry.CombatEvent
	var deaths []DeathEvent

	// Respawns resolve before movement so a revived player moves this tick.
	for _, p := range w.sortedPlayers() {
		if p.respawning && w.tick >= p.respawnAt {
			p.pos = w.selectSpawn(p.id)
			p.health = w.cfg.PlayerMaxHealth
			p.shield = w.cfg.PlayerMaxShield
			p.respawning = false
			p.invulnUntil = w.tick + w.cfg.SpawnInvulnTicks
			p.intent = geom.Vec2{}
			events = append(events, telemetry.CombatEvent{
				Kind: telemetry.CombatRespawn, Tick: w.tick, ActorID: p.id,
			})
		}
	}

	for _, p := range w.players {
		if !p.alive() {
			continue
		}
		p.pos = p.pos.Add(p.intent.Scale(w.cfg.MoveSpeed * dt))
		p.pos = w.clampToArena(p.pos)
	}

	kept := w.projectiles[:0]
	for _, proj := range w.projectiles {
		proj.pos = proj.pos.Add(proj.vel.Scale(dt))
		if w.outOfBounds(proj.pos) {
			continue
		}
		hit := w.resolveHit(proj, &events, &deaths)
		if !hit {
			kept = append(kept, proj)
		}
	}
	w.projectiles = kept

	snapshot := w.snapshot()
	snapshot.Events = events
	snapshot.Deaths = deaths
	return snapshot
}

func (w *World) resolveHit(proj *projectileState, events *[]telemetry.CombatEvent, deaths *[]DeathEvent) bool {
	hitRadius := w.cfg.PlayerRadius + w.cfg.ProjectileRadius
	for _, victim := range w.sortedPlayers() {
		if victim.id == proj.ownerID || !victim.alive() {
			continue
		}
		if geom.Dist(victim.pos, proj.pos) > hitRadius {
			continue
		}
		if w.tick < victim.invulnUntil {
			// Absorbed by spawn protection; the projectile still stops.
			return true
		}

		damage := w.cfg.ProjectileDamage
		absorbed := math.Min(victim.shield, damage)
		victim.shield -= absorbed
		victim.health -= damage - absorbed
		*events = append(*events, telemetry.CombatEvent{
			Kind: telemetry.CombatDamage, Tick: w.tick,
			ActorID: proj.ownerID, TargetID: victim.id, Amount: damage,
		})

		if victim.health <= 0 {
			victim.health = 0
			victim.respawning = true
			victim.respawnAt = w.tick + w.cfg.RespawnDelayTicks
			victim.deaths++
			if killer, ok := w.players[proj.ownerID]; ok {
				killer.kills++
			}
			*events = append(*events, telemetry.CombatEvent{
				Kind: telemetry.CombatDeath, Tick: w.tick,
				ActorID: proj.ownerID, TargetID: victim.id,
			})
			*deaths = append(*deaths, DeathEvent{
				VictimID: victim.id, KillerID: proj.ownerID, Tick: w.tick,
			})
		}
		return true
	}
	return false
}

// selectSpawn picks the candidate point farthest from living opponents,
// skipping any point another player currently occupies.
func (w *World) selectSpawn(forID string) geom.Vec2 {
	points := w.cfg.SpawnPoints
	occupiedRadius := w.cfg.PlayerRadius * 2

	best := -1
	bestScore := -1.0
	for i, point := range points {
		occupied := false
		closest := math.Inf(1)
		for _, other := range w.players {
			if other.id == forID || !other.alive() {
				continue
			}
			d := geom.Dist(point, other.pos)
			if d < occupiedRadius {
				occupied = true
				break
			}
			if d < closest {
				closest = d
			}
		}
		if occupied {
			continue
		}
		if closest > bestScore {
			bestScore = closest
			best = i
		}
	}
	if best >= 0 {
		return points[best]
	}
	// Every point is contested: rotate deterministically.
	w.nextSpawn = (w.nextSpawn + 1) % len(points)
	return points[w.nextSpawn]
}

func (w *World) clampToArena(pos geom.Vec2) geom.Vec2 {
	r := w.cfg.PlayerRadius
	pos.X = math.Min(math.Max(pos.X, r), w.cfg.Width-r)
	pos.Y = math.Min(math.Max(pos.Y, r), w.cfg.Height-r)
	return pos
}

func (w *World) outOfBounds(pos geom.Vec2) bool {
	return pos.X < 0 || pos.X > w.cfg.Width || pos.Y < 0 || pos.Y > w.cfg.Height
}

func (w *World) sortedPlayers() []*playerState {
	players := make([]*playerState, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].id < players[j].id })
	return players
}

func (w *World) snapshot() Snapshot {
	players := make([]PlayerView, 0, len(w.players))
	for _, p := range w.sortedPlayers() {
		players = append(players, PlayerView{
			ID:           p.id,
			Position:     p.pos,
			Aim:          p.aim,
			Health:       p.health,
			Shield:       p.shield,
			Invulnerable: w.tick < p.invulnUntil,
			Respawning:   p.respawning,
			LastAck:      p.lastAck,
			Kills:        p.kills,
			Deaths:       p.deaths,
		})
	}
	projectiles := make([]telemetry.ProjectileSnapshot, 0, len(w.projectiles))
	for _, proj := range w.projectiles {
		projectiles = append(projectiles, telemetry.ProjectileSnapshot{
			ID:        proj.id,
			OwnerID:   proj.ownerID,
			Position:  proj.pos,
			Velocity:  proj.vel,
			SpawnTick: proj.spawnTick,
		})
	}
	return Snapshot{Tick: w.tick, Players: players, Projectiles: projectiles}
}

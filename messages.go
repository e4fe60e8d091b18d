package main

import (
	"github.com/dadbodgeoff/1v1bro-sub009/internal/sim"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

// clientMessage is the single envelope clients send over the websocket.
// Fields are populated per Type.
type clientMessage struct {
	Type string `json:"type"`

	// input
	Sequence  uint64  `json:"sequence,omitempty"`
	DX        float64 `json:"dx,omitempty"`
	DY        float64 `json:"dy,omitempty"`
	AimX      float64 `json:"aimX,omitempty"`
	AimY      float64 `json:"aimY,omitempty"`
	PX        float64 `json:"px,omitempty"`
	PY        float64 `json:"py,omitempty"`
	DeltaTime float64 `json:"dt,omitempty"`
	// SentAt is the client clock in unix milliseconds.
	SentAt int64 `json:"sentAt,omitempty"`

	// heartbeat
	RTTMillis int64 `json:"rtt,omitempty"`
}

// Client message types.
const (
	messageInput     = "input"
	messageFire      = "fire"
	messageHeartbeat = "heartbeat"
)

type playerView struct {
	ID           string  `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	AimX         float64 `json:"aimX"`
	AimY         float64 `json:"aimY"`
	Health       float64 `json:"health"`
	Shield       float64 `json:"shield"`
	Invulnerable bool    `json:"invulnerable,omitempty"`
	Respawning   bool    `json:"respawning,omitempty"`
	LastAck      uint64  `json:"lastAck"`
	Kills        int     `json:"kills"`
	Deaths       int     `json:"deaths"`
}

type projectileView struct {
	ID  string  `json:"id"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	VX  float64 `json:"vx"`
	VY  float64 `json:"vy"`
	Own string  `json:"owner"`
}

// stateMessage is the per-tick broadcast. LastAck inside each player view is
// the reconciliation anchor clients replay pending inputs against.
type stateMessage struct {
	Ver         int              `json:"ver"`
	Type        string           `json:"type"`
	Tick        uint64           `json:"tick"`
	ServerTime  int64            `json:"serverTime"`
	Players     []playerView     `json:"players"`
	Projectiles []projectileView `json:"projectiles"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

type kickMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type deathReplayNotice struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	ReplayID string `json:"replayId"`
	VictimID string `json:"victimId"`
	KillerID string `json:"killerId"`
	Frames   int    `json:"frames"`
}

// clientRules ships the constants the client predictor must share with the
// authority.
type clientRules struct {
	TickRate    int     `json:"tickRate"`
	MoveSpeed   float64 `json:"moveSpeed"`
	WorldWidth  float64 `json:"worldWidth"`
	WorldHeight float64 `json:"worldHeight"`
}

type joinResponse struct {
	Ver     int          `json:"ver"`
	ID      string       `json:"id"`
	LobbyID string       `json:"lobbyId"`
	Rules   clientRules  `json:"rules"`
	Players []playerView `json:"players"`
}

func toPlayerViews(players []sim.PlayerView) []playerView {
	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			ID:           p.ID,
			X:            p.Position.X,
			Y:            p.Position.Y,
			AimX:         p.Aim.X,
			AimY:         p.Aim.Y,
			Health:       p.Health,
			Shield:       p.Shield,
			Invulnerable: p.Invulnerable,
			Respawning:   p.Respawning,
			LastAck:      p.LastAck,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
		})
	}
	return views
}

func toProjectileViews(projectiles []telemetry.ProjectileSnapshot) []projectileView {
	views := make([]projectileView, 0, len(projectiles))
	for _, p := range projectiles {
		views = append(views, projectileView{
			ID:  p.ID,
			X:   p.Position.X,
			Y:   p.Position.Y,
			VX:  p.Velocity.X,
			VY:  p.Velocity.Y,
			Own: p.OwnerID,
		})
	}
	return views
}

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/anticheat"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/replay"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/sim"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

// Config is the full server configuration, loadable from YAML. Zero values
// fall back to defaults so a partial file works.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	Anticheat AnticheatConfig `yaml:"anticheat"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Replay    ReplayConfig    `yaml:"replay"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	LobbyID         string `yaml:"lobbyId"`
	TickRate        int    `yaml:"tickRate"`
	CatchupMaxTicks int    `yaml:"catchupMaxTicks"`
	CommandCapacity int    `yaml:"commandCapacity"`
	PerActorLimit   int    `yaml:"perActorLimit"`
}

type WorldConfig struct {
	Width             float64 `yaml:"width"`
	Height            float64 `yaml:"height"`
	MoveSpeed         float64 `yaml:"moveSpeed"`
	ProjectileSpeed   float64 `yaml:"projectileSpeed"`
	ProjectileDamage  float64 `yaml:"projectileDamage"`
	PlayerMaxShield   float64 `yaml:"playerMaxShield"`
	RespawnDelayTicks uint64  `yaml:"respawnDelayTicks"`
	SpawnInvulnTicks  uint64  `yaml:"spawnInvulnTicks"`
}

type AnticheatConfig struct {
	MaxViolations        int     `yaml:"maxViolations"`
	ViolationWindowMs    int     `yaml:"violationWindowMs"`
	SpeedToleranceFactor float64 `yaml:"speedToleranceFactor"`
	TimestampToleranceMs int     `yaml:"timestampToleranceMs"`
}

type TelemetryConfig struct {
	MaxFrames    int     `yaml:"maxFrames"`
	ReplayFrames int     `yaml:"replayFrames"`
	CaptureRate  float64 `yaml:"captureRate"`
}

type ReplayConfig struct {
	// RedisURL enables persistent replay storage when set.
	RedisURL  string `yaml:"redisUrl"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type LoggingConfig struct {
	Sinks    []string `yaml:"sinks"`
	JSONPath string   `yaml:"jsonPath"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			LobbyID:         "lobby-default",
			TickRate:        60,
			CatchupMaxTicks: 4,
			CommandCapacity: 1024,
			PerActorLimit:   8,
		},
		World: WorldConfig{
			Width:             1920,
			Height:            1080,
			MoveSpeed:         300,
			ProjectileSpeed:   900,
			ProjectileDamage:  25,
			RespawnDelayTicks: 180,
			SpawnInvulnTicks:  120,
		},
		Anticheat: AnticheatConfig{
			MaxViolations:        10,
			ViolationWindowMs:    60_000,
			SpeedToleranceFactor: 1.5,
			TimestampToleranceMs: 500,
		},
		Telemetry: TelemetryConfig{
			MaxFrames:    1800,
			ReplayFrames: 300,
			CaptureRate:  60,
		},
		Logging: LoggingConfig{
			Sinks: []string{"console"},
		},
	}
}

// LoadConfig overlays a YAML file onto the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) worldConfig() sim.WorldConfig {
	return sim.WorldConfig{
		Width:             c.World.Width,
		Height:            c.World.Height,
		MoveSpeed:         c.World.MoveSpeed,
		ProjectileSpeed:   c.World.ProjectileSpeed,
		ProjectileDamage:  c.World.ProjectileDamage,
		PlayerMaxShield:   c.World.PlayerMaxShield,
		RespawnDelayTicks: c.World.RespawnDelayTicks,
		SpawnInvulnTicks:  c.World.SpawnInvulnTicks,
	}
}

func (c Config) loopConfig() sim.LoopConfig {
	return sim.LoopConfig{
		TickRate:        c.Server.TickRate,
		CatchupMaxTicks: c.Server.CatchupMaxTicks,
		CommandCapacity: c.Server.CommandCapacity,
		PerActorLimit:   c.Server.PerActorLimit,
	}
}

func (c Config) anticheatConfig() anticheat.Config {
	return anticheat.Config{
		MaxSpeed:             c.World.MoveSpeed,
		MaxViolations:        c.Anticheat.MaxViolations,
		ViolationWindow:      time.Duration(c.Anticheat.ViolationWindowMs) * time.Millisecond,
		SpeedToleranceFactor: c.Anticheat.SpeedToleranceFactor,
		TimestampTolerance:   time.Duration(c.Anticheat.TimestampToleranceMs) * time.Millisecond,
	}
}

func (c Config) recorderConfig() telemetry.Config {
	return telemetry.Config{
		MaxFrames:    c.Telemetry.MaxFrames,
		ReplayFrames: c.Telemetry.ReplayFrames,
		CaptureRate:  c.Telemetry.CaptureRate,
		LobbyID:      c.Server.LobbyID,
	}
}

func (c Config) replayStoreConfig() replay.StoreConfig {
	return replay.StoreConfig{
		URL:       c.Replay.RedisURL,
		KeyPrefix: c.Replay.KeyPrefix,
	}
}

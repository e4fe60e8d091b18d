package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.TickRate != 60 {
		t.Fatalf("expected 60 Hz tick rate, got %d", cfg.Server.TickRate)
	}
	if cfg.Anticheat.MaxViolations != 10 || cfg.Anticheat.ViolationWindowMs != 60_000 {
		t.Fatalf("unexpected anticheat defaults %+v", cfg.Anticheat)
	}
	if cfg.Anticheat.SpeedToleranceFactor != 1.5 || cfg.Anticheat.TimestampToleranceMs != 500 {
		t.Fatalf("unexpected anticheat tolerances %+v", cfg.Anticheat)
	}
	if cfg.Telemetry.MaxFrames != 1800 || cfg.Telemetry.ReplayFrames != 300 {
		t.Fatalf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}

	ac := cfg.anticheatConfig()
	if ac.ViolationWindow != time.Minute || ac.TimestampTolerance != 500*time.Millisecond {
		t.Fatalf("unexpected validator config %+v", ac)
	}
	if ac.MaxSpeed != cfg.World.MoveSpeed {
		t.Fatalf("validator speed must follow the world move speed, got %.0f", ac.MaxSpeed)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  addr: ":9999"
  lobbyId: "test-lobby"
anticheat:
  maxViolations: 3
replay:
  redisUrl: "redis://localhost:6379/1"
logging:
  sinks: [console, json]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" || cfg.Server.LobbyID != "test-lobby" {
		t.Fatalf("overlay missed server section: %+v", cfg.Server)
	}
	if cfg.Anticheat.MaxViolations != 3 {
		t.Fatalf("overlay missed anticheat: %+v", cfg.Anticheat)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.TickRate != 60 || cfg.Anticheat.TimestampToleranceMs != 500 {
		t.Fatalf("defaults lost during overlay: %+v", cfg)
	}
	if cfg.Replay.RedisURL == "" {
		t.Fatal("overlay missed replay section")
	}
	if len(cfg.Logging.Sinks) != 2 {
		t.Fatalf("overlay missed logging sinks: %v", cfg.Logging.Sinks)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("empty path must return defaults, got %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.Server.Addr)
	}
}

// Command 1v1bro-server runs the authoritative arena server: a fixed 60 Hz
// simulation with client prediction support, input validation, telemetry
// capture, and death-replay extraction.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/replay"
	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
	"github.com/dadbodgeoff/1v1bro-sub009/logging"
	"github.com/dadbodgeoff/1v1bro-sub009/logging/sinks"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin enforcement is handled by the deployment edge.
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	clock := logging.SystemClock{}
	router, jsonFile, err := buildEventRouter(cfg, clock)
	if err != nil {
		logger.Fatal("event router setup failed", zap.Error(err))
	}
	if jsonFile != nil {
		defer jsonFile.Close()
	}

	var store *replay.Store
	if cfg.Replay.RedisURL != "" {
		store, err = replay.NewStore(cfg.replayStoreConfig())
		if err != nil {
			logger.Fatal("replay store setup failed", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("replay store unreachable, continuing without persistence", zap.Error(err))
			store.Close()
			store = nil
		}
		cancel()
	}

	hub := NewHub(cfg, HubDeps{
		Clock:     clock,
		Logger:    logger,
		Publisher: router,
		Counters:  telemetry.NewCounters(),
		Store:     store,
	})

	stop := make(chan struct{})
	go hub.RunSimulation(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, hub.Diagnostics(), logger)
	})
	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, hub.Join(), logger)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, logger, w, r)
	})
	mux.HandleFunc("/replays", func(w http.ResponseWriter, r *http.Request) {
		serveReplay(hub, store, cfg.Server.LobbyID, logger, w, r)
	})

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	close(stop)
	if err := router.Close(shutdownCtx); err != nil {
		logger.Warn("event router shutdown", zap.Error(err))
	}
	if store != nil {
		store.Close()
	}
}

// buildEventRouter assembles the structured event pipeline from config. The
// returned file, when non-nil, backs the JSON sink and must outlive the
// router.
func buildEventRouter(cfg Config, clock logging.Clock) (*logging.Router, *os.File, error) {
	logCfg := logging.DefaultConfig()
	if len(cfg.Logging.Sinks) > 0 {
		logCfg.EnabledSinks = cfg.Logging.Sinks
	}
	logCfg.Fields = map[string]any{"lobby": cfg.Server.LobbyID}

	var named []logging.NamedSink
	var jsonFile *os.File
	if logCfg.HasSink("console") {
		named = append(named, logging.NamedSink{
			Name: "console",
			Sink: sinks.NewConsoleSink(os.Stdout, logCfg.Console),
		})
	}
	if logCfg.HasSink("json") {
		path := cfg.Logging.JSONPath
		if path == "" {
			path = "events.ndjson"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		jsonFile = f
		named = append(named, logging.NamedSink{
			Name: "json",
			Sink: sinks.NewJSON(f, logCfg.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(clock, logCfg, named)
	if err != nil {
		if jsonFile != nil {
			jsonFile.Close()
		}
		return nil, nil, err
	}
	return router, jsonFile, nil
}

// serveWS upgrades the connection and pumps client messages into the hub.
func serveWS(hub *Hub, logger *zap.Logger, w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := hub.Subscribe(id, conn); err != nil {
		logger.Warn("subscribe rejected", zap.String("player", id), zap.Error(err))
		conn.Close()
		return
	}

	defer hub.Disconnect(id)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("malformed client message", zap.String("player", id), zap.Error(err))
			continue
		}
		hub.HandleMessage(id, msg)
	}
}

// serveReplay fetches a persisted death replay as JSON. Falls back to 404
// when persistence is disabled or the replay expired.
func serveReplay(hub *Hub, store *replay.Store, lobbyID string, logger *zap.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if store == nil {
		http.Error(w, "replay persistence disabled", http.StatusNotFound)
		return
	}
	rec, err := store.Load(r.Context(), lobbyID, id)
	if errors.Is(err, replay.ErrNotFound) {
		http.Error(w, "replay not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("replay load failed", zap.String("replay", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec, logger)
}

func writeJSON(w http.ResponseWriter, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", zap.Error(err))
	}
}

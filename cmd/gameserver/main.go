package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/babushkai/gta-sub001/internal/config"
	"github.com/babushkai/gta-sub001/internal/shared/logger"
	"github.com/babushkai/gta-sub001/internal/shared/types"
	"github.com/babushkai/gta-sub001/internal/simulation"
	"github.com/babushkai/gta-sub001/internal/telemetry"
	"github.com/babushkai/gta-sub001/internal/vehicle"
)

// spawnSpacing separates spawn points along +X.
const spawnSpacing = 6.0

var errServerFull = errors.New("server full")

type client struct {
	id      string
	vehicle vehicle.Handle
	kind    vehicle.Kind
	spawn   mgl64.Vec3
	conn    *websocket.Conn
	send    chan []byte
	lastSeq atomic.Uint64
}

type server struct {
	log      *logger.Logger
	cfg      config.Config
	svc      *vehicle.Service
	rec      *telemetry.Recorder
	feed     *eventFeed
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[string]*client
	spawnSlot int
}

func main() {
	configPath := flag.String("config", os.Getenv("VDYN_CONFIG"), "path to config file")
	flag.Parse()

	log := logger.New("gameserver")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.SetLevel(cfg.LogLevel)

	profiles, err := config.Profiles()
	if err != nil {
		log.Fatal().Err(err).Msg("load vehicle profiles")
	}

	world := simulation.NewWorld(simulation.Options{
		Gravity:      mgl64.Vec3{0, cfg.Simulation.Gravity, 0},
		GroundHeight: cfg.Simulation.GroundHeight,
		MaxBodies:    cfg.Simulation.MaxBodies,
	})

	s := &server{
		log:  log,
		cfg:  cfg,
		svc:  vehicle.NewService(world, profiles, log),
		feed: newEventFeed(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*client),
	}
	s.svc.AddObserver(s.feed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		var sink telemetry.Sink
		if cfg.Telemetry.SQLitePath != "" {
			db, err := telemetry.OpenSQLite(cfg.Telemetry.SQLitePath)
			if err != nil {
				log.Fatal().Err(err).Str("path", cfg.Telemetry.SQLitePath).Msg("open telemetry sink")
			}
			defer db.Close()
			sink = db
		}
		s.rec = telemetry.NewRecorder(cfg.Telemetry.Capacity, sink)
		s.svc.AddObserver(s.rec)
		go s.runFlushLoop(ctx)
		log.Info().Str("run_id", s.rec.RunID()).Bool("persist", sink != nil).Msg("telemetry recording")
	}

	go s.runSimulationLoop(ctx)
	go s.runReplicationLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/summaries", s.handleSummaries)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           withCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Int("tick_rate", cfg.Simulation.TickRate).
		Int("snapshot_rate", cfg.Server.SnapshotRate).
		Msg("vehicle server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	if s.rec != nil {
		if err := s.rec.Flush(context.Background()); err != nil {
			log.Warn().Err(err).Msg("final telemetry flush failed")
		}
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"vehicles": s.svc.Len(),
		"step":     s.svc.StepCount(),
	})
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	kind := vehicle.KindCar
	if q := r.URL.Query().Get("kind"); q != "" {
		k, err := vehicle.ParseKind(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown_vehicle_kind"})
			return
		}
		kind = k
	}
	// Early reject before the upgrade; spawn enforces the cap.
	if s.svc.Len() >= s.cfg.Server.MaxVehicles {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server_full"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	c := &client{id: uuid.NewString(), kind: kind, conn: conn, send: make(chan []byte, 64)}
	if err := s.spawn(c); err != nil {
		s.log.Warn().Err(err).Str("client", c.id).Msg("spawn failed")
		reason := "spawn_failed"
		if errors.Is(err, errServerFull) {
			reason = "server_full"
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
		_ = conn.Close()
		return
	}
	s.register(c)

	s.log.Info().
		Str("client", c.id).
		Str("vehicle", c.vehicle.String()).
		Str("kind", kind.String()).
		Str("remote", r.RemoteAddr).
		Msg("client connected")

	state := s.snapshot(nil)
	s.enqueue(c, types.ServerEnvelope{
		Type:      "welcome",
		Tick:      state.Tick,
		VehicleID: c.vehicle.String(),
		State:     &state,
		ServerMS:  time.Now().UTC().UnixMilli(),
		Message:   "connected",
	})

	go s.writePump(c)
	s.readPump(c)
}

// spawn places c's vehicle on the next free spawn point, wheels on the
// ground, facing -Z.
func (s *server) spawn(c *client) error {
	p, ok := s.svc.Profile(c.kind)
	if !ok {
		return fmt.Errorf("%w: %s", vehicle.ErrUnknownKind, c.kind)
	}
	// The cap check and the create share s.mu so concurrent joins cannot
	// both take the last slot.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.svc.Len() >= s.cfg.Server.MaxVehicles {
		return errServerFull
	}
	slot := s.spawnSlot
	s.spawnSlot++

	c.spawn = mgl64.Vec3{float64(slot%16) * spawnSpacing, s.cfg.Simulation.GroundHeight + p.RideHeight(), 0}
	h, err := s.svc.Create(c.kind, c.spawn, vehicle.SpawnRotation(0), p.NominalMass)
	if err != nil {
		return err
	}
	c.vehicle = h
	return nil
}

func (s *server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info().Str("client", c.id).Msg("client disconnected")
				return
			}
			s.log.Warn().Err(err).Str("client", c.id).Msg("read error")
			return
		}

		var in types.ClientEnvelope
		if err := json.Unmarshal(msg, &in); err != nil {
			s.sendError(c, "bad_payload")
			continue
		}

		switch in.Type {
		case "controls":
			if in.Controls == nil {
				s.sendError(c, "missing_controls")
				continue
			}
			s.applyControls(c, *in.Controls)
		case "respawn":
			rot := vehicle.SpawnRotation(0)
			s.svc.SetTransform(c.vehicle, c.spawn, &rot)
		case "ping":
			s.enqueue(c, types.ServerEnvelope{Type: "pong", ServerMS: time.Now().UTC().UnixMilli()})
		default:
			s.sendError(c, "unsupported_message_type")
		}
	}
}

// applyControls drops out-of-order input; a jump request is honored only
// when the vehicle is settled.
func (s *server) applyControls(c *client, in types.VehicleControls) {
	if in.Sequence != 0 {
		last := c.lastSeq.Load()
		if in.Sequence <= last {
			return
		}
		c.lastSeq.Store(in.Sequence)
	}
	s.svc.ApplyControls(c.vehicle, controlsFromWire(in), vehicle.DefaultTuning())
	if in.Jump {
		s.svc.Jump(c.vehicle)
	}
}

func (s *server) writePump(c *client) {
	ticker := time.NewTicker(20 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		}
	}
}

func (s *server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c.id]; ok {
		close(c.send)
		delete(s.clients, c.id)
	}
	s.mu.Unlock()

	s.svc.Remove(c.vehicle)
}

func (s *server) enqueue(c *client, env types.ServerEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Str("type", env.Type).Msg("marshal envelope failed")
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (s *server) sendError(c *client, message string) {
	s.enqueue(c, types.ServerEnvelope{Type: "error", Message: message})
}

func (s *server) runSimulationLoop(ctx context.Context) {
	rate := s.cfg.Simulation.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	dt := s.cfg.Simulation.DT()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.svc.Update(dt)
		}
	}
}

func (s *server) runReplicationLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.Server.SnapshotRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := s.snapshot(s.feed.drain())
		env := types.ServerEnvelope{
			Type:     "state",
			Tick:     state.Tick,
			State:    &state,
			ServerMS: time.Now().UTC().UnixMilli(),
		}
		payload, err := json.Marshal(env)
		if err != nil {
			s.log.Error().Err(err).Msg("marshal state failed")
			continue
		}

		s.mu.RLock()
		for _, c := range s.clients {
			select {
			case c.send <- payload:
			default:
			}
		}
		s.mu.RUnlock()
	}
}

func (s *server) runFlushLoop(ctx context.Context) {
	interval := s.cfg.Telemetry.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.rec.Flush(ctx); err != nil {
				s.log.Warn().Err(err).Msg("telemetry flush failed")
			}
		}
	}
}

func (s *server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = fmt.Fprintln(w, "# HELP vdyn_vehicles Live vehicles")
	_, _ = fmt.Fprintln(w, "# TYPE vdyn_vehicles gauge")
	_, _ = fmt.Fprintf(w, "vdyn_vehicles %d\n", s.svc.Len())
	_, _ = fmt.Fprintln(w, "# HELP vdyn_steps_total Simulation steps completed")
	_, _ = fmt.Fprintln(w, "# TYPE vdyn_steps_total counter")
	_, _ = fmt.Fprintf(w, "vdyn_steps_total %d\n", s.svc.StepCount())
	if s.rec == nil {
		return
	}
	counts := s.rec.Counts()
	_, _ = fmt.Fprintln(w, "# HELP vdyn_vehicle_events_total Vehicle events observed")
	_, _ = fmt.Fprintln(w, "# TYPE vdyn_vehicle_events_total counter")
	_, _ = fmt.Fprintf(w, "vdyn_vehicle_events_total %d\n", counts.Total)
	for typ, n := range counts.ByType {
		_, _ = fmt.Fprintf(w, "vdyn_vehicle_events_by_type{event_type=\"%s\"} %d\n", typ, n)
	}
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}
	if s.rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "telemetry_disabled"})
		return
	}
	recent := s.rec.RecentEvents(100)
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": s.rec.RunID(),
		"count":  len(recent),
		"events": recent,
	})
}

func (s *server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}
	if s.rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "telemetry_disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    s.rec.RunID(),
		"summaries": s.rec.Summaries(),
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

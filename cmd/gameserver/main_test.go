package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babushkai/gta-sub001/internal/config"
	"github.com/babushkai/gta-sub001/internal/shared/logger"
	"github.com/babushkai/gta-sub001/internal/shared/types"
	"github.com/babushkai/gta-sub001/internal/simulation"
	"github.com/babushkai/gta-sub001/internal/telemetry"
	"github.com/babushkai/gta-sub001/internal/vehicle"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.MaxVehicles = 2
	s := &server{
		log:     logger.Nop(),
		cfg:     cfg,
		svc:     vehicle.NewService(simulation.NewWorld(simulation.DefaultOptions()), vehicle.DefaultProfiles(), nil),
		rec:     telemetry.NewRecorder(64, nil),
		feed:    newEventFeed(),
		clients: make(map[string]*client),
	}
	s.svc.AddObserver(s.feed)
	s.svc.AddObserver(s.rec)
	return s
}

func TestSpawnPlacesVehicleOnGround(t *testing.T) {
	s := newTestServer(t)
	c := &client{id: "a", kind: vehicle.KindMotorcycle}
	require.NoError(t, s.spawn(c))

	s.svc.Update(s.cfg.Simulation.DT())
	state := s.snapshot(s.feed.drain())

	require.Len(t, state.Vehicles, 1)
	got := state.Vehicles[0]
	assert.Equal(t, c.vehicle.String(), got.VehicleID)
	assert.Equal(t, "motorcycle", got.Kind)
	assert.Len(t, got.Wheels, 2)
	assert.Less(t, got.Position.Y, 1.0)
	assert.InDelta(t, 1.0, got.Rotation.Quat().Len(), 1e-6)
	assert.InDelta(t, c.spawn.X(), got.Position.Vec3().X(), 0.05)
	assert.Equal(t, uint64(1), state.Tick)

	require.Len(t, state.Events, 1)
	assert.Equal(t, "spawn", state.Events[0].Type)
	assert.Nil(t, s.feed.drain())
}

func TestSpawnPointsDoNotOverlap(t *testing.T) {
	s := newTestServer(t)
	a := &client{id: "a", kind: vehicle.KindCar}
	b := &client{id: "b", kind: vehicle.KindTruck}
	require.NoError(t, s.spawn(a))
	require.NoError(t, s.spawn(b))
	assert.InDelta(t, spawnSpacing, b.spawn.X()-a.spawn.X(), 1e-9)
}

func TestSpawnEnforcesVehicleCap(t *testing.T) {
	s := newTestServer(t)
	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.spawn(&client{id: fmt.Sprint(i), kind: vehicle.KindCar})
		}()
	}
	wg.Wait()

	full := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, errServerFull)
			full++
		}
	}
	assert.Equal(t, len(errs)-s.cfg.Server.MaxVehicles, full)
	assert.Equal(t, s.cfg.Server.MaxVehicles, s.svc.Len())

	// A freed slot can be taken again.
	s.svc.Remove(s.svc.Handles()[0])
	require.NoError(t, s.spawn(&client{id: "late", kind: vehicle.KindTruck}))
	assert.ErrorIs(t, s.spawn(&client{id: "later", kind: vehicle.KindTruck}), errServerFull)
}

func TestApplyControlsDropsStaleSequence(t *testing.T) {
	s := newTestServer(t)
	c := &client{id: "a", kind: vehicle.KindCar}
	require.NoError(t, s.spawn(c))

	s.applyControls(c, types.VehicleControls{Sequence: 5, Acceleration: 1})
	s.applyControls(c, types.VehicleControls{Sequence: 3, Acceleration: -1})
	assert.Equal(t, uint64(5), c.lastSeq.Load())

	for range 60 {
		s.svc.Update(s.cfg.Simulation.DT())
	}
	tr, ok := s.svc.GetTransform(c.vehicle)
	require.True(t, ok)
	// Forward is -Z; the stale reverse input must not have replaced throttle.
	assert.Less(t, tr.Position.Z(), 0.0)
}

func TestHandleWSRejectsUnknownKind(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.handleWS(rr, httptest.NewRequest(http.MethodGet, "/ws?kind=hovercraft", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, s.svc.Len())
}

func TestWebsocketSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?kind=truck"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome types.ServerEnvelope
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.NotEmpty(t, welcome.VehicleID)
	require.NotNil(t, welcome.State)
	require.Len(t, welcome.State.Vehicles, 1)
	assert.Equal(t, "truck", welcome.State.Vehicles[0].Kind)
	assert.NotEmpty(t, welcome.State.Vehicles[0].ClientID)

	require.NoError(t, conn.WriteJSON(types.ClientEnvelope{Type: "ping"}))
	var pong types.ServerEnvelope
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, conn.WriteJSON(types.ClientEnvelope{Type: "controls"}))
	var errEnv types.ServerEnvelope
	require.NoError(t, conn.ReadJSON(&errEnv))
	assert.Equal(t, "missing_controls", errEnv.Message)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.svc.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsReportEventCounts(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.spawn(&client{id: "a", kind: vehicle.KindCar}))
	s.svc.Update(s.cfg.Simulation.DT())

	rr := httptest.NewRecorder()
	s.handleMetrics(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), "vdyn_vehicles 1")
	assert.Contains(t, string(body), "vdyn_steps_total 1")
	assert.Contains(t, string(body), `vdyn_vehicle_events_by_type{event_type="spawn"} 1`)
}

func TestSummariesEndpoint(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.spawn(&client{id: "a", kind: vehicle.KindCar}))
	for range 10 {
		s.svc.Update(s.cfg.Simulation.DT())
	}

	rr := httptest.NewRecorder()
	s.handleSummaries(rr, httptest.NewRequest(http.MethodGet, "/v1/summaries", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		RunID     string              `json:"run_id"`
		Summaries []telemetry.Summary `json:"summaries"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.Equal(t, s.rec.RunID(), out.RunID)
	require.Len(t, out.Summaries, 1)
	assert.Equal(t, 10, out.Summaries[0].Samples)
}

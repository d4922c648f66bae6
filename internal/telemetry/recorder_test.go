package telemetry

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babushkai/gta-sub001/internal/vehicle"
)

func report(h vehicle.Handle, step uint64, rollDeg float64) vehicle.StepReport {
	return vehicle.StepReport{
		Step:     step,
		Handle:   h,
		Kind:     vehicle.KindCar,
		Roll:     mgl64.DegToRad(rollDeg),
		Speed:    10,
		Upright:  1,
		Grounded: true,
	}
}

func TestRingKeepsNewestSamples(t *testing.T) {
	r := NewRecorder(4, nil)
	h := vehicle.Handle{Index: 0, Gen: 1}
	for i := range 10 {
		r.ObserveStep(report(h, uint64(i+1), float64(i)))
	}
	got := r.Samples(h)
	require.Len(t, got, 4)
	for i, s := range got {
		assert.Equal(t, uint64(7+i), s.Step)
	}
	assert.Nil(t, r.Samples(vehicle.Handle{Index: 9, Gen: 1}))
}

func TestEventCounts(t *testing.T) {
	r := NewRecorder(0, nil)
	h := vehicle.Handle{Index: 1, Gen: 2}
	r.ObserveEvent(vehicle.Event{Type: vehicle.EventSpawn, Handle: h, Kind: vehicle.KindTruck})
	r.ObserveEvent(vehicle.Event{Type: vehicle.EventJump, Handle: h, Kind: vehicle.KindTruck, Step: 4})
	r.ObserveEvent(vehicle.Event{Type: vehicle.EventJump, Handle: h, Kind: vehicle.KindTruck, Step: 90})

	c := r.Counts()
	assert.Equal(t, int64(3), c.Total)
	assert.Equal(t, int64(2), c.ByType["jump"])
	assert.Equal(t, int64(1), c.ByType["spawn"])

	recent := r.RecentEvents(2)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(90), recent[1].Step)
	assert.Equal(t, "1:2", recent[1].Vehicle)
	assert.Equal(t, "truck", recent[1].Kind)

	_, err := uuid.Parse(r.RunID())
	assert.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	samples := make([]Sample, 0, 20)
	for i := range 20 {
		roll := float64(i + 1)
		if i%2 == 1 {
			roll = -roll
		}
		samples = append(samples, Sample{
			Vehicle:   "0:1",
			Kind:      "motorcycle",
			RollDeg:   roll,
			PitchDeg:  float64(i) / 2,
			LeanDeg:   -float64(i),
			Speed:     2,
			Grounded:  i < 15,
			Emergency: i == 19,
		})
	}
	s := Summarize(samples)

	assert.Equal(t, 20, s.Samples)
	assert.Equal(t, "motorcycle", s.Kind)
	assert.InDelta(t, 10.5, s.MeanAbsRollDeg, 1e-9)
	assert.InDelta(t, 19, s.P95AbsRollDeg, 1e-9)
	assert.Equal(t, 20.0, s.MaxAbsRollDeg)
	assert.Equal(t, 9.5, s.MaxAbsPitchDeg)
	assert.Equal(t, 19.0, s.MaxAbsLeanDeg)
	assert.Equal(t, 2.0, s.MeanSpeed)
	assert.InDelta(t, 0.75, s.GroundedFraction, 1e-9)
	assert.InDelta(t, 0.05, s.EmergencyFraction, 1e-9)
	assert.Greater(t, s.StdDevRollDeg, 0.0)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummariesFollowFirstSeenOrder(t *testing.T) {
	r := NewRecorder(8, nil)
	a := vehicle.Handle{Index: 3, Gen: 1}
	b := vehicle.Handle{Index: 0, Gen: 1}
	r.ObserveStep(report(a, 1, 2))
	r.ObserveStep(report(b, 1, -4))
	r.ObserveStep(report(a, 2, -2))

	sums := r.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "3:1", sums[0].Vehicle)
	assert.Equal(t, 2, sums[0].Samples)
	assert.InDelta(t, 2, sums[0].MeanAbsRollDeg, 1e-9)
	assert.InDelta(t, 4, sums[1].MaxAbsRollDeg, 1e-9)
}

func TestFlushToSQLite(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	r := NewRecorder(16, sink)
	h := vehicle.Handle{Index: 0, Gen: 1}
	r.ObserveEvent(vehicle.Event{Type: vehicle.EventSpawn, Handle: h, Kind: vehicle.KindCar})
	for i := range 5 {
		rep := report(h, uint64(i+1), float64(i)*10)
		rep.Emergency = i == 4
		r.ObserveStep(rep)
	}
	r.ObserveEvent(vehicle.Event{Type: vehicle.EventEmergency, Handle: h, Kind: vehicle.KindCar, Step: 5})
	require.NoError(t, r.Flush(ctx))
	// A second flush has nothing pending.
	require.NoError(t, r.Flush(ctx))

	got, err := sink.LoadSamples(ctx, r.RunID(), "0:1")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, r.Samples(h), got)
	assert.True(t, got[4].Emergency)
	assert.InDelta(t, 40, got[4].RollDeg, 1e-9)

	counts, err := sink.CountEvents(ctx, r.RunID())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"spawn": 1, "emergency_recovery": 1}, counts)

	other, err := sink.LoadSamples(ctx, "another-run", "0:1")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFlushWithoutSink(t *testing.T) {
	r := NewRecorder(4, nil)
	r.ObserveStep(report(vehicle.Handle{Gen: 1}, 1, 0))
	assert.NoError(t, r.Flush(context.Background()))
	assert.False(t, math.IsNaN(r.Summaries()[0].MeanAbsRollDeg))
}

func TestDespawnedVehiclesAreEvicted(t *testing.T) {
	r := NewRecorder(8, nil)
	live := vehicle.Handle{Index: 999, Gen: 1}
	r.ObserveStep(report(live, 1, 1))

	total := MaxRetired + 5
	for i := range total {
		h := vehicle.Handle{Index: uint32(i), Gen: 1}
		r.ObserveStep(report(h, 1, 2))
		r.ObserveEvent(vehicle.Event{Type: vehicle.EventDespawn, Handle: h, Kind: vehicle.KindCar})
	}

	assert.Nil(t, r.Samples(vehicle.Handle{Index: 0, Gen: 1}), "oldest despawned vehicle evicted")
	assert.Nil(t, r.Samples(vehicle.Handle{Index: 4, Gen: 1}))
	assert.Len(t, r.Samples(vehicle.Handle{Index: 5, Gen: 1}), 1)
	assert.Len(t, r.Samples(vehicle.Handle{Index: uint32(total - 1), Gen: 1}), 1)
	assert.Len(t, r.Samples(live), 1, "live vehicles are never evicted")
	assert.Len(t, r.Summaries(), MaxRetired+1)
	assert.Equal(t, int64(total), r.Counts().ByType["despawn"])
}

// flakySink fails the first failures sample writes.
type flakySink struct {
	failures int
	samples  []Sample
	events   []EventRecord
	calls    int
}

func (f *flakySink) WriteSamples(_ context.Context, _ string, s []Sample) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("disk full")
	}
	f.samples = append(f.samples, s...)
	return nil
}

func (f *flakySink) WriteEvents(_ context.Context, _ string, e []EventRecord) error {
	f.events = append(f.events, e...)
	return nil
}

func TestFlushKeepsBatchesOnSinkError(t *testing.T) {
	ctx := context.Background()
	sink := &flakySink{failures: 1}
	r := NewRecorder(16, sink)
	h := vehicle.Handle{Index: 0, Gen: 1}

	r.ObserveEvent(vehicle.Event{Type: vehicle.EventSpawn, Handle: h, Kind: vehicle.KindCar})
	r.ObserveStep(report(h, 1, 1))
	r.ObserveStep(report(h, 2, 2))
	require.Error(t, r.Flush(ctx))
	assert.Empty(t, sink.samples)
	assert.Empty(t, sink.events)

	r.ObserveStep(report(h, 3, 3))
	require.NoError(t, r.Flush(ctx))

	require.Len(t, sink.samples, 3)
	for i, s := range sink.samples {
		assert.Equal(t, uint64(i+1), s.Step, "order preserved across the failed flush")
	}
	require.Len(t, sink.events, 1)
	assert.Equal(t, "spawn", sink.events[0].Type)
}

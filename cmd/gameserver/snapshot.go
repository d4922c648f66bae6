package main

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/shared/types"
	"github.com/babushkai/gta-sub001/internal/vehicle"
)

const maxFeedEvents = 256

// eventFeed buffers vehicle events between snapshots.
type eventFeed struct {
	mu     sync.Mutex
	events []types.VehicleEvent
}

var _ vehicle.Observer = (*eventFeed)(nil)

func newEventFeed() *eventFeed {
	return &eventFeed{events: make([]types.VehicleEvent, 0, 32)}
}

func (f *eventFeed) ObserveStep(vehicle.StepReport) {}

func (f *eventFeed) ObserveEvent(ev vehicle.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, types.VehicleEvent{
		Type:      string(ev.Type),
		VehicleID: ev.Handle.String(),
		Kind:      ev.Kind.String(),
		Tick:      ev.Step,
	})
	if len(f.events) > maxFeedEvents {
		f.events = f.events[len(f.events)-maxFeedEvents:]
	}
}

func (f *eventFeed) drain() []types.VehicleEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	out := f.events
	f.events = make([]types.VehicleEvent, 0, 32)
	return out
}

func controlsFromWire(in types.VehicleControls) vehicle.Controls {
	return vehicle.Controls{
		Acceleration: in.Acceleration,
		Steering:     in.Steering,
		Brake:        in.Brake,
		Sprint:       in.Sprint,
	}
}

func vehicleState(h vehicle.Handle, kind vehicle.Kind, tr vehicle.Transform, wheels []vehicle.WheelTransform, lean float64) types.VehicleState {
	st := types.VehicleState{
		VehicleID: h.String(),
		Kind:      kind.String(),
		Position:  types.FromVec3(tr.Position),
		Rotation:  types.FromQuat(tr.Rotation),
		Velocity:  types.FromVec3(tr.Linvel),
		Speed:     tr.Speed,
		RollDeg:   mgl64.RadToDeg(tr.Roll),
		PitchDeg:  mgl64.RadToDeg(tr.Pitch),
		LeanDeg:   mgl64.RadToDeg(lean),
		Wheels:    make([]types.WheelState, 0, len(wheels)),
	}
	for _, w := range wheels {
		st.Wheels = append(st.Wheels, types.WheelState{
			Position:         types.FromVec3(w.Position),
			Rotation:         types.FromQuat(w.Rotation),
			SuspensionLength: w.SuspensionLength,
			InContact:        w.InContact,
		})
	}
	return st
}

// snapshot collects the replicated state of every live vehicle.
func (s *server) snapshot(events []types.VehicleEvent) types.WorldState {
	owners := make(map[vehicle.Handle]*client)
	s.mu.RLock()
	for _, c := range s.clients {
		owners[c.vehicle] = c
	}
	s.mu.RUnlock()

	tick, vehicles := s.svc.Snapshot()
	state := types.WorldState{
		Tick:     tick,
		Vehicles: make([]types.VehicleState, 0, len(vehicles)),
		Events:   events,
	}
	for _, v := range vehicles {
		st := vehicleState(v.Handle, v.Kind, v.Transform, v.Wheels, v.Lean.Current)
		if c, ok := owners[v.Handle]; ok {
			st.ClientID = c.id
			st.LastSeq = c.lastSeq.Load()
		}
		state.Vehicles = append(state.Vehicles, st)
	}
	return state
}

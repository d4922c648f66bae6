package vehicle

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
	"github.com/babushkai/gta-sub001/internal/shared/logger"
)

// EventType names a discrete vehicle event.
type EventType string

const (
	EventSpawn     EventType = "spawn"
	EventDespawn   EventType = "despawn"
	EventJump      EventType = "jump"
	EventEmergency EventType = "emergency_recovery"
)

// Event is emitted when a vehicle is created, removed, jumps or enters
// emergency recovery.
type Event struct {
	Type   EventType
	Handle Handle
	Kind   Kind
	Step   uint64
}

// StepReport is one vehicle's stability sample for one step.
type StepReport struct {
	Step      uint64
	Handle    Handle
	Kind      Kind
	Roll      float64
	Pitch     float64
	Speed     float64
	Upright   float64
	Grounded  bool
	Lean      float64
	Emergency bool
}

// Observer receives reports after each step. It is called without the
// service lock held and must not block.
type Observer interface {
	ObserveStep(StepReport)
	ObserveEvent(Event)
}

// Service owns the world and the registry and runs the per-step pipeline:
// controls, wheel update and stabilization for each vehicle, then a single
// world step.
type Service struct {
	mu sync.Mutex

	log        *logger.Logger
	world      physics.World
	registry   *Registry
	mapper     ControlMapper
	stabilizer *Stabilizer
	observers  []Observer

	step    uint64
	pending []Event
}

// NewService wires a service over world using profiles.
func NewService(world physics.World, profiles Profiles, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		log:        log,
		world:      world,
		registry:   NewRegistry(world, profiles, log),
		stabilizer: NewStabilizer(log),
	}
}

// AddObserver registers o for step reports and events.
func (s *Service) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Create spawns a vehicle. See Registry.Create.
func (s *Service) Create(kind Kind, position mgl64.Vec3, rotation mgl64.Quat, mass float64) (Handle, error) {
	s.mu.Lock()
	h, err := s.registry.Create(kind, position, rotation, mass)
	if err == nil {
		s.pending = append(s.pending, Event{Type: EventSpawn, Handle: h, Kind: kind, Step: s.step})
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Str("kind", kind.String()).Msg("vehicle create failed")
	}
	return h, err
}

// Remove despawns a vehicle; unknown handles are ignored.
func (s *Service) Remove(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok {
		return
	}
	kind := v.kind
	if s.registry.Remove(h) {
		s.pending = append(s.pending, Event{Type: EventDespawn, Handle: h, Kind: kind, Step: s.step})
	}
}

// SetTransform teleports a vehicle and clears its motion.
func (s *Service) SetTransform(h Handle, position mgl64.Vec3, rotation *mgl64.Quat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.SetTransform(h, position, rotation)
}

// ApplyControls stores driver intent for h. It is mapped onto the wheels on
// every Update until replaced. Unknown handles are ignored.
func (s *Service) ApplyControls(h Handle, c Controls, t Tuning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.registry.Get(h); ok {
		s.mapper.Set(v, c, t)
	}
}

// Jump launches h if it is settled on its wheels.
func (s *Service) Jump(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok || !Jump(v) {
		return false
	}
	s.pending = append(s.pending, Event{Type: EventJump, Handle: h, Kind: v.kind, Step: s.step})
	return true
}

// Update advances the simulation by dt.
func (s *Service) Update(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}

	s.mu.Lock()
	s.step++
	step := s.step
	reports := make([]StepReport, 0, s.registry.Len())
	events := s.pending
	s.pending = nil

	s.registry.Each(func(v *Vehicle) {
		s.mapper.Apply(v)
		v.wheels.UpdateVehicle(dt)
		was := v.emergency
		a := s.stabilizer.Step(v, dt)
		if v.emergency && !was {
			events = append(events, Event{Type: EventEmergency, Handle: v.handle, Kind: v.kind, Step: step})
		}
		reports = append(reports, StepReport{
			Step:      step,
			Handle:    v.handle,
			Kind:      v.kind,
			Roll:      a.Roll,
			Pitch:     a.Pitch,
			Speed:     a.Speed,
			Upright:   a.Upright,
			Grounded:  a.Grounded,
			Lean:      v.lean.Current,
			Emergency: v.emergency,
		})
	})
	s.world.Step(dt)
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		for _, e := range events {
			o.ObserveEvent(e)
		}
		for _, r := range reports {
			o.ObserveStep(r)
		}
	}
}

// StepCount returns the number of completed updates.
func (s *Service) StepCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// GetTransform returns the chassis transform of h.
func (s *Service) GetTransform(h Handle) (Transform, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok {
		return Transform{}, false
	}
	return transformOf(v), true
}

// GetWheelTransforms returns the visual wheel poses of h in wheel order.
func (s *Service) GetWheelTransforms(h Handle) ([]WheelTransform, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok {
		return nil, false
	}
	return wheelTransformsOf(v), true
}

// Kind returns the kind of h.
func (s *Service) Kind(h Handle) (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok {
		return 0, false
	}
	return v.kind, true
}

// Lean returns the motorcycle lean state of h. Other kinds report zero.
func (s *Service) Lean(h Handle) (LeanState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok {
		return LeanState{}, false
	}
	return v.lean, true
}

// Emergency reports whether h ran emergency recovery on the last step.
func (s *Service) Emergency(h Handle) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(h)
	if !ok {
		return false, false
	}
	return v.emergency, true
}

// Handles lists live vehicles in slot order.
func (s *Service) Handles() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handle, 0, s.registry.Len())
	s.registry.Each(func(v *Vehicle) { out = append(out, v.handle) })
	return out
}

// VehicleSnapshot is one vehicle's replicated state.
type VehicleSnapshot struct {
	Handle    Handle
	Kind      Kind
	Transform Transform
	Wheels    []WheelTransform
	Lean      LeanState
	Emergency bool
}

// Snapshot reads the step count and every live vehicle in slot order under
// a single lock, so no vehicle is seen mid-update or half-removed.
func (s *Service) Snapshot() (uint64, []VehicleSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VehicleSnapshot, 0, s.registry.Len())
	s.registry.Each(func(v *Vehicle) {
		out = append(out, VehicleSnapshot{
			Handle:    v.handle,
			Kind:      v.kind,
			Transform: transformOf(v),
			Wheels:    wheelTransformsOf(v),
			Lean:      v.lean,
			Emergency: v.emergency,
		})
	})
	return s.step, out
}

// Len returns the number of live vehicles.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Len()
}

// Profile returns the profile used for kind.
func (s *Service) Profile(kind Kind) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Profile(kind)
}

// SpawnRotation returns a rotation yawing the forward axis by yaw radians,
// positive to the left.
func SpawnRotation(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, physics.WorldUp)
}

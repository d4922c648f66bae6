package vehicle

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
	"github.com/babushkai/gta-sub001/internal/shared/logger"
)

type slot struct {
	gen     uint32
	vehicle *Vehicle
}

// Registry owns every vehicle and the mapping from handles to chassis.
type Registry struct {
	world    physics.World
	profiles Profiles
	log      *logger.Logger

	slots []slot
	free  []uint32
	live  int
}

// NewRegistry binds a registry to a world. Profiles are cloned.
func NewRegistry(world physics.World, profiles Profiles, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{world: world, profiles: profiles.Clone(), log: log}
}

// Profile returns the registered profile for a kind.
func (r *Registry) Profile(kind Kind) (Profile, bool) {
	p, ok := r.profiles[kind]
	return p, ok
}

// Create builds chassis body, collider and wheel controller for kind. On any
// failure nothing stays registered in the world.
func (r *Registry) Create(kind Kind, position mgl64.Vec3, rotation mgl64.Quat, mass float64) (Handle, error) {
	p, ok := r.profiles[kind]
	if !ok {
		return Handle{}, fmt.Errorf("create %s: %w", kind, ErrUnknownKind)
	}
	if mass <= 0 || math.IsNaN(mass) || math.IsInf(mass, 0) {
		return Handle{}, fmt.Errorf("create %s with mass %v: %w", kind, mass, ErrInvalidMass)
	}
	if rotation.Len() < 1e-9 {
		rotation = mgl64.QuatIdent()
	}

	body, err := r.world.CreateBody(physics.BodyDesc{
		Translation:    position,
		Rotation:       rotation.Normalize(),
		LinearDamping:  p.LinearDamping,
		AngularDamping: p.AngularDamping,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("create %s body: %w", kind, err)
	}
	err = r.world.CreateCollider(body, physics.ColliderDesc{
		HalfExtents: p.HalfExtents,
		Offset:      p.ColliderOffset,
		Mass:        mass,
		Friction:    p.Friction,
		Restitution: p.Restitution,
	})
	if err != nil {
		r.world.RemoveBody(body)
		return Handle{}, fmt.Errorf("create %s collider: %w", kind, err)
	}
	wheels, err := r.world.CreateWheelController(body)
	if err != nil {
		r.world.RemoveBody(body)
		return Handle{}, fmt.Errorf("create %s wheels: %w", kind, err)
	}
	for _, m := range p.Wheels {
		wheels.AddWheel(physics.WheelDesc{
			Connection:           m.Connection,
			Direction:            physics.LocalUp.Mul(-1),
			Axle:                 physics.LocalRight.Mul(-1),
			SuspensionRestLength: p.Suspension.RestLength,
			Radius:               p.Suspension.Radius,
			SuspensionStiffness:  p.Suspension.Stiffness,
			SuspensionDamping:    p.Suspension.Damping,
			FrictionSlip:         p.Suspension.FrictionSlip,
			SideGrip:             p.Suspension.SideGrip,
			RollInfluence:        p.Suspension.RollInfluence,
		})
	}

	v := &Vehicle{
		kind:    kind,
		profile: p,
		policy:  policyFor(p),
		drive:   layoutFor(kind),
		body:    body,
		wheels:  wheels,
		tuning:  DefaultTuning(),
	}
	v.handle = r.insert(v)
	r.log.Debug().Str("vehicle", v.handle.String()).Str("kind", kind.String()).Float64("mass", mass).Msg("vehicle created")
	return v.handle, nil
}

func (r *Registry) insert(v *Vehicle) Handle {
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}
	s := &r.slots[idx]
	s.gen++
	s.vehicle = v
	r.live++
	return Handle{Index: idx, Gen: s.gen}
}

// Get resolves a handle. Stale handles are logged and reported missing.
func (r *Registry) Get(h Handle) (*Vehicle, bool) {
	if int(h.Index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[h.Index]
	if s.vehicle == nil || s.gen != h.Gen {
		if h.Gen != 0 && h.Gen < s.gen {
			r.log.Debug().Str("vehicle", h.String()).Uint32("current_gen", s.gen).Msg("stale vehicle handle")
		}
		return nil, false
	}
	return s.vehicle, true
}

// Remove detaches the chassis from the world. Unknown handles are ignored.
func (r *Registry) Remove(h Handle) bool {
	v, ok := r.Get(h)
	if !ok {
		return false
	}
	r.world.RemoveBody(v.body)
	r.slots[h.Index].vehicle = nil
	r.free = append(r.free, h.Index)
	r.live--
	r.log.Debug().Str("vehicle", h.String()).Str("kind", v.kind.String()).Msg("vehicle removed")
	return true
}

// SetTransform teleports a vehicle. Velocities and lean are cleared; a nil
// rotation keeps the current orientation.
func (r *Registry) SetTransform(h Handle, position mgl64.Vec3, rotation *mgl64.Quat) bool {
	v, ok := r.Get(h)
	if !ok {
		return false
	}
	v.body.SetTranslation(position)
	if rotation != nil && rotation.Len() > 1e-9 {
		v.body.SetRotation(rotation.Normalize())
	}
	v.resetMotion()
	return true
}

// Each visits live vehicles in slot order.
func (r *Registry) Each(fn func(*Vehicle)) {
	for i := range r.slots {
		if v := r.slots[i].vehicle; v != nil {
			fn(v)
		}
	}
}

// Len returns the number of live vehicles.
func (r *Registry) Len() int { return r.live }

package simulation

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
)

const (
	DefaultGravity = -9.81

	MaxLinearSpeed  = 120.0
	MaxAngularSpeed = 40.0

	ContactSlop          = 0.002
	ContactIterations    = 4
	PenetrationRecovery  = 0.8
	RestitutionThreshold = 1.0

	DefaultBodyMass = 1.0
)

// Options configures a World.
type Options struct {
	Gravity      mgl64.Vec3
	GroundHeight float64
	// MaxBodies caps live bodies; zero means unlimited.
	MaxBodies int
}

// DefaultOptions returns earth gravity over a ground plane at y=0.
func DefaultOptions() Options {
	return Options{Gravity: mgl64.Vec3{0, DefaultGravity, 0}}
}

// World is a single-threaded rigid-body world with a flat ground plane and
// raycast wheel controllers. It implements physics.World.
type World struct {
	opts        Options
	bodies      []*body
	controllers []*wheelController
	nextID      uint64
	tick        uint64
}

var _ physics.World = (*World)(nil)

// NewWorld creates an empty world.
func NewWorld(opts Options) *World {
	return &World{opts: opts}
}

// Gravity returns the gravity vector.
func (w *World) Gravity() mgl64.Vec3 {
	return w.opts.Gravity
}

// GroundHeight returns the y of the ground plane.
func (w *World) GroundHeight() float64 {
	return w.opts.GroundHeight
}

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 {
	return w.tick
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// CreateBody allocates a dynamic body with unit mass until a collider is
// attached.
func (w *World) CreateBody(desc physics.BodyDesc) (physics.Body, error) {
	if w.opts.MaxBodies > 0 && len(w.bodies) >= w.opts.MaxBodies {
		return nil, fmt.Errorf("create body %d: %w", len(w.bodies)+1, physics.ErrBodyLimit)
	}
	rot := desc.Rotation
	if rot.Len() < 1e-9 {
		rot = mgl64.QuatIdent()
	}
	w.nextID++
	b := &body{
		world:   w,
		id:      w.nextID,
		pos:     desc.Translation,
		rot:     rot.Normalize(),
		linDamp: math.Max(desc.LinearDamping, 0),
		angDamp: math.Max(desc.AngularDamping, 0),
	}
	b.setMass(DefaultBodyMass, mgl64.Vec3{1, 1, 1})
	w.bodies = append(w.bodies, b)
	return b, nil
}

// CreateCollider attaches a box collider. Mass, inertia and center of mass
// are derived from it.
func (w *World) CreateCollider(pb physics.Body, desc physics.ColliderDesc) error {
	b, err := w.own(pb)
	if err != nil {
		return err
	}
	if desc.Mass <= 0 || math.IsNaN(desc.Mass) || math.IsInf(desc.Mass, 0) {
		return fmt.Errorf("create collider: invalid mass %v", desc.Mass)
	}
	b.collider = desc
	b.hasCollider = true
	b.comLocal = desc.Offset
	b.setMass(desc.Mass, physics.BoxInertia(desc.Mass, desc.HalfExtents))
	return nil
}

// CreateWheelController binds a raycast wheel controller to a chassis.
func (w *World) CreateWheelController(pb physics.Body) (physics.WheelController, error) {
	b, err := w.own(pb)
	if err != nil {
		return nil, err
	}
	c := &wheelController{world: w, chassis: b}
	w.controllers = append(w.controllers, c)
	return c, nil
}

// RemoveBody detaches a body and any controller bound to it. Unknown or
// already removed bodies are ignored.
func (w *World) RemoveBody(pb physics.Body) {
	b, err := w.own(pb)
	if err != nil {
		return
	}
	for i, cur := range w.bodies {
		if cur == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	kept := w.controllers[:0]
	for _, c := range w.controllers {
		if c.chassis != b {
			kept = append(kept, c)
		}
	}
	w.controllers = kept
	b.removed = true
}

// Step integrates every body one tick: forces, damping, ground contact,
// then positions. Accumulated forces are cleared afterwards.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	for _, b := range w.bodies {
		b.integrateVelocity(w.opts.Gravity, dt)
		if b.hasCollider {
			w.solveGroundContact(b)
		}
		b.integratePosition(dt)
		if b.hasCollider {
			w.correctPenetration(b)
		}
		b.force = mgl64.Vec3{}
		b.torque = mgl64.Vec3{}
	}
	w.tick++
}

func (w *World) own(pb physics.Body) (*body, error) {
	b, ok := pb.(*body)
	if !ok || b == nil || b.world != w {
		return nil, physics.ErrForeignBody
	}
	if b.removed {
		return nil, fmt.Errorf("body %d removed: %w", b.id, physics.ErrForeignBody)
	}
	return b, nil
}

// solveGroundContact applies normal and friction impulses at every collider
// corner touching the ground plane.
func (w *World) solveGroundContact(b *body) {
	n := physics.WorldUp
	ground := w.opts.GroundHeight
	corners := b.corners()
	for iter := 0; iter < ContactIterations; iter++ {
		touched := false
		iinv := b.worldInvInertia()
		com := b.CenterOfMass()
		for _, c := range corners {
			if c.Y() > ground+ContactSlop {
				continue
			}
			r := c.Sub(com)
			vp := b.linvel.Add(b.angvel.Cross(r))
			vn := vp.Dot(n)
			if vn >= 0 {
				continue
			}
			touched = true

			rn := r.Cross(n)
			k := b.invMass + iinv.Mul3x1(rn).Dot(rn)
			if k <= 0 {
				continue
			}
			e := 0.0
			if vn < -RestitutionThreshold {
				e = b.collider.Restitution
			}
			jn := -(1 + e) * vn / k
			b.applyImpulseAt(n.Mul(jn), r, iinv)

			vp = b.linvel.Add(b.angvel.Cross(r))
			vt := vp.Sub(n.Mul(vp.Dot(n)))
			vtLen := vt.Len()
			if vtLen < 1e-9 {
				continue
			}
			t := vt.Mul(1 / vtLen)
			rt := r.Cross(t)
			kt := b.invMass + iinv.Mul3x1(rt).Dot(rt)
			if kt <= 0 {
				continue
			}
			jt := clamp(vtLen/kt, 0, b.collider.Friction*jn)
			b.applyImpulseAt(t.Mul(-jt), r, iinv)
		}
		if !touched {
			return
		}
	}
}

func (w *World) correctPenetration(b *body) {
	ground := w.opts.GroundHeight
	minY := math.Inf(1)
	for _, c := range b.corners() {
		minY = math.Min(minY, c.Y())
	}
	if depth := ground - minY; depth > ContactSlop {
		b.pos[1] += (depth - ContactSlop) * PenetrationRecovery
	}
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func clampLen(v mgl64.Vec3, maxLen float64) mgl64.Vec3 {
	l := v.Len()
	if l > maxLen && l > 0 {
		return v.Mul(maxLen / l)
	}
	return v
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

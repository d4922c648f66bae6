package simulation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
)

const (
	RollingFriction = 0.004
	FreeSpinDecay   = 0.985
)

type wheel struct {
	desc physics.WheelDesc

	steering    float64
	engineForce float64
	brake       float64

	suspensionLength float64
	inContact        bool
	contactPoint     mgl64.Vec3

	rotation float64
	spin     float64
}

// wheelController is a raycast vehicle bound to one chassis body.
type wheelController struct {
	world   *World
	chassis *body
	wheels  []*wheel
}

var _ physics.WheelController = (*wheelController)(nil)

func (c *wheelController) AddWheel(desc physics.WheelDesc) int {
	if desc.Direction.Len() < 1e-9 {
		desc.Direction = physics.LocalUp.Mul(-1)
	}
	desc.Direction = desc.Direction.Normalize()
	c.wheels = append(c.wheels, &wheel{desc: desc, suspensionLength: desc.SuspensionRestLength})
	return len(c.wheels) - 1
}

func (c *wheelController) NumWheels() int { return len(c.wheels) }

func (c *wheelController) at(i int) *wheel {
	if i < 0 || i >= len(c.wheels) {
		return nil
	}
	return c.wheels[i]
}

func (c *wheelController) Wheel(i int) physics.WheelDesc {
	if w := c.at(i); w != nil {
		return w.desc
	}
	return physics.WheelDesc{}
}

func (c *wheelController) SetWheelSteering(i int, angle float64) {
	if w := c.at(i); w != nil {
		w.steering = angle
	}
}

func (c *wheelController) SetWheelEngineForce(i int, force float64) {
	if w := c.at(i); w != nil {
		w.engineForce = force
	}
}

func (c *wheelController) SetWheelBrake(i int, force float64) {
	if w := c.at(i); w != nil {
		w.brake = math.Max(force, 0)
	}
}

func (c *wheelController) WheelSteering(i int) float64 {
	if w := c.at(i); w != nil {
		return w.steering
	}
	return 0
}

func (c *wheelController) WheelEngineForce(i int) float64 {
	if w := c.at(i); w != nil {
		return w.engineForce
	}
	return 0
}

func (c *wheelController) WheelBrake(i int) float64 {
	if w := c.at(i); w != nil {
		return w.brake
	}
	return 0
}

func (c *wheelController) WheelSuspensionLength(i int) float64 {
	if w := c.at(i); w != nil {
		return w.suspensionLength
	}
	return 0
}

func (c *wheelController) WheelRotation(i int) float64 {
	if w := c.at(i); w != nil {
		return w.rotation
	}
	return 0
}

func (c *wheelController) WheelInContact(i int) bool {
	if w := c.at(i); w != nil {
		return w.inContact
	}
	return false
}

// UpdateVehicle casts every suspension ray against the ground plane, then
// computes spring/damper, drive, brake and lateral grip impulses at the
// contact points. All impulses are solved against the chassis velocity as it
// was before the update and applied together, so the result does not depend
// on wheel order.
func (c *wheelController) UpdateVehicle(dt float64) {
	b := c.chassis
	if b.removed || dt <= 0 {
		return
	}

	grounded := 0
	for _, w := range c.wheels {
		c.castRay(w)
		if w.inContact {
			grounded++
		}
	}

	iinv := b.worldInvInertia()
	impulses := make([]contactImpulse, 0, 2*grounded)
	for _, w := range c.wheels {
		if !w.inContact {
			w.spin *= FreeSpinDecay
			w.rotation = normalizeAngle(w.rotation + w.spin*dt)
			continue
		}
		up, normal := c.suspensionImpulse(w, iinv, dt)
		if normal > 0 {
			impulses = append(impulses, up)
		}
		if grip, ok := c.frictionImpulse(w, normal, 1/float64(grounded), iinv, dt); ok {
			impulses = append(impulses, grip)
		}
	}
	for _, ci := range impulses {
		b.applyImpulseAt(ci.j, ci.r, iinv)
	}
}

// contactImpulse is an impulse j applied at offset r from the center of mass.
type contactImpulse struct {
	j, r mgl64.Vec3
}

func (c *wheelController) castRay(w *wheel) {
	b := c.chassis
	ground := c.world.opts.GroundHeight

	hard := b.pos.Add(b.rot.Rotate(w.desc.Connection))
	dir := b.rot.Rotate(w.desc.Direction)
	maxLen := w.desc.SuspensionRestLength + w.desc.Radius

	w.inContact = false
	w.suspensionLength = w.desc.SuspensionRestLength
	if dir.Y() > -1e-6 {
		return
	}
	t := (ground - hard.Y()) / dir.Y()
	if t > maxLen {
		return
	}
	if t < 0 {
		t = 0
	}
	w.inContact = true
	w.suspensionLength = clamp(t-w.desc.Radius, 0, w.desc.SuspensionRestLength)
	w.contactPoint = hard.Add(dir.Mul(t))
}

// suspensionImpulse pushes the chassis up at the contact point and returns
// the normal impulse magnitude, which also bounds the friction available to
// the wheel.
func (c *wheelController) suspensionImpulse(w *wheel, iinv mgl64.Mat3, dt float64) (contactImpulse, float64) {
	b := c.chassis
	r := w.contactPoint.Sub(b.CenterOfMass())
	vp := b.linvel.Add(b.angvel.Cross(r))

	dir := b.rot.Rotate(w.desc.Direction)
	compression := w.desc.SuspensionRestLength - w.suspensionLength
	compressionSpeed := vp.Dot(dir)

	accel := w.desc.SuspensionStiffness*compression + w.desc.SuspensionDamping*compressionSpeed
	if accel <= 0 {
		return contactImpulse{}, 0
	}
	impulse := b.mass * accel * dt
	return contactImpulse{j: physics.WorldUp.Mul(impulse), r: r}, impulse
}

func (c *wheelController) frictionImpulse(w *wheel, normalImpulse, share float64, iinv mgl64.Mat3, dt float64) (contactImpulse, bool) {
	b := c.chassis
	n := physics.WorldUp
	com := b.CenterOfMass()

	steer := mgl64.QuatRotate(w.steering, w.desc.Direction.Mul(-1))
	fwd := b.rot.Rotate(steer.Rotate(physics.LocalForward))
	fwd = fwd.Sub(n.Mul(fwd.Dot(n)))
	if fwd.Len() < 1e-6 {
		return contactImpulse{}, false
	}
	fwd = fwd.Normalize()
	side := fwd.Cross(n)

	// Friction acts at a point lifted toward the center of mass.
	rel := w.contactPoint.Sub(com)
	rel = rel.Sub(n.Mul(rel.Dot(n) * (1 - w.desc.RollInfluence)))
	vp := b.linvel.Add(b.angvel.Cross(rel))
	vFwd := vp.Dot(fwd)
	vSide := vp.Dot(side)

	w.spin = vFwd / math.Max(w.desc.Radius, 1e-3)
	w.rotation = normalizeAngle(w.rotation + w.spin*dt)

	effMass := func(axis mgl64.Vec3) float64 {
		ra := rel.Cross(axis)
		k := b.invMass + iinv.Mul3x1(ra).Dot(ra)
		if k <= 0 {
			return 0
		}
		return 1 / k
	}

	lateral := -vSide * effMass(side) * share * w.desc.SideGrip

	longitudinal := w.engineForce * dt
	stop := -vFwd * effMass(fwd) * share
	switch {
	case w.brake > 0:
		maxBrake := w.brake * dt
		if math.Abs(stop) <= maxBrake {
			longitudinal += stop
		} else {
			longitudinal += math.Copysign(maxBrake, stop)
		}
	case w.engineForce == 0:
		longitudinal += stop * RollingFriction
	}

	limit := w.desc.FrictionSlip * normalImpulse
	if mag := math.Hypot(lateral, longitudinal); mag > limit {
		scale := limit / mag
		lateral *= scale
		longitudinal *= scale
	}

	return contactImpulse{j: fwd.Mul(longitudinal).Add(side.Mul(lateral)), r: rel}, true
}

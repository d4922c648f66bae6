package simulation

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
)

type body struct {
	world   *World
	id      uint64
	removed bool

	pos    mgl64.Vec3 // body origin
	rot    mgl64.Quat
	linvel mgl64.Vec3 // of the center of mass
	angvel mgl64.Vec3

	linDamp float64
	angDamp float64

	mass     float64
	invMass  float64
	inertia  mgl64.Vec3
	comLocal mgl64.Vec3

	collider    physics.ColliderDesc
	hasCollider bool

	force  mgl64.Vec3
	torque mgl64.Vec3
}

var _ physics.Body = (*body)(nil)

func (b *body) setMass(mass float64, inertia mgl64.Vec3) {
	b.mass = mass
	b.invMass = 1 / mass
	b.inertia = inertia
}

func (b *body) Translation() mgl64.Vec3 { return b.pos }
func (b *body) Rotation() mgl64.Quat { return b.rot }
func (b *body) Linvel() mgl64.Vec3 { return b.linvel }
func (b *body) Angvel() mgl64.Vec3 { return b.angvel }
func (b *body) Mass() float64 { return b.mass }
func (b *body) PrincipalInertia() mgl64.Vec3 { return b.inertia }
func (b *body) SetTranslation(p mgl64.Vec3) { b.pos = p }
func (b *body) SetLinvel(v mgl64.Vec3) { b.linvel = v }
func (b *body) SetAngvel(w mgl64.Vec3) { b.angvel = w }
func (b *body) AddForce(f mgl64.Vec3) { b.force = b.force.Add(f) }
func (b *body) AddTorque(t mgl64.Vec3) { b.torque = b.torque.Add(t) }
func (b *body) ApplyImpulse(j mgl64.Vec3) { b.linvel = b.linvel.Add(j.Mul(b.invMass)) }
func (b *body) CenterOfMass() mgl64.Vec3 { return b.pos.Add(b.rot.Rotate(b.comLocal)) }
func (b *body) worldInvInertia() mgl64.Mat3 { return physics.WorldInverseInertia(b.rot, b.inertia) }
func (b *body) ApplyTorqueImpulse(t mgl64.Vec3) {
	b.angvel = b.angvel.Add(b.worldInvInertia().Mul3x1(t))
}

func (b *body) SetRotation(q mgl64.Quat) {
	if q.Len() < 1e-9 {
		return
	}
	b.rot = q.Normalize()
}

func (b *body) ApplyImpulseAtPoint(j, point mgl64.Vec3) {
	b.applyImpulseAt(j, point.Sub(b.CenterOfMass()), b.worldInvInertia())
}

func (b *body) applyImpulseAt(j, r mgl64.Vec3, iinv mgl64.Mat3) {
	b.linvel = b.linvel.Add(j.Mul(b.invMass))
	b.angvel = b.angvel.Add(iinv.Mul3x1(r.Cross(j)))
}

func (b *body) integrateVelocity(gravity mgl64.Vec3, dt float64) {
	b.linvel = b.linvel.Add(gravity.Add(b.force.Mul(b.invMass)).Mul(dt))
	b.angvel = b.angvel.Add(b.worldInvInertia().Mul3x1(b.torque).Mul(dt))

	b.linvel = b.linvel.Mul(1 / (1 + dt*b.linDamp))
	b.angvel = b.angvel.Mul(1 / (1 + dt*b.angDamp))

	b.linvel = clampLen(b.linvel, MaxLinearSpeed)
	b.angvel = clampLen(b.angvel, MaxAngularSpeed)
	if !finiteVec(b.linvel) {
		b.linvel = mgl64.Vec3{}
	}
	if !finiteVec(b.angvel) {
		b.angvel = mgl64.Vec3{}
	}
}

// integratePosition advances about the center of mass so an offset collider
// rotates the body around its true pivot.
func (b *body) integratePosition(dt float64) {
	com := b.CenterOfMass().Add(b.linvel.Mul(dt))

	spin := mgl64.Quat{W: 0, V: b.angvel}.Mul(b.rot).Scale(0.5 * dt)
	next := b.rot.Add(spin)
	if next.Len() > 1e-9 {
		b.rot = next.Normalize()
	}
	b.pos = com.Sub(b.rot.Rotate(b.comLocal))
}

// corners returns the eight world-space corners of the box collider.
func (b *body) corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	h := b.collider.HalfExtents
	i := 0
	for _, sx := range [2]float64{-1, 1} {
		for _, sy := range [2]float64{-1, 1} {
			for _, sz := range [2]float64{-1, 1} {
				local := b.collider.Offset.Add(mgl64.Vec3{sx * h.X(), sy * h.Y(), sz * h.Z()})
				out[i] = b.pos.Add(b.rot.Rotate(local))
				i++
			}
		}
	}
	return out
}

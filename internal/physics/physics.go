// Package physics declares the rigid-body capabilities the vehicle core
// depends on. Backends (the in-process simulation package, or a binding to
// an external engine) implement these interfaces; nothing above this package
// sees concrete engine types.
package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrBodyLimit is returned when a backend refuses to allocate another body.
var ErrBodyLimit = errors.New("physics: body limit reached")

// ErrForeignBody is returned when a handle from another world is passed in.
var ErrForeignBody = errors.New("physics: body does not belong to this world")

// World is the rigid-body world capability set.
type World interface {
	CreateBody(desc BodyDesc) (Body, error)
	CreateCollider(body Body, desc ColliderDesc) error
	CreateWheelController(body Body) (WheelController, error)
	RemoveBody(body Body)
	// Step advances every body by one fixed tick and clears accumulated
	// forces and torques.
	Step(dt float64)
	Gravity() mgl64.Vec3
}

// BodyDesc describes a dynamic body at creation.
type BodyDesc struct {
	Translation    mgl64.Vec3
	Rotation       mgl64.Quat
	LinearDamping  float64
	AngularDamping float64
}

// ColliderDesc is a box collider attached to a body. Offset is in body-local
// space and also places the center of mass.
type ColliderDesc struct {
	HalfExtents mgl64.Vec3
	Offset      mgl64.Vec3
	Mass        float64
	Friction    float64
	Restitution float64
}

// Body is an opaque handle to a dynamic rigid body.
type Body interface {
	Translation() mgl64.Vec3
	Rotation() mgl64.Quat
	Linvel() mgl64.Vec3
	Angvel() mgl64.Vec3
	Mass() float64
	// PrincipalInertia is the body-local diagonal inertia tensor.
	PrincipalInertia() mgl64.Vec3
	// CenterOfMass is the world-space center of mass.
	CenterOfMass() mgl64.Vec3

	SetTranslation(p mgl64.Vec3)
	SetRotation(q mgl64.Quat)
	SetLinvel(v mgl64.Vec3)
	SetAngvel(w mgl64.Vec3)

	AddForce(f mgl64.Vec3)
	AddTorque(t mgl64.Vec3)
	ApplyImpulse(j mgl64.Vec3)
	ApplyImpulseAtPoint(j, point mgl64.Vec3)
	ApplyTorqueImpulse(t mgl64.Vec3)
}

// WheelDesc configures one raycast wheel. Vectors are chassis-local.
type WheelDesc struct {
	Connection           mgl64.Vec3
	Direction            mgl64.Vec3
	Axle                 mgl64.Vec3
	SuspensionRestLength float64
	Radius               float64
	// Stiffness and damping are per unit of chassis mass.
	SuspensionStiffness float64
	SuspensionDamping   float64
	FrictionSlip        float64
	SideGrip            float64
	// RollInfluence scales the height at which friction is applied; 0 puts
	// it at the center of mass, 1 at the contact patch.
	RollInfluence float64
}

// WheelController is the raycast-vehicle primitive bound to one chassis.
type WheelController interface {
	AddWheel(desc WheelDesc) int
	NumWheels() int
	Wheel(i int) WheelDesc

	SetWheelSteering(i int, angle float64)
	SetWheelEngineForce(i int, force float64)
	SetWheelBrake(i int, force float64)

	WheelSteering(i int) float64
	WheelEngineForce(i int) float64
	WheelBrake(i int) float64
	WheelSuspensionLength(i int) float64
	WheelRotation(i int) float64
	WheelInContact(i int) bool

	// UpdateVehicle casts the suspension rays and applies suspension,
	// drive, brake and grip impulses to the chassis.
	UpdateVehicle(dt float64)
}

// Standard chassis-local axes.
var (
	LocalRight   = mgl64.Vec3{1, 0, 0}
	LocalUp      = mgl64.Vec3{0, 1, 0}
	LocalForward = mgl64.Vec3{0, 0, -1}
	WorldUp      = mgl64.Vec3{0, 1, 0}
)

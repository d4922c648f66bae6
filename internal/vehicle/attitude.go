package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
)

// Attitude is the chassis orientation and motion measured once per step.
type Attitude struct {
	Up, Forward, Right mgl64.Vec3

	Roll    float64 // rad, positive right side down
	Pitch   float64 // rad, positive nose up
	Upright float64 // up·worldUp

	Linvel mgl64.Vec3
	Angvel mgl64.Vec3
	// Local velocity as (right, up, forward) components.
	Local mgl64.Vec3
	Speed float64 // horizontal

	RollRate, PitchRate, YawRate float64

	WheelsInContact int
	Grounded        bool
}

// Measure derives attitude from a body and its wheels. uprightThreshold
// gates Grounded together with wheel contact.
func Measure(b physics.Body, wheels physics.WheelController, uprightThreshold float64) Attitude {
	rot := b.Rotation()
	a := Attitude{
		Up:      rot.Rotate(physics.LocalUp),
		Forward: rot.Rotate(physics.LocalForward),
		Right:   rot.Rotate(physics.LocalRight),
		Linvel:  b.Linvel(),
		Angvel:  b.Angvel(),
	}
	a.Upright = a.Up.Dot(physics.WorldUp)
	a.Roll = rollAngle(a.Up, a.Forward, a.Right)
	a.Pitch = math.Asin(clamp(a.Forward.Y(), -1, 1))

	a.Local = mgl64.Vec3{a.Linvel.Dot(a.Right), a.Linvel.Dot(a.Up), a.Linvel.Dot(a.Forward)}
	a.Speed = math.Hypot(a.Linvel.X(), a.Linvel.Z())

	a.RollRate = a.Angvel.Dot(a.Forward)
	a.PitchRate = a.Angvel.Dot(a.Right)
	a.YawRate = a.Angvel.Dot(a.Up)

	if wheels != nil {
		for i := range wheels.NumWheels() {
			if wheels.WheelInContact(i) {
				a.WheelsInContact++
			}
		}
	}
	a.Grounded = a.Upright >= uprightThreshold && a.WheelsInContact > 0
	return a
}

// rollAngle is the signed angle about forward from the gravity-aligned up
// to the chassis up.
func rollAngle(up, forward, right mgl64.Vec3) float64 {
	ref := physics.WorldUp.Sub(forward.Mul(physics.WorldUp.Dot(forward)))
	if ref.Len() < 1e-6 {
		// Nose straight up or down: fall back to the right axis tilt.
		return math.Atan2(-right.Y(), up.Y())
	}
	ref = ref.Normalize()
	return math.Atan2(ref.Cross(up).Dot(forward), ref.Dot(up))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

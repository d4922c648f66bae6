package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
	"github.com/babushkai/gta-sub001/internal/shared/logger"
)

// Correction accumulates one step's stabilizing output. Alpha is a world
// angular acceleration, converted through the chassis inertia on apply.
type Correction struct {
	Force   mgl64.Vec3
	Alpha   mgl64.Vec3
	Impulse mgl64.Vec3
}

func (c *Correction) apply(b physics.Body) {
	if finiteVec(c.Force) && c.Force != (mgl64.Vec3{}) {
		b.AddForce(c.Force)
	}
	if finiteVec(c.Alpha) && c.Alpha != (mgl64.Vec3{}) {
		b.AddTorque(physics.TorqueFor(b, c.Alpha))
	}
	if finiteVec(c.Impulse) && c.Impulse != (mgl64.Vec3{}) {
		b.ApplyImpulse(c.Impulse)
	}
}

// Policy is one vehicle class's stabilization behaviour.
type Policy interface {
	UprightThreshold() float64
	// Advance updates controller state that evolves every step.
	Advance(v *Vehicle, dt float64)
	GroundedCorrection(v *Vehicle, a Attitude, c *Correction)
	AirborneCorrection(v *Vehicle, a Attitude, c *Correction)
	// EmergencyCorrection adds recovery torque past the critical roll and
	// reports whether it fired.
	EmergencyCorrection(v *Vehicle, a Attitude, c *Correction) bool
}

func policyFor(p Profile) Policy {
	if p.Kind == KindMotorcycle {
		return motorcyclePolicy{tuning: p.Lean}
	}
	return carPolicy{tuning: p.Stability}
}

// Stabilizer runs a vehicle's policy once per step, after the wheel
// controller and before the world step.
type Stabilizer struct {
	log *logger.Logger
}

// NewStabilizer returns a Stabilizer logging emergency transitions to log.
func NewStabilizer(log *logger.Logger) *Stabilizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Stabilizer{log: log}
}

// Step measures v and applies its corrections. The returned attitude is
// the pre-correction measurement.
func (s *Stabilizer) Step(v *Vehicle, dt float64) Attitude {
	p := v.policy
	p.Advance(v, dt)

	a := Measure(v.body, v.wheels, p.UprightThreshold())
	var c Correction
	if a.Grounded {
		p.GroundedCorrection(v, a, &c)
	} else {
		p.AirborneCorrection(v, a, &c)
	}
	emergency := p.EmergencyCorrection(v, a, &c)
	if emergency && !v.emergency {
		s.log.Debug().
			Str("vehicle", v.handle.String()).
			Str("kind", v.kind.String()).
			Float64("roll_deg", mgl64.RadToDeg(a.Roll)).
			Msg("emergency recovery engaged")
	}
	v.emergency = emergency
	c.apply(v.body)
	return a
}

// selfRightAlpha rotates up toward world up with gain per radian of tilt.
func selfRightAlpha(a Attitude, gain float64) mgl64.Vec3 {
	angle := math.Acos(clamp(a.Upright, -1, 1))
	if angle < 1e-4 {
		return mgl64.Vec3{}
	}
	ax := a.Up.Cross(physics.WorldUp)
	if ax.Len() < 1e-6 {
		// Fully inverted: any horizontal axis works, roll over forward.
		ax = a.Forward
	}
	return ax.Normalize().Mul(angle * gain)
}

// emergencyAlpha is the urgency-scaled roll recovery shared by every policy.
// Urgency grows from 0 at critical to 1 at 90 degrees of roll.
func emergencyAlpha(a Attitude, critical, base, gain, damping float64) (mgl64.Vec3, bool) {
	r := math.Abs(a.Roll)
	if r <= critical {
		return mgl64.Vec3{}, false
	}
	span := math.Pi/2 - critical
	urgency := 1.0
	if span > 0 {
		urgency = clamp((r-critical)/span, 0, 1)
	}
	mag := -sign(a.Roll)*(base+gain*urgency) - damping*a.RollRate
	return a.Forward.Mul(mag), true
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

package vehicle

import (
	"math"

	"github.com/babushkai/gta-sub001/internal/physics"
)

// Controls is one frame of driver intent. Steering +1 turns left.
type Controls struct {
	Acceleration float64
	Steering     float64
	Brake        bool
	Sprint       bool
}

// Tuning holds the per-driver ratings that scale the profile's base forces.
type Tuning struct {
	Accel    float64
	Handling float64
	Braking  float64
}

// DefaultTuning rates everything at 1.
func DefaultTuning() Tuning {
	return Tuning{Accel: 1, Handling: 1, Braking: 1}
}

// MaxRating bounds every Tuning field.
const MaxRating = 3.0

func axis(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return clamp(v, -1, 1)
}

func rating(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return clamp(v, 0, MaxRating)
}

func (c Controls) sanitized() Controls {
	c.Acceleration = axis(c.Acceleration)
	c.Steering = axis(c.Steering)
	return c
}

func (t Tuning) sanitized() Tuning {
	return Tuning{Accel: rating(t.Accel), Handling: rating(t.Handling), Braking: rating(t.Braking)}
}

// LowSpeedBoost is large at standstill and decays quadratically to 1 at
// BoostFadeSpeed.
func LowSpeedBoost(d DriveTuning, speed float64) float64 {
	if d.BoostFadeSpeed <= 0 {
		return 1
	}
	f := math.Max(0, 1-speed/d.BoostFadeSpeed)
	return 1 + (d.LowSpeedBoostMax-1)*f*f
}

// SprintBoost fades with speed down to SprintFloor of its full effect.
func SprintBoost(d DriveTuning, speed float64, sprint bool) float64 {
	if !sprint {
		return 1
	}
	f := 1.0
	if d.SprintFadeSpeed > 0 {
		f = math.Max(d.SprintFloor, 1-speed/d.SprintFadeSpeed)
	}
	return 1 + (d.SprintBoostMax-1)*f
}

// SteerAttenuation shrinks steering authority with speed, never below
// SteerFloor.
func SteerAttenuation(d DriveTuning, speed float64) float64 {
	if d.SteerFadeSpeed <= 0 {
		return 1
	}
	return math.Max(d.SteerFloor, 1-speed/d.SteerFadeSpeed)
}

func horizontalSpeed(b physics.Body) float64 {
	v := b.Linvel()
	return math.Hypot(v.X(), v.Z())
}

// driveLayout writes mapped controls into a vehicle's wheels.
type driveLayout interface {
	apply(v *Vehicle, speed float64)
}

func layoutFor(k Kind) driveLayout {
	if k == KindMotorcycle {
		return motorcycleDrive{}
	}
	return carDrive{}
}

// engineForce is the per-driven-wheel force shared by every layout.
func engineForce(d DriveTuning, c Controls, t Tuning, speed float64) float64 {
	if c.Brake || c.Acceleration == 0 {
		return 0
	}
	f := d.BaseEngineForce * t.Accel * c.Acceleration *
		LowSpeedBoost(d, speed) * SprintBoost(d, speed, c.Sprint)
	if c.Acceleration < 0 {
		f *= d.ReverseScale
	}
	return f
}

func steerAngle(d DriveTuning, c Controls, t Tuning, speed float64) float64 {
	return c.Steering * d.MaxSteerAngle * t.Handling * SteerAttenuation(d, speed)
}

func brakeForce(d DriveTuning, c Controls, t Tuning) float64 {
	if !c.Brake {
		return 0
	}
	return d.BaseBrakeForce * t.Braking
}

// carDrive serves cars and trucks: front steering, rear drive, even brakes.
type carDrive struct{}

func (carDrive) apply(v *Vehicle, speed float64) {
	d := v.profile.Drive
	c, t := v.controls, v.tuning
	engine := engineForce(d, c, t, speed)
	steer := steerAngle(d, c, t, speed)
	brake := brakeForce(d, c, t)
	for i, m := range v.profile.Wheels {
		if m.Steers {
			v.wheels.SetWheelSteering(i, steer)
		} else {
			v.wheels.SetWheelSteering(i, 0)
		}
		if m.Drives {
			v.wheels.SetWheelEngineForce(i, engine*d.PowerMultiplier)
		} else {
			v.wheels.SetWheelEngineForce(i, 0)
		}
		v.wheels.SetWheelBrake(i, brake)
	}
}

// motorcycleDrive adds counter-steer attenuation, front brake bias, the
// wheelie and stoppie torques and the lean target.
type motorcycleDrive struct{}

func (motorcycleDrive) apply(v *Vehicle, speed float64) {
	d := v.profile.Drive
	c, t := v.controls, v.tuning

	engine := engineForce(d, c, t, speed) * d.PowerMultiplier
	steer := steerAngle(d, c, t, speed)
	if d.CounterSteerFadeSpeed > 0 {
		steer *= math.Max(d.CounterSteerFloor, 1-speed/d.CounterSteerFadeSpeed)
	}
	brake := brakeForce(d, c, t)
	bias := clamp(d.FrontBrakeBias, 0, 1)

	for i, m := range v.profile.Wheels {
		if m.Steers {
			v.wheels.SetWheelSteering(i, steer)
		} else {
			v.wheels.SetWheelSteering(i, 0)
		}
		if m.Drives {
			v.wheels.SetWheelEngineForce(i, engine)
		} else {
			v.wheels.SetWheelEngineForce(i, 0)
		}
		if m.Front {
			v.wheels.SetWheelBrake(i, 2*bias*brake)
		} else {
			v.wheels.SetWheelBrake(i, 2*(1-bias)*brake)
		}
	}

	var pitchAlpha float64
	if c.Acceleration >= d.WheelieThrottle && !c.Brake && speed < d.WheelieCutoffSpeed {
		pitchAlpha += d.WheelieAccel * c.Acceleration * (1 - speed/d.WheelieCutoffSpeed)
	}
	if c.Brake && speed > d.StoppieMinSpeed {
		pitchAlpha -= d.StoppieAccel * t.Braking
	}
	if pitchAlpha != 0 {
		right := v.body.Rotation().Rotate(physics.LocalRight)
		v.body.AddTorque(physics.TorqueFor(v.body, right.Mul(pitchAlpha)))
	}

	l := v.profile.Lean
	speedFactor := 1.0
	if l.LeanSpeedRef > 0 {
		speedFactor = clamp(speed/l.LeanSpeedRef, 0, 1)
	}
	v.lean.Target = clamp(-c.Steering*l.MaxLean*speedFactor, -l.MaxLean, l.MaxLean)
	v.lean.LastSteering = c.Steering
}

// ControlMapper turns stored driver intent into wheel inputs.
type ControlMapper struct{}

// Set records controls and ratings on v; they are mapped on every Apply
// until replaced.
func (ControlMapper) Set(v *Vehicle, c Controls, t Tuning) {
	v.controls = c.sanitized()
	v.tuning = t.sanitized()
}

// Apply maps the stored controls onto v's wheels at its current speed.
func (ControlMapper) Apply(v *Vehicle) {
	v.drive.apply(v, horizontalSpeed(v.body))
}

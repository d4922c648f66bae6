package vehicle

import "math"

// motorcyclePolicy lets a bike lean into turns while standing it up when
// slow or tipping by accident.
type motorcyclePolicy struct {
	tuning LeanTuning
}

func (p motorcyclePolicy) UprightThreshold() float64 { return p.tuning.UprightThreshold }

// Advance moves the current lean exponentially toward the target. The
// update is a convex blend, so the lean never leaves ±MaxLean.
func (p motorcyclePolicy) Advance(v *Vehicle, dt float64) {
	maxLean := p.tuning.MaxLean
	target := clamp(v.lean.Target, -maxLean, maxLean)
	if !finite(target) {
		target = 0
	}
	blend := 1 - math.Exp(-p.tuning.LeanRate*dt)
	cur := v.lean.Current + (target-v.lean.Current)*clamp(blend, 0, 1)
	if !finite(cur) {
		cur = 0
	}
	v.lean.Current = clamp(cur, -maxLean, maxLean)
}

// selfRightGain is strong when slow and eased off by steering input.
func (p motorcyclePolicy) selfRightGain(speed, steering float64) float64 {
	t := p.tuning
	speedFactor := 1.0
	if t.SelfRightSpeed > 0 {
		speedFactor = clamp(1-speed/t.SelfRightSpeed, t.SelfRightFloor, 1)
	}
	steerFactor := 1 - t.SteerRelief*math.Min(math.Abs(steering), 1)
	return t.SelfRightGain * speedFactor * steerFactor
}

// gyroGain is the speed-dependent pull toward zero roll from the spinning
// wheels. It is zero below GyroMinSpeed and saturates GyroSpeedRef above it.
func (p motorcyclePolicy) gyroGain(speed float64) float64 {
	t := p.tuning
	if speed <= t.GyroMinSpeed || t.GyroSpeedRef <= 0 {
		return 0
	}
	return t.GyroGain * math.Min((speed-t.GyroMinSpeed)/t.GyroSpeedRef, 1)
}

func (p motorcyclePolicy) GroundedCorrection(v *Vehicle, a Attitude, c *Correction) {
	t := p.tuning
	lean := v.lean.Current

	roll := t.LeanGain*(lean-a.Roll) -
		p.selfRightGain(a.Speed, v.lean.LastSteering)*a.Roll -
		t.RollDamping*a.RollRate
	roll -= p.gyroGain(a.Speed) * a.Roll
	c.Alpha = c.Alpha.Add(a.Forward.Mul(roll))

	pitch := -t.PitchDamping * a.PitchRate
	if math.Abs(a.Pitch) > t.PitchThreshold {
		pitch -= t.PitchGain * a.Pitch
	}
	c.Alpha = c.Alpha.Add(a.Right.Mul(pitch))

	if a.Speed > t.TurnAssistMinSpeed && math.Abs(lean) > 1e-3 {
		ref := 1.0
		if t.TurnAssistSpeedRef > 0 {
			ref = math.Min(a.Speed/t.TurnAssistSpeedRef, 1)
		}
		// Leaning left (negative) yaws left (positive about up).
		c.Alpha = c.Alpha.Add(a.Up.Mul(-t.TurnAssistGain * lean * ref))
	}
}

func (p motorcyclePolicy) AirborneCorrection(_ *Vehicle, a Attitude, c *Correction) {
	t := p.tuning
	c.Alpha = c.Alpha.
		Add(a.Angvel.Mul(-t.AirDamping)).
		Add(selfRightAlpha(a, t.AirSelfRight)).
		Add(a.Right.Mul(-t.AirPitchLevel * a.Pitch))
}

func (p motorcyclePolicy) EmergencyCorrection(_ *Vehicle, a Attitude, c *Correction) bool {
	t := p.tuning
	alpha, fired := emergencyAlpha(a, t.CriticalRoll, t.EmergencyBase, t.EmergencyGain, EmergencyRollDamping)
	c.Alpha = c.Alpha.Add(alpha)
	return fired
}

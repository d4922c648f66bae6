package vehicle

import "math"

// EmergencyRollDamping opposes roll rate while emergency recovery is active.
const EmergencyRollDamping = 8.0

// carPolicy keeps cars and trucks planted: downforce, roll/pitch damping,
// anti-roll, anti-pitch and lateral grip on the ground, self-righting in
// the air.
type carPolicy struct {
	tuning StabilityTuning
}

func (p carPolicy) UprightThreshold() float64 { return p.tuning.UprightThreshold }

func (carPolicy) Advance(*Vehicle, float64) {}

func (p carPolicy) GroundedCorrection(v *Vehicle, a Attitude, c *Correction) {
	t := p.tuning
	mass := v.body.Mass()

	down := math.Min(t.DownforceBase+t.DownforceK*a.Speed*a.Speed, t.DownforceCap)
	c.Force = c.Force.Add(a.Up.Mul(-down * mass))

	c.Alpha = c.Alpha.
		Add(a.Forward.Mul(-t.RollDamping * a.RollRate)).
		Add(a.Right.Mul(-t.PitchDamping * a.PitchRate)).
		Add(a.Up.Mul(-t.YawDamping * a.YawRate))

	if math.Abs(a.Roll) > t.AntiRollThreshold {
		c.Alpha = c.Alpha.Add(a.Forward.Mul(-t.AntiRollGain * a.Roll))
	}
	if math.Abs(a.Pitch) > t.AntiPitchThreshold {
		c.Alpha = c.Alpha.Add(a.Right.Mul(-t.AntiPitchGain * a.Pitch))
	}

	side := a.Local.X()
	if math.Abs(side) > t.LateralThreshold && a.Speed > t.LateralMinSpeed {
		c.Impulse = c.Impulse.Add(a.Right.Mul(-side * mass * t.LateralGain))
	}
}

func (p carPolicy) AirborneCorrection(_ *Vehicle, a Attitude, c *Correction) {
	c.Alpha = c.Alpha.
		Add(a.Angvel.Mul(-p.tuning.AirDamping)).
		Add(selfRightAlpha(a, p.tuning.AirSelfRight))
}

func (p carPolicy) EmergencyCorrection(_ *Vehicle, a Attitude, c *Correction) bool {
	t := p.tuning
	alpha, fired := emergencyAlpha(a, t.CriticalRoll, t.EmergencyBase, t.EmergencyGain, EmergencyRollDamping)
	c.Alpha = c.Alpha.Add(alpha)
	return fired
}

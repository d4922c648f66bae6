package vehicle

import (
	"math"

	"github.com/babushkai/gta-sub001/internal/physics"
)

// CanJump reports whether v is settled on at least one compressed wheel
// and not already moving vertically.
func CanJump(v *Vehicle) bool {
	j := v.profile.Jump
	if math.Abs(v.body.Linvel().Y()) >= j.MaxVerticalSpeed {
		return false
	}
	limit := v.profile.Suspension.RestLength * j.CompressedRatio
	for i := range v.wheels.NumWheels() {
		if v.wheels.WheelInContact(i) && v.wheels.WheelSuspensionLength(i) < limit {
			return true
		}
	}
	return false
}

// Jump launches v upward with a slight nose-up kick. It returns false when
// v cannot jump.
func Jump(v *Vehicle) bool {
	if !CanJump(v) {
		return false
	}
	j := v.profile.Jump
	b := v.body
	b.ApplyImpulse(physics.WorldUp.Mul(b.Mass() * j.LaunchSpeed))
	if j.PitchKick != 0 {
		right := b.Rotation().Rotate(physics.LocalRight)
		b.ApplyTorqueImpulse(physics.TorqueFor(b, right.Mul(j.PitchKick)))
	}
	return true
}

package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
)

// Transform is the chassis pose and motion read back for rendering or sync.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Linvel   mgl64.Vec3
	Angvel   mgl64.Vec3
	Speed    float64
	Roll     float64
	Pitch    float64
}

// WheelTransform is one wheel's visual pose.
type WheelTransform struct {
	Position         mgl64.Vec3
	Rotation         mgl64.Quat
	Steering         float64
	SuspensionLength float64
	Spin             float64
	InContact        bool
}

func transformOf(v *Vehicle) Transform {
	b := v.body
	a := Measure(b, nil, 0)
	return Transform{
		Position: b.Translation(),
		Rotation: b.Rotation(),
		Linvel:   a.Linvel,
		Angvel:   a.Angvel,
		Speed:    a.Speed,
		Roll:     a.Roll,
		Pitch:    a.Pitch,
	}
}

// wheelTransformsOf places each wheel center at its hardpoint pushed out
// along the suspension by the current length, then steers and spins it.
func wheelTransformsOf(v *Vehicle) []WheelTransform {
	b := v.body
	pos, rot := b.Translation(), b.Rotation()
	n := v.wheels.NumWheels()
	out := make([]WheelTransform, n)
	for i := range n {
		d := v.wheels.Wheel(i)
		length := v.wheels.WheelSuspensionLength(i)
		steer := v.wheels.WheelSteering(i)
		spin := v.wheels.WheelRotation(i)

		local := d.Connection.Add(d.Direction.Mul(length))
		axle := d.Axle
		if axle.Len() < 1e-9 {
			axle = physics.LocalRight.Mul(-1)
		}
		q := rot.Mul(mgl64.QuatRotate(steer, physics.LocalUp)).Mul(mgl64.QuatRotate(spin, axle.Normalize()))

		out[i] = WheelTransform{
			Position:         pos.Add(rot.Rotate(local)),
			Rotation:         q.Normalize(),
			Steering:         steer,
			SuspensionLength: length,
			Spin:             spin,
			InContact:        v.wheels.WheelInContact(i),
		}
	}
	return out
}

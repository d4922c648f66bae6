package physics

import "github.com/go-gl/mathgl/mgl64"

// BoxInertia returns the principal inertia of a solid box.
func BoxInertia(mass float64, halfExtents mgl64.Vec3) mgl64.Vec3 {
	x2 := halfExtents.X() * halfExtents.X()
	y2 := halfExtents.Y() * halfExtents.Y()
	z2 := halfExtents.Z() * halfExtents.Z()
	return mgl64.Vec3{
		mass / 3 * (y2 + z2),
		mass / 3 * (x2 + z2),
		mass / 3 * (x2 + y2),
	}
}

// WorldInertia rotates a principal inertia into world space: R·I·Rᵀ.
func WorldInertia(rot mgl64.Quat, principal mgl64.Vec3) mgl64.Mat3 {
	r := rot.Mat4().Mat3()
	return r.Mul3(mgl64.Diag3(principal)).Mul3(r.Transpose())
}

// WorldInverseInertia is the inverse of WorldInertia. Zero components in
// the principal tensor are treated as locked axes.
func WorldInverseInertia(rot mgl64.Quat, principal mgl64.Vec3) mgl64.Mat3 {
	var inv mgl64.Vec3
	for i := 0; i < 3; i++ {
		if principal[i] > 0 {
			inv[i] = 1 / principal[i]
		}
	}
	r := rot.Mat4().Mat3()
	return r.Mul3(mgl64.Diag3(inv)).Mul3(r.Transpose())
}

// TorqueFor converts a desired world-space angular acceleration into the
// torque that produces it on b.
func TorqueFor(b Body, alpha mgl64.Vec3) mgl64.Vec3 {
	return WorldInertia(b.Rotation(), b.PrincipalInertia()).Mul3x1(alpha)
}

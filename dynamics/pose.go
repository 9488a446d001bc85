// Package dynamics holds the body-side state the solver reads and the shared
// per-step buffers it writes: rigid-body views, the velocity-delta
// accumulator, and the integration parameters handed down by the stepper.
package dynamics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Pose is a rigid transform: rotation followed by translation. Collision
// shapes hang off body poses through small delta poses, so composition and
// point transforms are all the solver needs.
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

func IdentityPose() Pose {
	return Pose{Rotation: mgl32.QuatIdent()}
}

// Mul composes two poses: (a.Mul(b)).TransformPoint(p) equals
// a.TransformPoint(b.TransformPoint(p)).
func (a Pose) Mul(b Pose) Pose {
	return Pose{
		Position: a.Position.Add(a.Rotation.Rotate(b.Position)),
		Rotation: a.Rotation.Mul(b.Rotation),
	}
}

func (a Pose) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return a.Rotation.Rotate(p).Add(a.Position)
}

// RotateVec3 applies only the rotational part; directions transform this way.
func (a Pose) RotateVec3(v mgl32.Vec3) mgl32.Vec3 {
	return a.Rotation.Rotate(v)
}

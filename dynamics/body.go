package dynamics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// RigidBody is the per-body state the solver consumes. Mass is carried
// inverted (0 means immovable), and the angular term is the world-space
// square root of the inverse inertia tensor: applying it twice yields the
// full inverse inertia. Storing the square root lets the solver fold the
// inertia into its angular Jacobians once and then treat angular and linear
// terms identically, and defines the space the velocity-delta buffer's
// angular component lives in.
type RigidBody struct {
	InvMass             float32
	WorldInvInertiaSqrt mgl32.Mat3

	LinVel mgl32.Vec3
	AngVel mgl32.Vec3

	Pose     Pose
	WorldCOM mgl32.Vec3

	// ActiveSetOffset is this body's slot in the step's VelocityBuffer.
	// Assigned by BodySet on insert.
	ActiveSetOffset int
}

// IsStatic reports whether the body can never move: zero inverse mass and a
// zero inverse-inertia factor. Pairs of static bodies must not reach the
// solver.
func (rb *RigidBody) IsStatic() bool {
	return rb.InvMass == 0 && rb.WorldInvInertiaSqrt == (mgl32.Mat3{})
}

// ApplyImpulse changes the linear velocity by impulse * invMass. Immovable
// bodies ignore it naturally.
func (rb *RigidBody) ApplyImpulse(impulse mgl32.Vec3) {
	rb.LinVel = rb.LinVel.Add(impulse.Mul(rb.InvMass))
}

// ApplyImpulseAt applies an impulse acting at a world-space point, changing
// both linear and angular velocity.
func (rb *RigidBody) ApplyImpulseAt(impulse, point mgl32.Vec3) {
	rb.ApplyImpulse(impulse)
	torque := point.Sub(rb.WorldCOM).Cross(impulse)
	s := rb.WorldInvInertiaSqrt
	rb.AngVel = rb.AngVel.Add(s.Mul3x1(s.Mul3x1(torque)))
}

// VelocityAt returns the velocity of the material point of the body located
// at a world-space position.
func (rb *RigidBody) VelocityAt(point mgl32.Vec3) mgl32.Vec3 {
	return rb.LinVel.Add(rb.AngVel.Cross(point.Sub(rb.WorldCOM)))
}

package dynamics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DeltaVel is a velocity change accumulated while solving. Linear is a plain
// world-space velocity. Angular is NOT: it lives in the space obtained by
// multiplying world angular velocity by the inverse square-root inertia, so
// converting it back requires one more multiply by WorldInvInertiaSqrt. The
// solver works entirely in that space, which makes its effective-mass terms
// plain dot products.
type DeltaVel struct {
	Linear  mgl32.Vec3
	Angular mgl32.Vec3
}

// Zero resets the delta in place.
func (dv *DeltaVel) Zero() {
	dv.Linear = mgl32.Vec3{}
	dv.Angular = mgl32.Vec3{}
}

// VelocityBuffer holds one DeltaVel per solver-active body, indexed by
// RigidBody.ActiveSetOffset. It is scratch state for a single step.
type VelocityBuffer []DeltaVel

// NewVelocityBuffer returns a zeroed buffer with capacity for n bodies.
func NewVelocityBuffer(n int) VelocityBuffer {
	return make(VelocityBuffer, n)
}

// Reset grows the buffer to hold n deltas and zeroes every entry so it can
// be reused across steps without reallocating.
func (buf *VelocityBuffer) Reset(n int) {
	if cap(*buf) < n {
		*buf = make(VelocityBuffer, n)
		return
	}
	*buf = (*buf)[:n]
	for i := range *buf {
		(*buf)[i].Zero()
	}
}

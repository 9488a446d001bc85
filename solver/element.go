// Package solver implements the velocity-level contact constraint solver: a
// projected Gauss-Seidel impulse iteration over batches of independent body
// pairs, warm-started from the impulses of the previous step.
//
// The step flow is: build constraints from contact manifolds (Rebuild or
// RefreshInPlace), prime the velocity delta buffer with WarmStartAll, run
// SolveIteration a fixed number of times, then persist the converged
// impulses back into the manifolds with WritebackAll.
package solver

import (
	"github.com/gekko3d/impulse/wide"
)

// MaxPoints is how many contact points one constraint instance covers.
// Manifolds with more active points are split into consecutive instances.
const MaxPoints = 4

// ElementPart holds the precomputed coefficients for one contact point along
// one constrained direction, batched across lanes.
type ElementPart struct {
	// GCross1 and GCross2 are the angular Jacobian terms: contact lever arm
	// crossed with the direction, pre-multiplied by each body's world
	// inverse-inertia square root.
	GCross1 wide.Vec3
	GCross2 wide.Vec3

	// Rhs is the velocity bias the solve drives the relative velocity
	// against: the initial relative velocity with restitution folded in,
	// plus the separation allowance for speculative contacts.
	Rhs wide.Float

	// Impulse is the accumulated impulse along this direction. Seeded at
	// generation from the previous step's value, damped by the warm-start
	// coefficient.
	Impulse wide.Float

	// R is the inverse effective mass seen along this direction:
	// 1 / (im1 + im2 + gcross1.gcross1 + gcross2.gcross2).
	R wide.Float
}

// Element couples one contact point's non-penetration response with its two
// friction directions.
type Element struct {
	Normal   ElementPart
	Tangents [2]ElementPart
}

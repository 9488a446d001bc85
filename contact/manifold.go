// Package contact describes the overlap between pairs of colliders: the
// contact points found by collision detection, the material coefficients
// governing their response, and the impulses the solver accumulated on them.
package contact

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/impulse/dynamics"
)

// WarmstartMultiplierFresh is the warm-start damping applied to a manifold
// whose points were all created this step. It doubles every step the
// manifold persists, up to 1.
const WarmstartMultiplierFresh = 1.0 / 8.0

// BodyPair names the two bodies a manifold keeps apart.
type BodyPair struct {
	Body1 dynamics.BodyHandle
	Body2 dynamics.BodyHandle
}

// Point is one contact point of a manifold. Positions are stored in each
// collider's local space so the pair can move without regenerating points.
// Dist is the signed separation along the normal: negative once the shapes
// overlap, positive while a gap remains.
type Point struct {
	LocalP1 mgl32.Vec3
	LocalP2 mgl32.Vec3
	Dist    float32

	// Impulse and TangentImpulse carry the solver results of the previous
	// step. They seed the next warm start and expose realized contact
	// forces to callers.
	Impulse        float32
	TangentImpulse [2]float32

	// IsNew marks points collision detection could not match to a point
	// from the previous step. Fresh points carry no impulse history.
	IsNew bool
}

// Manifold is the full contact record for one pair of colliders.
type Manifold struct {
	Pair   BodyPair
	Points []Point

	numActivePoints int

	// LocalN1 is the contact normal in collider 1's local space, pointing
	// from body 1 toward body 2.
	LocalN1 mgl32.Vec3

	// Delta1 and Delta2 are each collider's pose relative to its body.
	Delta1 dynamics.Pose
	Delta2 dynamics.Pose

	Friction    float32
	Restitution float32

	WarmstartMultiplier float32

	// ConstraintIndex remembers which solver slot this manifold's first
	// constraint occupied, so a topology-stable manifold can be refreshed
	// in place. -1 until the solver assigns one.
	ConstraintIndex int
}

// NewManifold creates an empty manifold for a body pair, with the pairwise
// coefficients combined from the two collider materials.
func NewManifold(pair BodyPair, a, b Material) *Manifold {
	return &Manifold{
		Pair:                pair,
		Friction:            CombineFriction(a, b),
		Restitution:         CombineRestitution(a, b),
		WarmstartMultiplier: WarmstartMultiplierFresh,
		ConstraintIndex:     -1,
		Delta1:              dynamics.IdentityPose(),
		Delta2:              dynamics.IdentityPose(),
	}
}

// SortForSolve partitions the points so the ones close enough to solve come
// first and records how many there are. Points separated by more than the
// prediction distance keep their storage but are skipped by the solver.
func (m *Manifold) SortForSolve(predictionDistance float32) {
	switch len(m.Points) {
	case 0:
		m.numActivePoints = 0
	case 1:
		if m.Points[0].Dist < predictionDistance {
			m.numActivePoints = 1
		} else {
			m.numActivePoints = 0
		}
	default:
		firstInactive := len(m.Points)
		m.numActivePoints = 0
		for m.numActivePoints != firstInactive {
			if m.Points[m.numActivePoints].Dist >= predictionDistance {
				m.Points[m.numActivePoints], m.Points[firstInactive-1] =
					m.Points[firstInactive-1], m.Points[m.numActivePoints]
				firstInactive--
			} else {
				m.numActivePoints++
			}
		}
	}
}

// ActivePoints returns the points selected by the last SortForSolve. The
// slice aliases the manifold's storage, so impulse writes land in place.
func (m *Manifold) ActivePoints() []Point {
	return m.Points[:m.numActivePoints]
}

func (m *Manifold) NumActivePoints() int {
	return m.numActivePoints
}

// UpdateWarmstartMultiplier ramps the warm-start damping after collision
// detection refreshed the points. A manifold that kept at least one point
// from the previous step doubles its multiplier towards 1; a manifold whose
// points are all new drops back to the fresh value.
func (m *Manifold) UpdateWarmstartMultiplier() {
	for i := range m.Points {
		if !m.Points[i].IsNew {
			m.WarmstartMultiplier = min(m.WarmstartMultiplier*2, 1)
			return
		}
	}
	m.WarmstartMultiplier = WarmstartMultiplierFresh
}

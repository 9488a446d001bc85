package solver

import (
	"github.com/gekko3d/impulse"
	"github.com/gekko3d/impulse/contact"
	"github.com/gekko3d/impulse/dynamics"
	"github.com/gekko3d/impulse/wide"
)

// AnyConstraint is one solvable unit, either batched or scalar.
type AnyConstraint interface {
	WarmStart(buf dynamics.VelocityBuffer)
	Solve(buf dynamics.VelocityBuffer)
	WritebackImpulses(manifolds []*contact.Manifold)
}

// ConstraintSet builds and drives the velocity constraints of one island's
// contact manifolds. Manifolds are grouped into lane batches where possible;
// leftovers run as scalar constraints. One set must only be solved by one
// goroutine at a time; concurrency across islands is the caller's business.
type ConstraintSet struct {
	constraints []AnyConstraint
	log         impulse.Logger
}

// NewConstraintSet returns an empty set. A nil logger disables logging.
func NewConstraintSet(log impulse.Logger) *ConstraintSet {
	if log == nil {
		log = impulse.NewNopLogger()
	}
	return &ConstraintSet{log: log}
}

func (set *ConstraintSet) Len() int {
	return len(set.constraints)
}

// laneGroup collects up to LaneWidth manifolds with equal active point
// counts whose dynamic bodies are disjoint, so the lanes of one batch never
// fight over a velocity buffer slot.
type laneGroup struct {
	ids      [wide.LaneWidth]int
	size     int
	occupied map[dynamics.BodyHandle]struct{}
}

func (g *laneGroup) tryAdd(id int, m *contact.Manifold, bodies *dynamics.BodySet) bool {
	if g.size == wide.LaneWidth {
		return false
	}

	b1 := mustGet(bodies, m.Pair.Body1)
	b2 := mustGet(bodies, m.Pair.Body2)
	if !b1.IsStatic() {
		if _, taken := g.occupied[m.Pair.Body1]; taken {
			return false
		}
	}
	if !b2.IsStatic() {
		if _, taken := g.occupied[m.Pair.Body2]; taken {
			return false
		}
	}

	g.ids[g.size] = id
	g.size++
	if !b1.IsStatic() {
		g.occupied[m.Pair.Body1] = struct{}{}
	}
	if !b2.IsStatic() {
		g.occupied[m.Pair.Body2] = struct{}{}
	}
	return true
}

// forEachGroup buckets the manifolds by active point count, greedily packs
// each bucket into lane groups, and reports full groups to wideFn and every
// remaining manifold to scalarFn. Manifolds with no active points, and pairs
// where neither body can move, produce nothing and get their constraint
// index cleared.
func (set *ConstraintSet) forEachGroup(
	manifolds []*contact.Manifold,
	bodies *dynamics.BodySet,
	wideFn func(ids [wide.LaneWidth]int),
	scalarFn func(id int),
) {
	buckets := make(map[int][]int)
	var order []int

	for id, m := range manifolds {
		if m.NumActivePoints() == 0 {
			m.ConstraintIndex = -1
			continue
		}
		if mustGet(bodies, m.Pair.Body1).IsStatic() && mustGet(bodies, m.Pair.Body2).IsStatic() {
			set.log.Debugf("manifold %d joins two static bodies, skipping", id)
			m.ConstraintIndex = -1
			continue
		}

		n := m.NumActivePoints()
		if _, seen := buckets[n]; !seen {
			order = append(order, n)
		}
		buckets[n] = append(buckets[n], id)
	}

	for _, n := range order {
		var groups []*laneGroup
		for _, id := range buckets[n] {
			m := manifolds[id]
			placed := false
			for _, g := range groups {
				if g.tryAdd(id, m, bodies) {
					placed = true
					break
				}
			}
			if !placed {
				g := &laneGroup{occupied: make(map[dynamics.BodyHandle]struct{})}
				g.tryAdd(id, m, bodies)
				groups = append(groups, g)
			}
		}

		for _, g := range groups {
			if g.size == wide.LaneWidth {
				wideFn(g.ids)
			} else {
				for i := 0; i < g.size; i++ {
					scalarFn(g.ids[i])
				}
			}
		}
	}
}

// Rebuild regenerates the whole set from scratch and records each
// manifold's constraint slot in its ConstraintIndex, so a later
// RefreshInPlace can find it. Call it whenever contact topology changed.
func (set *ConstraintSet) Rebuild(
	params dynamics.IntegrationParams,
	manifolds []*contact.Manifold,
	bodies *dynamics.BodySet,
) {
	set.constraints = set.constraints[:0]

	set.forEachGroup(manifolds, bodies,
		func(ids [wide.LaneWidth]int) {
			var group [wide.LaneWidth]*contact.Manifold
			base := len(set.constraints)
			for ii, id := range ids {
				group[ii] = manifolds[id]
				group[ii].ConstraintIndex = base
			}
			GenerateBatch(params, ids, group, bodies, func(chunk int, c BatchConstraint) {
				set.constraints = append(set.constraints, &c)
			})
		},
		func(id int) {
			m := manifolds[id]
			m.ConstraintIndex = len(set.constraints)
			GenerateScalar(params, id, m, bodies, func(chunk int, c ScalarConstraint) {
				set.constraints = append(set.constraints, &c)
			})
		})

	set.log.Debugf("rebuilt %d constraints from %d manifolds", len(set.constraints), len(manifolds))
}

// RefreshInPlace regenerates every constraint into the slot assigned by the
// previous Rebuild, reusing the stored indices instead of growing the set.
// The manifold list, the active point counts, and the body pairs must be
// unchanged since that Rebuild; this is the fast path for steps where
// contact topology held stable.
func (set *ConstraintSet) RefreshInPlace(
	params dynamics.IntegrationParams,
	manifolds []*contact.Manifold,
	bodies *dynamics.BodySet,
) {
	set.forEachGroup(manifolds, bodies,
		func(ids [wide.LaneWidth]int) {
			var group [wide.LaneWidth]*contact.Manifold
			for ii, id := range ids {
				group[ii] = manifolds[id]
			}
			base := group[0].ConstraintIndex
			GenerateBatch(params, ids, group, bodies, func(chunk int, c BatchConstraint) {
				set.constraints[base+chunk] = &c
			})
		},
		func(id int) {
			m := manifolds[id]
			GenerateScalar(params, id, m, bodies, func(chunk int, c ScalarConstraint) {
				set.constraints[m.ConstraintIndex+chunk] = &c
			})
		})
}

// WarmStartAll primes the velocity buffer with every constraint's stored
// impulses.
func (set *ConstraintSet) WarmStartAll(buf dynamics.VelocityBuffer) {
	for _, c := range set.constraints {
		c.WarmStart(buf)
	}
}

// SolveIteration runs one relaxation sweep over every constraint. Later
// constraints in the sweep observe the velocity updates of earlier ones.
func (set *ConstraintSet) SolveIteration(buf dynamics.VelocityBuffer) {
	for _, c := range set.constraints {
		c.Solve(buf)
	}
}

// Solve warm-starts the buffer and then runs the given number of sweeps.
func (set *ConstraintSet) Solve(buf dynamics.VelocityBuffer, iterations int) {
	set.WarmStartAll(buf)
	for i := 0; i < iterations; i++ {
		set.SolveIteration(buf)
	}
}

// WritebackAll persists the converged impulses of every constraint into the
// manifolds they were generated from. The slice must be the same one the
// constraints were built against.
func (set *ConstraintSet) WritebackAll(manifolds []*contact.Manifold) {
	for _, c := range set.constraints {
		c.WritebackImpulses(manifolds)
	}
}

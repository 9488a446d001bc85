package solver

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/impulse/contact"
	"github.com/gekko3d/impulse/dynamics"
	"github.com/gekko3d/impulse/wide"
)

func staticBody(pos mgl32.Vec3) dynamics.RigidBody {
	return dynamics.RigidBody{
		Pose:     dynamics.Pose{Position: pos, Rotation: mgl32.QuatIdent()},
		WorldCOM: pos,
	}
}

// ballBody is a unit-mass ball of radius 0.5 with identity inertia factor.
func ballBody(pos, vel mgl32.Vec3) dynamics.RigidBody {
	return dynamics.RigidBody{
		InvMass:             1,
		WorldInvInertiaSqrt: mgl32.Ident3(),
		LinVel:              vel,
		Pose:                dynamics.Pose{Position: pos, Rotation: mgl32.QuatIdent()},
		WorldCOM:            pos,
	}
}

// pointMass cannot rotate at all, which makes effective masses come out to
// round numbers.
func pointMass(pos, vel mgl32.Vec3) dynamics.RigidBody {
	return dynamics.RigidBody{
		InvMass:  1,
		LinVel:   vel,
		Pose:     dynamics.Pose{Position: pos, Rotation: mgl32.QuatIdent()},
		WorldCOM: pos,
	}
}

// ballGroundContact builds a one-point manifold between a ball of radius 0.5
// and static ground at y=0. The normal in the ball's frame points down at
// the ground.
func ballGroundContact(ball, ground dynamics.BodyHandle, ballPos mgl32.Vec3, dist float32, mat contact.Material) *contact.Manifold {
	m := contact.NewManifold(contact.BodyPair{Body1: ball, Body2: ground}, mat, mat)
	m.WarmstartMultiplier = 1
	m.LocalN1 = mgl32.Vec3{0, -1, 0}
	m.Points = []contact.Point{{
		LocalP1: mgl32.Vec3{0, -0.5, 0},
		LocalP2: mgl32.Vec3{ballPos.X(), 0, ballPos.Z()},
		Dist:    dist,
	}}
	return m
}

func solveScene(t *testing.T, bodies *dynamics.BodySet, manifolds []*contact.Manifold, params dynamics.IntegrationParams) (*ConstraintSet, dynamics.VelocityBuffer) {
	t.Helper()
	for _, m := range manifolds {
		m.SortForSolve(params.PredictionDistance)
	}
	set := NewConstraintSet(nil)
	set.Rebuild(params, manifolds, bodies)

	buf := dynamics.NewVelocityBuffer(bodies.Len())
	set.Solve(buf, params.VelocityIterations)
	set.WritebackAll(manifolds)
	bodies.ApplyDeltas(buf)
	return set, buf
}

func TestRestitutionBounce(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(pointMass(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{0, -5, 0}))

	mat := contact.Material{Friction: 0.5, Restitution: 0.5}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.5, 0}, 0, mat)

	params := dynamics.NewIntegrationParams()
	solveScene(t, bodies, []*contact.Manifold{m}, params)

	// Approaching at 5 with restitution 0.5 over the 1.0 threshold leaves
	// 5 * 0.5 = 2.5 of separating velocity.
	ball, _ := bodies.Get(ballH)
	if math.Abs(float64(ball.LinVel.Y()-2.5)) > 1e-3 {
		t.Errorf("Expected separation velocity 2.5, got %f", ball.LinVel.Y())
	}
	if m.Points[0].Impulse < 0 {
		t.Errorf("Normal impulse went negative: %f", m.Points[0].Impulse)
	}
}

func TestSlowApproachIsInelastic(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(pointMass(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{0, -0.2, 0}))

	// Restitution applies only above the threshold; a 0.2 approach against
	// a threshold of 1.0 is absorbed outright.
	mat := contact.Material{Friction: 0.5, Restitution: 0.9}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.5, 0}, 0, mat)

	params := dynamics.NewIntegrationParams()
	solveScene(t, bodies, []*contact.Manifold{m}, params)

	ball, _ := bodies.Get(ballH)
	if math.Abs(float64(ball.LinVel.Y())) > 1e-4 {
		t.Errorf("Slow approach should be absorbed, got velocity %f", ball.LinVel.Y())
	}
}

func TestSpeculativeContactAllowance(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(pointMass(mgl32.Vec3{0, 0.55, 0}, mgl32.Vec3{0, -5, 0}))

	mat := contact.Material{Friction: 0.5}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.55, 0}, 0.05, mat)

	// Widen the prediction distance so the separated point is solved.
	params := dynamics.NewIntegrationParams()
	params.PredictionDistance = 0.1
	solveScene(t, bodies, []*contact.Manifold{m}, params)

	// With a 0.05 gap and a 60Hz step the solver only removes approach
	// velocity beyond gap/dt = 3, so the ball still closes the gap exactly
	// this step but cannot tunnel.
	ball, _ := bodies.Get(ballH)
	if math.Abs(float64(ball.LinVel.Y()+3)) > 1e-3 {
		t.Errorf("Expected approach velocity -3 after the allowance, got %f", ball.LinVel.Y())
	}
	if m.Points[0].Impulse < 0 {
		t.Errorf("Normal impulse went negative: %f", m.Points[0].Impulse)
	}
}

func TestRestingContactProducesNoJitter(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(ballBody(mgl32.Vec3{0, 0.49, 0}, mgl32.Vec3{}))

	mat := contact.Material{Friction: 0.5, Restitution: 0.5}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.49, 0}, -0.01, mat)

	params := dynamics.NewIntegrationParams()
	params.VelocityIterations = 10
	solveScene(t, bodies, []*contact.Manifold{m}, params)

	// A resting, slightly overlapping contact must not bounce or jitter:
	// relative normal velocity stays at zero.
	ball, _ := bodies.Get(ballH)
	if math.Abs(float64(ball.LinVel.Y())) > 1e-5 {
		t.Errorf("Resting ball picked up velocity %f", ball.LinVel.Y())
	}
	if m.Points[0].Impulse < 0 {
		t.Errorf("Normal impulse went negative: %f", m.Points[0].Impulse)
	}
}

func TestZeroFrictionKeepsTangentImpulsesZero(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(ballBody(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{3, -1, 0}))

	mat := contact.Material{Friction: 0}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.5, 0}, 0, mat)

	params := dynamics.NewIntegrationParams()
	params.VelocityIterations = 10
	solveScene(t, bodies, []*contact.Manifold{m}, params)

	if m.Points[0].TangentImpulse[0] != 0 || m.Points[0].TangentImpulse[1] != 0 {
		t.Errorf("Frictionless contact accumulated tangent impulses %v", m.Points[0].TangentImpulse)
	}

	// Sliding continues untouched while the normal approach is absorbed.
	ball, _ := bodies.Get(ballH)
	if math.Abs(float64(ball.LinVel.X()-3)) > 1e-5 {
		t.Errorf("Frictionless contact changed sliding velocity to %f", ball.LinVel.X())
	}
	if math.Abs(float64(ball.LinVel.Y())) > 1e-4 {
		t.Errorf("Normal velocity should be absorbed, got %f", ball.LinVel.Y())
	}
}

func TestFrictionConeHoldsEveryIteration(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(ballBody(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{3, -2, 0.5}))

	mat := contact.Material{Friction: 0.5}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.5, 0}, 0, mat)

	params := dynamics.NewIntegrationParams()
	m.SortForSolve(params.PredictionDistance)

	manifolds := []*contact.Manifold{m}
	set := NewConstraintSet(nil)
	set.Rebuild(params, manifolds, bodies)

	sc, ok := set.constraints[0].(*ScalarConstraint)
	if !ok {
		t.Fatalf("Expected a scalar constraint for a single manifold")
	}

	buf := dynamics.NewVelocityBuffer(bodies.Len())
	set.WarmStartAll(buf)

	for iter := 0; iter < 8; iter++ {
		// The friction clamp reads the normal impulse left by the previous
		// iteration, so that is the cone each sweep is held to.
		limit := sc.Limit * sc.Elements[0].Normal.Impulse

		set.SolveIteration(buf)

		normal := sc.Elements[0].Normal.Impulse
		if normal < 0 {
			t.Fatalf("Iteration %d: normal impulse went negative: %f", iter, normal)
		}
		for j, tp := range sc.Elements[0].Tangents {
			if abs := float32(math.Abs(float64(tp.Impulse))); abs > limit+1e-5 {
				t.Errorf("Iteration %d: tangent %d impulse %f outside cone limit %f", iter, j, tp.Impulse, limit)
			}
		}
	}

	set.WritebackAll(manifolds)
	bodies.ApplyDeltas(buf)

	// Friction must slow the slide, not reverse it.
	ball, _ := bodies.Get(ballH)
	if ball.LinVel.X() >= 3 {
		t.Errorf("Friction did not slow the slide, vx = %f", ball.LinVel.X())
	}
	if ball.LinVel.X() < 0 {
		t.Errorf("Friction reversed the slide, vx = %f", ball.LinVel.X())
	}
}

func TestWarmStartAppliesStoredImpulses(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(ballBody(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{}))

	mat := contact.Material{Friction: 1}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.5, 0}, 0, mat)
	m.Points[0].Impulse = 2
	m.Points[0].TangentImpulse = [2]float32{0.5, -0.3}

	params := dynamics.NewIntegrationParams()
	m.SortForSolve(params.PredictionDistance)

	set := NewConstraintSet(nil)
	set.Rebuild(params, []*contact.Manifold{m}, bodies)

	buf := dynamics.NewVelocityBuffer(bodies.Len())
	set.WarmStartAll(buf)

	// For this geometry dir1 = (0,1,0) with tangents (1,0,0) and (0,0,-1),
	// and the contact sits 0.5 below the center of mass. Applying the
	// stored impulses by hand gives these deltas for the ball.
	ball, _ := bodies.Get(ballH)
	wantLin := mgl32.Vec3{0.5, 2, 0.3}
	wantAng := mgl32.Vec3{-0.15, 0, 0.25}

	gotLin := buf[ball.ActiveSetOffset].Linear
	gotAng := buf[ball.ActiveSetOffset].Angular
	if !gotLin.ApproxEqualThreshold(wantLin, 1e-5) {
		t.Errorf("Warm-started linear delta %v, want %v", gotLin, wantLin)
	}
	if !gotAng.ApproxEqualThreshold(wantAng, 1e-5) {
		t.Errorf("Warm-started angular delta %v, want %v", gotAng, wantAng)
	}

	// The static ground absorbs nothing.
	ground, _ := bodies.Get(groundH)
	if buf[ground.ActiveSetOffset] != (dynamics.DeltaVel{}) {
		t.Errorf("Static body delta should stay zero, got %+v", buf[ground.ActiveSetOffset])
	}
}

func TestWritebackRoundTrip(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	ballH := bodies.Insert(ballBody(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, -3, 0}))

	mat := contact.Material{Friction: 0.7, Restitution: 0.2}
	m := ballGroundContact(ballH, groundH, mgl32.Vec3{0, 0.5, 0}, 0, mat)

	params := dynamics.NewIntegrationParams()
	m.SortForSolve(params.PredictionDistance)

	manifolds := []*contact.Manifold{m}
	set := NewConstraintSet(nil)
	set.Rebuild(params, manifolds, bodies)

	buf := dynamics.NewVelocityBuffer(bodies.Len())
	set.Solve(buf, params.VelocityIterations)
	set.WritebackAll(manifolds)

	// Written-back impulses are bit-identical to the constraint's state.
	sc := set.constraints[0].(*ScalarConstraint)
	if m.Points[0].Impulse != sc.Elements[0].Normal.Impulse {
		t.Errorf("Normal impulse %f differs from constraint %f", m.Points[0].Impulse, sc.Elements[0].Normal.Impulse)
	}
	for j := range sc.Elements[0].Tangents {
		if m.Points[0].TangentImpulse[j] != sc.Elements[0].Tangents[j].Impulse {
			t.Errorf("Tangent impulse %d: %f differs from constraint %f",
				j, m.Points[0].TangentImpulse[j], sc.Elements[0].Tangents[j].Impulse)
		}
	}
}

func TestManifoldChunking(t *testing.T) {
	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))
	boxH := bodies.Insert(ballBody(mgl32.Vec3{0, 0.49, 0}, mgl32.Vec3{}))

	mat := contact.Material{Friction: 0.5}
	m := contact.NewManifold(contact.BodyPair{Body1: boxH, Body2: groundH}, mat, mat)
	m.WarmstartMultiplier = 1
	m.LocalN1 = mgl32.Vec3{0, -1, 0}

	// Six contact points on the bottom face, more than one instance holds.
	// Each carries a distinct stored impulse so writeback targeting shows.
	corners := []mgl32.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5},
		{-0.5, -0.5, 0.5}, {0, -0.5, -0.5}, {0, -0.5, 0.5},
	}
	for i, c := range corners {
		m.Points = append(m.Points, contact.Point{
			LocalP1: c,
			LocalP2: mgl32.Vec3{c.X(), 0, c.Z()},
			Dist:    -0.01,
			Impulse: float32(i + 1),
		})
	}

	params := dynamics.NewIntegrationParams()
	m.SortForSolve(params.PredictionDistance)

	manifolds := []*contact.Manifold{m}
	set := NewConstraintSet(nil)
	set.Rebuild(params, manifolds, bodies)

	if set.Len() != 2 {
		t.Fatalf("Six points should split into 2 instances, got %d", set.Len())
	}

	first := set.constraints[0].(*ScalarConstraint)
	second := set.constraints[1].(*ScalarConstraint)
	if first.PointOffset != 0 || first.NumPoints != 4 {
		t.Errorf("First chunk covers offset %d count %d, want 0 and 4", first.PointOffset, first.NumPoints)
	}
	if second.PointOffset != 4 || second.NumPoints != 2 {
		t.Errorf("Second chunk covers offset %d count %d, want 4 and 2", second.PointOffset, second.NumPoints)
	}
	if m.ConstraintIndex != 0 {
		t.Errorf("Manifold should remember its first slot, got %d", m.ConstraintIndex)
	}

	// Writing back without solving returns every point's stored impulse,
	// proving the two chunks target disjoint point ranges.
	set.WritebackAll(manifolds)
	for i, pt := range m.ActivePoints() {
		if pt.Impulse != float32(i+1) {
			t.Errorf("Point %d got impulse %f, want %f", i, pt.Impulse, float32(i+1))
		}
	}
}

// coneLimits snapshots mu * normalImpulse for every point of every
// constraint. The friction clamp reads the normal impulse of the previous
// iteration, so these are the bounds the next sweep must respect.
func coneLimits(set *ConstraintSet) [][]float32 {
	limits := make([][]float32, len(set.constraints))
	for ci, ac := range set.constraints {
		switch c := ac.(type) {
		case *BatchConstraint:
			for k := 0; k < int(c.NumPoints); k++ {
				for ii := 0; ii < wide.LaneWidth; ii++ {
					limits[ci] = append(limits[ci], c.Limit[ii]*c.Elements[k].Normal.Impulse[ii])
				}
			}
		case *ScalarConstraint:
			for k := 0; k < int(c.NumPoints); k++ {
				limits[ci] = append(limits[ci], c.Limit*c.Elements[k].Normal.Impulse)
			}
		}
	}
	return limits
}

func TestRandomizedSceneHoldsContactInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	bodies := dynamics.NewBodySet()
	groundH := bodies.Insert(staticBody(mgl32.Vec3{}))

	var ballHs []dynamics.BodyHandle
	var manifolds []*contact.Manifold
	for i := 0; i < 10; i++ {
		pos := mgl32.Vec3{float32(3 * i), 0.5, 0}
		vel := mgl32.Vec3{
			r.Float32()*4 - 2,
			-r.Float32() * 5,
			r.Float32()*4 - 2,
		}
		mtl := contact.Material{Friction: r.Float32(), Restitution: r.Float32()}
		dist := r.Float32()*0.051 - 0.05

		ballH := bodies.Insert(ballBody(pos, vel))
		ballHs = append(ballHs, ballH)
		manifolds = append(manifolds, ballGroundContact(ballH, groundH, pos, dist, mtl))
	}

	params := dynamics.NewIntegrationParams()
	for _, m := range manifolds {
		m.SortForSolve(params.PredictionDistance)
	}

	set := NewConstraintSet(nil)
	set.Rebuild(params, manifolds, bodies)

	// Ten disjoint one-point pairs pack into 2 full batches plus 2 scalars.
	if set.Len() != 4 {
		t.Fatalf("Expected 4 constraints for 10 disjoint pairs, got %d", set.Len())
	}

	buf := dynamics.NewVelocityBuffer(bodies.Len())
	set.WarmStartAll(buf)

	for iter := 0; iter < 10; iter++ {
		limits := coneLimits(set)
		set.SolveIteration(buf)

		for ci, ac := range set.constraints {
			switch c := ac.(type) {
			case *BatchConstraint:
				idx := 0
				for k := 0; k < int(c.NumPoints); k++ {
					for ii := 0; ii < wide.LaneWidth; ii++ {
						if n := c.Elements[k].Normal.Impulse[ii]; n < 0 {
							t.Fatalf("Iteration %d constraint %d: negative normal impulse %f", iter, ci, n)
						}
						for j := range c.Elements[k].Tangents {
							imp := c.Elements[k].Tangents[j].Impulse[ii]
							if abs := float32(math.Abs(float64(imp))); abs > limits[ci][idx]+1e-4 {
								t.Fatalf("Iteration %d constraint %d: tangent impulse %f outside cone %f",
									iter, ci, imp, limits[ci][idx])
							}
						}
						idx++
					}
				}
			case *ScalarConstraint:
				for k := 0; k < int(c.NumPoints); k++ {
					if n := c.Elements[k].Normal.Impulse; n < 0 {
						t.Fatalf("Iteration %d constraint %d: negative normal impulse %f", iter, ci, n)
					}
					for j := range c.Elements[k].Tangents {
						imp := c.Elements[k].Tangents[j].Impulse
						if abs := float32(math.Abs(float64(imp))); abs > limits[ci][k]+1e-4 {
							t.Fatalf("Iteration %d constraint %d: tangent impulse %f outside cone %f",
								iter, ci, imp, limits[ci][k])
						}
					}
				}
			}
		}
	}

	set.WritebackAll(manifolds)
	bodies.ApplyDeltas(buf)

	// Nothing ends the step still approaching faster than the per-point
	// allowance gap/dt, and every stored impulse is usable for warm starting.
	invDt := params.InvDt()
	for i, m := range manifolds {
		if m.Points[0].Impulse < 0 {
			t.Errorf("Manifold %d wrote back negative impulse %f", i, m.Points[0].Impulse)
		}
		allowance := max(m.Points[0].Dist, 0) * invDt
		ball, _ := bodies.Get(ballHs[i])
		if ball.LinVel.Y() < -allowance-1e-3 {
			t.Errorf("Ball %d still approaching at %f, allowance %f", i, ball.LinVel.Y(), allowance)
		}
	}
}

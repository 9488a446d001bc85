package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/impulse/contact"
	"github.com/gekko3d/impulse/dynamics"
	"github.com/gekko3d/impulse/wide"
)

// BatchConstraint solves the contacts of LaneWidth independent body pairs at
// once, one manifold per lane. Every field is lane-batched; the math below
// is plain scalar sequential-impulse iteration repeated across lanes.
type BatchConstraint struct {
	// Dir1 is the direction of the non-penetration force on the first body,
	// pointing from body 2 toward body 1.
	Dir1 wide.Vec3

	Elements  [MaxPoints]Element
	NumPoints uint8

	InvMass1 wide.Float
	InvMass2 wide.Float

	// Limit is the Coulomb friction coefficient.
	Limit wide.Float

	// MjLambda1 and MjLambda2 are each lane's body slots in the velocity
	// delta buffer.
	MjLambda1 [wide.LaneWidth]int
	MjLambda2 [wide.LaneWidth]int

	// ManifoldIDs locates each lane's manifold for impulse writeback.
	ManifoldIDs [wide.LaneWidth]int

	// PointOffset is the index of the first contact point this instance
	// covers within its manifolds' active point lists.
	PointOffset int
}

func mustGet(bodies *dynamics.BodySet, h dynamics.BodyHandle) *dynamics.RigidBody {
	rb, err := bodies.Get(h)
	if err != nil {
		panic(err)
	}
	return rb
}

func gatherDeltas(buf dynamics.VelocityBuffer, slots [wide.LaneWidth]int) (lin, ang wide.Vec3) {
	var linArr, angArr [wide.LaneWidth]mgl32.Vec3
	for ii, slot := range slots {
		linArr[ii] = buf[slot].Linear
		angArr[ii] = buf[slot].Angular
	}
	return wide.GatherVec3(linArr), wide.GatherVec3(angArr)
}

func scatterDeltas(buf dynamics.VelocityBuffer, slots [wide.LaneWidth]int, lin, ang wide.Vec3) {
	for ii, slot := range slots {
		buf[slot].Linear = lin.Extract(ii)
		buf[slot].Angular = ang.Extract(ii)
	}
}

// GenerateBatch builds the constraints for LaneWidth manifolds and hands one
// BatchConstraint per chunk of MaxPoints contact points to emit, together
// with the chunk's index. All manifolds must have the same number of active
// points, and no dynamic body may appear in two lanes.
func GenerateBatch(
	params dynamics.IntegrationParams,
	manifoldIDs [wide.LaneWidth]int,
	manifolds [wide.LaneWidth]*contact.Manifold,
	bodies *dynamics.BodySet,
	emit func(chunk int, c BatchConstraint),
) {
	invDt := wide.Splat(params.InvDt())

	var rb1, rb2 [wide.LaneWidth]*dynamics.RigidBody
	for ii, m := range manifolds {
		rb1[ii] = mustGet(bodies, m.Pair.Body1)
		rb2[ii] = mustGet(bodies, m.Pair.Body2)
	}

	var (
		im1, im2                 wide.Float
		friction, restitution    wide.Float
		warmstart                wide.Float
		inertia1Arr, inertia2Arr [wide.LaneWidth]mgl32.Mat3
		linvel1Arr, linvel2Arr   [wide.LaneWidth]mgl32.Vec3
		angvel1Arr, angvel2Arr   [wide.LaneWidth]mgl32.Vec3
		com1Arr, com2Arr         [wide.LaneWidth]mgl32.Vec3
		localN1Arr               [wide.LaneWidth]mgl32.Vec3
		bodyPos1, bodyPos2       [wide.LaneWidth]mgl32.Vec3
		bodyRot1, bodyRot2       [wide.LaneWidth]mgl32.Quat
		deltaPos1, deltaPos2     [wide.LaneWidth]mgl32.Vec3
		deltaRot1, deltaRot2     [wide.LaneWidth]mgl32.Quat
		mjLambda1, mjLambda2     [wide.LaneWidth]int
	)
	for ii := 0; ii < wide.LaneWidth; ii++ {
		m, b1, b2 := manifolds[ii], rb1[ii], rb2[ii]

		im1[ii], im2[ii] = b1.InvMass, b2.InvMass
		inertia1Arr[ii], inertia2Arr[ii] = b1.WorldInvInertiaSqrt, b2.WorldInvInertiaSqrt
		linvel1Arr[ii], linvel2Arr[ii] = b1.LinVel, b2.LinVel
		angvel1Arr[ii], angvel2Arr[ii] = b1.AngVel, b2.AngVel
		com1Arr[ii], com2Arr[ii] = b1.WorldCOM, b2.WorldCOM
		bodyPos1[ii], bodyPos2[ii] = b1.Pose.Position, b2.Pose.Position
		bodyRot1[ii], bodyRot2[ii] = b1.Pose.Rotation, b2.Pose.Rotation
		deltaPos1[ii], deltaPos2[ii] = m.Delta1.Position, m.Delta2.Position
		deltaRot1[ii], deltaRot2[ii] = m.Delta1.Rotation, m.Delta2.Rotation
		mjLambda1[ii], mjLambda2[ii] = b1.ActiveSetOffset, b2.ActiveSetOffset

		localN1Arr[ii] = m.LocalN1
		friction[ii] = m.Friction
		restitution[ii] = m.Restitution
		warmstart[ii] = m.WarmstartMultiplier
	}

	inertia1 := wide.GatherSymMat3(inertia1Arr)
	inertia2 := wide.GatherSymMat3(inertia2Arr)
	linvel1, linvel2 := wide.GatherVec3(linvel1Arr), wide.GatherVec3(linvel2Arr)
	angvel1, angvel2 := wide.GatherVec3(angvel1Arr), wide.GatherVec3(angvel2Arr)
	worldCom1, worldCom2 := wide.GatherVec3(com1Arr), wide.GatherVec3(com2Arr)

	// Collider poses: body pose composed with the collider's local offset.
	collPose1 := wide.GatherIso(bodyPos1, bodyRot1).Mul(wide.GatherIso(deltaPos1, deltaRot1))
	collPose2 := wide.GatherIso(bodyPos2, bodyRot2).Mul(wide.GatherIso(deltaPos2, deltaRot2))

	forceDir1 := collPose1.RotateVec3(wide.GatherVec3(localN1Arr).Neg())

	warmstartCoeff := warmstart.Mul(wide.Splat(params.WarmstartCoeff))
	threshold := wide.Splat(params.RestitutionVelocityThreshold)

	for l := 0; l < manifolds[0].NumActivePoints(); l += MaxPoints {
		var chunk [wide.LaneWidth][]contact.Point
		for ii := range manifolds {
			chunk[ii] = manifolds[ii].ActivePoints()[l:]
		}
		numPoints := min(len(chunk[0]), MaxPoints)

		c := BatchConstraint{
			Dir1:        forceDir1,
			NumPoints:   uint8(numPoints),
			InvMass1:    im1,
			InvMass2:    im2,
			Limit:       friction,
			MjLambda1:   mjLambda1,
			MjLambda2:   mjLambda2,
			ManifoldIDs: manifoldIDs,
			PointOffset: l,
		}

		tangents := forceDir1.OrthonormalBasis()

		for k := 0; k < numPoints; k++ {
			var localP1, localP2 [wide.LaneWidth]mgl32.Vec3
			var dist, prevImpulse wide.Float
			var prevTangent [2]wide.Float
			for ii := range chunk {
				pt := chunk[ii][k]
				localP1[ii], localP2[ii] = pt.LocalP1, pt.LocalP2
				dist[ii] = pt.Dist
				prevImpulse[ii] = pt.Impulse
				prevTangent[0][ii] = pt.TangentImpulse[0]
				prevTangent[1][ii] = pt.TangentImpulse[1]
			}

			p1 := collPose1.TransformPoint(wide.GatherVec3(localP1))
			p2 := collPose2.TransformPoint(wide.GatherVec3(localP2))

			dp1 := p1.Sub(worldCom1)
			dp2 := p2.Sub(worldCom2)

			vel1 := linvel1.Add(angvel1.Cross(dp1))
			vel2 := linvel2.Add(angvel2.Cross(dp2))

			// Normal part.
			{
				gcross1 := inertia1.TransformVec3(dp1.Cross(forceDir1))
				gcross2 := inertia2.TransformVec3(dp2.Cross(forceDir1.Neg()))

				r := wide.Splat(1).Div(
					im1.Add(im2).Add(gcross1.Dot(gcross1)).Add(gcross2.Dot(gcross2)))

				// Approach faster than the threshold bounces; the extra
				// separation allowance only accrues while a gap remains.
				rhs := vel1.Sub(vel2).Dot(forceDir1)
				bouncy := rhs.LessEq(threshold.Neg())
				rhs = wide.Select(bouncy, rhs.Add(rhs.Mul(restitution)), rhs)
				rhs = rhs.Add(dist.Max(wide.Splat(0)).Mul(invDt))

				c.Elements[k].Normal = ElementPart{
					GCross1: gcross1,
					GCross2: gcross2,
					Rhs:     rhs,
					Impulse: prevImpulse.Mul(warmstartCoeff),
					R:       r,
				}
			}

			// Friction parts.
			for j := range tangents {
				gcross1 := inertia1.TransformVec3(dp1.Cross(tangents[j]))
				gcross2 := inertia2.TransformVec3(dp2.Cross(tangents[j].Neg()))

				r := wide.Splat(1).Div(
					im1.Add(im2).Add(gcross1.Dot(gcross1)).Add(gcross2.Dot(gcross2)))
				rhs := vel1.Sub(vel2).Dot(tangents[j])

				c.Elements[k].Tangents[j] = ElementPart{
					GCross1: gcross1,
					GCross2: gcross2,
					Rhs:     rhs,
					Impulse: prevTangent[j].Mul(warmstartCoeff),
					R:       r,
				}
			}
		}

		emit(l/MaxPoints, c)
	}
}

// WarmStart re-applies the impulses the constraint was generated with to
// both bodies' entries in the velocity delta buffer, so the first solve
// iteration starts near the previous step's equilibrium.
func (c *BatchConstraint) WarmStart(buf dynamics.VelocityBuffer) {
	lin1, ang1 := gatherDeltas(buf, c.MjLambda1)
	lin2, ang2 := gatherDeltas(buf, c.MjLambda2)

	tangents := c.Dir1.OrthonormalBasis()

	for i := 0; i < int(c.NumPoints); i++ {
		normal := &c.Elements[i].Normal
		lin1 = lin1.Add(c.Dir1.Scale(c.InvMass1.Mul(normal.Impulse)))
		ang1 = ang1.Add(normal.GCross1.Scale(normal.Impulse))
		lin2 = lin2.Add(c.Dir1.Scale(c.InvMass2.Neg().Mul(normal.Impulse)))
		ang2 = ang2.Add(normal.GCross2.Scale(normal.Impulse))

		for j := range c.Elements[i].Tangents {
			elt := &c.Elements[i].Tangents[j]
			lin1 = lin1.Add(tangents[j].Scale(c.InvMass1.Mul(elt.Impulse)))
			ang1 = ang1.Add(elt.GCross1.Scale(elt.Impulse))
			lin2 = lin2.Add(tangents[j].Scale(c.InvMass2.Neg().Mul(elt.Impulse)))
			ang2 = ang2.Add(elt.GCross2.Scale(elt.Impulse))
		}
	}

	scatterDeltas(buf, c.MjLambda1, lin1, ang1)
	scatterDeltas(buf, c.MjLambda2, lin2, ang2)
}

// Solve runs one relaxation sweep: friction directions for every point
// first, then the normal direction for every point. Each update is applied
// to the buffered velocities immediately so later points in the same sweep
// see it.
func (c *BatchConstraint) Solve(buf dynamics.VelocityBuffer) {
	lin1, ang1 := gatherDeltas(buf, c.MjLambda1)
	lin2, ang2 := gatherDeltas(buf, c.MjLambda2)

	tangents := c.Dir1.OrthonormalBasis()

	// Friction first. The box limit reads each point's normal impulse from
	// the previous iteration, keeping the two directions decoupled.
	for i := 0; i < int(c.NumPoints); i++ {
		normalImpulse := c.Elements[i].Normal.Impulse

		for j := range c.Elements[i].Tangents {
			elt := &c.Elements[i].Tangents[j]

			dimpulse := tangents[j].Dot(lin1).
				Add(elt.GCross1.Dot(ang1)).
				Sub(tangents[j].Dot(lin2)).
				Add(elt.GCross2.Dot(ang2)).
				Add(elt.Rhs)
			limit := c.Limit.Mul(normalImpulse)
			newImpulse := elt.Impulse.Sub(elt.R.Mul(dimpulse)).Clamp(limit.Neg(), limit)
			dlambda := newImpulse.Sub(elt.Impulse)
			elt.Impulse = newImpulse

			lin1 = lin1.Add(tangents[j].Scale(c.InvMass1.Mul(dlambda)))
			ang1 = ang1.Add(elt.GCross1.Scale(dlambda))
			lin2 = lin2.Add(tangents[j].Scale(c.InvMass2.Neg().Mul(dlambda)))
			ang2 = ang2.Add(elt.GCross2.Scale(dlambda))
		}
	}

	// Non-penetration after friction. Impulses only push, never pull.
	for i := 0; i < int(c.NumPoints); i++ {
		elt := &c.Elements[i].Normal

		dimpulse := c.Dir1.Dot(lin1).
			Add(elt.GCross1.Dot(ang1)).
			Sub(c.Dir1.Dot(lin2)).
			Add(elt.GCross2.Dot(ang2)).
			Add(elt.Rhs)
		newImpulse := elt.Impulse.Sub(elt.R.Mul(dimpulse)).Max(wide.Splat(0))
		dlambda := newImpulse.Sub(elt.Impulse)
		elt.Impulse = newImpulse

		lin1 = lin1.Add(c.Dir1.Scale(c.InvMass1.Mul(dlambda)))
		ang1 = ang1.Add(elt.GCross1.Scale(dlambda))
		lin2 = lin2.Add(c.Dir1.Scale(c.InvMass2.Neg().Mul(dlambda)))
		ang2 = ang2.Add(elt.GCross2.Scale(dlambda))
	}

	scatterDeltas(buf, c.MjLambda1, lin1, ang1)
	scatterDeltas(buf, c.MjLambda2, lin2, ang2)
}

// WritebackImpulses copies the converged impulses back into every lane's
// manifold points, so the next step can warm-start from them and callers can
// query realized contact forces. This is the only place the solver mutates
// manifolds.
func (c *BatchConstraint) WritebackImpulses(manifolds []*contact.Manifold) {
	for k := 0; k < int(c.NumPoints); k++ {
		normal := c.Elements[k].Normal.Impulse
		tangent := c.Elements[k].Tangents[0].Impulse
		bitangent := c.Elements[k].Tangents[1].Impulse

		for ii := 0; ii < wide.LaneWidth; ii++ {
			points := manifolds[c.ManifoldIDs[ii]].ActivePoints()
			pt := &points[c.PointOffset+k]
			pt.Impulse = normal[ii]
			pt.TangentImpulse = [2]float32{tangent[ii], bitangent[ii]}
		}
	}
}

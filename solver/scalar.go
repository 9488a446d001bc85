package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/impulse/contact"
	"github.com/gekko3d/impulse/dynamics"
)

// ScalarElementPart is the single-pair form of ElementPart.
type ScalarElementPart struct {
	GCross1 mgl32.Vec3
	GCross2 mgl32.Vec3
	Rhs     float32
	Impulse float32
	R       float32
}

// ScalarElement is the single-pair form of Element.
type ScalarElement struct {
	Normal   ScalarElementPart
	Tangents [2]ScalarElementPart
}

// ScalarConstraint solves the contacts of a single body pair. It runs the
// same math as BatchConstraint on one lane, and picks up the manifolds a
// grouping pass could not fill a full batch with.
type ScalarConstraint struct {
	Dir1 mgl32.Vec3

	Elements  [MaxPoints]ScalarElement
	NumPoints uint8

	InvMass1 float32
	InvMass2 float32

	Limit float32

	MjLambda1 int
	MjLambda2 int

	ManifoldID  int
	PointOffset int
}

// orthonormalBasis returns two unit vectors spanning the plane orthogonal to
// v, which must be unit length. Same branchless construction as the lane
// version, so scalar and batched constraints agree on friction directions.
func orthonormalBasis(v mgl32.Vec3) [2]mgl32.Vec3 {
	sign := float32(math.Copysign(1, float64(v.Z())))
	a := -1.0 / (sign + v.Z())
	b := v.X() * v.Y() * a

	t1 := mgl32.Vec3{1.0 + sign*v.X()*v.X()*a, sign * b, -sign * v.X()}
	t2 := mgl32.Vec3{b, sign + v.Y()*v.Y()*a, -v.Y()}
	return [2]mgl32.Vec3{t1, t2}
}

// GenerateScalar builds the constraints for one manifold, handing one
// ScalarConstraint per chunk of MaxPoints contact points to emit.
func GenerateScalar(
	params dynamics.IntegrationParams,
	manifoldID int,
	m *contact.Manifold,
	bodies *dynamics.BodySet,
	emit func(chunk int, c ScalarConstraint),
) {
	invDt := params.InvDt()

	b1 := mustGet(bodies, m.Pair.Body1)
	b2 := mustGet(bodies, m.Pair.Body2)

	collPose1 := b1.Pose.Mul(m.Delta1)
	collPose2 := b2.Pose.Mul(m.Delta2)

	forceDir1 := collPose1.RotateVec3(m.LocalN1.Mul(-1))

	warmstartCoeff := m.WarmstartMultiplier * params.WarmstartCoeff

	points := m.ActivePoints()
	for l := 0; l < len(points); l += MaxPoints {
		chunk := points[l:]
		numPoints := min(len(chunk), MaxPoints)

		c := ScalarConstraint{
			Dir1:        forceDir1,
			NumPoints:   uint8(numPoints),
			InvMass1:    b1.InvMass,
			InvMass2:    b2.InvMass,
			Limit:       m.Friction,
			MjLambda1:   b1.ActiveSetOffset,
			MjLambda2:   b2.ActiveSetOffset,
			ManifoldID:  manifoldID,
			PointOffset: l,
		}

		tangents := orthonormalBasis(forceDir1)

		for k := 0; k < numPoints; k++ {
			pt := chunk[k]

			p1 := collPose1.TransformPoint(pt.LocalP1)
			p2 := collPose2.TransformPoint(pt.LocalP2)

			dp1 := p1.Sub(b1.WorldCOM)
			dp2 := p2.Sub(b2.WorldCOM)

			vel1 := b1.LinVel.Add(b1.AngVel.Cross(dp1))
			vel2 := b2.LinVel.Add(b2.AngVel.Cross(dp2))

			// Normal part.
			{
				gcross1 := b1.WorldInvInertiaSqrt.Mul3x1(dp1.Cross(forceDir1))
				gcross2 := b2.WorldInvInertiaSqrt.Mul3x1(dp2.Cross(forceDir1.Mul(-1)))

				r := 1.0 / (c.InvMass1 + c.InvMass2 + gcross1.Dot(gcross1) + gcross2.Dot(gcross2))

				rhs := vel1.Sub(vel2).Dot(forceDir1)
				if rhs <= -params.RestitutionVelocityThreshold {
					rhs += rhs * m.Restitution
				}
				rhs += max(pt.Dist, 0) * invDt

				c.Elements[k].Normal = ScalarElementPart{
					GCross1: gcross1,
					GCross2: gcross2,
					Rhs:     rhs,
					Impulse: pt.Impulse * warmstartCoeff,
					R:       r,
				}
			}

			// Friction parts.
			for j := range tangents {
				gcross1 := b1.WorldInvInertiaSqrt.Mul3x1(dp1.Cross(tangents[j]))
				gcross2 := b2.WorldInvInertiaSqrt.Mul3x1(dp2.Cross(tangents[j].Mul(-1)))

				r := 1.0 / (c.InvMass1 + c.InvMass2 + gcross1.Dot(gcross1) + gcross2.Dot(gcross2))
				rhs := vel1.Sub(vel2).Dot(tangents[j])

				c.Elements[k].Tangents[j] = ScalarElementPart{
					GCross1: gcross1,
					GCross2: gcross2,
					Rhs:     rhs,
					Impulse: pt.TangentImpulse[j] * warmstartCoeff,
					R:       r,
				}
			}
		}

		emit(l/MaxPoints, c)
	}
}

// WarmStart re-applies the impulses the constraint was generated with to
// both bodies' entries in the velocity delta buffer.
func (c *ScalarConstraint) WarmStart(buf dynamics.VelocityBuffer) {
	dv1, dv2 := &buf[c.MjLambda1], &buf[c.MjLambda2]

	tangents := orthonormalBasis(c.Dir1)

	for i := 0; i < int(c.NumPoints); i++ {
		normal := &c.Elements[i].Normal
		dv1.Linear = dv1.Linear.Add(c.Dir1.Mul(c.InvMass1 * normal.Impulse))
		dv1.Angular = dv1.Angular.Add(normal.GCross1.Mul(normal.Impulse))
		dv2.Linear = dv2.Linear.Add(c.Dir1.Mul(-c.InvMass2 * normal.Impulse))
		dv2.Angular = dv2.Angular.Add(normal.GCross2.Mul(normal.Impulse))

		for j := range c.Elements[i].Tangents {
			elt := &c.Elements[i].Tangents[j]
			dv1.Linear = dv1.Linear.Add(tangents[j].Mul(c.InvMass1 * elt.Impulse))
			dv1.Angular = dv1.Angular.Add(elt.GCross1.Mul(elt.Impulse))
			dv2.Linear = dv2.Linear.Add(tangents[j].Mul(-c.InvMass2 * elt.Impulse))
			dv2.Angular = dv2.Angular.Add(elt.GCross2.Mul(elt.Impulse))
		}
	}
}

// Solve runs one relaxation sweep: friction for every point first, then the
// normal direction for every point, applying each update immediately.
func (c *ScalarConstraint) Solve(buf dynamics.VelocityBuffer) {
	dv1, dv2 := &buf[c.MjLambda1], &buf[c.MjLambda2]

	tangents := orthonormalBasis(c.Dir1)

	for i := 0; i < int(c.NumPoints); i++ {
		normalImpulse := c.Elements[i].Normal.Impulse

		for j := range c.Elements[i].Tangents {
			elt := &c.Elements[i].Tangents[j]

			dimpulse := tangents[j].Dot(dv1.Linear) + elt.GCross1.Dot(dv1.Angular) -
				tangents[j].Dot(dv2.Linear) + elt.GCross2.Dot(dv2.Angular) + elt.Rhs
			limit := c.Limit * normalImpulse
			newImpulse := mgl32.Clamp(elt.Impulse-elt.R*dimpulse, -limit, limit)
			dlambda := newImpulse - elt.Impulse
			elt.Impulse = newImpulse

			dv1.Linear = dv1.Linear.Add(tangents[j].Mul(c.InvMass1 * dlambda))
			dv1.Angular = dv1.Angular.Add(elt.GCross1.Mul(dlambda))
			dv2.Linear = dv2.Linear.Add(tangents[j].Mul(-c.InvMass2 * dlambda))
			dv2.Angular = dv2.Angular.Add(elt.GCross2.Mul(dlambda))
		}
	}

	for i := 0; i < int(c.NumPoints); i++ {
		elt := &c.Elements[i].Normal

		dimpulse := c.Dir1.Dot(dv1.Linear) + elt.GCross1.Dot(dv1.Angular) -
			c.Dir1.Dot(dv2.Linear) + elt.GCross2.Dot(dv2.Angular) + elt.Rhs
		newImpulse := max(elt.Impulse-elt.R*dimpulse, 0)
		dlambda := newImpulse - elt.Impulse
		elt.Impulse = newImpulse

		dv1.Linear = dv1.Linear.Add(c.Dir1.Mul(c.InvMass1 * dlambda))
		dv1.Angular = dv1.Angular.Add(elt.GCross1.Mul(dlambda))
		dv2.Linear = dv2.Linear.Add(c.Dir1.Mul(-c.InvMass2 * dlambda))
		dv2.Angular = dv2.Angular.Add(elt.GCross2.Mul(dlambda))
	}
}

// WritebackImpulses copies the converged impulses back into the manifold's
// points.
func (c *ScalarConstraint) WritebackImpulses(manifolds []*contact.Manifold) {
	points := manifolds[c.ManifoldID].ActivePoints()
	for k := 0; k < int(c.NumPoints); k++ {
		pt := &points[c.PointOffset+k]
		pt.Impulse = c.Elements[k].Normal.Impulse
		pt.TangentImpulse = [2]float32{
			c.Elements[k].Tangents[0].Impulse,
			c.Elements[k].Tangents[1].Impulse,
		}
	}
}

package wide

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Quat is one unit quaternion per lane.
type Quat struct {
	X, Y, Z, W Float
}

// GatherQuat packs one quaternion per lane.
func GatherQuat(qs [LaneWidth]mgl32.Quat) Quat {
	var out Quat
	for i, q := range qs {
		out.X[i] = q.V.X()
		out.Y[i] = q.V.Y()
		out.Z[i] = q.V.Z()
		out.W[i] = q.W
	}
	return out
}

// Mul is the Hamilton product, lane-wise.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W.Mul(o.X).Add(q.X.Mul(o.W)).Add(q.Y.Mul(o.Z)).Sub(q.Z.Mul(o.Y)),
		Y: q.W.Mul(o.Y).Sub(q.X.Mul(o.Z)).Add(q.Y.Mul(o.W)).Add(q.Z.Mul(o.X)),
		Z: q.W.Mul(o.Z).Add(q.X.Mul(o.Y)).Sub(q.Y.Mul(o.X)).Add(q.Z.Mul(o.W)),
		W: q.W.Mul(o.W).Sub(q.X.Mul(o.X)).Sub(q.Y.Mul(o.Y)).Sub(q.Z.Mul(o.Z)),
	}
}

// RotateVec3 rotates each lane's vector by that lane's quaternion, using
// t = 2 qv x v; v' = v + w t + qv x t.
func (q Quat) RotateVec3(v Vec3) Vec3 {
	qv := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := qv.Cross(v).Scale(Splat(2.0))
	return v.Add(t.Scale(q.W)).Add(qv.Cross(t))
}

// Iso is one rigid transform (rotation then translation) per lane.
type Iso struct {
	Rotation    Quat
	Translation Vec3
}

// GatherIso packs one pose per lane.
func GatherIso(positions [LaneWidth]mgl32.Vec3, rotations [LaneWidth]mgl32.Quat) Iso {
	return Iso{
		Rotation:    GatherQuat(rotations),
		Translation: GatherVec3(positions),
	}
}

// Mul composes two transforms: (a.Mul(b)).TransformPoint(p) equals
// a.TransformPoint(b.TransformPoint(p)).
func (a Iso) Mul(b Iso) Iso {
	return Iso{
		Rotation:    a.Rotation.Mul(b.Rotation),
		Translation: a.Translation.Add(a.Rotation.RotateVec3(b.Translation)),
	}
}

// RotateVec3 applies only the rotational part; directions transform this way.
func (a Iso) RotateVec3(v Vec3) Vec3 {
	return a.Rotation.RotateVec3(v)
}

// TransformPoint applies rotation then translation.
func (a Iso) TransformPoint(p Vec3) Vec3 {
	return a.Rotation.RotateVec3(p).Add(a.Translation)
}

package wide

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 is one 3-vector per lane, stored component-major so each component of
// the four lanes sits together.
type Vec3 struct {
	X, Y, Z Float
}

// SplatVec3 broadcasts one vector to every lane.
func SplatVec3(v mgl32.Vec3) Vec3 {
	return Vec3{X: Splat(v.X()), Y: Splat(v.Y()), Z: Splat(v.Z())}
}

// GatherVec3 packs one vector per lane.
func GatherVec3(vs [LaneWidth]mgl32.Vec3) Vec3 {
	var out Vec3
	for i, v := range vs {
		out.X[i] = v.X()
		out.Y[i] = v.Y()
		out.Z[i] = v.Z()
	}
	return out
}

// Extract returns the vector held by one lane.
func (v Vec3) Extract(lane int) mgl32.Vec3 {
	return mgl32.Vec3{v.X[lane], v.Y[lane], v.Z[lane]}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X.Add(o.X), Y: v.Y.Add(o.Y), Z: v.Z.Add(o.Z)}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X.Sub(o.X), Y: v.Y.Sub(o.Y), Z: v.Z.Sub(o.Z)}
}

func (v Vec3) Neg() Vec3 {
	return Vec3{X: v.X.Neg(), Y: v.Y.Neg(), Z: v.Z.Neg()}
}

// Scale multiplies every lane's vector by that lane's scalar.
func (v Vec3) Scale(f Float) Vec3 {
	return Vec3{X: v.X.Mul(f), Y: v.Y.Mul(f), Z: v.Z.Mul(f)}
}

func (v Vec3) Dot(o Vec3) Float {
	return v.X.Mul(o.X).Add(v.Y.Mul(o.Y)).Add(v.Z.Mul(o.Z))
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y.Mul(o.Z).Sub(v.Z.Mul(o.Y)),
		Y: v.Z.Mul(o.X).Sub(v.X.Mul(o.Z)),
		Z: v.X.Mul(o.Y).Sub(v.Y.Mul(o.X)),
	}
}

// OrthonormalBasis returns two unit vectors spanning the plane orthogonal to
// v, which must be unit length. Uses the branchless construction from Duff et
// al. so the result is continuous in v and needs no per-lane branching; the
// pair is right-handed with v (t1 x t2 = v).
func (v Vec3) OrthonormalBasis() [2]Vec3 {
	one := Splat(1.0)
	sign := one.CopySign(v.Z)
	a := one.Neg().Div(sign.Add(v.Z))
	b := v.X.Mul(v.Y).Mul(a)

	t1 := Vec3{
		X: one.Add(sign.Mul(v.X).Mul(v.X).Mul(a)),
		Y: sign.Mul(b),
		Z: sign.Mul(v.X).Neg(),
	}
	t2 := Vec3{
		X: b,
		Y: sign.Add(v.Y.Mul(v.Y).Mul(a)),
		Z: v.Y.Neg(),
	}
	return [2]Vec3{t1, t2}
}

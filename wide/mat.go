package wide

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SymMat3 is one symmetric 3x3 matrix per lane, storing only the upper
// triangle. The solver uses it for world-space inverse-inertia square roots,
// which are symmetric by construction.
type SymMat3 struct {
	M11, M12, M13 Float
	M22, M23      Float
	M33           Float
}

// GatherSymMat3 packs one matrix per lane, reading the upper triangle.
// Matrices must be symmetric; the lower triangle is ignored.
func GatherSymMat3(ms [LaneWidth]mgl32.Mat3) SymMat3 {
	var out SymMat3
	for i, m := range ms {
		out.M11[i] = m.At(0, 0)
		out.M12[i] = m.At(0, 1)
		out.M13[i] = m.At(0, 2)
		out.M22[i] = m.At(1, 1)
		out.M23[i] = m.At(1, 2)
		out.M33[i] = m.At(2, 2)
	}
	return out
}

// TransformVec3 multiplies each lane's matrix with that lane's vector.
func (m SymMat3) TransformVec3(v Vec3) Vec3 {
	return Vec3{
		X: m.M11.Mul(v.X).Add(m.M12.Mul(v.Y)).Add(m.M13.Mul(v.Z)),
		Y: m.M12.Mul(v.X).Add(m.M22.Mul(v.Y)).Add(m.M23.Mul(v.Z)),
		Z: m.M13.Mul(v.X).Add(m.M23.Mul(v.Y)).Add(m.M33.Mul(v.Z)),
	}
}

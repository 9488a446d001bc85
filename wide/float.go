// Package wide implements fixed-width lane math: LaneWidth independent scalar
// problems packed into one struct-of-arrays value and advanced together.
//
// Each lane is a fully independent computation. Nothing here mixes lanes
// except the explicit Gather* constructors and Extract accessors, so the same
// code expresses one body pair or four. Ops are plain loops; the layout, not
// vector hardware, is the contract.
package wide

import "math"

// LaneWidth is the number of independent problems packed into one batched
// value. Fixed at build time; the solver groups body pairs in chunks of this.
const LaneWidth = 4

// Float is one scalar per lane.
type Float [LaneWidth]float32

// Mask is one predicate per lane, produced by comparisons and consumed by
// Select.
type Mask [LaneWidth]bool

// Splat broadcasts one scalar to every lane.
func Splat(v float32) Float {
	return Float{v, v, v, v}
}

func (f Float) Add(o Float) Float {
	for i := range f {
		f[i] += o[i]
	}
	return f
}

func (f Float) Sub(o Float) Float {
	for i := range f {
		f[i] -= o[i]
	}
	return f
}

func (f Float) Mul(o Float) Float {
	for i := range f {
		f[i] *= o[i]
	}
	return f
}

func (f Float) Div(o Float) Float {
	for i := range f {
		f[i] /= o[i]
	}
	return f
}

func (f Float) Neg() Float {
	for i := range f {
		f[i] = -f[i]
	}
	return f
}

func (f Float) Min(o Float) Float {
	for i := range f {
		f[i] = min(f[i], o[i])
	}
	return f
}

func (f Float) Max(o Float) Float {
	for i := range f {
		f[i] = max(f[i], o[i])
	}
	return f
}

// Clamp limits every lane to [lo, hi]. lo must be <= hi lane-wise.
func (f Float) Clamp(lo, hi Float) Float {
	for i := range f {
		f[i] = min(max(f[i], lo[i]), hi[i])
	}
	return f
}

// LessEq reports f <= o per lane.
func (f Float) LessEq(o Float) Mask {
	var m Mask
	for i := range f {
		m[i] = f[i] <= o[i]
	}
	return m
}

// CopySign returns a value with f's magnitude and sign's sign, per lane.
func (f Float) CopySign(sign Float) Float {
	for i := range f {
		f[i] = float32(math.Copysign(float64(f[i]), float64(sign[i])))
	}
	return f
}

// Select picks ifTrue where the mask is set, otherwise ifFalse.
func Select(m Mask, ifTrue, ifFalse Float) Float {
	for i := range ifFalse {
		if m[i] {
			ifFalse[i] = ifTrue[i]
		}
	}
	return ifFalse
}

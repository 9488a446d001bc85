package wide

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func randomUnitVec(rng *rand.Rand) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
		}
		if l := v.Len(); l > 0.1 {
			return v.Mul(1 / l)
		}
	}
}

func TestVec3MatchesScalarReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	var as, bs [LaneWidth]mgl32.Vec3
	for i := range as {
		as[i] = randomUnitVec(rng).Mul(rng.Float32() * 5)
		bs[i] = randomUnitVec(rng).Mul(rng.Float32() * 5)
	}

	a := GatherVec3(as)
	b := GatherVec3(bs)

	dot := a.Dot(b)
	cross := a.Cross(b)
	sum := a.Add(b)

	for i := 0; i < LaneWidth; i++ {
		if want := as[i].Dot(bs[i]); math.Abs(float64(dot[i]-want)) > 1e-5 {
			t.Errorf("lane %d: Dot = %v, want %v", i, dot[i], want)
		}
		if want := as[i].Cross(bs[i]); !cross.Extract(i).ApproxEqualThreshold(want, 1e-5) {
			t.Errorf("lane %d: Cross = %v, want %v", i, cross.Extract(i), want)
		}
		if want := as[i].Add(bs[i]); sum.Extract(i) != want {
			t.Errorf("lane %d: Add = %v, want %v", i, sum.Extract(i), want)
		}
	}
}

func TestVec3GatherExtractRoundTrip(t *testing.T) {
	vs := [LaneWidth]mgl32.Vec3{
		{1, 2, 3},
		{-4, 5, -6},
		{0, 0, 0},
		{7.5, -8.25, 9},
	}
	packed := GatherVec3(vs)
	for i, v := range vs {
		if got := packed.Extract(i); got != v {
			t.Errorf("lane %d: got %v, want %v", i, got, v)
		}
	}
}

func TestSplatVec3FillsEveryLane(t *testing.T) {
	v := mgl32.Vec3{1.5, -2, 0.25}
	packed := SplatVec3(v)
	for i := 0; i < LaneWidth; i++ {
		if got := packed.Extract(i); got != v {
			t.Errorf("lane %d: got %v, want %v", i, got, v)
		}
	}
}

func TestOrthonormalBasis(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	// Degenerate axes in the first group, random unit normals after.
	var groups [][LaneWidth]mgl32.Vec3
	groups = append(groups, [LaneWidth]mgl32.Vec3{
		{0, 0, 1}, {0, 0, -1}, {1, 0, 0}, {0, -1, 0},
	})
	for g := 0; g < 8; g++ {
		var vs [LaneWidth]mgl32.Vec3
		for i := range vs {
			vs[i] = randomUnitVec(rng)
		}
		groups = append(groups, vs)
	}

	const eps = 1e-5
	for gi, vs := range groups {
		n := GatherVec3(vs)
		basis := n.OrthonormalBasis()

		for i := 0; i < LaneWidth; i++ {
			t1 := basis[0].Extract(i)
			t2 := basis[1].Extract(i)
			nv := vs[i]

			if d := math.Abs(float64(t1.Len() - 1)); d > eps {
				t.Errorf("group %d lane %d: |t1| = %v", gi, i, t1.Len())
			}
			if d := math.Abs(float64(t2.Len() - 1)); d > eps {
				t.Errorf("group %d lane %d: |t2| = %v", gi, i, t2.Len())
			}
			if d := math.Abs(float64(t1.Dot(nv))); d > eps {
				t.Errorf("group %d lane %d: t1.n = %v", gi, i, t1.Dot(nv))
			}
			if d := math.Abs(float64(t2.Dot(nv))); d > eps {
				t.Errorf("group %d lane %d: t2.n = %v", gi, i, t2.Dot(nv))
			}
			if d := math.Abs(float64(t1.Dot(t2))); d > eps {
				t.Errorf("group %d lane %d: t1.t2 = %v", gi, i, t1.Dot(t2))
			}
			// Right-handed: t1 x t2 = n.
			if c := t1.Cross(t2); !c.ApproxEqualThreshold(nv, 1e-4) {
				t.Errorf("group %d lane %d: t1 x t2 = %v, want %v", gi, i, c, nv)
			}
		}
	}
}

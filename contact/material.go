package contact

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// MaterialId identifies a material registered with a MaterialLibrary.
type MaterialId string

func makeMaterialId() MaterialId {
	return MaterialId(uuid.NewString())
}

// Material describes the surface response of one collider.
type Material struct {
	Friction    float32
	Restitution float32
}

// CombineFriction merges the friction coefficients of two touching surfaces
// with a geometric mean, so one slippery surface dominates.
func CombineFriction(a, b Material) float32 {
	return float32(math.Sqrt(float64(a.Friction * b.Friction)))
}

// CombineRestitution keeps the bouncier of the two surfaces.
func CombineRestitution(a, b Material) float32 {
	return max(a.Restitution, b.Restitution)
}

// MaterialLibrary stores materials so colliders can share them by id.
type MaterialLibrary struct {
	materials map[MaterialId]Material
}

func NewMaterialLibrary() *MaterialLibrary {
	return &MaterialLibrary{
		materials: make(map[MaterialId]Material),
	}
}

// Register adds a material and returns a fresh id for it.
func (lib *MaterialLibrary) Register(mat Material) MaterialId {
	id := makeMaterialId()
	lib.materials[id] = mat
	return id
}

func (lib *MaterialLibrary) Get(id MaterialId) (Material, error) {
	mat, ok := lib.materials[id]
	if !ok {
		return Material{}, fmt.Errorf("material %s not found", id)
	}
	return mat, nil
}

// Combine looks up two registered materials and returns the pairwise
// coefficients a contact between them should use.
func (lib *MaterialLibrary) Combine(id1, id2 MaterialId) (Material, error) {
	a, err := lib.Get(id1)
	if err != nil {
		return Material{}, err
	}
	b, err := lib.Get(id2)
	if err != nil {
		return Material{}, err
	}
	return Material{
		Friction:    CombineFriction(a, b),
		Restitution: CombineRestitution(a, b),
	}, nil
}

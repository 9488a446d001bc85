package dynamics

import (
	"fmt"
	"sync"
)

// BodyHandle identifies a body inside a BodySet. Handles stay valid for the
// lifetime of the set and are never reused.
type BodyHandle uint64

// BodySet owns the rigid bodies taking part in a simulation. Bodies are
// stored densely so the solver can index them by ActiveSetOffset without
// chasing handles.
type BodySet struct {
	bodies  []RigidBody
	indices map[BodyHandle]int

	idGeneratorLock sync.Mutex
	handleCounter   BodyHandle
}

func NewBodySet() *BodySet {
	return &BodySet{
		indices: make(map[BodyHandle]int),
	}
}

func (set *BodySet) nextHandle() BodyHandle {
	set.idGeneratorLock.Lock()
	defer set.idGeneratorLock.Unlock()

	id := set.handleCounter
	set.handleCounter += 1

	return id
}

// Insert adds a body and returns its handle. The body's ActiveSetOffset is
// overwritten with its slot in the dense storage.
func (set *BodySet) Insert(body RigidBody) BodyHandle {
	handle := set.nextHandle()
	body.ActiveSetOffset = len(set.bodies)
	set.bodies = append(set.bodies, body)
	set.indices[handle] = body.ActiveSetOffset
	return handle
}

// Get returns the body for a handle. The pointer stays valid until the next
// Insert.
func (set *BodySet) Get(handle BodyHandle) (*RigidBody, error) {
	idx, ok := set.indices[handle]
	if !ok {
		return nil, fmt.Errorf("body handle %d not found", handle)
	}
	return &set.bodies[idx], nil
}

// At returns the body in dense slot i, which matches ActiveSetOffset.
func (set *BodySet) At(i int) *RigidBody {
	return &set.bodies[i]
}

func (set *BodySet) Len() int {
	return len(set.bodies)
}

// ApplyDeltas folds the solver's velocity buffer back into the bodies. The
// angular delta lives in square-root inertia space, so it picks up one more
// multiply by WorldInvInertiaSqrt on the way out.
func (set *BodySet) ApplyDeltas(buf VelocityBuffer) {
	for i := range set.bodies {
		body := &set.bodies[i]
		if body.ActiveSetOffset >= len(buf) {
			continue
		}
		dv := buf[body.ActiveSetOffset]
		body.LinVel = body.LinVel.Add(dv.Linear)
		body.AngVel = body.AngVel.Add(body.WorldInvInertiaSqrt.Mul3x1(dv.Angular))
	}
}

package physics

// DefaultGravity is the downward acceleration applied to bodies that opt in
// to gravity, in world units per second squared.
var DefaultGravity = Vector3{Y: -9.81}

// CollisionFunc is invoked when a body's collider overlaps another collider.
// self is the body the callback was registered for, other is the body it hit.
type CollisionFunc func(self, other Body)

// Pair records one detected collision during a step.
type Pair struct {
	A Collider
	B Collider
}

// System performs collision detection and resolution over a set of colliders.
//
// Layers gate which collider pairs are tested: a pair is only checked when
// [System.SetLayerCollision] has enabled either direction of its layer pair.
// Overlapping non-trigger sphere pairs are pushed apart by half the overlap
// each; trigger colliders only raise callbacks.
//
// System is driven from the engine's world loop goroutine and performs no
// internal locking.
type System struct {
	Gravity Vector3

	colliders []Collider
	matrix    map[int]map[int]bool
	callbacks map[string][]CollisionFunc // keyed by body ID
}

// NewSystem returns an empty physics system with [DefaultGravity] and the
// default layer (0/0) collision enabled.
func NewSystem() *System {
	s := &System{
		Gravity:   DefaultGravity,
		matrix:    make(map[int]map[int]bool),
		callbacks: make(map[string][]CollisionFunc),
	}
	s.SetLayerCollision(0, 0, true)
	return s
}

// AddCollider registers c for collision checks.
func (s *System) AddCollider(c Collider) {
	s.colliders = append(s.colliders, c)
}

// RemoveCollider unregisters c. Removing a collider that was never added is
// a no-op.
func (s *System) RemoveCollider(c Collider) {
	for i, existing := range s.colliders {
		if existing == c {
			s.colliders = append(s.colliders[:i], s.colliders[i+1:]...)
			return
		}
	}
}

// RemoveBody unregisters every collider attached to the body with the given
// ID and drops its collision callbacks.
func (s *System) RemoveBody(id string) {
	kept := s.colliders[:0]
	for _, c := range s.colliders {
		if c.Body() == nil || c.Body().ID() != id {
			kept = append(kept, c)
		}
	}
	s.colliders = kept
	delete(s.callbacks, id)
}

// SetLayerCollision enables or disables collision checks between two layers.
// The matrix is consulted symmetrically: enabling (a, b) also covers (b, a).
func (s *System) SetLayerCollision(a, b int, collide bool) {
	row, ok := s.matrix[a]
	if !ok {
		row = make(map[int]bool)
		s.matrix[a] = row
	}
	if collide {
		row[b] = true
	} else {
		delete(row, b)
	}
}

// shouldCheck reports whether colliders on layers a and b should be tested.
func (s *System) shouldCheck(a, b int) bool {
	return s.matrix[a][b] || s.matrix[b][a]
}

// OnCollision registers fn to be called whenever the body with the given ID
// is involved in a collision. Multiple callbacks per body are allowed.
func (s *System) OnCollision(bodyID string, fn CollisionFunc) {
	s.callbacks[bodyID] = append(s.callbacks[bodyID], fn)
}

// Step refreshes collider positions, detects all colliding pairs, dispatches
// callbacks, and resolves overlapping non-trigger sphere pairs. It returns
// the detected pairs so the engine can publish collision events.
func (s *System) Step(delta float64) []Pair {
	for _, c := range s.colliders {
		c.Refresh()
	}

	var pairs []Pair
	for i, a := range s.colliders {
		for _, b := range s.colliders[i+1:] {
			if !s.shouldCheck(a.Layer(), b.Layer()) {
				continue
			}
			if a.Intersects(b) {
				pairs = append(pairs, Pair{A: a, B: b})
			}
		}
	}

	for _, p := range pairs {
		s.dispatch(p.A.Body(), p.B.Body())
		s.dispatch(p.B.Body(), p.A.Body())

		if p.A.Trigger() || p.B.Trigger() {
			continue
		}
		s.resolve(p.A, p.B)
	}

	return pairs
}

// dispatch invokes all callbacks registered for self.
func (s *System) dispatch(self, other Body) {
	if self == nil || other == nil {
		return
	}
	for _, fn := range s.callbacks[self.ID()] {
		fn(self, other)
	}
}

// resolve pushes two overlapping sphere colliders apart by half the overlap
// each. Other shape pairs are left in place; box resolution is handled by
// game-level components.
func (s *System) resolve(a, b Collider) {
	sa, ok1 := a.(*SphereCollider)
	sb, ok2 := b.(*SphereCollider)
	if !ok1 || !ok2 {
		return
	}

	posA := sa.Body().Position()
	posB := sb.Body().Position()
	dir := posA.Sub(posB)
	dist := dir.Magnitude()

	// Coincident centres: pick an arbitrary fixed axis so the push is
	// deterministic.
	if dist == 0 {
		dir = Vector3{X: 1}
		dist = 1
	}

	overlap := (sa.radius + sb.radius) - dist
	if overlap <= 0 {
		return
	}

	push := dir.Normalize().Scale(overlap * 0.5)
	sa.Body().SetPosition(posA.Add(push))
	sb.Body().SetPosition(posB.Sub(push))
}

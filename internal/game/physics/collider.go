package physics

// Body is the minimal view of a game object that the physics system needs:
// a stable identity and a mutable world position. internal/game's GameObject
// satisfies it.
type Body interface {
	// ID returns the stable unique identifier of the object.
	ID() string

	// Position returns the object's current world position.
	Position() Vector3

	// SetPosition moves the object to a new world position.
	SetPosition(Vector3)
}

// Collider is a collision volume attached to a [Body].
//
// Concrete shapes are [SphereCollider] and [BoxCollider]. A collider caches
// its position; the [System] refreshes all caches from the owning bodies at
// the start of every step.
type Collider interface {
	// Body returns the game object this collider is attached to.
	Body() Body

	// Layer returns the collision layer this collider belongs to.
	Layer() int

	// Trigger reports whether this collider only raises callbacks and is
	// never physically resolved.
	Trigger() bool

	// Refresh re-reads the cached position (and derived bounds) from the body.
	Refresh()

	// Intersects reports whether this collider overlaps other.
	Intersects(other Collider) bool
}

// colliderBase holds the state shared by all collider shapes.
type colliderBase struct {
	body    Body
	pos     Vector3
	layer   int
	trigger bool
}

func (c *colliderBase) Body() Body    { return c.body }
func (c *colliderBase) Layer() int    { return c.layer }
func (c *colliderBase) Trigger() bool { return c.trigger }

// SphereCollider is a spherical collision volume.
type SphereCollider struct {
	colliderBase
	radius float64
}

// NewSphere creates a sphere collider of the given radius attached to body.
// A non-positive radius is coerced to 1.
func NewSphere(body Body, radius float64) *SphereCollider {
	if radius <= 0 {
		radius = 1
	}
	s := &SphereCollider{radius: radius}
	s.body = body
	s.Refresh()
	return s
}

// Radius returns the sphere's radius.
func (s *SphereCollider) Radius() float64 { return s.radius }

// SetLayer assigns the collision layer.
func (s *SphereCollider) SetLayer(layer int) { s.layer = layer }

// SetTrigger marks the collider as trigger-only.
func (s *SphereCollider) SetTrigger(trigger bool) { s.trigger = trigger }

// Refresh implements [Collider].
func (s *SphereCollider) Refresh() { s.pos = s.body.Position() }

// Intersects implements [Collider]. Sphere/sphere compares centre distance
// against the radius sum; sphere/box clamps the centre into the box and
// compares the clamped distance against the radius.
func (s *SphereCollider) Intersects(other Collider) bool {
	switch o := other.(type) {
	case *SphereCollider:
		return s.pos.DistanceTo(o.pos) < s.radius+o.radius
	case *BoxCollider:
		closest := Vector3{
			X: clamp(s.pos.X, o.min.X, o.max.X),
			Y: clamp(s.pos.Y, o.min.Y, o.max.Y),
			Z: clamp(s.pos.Z, o.min.Z, o.max.Z),
		}
		return s.pos.DistanceTo(closest) < s.radius
	}
	return false
}

// BoxCollider is an axis-aligned box collision volume.
type BoxCollider struct {
	colliderBase
	size Vector3
	min  Vector3
	max  Vector3
}

// NewBox creates a box collider of the given size attached to body.
// Non-positive size components are coerced to 1.
func NewBox(body Body, size Vector3) *BoxCollider {
	if size.X <= 0 {
		size.X = 1
	}
	if size.Y <= 0 {
		size.Y = 1
	}
	if size.Z <= 0 {
		size.Z = 1
	}
	b := &BoxCollider{size: size}
	b.body = body
	b.Refresh()
	return b
}

// Size returns the box dimensions.
func (b *BoxCollider) Size() Vector3 { return b.size }

// Min returns the minimum corner of the box in world space.
func (b *BoxCollider) Min() Vector3 { return b.min }

// Max returns the maximum corner of the box in world space.
func (b *BoxCollider) Max() Vector3 { return b.max }

// SetLayer assigns the collision layer.
func (b *BoxCollider) SetLayer(layer int) { b.layer = layer }

// SetTrigger marks the collider as trigger-only.
func (b *BoxCollider) SetTrigger(trigger bool) { b.trigger = trigger }

// Refresh implements [Collider]. It recomputes the world-space bounds from
// the body position and box size.
func (b *BoxCollider) Refresh() {
	b.pos = b.body.Position()
	half := b.size.Scale(0.5)
	b.min = b.pos.Sub(half)
	b.max = b.pos.Add(half)
}

// Intersects implements [Collider]. Box/box is an AABB overlap test;
// box/sphere delegates to the sphere's test.
func (b *BoxCollider) Intersects(other Collider) bool {
	switch o := other.(type) {
	case *BoxCollider:
		return b.min.X <= o.max.X && b.max.X >= o.min.X &&
			b.min.Y <= o.max.Y && b.max.Y >= o.min.Y &&
			b.min.Z <= o.max.Z && b.max.Z >= o.min.Z
	case *SphereCollider:
		return o.Intersects(b)
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package behavior

import (
	"math"
	"math/rand"

	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/game/physics"
)

// Wander moves an object toward random targets within a radius of its
// starting position, picking a new target every 2 to 5 seconds.
type Wander struct {
	rng    *rand.Rand
	radius float64
	speed  float64

	origin    physics.Vector3
	target    physics.Vector3
	hasOrigin bool
	cooldown  float64
}

// NewWander creates a wander behavior. The origin is captured on the first
// update so the same behavior value can be attached to any object.
func NewWander(rng *rand.Rand, radius, speed float64) *Wander {
	return &Wander{rng: rng, radius: radius, speed: speed}
}

// Name implements [Behavior].
func (w *Wander) Name() string { return "wander" }

// Update implements [Behavior].
func (w *Wander) Update(obj *game.GameObject, delta float64) {
	if !w.hasOrigin {
		w.origin = obj.Position()
		w.hasOrigin = true
		w.retarget()
	}

	w.cooldown -= delta
	if w.cooldown <= 0 {
		w.retarget()
	}

	pos := obj.Position()
	dir := w.target.Sub(pos)
	dist := dir.Magnitude()
	if dist < 0.05 {
		return
	}

	step := w.speed * delta
	if step > dist {
		step = dist
	}
	obj.SetPosition(pos.Add(dir.Normalize().Scale(step)))
}

// retarget picks a new random point within the wander radius and a new
// 2-5s hold time.
func (w *Wander) retarget() {
	angle := w.rng.Float64() * 2 * math.Pi
	r := w.rng.Float64() * w.radius
	w.target = w.origin.Add(physics.Vec3(r*math.Cos(angle), 0, r*math.Sin(angle)))
	w.cooldown = 2 + w.rng.Float64()*3
}

package behavior

import (
	"github.com/veilgate/ludens/internal/game"
)

// Follow moves an object toward a target object, stopping once within the
// minimum distance. The target is resolved by ID each tick so a respawned
// or replaced target is picked up automatically.
type Follow struct {
	targetID string
	minDist  float64
	speed    float64
	lookup   func(id string) *game.GameObject
}

// NewFollow creates a follow behavior. lookup resolves the target object by
// ID; returning nil suspends movement for that tick. A typical lookup is
// scene.ByID.
func NewFollow(targetID string, minDist, speed float64, lookup func(id string) *game.GameObject) *Follow {
	return &Follow{targetID: targetID, minDist: minDist, speed: speed, lookup: lookup}
}

// Name implements [Behavior].
func (f *Follow) Name() string { return "follow" }

// TargetID returns the followed object's ID.
func (f *Follow) TargetID() string { return f.targetID }

// Update implements [Behavior].
func (f *Follow) Update(obj *game.GameObject, delta float64) {
	target := f.lookup(f.targetID)
	if target == nil {
		return
	}

	pos := obj.Position()
	dir := target.Position().Sub(pos)
	dist := dir.Magnitude()
	if dist <= f.minDist {
		return
	}

	step := f.speed * delta
	if step > dist-f.minDist {
		step = dist - f.minDist
	}
	obj.SetPosition(pos.Add(dir.Normalize().Scale(step)))
}

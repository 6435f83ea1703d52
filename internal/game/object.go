package game

import (
	"sync"

	"github.com/google/uuid"

	"github.com/veilgate/ludens/internal/game/physics"
)

// Component is a unit of per-object behaviour updated every tick while the
// owning object is active.
type Component interface {
	Update(obj *GameObject, delta float64)
}

// CollisionHandler is an optional interface components can implement to be
// notified when the owning object collides with another.
type CollisionHandler interface {
	OnCollision(obj, other *GameObject)
}

// ActivationHandler is an optional interface components can implement to
// react to the owning object's scene being activated or deactivated.
type ActivationHandler interface {
	OnActivate(obj *GameObject)
	OnDeactivate(obj *GameObject)
}

// GameObject is the base entity of the engine. It carries a transform, a tag,
// free-form properties, and named components.
//
// The engine mutates objects from the world loop goroutine; position and
// property accessors are additionally guarded by a mutex so the AI layer can
// read them from dialog/decision goroutines.
type GameObject struct {
	id   string
	name string
	typ  string

	mu         sync.RWMutex
	position   physics.Vector3
	rotation   physics.Vector3
	scale      physics.Vector3
	tag        string
	active     bool
	properties map[string]any
	components map[string]Component
	compOrder  []string
}

// NewObject creates a game object with a generated ID, the given name and
// type, unit scale, and an empty property set.
func NewObject(name, typ string) *GameObject {
	return &GameObject{
		id:         uuid.NewString(),
		name:       name,
		typ:        typ,
		scale:      physics.Vec3(1, 1, 1),
		active:     true,
		properties: make(map[string]any),
		components: make(map[string]Component),
	}
}

// ID returns the object's stable unique identifier.
func (o *GameObject) ID() string { return o.id }

// Name returns the object's display name.
func (o *GameObject) Name() string { return o.name }

// Type returns the object's type label (e.g. "player", "npc_merchant").
func (o *GameObject) Type() string { return o.typ }

// Position returns the object's world position. Satisfies [physics.Body].
func (o *GameObject) Position() physics.Vector3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.position
}

// SetPosition moves the object. Satisfies [physics.Body].
func (o *GameObject) SetPosition(p physics.Vector3) {
	o.mu.Lock()
	o.position = p
	o.mu.Unlock()
}

// Rotation returns the object's Euler rotation in degrees.
func (o *GameObject) Rotation() physics.Vector3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rotation
}

// SetRotation sets the object's Euler rotation in degrees.
func (o *GameObject) SetRotation(r physics.Vector3) {
	o.mu.Lock()
	o.rotation = r
	o.mu.Unlock()
}

// Scale returns the object's scale.
func (o *GameObject) Scale() physics.Vector3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scale
}

// SetScale sets the object's scale.
func (o *GameObject) SetScale(s physics.Vector3) {
	o.mu.Lock()
	o.scale = s
	o.mu.Unlock()
}

// Tag returns the object's tag.
func (o *GameObject) Tag() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tag
}

// SetTag assigns a tag used for scene lookups.
func (o *GameObject) SetTag(tag string) {
	o.mu.Lock()
	o.tag = tag
	o.mu.Unlock()
}

// Active reports whether the object participates in updates.
func (o *GameObject) Active() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// SetProperty stores a free-form property value under key.
func (o *GameObject) SetProperty(key string, value any) {
	o.mu.Lock()
	o.properties[key] = value
	o.mu.Unlock()
}

// Property returns the property stored under key, or def when absent.
func (o *GameObject) Property(key string, def any) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.properties[key]; ok {
		return v
	}
	return def
}

// Properties returns a shallow copy of the object's property map.
func (o *GameObject) Properties() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.properties))
	for k, v := range o.properties {
		out[k] = v
	}
	return out
}

// AddComponent attaches component under name, replacing any previous
// component with the same name. Components update in attachment order.
func (o *GameObject) AddComponent(name string, c Component) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.components[name]; !exists {
		o.compOrder = append(o.compOrder, name)
	}
	o.components[name] = c
}

// Component returns the component attached under name, or nil.
func (o *GameObject) Component(name string) Component {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.components[name]
}

// RemoveComponent detaches the component attached under name.
func (o *GameObject) RemoveComponent(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.components[name]; !exists {
		return
	}
	delete(o.components, name)
	for i, n := range o.compOrder {
		if n == name {
			o.compOrder = append(o.compOrder[:i], o.compOrder[i+1:]...)
			break
		}
	}
}

// snapshotComponents returns the components in attachment order without
// holding the lock during iteration.
func (o *GameObject) snapshotComponents() []Component {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Component, 0, len(o.compOrder))
	for _, name := range o.compOrder {
		out = append(out, o.components[name])
	}
	return out
}

// Update advances all components by delta. Inactive objects are skipped by
// the scene, not here.
func (o *GameObject) Update(delta float64) {
	for _, c := range o.snapshotComponents() {
		c.Update(o, delta)
	}
}

// NotifyCollision forwards a collision to all components implementing
// [CollisionHandler].
func (o *GameObject) NotifyCollision(other *GameObject) {
	for _, c := range o.snapshotComponents() {
		if h, ok := c.(CollisionHandler); ok {
			h.OnCollision(o, other)
		}
	}
}

// setActive flips the active flag and notifies activation-aware components.
func (o *GameObject) setActive(active bool) {
	o.mu.Lock()
	o.active = active
	o.mu.Unlock()

	for _, c := range o.snapshotComponents() {
		if h, ok := c.(ActivationHandler); ok {
			if active {
				h.OnActivate(o)
			} else {
				h.OnDeactivate(o)
			}
		}
	}
}

// Compile-time check: GameObject must satisfy physics.Body.
var _ physics.Body = (*GameObject)(nil)

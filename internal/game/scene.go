package game

import "log/slog"

// Scene is a named collection of game objects with an activation lifecycle.
// One scene is active in the engine at a time; inactive scenes are neither
// updated nor rendered into snapshots.
//
// Scenes are owned by the engine and accessed only from the world loop
// goroutine.
type Scene struct {
	name    string
	objects []*GameObject
	active  bool
	log     *slog.Logger
}

// NewScene creates an empty, inactive scene.
func NewScene(name string) *Scene {
	return &Scene{
		name: name,
		log:  slog.With("scene", name),
	}
}

// Name returns the scene's name.
func (s *Scene) Name() string { return s.name }

// Active reports whether the scene is the engine's active scene.
func (s *Scene) Active() bool { return s.active }

// Add inserts obj into the scene. Adding the same object twice is a no-op.
func (s *Scene) Add(obj *GameObject) {
	for _, existing := range s.objects {
		if existing == obj {
			return
		}
	}
	s.objects = append(s.objects, obj)
	s.log.Debug("object added", "object", obj.Name(), "id", obj.ID())
}

// Remove deletes obj from the scene. Removing an absent object is a no-op.
func (s *Scene) Remove(obj *GameObject) {
	for i, existing := range s.objects {
		if existing == obj {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			s.log.Debug("object removed", "object", obj.Name(), "id", obj.ID())
			return
		}
	}
}

// Objects returns the scene's objects in insertion order. The returned slice
// is the scene's own backing array; callers must not mutate it.
func (s *Scene) Objects() []*GameObject { return s.objects }

// ByID returns the object with the given ID, or nil.
func (s *Scene) ByID(id string) *GameObject {
	for _, obj := range s.objects {
		if obj.ID() == id {
			return obj
		}
	}
	return nil
}

// ByName returns the first object with the given name, or nil.
func (s *Scene) ByName(name string) *GameObject {
	for _, obj := range s.objects {
		if obj.Name() == name {
			return obj
		}
	}
	return nil
}

// ByTag returns all objects carrying the given tag.
func (s *Scene) ByTag(tag string) []*GameObject {
	var out []*GameObject
	for _, obj := range s.objects {
		if obj.Tag() == tag {
			out = append(out, obj)
		}
	}
	return out
}

// Update advances all active objects by delta.
func (s *Scene) Update(delta float64) {
	for _, obj := range s.objects {
		if obj.Active() {
			obj.Update(delta)
		}
	}
}

// activate marks the scene active and notifies all objects.
func (s *Scene) activate() {
	s.active = true
	s.log.Info("scene activated")
	for _, obj := range s.objects {
		obj.setActive(true)
	}
}

// deactivate marks the scene inactive and notifies all objects.
func (s *Scene) deactivate() {
	s.active = false
	s.log.Info("scene deactivated")
	for _, obj := range s.objects {
		obj.setActive(false)
	}
}

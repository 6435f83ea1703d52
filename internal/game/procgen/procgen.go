// Package procgen generates dungeon-style levels: randomly placed rooms
// connected by L-shaped corridors, with weighted room types.
package procgen

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/game/physics"
)

// Room type names used by the default weight table.
const (
	RoomDefault  = "default"
	RoomTreasure = "treasure"
	RoomEnemy    = "enemy"
	RoomBoss     = "boss"
	RoomShop     = "shop"
)

// DefaultRoomWeights is the default room type distribution.
var DefaultRoomWeights = map[string]float64{
	RoomDefault:  0.5,
	RoomTreasure: 0.1,
	RoomEnemy:    0.25,
	RoomBoss:     0.05,
	RoomShop:     0.1,
}

// Room is a placed room. Center is the room's centre; Width/Height/Depth are
// full extents. Connections lists the indices of connected rooms.
type Room struct {
	Center      physics.Vector3
	Width       float64
	Height      float64
	Depth       float64
	Type        string
	Connections []int
}

// MinBounds returns the room's minimum corner.
func (r *Room) MinBounds() physics.Vector3 {
	return r.Center.Sub(physics.Vec3(r.Width/2, r.Height/2, r.Depth/2))
}

// MaxBounds returns the room's maximum corner.
func (r *Room) MaxBounds() physics.Vector3 {
	return r.Center.Add(physics.Vec3(r.Width/2, r.Height/2, r.Depth/2))
}

// Intersects reports whether r and other overlap when r is grown by buffer
// on every side. The buffer keeps rooms from touching.
func (r *Room) Intersects(other *Room, buffer float64) bool {
	minA := r.MinBounds().Sub(physics.Vec3(buffer, buffer, buffer))
	maxA := r.MaxBounds().Add(physics.Vec3(buffer, buffer, buffer))
	minB := other.MinBounds()
	maxB := other.MaxBounds()
	return minA.X <= maxB.X && maxA.X >= minB.X &&
		minA.Y <= maxB.Y && maxA.Y >= minB.Y &&
		minA.Z <= maxB.Z && maxA.Z >= minB.Z
}

// DistanceTo returns the distance between room centres.
func (r *Room) DistanceTo(other *Room) float64 {
	return r.Center.DistanceTo(other.Center)
}

// Corridor connects two rooms by index with an L-shaped path: along X first,
// then along Z.
type Corridor struct {
	StartRoom int
	EndRoom   int
	Width     float64
	Height    float64
	Path      []physics.Vector3
}

// Level is a generated layout.
type Level struct {
	Rooms     []*Room
	Corridors []*Corridor
}

// Generator places rooms and corridors inside fixed level bounds.
type Generator struct {
	MinRoomSize float64
	MaxRoomSize float64
	RoomWeights map[string]float64
	BoundsMin   physics.Vector3
	BoundsMax   physics.Vector3

	rng *rand.Rand
	log *slog.Logger
}

// NewGenerator returns a generator with the default size range, weight table
// and bounds, seeded for reproducible layouts.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		MinRoomSize: 5,
		MaxRoomSize: 15,
		RoomWeights: DefaultRoomWeights,
		BoundsMin:   physics.Vec3(-50, -10, -50),
		BoundsMax:   physics.Vec3(50, 10, 50),
		rng:         rand.New(rand.NewSource(seed)),
		log:         slog.With("system", "procgen"),
	}
}

// Generate produces a level with up to numRooms rooms. Placement gives up
// after 10 attempts per requested room, so dense bounds may yield fewer.
func (g *Generator) Generate(numRooms int) *Level {
	level := &Level{}
	g.placeRooms(level, numRooms)
	g.connectRooms(level)
	g.log.Info("level generated", "rooms", len(level.Rooms), "corridors", len(level.Corridors))
	return level
}

func (g *Generator) placeRooms(level *Level, numRooms int) {
	maxAttempts := numRooms * 10
	for attempts := 0; len(level.Rooms) < numRooms && attempts < maxAttempts; attempts++ {
		width := g.uniform(g.MinRoomSize, g.MaxRoomSize)
		height := g.uniform(g.MinRoomSize/2, g.MaxRoomSize/2)
		depth := g.uniform(g.MinRoomSize, g.MaxRoomSize)

		room := &Room{
			Center: physics.Vec3(
				g.uniform(g.BoundsMin.X+width/2, g.BoundsMax.X-width/2),
				g.uniform(g.BoundsMin.Y+height/2, g.BoundsMax.Y-height/2),
				g.uniform(g.BoundsMin.Z+depth/2, g.BoundsMax.Z-depth/2),
			),
			Width:  width,
			Height: height,
			Depth:  depth,
			Type:   g.pickRoomType(),
		}

		overlaps := false
		for _, existing := range level.Rooms {
			if room.Intersects(existing, 1.0) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			level.Rooms = append(level.Rooms, room)
		}
	}
	if len(level.Rooms) < numRooms {
		g.log.Warn("room placement gave up early", "placed", len(level.Rooms), "requested", numRooms)
	}
}

func (g *Generator) pickRoomType() string {
	r := g.rng.Float64()
	cumulative := 0.0

	// Stable iteration so identical seeds give identical levels.
	types := make([]string, 0, len(g.RoomWeights))
	for t := range g.RoomWeights {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		cumulative += g.RoomWeights[t]
		if r <= cumulative {
			return t
		}
	}
	return RoomDefault
}

type edge struct {
	a, b int
	dist float64
}

// connectRooms builds a minimum spanning tree over room centres (Kruskal),
// then adds roughly 10% extra short edges as loops.
func (g *Generator) connectRooms(level *Level) {
	n := len(level.Rooms)
	if n < 2 {
		return
	}

	var edges []edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, edge{i, j, level.Rooms[i].DistanceTo(level.Rooms[j])})
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].dist < edges[j].dist })

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	inTree := make(map[[2]int]bool)
	treeEdges := 0
	for _, e := range edges {
		if find(e.a) == find(e.b) {
			continue
		}
		parent[find(e.a)] = find(e.b)
		g.connect(level, e.a, e.b)
		inTree[[2]int{e.a, e.b}] = true
		treeEdges++
	}

	// Extra loops: the shortest unused edges, about a tenth of the tree.
	extra := int(math.Max(1, float64(treeEdges)*0.1))
	for _, e := range edges {
		if extra == 0 {
			break
		}
		if inTree[[2]int{e.a, e.b}] {
			continue
		}
		g.connect(level, e.a, e.b)
		extra--
	}
}

func (g *Generator) connect(level *Level, a, b int) {
	start := level.Rooms[a].Center
	end := level.Rooms[b].Center
	level.Corridors = append(level.Corridors, &Corridor{
		StartRoom: a,
		EndRoom:   b,
		Width:     2,
		Height:    3,
		Path: []physics.Vector3{
			start,
			physics.Vec3(end.X, start.Y, start.Z),
			end,
		},
	})
	level.Rooms[a].Connections = append(level.Rooms[a].Connections, b)
	level.Rooms[b].Connections = append(level.Rooms[b].Connections, a)
}

// Populate instantiates the level into a scene: one object with a box
// collider per room, one per corridor segment, plus type-specific
// decorations (chests, enemies, a boss, a shopkeeper with wares).
func (g *Generator) Populate(level *Level, scene *game.Scene, phys *physics.System) {
	for i, room := range level.Rooms {
		obj := game.NewObject("room_"+strconv.Itoa(i), "room_"+room.Type)
		obj.SetPosition(room.Center)
		obj.SetProperty("room_type", room.Type)
		scene.Add(obj)
		phys.AddCollider(physics.NewBox(obj, physics.Vec3(room.Width, room.Height, room.Depth)))

		g.decorate(room, scene, phys)
	}

	for i, corridor := range level.Corridors {
		for j := 0; j+1 < len(corridor.Path); j++ {
			start, end := corridor.Path[j], corridor.Path[j+1]
			span := end.Sub(start)

			obj := game.NewObject("corridor_"+strconv.Itoa(i)+"_"+strconv.Itoa(j), "corridor")
			obj.SetPosition(start.Add(end).Scale(0.5))
			scene.Add(obj)
			phys.AddCollider(physics.NewBox(obj, physics.Vec3(
				math.Max(corridor.Width, math.Abs(span.X)),
				corridor.Height,
				math.Max(corridor.Width, math.Abs(span.Z)),
			)))
		}
	}
}

func (g *Generator) decorate(room *Room, scene *game.Scene, phys *physics.System) {
	switch room.Type {
	case RoomTreasure:
		chest := game.NewObject("chest", "treasure_chest")
		chest.SetPosition(room.Center)
		scene.Add(chest)
		phys.AddCollider(physics.NewBox(chest, physics.Vec3(1, 1, 1)))

	case RoomEnemy:
		minB, maxB := room.MinBounds(), room.MaxBounds()
		count := g.rng.Intn(4) + 2
		for i := 0; i < count; i++ {
			enemy := game.NewObject("enemy_"+strconv.Itoa(i), "enemy")
			enemy.SetPosition(physics.Vec3(
				g.uniform(minB.X+1, maxB.X-1),
				room.Center.Y,
				g.uniform(minB.Z+1, maxB.Z-1),
			))
			scene.Add(enemy)
			phys.AddCollider(physics.NewSphere(enemy, 0.5))
		}

	case RoomBoss:
		boss := game.NewObject("boss", "boss")
		boss.SetPosition(room.Center)
		boss.SetScale(physics.Vec3(2, 2, 2))
		scene.Add(boss)
		phys.AddCollider(physics.NewSphere(boss, 1.5))

	case RoomShop:
		keeper := game.NewObject("shopkeeper", "shopkeeper")
		keeper.SetPosition(room.Center)
		scene.Add(keeper)
		phys.AddCollider(physics.NewSphere(keeper, 0.5))

		count := g.rng.Intn(3) + 2
		for i := 0; i < count; i++ {
			angle := float64(i) / float64(count) * 2 * math.Pi
			item := game.NewObject("shop_item_"+strconv.Itoa(i), "shop_item")
			item.SetPosition(physics.Vec3(
				room.Center.X+math.Cos(angle)*2,
				room.Center.Y,
				room.Center.Z+math.Sin(angle)*2,
			))
			scene.Add(item)
			phys.AddCollider(physics.NewBox(item, physics.Vec3(0.5, 0.5, 0.5)))
		}
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Float64()*(hi-lo)
}

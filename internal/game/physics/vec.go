// Package physics provides the collision subsystem of the Ludens engine:
// 3D vectors, sphere and box collision volumes, and a [System] that performs
// pairwise detection with layer filtering, collision callbacks, and simple
// positional resolution.
//
// The System is not safe for concurrent use on its own; the engine calls it
// exclusively from the world loop goroutine.
package physics

import "math"

// Vector3 is a 3D vector with float64 components. It is a value type — all
// operations return a new vector and never mutate the receiver.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec3 is shorthand for constructing a [Vector3].
func Vec3(x, y, z float64) Vector3 { return Vector3{X: x, Y: y, Z: z} }

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v multiplied by scalar s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Div returns v divided by scalar s. Division by zero yields the zero vector.
func (v Vector3) Div(s float64) Vector3 {
	if s == 0 {
		return Vector3{}
	}
	return Vector3{v.X / s, v.Y / s, v.Z / s}
}

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product of v and o.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Magnitude returns the Euclidean length of v.
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns the unit vector in the direction of v.
// The zero vector normalizes to itself.
func (v Vector3) Normalize() Vector3 {
	mag := v.Magnitude()
	if mag > 0 {
		return v.Div(mag)
	}
	return Vector3{}
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vector3) DistanceTo(o Vector3) float64 {
	return v.Sub(o).Magnitude()
}

// Lerp returns the linear interpolation between v and o at parameter t,
// where t=0 yields v and t=1 yields o. t is not clamped.
func (v Vector3) Lerp(o Vector3, t float64) Vector3 {
	return v.Add(o.Sub(v).Scale(t))
}

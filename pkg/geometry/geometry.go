// Package geometry provides the basic 2D types shared across the screen
// pipeline: bounding boxes in (x, y, w, h) form and integer points used as
// capture offsets.
package geometry

import "image"

// Point is a 2D point with integer pixel coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Rect is an axis-aligned bounding box in (x, y, width, height) form.
// This matches the OCR host's wire format and is converted to the
// stdlib's min/max form only at image-crop boundaries.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Offset returns the rectangle translated by p.
func (r Rect) Offset(p Point) Rect {
	return Rect{X: r.X + p.X, Y: r.Y + p.Y, W: r.W, H: r.H}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// ToImage converts to the stdlib's min/max rectangle form.
func (r Rect) ToImage() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// FromImage converts a stdlib rectangle to (x, y, w, h) form.
func FromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Clip restricts r to the given bounds, shrinking it as needed.
func (r Rect) Clip(bounds image.Rectangle) Rect {
	return FromImage(r.ToImage().Intersect(bounds))
}

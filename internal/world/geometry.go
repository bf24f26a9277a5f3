package world

// Point2D is a position or extent in map coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point2D) Add(o Point2D) Point2D {
	return Point2D{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point2D) Sub(o Point2D) Point2D {
	return Point2D{X: p.X - o.X, Y: p.Y - o.Y}
}

// Rect2D is an axis-aligned rectangle described by two opposite corners.
// The corners may be given in any order; Min and Max normalize them.
type Rect2D struct {
	A Point2D `json:"a"`
	B Point2D `json:"b"`
}

// RectAt builds a rectangle from a corner location and a size extent.
func RectAt(location, size Point2D) Rect2D {
	return Rect2D{A: location, B: location.Add(size)}
}

func (r Rect2D) Min() Point2D {
	return Point2D{X: min(r.A.X, r.B.X), Y: min(r.A.Y, r.B.Y)}
}

func (r Rect2D) Max() Point2D {
	return Point2D{X: max(r.A.X, r.B.X), Y: max(r.A.Y, r.B.Y)}
}

// Collides reports whether the two rectangles overlap. Bounds are
// inclusive, so rectangles that merely share an edge still collide.
func (r Rect2D) Collides(o Rect2D) bool {
	rMin, rMax := r.Min(), r.Max()
	oMin, oMax := o.Min(), o.Max()
	return rMin.X <= oMax.X && oMin.X <= rMax.X &&
		rMin.Y <= oMax.Y && oMin.Y <= rMax.Y
}

// RGB is a cosmetic color carried through to clients unchanged.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

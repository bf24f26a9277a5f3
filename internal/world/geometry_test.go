package world

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestRect2D_MinMax(t *testing.T) {
	// Corners may arrive in any order
	r := Rect2D{A: Point2D{X: 10, Y: 2}, B: Point2D{X: 3, Y: 8}}
	testutil.AssertEqual(t, "min", r.Min(), Point2D{X: 3, Y: 2})
	testutil.AssertEqual(t, "max", r.Max(), Point2D{X: 10, Y: 8})
}

func TestRect2D_Collides(t *testing.T) {
	base := RectAt(Point2D{X: 100, Y: 100}, Point2D{X: 10, Y: 10})

	tests := map[string]struct {
		other Rect2D
		want  bool
	}{
		"overlapping": {
			other: RectAt(Point2D{X: 105, Y: 105}, Point2D{X: 10, Y: 10}),
			want:  true,
		},
		"contained": {
			other: RectAt(Point2D{X: 102, Y: 102}, Point2D{X: 2, Y: 2}),
			want:  true,
		},
		"touching edge": {
			other: RectAt(Point2D{X: 110, Y: 100}, Point2D{X: 10, Y: 10}),
			want:  true,
		},
		"touching corner": {
			other: RectAt(Point2D{X: 110, Y: 110}, Point2D{X: 10, Y: 10}),
			want:  true,
		},
		"one unit clear": {
			other: RectAt(Point2D{X: 111, Y: 100}, Point2D{X: 10, Y: 10}),
			want:  false,
		},
		"overlap on x only": {
			other: RectAt(Point2D{X: 100, Y: 200}, Point2D{X: 10, Y: 10}),
			want:  false,
		},
		"overlap on y only": {
			other: RectAt(Point2D{X: 200, Y: 100}, Point2D{X: 10, Y: 10}),
			want:  false,
		},
		"zero thickness blocker": {
			other: Rect2D{A: Point2D{X: 110, Y: 0}, B: Point2D{X: 110, Y: 250}},
			want:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "collides", base.Collides(tt.other), tt.want)
			// Overlap is symmetric
			testutil.AssertEqual(t, "collides reversed", tt.other.Collides(base), tt.want)
		})
	}
}

func TestPoint2D_Arithmetic(t *testing.T) {
	a := Point2D{X: 3, Y: 4}
	b := Point2D{X: 1, Y: 2}
	testutil.AssertEqual(t, "add", a.Add(b), Point2D{X: 4, Y: 6})
	testutil.AssertEqual(t, "sub", a.Sub(b), Point2D{X: 2, Y: 2})
}

func TestMap_Validate(t *testing.T) {
	tests := map[string]struct {
		m       Map
		wantErr string
	}{
		"valid": {
			m: Map{
				ID:   1,
				Size: Point2D{X: 250, Y: 250},
				Obstacles: []Obstacle{
					{ID: 1, Location: Point2D{X: 120, Y: 0}, Size: Point2D{X: 5, Y: 250}, Blocking: true},
				},
			},
		},
		"missing id": {
			m:       Map{Size: Point2D{X: 10, Y: 10}},
			wantErr: "id must be positive",
		},
		"flat size": {
			m:       Map{ID: 1, Size: Point2D{X: 10, Y: 0}},
			wantErr: "size must be positive",
		},
		"obstacle outside bounds": {
			m: Map{
				ID:   1,
				Size: Point2D{X: 100, Y: 100},
				Obstacles: []Obstacle{
					{ID: 1, Location: Point2D{X: 95, Y: 0}, Size: Point2D{X: 10, Y: 10}},
				},
			},
			wantErr: "outside map bounds",
		},
		"portal without destination": {
			m: Map{
				ID:      1,
				Size:    Point2D{X: 100, Y: 100},
				Portals: []Portal{{ID: 1}},
			},
			wantErr: "destination is required",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			testutil.AssertErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidName(t *testing.T) {
	tests := map[string]bool{
		"player_one":  true,
		"ABC123":      true,
		"short":       false,
		"":            false,
		"with space":  false,
		"with-hyphen": false,
		"exactly32_characters_long_name__": true,
		"this_name_is_thirty_three_chars__": false,
	}

	for name, want := range tests {
		testutil.AssertEqual(t, name, ValidName(name), want)
	}
}

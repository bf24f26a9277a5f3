package world

import (
	"fmt"
	"regexp"
	"time"

	"github.com/pixil98/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// Usernames and character display names share the same constraint.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]{6,32}$`)

// ValidName reports whether s is an acceptable account or character name.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

type ObstacleKind int

const (
	ObstacleWall ObstacleKind = iota
)

func (k ObstacleKind) MarshalText() ([]byte, error) {
	switch k {
	case ObstacleWall:
		return []byte("wall"), nil
	default:
		return nil, fmt.Errorf("unknown obstacle kind: %d", int(k))
	}
}

func (k *ObstacleKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "wall":
		*k = ObstacleWall
	default:
		return fmt.Errorf("unknown obstacle kind: %s", text)
	}
	return nil
}

// Obstacle is a rectangular map feature. Blocking obstacles stop movement.
type Obstacle struct {
	ID       int64        `json:"id"`
	Kind     ObstacleKind `json:"kind"`
	Location Point2D      `json:"location"`
	Size     Point2D      `json:"size"`
	Blocking bool         `json:"blocking"`
}

func (o Obstacle) Rect() Rect2D {
	return RectAt(o.Location, o.Size)
}

// Portal links one map region to a destination portal, possibly on
// another map. Destinations are ids resolved against the loaded map set.
type Portal struct {
	ID           int64   `json:"id"`
	Location     Point2D `json:"location"`
	Size         Point2D `json:"size"`
	DestMapID    int64   `json:"dest_map_id"`
	DestPortalID int64   `json:"dest_portal_id"`
}

func (p Portal) Rect() Rect2D {
	return RectAt(p.Location, p.Size)
}

// Map is the persisted shape of one playfield: its extent, obstacle and
// portal geometry, and whether new characters spawn here. The presence
// set of live characters belongs to the world state, not the map asset.
type Map struct {
	ID        int64      `json:"id"`
	Size      Point2D    `json:"size"`
	Spawn     bool       `json:"spawn"`
	Obstacles []Obstacle `json:"obstacles,omitempty"`
	Portals   []Portal   `json:"portals,omitempty"`
}

func (m *Map) Validate() error {
	el := errors.NewErrorList()

	if m.ID <= 0 {
		el.Add(fmt.Errorf("id must be positive"))
	}
	if m.Size.X <= 0 || m.Size.Y <= 0 {
		el.Add(fmt.Errorf("size must be positive in both dimensions"))
	}

	for i, o := range m.Obstacles {
		r := o.Rect()
		if r.Min().X < 0 || r.Min().Y < 0 || r.Max().X > m.Size.X || r.Max().Y > m.Size.Y {
			el.Add(fmt.Errorf("obstacle %d: outside map bounds", i))
		}
	}
	for i, p := range m.Portals {
		if p.DestMapID <= 0 || p.DestPortalID <= 0 {
			el.Add(fmt.Errorf("portal %d: destination is required", i))
		}
	}

	return el.Err()
}

// Clone returns a deep copy sharing no slices with the receiver.
func (m *Map) Clone() *Map {
	c := *m
	c.Obstacles = append([]Obstacle(nil), m.Obstacles...)
	c.Portals = append([]Portal(nil), m.Portals...)
	return &c
}

// Boundaries returns four rectangles sitting one unit outside the
// playfield, one per edge, for use as movement blockers.
func (m *Map) Boundaries() [4]Rect2D {
	return [4]Rect2D{
		{A: Point2D{X: -1, Y: 0}, B: Point2D{X: -1, Y: m.Size.Y}},             // left
		{A: Point2D{X: m.Size.X, Y: 0}, B: Point2D{X: m.Size.X, Y: m.Size.Y}}, // right
		{A: Point2D{X: 0, Y: -1}, B: Point2D{X: m.Size.X, Y: -1}},             // top
		{A: Point2D{X: 0, Y: m.Size.Y}, B: Point2D{X: m.Size.X, Y: m.Size.Y}}, // bottom
	}
}

// Character is one playable avatar. It is owned by its user and, while
// entered, is also present on exactly one map. MapID is the map the
// character spawns on; while entered it tracks the current map.
type Character struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	Name     string  `json:"name"`
	Color    RGB     `json:"color"`
	Size     Point2D `json:"size"`
	Location Point2D `json:"location"`
	Speed    float64 `json:"speed"`
	MapID    int64   `json:"map_id"`

	lastMove time.Time
}

// Defaults for newly created characters.
const (
	DefaultCharacterSpeed = 100
	defaultCharacterEdge  = 10
)

// NewCharacter builds a fresh character at the map origin with default
// footprint and speed.
func NewCharacter(id, userID int64, name string, color RGB, mapID int64) *Character {
	return &Character{
		ID:     id,
		UserID: userID,
		Name:   name,
		Color:  color,
		Size:   Point2D{X: defaultCharacterEdge, Y: defaultCharacterEdge},
		Speed:  DefaultCharacterSpeed,
		MapID:  mapID,
	}
}

func (c *Character) Validate() error {
	el := errors.NewErrorList()

	if c.ID <= 0 {
		el.Add(fmt.Errorf("id must be positive"))
	}
	if c.UserID <= 0 {
		el.Add(fmt.Errorf("user_id must be positive"))
	}
	if !ValidName(c.Name) {
		el.Add(fmt.Errorf("name must be 6-32 characters of [A-Za-z0-9_]"))
	}
	if c.Size.X <= 0 || c.Size.Y <= 0 {
		el.Add(fmt.Errorf("size must be positive in both dimensions"))
	}
	if c.Speed <= 0 {
		el.Add(fmt.Errorf("speed must be positive"))
	}

	return el.Err()
}

func (c *Character) Footprint() Rect2D {
	return RectAt(c.Location, c.Size)
}

// Clone returns a copy safe to mutate as live world state.
func (c *Character) Clone() *Character {
	cc := *c
	return &cc
}

// User is one account. It owns its characters; the characters themselves
// live in their own store, referenced here by id.
type User struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	PasswordHash []byte  `json:"password_hash"`
	CharacterIDs []int64 `json:"character_ids,omitempty"`
}

func (u *User) Validate() error {
	el := errors.NewErrorList()

	if u.ID <= 0 {
		el.Add(fmt.Errorf("id must be positive"))
	}
	if !ValidName(u.Username) {
		el.Add(fmt.Errorf("username must be 6-32 characters of [A-Za-z0-9_]"))
	}
	if len(u.PasswordHash) == 0 {
		el.Add(fmt.Errorf("password_hash must be set"))
	}

	return el.Err()
}

// Clone returns a deep copy sharing no slices with the receiver.
func (u *User) Clone() *User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.CharacterIDs = append([]int64(nil), u.CharacterIDs...)
	return &c
}

// Verify reports whether password matches the stored credential.
func (u *User) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// HashPassword derives the stored credential for a new account.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

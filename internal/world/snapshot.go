package world

// CharacterSnapshot is an immutable view of a character, safe to hand to
// codecs and clients.
type CharacterSnapshot struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Color    RGB     `json:"color"`
	Size     Point2D `json:"size"`
	Location Point2D `json:"location"`
	Speed    float64 `json:"speed"`
	MapID    int64   `json:"map_id"`
}

// MapSnapshot is an immutable view of a map and everyone on it.
type MapSnapshot struct {
	ID         int64               `json:"id"`
	Size       Point2D             `json:"size"`
	Obstacles  []Obstacle          `json:"obstacles,omitempty"`
	Portals    []Portal            `json:"portals,omitempty"`
	Characters []CharacterSnapshot `json:"characters,omitempty"`
}

// AccountSnapshot is an immutable view of a user and its characters.
type AccountSnapshot struct {
	ID         int64               `json:"id"`
	Username   string              `json:"username"`
	Characters []CharacterSnapshot `json:"characters,omitempty"`
}

func (c *Character) Snapshot() CharacterSnapshot {
	return CharacterSnapshot{
		ID:       c.ID,
		Name:     c.Name,
		Color:    c.Color,
		Size:     c.Size,
		Location: c.Location,
		Speed:    c.Speed,
		MapID:    c.MapID,
	}
}

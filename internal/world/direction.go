package world

import "fmt"

// Direction is a cardinal movement request. Y grows downward.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLeft
	DirectionRight
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	switch d {
	case DirectionNone, DirectionLeft, DirectionRight, DirectionUp, DirectionDown:
		return []byte(d.String()), nil
	default:
		return nil, fmt.Errorf("unknown direction: %d", int(d))
	}
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*d = DirectionNone
	case "left":
		*d = DirectionLeft
	case "right":
		*d = DirectionRight
	case "up":
		*d = DirectionUp
	case "down":
		*d = DirectionDown
	default:
		return fmt.Errorf("unknown direction: %s", text)
	}
	return nil
}

package world

import "fmt"

const (
	// budgetWindowSeconds caps how much elapsed time a single budgeted
	// move may spend; an idle client cannot bank distance beyond it.
	budgetWindowSeconds = 0.5

	// fineStep is the distance of a single unbudgeted step.
	fineStep = 1

	// stopGap is the clearance kept between a character's leading edge
	// and whatever stopped it. Collision bounds are inclusive, so a
	// zero gap would still count as overlap.
	stopGap = 1
)

// MoveResult describes the outcome of one movement request.
type MoveResult struct {
	// MapID is the map the character ended on.
	MapID int64
	// FromMapID is the map the move started on. Differs from MapID only
	// when the character stepped through a portal.
	FromMapID int64
	// Location is the character's final position.
	Location Point2D
}

// Transitioned reports whether the move crossed a portal.
func (r MoveResult) Transitioned() bool {
	return r.MapID != r.FromMapID
}

// Move advances an entered character as far as its speed budget and the
// map's geometry allow, then announces the change to the affected maps.
//
// The elapsed window is consumed up front: the character's move
// timestamp advances no matter how far it travels, so a retried request
// cannot spend the same window twice. With useBudget the distance is the
// full speed budget, but only if the window is at most 500ms; stale
// windows move nothing. Without it the distance is a single fine step,
// still capped by the budget.
func (s *State) Move(charID int64, dir Direction, useBudget bool) (MoveResult, error) {
	s.mu.Lock()

	char, ok := s.chars[charID]
	if !ok {
		s.mu.Unlock()
		return MoveResult{}, fmt.Errorf("character %d is not entered", charID)
	}

	now := s.now()
	elapsed := now.Sub(char.lastMove).Seconds()
	char.lastMove = now

	budget := char.Speed * elapsed
	var dist float64
	if useBudget {
		if elapsed <= budgetWindowSeconds {
			dist = budget
		}
	} else {
		dist = min(fineStep, budget)
	}

	from := s.maps[char.MapID]
	if dir != DirectionNone && dist > 0 {
		blockers := blockerRects(from.def)
		foot := char.Footprint()
		switch dir {
		case DirectionLeft:
			char.Location.X += resolveSweepX(foot, -dist, blockers)
		case DirectionRight:
			char.Location.X += resolveSweepX(foot, dist, blockers)
		case DirectionUp:
			char.Location.Y += resolveSweepY(foot, -dist, blockers)
		case DirectionDown:
			char.Location.Y += resolveSweepY(foot, dist, blockers)
		}
	}

	to := from
	if dest, ok := s.portalHitLocked(from.def, char); ok {
		to = s.maps[dest.DestMapID]
		target, _ := to.def.portal(dest.DestPortalID)

		delete(from.present, char.ID)
		char.MapID = to.def.ID
		char.Location = target.Location
		to.present[char.ID] = struct{}{}
	}

	res := MoveResult{
		MapID:     to.def.ID,
		FromMapID: from.def.ID,
		Location:  char.Location,
	}

	snaps := []MapSnapshot{s.snapshotLocked(to)}
	if to != from {
		snaps = append(snaps, s.snapshotLocked(from))
	}
	s.mu.Unlock()

	for _, snap := range snaps {
		s.bc.MapChanged(snap)
	}
	return res, nil
}

// portalHitLocked returns the first portal whose rectangle the
// character's footprint now overlaps.
func (s *State) portalHitLocked(m *Map, char *Character) (Portal, bool) {
	foot := char.Footprint()
	for _, p := range m.Portals {
		if p.Rect().Collides(foot) {
			return p, true
		}
	}
	return Portal{}, false
}

// blockerRects collects everything a move can stop against: the four
// boundary edges plus every blocking obstacle.
func blockerRects(m *Map) []Rect2D {
	bounds := m.Boundaries()
	rects := make([]Rect2D, 0, len(bounds)+len(m.Obstacles))
	rects = append(rects, bounds[:]...)
	for _, o := range m.Obstacles {
		if o.Blocking {
			rects = append(rects, o.Rect())
		}
	}
	return rects
}

// resolveSweepX returns how far along X the footprint may actually
// travel. The sweep rectangle spans the current footprint to the fully
// desired one; every blocker overlapping it pulls the leading edge back
// to rest one gap short of the blocker. The result never reverses the
// direction of travel.
func resolveSweepX(foot Rect2D, dx float64, blockers []Rect2D) float64 {
	fMin, fMax := foot.Min(), foot.Max()

	if dx > 0 {
		lead := fMax.X
		target := lead + dx
		sweep := Rect2D{A: fMin, B: Point2D{X: target, Y: fMax.Y}}
		for _, b := range blockers {
			if !b.Collides(sweep) {
				continue
			}
			if stop := b.Min().X - stopGap; stop < target {
				target = stop
			}
		}
		return max(target, lead) - lead
	}

	lead := fMin.X
	target := lead + dx
	sweep := Rect2D{A: Point2D{X: target, Y: fMin.Y}, B: fMax}
	for _, b := range blockers {
		if !b.Collides(sweep) {
			continue
		}
		if stop := b.Max().X + stopGap; stop > target {
			target = stop
		}
	}
	return min(target, lead) - lead
}

// resolveSweepY is resolveSweepX along the vertical axis.
func resolveSweepY(foot Rect2D, dy float64, blockers []Rect2D) float64 {
	fMin, fMax := foot.Min(), foot.Max()

	if dy > 0 {
		lead := fMax.Y
		target := lead + dy
		sweep := Rect2D{A: fMin, B: Point2D{X: fMax.X, Y: target}}
		for _, b := range blockers {
			if !b.Collides(sweep) {
				continue
			}
			if stop := b.Min().Y - stopGap; stop < target {
				target = stop
			}
		}
		return max(target, lead) - lead
	}

	lead := fMin.Y
	target := lead + dy
	sweep := Rect2D{A: Point2D{X: fMin.X, Y: target}, B: fMax}
	for _, b := range blockers {
		if !b.Collides(sweep) {
			continue
		}
		if stop := b.Max().Y + stopGap; stop > target {
			target = stop
		}
	}
	return min(target, lead) - lead
}

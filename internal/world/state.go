package world

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Broadcaster receives a map snapshot every time a map's contents change.
// Implementations fan the snapshot out to every connection on that map.
type Broadcaster interface {
	MapChanged(snapshot MapSnapshot)
}

// State is the authoritative in-memory world: every map, every entered
// character, and the presence relation between them. Enter, Leave and
// Move are the only operations that mutate presence, keeping the
// character's map reference and the map's presence set in sync.
type State struct {
	mu    sync.RWMutex
	maps  map[int64]*mapInstance
	chars map[int64]*Character
	bc    Broadcaster
	now   func() time.Time
}

type mapInstance struct {
	def     *Map
	present map[int64]struct{}
}

type StateOpt func(*State)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) StateOpt {
	return func(s *State) {
		s.now = now
	}
}

// NewState builds the world from loaded map assets. The maps must
// already be private copies; the state takes ownership of them. Portal
// destinations are resolved up front so a bad link fails at startup
// rather than mid-traversal.
func NewState(maps []*Map, bc Broadcaster, opts ...StateOpt) (*State, error) {
	s := &State{
		maps:  make(map[int64]*mapInstance, len(maps)),
		chars: map[int64]*Character{},
		bc:    bc,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, m := range maps {
		if _, ok := s.maps[m.ID]; ok {
			return nil, fmt.Errorf("duplicate map id %d", m.ID)
		}
		s.maps[m.ID] = &mapInstance{
			def:     m,
			present: map[int64]struct{}{},
		}
	}

	for _, m := range maps {
		for _, p := range m.Portals {
			dest, ok := s.maps[p.DestMapID]
			if !ok {
				return nil, fmt.Errorf("map %d portal %d: destination map %d not found", m.ID, p.ID, p.DestMapID)
			}
			if _, ok := dest.def.portal(p.DestPortalID); !ok {
				return nil, fmt.Errorf("map %d portal %d: destination portal %d not found on map %d", m.ID, p.ID, p.DestPortalID, p.DestMapID)
			}
		}
	}

	return s, nil
}

func (m *Map) portal(id int64) (Portal, bool) {
	for _, p := range m.Portals {
		if p.ID == id {
			return p, true
		}
	}
	return Portal{}, false
}

// Enter makes the character live on the given map and announces the
// change to the map's occupants. The state takes ownership of char.
func (s *State) Enter(char *Character, mapID int64) error {
	s.mu.Lock()

	mi, ok := s.maps[mapID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("map %d not found", mapID)
	}
	if _, ok := s.chars[char.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("character %d is already entered", char.ID)
	}

	char.MapID = mapID
	char.lastMove = s.now()
	s.chars[char.ID] = char
	mi.present[char.ID] = struct{}{}

	snap := s.snapshotLocked(mi)
	s.mu.Unlock()

	s.bc.MapChanged(snap)
	return nil
}

// Leave removes the character from its current map and announces the
// change. Leaving while not entered is a no-op.
func (s *State) Leave(charID int64) {
	s.mu.Lock()

	char, ok := s.chars[charID]
	if !ok {
		s.mu.Unlock()
		return
	}

	mi := s.maps[char.MapID]
	delete(mi.present, charID)
	delete(s.chars, charID)
	char.MapID = 0

	snap := s.snapshotLocked(mi)
	s.mu.Unlock()

	s.bc.MapChanged(snap)
}

// Character returns a snapshot of an entered character.
func (s *State) Character(charID int64) (CharacterSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	char, ok := s.chars[charID]
	if !ok {
		return CharacterSnapshot{}, false
	}
	return char.Snapshot(), true
}

// Snapshot returns an immutable view of one map and its occupants.
func (s *State) Snapshot(mapID int64) (MapSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mi, ok := s.maps[mapID]
	if !ok {
		return MapSnapshot{}, fmt.Errorf("map %d not found", mapID)
	}
	return s.snapshotLocked(mi), nil
}

// snapshotLocked copies everything the caller could otherwise mutate.
func (s *State) snapshotLocked(mi *mapInstance) MapSnapshot {
	snap := MapSnapshot{
		ID:        mi.def.ID,
		Size:      mi.def.Size,
		Obstacles: append([]Obstacle(nil), mi.def.Obstacles...),
		Portals:   append([]Portal(nil), mi.def.Portals...),
	}

	for id := range mi.present {
		snap.Characters = append(snap.Characters, s.chars[id].Snapshot())
	}
	sort.Slice(snap.Characters, func(i, j int) bool {
		return snap.Characters[i].ID < snap.Characters[j].ID
	})

	return snap
}

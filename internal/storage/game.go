package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pixil98/go-realm/internal/world"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// GameStore is the persistence boundary the handlers talk to: users
// owning characters, and the map set loaded at startup. Everything it
// hands out is a private copy; callers never share object graphs with
// the store's cache.
type GameStore struct {
	users *FileStore[*world.User]
	chars *FileStore[*world.Character]
	maps  *FileStore[*world.Map]

	mu         sync.Mutex
	nextUserID int64
	nextCharID int64
	byUsername map[string]int64
	byCharName map[string]int64
}

func NewGameStore(users *FileStore[*world.User], chars *FileStore[*world.Character], maps *FileStore[*world.Map]) (*GameStore, error) {
	s := &GameStore{
		users:      users,
		chars:      chars,
		maps:       maps,
		nextUserID: users.MaxID() + 1,
		nextCharID: chars.MaxID() + 1,
		byUsername: map[string]int64{},
		byCharName: map[string]int64{},
	}

	for id, u := range users.GetAll() {
		key := strings.ToLower(u.Username)
		if other, ok := s.byUsername[key]; ok {
			return nil, fmt.Errorf("users %d and %d share username %q", other, id, u.Username)
		}
		s.byUsername[key] = id
	}

	for id, c := range chars.GetAll() {
		key := strings.ToLower(c.Name)
		if other, ok := s.byCharName[key]; ok {
			return nil, fmt.Errorf("characters %d and %d share name %q", other, id, c.Name)
		}
		s.byCharName[key] = id

		if users.Get(c.UserID) == nil {
			return nil, fmt.Errorf("character %d: owner %d not found", id, c.UserID)
		}
		if maps.Get(c.MapID) == nil {
			return nil, fmt.Errorf("character %d: map %d not found", id, c.MapID)
		}
	}

	return s, nil
}

func (s *GameStore) FindUserByUsername(_ context.Context, username string) (*world.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	u := s.users.Get(id)
	if u == nil {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *GameStore) GetUser(_ context.Context, id int64) (*world.User, error) {
	u := s.users.Get(id)
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *GameStore) GetCharacter(_ context.Context, id int64) (*world.Character, error) {
	c := s.chars.Get(id)
	if c == nil {
		return nil, fmt.Errorf("character %d: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

// FindCharacterByName resolves a display name. The index lookup and the
// record read share one critical section so a concurrent delete cannot
// slip between them.
func (s *GameStore) FindCharacterByName(_ context.Context, name string) (*world.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCharName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("character %q: %w", name, ErrNotFound)
	}
	c := s.chars.Get(id)
	if c == nil {
		return nil, fmt.Errorf("character %q: %w", name, ErrNotFound)
	}
	return c.Clone(), nil
}

// CreateUser persists a new account. The username must be free.
func (s *GameStore) CreateUser(_ context.Context, username string, passwordHash []byte) (*world.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := s.byUsername[key]; ok {
		return nil, fmt.Errorf("user %q: %w", username, ErrExists)
	}

	u := &world.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
	}
	if err := s.users.Save(u.ID, u); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}

	s.nextUserID++
	s.byUsername[key] = u.ID
	return u.Clone(), nil
}

// CreateCharacter persists a new character for a user and records the
// ownership on the user row. The display name must be free.
func (s *GameStore) CreateCharacter(_ context.Context, userID int64, name string, color world.RGB, mapID int64) (*world.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := s.users.Get(userID)
	if owner == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if s.maps.Get(mapID) == nil {
		return nil, fmt.Errorf("map %d: %w", mapID, ErrNotFound)
	}

	key := strings.ToLower(name)
	if _, ok := s.byCharName[key]; ok {
		return nil, fmt.Errorf("character %q: %w", name, ErrExists)
	}

	c := world.NewCharacter(s.nextCharID, userID, name, color, mapID)
	if err := s.chars.Save(c.ID, c); err != nil {
		return nil, fmt.Errorf("saving character: %w", err)
	}

	owner = owner.Clone()
	owner.CharacterIDs = append(owner.CharacterIDs, c.ID)
	if err := s.users.Save(owner.ID, owner); err != nil {
		// Roll the character back so it cannot be orphaned holding its
		// display name.
		if delErr := s.chars.Delete(c.ID); delErr != nil {
			slog.Warn("removing character after failed owner save", "character", c.ID, "error", delErr)
		}
		return nil, fmt.Errorf("saving user: %w", err)
	}

	s.nextCharID++
	s.byCharName[key] = c.ID
	return c.Clone(), nil
}

// DeleteCharacter removes a character and its ownership record.
func (s *GameStore) DeleteCharacter(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.chars.Get(id)
	if c == nil {
		return fmt.Errorf("character %d: %w", id, ErrNotFound)
	}

	if err := s.chars.Delete(id); err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	delete(s.byCharName, strings.ToLower(c.Name))

	owner := s.users.Get(c.UserID)
	if owner == nil {
		return nil
	}
	owner = owner.Clone()
	ids := owner.CharacterIDs[:0]
	for _, cid := range owner.CharacterIDs {
		if cid != id {
			ids = append(ids, cid)
		}
	}
	owner.CharacterIDs = ids
	if err := s.users.Save(owner.ID, owner); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// FindSpawnMap returns the lowest-id map flagged as the new-character
// spawn.
func (s *GameStore) FindSpawnMap(_ context.Context) (*world.Map, error) {
	var ids []int64
	all := s.maps.GetAll()
	for id, m := range all {
		if m.Spawn {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("spawn map: %w", ErrNotFound)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return all[ids[0]].Clone(), nil
}

// LoadAllMaps returns private copies of every map, for the world state
// to own.
func (s *GameStore) LoadAllMaps(_ context.Context) ([]*world.Map, error) {
	all := s.maps.GetAll()
	if len(all) == 0 {
		return nil, fmt.Errorf("no maps stored")
	}

	maps := make([]*world.Map, 0, len(all))
	for _, m := range all {
		maps = append(maps, m.Clone())
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].ID < maps[j].ID })
	return maps, nil
}

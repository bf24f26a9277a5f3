package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-realm/internal/session"
	"github.com/pixil98/go-realm/internal/storage"
	"github.com/pixil98/go-realm/internal/wire"
	"github.com/pixil98/go-realm/internal/world"
	"github.com/pixil98/go-testutil"
)

// fakeSender records every message queued per connection.
type fakeSender struct {
	mu   sync.Mutex
	msgs map[uuid.UUID][]wire.Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{msgs: map[uuid.UUID][]wire.Message{}}
}

func (s *fakeSender) Send(conn uuid.UUID, msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[conn] = append(s.msgs[conn], msg)
	return nil
}

func (s *fakeSender) all(conn uuid.UUID) []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Message(nil), s.msgs[conn]...)
}

func (s *fakeSender) last(t *testing.T, conn uuid.UUID) wire.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.msgs[conn]
	if len(msgs) == 0 {
		t.Fatal("no messages sent")
	}
	return msgs[len(msgs)-1]
}

func (s *fakeSender) count(conn uuid.UUID, kind wire.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, msg := range s.msgs[conn] {
		if msg.Kind() == kind {
			n++
		}
	}
	return n
}

// localBroadcasts fans map updates out to in-process subscribers,
// synchronously, standing in for the messaging layer.
type localBroadcasts struct {
	mu   sync.Mutex
	next int
	subs map[int64]map[int]func(wire.Message)
}

func newLocalBroadcasts() *localBroadcasts {
	return &localBroadcasts{subs: map[int64]map[int]func(wire.Message){}}
}

func (b *localBroadcasts) MapChanged(snap world.MapSnapshot) {
	b.mu.Lock()
	var deliver []func(wire.Message)
	for _, fn := range b.subs[snap.ID] {
		deliver = append(deliver, fn)
	}
	b.mu.Unlock()

	for _, fn := range deliver {
		fn(&wire.MapChanged{Map: snap})
	}
}

func (b *localBroadcasts) SubscribeMap(mapID int64, deliver func(msg wire.Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[mapID] == nil {
		b.subs[mapID] = map[int]func(wire.Message){}
	}
	id := b.next
	b.next++
	b.subs[mapID][id] = deliver

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[mapID], id)
	}, nil
}

type env struct {
	h        *Handlers
	store    *storage.GameStore
	world    *world.State
	sessions *session.Registry
	sender   *fakeSender
	now      time.Time
}

func (e *env) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithMaps(t, []*world.Map{
		{ID: 1, Size: world.Point2D{X: 250, Y: 250}, Spawn: true},
	})
}

// newPortalEnv puts a portal over the spawn area of map 1, leading to
// map 2, so the first move traverses it.
func newPortalEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithMaps(t, []*world.Map{
		{
			ID:    1,
			Size:  world.Point2D{X: 250, Y: 250},
			Spawn: true,
			Portals: []world.Portal{
				{ID: 1, Location: world.Point2D{X: 0, Y: 0}, Size: world.Point2D{X: 10, Y: 10}, DestMapID: 2, DestPortalID: 1},
			},
		},
		{
			ID:   2,
			Size: world.Point2D{X: 100, Y: 100},
			Portals: []world.Portal{
				{ID: 1, Location: world.Point2D{X: 50, Y: 50}, Size: world.Point2D{X: 5, Y: 5}, DestMapID: 1, DestPortalID: 1},
			},
		},
	})
}

func newEnvWithMaps(t *testing.T, worldMaps []*world.Map) *env {
	t.Helper()

	users, err := storage.NewFileStore[*world.User](t.TempDir())
	if err != nil {
		t.Fatalf("creating user store: %v", err)
	}
	chars, err := storage.NewFileStore[*world.Character](t.TempDir())
	if err != nil {
		t.Fatalf("creating character store: %v", err)
	}
	maps, err := storage.NewFileStore[*world.Map](t.TempDir())
	if err != nil {
		t.Fatalf("creating map store: %v", err)
	}
	for _, m := range worldMaps {
		if err := maps.Save(m.ID, m); err != nil {
			t.Fatalf("saving map: %v", err)
		}
	}

	store, err := storage.NewGameStore(users, chars, maps)
	if err != nil {
		t.Fatalf("creating game store: %v", err)
	}

	e := &env{
		store:    store,
		sessions: session.NewRegistry(),
		sender:   newFakeSender(),
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	bc := newLocalBroadcasts()
	loaded, err := store.LoadAllMaps(context.Background())
	if err != nil {
		t.Fatalf("loading maps: %v", err)
	}
	e.world, err = world.NewState(loaded, bc, world.WithClock(func() time.Time { return e.now }))
	if err != nil {
		t.Fatalf("creating world: %v", err)
	}

	e.h = NewHandlers(store, e.world, e.sessions, e.sender, bc)
	return e
}

func (e *env) connect(t *testing.T) uuid.UUID {
	t.Helper()
	conn := uuid.New()
	e.h.HandleConnect(context.Background(), conn)
	return conn
}

func (e *env) register(t *testing.T, conn uuid.UUID, username, password string) {
	t.Helper()
	err := e.h.HandleRegister(context.Background(), conn, &wire.Register{Username: username, Password: password})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

func (e *env) login(t *testing.T, conn uuid.UUID, username, password string) {
	t.Helper()
	err := e.h.HandleLogin(context.Background(), conn, &wire.Login{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
}

// ownedCharacter returns the id of the account's starting character.
func (e *env) ownedCharacter(t *testing.T, username string) int64 {
	t.Helper()
	user, err := e.store.FindUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("finding user: %v", err)
	}
	if len(user.CharacterIDs) == 0 {
		t.Fatal("user owns no characters")
	}
	return user.CharacterIDs[0]
}

func TestHandleRegister(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)

	e.register(t, conn, "player_one", "secret")
	testutil.AssertEqual(t, "response kind", e.sender.last(t, conn).Kind(), wire.KindRegisterSuccess)

	// The account exists with its starting character, named after it
	user, err := e.store.FindUserByUsername(context.Background(), "player_one")
	if err != nil {
		t.Fatalf("finding user: %v", err)
	}
	testutil.AssertEqual(t, "character count", len(user.CharacterIDs), 1)
	char, err := e.store.GetCharacter(context.Background(), user.CharacterIDs[0])
	if err != nil {
		t.Fatalf("loading character: %v", err)
	}
	testutil.AssertEqual(t, "character name", char.Name, "player_one")
	testutil.AssertEqual(t, "spawn map", char.MapID, int64(1))

	// Same username again reads back as a conflict, not an error
	other := e.connect(t)
	err = e.h.HandleRegister(context.Background(), other, &wire.Register{Username: "Player_One", Password: "x"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	testutil.AssertEqual(t, "conflict kind", e.sender.last(t, other).Kind(), wire.KindAlreadyExists)
}

func TestHandleRegister_Preconditions(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)

	err := e.h.HandleRegister(context.Background(), conn, &wire.Register{Username: "short", Password: "secret"})
	testutil.AssertErrorContains(t, err, "username must be")

	err = e.h.HandleRegister(context.Background(), conn, &wire.Register{Username: "player_one", Password: ""})
	testutil.AssertErrorContains(t, err, "password must not be empty")

	// Registering while authenticated is a protocol violation
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")
	err = e.h.HandleRegister(context.Background(), conn, &wire.Register{Username: "player_two", Password: "secret"})
	testutil.AssertErrorContains(t, err, "already authenticated")
}

func TestHandleRegister_ConcurrentSameUsername(t *testing.T) {
	e := newEnv(t)

	conns := make([]uuid.UUID, 4)
	for i := range conns {
		conns[i] = e.connect(t)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.h.HandleRegister(context.Background(), conn, &wire.Register{Username: "player_one", Password: "secret"})
			if err != nil {
				t.Errorf("register: %v", err)
			}
		}()
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, conn := range conns {
		succeeded += e.sender.count(conn, wire.KindRegisterSuccess)
		conflicted += e.sender.count(conn, wire.KindAlreadyExists)
	}
	testutil.AssertEqual(t, "successes", succeeded, 1)
	testutil.AssertEqual(t, "conflicts", conflicted, len(conns)-1)
}

func TestHandleLogin(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")

	e.login(t, conn, "player_one", "secret")
	msg := e.sender.last(t, conn)
	success, ok := msg.(*wire.LoginSuccess)
	if !ok {
		t.Fatalf("expected LoginSuccess, got %T", msg)
	}
	testutil.AssertEqual(t, "username", success.Account.Username, "player_one")
	testutil.AssertEqual(t, "characters", len(success.Account.Characters), 1)

	sess, _ := e.sessions.ByConn(conn)
	testutil.AssertEqual(t, "user attached", sess.UserID, success.Account.ID)
}

func TestHandleLogin_Failures(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")

	err := e.h.HandleLogin(context.Background(), conn, &wire.Login{Username: "player_one", Password: "wrong"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	testutil.AssertEqual(t, "bad password", e.sender.last(t, conn).Kind(), wire.KindInvalidCredentials)

	// Unknown accounts read the same as bad passwords
	err = e.h.HandleLogin(context.Background(), conn, &wire.Login{Username: "player_two", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	testutil.AssertEqual(t, "unknown user", e.sender.last(t, conn).Kind(), wire.KindInvalidCredentials)

	// One session per account
	e.login(t, conn, "player_one", "secret")
	other := e.connect(t)
	err = e.h.HandleLogin(context.Background(), other, &wire.Login{Username: "player_one", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	testutil.AssertEqual(t, "second session", e.sender.last(t, other).Kind(), wire.KindAlreadyLoggedIn)
}

func TestHandleLogin_ConcurrentSameAccount(t *testing.T) {
	e := newEnv(t)
	setup := e.connect(t)
	e.register(t, setup, "player_one", "secret")

	conns := make([]uuid.UUID, 4)
	for i := range conns {
		conns[i] = e.connect(t)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.h.HandleLogin(context.Background(), conn, &wire.Login{Username: "player_one", Password: "secret"})
			if err != nil {
				t.Errorf("login: %v", err)
			}
		}()
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, conn := range conns {
		succeeded += e.sender.count(conn, wire.KindLoginSuccess)
		rejected += e.sender.count(conn, wire.KindAlreadyLoggedIn)
	}
	testutil.AssertEqual(t, "successes", succeeded, 1)
	testutil.AssertEqual(t, "rejections", rejected, len(conns)-1)
}

func TestHandleCharacterCreate(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")

	err := e.h.HandleCharacterCreate(context.Background(), conn, &wire.CharacterCreate{
		Name:  "hero_of_realm",
		Color: world.RGB{R: 200, G: 10, B: 10},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := e.sender.last(t, conn)
	success, ok := msg.(*wire.CreateSuccess)
	if !ok {
		t.Fatalf("expected CreateSuccess, got %T", msg)
	}
	testutil.AssertEqual(t, "characters", len(success.Account.Characters), 2)

	// Name conflicts are a response, not an error
	err = e.h.HandleCharacterCreate(context.Background(), conn, &wire.CharacterCreate{Name: "hero_of_realm"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	testutil.AssertEqual(t, "conflict", e.sender.last(t, conn).Kind(), wire.KindAlreadyExists)

	// Character names share the account namespace constraint
	err = e.h.HandleCharacterCreate(context.Background(), conn, &wire.CharacterCreate{Name: "x"})
	testutil.AssertErrorContains(t, err, "name must be")
}

func TestHandleCharacterCreate_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)

	err := e.h.HandleCharacterCreate(context.Background(), conn, &wire.CharacterCreate{Name: "hero_of_realm"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	testutil.AssertEqual(t, "kind", e.sender.last(t, conn).Kind(), wire.KindUnauthenticated)
}

func TestHandleCharacterEnter(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")
	charID := e.ownedCharacter(t, "player_one")

	err := e.h.HandleCharacterEnter(context.Background(), conn, &wire.CharacterEnter{CharacterID: charID})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}

	msg := e.sender.last(t, conn)
	success, ok := msg.(*wire.EnterSuccess)
	if !ok {
		t.Fatalf("expected EnterSuccess, got %T", msg)
	}
	testutil.AssertEqual(t, "map", success.Map.ID, int64(1))
	testutil.AssertEqual(t, "character", success.Character.ID, charID)
	testutil.AssertEqual(t, "present", len(success.Map.Characters), 1)

	// The subscription was live before the world mutation, so the mover
	// saw its own arrival announced.
	testutil.AssertEqual(t, "own arrival", e.sender.count(conn, wire.KindMapChanged), 1)

	sess, _ := e.sessions.ByConn(conn)
	testutil.AssertEqual(t, "character attached", sess.CharacterID, charID)

	// Entering again while in game is rejected
	err = e.h.HandleCharacterEnter(context.Background(), conn, &wire.CharacterEnter{CharacterID: charID})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	testutil.AssertEqual(t, "re-enter", e.sender.last(t, conn).Kind(), wire.KindAlreadyInGame)
}

func TestHandleCharacterEnter_NotOwned(t *testing.T) {
	e := newEnv(t)
	first := e.connect(t)
	e.register(t, first, "player_one", "secret")

	second := e.connect(t)
	e.register(t, second, "player_two", "secret")
	e.login(t, second, "player_two", "secret")

	// player_two cannot enter player_one's character
	err := e.h.HandleCharacterEnter(context.Background(), second, &wire.CharacterEnter{
		CharacterID: e.ownedCharacter(t, "player_one"),
	})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	testutil.AssertEqual(t, "not owned", e.sender.last(t, second).Kind(), wire.KindNotFound)

	err = e.h.HandleCharacterEnter(context.Background(), second, &wire.CharacterEnter{CharacterID: 99})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	testutil.AssertEqual(t, "unknown", e.sender.last(t, second).Kind(), wire.KindNotFound)
}

func TestHandleCharacterRemove(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")
	charID := e.ownedCharacter(t, "player_one")

	err := e.h.HandleCharacterRemove(context.Background(), conn, &wire.CharacterRemove{CharacterID: charID})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	msg := e.sender.last(t, conn)
	success, ok := msg.(*wire.RemoveSuccess)
	if !ok {
		t.Fatalf("expected RemoveSuccess, got %T", msg)
	}
	testutil.AssertEqual(t, "characters", len(success.Account.Characters), 0)

	_, err = e.store.GetCharacter(context.Background(), charID)
	testutil.AssertErrorContains(t, err, "not found")
}

func TestHandleCharacterRemove_WhileInGame(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")
	charID := e.ownedCharacter(t, "player_one")

	err := e.h.HandleCharacterEnter(context.Background(), conn, &wire.CharacterEnter{CharacterID: charID})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}

	err = e.h.HandleCharacterRemove(context.Background(), conn, &wire.CharacterRemove{CharacterID: charID})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Pulled out of the world and the session in the same step
	_, ok := e.world.Character(charID)
	testutil.AssertEqual(t, "gone from world", ok, false)
	sess, _ := e.sessions.ByConn(conn)
	testutil.AssertEqual(t, "detached", sess.CharacterID, int64(0))
}

func TestHandleCharacterRemove_NotOwned(t *testing.T) {
	e := newEnv(t)
	first := e.connect(t)
	e.register(t, first, "player_one", "secret")

	second := e.connect(t)
	e.register(t, second, "player_two", "secret")
	e.login(t, second, "player_two", "secret")

	err := e.h.HandleCharacterRemove(context.Background(), second, &wire.CharacterRemove{
		CharacterID: e.ownedCharacter(t, "player_one"),
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	testutil.AssertEqual(t, "not owned", e.sender.last(t, second).Kind(), wire.KindNotFound)

	// Nothing was deleted
	_, err = e.store.GetCharacter(context.Background(), e.ownedCharacter(t, "player_one"))
	if err != nil {
		t.Errorf("character should survive: %v", err)
	}
}

func TestHandleMove(t *testing.T) {
	e := newEnv(t)

	// Two characters share the map; both receive movement broadcasts
	mover := e.connect(t)
	e.register(t, mover, "player_one", "secret")
	e.login(t, mover, "player_one", "secret")
	observer := e.connect(t)
	e.register(t, observer, "player_two", "secret")
	e.login(t, observer, "player_two", "secret")

	for conn, name := range map[uuid.UUID]string{mover: "player_one", observer: "player_two"} {
		err := e.h.HandleCharacterEnter(context.Background(), conn, &wire.CharacterEnter{
			CharacterID: e.ownedCharacter(t, name),
		})
		if err != nil {
			t.Fatalf("enter: %v", err)
		}
	}

	before := e.sender.count(observer, wire.KindMapChanged)
	e.advance(100 * time.Millisecond)
	err := e.h.HandleMove(context.Background(), mover, &wire.Move{Direction: world.DirectionRight, UseBudget: true})
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	testutil.AssertEqual(t, "observer updates", e.sender.count(observer, wire.KindMapChanged), before+1)

	// The broadcast carries the mover's new position
	last, ok := e.sender.last(t, observer).(*wire.MapChanged)
	if !ok {
		t.Fatalf("expected MapChanged, got %T", e.sender.last(t, observer))
	}
	moverID := e.ownedCharacter(t, "player_one")
	found := false
	for _, c := range last.Map.Characters {
		if c.ID == moverID {
			found = true
			testutil.AssertEqual(t, "new x", c.Location.X, 10.0)
		}
	}
	testutil.AssertEqual(t, "mover in broadcast", found, true)
}

func TestHandleMove_PortalTransitionDelivery(t *testing.T) {
	e := newPortalEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")
	charID := e.ownedCharacter(t, "player_one")

	err := e.h.HandleCharacterEnter(context.Background(), conn, &wire.CharacterEnter{CharacterID: charID})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}

	e.advance(100 * time.Millisecond)
	err = e.h.HandleMove(context.Background(), conn, &wire.Move{Direction: world.DirectionRight, UseBudget: true})
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	snap, ok := e.world.Character(charID)
	testutil.AssertEqual(t, "still entered", ok, true)
	testutil.AssertEqual(t, "on destination map", snap.MapID, int64(2))
	testutil.AssertEqual(t, "at destination portal", snap.Location, world.Point2D{X: 50, Y: 50})

	// The traversal broadcasts went out while the mover was subscribed
	// to the origin map; the last update it received must still be the
	// destination map's state, with the character on it.
	last, ok := e.sender.last(t, conn).(*wire.MapChanged)
	if !ok {
		t.Fatalf("expected MapChanged, got %T", e.sender.last(t, conn))
	}
	testutil.AssertEqual(t, "destination state", last.Map.ID, int64(2))
	found := false
	for _, c := range last.Map.Characters {
		if c.ID == charID {
			found = true
		}
	}
	testutil.AssertEqual(t, "mover present in destination state", found, true)

	// And the subscription follows the character: a later change on the
	// destination map reaches the mover.
	before := e.sender.count(conn, wire.KindMapChanged)
	e.advance(100 * time.Millisecond)
	err = e.h.HandleMove(context.Background(), conn, &wire.Move{Direction: world.DirectionDown, UseBudget: true})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if e.sender.count(conn, wire.KindMapChanged) <= before {
		t.Error("no update received on the destination map")
	}
}

func TestHandleMove_NotInGame(t *testing.T) {
	e := newEnv(t)
	conn := e.connect(t)
	e.register(t, conn, "player_one", "secret")
	e.login(t, conn, "player_one", "secret")

	err := e.h.HandleMove(context.Background(), conn, &wire.Move{Direction: world.DirectionRight})
	testutil.AssertErrorContains(t, err, "not in game")
}

func TestHandleDisconnect_WhileInGame(t *testing.T) {
	e := newEnv(t)

	leaver := e.connect(t)
	e.register(t, leaver, "player_one", "secret")
	e.login(t, leaver, "player_one", "secret")
	observer := e.connect(t)
	e.register(t, observer, "player_two", "secret")
	e.login(t, observer, "player_two", "secret")

	for conn, name := range map[uuid.UUID]string{leaver: "player_one", observer: "player_two"} {
		err := e.h.HandleCharacterEnter(context.Background(), conn, &wire.CharacterEnter{
			CharacterID: e.ownedCharacter(t, name),
		})
		if err != nil {
			t.Fatalf("enter: %v", err)
		}
	}

	leaverChar := e.ownedCharacter(t, "player_one")
	before := e.sender.count(observer, wire.KindMapChanged)

	e.h.HandleDisconnect(context.Background(), leaver)

	// Presence is gone and the account is free to log in again
	_, ok := e.world.Character(leaverChar)
	testutil.AssertEqual(t, "gone from world", ok, false)
	_, ok = e.sessions.ByConn(leaver)
	testutil.AssertEqual(t, "session removed", ok, false)

	// The observer saw exactly one update announcing the removal
	testutil.AssertEqual(t, "observer updates", e.sender.count(observer, wire.KindMapChanged), before+1)
	last, ok := e.sender.last(t, observer).(*wire.MapChanged)
	if !ok {
		t.Fatalf("expected MapChanged, got %T", e.sender.last(t, observer))
	}
	for _, c := range last.Map.Characters {
		if c.ID == leaverChar {
			t.Error("removed character still present in broadcast")
		}
	}

	// And the account can log in again from a new connection
	again := e.connect(t)
	e.login(t, again, "player_one", "secret")
	testutil.AssertEqual(t, "relogin", e.sender.last(t, again).Kind(), wire.KindLoginSuccess)
}

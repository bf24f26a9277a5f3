// Package handlers implements one handler per request kind, bridging
// the connection reactor to the session registry, the world state, and
// the persistent store. Each connection walks a small state machine:
// unauthenticated, authenticated, in game.
package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pixil98/go-realm/internal/reactor"
	"github.com/pixil98/go-realm/internal/session"
	"github.com/pixil98/go-realm/internal/wire"
	"github.com/pixil98/go-realm/internal/world"
)

// Store is the persistence collaborator. Every call is awaited before
// any in-memory state changes on its behalf.
type Store interface {
	FindUserByUsername(ctx context.Context, username string) (*world.User, error)
	GetUser(ctx context.Context, id int64) (*world.User, error)
	GetCharacter(ctx context.Context, id int64) (*world.Character, error)
	FindCharacterByName(ctx context.Context, name string) (*world.Character, error)
	CreateUser(ctx context.Context, username string, passwordHash []byte) (*world.User, error)
	CreateCharacter(ctx context.Context, userID int64, name string, color world.RGB, mapID int64) (*world.Character, error)
	DeleteCharacter(ctx context.Context, id int64) error
	FindSpawnMap(ctx context.Context) (*world.Map, error)
}

// Sender queues a message for one connection.
type Sender interface {
	Send(conn uuid.UUID, msg wire.Message) error
}

// Broadcasts subscribes a delivery function to one map's update stream.
type Broadcasts interface {
	SubscribeMap(mapID int64, deliver func(msg wire.Message)) (func(), error)
}

type Handlers struct {
	store      Store
	world      *world.State
	sessions   *session.Registry
	sender     Sender
	broadcasts Broadcasts

	// Exclusivity locks: each serializes only its own check-then-act
	// sequence.
	registerMu sync.Mutex
	loginMu    sync.Mutex
	createMu   sync.Mutex

	subMu sync.Mutex
	subs  map[uuid.UUID]func()
}

func NewHandlers(store Store, w *world.State, sessions *session.Registry, sender Sender, broadcasts Broadcasts) *Handlers {
	return &Handlers{
		store:      store,
		world:      w,
		sessions:   sessions,
		sender:     sender,
		broadcasts: broadcasts,
		subs:       map[uuid.UUID]func(){},
	}
}

// Register wires every handler and connection hook into the reactor.
func (h *Handlers) Register(r *reactor.Reactor) {
	r.SetConnectHook(h.HandleConnect)
	r.SetDisconnectHook(h.HandleDisconnect)

	r.SetHandler(wire.KindLogin, typed(h.HandleLogin))
	r.SetHandler(wire.KindRegister, typed(h.HandleRegister))
	r.SetHandler(wire.KindCharacterCreate, typed(h.HandleCharacterCreate))
	r.SetHandler(wire.KindCharacterRemove, typed(h.HandleCharacterRemove))
	r.SetHandler(wire.KindCharacterEnter, typed(h.HandleCharacterEnter))
	r.SetHandler(wire.KindMove, typed(h.HandleMove))
}

// typed adapts a concrete-request handler to the reactor's signature.
func typed[T wire.Message](fn func(ctx context.Context, conn uuid.UUID, req T) error) reactor.Handler {
	return func(ctx context.Context, conn uuid.UUID, msg wire.Message) error {
		req, ok := msg.(T)
		if !ok {
			return fmt.Errorf("unexpected payload type for %s", msg.Kind())
		}
		return fn(ctx, conn, req)
	}
}

func (h *Handlers) HandleConnect(_ context.Context, conn uuid.UUID) {
	h.sessions.AddConnection(conn)
}

// HandleDisconnect tears one connection down: its map subscription, its
// world presence if in game, and its session under every key.
func (h *Handlers) HandleDisconnect(_ context.Context, conn uuid.UUID) {
	h.dropSubscription(conn)

	sess, ok := h.sessions.Remove(conn)
	if ok && sess.CharacterID != 0 {
		h.world.Leave(sess.CharacterID)
	}
}

// session returns the connection's current session snapshot.
func (h *Handlers) session(conn uuid.UUID) (session.Session, error) {
	sess, ok := h.sessions.ByConn(conn)
	if !ok {
		return session.Session{}, fmt.Errorf("no session for connection %s", conn)
	}
	return sess, nil
}

// account assembles the wire view of a user and its characters.
func (h *Handlers) account(ctx context.Context, user *world.User) (world.AccountSnapshot, error) {
	acct := world.AccountSnapshot{
		ID:       user.ID,
		Username: user.Username,
	}
	for _, id := range user.CharacterIDs {
		char, err := h.store.GetCharacter(ctx, id)
		if err != nil {
			return world.AccountSnapshot{}, fmt.Errorf("loading character %d: %w", id, err)
		}
		acct.Characters = append(acct.Characters, char.Snapshot())
	}
	return acct, nil
}

// setSubscription swaps the connection's map subscription, releasing
// any previous one.
func (h *Handlers) setSubscription(conn uuid.UUID, unsub func()) {
	h.subMu.Lock()
	old := h.subs[conn]
	h.subs[conn] = unsub
	h.subMu.Unlock()

	if old != nil {
		old()
	}
}

func (h *Handlers) dropSubscription(conn uuid.UUID) {
	h.subMu.Lock()
	unsub := h.subs[conn]
	delete(h.subs, conn)
	h.subMu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// subscribe points the connection's send queue at a map's update stream.
func (h *Handlers) subscribe(conn uuid.UUID, mapID int64) error {
	unsub, err := h.broadcasts.SubscribeMap(mapID, func(msg wire.Message) {
		// Best effort: the connection may be mid-disconnect.
		_ = h.sender.Send(conn, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribing to map %d: %w", mapID, err)
	}
	h.setSubscription(conn, unsub)
	return nil
}

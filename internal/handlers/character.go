package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pixil98/go-realm/internal/storage"
	"github.com/pixil98/go-realm/internal/wire"
	"github.com/pixil98/go-realm/internal/world"
)

// HandleCharacterCreate adds a character to the session's account. The
// display-name check and insert run under the create lock.
func (h *Handlers) HandleCharacterCreate(ctx context.Context, conn uuid.UUID, req *wire.CharacterCreate) error {
	sess, err := h.session(conn)
	if err != nil {
		return err
	}
	if sess.UserID == 0 {
		return h.sender.Send(conn, &wire.Unauthenticated{})
	}

	if !world.ValidName(req.Name) {
		return fmt.Errorf("character create: name must be 6-32 characters of [A-Za-z0-9_]")
	}

	h.createMu.Lock()
	_, err = h.store.FindCharacterByName(ctx, req.Name)
	if err == nil {
		h.createMu.Unlock()
		return h.sender.Send(conn, &wire.AlreadyExists{Name: req.Name})
	}
	if !errors.Is(err, storage.ErrNotFound) {
		h.createMu.Unlock()
		return err
	}

	spawn, err := h.store.FindSpawnMap(ctx)
	if err != nil {
		h.createMu.Unlock()
		return err
	}
	_, err = h.store.CreateCharacter(ctx, sess.UserID, req.Name, req.Color, spawn.ID)
	h.createMu.Unlock()
	if err != nil {
		return err
	}

	acct, err := h.refreshAccount(ctx, sess.UserID)
	if err != nil {
		return err
	}
	return h.sender.Send(conn, &wire.CreateSuccess{Account: acct})
}

// HandleCharacterRemove deletes a character the session's account owns.
func (h *Handlers) HandleCharacterRemove(ctx context.Context, conn uuid.UUID, req *wire.CharacterRemove) error {
	sess, err := h.session(conn)
	if err != nil {
		return err
	}
	if sess.UserID == 0 {
		return h.sender.Send(conn, &wire.Unauthenticated{})
	}

	char, err := h.store.GetCharacter(ctx, req.CharacterID)
	if errors.Is(err, storage.ErrNotFound) {
		return h.sender.Send(conn, &wire.NotFound{})
	}
	if err != nil {
		return err
	}
	// Not owning a character reads the same as it not existing.
	if char.UserID != sess.UserID {
		return h.sender.Send(conn, &wire.NotFound{})
	}

	if err := h.store.DeleteCharacter(ctx, char.ID); err != nil {
		return err
	}

	// Removing the character currently in play also pulls it from the
	// world.
	if sess.CharacterID == char.ID {
		h.dropSubscription(conn)
		h.world.Leave(char.ID)
		h.sessions.DetachCharacter(conn)
	}

	acct, err := h.refreshAccount(ctx, sess.UserID)
	if err != nil {
		return err
	}
	return h.sender.Send(conn, &wire.RemoveSuccess{Account: acct})
}

// HandleCharacterEnter spawns an owned character into the world and
// starts streaming its map to the connection.
func (h *Handlers) HandleCharacterEnter(ctx context.Context, conn uuid.UUID, req *wire.CharacterEnter) error {
	sess, err := h.session(conn)
	if err != nil {
		return err
	}
	if sess.UserID == 0 {
		return h.sender.Send(conn, &wire.Unauthenticated{})
	}
	if sess.CharacterID != 0 {
		return h.sender.Send(conn, &wire.AlreadyInGame{})
	}

	char, err := h.store.GetCharacter(ctx, req.CharacterID)
	if errors.Is(err, storage.ErrNotFound) {
		return h.sender.Send(conn, &wire.NotFound{})
	}
	if err != nil {
		return err
	}
	if char.UserID != sess.UserID {
		return h.sender.Send(conn, &wire.NotFound{})
	}

	if err := h.sessions.AttachCharacter(conn, char.ID); err != nil {
		return err
	}

	// Subscribe before entering so this connection also receives the
	// update announcing its own arrival.
	mapID := char.MapID
	if err := h.subscribe(conn, mapID); err != nil {
		h.sessions.DetachCharacter(conn)
		return err
	}

	if err := h.world.Enter(char, mapID); err != nil {
		h.dropSubscription(conn)
		h.sessions.DetachCharacter(conn)
		return err
	}

	snap, err := h.world.Snapshot(mapID)
	if err != nil {
		return err
	}
	return h.sender.Send(conn, &wire.EnterSuccess{Map: snap, Character: char.Snapshot()})
}

func (h *Handlers) refreshAccount(ctx context.Context, userID int64) (world.AccountSnapshot, error) {
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		return world.AccountSnapshot{}, fmt.Errorf("refreshing account %d: %w", userID, err)
	}
	return h.account(ctx, user)
}

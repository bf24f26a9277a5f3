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

// defaultColor is applied to the character created with a new account.
var defaultColor = world.RGB{R: 128, G: 128, B: 128}

// HandleRegister creates an account and its starting character. The
// username check and insert run under the registration lock so two
// concurrent registrations of the same name cannot both pass.
func (h *Handlers) HandleRegister(ctx context.Context, conn uuid.UUID, req *wire.Register) error {
	sess, err := h.session(conn)
	if err != nil {
		return err
	}
	if sess.UserID != 0 {
		return fmt.Errorf("register: already authenticated")
	}

	if !world.ValidName(req.Username) {
		return fmt.Errorf("register: username must be 6-32 characters of [A-Za-z0-9_]")
	}
	if req.Password == "" {
		return fmt.Errorf("register: password must not be empty")
	}

	hash, err := world.HashPassword(req.Password)
	if err != nil {
		return err
	}

	h.registerMu.Lock()
	defer h.registerMu.Unlock()

	_, err = h.store.FindUserByUsername(ctx, req.Username)
	if err == nil {
		return h.sender.Send(conn, &wire.AlreadyExists{Name: req.Username})
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	user, err := h.store.CreateUser(ctx, req.Username, hash)
	if err != nil {
		return err
	}

	spawn, err := h.store.FindSpawnMap(ctx)
	if err != nil {
		return err
	}
	if _, err := h.store.CreateCharacter(ctx, user.ID, req.Username, defaultColor, spawn.ID); err != nil {
		return err
	}

	return h.sender.Send(conn, &wire.RegisterSuccess{})
}

// HandleLogin authenticates the connection. The already-logged-in check
// and the attach run under the login lock, so two connections racing on
// one account cannot both win.
func (h *Handlers) HandleLogin(ctx context.Context, conn uuid.UUID, req *wire.Login) error {
	sess, err := h.session(conn)
	if err != nil {
		return err
	}
	if sess.UserID != 0 {
		return fmt.Errorf("login: already authenticated")
	}

	user, err := h.store.FindUserByUsername(ctx, req.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return h.sender.Send(conn, &wire.InvalidCredentials{})
	}
	if err != nil {
		return err
	}
	if !user.Verify(req.Password) {
		return h.sender.Send(conn, &wire.InvalidCredentials{})
	}

	h.loginMu.Lock()
	if _, taken := h.sessions.ByUser(user.ID); taken {
		h.loginMu.Unlock()
		return h.sender.Send(conn, &wire.AlreadyLoggedIn{})
	}
	err = h.sessions.AttachUser(conn, user.ID)
	h.loginMu.Unlock()
	if err != nil {
		return err
	}

	acct, err := h.account(ctx, user)
	if err != nil {
		return err
	}
	return h.sender.Send(conn, &wire.LoginSuccess{Account: acct})
}

package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pixil98/go-realm/internal/wire"
)

// HandleMove advances the session's character. There is no direct
// response; everyone on the affected map, the mover included, learns the
// outcome from the map-changed broadcast.
func (h *Handlers) HandleMove(ctx context.Context, conn uuid.UUID, req *wire.Move) error {
	sess, err := h.session(conn)
	if err != nil {
		return err
	}
	if sess.CharacterID == 0 {
		return fmt.Errorf("move: not in game")
	}

	res, err := h.world.Move(sess.CharacterID, req.Direction, req.UseBudget)
	if err != nil {
		return err
	}

	// A portal transition moves the connection's subscription to the
	// destination map's stream. The traversal broadcasts went out while
	// the mover was still subscribed to the origin map, so the
	// destination's state is sent to it directly.
	if res.Transitioned() {
		if err := h.subscribe(conn, res.MapID); err != nil {
			return err
		}
		snap, err := h.world.Snapshot(res.MapID)
		if err != nil {
			return err
		}
		return h.sender.Send(conn, &wire.MapChanged{Map: snap})
	}
	return nil
}

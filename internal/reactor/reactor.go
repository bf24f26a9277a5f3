// Package reactor accepts TCP connections and pumps framed messages
// between them and registered handlers. Each connection gets two
// goroutines: a read loop that decodes and dispatches one message at a
// time, and a write loop that drains a per-connection FIFO queue, so
// slow handlers never stall outbound traffic and slow sockets never
// stall handlers.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/pixil98/go-realm/internal/wire"
)

// Handler processes one decoded message from a connection. A returned
// error is reported back to that connection only, as an unexpected-error
// response.
type Handler func(ctx context.Context, conn uuid.UUID, msg wire.Message) error

// ConnHook observes a connection arriving or departing.
type ConnHook func(ctx context.Context, conn uuid.UUID)

type Reactor struct {
	addr string

	mu           sync.RWMutex
	lnAddr       net.Addr
	handlers     map[wire.Kind]Handler
	conns        map[uuid.UUID]*conn
	onConnect    ConnHook
	onDisconnect ConnHook
}

func NewReactor(addr string) *Reactor {
	return &Reactor{
		addr:     addr,
		handlers: map[wire.Kind]Handler{},
		conns:    map[uuid.UUID]*conn{},
	}
}

// SetHandler registers the dispatch target for a message kind. A nil
// handler unregisters the kind.
func (r *Reactor) SetHandler(kind wire.Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h == nil {
		delete(r.handlers, kind)
		return
	}
	r.handlers[kind] = h
}

// SetConnectHook registers a hook invoked once per accepted connection,
// before any message is dispatched.
func (r *Reactor) SetConnectHook(h ConnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onConnect = h
}

// SetDisconnectHook registers a hook invoked exactly once per
// connection, after its last message and before its bookkeeping is
// dropped.
func (r *Reactor) SetDisconnectHook(h ConnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onDisconnect = h
}

// Start listens on the configured address and accepts connections until
// the context is canceled.
func (r *Reactor) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("address %s is already in use (another server running?)", r.addr)
		}
		return fmt.Errorf("listening on %s: %w", r.addr, err)
	}

	r.mu.Lock()
	r.lnAddr = ln.Addr()
	r.mu.Unlock()

	// Connections share a context canceled together at shutdown.
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
			cancelConns()
			r.closeAll()
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "reactor listening", "addr", ln.Addr())

	for {
		sock, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		r.accept(connCtx, sock)
	}
}

// Addr reports the bound listen address. It is nil until Start has
// bound the listener, which makes it usable for finding the real port
// behind a ":0" address.
func (r *Reactor) Addr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lnAddr
}

// Send queues a message for a connection's write loop. It never blocks
// on network I/O.
func (r *Reactor) Send(id uuid.UUID, msg wire.Message) error {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no connection %s", id)
	}
	if !c.enqueue(msg) {
		return fmt.Errorf("connection %s is closed", id)
	}
	return nil
}

func (r *Reactor) accept(ctx context.Context, sock net.Conn) {
	c := newConn(uuid.New(), sock)

	r.mu.Lock()
	r.conns[c.id] = c
	hook := r.onConnect
	r.mu.Unlock()

	slog.InfoContext(ctx, "connection accepted", "conn", c.id, "remote", sock.RemoteAddr())

	if hook != nil {
		hook(ctx, c.id)
	}

	go r.readLoop(ctx, c)
	go r.writeLoop(ctx, c)
}

func (r *Reactor) readLoop(ctx context.Context, c *conn) {
	defer r.dropConn(ctx, c)

	for {
		msg, err := wire.Decode(c.sock)
		if err != nil {
			var fe *wire.FramingError
			if errors.As(err, &fe) {
				slog.InfoContext(ctx, "connection read ended", "conn", c.id, "error", err)
				return
			}
			// The frame arrived but its payload didn't decode; tell the
			// offending connection and keep reading.
			slog.WarnContext(ctx, "undecodable message", "conn", c.id, "error", err)
			c.enqueue(&wire.UnexpectedError{Message: err.Error()})
			continue
		}

		r.dispatch(ctx, c, msg)
	}
}

func (r *Reactor) dispatch(ctx context.Context, c *conn, msg wire.Message) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Kind()]
	r.mu.RUnlock()

	if !ok {
		slog.WarnContext(ctx, "unexpected operation", "conn", c.id, "kind", msg.Kind())
		c.enqueue(&wire.UnexpectedError{Message: fmt.Sprintf("unexpected operation: %s", msg.Kind())})
		return
	}

	if err := h(ctx, c.id, msg); err != nil {
		slog.WarnContext(ctx, "handler failed", "conn", c.id, "kind", msg.Kind(), "error", err)
		c.enqueue(&wire.UnexpectedError{Message: err.Error()})
	}
}

func (r *Reactor) writeLoop(ctx context.Context, c *conn) {
	defer r.dropConn(ctx, c)

	for {
		msg, ok := c.next()
		if !ok {
			return
		}
		if err := wire.Encode(c.sock, msg); err != nil {
			var fe *wire.FramingError
			if errors.As(err, &fe) {
				slog.InfoContext(ctx, "connection write ended", "conn", c.id, "error", err)
				return
			}
			// The message could not be serialized (oversize snapshot,
			// say); the socket is fine, so drop it and keep writing.
			slog.WarnContext(ctx, "dropping unencodable message", "conn", c.id, "kind", msg.Kind(), "error", err)
		}
	}
}

// dropConn runs the disconnect sequence exactly once per connection,
// no matter which loop ends first.
func (r *Reactor) dropConn(ctx context.Context, c *conn) {
	c.disconnect.Do(func() {
		r.mu.Lock()
		delete(r.conns, c.id)
		hook := r.onDisconnect
		r.mu.Unlock()

		if hook != nil {
			hook(ctx, c.id)
		}

		c.close()
		c.sock.Close()
		slog.InfoContext(ctx, "connection closed", "conn", c.id)
	})
}

func (r *Reactor) closeAll() {
	r.mu.RLock()
	conns := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.sock.Close()
	}
}

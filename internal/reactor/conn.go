package reactor

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pixil98/go-realm/internal/wire"
)

// conn is one live connection: the socket, its outbound queue, and the
// disconnect latch shared by the read and write loops.
type conn struct {
	id   uuid.UUID
	sock net.Conn

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []wire.Message
	closed bool

	disconnect sync.Once
}

func newConn(id uuid.UUID, sock net.Conn) *conn {
	c := &conn{
		id:   id,
		sock: sock,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// enqueue appends an outbound message. The queue is unbounded, so the
// caller never waits on socket latency.
func (c *conn) enqueue(msg wire.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.queue = append(c.queue, msg)
	c.cond.Signal()
	return true
}

// next blocks until a message is queued or the connection closes.
func (c *conn) next() (wire.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return nil, false
	}

	msg := c.queue[0]
	c.queue = c.queue[1:]
	return msg, true
}

// close wakes the write loop and drops any queued messages.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.queue = nil
	c.cond.Broadcast()
}

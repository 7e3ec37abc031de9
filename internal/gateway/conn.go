package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/proto"
)

var errEvicted = errors.New("slow consumer")

// conn is one websocket session. It implements fanout.Subscriber[proto.Outbound].
type conn struct {
	id    string
	ident auth.Identity
	ws    *websocket.Conn
	out   chan proto.Outbound

	closeOnce   sync.Once
	done        chan struct{}
	closeStatus websocket.StatusCode
	closeReason string

	mu   sync.Mutex
	room string
}

func newConn(id string, ident auth.Identity, ws *websocket.Conn, buffer int) *conn {
	return &conn{
		id:    id,
		ident: ident,
		ws:    ws,
		out:   make(chan proto.Outbound, max(buffer, 1)),
		done:  make(chan struct{}),
	}
}

func (c *conn) ID() string       { return c.id }
func (c *conn) Identity() string { return c.ident.ID }

// Send queues msg without blocking. A closed connection swallows it.
func (c *conn) Send(msg proto.Outbound) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

// Close is called by the hub on a slow consumer.
func (c *conn) Close() {
	c.closeWith(websocket.StatusPolicyViolation, errEvicted.Error())
}

func (c *conn) closeWith(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeStatus, c.closeReason = status, reason
		close(c.done)
	})
}

func (c *conn) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *conn) swapRoom(room string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.room
	c.room = room
	return prev
}

// writeLoop drains the outbound buffer and keeps the peer alive with pings.
func (c *conn) writeLoop(ctx context.Context, ping, writeTimeout time.Duration) error {
	var tick <-chan time.Time
	if ping > 0 {
		t := time.NewTicker(ping)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, proto.Encode(msg))
			cancel()
			if err != nil {
				return err
			}
		case <-tick:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-c.done:
			return errClosedByServer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var errClosedByServer = errors.New("closed by server")

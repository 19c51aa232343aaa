// Package fnos implements the websocket session protocol spoken by fnOS
// appliances. Every request is a JSON frame carrying a "req" name and a
// unique "reqid"; responses are matched back to their request by reqid, so
// queries may be issued concurrently over one connection.
package fnos

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPath is the websocket endpoint exposed by the appliance.
const DefaultPath = "/websocket"

var (
	// ErrAuthFailed reports a login rejected by the appliance.
	ErrAuthFailed = errors.New("fnos: authentication failed")
	// ErrConnectionClosed reports that the session is no longer usable;
	// callers should dial a fresh one.
	ErrConnectionClosed = errors.New("fnos: connection closed")
)

// Client is one websocket session to an appliance. It is safe for
// concurrent use; a background read loop routes response frames to the
// goroutines waiting on them.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan map[string]any

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens a websocket connection to host (host:port, no scheme).
func Dial(ctx context.Context, host string, logger *slog.Logger) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: DefaultPath}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger.With(slog.String("component", "fnos"), slog.String("host", host)),
		pending: make(map[string]chan map[string]any),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Login authenticates the session. The appliance reports anything other
// than result "succ" on bad credentials.
func (c *Client) Login(ctx context.Context, user, password string) error {
	resp, err := c.Request(ctx, "user.login", map[string]any{
		"user":     user,
		"password": password,
	})
	if err != nil {
		return err
	}
	if result, _ := resp["result"].(string); result != "succ" {
		return fmt.Errorf("%w: result %q", ErrAuthFailed, resp["result"])
	}
	return nil
}

// Request issues one logical query and waits for its response frame,
// honoring the context deadline. Additional params are merged into the
// request frame alongside req and reqid.
func (c *Client) Request(ctx context.Context, req string, params map[string]any) (map[string]any, error) {
	reqid := newReqID()
	frame := make(map[string]any, len(params)+2)
	for k, v := range params {
		frame[k] = v
	}
	frame["req"] = req
	frame["reqid"] = reqid

	ch := make(chan map[string]any, 1)
	if err := c.addPending(reqid, ch); err != nil {
		return nil, err
	}
	defer c.removePending(reqid)

	if err := c.writeFrame(frame); err != nil {
		return nil, fmt.Errorf("send %s: %w", req, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("awaiting %s: %w", req, ctx.Err())
	case <-c.closed:
		return nil, ErrConnectionClosed
	}
}

// Alive reports whether the connection is still usable.
func (c *Client) Alive() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Close tears the connection down. Pending requests fail with
// ErrConnectionClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	for {
		var frame map[string]any
		if err := c.conn.ReadJSON(&frame); err != nil {
			if c.Alive() {
				c.logger.Warn("connection lost", slog.Any("error", err))
			}
			_ = c.Close()
			return
		}
		reqid, _ := frame["reqid"].(string)
		if reqid == "" {
			// Unsolicited frames (push notifications) are not consumed
			// by this exporter.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[reqid]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("dropping frame for unknown reqid", slog.String("reqid", reqid))
			continue
		}
		ch <- frame
	}
}

func (c *Client) addPending(reqid string, ch chan map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	c.pending[reqid] = ch
	return nil
}

func (c *Client) removePending(reqid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, reqid)
}

func (c *Client) writeFrame(frame map[string]any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(frame)
}

// newReqID yields an identifier unique enough to correlate frames on one
// connection: the current microsecond timestamp plus random suffix.
func newReqID() string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%d%s", time.Now().UnixMicro(), hex.EncodeToString(suffix[:]))
}

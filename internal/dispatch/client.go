// Package dispatch carries validated voice commands from the recognition
// client to the scene-host listener: an NDJSON TCP client, the matching
// server, and the single-threaded executor that applies queued actions.
package dispatch

import (
	"bufio"
	"fmt"
	log "log/slog"
	"net"
	"time"

	"github.com/omotayoh/vRvoice/pkg/wire"
)

// Default client timeouts. One command is one short-lived connection, so the
// bounds stay tight.
const (
	DefaultDialTimeout = 3 * time.Second
	DefaultAckTimeout  = 3 * time.Second
)

// Client sends one command per connection: dial, write a request line,
// half-close, read exactly one ack line. No pooling, no retries; a failed
// send is reported and the caller moves on to the next utterance.
type Client struct {
	addr        string
	token       string
	dialTimeout time.Duration
	ackTimeout  time.Duration
}

// ClientOption adjusts Client construction.
type ClientOption func(*Client)

// WithToken attaches the shared secret to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithTimeouts overrides the dial and ack deadlines.
func WithTimeouts(dial, ack time.Duration) ClientOption {
	return func(c *Client) {
		if dial > 0 {
			c.dialTimeout = dial
		}
		if ack > 0 {
			c.ackTimeout = ack
		}
	}
}

// NewClient builds a client for the listener at addr ("host:port").
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		addr:        addr,
		dialTimeout: DefaultDialTimeout,
		ackTimeout:  DefaultAckTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActivatePair sends an activate_pair command.
func (c *Client) ActivatePair(group, name string) (wire.Response, error) {
	return c.send(wire.Request{Action: wire.ActionActivatePair, Group: group, Name: name})
}

// ActivateVset sends an activate_vset command.
func (c *Client) ActivateVset(vsetName string) (wire.Response, error) {
	return c.send(wire.Request{Action: wire.ActionActivateVset, VsetName: vsetName})
}

// Ping probes the listener.
func (c *Client) Ping() (wire.Response, error) {
	return c.send(wire.Request{Action: wire.ActionPing})
}

// send performs one request/ack exchange. On any transport or decode failure
// it returns a synthesized negative response alongside the error, so callers
// can log one uniform shape.
func (c *Client) send(req wire.Request) (wire.Response, error) {
	if c.token != "" {
		req.Token = c.token
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return refused("dial_failed"), fmt.Errorf("dispatch: dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	line, err := wire.EncodeLine(req)
	if err != nil {
		return refused("encode_failed"), err
	}
	if _, err := conn.Write(line); err != nil {
		return refused("write_failed"), fmt.Errorf("dispatch: write: %w", err)
	}
	// Half-close tells the listener no more requests follow on this
	// connection while leaving the ack path open.
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			log.Debug("Write-side close failed", "err", err)
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.ackTimeout)); err != nil {
		return refused("deadline_failed"), fmt.Errorf("dispatch: set deadline: %w", err)
	}
	ack, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(ack) == 0 {
		return refused("ack_timeout"), fmt.Errorf("dispatch: read ack: %w", err)
	}

	resp, err := wire.DecodeResponse(ack)
	if err != nil {
		return refused(wire.ErrInvalidAck), fmt.Errorf("dispatch: %w", err)
	}
	return resp, nil
}

func refused(reason string) wire.Response {
	return wire.Response{Ok: false, Error: reason}
}

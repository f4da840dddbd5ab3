package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a call when the caller sets no deadline.
const DefaultTimeout = 3 * time.Second

// Client calls a control server. Calls may be issued concurrently; replies
// are matched to callers by id.
type Client struct {
	stream  stream
	timeout time.Duration

	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan *Response

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
	err     error
}

// ClientOption configures a client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// Dial connects to the socket at path.
func Dial(path string, opts ...ClientOption) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts ...ClientOption) *Client {
	return newClient(newLineStream(conn), opts...)
}

func newClient(s stream, opts ...ClientOption) *Client {
	c := &Client{
		stream:  s,
		timeout: DefaultTimeout,
		pending: make(map[int64]chan *Response),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Call invokes method and decodes the result into result, when non-nil.
// Error responses are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	raw, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}
	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// CallRaw invokes method and returns the raw result.
func (c *Client) CallRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		rawParams = data
	}

	id := c.nextID.Add(1)
	ch := make(chan *Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := Request{
		JSONRPC: Version,
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
		Params:  rawParams,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	c.writeMu.Lock()
	err = c.stream.WriteMessage(data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.closeErr()
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (c *Client) readLoop() {
	for {
		data, err := c.stream.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		id, err := strconv.ParseInt(string(resp.ID), 10, 64)
		if err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *Client) shutdown(err error) {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	if err != nil && !isClosedErr(err) {
		c.err = err
	}
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, c.err)
	}
	return ErrClosed
}

// Close closes the connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.shutdown(nil)
	return c.stream.Close()
}

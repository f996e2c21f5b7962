// Package rpc drives a fit engine living in a helper process over
// newline-delimited JSON-RPC 2.0 on the helper's stdin and stdout.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/rpggio/phasefold/internal/transport"
)

// Method names of the helper protocol.
const (
	MethodSetup           = "setup"
	MethodROI             = "roi"
	MethodSetSpectralPars = "set_spectral_pars"
	MethodFreeSources     = "free_sources"
	MethodFreeSource      = "free_source"
	MethodFit             = "fit"
	MethodWriteROI        = "write_roi"
	MethodSED             = "sed"
	MethodShutdown        = "shutdown"
)

var (
	// ErrBroken indicates a connection abandoned mid-call; no further calls are possible.
	ErrBroken = errors.New("rpc connection broken")
	// ErrProtocol indicates a response that does not answer the request just sent.
	ErrProtocol = errors.New("rpc protocol violation")
)

// Client issues one call at a time over a connection.
type Client struct {
	mu     sync.Mutex
	conn   *transport.Conn
	nextID int64
	broken error
}

// NewClient creates a client reading responses from r and writing requests to w.
func NewClient(r io.Reader, w io.Writer) *Client {
	return &Client{conn: transport.NewConn(r, w)}
}

type received struct {
	resp transport.Response
	err  error
}

// Call sends method with params and decodes the result into result, which
// may be nil. If ctx ends first the client is marked broken.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return c.broken
	}

	c.nextID++
	id := c.nextID
	req, err := transport.NewRequest(id, method, params)
	if err != nil {
		return err
	}
	if err := c.conn.Send(req); err != nil {
		c.broken = fmt.Errorf("%w: sending %s: %v", ErrBroken, method, err)
		return c.broken
	}

	done := make(chan received, 1)
	go func() {
		var resp transport.Response
		err := c.conn.Receive(&resp)
		done <- received{resp: resp, err: err}
	}()

	var got received
	select {
	case <-ctx.Done():
		c.broken = fmt.Errorf("%w: %s interrupted", ErrBroken, method)
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case got = <-done:
	}

	if got.err != nil {
		c.broken = fmt.Errorf("%w: receiving %s: %v", ErrBroken, method, got.err)
		return c.broken
	}
	if !sameID(got.resp.ID, id) {
		c.broken = fmt.Errorf("%w: %s answered with id %v, want %d", ErrProtocol, method, got.resp.ID, id)
		return c.broken
	}
	if got.resp.Error != nil {
		return fmt.Errorf("%s: %w", method, got.resp.Error)
	}
	if result != nil && len(got.resp.Result) > 0 {
		if err := json.Unmarshal(got.resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func sameID(got any, want int64) bool {
	switch v := got.(type) {
	case float64:
		return v == float64(want)
	case string:
		return v == strconv.FormatInt(want, 10)
	}
	return false
}

package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// JSON-RPC 2.0 error codes.
const (
	ErrParseCode      = -32700
	ErrInvalidReq     = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

// Version is the only protocol version spoken.
const Version = "2.0"

// ErrInvalidRequest reports a well-formed message that is not a valid request.
var ErrInvalidRequest = errors.New("invalid request")

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request with params encoded.
func NewRequest(id any, method string, params any) (Request, error) {
	req := Request{JSONRPC: Version, Method: method, ID: id}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewResult builds a success response.
func NewResult(id any, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("encode result: %w", err)
	}
	return Response{JSONRPC: Version, Result: raw, ID: id}, nil
}

// NewError builds an error response.
func NewError(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: message, Data: data},
		ID:      id,
	}
}

func (r Request) validate() error {
	if r.JSONRPC != Version || r.Method == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Conn exchanges newline-delimited JSON-RPC messages over a byte stream.
type Conn struct {
	mu  sync.Mutex
	enc *json.Encoder
	dec *json.Decoder
}

// NewConn wraps a reader and writer.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{
		enc: json.NewEncoder(w),
		dec: json.NewDecoder(bufio.NewReader(r)),
	}
}

// Send writes one message followed by a newline.
func (c *Conn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(msg)
}

// Receive decodes the next message into msg.
func (c *Conn) Receive(msg any) error {
	return c.dec.Decode(msg)
}

// ReceiveRequest decodes and validates the next request.
func (c *Conn) ReceiveRequest() (Request, error) {
	var req Request
	if err := c.dec.Decode(&req); err != nil {
		return Request{}, err
	}
	if err := req.validate(); err != nil {
		return req, err
	}
	return req, nil
}

// WriteJSON writes payload as a JSON body with status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

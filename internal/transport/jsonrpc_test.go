package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConn_RoundTrip(t *testing.T) {
	var wire bytes.Buffer
	conn := NewConn(&wire, &wire)

	req, err := NewRequest(7, "fit", map[string]float64{"tol": 0.1})
	require.NoError(t, err)
	require.NoError(t, conn.Send(req))
	require.Equal(t, `{"jsonrpc":"2.0","method":"fit","params":{"tol":0.1},"id":7}`+"\n", wire.String())

	got, err := conn.ReceiveRequest()
	require.NoError(t, err)
	require.Equal(t, "fit", got.Method)
	require.Equal(t, float64(7), got.ID)
}

func TestConn_InvalidRequest(t *testing.T) {
	conn := NewConn(bytes.NewBufferString(`{"jsonrpc":"1.0","method":"fit","id":1}`+"\n"), &bytes.Buffer{})
	req, err := conn.ReceiveRequest()
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Equal(t, float64(1), req.ID)
}

func TestNewError(t *testing.T) {
	resp := NewError(3, ErrMethodNotFound, "method not found", "nope")
	require.Equal(t, Version, resp.JSONRPC)
	require.Equal(t, ErrMethodNotFound, resp.Error.Code)
	require.Equal(t, "rpc error -32601: method not found", resp.Error.Error())
}

package mcp

import (
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionTimeout closes idle streamable HTTP sessions.
const SessionTimeout = 30 * time.Minute

// NewHTTPHandler serves server over the streamable HTTP transport. Every
// HTTP session shares the one server and its tools.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{
		Stateless:      false,
		SessionTimeout: SessionTimeout,
	})
}

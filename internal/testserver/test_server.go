// Package testserver starts the full phasefold HTTP stack against an
// in-memory ledger and the dry-run fit engine.
package testserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/mcp"
	"github.com/rpggio/phasefold/internal/pipeline"
	"github.com/rpggio/phasefold/internal/sqlite"
	"github.com/rpggio/phasefold/internal/timing"
	"github.com/rpggio/phasefold/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Token   string
	Runs    *run.Service
	Journal *journal.Service
}

func New(t *testing.T, token string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	journalSvc := journal.NewService(sqlite.NewJournalRepository(db), nil)
	runSvc := run.NewService(sqlite.NewRunRepository(db), journalSvc, nil)
	pipelineSvc := pipeline.NewService(pipeline.Deps{
		Store:    sqlite.NewEventStore(),
		Registry: timing.NewRegistry(),
		Engines:  fit.DryRunFactory,
		Recorder: runSvc,
		Journal:  journalSvc,
	})

	server := mcp.NewServer(mcp.Config{Services: mcp.Services{
		Pipeline: pipelineSvc,
		Runs:     runSvc,
		Journal:  journalSvc,
	}})
	router := transport.NewServer(transport.Options{
		MCP:  mcp.NewHTTPHandler(server),
		Runs: runSvc,
		Auth: transport.AuthMiddleware(transport.NewStaticTokens(map[string]string{"test": token})),
	})
	httpServer := httptest.NewServer(router)

	t.Cleanup(func() {
		httpServer.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:  httpServer,
		DB:      db,
		Token:   token,
		Runs:    runSvc,
		Journal: journalSvc,
	}
}

// Client returns an HTTP client that sends the server's bearer token.
func (ts *TestServer) Client() *http.Client {
	return &http.Client{Transport: bearerTransport{token: ts.Token, base: http.DefaultTransport}}
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}

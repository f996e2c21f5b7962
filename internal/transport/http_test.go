package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	runs []run.Run
	opts run.ListOptions
}

func (f *fakeRuns) List(_ context.Context, opts run.ListOptions) ([]run.Run, error) {
	f.opts = opts
	return f.runs, nil
}

func (f *fakeRuns) Get(_ context.Context, id string) (*run.Detail, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return &run.Detail{Run: r}, nil
		}
	}
	return nil, run.ErrRunNotFound
}

func TestHTTPServer_MCP(t *testing.T) {
	var gotClient, gotSession string
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClient, _ = ClientFromContext(r.Context())
		gotSession, _ = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})
	auth := AuthMiddleware(NewStaticTokens(map[string]string{"operator": "s3cret"}))
	server := httptest.NewServer(NewServer(Options{MCP: mcp, Auth: auth}))
	t.Cleanup(server.Close)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Mcp-Session-Id", "sess1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "operator", gotClient)
	require.Equal(t, "sess1", gotSession)

	req, err = http.NewRequest(http.MethodPost, server.URL+"/mcp", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_Health(t *testing.T) {
	auth := AuthMiddleware(NewStaticTokens(map[string]string{"operator": "s3cret"}))
	server := httptest.NewServer(NewServer(Options{Auth: auth}))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_Runs(t *testing.T) {
	runs := &fakeRuns{runs: []run.Run{{ID: "r1", Root: "/bins", Status: run.StatusSucceeded, Bins: 2}}}
	router := NewServer(Options{Runs: runs})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?status=succeeded&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, runs.opts.Limit)
	require.Equal(t, run.StatusSucceeded, *runs.opts.Status)

	var list struct {
		Runs []run.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail run.Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, 2, detail.Run.Bins)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=many", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPServer_CORS(t *testing.T) {
	router := NewServer(Options{AllowedOrigins: []string{"https://ops.example.org"}})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://ops.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "https://ops.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/phasefold/internal/axis"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/pipeline"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// PipelineService defines the pipeline stages exposed as tools.
type PipelineService interface {
	PreviewBins(spec pipeline.AxisSpec, root string, absolute bool) (axis.Axis, []binning.Job, error)
	GenerateBins(ctx context.Context, req pipeline.GenerateRequest) ([]binning.Job, error)
	Fold(ctx context.Context, req pipeline.FoldRequest) ([]pipeline.Folded, error)
	RunBatch(ctx context.Context, req pipeline.BatchRequest) (*batch.Aggregate, error)
}

// RunService defines run ledger reads needed by MCP.
type RunService interface {
	List(ctx context.Context, opts run.ListOptions) ([]run.Run, error)
	Get(ctx context.Context, id string) (*run.Detail, error)
}

// JournalService defines journal reads needed by MCP.
type JournalService interface {
	Recent(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error)
}

// Services contains all services needed by MCP.
type Services struct {
	Pipeline PipelineService
	Runs     RunService
	Journal  JournalService
}

// Config contains server configuration.
type Config struct {
	Services Services
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "phasefold",
		Version: Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(sessionMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}

package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/axis"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/events"
	"github.com/rpggio/phasefold/internal/phase"
	"github.com/rpggio/phasefold/internal/timing"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps pipeline errors to tool error codes. Unrecognized errors
// map to PIPELINE_ERROR.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, axis.ErrInvalidAxis), errors.Is(err, axis.ErrOverlap), errors.Is(err, axis.ErrNotContiguous):
		return &APIError{Code: "INVALID_AXIS", Message: msg, RecoveryHint: "Give ordered, non-overlapping bins with phase_max > phase_min"}
	case errors.Is(err, analysis.ErrInvalidDocument), errors.Is(err, analysis.ErrNotMapping):
		return &APIError{Code: "INVALID_CONFIG", Message: msg, RecoveryHint: "The base config must be a YAML mapping with a selection section"}
	case errors.Is(err, analysis.ErrInvalidPlan):
		return &APIError{Code: "INVALID_PLAN", Message: msg, RecoveryHint: "Set source_name in the plan or pass source"}
	case errors.Is(err, events.ErrInvalidObservation):
		return &APIError{Code: "INVALID_OBSERVATION", Message: msg, RecoveryHint: "Pass at least one event file and a spacecraft file"}
	case errors.Is(err, phase.ErrEphemerisNotFound):
		return &APIError{Code: "EPHEMERIS_NOT_FOUND", Message: msg, RecoveryHint: "Check the ephemeris path"}
	case errors.Is(err, phase.ErrColumnExists), errors.Is(err, events.ErrFileExists):
		return &APIError{Code: "ALREADY_EXISTS", Message: msg, RecoveryHint: "Retry without keep_existing to replace it"}
	case errors.Is(err, phase.ErrNonFinitePhase), errors.Is(err, phase.ErrLengthMismatch):
		return &APIError{Code: "TIMING_MODEL_ERROR", Message: msg}
	case errors.Is(err, timing.ErrNotBarycentered):
		return &APIError{Code: "NOT_BARYCENTERED", Message: msg, RecoveryHint: "Barycentre the event file first"}
	case errors.Is(err, timing.ErrInvalidParFile), errors.Is(err, timing.ErrParamNotFound):
		return &APIError{Code: "INVALID_EPHEMERIS", Message: msg}
	case errors.Is(err, batch.ErrNoBins):
		return &APIError{Code: "NO_BINS", Message: msg, RecoveryHint: "Call generate_bins first or check dir_prefix"}
	case errors.Is(err, batch.ErrConfigNotFound), errors.Is(err, batch.ErrAmbiguousConfig):
		return &APIError{Code: "BIN_CONFIG", Message: msg, RecoveryHint: "Keep exactly one config file per bin directory"}
	case errors.Is(err, run.ErrRunNotFound):
		return &APIError{Code: "RUN_NOT_FOUND", Message: msg, RecoveryHint: "Use list_runs to find run ids"}
	case errors.Is(err, run.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: msg}
	}

	var binErr *batch.BinError
	if errors.As(err, &binErr) {
		return &APIError{
			Code:    "BIN_FAILED",
			Message: msg,
			Details: map[string]any{"bin": binErr.Index, "dir": binErr.Dir, "stage": binErr.Stage},
		}
	}
	return &APIError{Code: "PIPELINE_ERROR", Message: msg}
}

// errorResult renders err as a tool error result.
func errorResult(err error, details any) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	if details != nil && apiErr.Details == nil {
		apiErr.Details = details
	}
	text, mErr := json.Marshal(apiErr)
	if mErr != nil {
		text = []byte(apiErr.Error())
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(text)}},
	}
}

// jsonResult renders v as the text content of a tool result.
func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(text)}},
	}, v, nil
}

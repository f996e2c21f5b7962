package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/transport"
)

// Serve answers requests read from r with eng until shutdown is requested or
// r reaches EOF. Engine errors are returned to the caller as RPC errors and do
// not stop the loop.
func Serve(ctx context.Context, r io.Reader, w io.Writer, eng fit.Engine) error {
	conn := transport.NewConn(r, w)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, eng.Close())
		}
		req, err := conn.ReceiveRequest()
		if errors.Is(err, io.EOF) {
			return eng.Close()
		}
		if err != nil {
			if !errors.Is(err, transport.ErrInvalidRequest) {
				_ = conn.Send(transport.NewError(nil, transport.ErrParseCode, "parse error", err.Error()))
				return errors.Join(fmt.Errorf("read request: %w", err), eng.Close())
			}
			if sendErr := conn.Send(transport.NewError(req.ID, transport.ErrInvalidReq, "invalid request", nil)); sendErr != nil {
				return errors.Join(sendErr, eng.Close())
			}
			continue
		}

		if req.Method == MethodShutdown {
			resp, _ := transport.NewResult(req.ID, struct{}{})
			sendErr := conn.Send(resp)
			return errors.Join(sendErr, eng.Close())
		}

		resp := dispatch(ctx, eng, req)
		if err := conn.Send(resp); err != nil {
			return errors.Join(fmt.Errorf("send response: %w", err), eng.Close())
		}
	}
}

type paramError struct{ err error }

func (e paramError) Error() string { return e.err.Error() }

func decode(req transport.Request, v any) error {
	if len(req.Params) == 0 {
		return paramError{fmt.Errorf("%s: missing params", req.Method)}
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return paramError{fmt.Errorf("%s: %w", req.Method, err)}
	}
	return nil
}

func dispatch(ctx context.Context, eng fit.Engine, req transport.Request) transport.Response {
	var (
		result any = struct{}{}
		err    error
	)
	switch req.Method {
	case MethodSetup:
		err = eng.Setup(ctx)
	case MethodROI:
		var p nameParams
		if err = decode(req, &p); err == nil {
			result, err = eng.ROI(ctx, p.Name)
		}
	case MethodSetSpectralPars:
		var p spectralParams
		if err = decode(req, &p); err == nil {
			err = eng.SetSpectralPars(ctx, p.Name, p.Pars)
		}
	case MethodFreeSources:
		var p freeSourcesParams
		if err = decode(req, &p); err == nil {
			err = eng.FreeSources(ctx, p.Distance, p.Pars)
		}
	case MethodFreeSource:
		var p nameParams
		if err = decode(req, &p); err == nil {
			err = eng.FreeSource(ctx, p.Name)
		}
	case MethodFit:
		result, err = eng.Fit(ctx)
	case MethodWriteROI:
		var p writeROIParams
		if err = decode(req, &p); err == nil {
			err = eng.WriteROI(ctx, p.Filename)
		}
	case MethodSED:
		var p sedParams
		if err = decode(req, &p); err == nil {
			result, err = eng.SED(ctx, p.Name, p.SEDType)
		}
	default:
		return transport.NewError(req.ID, transport.ErrMethodNotFound, "method not found", req.Method)
	}

	var pe paramError
	switch {
	case errors.As(err, &pe):
		return transport.NewError(req.ID, transport.ErrInvalidParams, pe.Error(), nil)
	case err != nil:
		return transport.NewError(req.ID, transport.ErrInternal, err.Error(), nil)
	}
	resp, encErr := transport.NewResult(req.ID, result)
	if encErr != nil {
		return transport.NewError(req.ID, transport.ErrInternal, encErr.Error(), nil)
	}
	return resp
}

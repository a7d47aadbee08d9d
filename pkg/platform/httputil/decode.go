package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "idmanager/pkg/domain-errors"
)

// MaxBodyBytes bounds every JSON request body accepted by the API.
const MaxBodyBytes = 1 << 20

// DecodeJSON reads the body of r into a new T. On failure it has already
// written a bad_request response.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	out := new(T)
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(out)
	if err == nil {
		return out, true
	}

	logger.WarnContext(ctx, "failed to decode request body", "error", err, "request_id", requestID)
	msg := "invalid request body"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		msg = "request body too large"
	}
	WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
	return nil, false
}

// PrepareRequest trims then validates req when it supports either step.
func PrepareRequest(req any) error {
	if n, ok := req.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	if v, ok := req.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare decodes then prepares the body. Validation failures
// without a domain code are reported as validation errors.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	err := PrepareRequest(req)
	if err == nil {
		return req, true
	}

	logger.WarnContext(ctx, "invalid request", "error", err, "request_id", requestID)
	if _, coded := dErrors.CodeOf(err); !coded {
		err = dErrors.New(dErrors.CodeValidation, err.Error())
	}
	WriteError(w, err)
	return nil, false
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/paginate"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   apperr.Kind       `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError maps err onto its status code. Internal causes are logged but
// never echoed to the client.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("internal error", err)
	}

	body := errorResponse{Error: appErr.Message, Kind: appErr.Kind, Fields: appErr.Fields}
	switch appErr.Kind {
	case apperr.KindInternal:
		body.Error = "internal error"
		logging.FromContext(ctx).Error("unexpected failure", "error", err)
	case apperr.KindDependencyFailure, apperr.KindPartialFailure, apperr.KindUnavailable:
		logging.FromContext(ctx).Error("operation failed", "kind", appErr.Kind, "error", err)
	}
	if body.Error == "" {
		body.Error = string(appErr.Kind)
	}
	respondJSON(ctx, w, appErr.Kind.HTTPStatus(), body)
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

// pageRequest parses the page and limit query parameters.
func pageRequest(r *http.Request) (paginate.Request, error) {
	q := r.URL.Query()
	return paginate.ParseRequest(q.Get("page"), q.Get("limit"))
}

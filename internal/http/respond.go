package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mrx7355608/finance-app-2.0/internal/core"
	applog "github.com/mrx7355608/finance-app-2.0/internal/log"
)

const internalErrorMessage = "Something went wrong. Please try again."

type errorResponse struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

// errBadRequest marks client errors that happen before a service is called.
type errBadRequest struct{ msg string }

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &errBadRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeError maps service errors to status codes. Storage and unknown
// failures are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *core.ValidationError
		nf  *core.NotFoundError
		ref *core.ReferentialError
		br  *errBadRequest
		mbe *http.MaxBytesError
	)

	switch {
	case errors.As(err, &br):
		writeMessage(w, http.StatusBadRequest, br.msg)
	case errors.As(err, &mbe):
		writeMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes.", mbe.Limit))
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "Validation failed.", Errors: ve.Fields})
	case errors.As(err, &nf):
		writeMessage(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &ref):
		writeMessage(w, http.StatusConflict, ref.Error())
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, internalErrorMessage)
	}
}

// decodeObject reads a JSON object body keeping numbers as json.Number so
// validation sees the exact value sent.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		if errors.Is(err, io.EOF) {
			return nil, badRequest("Request body is required.")
		}
		return nil, badRequest("Invalid JSON body.")
	}
	if raw == nil {
		return nil, badRequest("Request body must be a JSON object.")
	}
	if dec.More() {
		return nil, badRequest("Request body must contain a single JSON object.")
	}
	return raw, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid ID %q.", raw)
	}
	return id, nil
}

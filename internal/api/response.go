package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/popis/internal/counting"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// serviceErrorStatus maps counting errors onto HTTP statuses. Validation
// errors not matched earlier are well-formed requests the session state
// cannot accept, hence 422.
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, counting.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, counting.ErrSessionClosed), counting.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, counting.ErrInvalidQuantity), errors.Is(err, counting.ErrInvalidMethod):
		return http.StatusBadRequest
	case counting.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, counting.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, counting.ErrLedgerCommitFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// serviceError writes err from the counting service. Internal errors are
// logged and hidden from the client.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := serviceErrorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		jsonError(w, status, "internal error")
		return
	}

	body := map[string]string{"error": err.Error()}
	var cerr *counting.Error
	if errors.As(err, &cerr) && cerr.Field != "" {
		body["field"] = cerr.Field
	}
	jsonResponse(w, status, body)
}

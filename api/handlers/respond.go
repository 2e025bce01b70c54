package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeError maps a dispatch error kind onto its HTTP status
func writeError(w http.ResponseWriter, message string, err error) {
	config.ErrorStatus(message, config.StatusFromError(err), w, err)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", models.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// requireRole returns the caller when they hold one of roles, otherwise it
// writes a 403 and returns false
func requireRole(w http.ResponseWriter, r *http.Request, roles ...models.Role) (models.Identity, bool) {
	id := api.IdentityFromContext(r.Context())
	if !id.HasRole(roles...) {
		writeError(w, "insufficient role", fmt.Errorf("%w: role %q may not call %s", models.ErrForbidden, id.Role, r.URL.Path))
		return id, false
	}
	return id, true
}

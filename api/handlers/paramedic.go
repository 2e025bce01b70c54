package handlers

import (
	"net/http"
	"time"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/dispatch"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Paramedic exported for testing purposes
type Paramedic struct {
	C  *dispatch.Coordinator
	DB databases.Store
	// bound on the reads served directly from the store
	Timeout time.Duration
}

// ParamedicsHandler lists paramedic accounts for the dispatch board
func (p Paramedic) ParamedicsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleDispatcher, models.RoleAdmin); !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context(), p.Timeout)
	defer cancel()
	users, err := p.DB.ListUsers(ctx, models.RoleParamedic)
	if err != nil {
		writeError(w, "failed to get paramedics", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ToggleAvailabilityHandler flips the caller's availability
func (p Paramedic) ToggleAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	user, err := p.C.ToggleAvailability(r.Context(), api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to toggle availability", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"_id":         user.ID,
		"isAvailable": user.Details.Available(),
	})
}

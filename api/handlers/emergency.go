package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/dispatch"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Emergency exported for testing purposes
type Emergency struct {
	C  *dispatch.Coordinator
	DB databases.Store
	// bound on the reads served directly from the store
	Timeout time.Duration
}

type statusUpdateRequest struct {
	Status models.EmergencyStatus `json:"status"`
}

// EmergencyIntakeHandler records a new call. Intake is public.
func (e Emergency) EmergencyIntakeHandler(w http.ResponseWriter, r *http.Request) {
	var intake models.EmergencyIntake
	if err := decodeBody(r, &intake); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	call, err := e.C.CreateEmergency(r.Context(), intake)
	if err != nil {
		writeError(w, "failed to create emergency", err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

// EmergenciesHandler lists calls by scope (active, board, pending, completed, all)
func (e Emergency) EmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleDispatcher, models.RoleAdmin); !ok {
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = dispatch.ScopeAll
	}
	ctx, cancel := api.WithQueryTimeout(r.Context(), e.Timeout)
	defer cancel()
	calls, err := e.C.ListEmergencies(ctx, scope)
	if err != nil {
		writeError(w, "failed to get emergencies", err)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

// ActiveEmergenciesHandler lists the calls a crew is working
func (e Emergency) ActiveEmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleDispatcher, models.RoleAdmin); !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context(), e.Timeout)
	defer cancel()
	calls, err := e.C.ListEmergencies(ctx, dispatch.ScopeActive)
	if err != nil {
		writeError(w, "failed to get active emergencies", err)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

// MyActiveEmergencyHandler returns the caller's active call, null when none
func (e Emergency) MyActiveEmergencyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireRole(w, r, models.RoleParamedic)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context(), e.Timeout)
	defer cancel()
	call, err := e.C.ActiveCallFor(ctx, id.UserID)
	if err != nil {
		writeError(w, "failed to get active emergency", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"emergencyCall": call})
}

// EmergencyByIDHandler returns a call to dispatchers and to its assigned paramedic
func (e Emergency) EmergencyByIDHandler(w http.ResponseWriter, r *http.Request) {
	emergencyID := mux.Vars(r)["emergency_id"]
	zap.S().Debugw("get emergency", "emergencyId", emergencyID)

	ctx, cancel := api.WithQueryTimeout(r.Context(), e.Timeout)
	defer cancel()
	call, err := e.DB.GetEmergency(ctx, emergencyID)
	if err != nil {
		writeError(w, "failed to get emergency by ID", err)
		return
	}
	id := api.IdentityFromContext(r.Context())
	if !id.HasRole(models.RoleDispatcher, models.RoleAdmin) && call.Details.AssignedParamedicID != id.UserID {
		writeError(w, "insufficient role", fmt.Errorf("%w: call is not assigned to you", models.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// UpdateEmergencyStatusHandler moves a call one step along its lifecycle
func (e Emergency) UpdateEmergencyStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body statusUpdateRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	call, err := e.C.UpdateEmergencyStatus(r.Context(), mux.Vars(r)["emergency_id"], body.Status, api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to update emergency status", err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// AcknowledgeDispatchHandler confirms a dispatch on behalf of the assigned paramedic
func (e Emergency) AcknowledgeDispatchHandler(w http.ResponseWriter, r *http.Request) {
	ack, err := e.C.AcknowledgeDispatch(r.Context(), mux.Vars(r)["emergency_id"], api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to acknowledge dispatch", err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

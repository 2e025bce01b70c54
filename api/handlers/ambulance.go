package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/dispatch"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Ambulance exported for testing purposes
type Ambulance struct {
	C  *dispatch.Coordinator
	DB databases.Store
	// bound on the reads served directly from the store
	Timeout time.Duration
}

// AmbulancesHandler returns the whole fleet
func (a Ambulance) AmbulancesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleDispatcher, models.RoleAdmin, models.RoleParamedic); !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context(), a.Timeout)
	defer cancel()
	fleet, err := a.DB.ListAmbulances(ctx)
	if err != nil {
		writeError(w, "failed to get ambulances", err)
		return
	}
	writeJSON(w, http.StatusOK, fleet)
}

// AmbulanceByIDHandler returns one ambulance
func (a Ambulance) AmbulanceByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context(), a.Timeout)
	defer cancel()
	amb, err := a.DB.GetAmbulance(ctx, mux.Vars(r)["ambulance_id"])
	if err != nil {
		writeError(w, "failed to get ambulance by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, amb)
}

// UpdateLocationHandler records a GPS fix reported through the API
func (a Ambulance) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var body models.LocationUpdate
	if err := decodeBody(r, &body); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		writeError(w, "failed to update location", fmt.Errorf("%w: latitude and longitude are required", models.ErrInvalidInput))
		return
	}
	amb, err := a.C.UpdateAmbulanceLocation(r.Context(), mux.Vars(r)["ambulance_id"], *body.Latitude, *body.Longitude, api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to update location", err)
		return
	}
	writeJSON(w, http.StatusOK, amb)
}

// CompleteAssignmentHandler frees an ambulance after its call
func (a Ambulance) CompleteAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	amb, err := a.C.CompleteAssignment(r.Context(), mux.Vars(r)["ambulance_id"], api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to complete assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, amb)
}

// DispatchHandler assigns an ambulance to a call
func (a Ambulance) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireRole(w, r, models.RoleDispatcher)
	if !ok {
		return
	}
	var req models.DispatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	res, err := a.C.Dispatch(r.Context(), req, id)
	if err != nil {
		writeError(w, "failed to dispatch ambulance", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateAmbulanceHandler registers a unit with the fleet
func (a Ambulance) CreateAmbulanceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireRole(w, r, models.RoleDispatcher)
	if !ok {
		return
	}
	var in models.AmbulanceInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	amb, err := a.C.CreateAmbulance(r.Context(), in, id)
	if err != nil {
		writeError(w, "failed to create ambulance", err)
		return
	}
	writeJSON(w, http.StatusCreated, amb)
}

// DeleteAmbulanceHandler removes an idle unit
func (a Ambulance) DeleteAmbulanceHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.C.DeleteAmbulance(r.Context(), mux.Vars(r)["ambulance_id"], api.IdentityFromContext(r.Context())); err != nil {
		writeError(w, "failed to delete ambulance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

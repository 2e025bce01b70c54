package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/dispatch"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Hospital exported for testing purposes
type Hospital struct {
	C  *dispatch.Coordinator
	DB databases.Store
	// bound on the reads served directly from the store
	Timeout time.Duration
}

// HospitalsHandler returns every hospital
func (h Hospital) HospitalsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context(), h.Timeout)
	defer cancel()
	list, err := h.DB.ListHospitals(ctx)
	if err != nil {
		writeError(w, "failed to get hospitals", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateCapacityHandler changes bed counts or the capacity tier
func (h Hospital) UpdateCapacityHandler(w http.ResponseWriter, r *http.Request) {
	var update models.CapacityUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	hospital, err := h.C.UpdateHospitalCapacity(r.Context(), mux.Vars(r)["hospital_id"], update, api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to update hospital capacity", err)
		return
	}
	writeJSON(w, http.StatusOK, hospital)
}

// CreateHospitalHandler registers a hospital
func (h Hospital) CreateHospitalHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireRole(w, r, models.RoleAdmin)
	if !ok {
		return
	}
	var in models.HospitalInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	hospital, err := h.C.CreateHospital(r.Context(), in, id)
	if err != nil {
		writeError(w, "failed to create hospital", err)
		return
	}
	writeJSON(w, http.StatusCreated, hospital)
}

// UpdateHospitalHandler edits a hospital
func (h Hospital) UpdateHospitalHandler(w http.ResponseWriter, r *http.Request) {
	var update models.HospitalUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	hospital, err := h.C.UpdateHospital(r.Context(), mux.Vars(r)["hospital_id"], update, api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to update hospital", err)
		return
	}
	writeJSON(w, http.StatusOK, hospital)
}

// DeleteHospitalHandler removes a hospital
func (h Hospital) DeleteHospitalHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.C.DeleteHospital(r.Context(), mux.Vars(r)["hospital_id"], api.IdentityFromContext(r.Context())); err != nil {
		writeError(w, "failed to delete hospital", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/dispatch"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// User exported for testing purposes
type User struct {
	C       *dispatch.Coordinator
	Timeout time.Duration
}

// UsersHandler lists accounts, optionally filtered by ?role=
func (u User) UsersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context(), u.Timeout)
	defer cancel()
	users, err := u.C.ListUsers(ctx, models.Role(r.URL.Query().Get("role")), api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to get users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// UserByIDHandler returns one account
func (u User) UserByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context(), u.Timeout)
	defer cancel()
	user, err := u.C.GetUser(ctx, mux.Vars(r)["user_id"], api.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, "failed to get user by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateUserHandler opens an account
func (u User) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireRole(w, r, models.RoleAdmin)
	if !ok {
		return
	}
	var in models.UserInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	user, err := u.C.CreateUser(r.Context(), in, id)
	if err != nil {
		writeError(w, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// UpdateUserHandler edits an account
func (u User) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireRole(w, r, models.RoleAdmin)
	if !ok {
		return
	}
	var update models.UserUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, "failed to decode request", err)
		return
	}
	user, err := u.C.UpdateUser(r.Context(), mux.Vars(r)["user_id"], update, id)
	if err != nil {
		writeError(w, "failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler closes an account
func (u User) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if err := u.C.DeleteUser(r.Context(), mux.Vars(r)["user_id"], api.IdentityFromContext(r.Context())); err != nil {
		writeError(w, "failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/isdelr/ender-accounts-be/internal/validation"
	"github.com/rs/zerolog/log"
)

// UserHandler serves the user.* RPC procedures.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// Create handles user.create.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in validation.CreateUserInput
	if err := decodeInput(w, r, &in); err != nil {
		respondWithError(w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		log.Warn().Err(err).Msg("user.create failed")
		respondWithError(w, err)
		return
	}
	respondWithData(w, http.StatusCreated, user)
}

// GetAll handles user.getAll.
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	var in validation.ListUsersInput
	var err error
	if in.Page, err = queryInt(r, "page"); err != nil {
		respondWithError(w, err)
		return
	}
	if in.Limit, err = queryInt(r, "limit"); err != nil {
		respondWithError(w, err)
		return
	}

	page, err := h.service.GetAllUsers(r.Context(), in)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, page)
}

// GetByID handles user.getById.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), validation.UserIDInput{ID: id})
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, user)
}

// Update handles user.update.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in validation.UpdateUserInput
	if err := decodeInput(w, r, &in); err != nil {
		respondWithError(w, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), in)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", in.ID).Msg("user.update failed")
		respondWithError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, user)
}

// Delete handles user.delete.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var in validation.UserIDInput
	if err := decodeInput(w, r, &in); err != nil {
		respondWithError(w, err)
		return
	}

	ack, err := h.service.DeleteUser(r.Context(), in)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", in.ID).Msg("user.delete failed")
		respondWithError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, ack)
}

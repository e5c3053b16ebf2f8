package user

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// Handler exposes user HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/", h.registerUser)
		r.Get("/{id}", h.getUser)
		r.Post("/{id}/locations", h.assignLocation)
		r.Get("/{id}/locations", h.listLocations)
	})
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body", "body"))
		return
	}
	u, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, apperrors.NewValidationError("invalid user id", "id"))
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (h *Handler) assignLocation(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, apperrors.NewValidationError("invalid user id", "id"))
		return
	}
	var req struct {
		LocationID string `json:"location_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body", "body"))
		return
	}
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		respondError(w, apperrors.NewValidationError("invalid location_id", "location_id"))
		return
	}
	a, err := h.service.AssignToLocation(r.Context(), userID, locationID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, a)
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, apperrors.NewValidationError("invalid user id", "id"))
		return
	}
	ids, err := h.service.AssignedLocationIDs(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"location_ids": ids})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	stdErr := apperrors.FromError(err)
	respond(w, stdErr.HTTPStatus(), stdErr)
}

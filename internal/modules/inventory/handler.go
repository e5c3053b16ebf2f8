package inventory

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tustockya/tustockya-backend/pkg/errors"
	"github.com/tustockya/tustockya-backend/pkg/middleware"
)

// Handler exposes inventory HTTP endpoints: availability checks, movement
// history, and administrative reversals.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/availability", h.checkAvailability)
		r.Get("/movements", h.listMovements)
		r.Post("/movements/{id}/reverse", h.reverseMovement)
	})
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	referenceCode, size, locationID, err := variantQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	availability, err := h.service.CheckAvailability(r.Context(), referenceCode, size, locationID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, availability)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	referenceCode, size, locationID, err := variantQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	changes, err := h.service.MovementHistory(r.Context(), referenceCode, size, locationID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"movements": changes})
}

func (h *Handler) reverseMovement(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"code": "Unauthorized", "message": "authentication required"})
		return
	}
	changeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errors.NewValidationError("invalid movement id", "id"))
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("invalid request body", "body"))
		return
	}
	change, err := h.service.ReverseMovement(r.Context(), actor, changeID, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, change)
}

func variantQuery(r *http.Request) (string, string, uuid.UUID, error) {
	referenceCode := r.URL.Query().Get("reference_code")
	size := r.URL.Query().Get("size")
	if referenceCode == "" {
		return "", "", uuid.Nil, errors.NewValidationError("reference_code is required", "reference_code")
	}
	if size == "" {
		return "", "", uuid.Nil, errors.NewValidationError("size is required", "size")
	}
	locationID, err := uuid.Parse(r.URL.Query().Get("location_id"))
	if err != nil {
		return "", "", uuid.Nil, errors.NewValidationError("invalid location_id", "location_id")
	}
	return referenceCode, size, locationID, nil
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	stdErr := errors.FromError(err)
	respond(w, stdErr.HTTPStatus(), stdErr)
}

package transfer

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tustockya/tustockya-backend/internal/modules/user"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
	"github.com/tustockya/tustockya-backend/pkg/middleware"
)

// Handler exposes the transfer workflow over HTTP. Every route resolves the
// acting user from the authenticated context and passes it to the service
// explicitly.
type Handler struct {
	service   Service
	dashboard *DashboardService
}

func NewHandler(service Service, dashboard *DashboardService) *Handler {
	return &Handler{service: service, dashboard: dashboard}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api/v1/transfers", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/mine", h.myTransfers)
		r.Get("/pending-receptions", h.pendingReceptions)
		r.Get("/dashboard", h.getDashboard)

		r.Get("/warehouse/pending", h.warehousePending)
		r.Get("/warehouse/accepted", h.warehouseAccepted)
		r.Get("/courier/available", h.courierAvailable)
		r.Get("/courier/history", h.courierHistory)

		r.Get("/{id}", h.get)
		r.Post("/{id}/accept", h.accept)
		r.Post("/{id}/claim", h.claim)
		r.Post("/{id}/handoff", h.handOff)
		r.Post("/{id}/pickup", h.confirmPickup)
		r.Post("/{id}/delivery", h.confirmDelivery)
		r.Post("/{id}/reception", h.confirmReception)
		r.Post("/{id}/cancel", h.cancel)
		r.Post("/{id}/incidents", h.reportIncident)
		r.Get("/{id}/incidents", h.listIncidents)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body", "body"))
		return
	}
	t, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, t)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := transferID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, t)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req AcceptRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.Accept(r.Context(), actor, id, req)
	})
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req ClaimRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.Claim(r.Context(), actor, id, req)
	})
}

func (h *Handler) handOff(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req HandOffRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.RegisterHandOff(r.Context(), actor, id, req)
	})
}

func (h *Handler) confirmPickup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req PickupRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.ConfirmPickup(r.Context(), actor, id, req)
	})
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req DeliveryRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.ConfirmDelivery(r.Context(), actor, id, req)
	})
}

func (h *Handler) confirmReception(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req ReceptionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.ConfirmReception(r.Context(), actor, id, req)
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor user.Actor, id uuid.UUID, body []byte) (*TransferRequest, error) {
		var req CancelRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, apperrors.NewValidationError("invalid request body", "body")
		}
		return h.service.Cancel(r.Context(), actor, id, req)
	})
}

func (h *Handler) reportIncident(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := transferID(w, r)
	if !ok {
		return
	}
	var req IncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body", "body"))
		return
	}
	incident, err := h.service.ReportIncident(r.Context(), actor, id, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, incident)
}

func (h *Handler) listIncidents(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := transferID(w, r)
	if !ok {
		return
	}
	incidents, err := h.service.ListIncidents(r.Context(), actor, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"incidents": incidents})
}

func (h *Handler) myTransfers(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(actor user.Actor, filter ListFilter) ([]*TransferRequest, error) {
		return h.service.MyTransfers(r.Context(), actor, filter)
	})
}

func (h *Handler) pendingReceptions(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(actor user.Actor, _ ListFilter) ([]*TransferRequest, error) {
		return h.service.PendingReceptions(r.Context(), actor)
	})
}

func (h *Handler) warehousePending(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(actor user.Actor, _ ListFilter) ([]*TransferRequest, error) {
		return h.service.PendingForWarehouse(r.Context(), actor)
	})
}

func (h *Handler) warehouseAccepted(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(actor user.Actor, _ ListFilter) ([]*TransferRequest, error) {
		return h.service.AcceptedForKeeper(r.Context(), actor)
	})
}

func (h *Handler) courierAvailable(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(actor user.Actor, _ ListFilter) ([]*TransferRequest, error) {
		return h.service.AvailableForCourier(r.Context(), actor)
	})
}

func (h *Handler) courierHistory(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(actor user.Actor, filter ListFilter) ([]*TransferRequest, error) {
		return h.service.HistoryForCourier(r.Context(), actor, filter)
	})
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	board, err := h.dashboard.ForActor(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, board)
}

// transition is the shared shape of every POST /{id}/<action> route.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(user.Actor, uuid.UUID, []byte) (*TransferRequest, error)) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	id, ok := transferID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body", "body"))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	t, err := apply(actor, id, body)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, t)
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request, query func(user.Actor, ListFilter) ([]*TransferRequest, error)) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	transfers, err := query(actor, filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"transfers": transfers})
}

func filterFromQuery(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Statuses = []Status{Status(raw)}
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid from timestamp", "from")
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid to timestamp", "to")
		}
		filter.To = &to
	}
	return filter, nil
}

func actorOrReject(w http.ResponseWriter, r *http.Request) (user.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"code": "Unauthorized", "message": "authentication required"})
		return user.Actor{}, false
	}
	return actor, true
}

func transferID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, apperrors.NewValidationError("invalid transfer id", "id"))
		return uuid.Nil, false
	}
	return id, true
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

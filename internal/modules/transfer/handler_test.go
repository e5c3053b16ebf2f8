package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/cache"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
	"github.com/tustockya/tustockya-backend/pkg/middleware"
)

func newTestRouter(f *fixture) *chi.Mux {
	dashboard := NewDashboardService(f.repo, stubAssignments{ids: []uuid.UUID{f.bodega}},
		cache.NewInMemoryCache(), time.Minute, zap.NewNop())
	router := chi.NewRouter()
	NewHandler(f.service, dashboard).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *chi.Mux, actor *user.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateTransferEndpoint(t *testing.T) {
	f := newFixture(t, 5)
	router := newTestRouter(f)

	rec := doRequest(t, router, &f.seller, http.MethodPost, "/api/v1/transfers", CreateTransferRequest{
		SourceLocationID: f.bodega.String(),
		ReferenceCode:    "NK-AF1-001",
		Size:             "42",
		Quantity:         2,
		Purpose:          "CLIENT_PRESENT",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created TransferRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, f.seller.ID, created.RequesterID)
	assert.Equal(t, f.seller.LocationID, created.DestinationID)
}

func TestCreateTransferRequiresAuth(t *testing.T) {
	f := newFixture(t, 5)
	router := newTestRouter(f)

	rec := doRequest(t, router, nil, http.MethodPost, "/api/v1/transfers", CreateTransferRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransitionEndpointsMapErrors(t *testing.T) {
	f := newFixture(t, 5)
	router := newTestRouter(f)
	tr := f.create(t, 2)

	// Wrong role on accept.
	rec := doRequest(t, router, &f.seller, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/accept", tr.ID), AcceptRequest{Accepted: true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Valid accept.
	rec = doRequest(t, router, &f.keeper, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/accept", tr.ID), AcceptRequest{Accepted: true})
	require.Equal(t, http.StatusOK, rec.Code)

	// Double accept is an invalid transition.
	rec = doRequest(t, router, &f.keeper, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/accept", tr.ID), AcceptRequest{Accepted: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// First claim wins, second conflicts.
	rec = doRequest(t, router, &f.c1, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/claim", tr.ID), ClaimRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, router, &f.c2, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/claim", tr.ID), ClaimRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown transfer id.
	rec = doRequest(t, router, &f.keeper, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/accept", uuid.New()), AcceptRequest{Accepted: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	f := newFixture(t, 5)
	router := newTestRouter(f)
	f.create(t, 2)

	rec := doRequest(t, router, &f.keeper, http.MethodGet, "/api/v1/transfers/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var board Dashboard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&board))
	assert.Equal(t, user.RoleWarehouseKeeper, board.Role)
	assert.Equal(t, 1, board.Summary.Pending)
}

func TestCourierQueueEndpoint(t *testing.T) {
	f := newFixture(t, 5)
	router := newTestRouter(f)
	tr := f.create(t, 2)

	rec := doRequest(t, router, &f.keeper, http.MethodPost,
		fmt.Sprintf("/api/v1/transfers/%s/accept", tr.ID), AcceptRequest{Accepted: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, &f.c1, http.MethodGet, "/api/v1/transfers/courier/available", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Transfers []*TransferRequest `json:"transfers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Transfers, 1)
	assert.Equal(t, tr.ID, payload.Transfers[0].ID)
}

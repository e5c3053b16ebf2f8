package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/cache"
	"github.com/tustockya/tustockya-backend/internal/config"
	"github.com/tustockya/tustockya-backend/internal/events"
	"github.com/tustockya/tustockya-backend/internal/modules/inventory"
	"github.com/tustockya/tustockya-backend/internal/modules/location"
	"github.com/tustockya/tustockya-backend/internal/modules/transfer"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
	"github.com/tustockya/tustockya-backend/pkg/logger"
	"github.com/tustockya/tustockya-backend/pkg/middleware"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Environment)
	defer log.Sync()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("failed to reach database", zap.Error(err))
	}
	log.Info("connected to database")

	// ── Event publisher ──────────────────────────────────────
	var publisher events.EventPublisher
	if cfg.KafkaEnabled {
		publisher, err = events.NewKafkaEventPublisher(cfg, log)
		if err != nil {
			log.Fatal("failed to connect to kafka", zap.Error(err))
		}
	} else {
		publisher = events.NewNoopPublisher(log)
	}
	defer publisher.Close()

	dashboardCache := cache.New(cfg, log)
	defer dashboardCache.Close()

	// ── Router ───────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(logger.RequestLogger(log))

	// ── Identity & locations ─────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo)
	user.NewHandler(userService).RegisterRoutes(router)

	locationRepo := location.NewPostgresRepository(db)
	locationService := location.NewService(locationRepo)
	location.NewHandler(locationService).RegisterRoutes(router)

	// ── Inventory ledger ─────────────────────────────────────
	ledger := inventory.NewPostgresLedger(db)
	inventoryService := inventory.NewService(ledger, publisher, log)

	// ── Transfer workflow ────────────────────────────────────
	transferRepo := transfer.NewPostgresRepository(db, ledger)
	transferService := transfer.NewService(
		transferRepo, ledger,
		locationDirectory{locationService}, userService,
		publisher, log)
	dashboard := transfer.NewDashboardService(
		transferRepo, userService, dashboardCache, cfg.DashboardCacheTTL, log)

	// Authenticated surface: inventory and transfer operations require a
	// resolved actor.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.JWTSecret))
		inventory.NewHandler(inventoryService).RegisterRoutes(r)
		transfer.NewHandler(transferService, dashboard).RegisterRoutes(r)
	})

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// locationDirectory adapts the location service to the transfer core's
// lookup interface.
type locationDirectory struct {
	service location.Service
}

func (d locationDirectory) LocationExists(ctx context.Context, id uuid.UUID) error {
	_, err := d.service.GetLocation(ctx, id)
	return err
}

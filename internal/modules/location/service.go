package location

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// Service defines location business logic.
type Service interface {
	CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*Location, error)
	ListLocations(ctx context.Context) ([]*Location, error)
}

type service struct {
	repo Repository
}

// NewService creates a new location service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error) {
	if req.Name == "" {
		return nil, apperrors.NewValidationError("name is required", "name")
	}
	t := Type(strings.ToUpper(req.Type))
	if t != TypeStore && t != TypeWarehouse {
		return nil, apperrors.NewValidationError("type must be LOCAL or BODEGA", "type")
	}

	l := &Location{
		ID:       uuid.New(),
		Name:     req.Name,
		Type:     t,
		Address:  req.Address,
		Phone:    req.Phone,
		IsActive: true,
	}
	if err := s.repo.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *service) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	return s.repo.GetLocationByID(ctx, id)
}

func (s *service) ListLocations(ctx context.Context) ([]*Location, error) {
	return s.repo.ListLocations(ctx, true)
}

package user

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// Service defines the interface for user-related business logic.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// GetActor resolves a user id into the acting-user view consumed by
	// the transfer workflow.
	GetActor(ctx context.Context, id uuid.UUID) (Actor, error)

	// AssignToLocation grants a warehouse keeper an additional location.
	AssignToLocation(ctx context.Context, userID, locationID uuid.UUID) (*LocationAssignment, error)

	// AssignedLocationIDs returns the active location set for a user.
	AssignedLocationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// RegisterUserRequest is the payload for creating a new user.
type RegisterUserRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	LocationID string `json:"location_id,omitempty"`
}

type service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error) {
	if req.Email == "" {
		return nil, apperrors.NewValidationError("email is required", "email")
	}
	if len(req.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", "password")
	}
	role := Role(strings.ToUpper(req.Role))
	if role == "" {
		role = RoleSeller
	}
	if !ValidRole(role) {
		return nil, apperrors.NewValidationError("unknown role", "role")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
	}
	if req.LocationID != "" {
		lid, err := uuid.Parse(req.LocationID)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid location_id", "location_id")
		}
		user.LocationID = &lid
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *service) GetActor(ctx context.Context, id uuid.UUID) (Actor, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return Actor{}, err
	}
	actor := Actor{ID: u.ID, Role: u.Role}
	if u.LocationID != nil {
		actor.LocationID = *u.LocationID
	}
	return actor, nil
}

func (s *service) AssignToLocation(ctx context.Context, userID, locationID uuid.UUID) (*LocationAssignment, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	a := &LocationAssignment{
		ID:         uuid.New(),
		UserID:     userID,
		LocationID: locationID,
		IsActive:   true,
	}
	if err := s.repo.AssignLocation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) AssignedLocationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.AssignedLocationIDs(ctx, userID)
}

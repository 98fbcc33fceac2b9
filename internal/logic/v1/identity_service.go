package v1

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/middleware"
)

// NewIdentity holds the fields needed to register an identity.
type NewIdentity struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// IdentityService provisions identities and reads them back.
type IdentityService struct {
	store      domain.Store
	bcryptCost int
	logger     *zap.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(store domain.Store, logger *zap.Logger) *IdentityService {
	return &IdentityService{store: store, bcryptCost: bcrypt.DefaultCost, logger: logger}
}

// WithBcryptCost sets the cost used to hash new passwords.
func (s *IdentityService) WithBcryptCost(cost int) *IdentityService {
	s.bcryptCost = cost
	return s
}

// Create stores a new active identity and its default profile in one
// transaction, so no identity is ever visible without a profile.
func (s *IdentityService) Create(ctx context.Context, in NewIdentity) (*domain.Identity, error) {
	ctx, span := middleware.StartSpan(ctx, "identity.create", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", in.Username),
	))
	defer span.End()

	verr := domain.NewValidationError()
	if strings.TrimSpace(in.Username) == "" {
		verr.Add("username", "This field is required.")
	}
	if in.Password == "" {
		verr.Add("password", "This field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *domain.Identity
	err = s.store.WithinTx(ctx, func(q domain.Queries) error {
		identity, err := q.CreateIdentity(ctx, domain.Identity{
			Username:     strings.TrimSpace(in.Username),
			PasswordHash: string(hash),
			Email:        strings.TrimSpace(in.Email),
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		if err := q.EnsureProfile(ctx, identity.ID); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		created = identity
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create identity %q: %w", in.Username, err)
	}

	middleware.RecordProfileCreated()
	span.SetAttributes(attribute.Int64("user.id", created.ID))
	s.logger.Info("Identity created",
		zap.Int64("user_id", created.ID),
		zap.String("username", created.Username),
	)
	return created, nil
}

// GetIdentity returns the identity with id.
func (s *IdentityService) GetIdentity(ctx context.Context, id int64) (*domain.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get identity %d: %w", id, err)
	}
	return identity, nil
}

// GetIdentityByUsername returns the identity registered under username.
func (s *IdentityService) GetIdentityByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	identity, err := s.store.GetIdentityByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get identity %q: %w", username, err)
	}
	return identity, nil
}

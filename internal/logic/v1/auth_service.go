package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/token"
	"github.com/duynhne/profile-service/middleware"
)

// dummyHash is compared against when the username is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("profile-service-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy bcrypt hash: %v", err))
	}
	return hash
})

// IdentityFinder looks identities up by username.
type IdentityFinder interface {
	GetIdentityByUsername(ctx context.Context, username string) (*domain.Identity, error)
}

// AuthService handles login and token refresh.
type AuthService struct {
	identities IdentityFinder
	tokens     *token.Service
	logger     *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(identities IdentityFinder, tokens *token.Service, logger *zap.Logger) *AuthService {
	return &AuthService{identities: identities, tokens: tokens, logger: logger}
}

// Login checks username and password and issues a token pair.
// Unknown usernames and wrong passwords both fail with ErrInvalidCredentials.
// An inactive identity with the right password fails with ErrAccountDisabled.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (token.Pair, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		middleware.RecordLogin(middleware.OutcomeInvalid)
		return token.Pair{}, fmt.Errorf("login: %w", domain.ErrBadRequest)
	}

	identity, err := s.identities.GetIdentityByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(req.Password))
			span.SetAttributes(attribute.Bool("auth.success", false))
			middleware.RecordLogin(middleware.OutcomeUnauthorized)
			return token.Pair{}, fmt.Errorf("login %q: %w", req.Username, domain.ErrInvalidCredentials)
		}
		span.RecordError(err)
		middleware.RecordLogin(middleware.OutcomeError)
		return token.Pair{}, fmt.Errorf("lookup identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)); err != nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		middleware.RecordLogin(middleware.OutcomeUnauthorized)
		return token.Pair{}, fmt.Errorf("login %q: %w", req.Username, domain.ErrInvalidCredentials)
	}

	if !identity.IsActive {
		span.SetAttributes(attribute.Bool("auth.success", false))
		middleware.RecordLogin(middleware.OutcomeDisabled)
		return token.Pair{}, fmt.Errorf("login %q: %w", req.Username, domain.ErrAccountDisabled)
	}

	pair, err := s.tokens.Issue(*identity)
	if err != nil {
		span.RecordError(err)
		middleware.RecordLogin(middleware.OutcomeError)
		return token.Pair{}, fmt.Errorf("issue tokens: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("auth.success", true),
		attribute.Int64("user.id", identity.ID),
	)
	middleware.RecordLogin(middleware.OutcomeSuccess)
	s.logger.Info("User logged in", zap.Int64("user_id", identity.ID))
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, req domain.RefreshRequest) (token.Pair, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.refresh", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if strings.TrimSpace(req.Refresh) == "" {
		middleware.RecordTokenRefresh(middleware.OutcomeInvalid)
		return token.Pair{}, fmt.Errorf("refresh: %w", domain.ErrBadRequest)
	}

	pair, err := s.tokens.Renew(ctx, req.Refresh)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			middleware.RecordTokenRefresh(middleware.OutcomeUnauthorized)
		} else {
			span.RecordError(err)
			middleware.RecordTokenRefresh(middleware.OutcomeError)
		}
		return token.Pair{}, fmt.Errorf("renew tokens: %w", err)
	}

	middleware.RecordTokenRefresh(middleware.OutcomeSuccess)
	return pair, nil
}

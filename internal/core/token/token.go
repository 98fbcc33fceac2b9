// Package token issues and validates the signed session tokens handed out at
// login. An access token authorizes API requests; a refresh token only mints
// a new pair. Both are HS256 JWTs signed with a process-wide key.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/duynhne/profile-service/config"
	"github.com/duynhne/profile-service/internal/core/domain"
)

// Token types carried in the token_type claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims represents the claims in both token types.
type Claims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Pair is the access/refresh couple returned by login and refresh.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Denylist remembers refresh tokens that were already rotated.
type Denylist interface {
	// Revoke marks jti as used for ttl. It returns false when jti was already revoked.
	Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// Service issues, renews and verifies token pairs.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	denylist   Denylist
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithDenylist enables single-use refresh tokens.
func WithDenylist(d Denylist) Option {
	return func(s *Service) { s.denylist = d }
}

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a token service from the JWT configuration.
func NewService(cfg config.JWTConfig, opts ...Option) *Service {
	s := &Service{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a fresh access/refresh pair for identity.
func (s *Service) Issue(identity domain.Identity) (Pair, error) {
	return s.issue(identity.ID)
}

func (s *Service) issue(userID int64) (Pair, error) {
	access, err := s.sign(userID, TypeAccess, s.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(userID, TypeRefresh, s.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (s *Service) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parse validates signature, issuer, expiry and token type.
func (s *Service) parse(tokenString, wantType string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	claims := new(Claims)
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenMalformed
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("token type %q, want %q", claims.TokenType, wantType)
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// Renew exchanges a valid refresh token for a new pair. With a denylist
// configured, each refresh token can be exchanged once.
func (s *Service) Renew(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := s.parse(refreshToken, TypeRefresh)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if s.denylist != nil && claims.ID != "" {
		ttl := claims.ExpiresAt.Sub(s.now())
		if ttl < time.Second {
			ttl = time.Second
		}
		first, err := s.denylist.Revoke(ctx, claims.ID, ttl)
		if err != nil {
			return Pair{}, fmt.Errorf("revoke refresh token: %w", err)
		}
		if !first {
			return Pair{}, fmt.Errorf("%w: refresh token already used", domain.ErrInvalidToken)
		}
	}

	return s.issue(claims.UserID)
}

// Verify checks an access token and returns the identity ID it was issued for.
func (s *Service) Verify(accessToken string) (int64, error) {
	claims, err := s.parse(accessToken, TypeAccess)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return claims.UserID, nil
}

package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/middleware"
)

// ProfileService reads and updates the caller's own profile.
type ProfileService struct {
	store    domain.Store
	photos   PhotoStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(store domain.Store, photos PhotoStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:    store,
		photos:   photos,
		validate: newValidator(),
		logger:   logger,
	}
}

// GetProfile returns the profile of userID, creating the default profile
// first if the identity has none.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*domain.ProfileView, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.get", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	record, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		span.SetAttributes(attribute.Bool("profile.created", true))
		if err := s.store.EnsureProfile(ctx, userID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("create missing profile for user %d: %w", userID, err)
		}
		middleware.RecordProfileCreated()
		s.logger.Info("Profile created on first access", zap.Int64("user_id", userID))
		record, err = s.store.GetProfile(ctx, userID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get profile for user %d: %w", userID, err)
	}

	view := newProfileView(*record, s.photos)
	return &view, nil
}

// UpdateProfile validates req and writes the identity names and the merged
// profile in one transaction. Nothing is written when validation fails.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, req domain.UpdateProfileRequest) (*domain.ProfileView, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.update", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	firstName, lastName, err := s.validateUpdate(&req)
	if err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		middleware.RecordProfileUpdate(middleware.OutcomeInvalid)
		return nil, err
	}

	var updated *domain.ProfileRecord
	err = s.store.WithinTx(ctx, func(q domain.Queries) error {
		record, err := q.GetProfileForUpdate(ctx, userID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			if err := q.EnsureProfile(ctx, userID); err != nil {
				return fmt.Errorf("create missing profile: %w", err)
			}
			record, err = q.GetProfileForUpdate(ctx, userID)
		}
		if err != nil {
			return err
		}

		if err := q.UpdateIdentityNames(ctx, userID, firstName, lastName); err != nil {
			return err
		}
		if err := q.UpdateProfile(ctx, MergeProfile(record.Profile, req)); err != nil {
			return err
		}

		updated, err = q.GetProfile(ctx, userID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		middleware.RecordProfileUpdate(middleware.OutcomeError)
		return nil, fmt.Errorf("update profile for user %d: %w", userID, err)
	}

	span.SetAttributes(attribute.Bool("profile.updated", true))
	middleware.RecordProfileUpdate(middleware.OutcomeSuccess)
	view := newProfileView(*updated, s.photos)
	return &view, nil
}

package v1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/media"
	"github.com/duynhne/profile-service/middleware"
)

// PhotoField is the multipart field and validation key for uploads.
const PhotoField = "foto"

const defaultMaxPhotoSize = 5 * 1024 * 1024

// Validation messages for uploads.
const (
	msgPhotoMissing    = "No se envió ningún archivo."
	msgPhotoTooLarge   = "La imagen es muy grande. Máximo %dMB permitido."
	msgPhotoBadType    = "Tipo de archivo no permitido. Use JPG, PNG o GIF."
	msgPhotoNotAnImage = "Suba una imagen válida. El archivo no es una imagen o está dañado."
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

// PhotoUpload is one uploaded file as received from the client.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// PhotoService replaces profile photos.
type PhotoService struct {
	store        domain.Store
	photos       PhotoStore
	maxBytes     int64
	maxDimension int
	logger       *zap.Logger
}

// NewPhotoService creates a new photo service. maxBytes <= 0 uses 5 MiB.
func NewPhotoService(store domain.Store, photos PhotoStore, maxBytes int64, maxDimension int, logger *zap.Logger) *PhotoService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxPhotoSize
	}
	return &PhotoService{
		store:        store,
		photos:       photos,
		maxBytes:     maxBytes,
		maxDimension: maxDimension,
		logger:       logger,
	}
}

func photoError(message string) error {
	verr := domain.NewValidationError()
	verr.Add(PhotoField, message)
	return verr
}

// UploadPhoto validates upload, stores it under a fresh name and points the
// profile at it. The previous file is removed afterwards; failing to remove
// it is logged and does not fail the upload. Profiles are not created here.
func (s *PhotoService) UploadPhoto(ctx context.Context, userID int64, upload *PhotoUpload) (*domain.ProfileView, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.upload_photo", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.RecordPhotoUpload(middleware.OutcomeNotFound)
		} else {
			span.RecordError(err)
			middleware.RecordPhotoUpload(middleware.OutcomeError)
		}
		return nil, fmt.Errorf("get profile for user %d: %w", userID, err)
	}

	data, err := s.readUpload(upload)
	if err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		middleware.RecordPhotoUpload(middleware.OutcomeInvalid)
		return nil, err
	}

	img, err := media.Prepare(data, s.maxDimension)
	if err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		middleware.RecordPhotoUpload(middleware.OutcomeInvalid)
		return nil, photoError(msgPhotoNotAnImage)
	}
	span.SetAttributes(
		attribute.String("photo.format", img.Format),
		attribute.Bool("photo.scaled", img.Scaled),
		attribute.Int("photo.bytes", len(img.Data)),
	)

	name, err := s.photos.SavePhoto(ctx, img.Data, img.Ext())
	if err != nil {
		span.RecordError(err)
		middleware.RecordPhotoUpload(middleware.OutcomeError)
		return nil, fmt.Errorf("store photo: %w", err)
	}

	var (
		previous *string
		updated  *domain.ProfileRecord
	)
	err = s.store.WithinTx(ctx, func(q domain.Queries) error {
		record, err := q.GetProfileForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		previous = record.Profile.Photo

		profile := record.Profile
		profile.Photo = &name
		if err := q.UpdateProfile(ctx, profile); err != nil {
			return err
		}

		updated, err = q.GetProfile(ctx, userID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		middleware.RecordPhotoUpload(middleware.OutcomeError)
		if delErr := s.photos.Delete(context.WithoutCancel(ctx), name); delErr != nil {
			s.logger.Warn("Failed to remove orphaned photo",
				zap.Int64("user_id", userID),
				zap.String("photo", name),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("save photo reference for user %d: %w", userID, err)
	}

	if previous != nil && *previous != "" && *previous != name {
		if err := s.photos.Delete(context.WithoutCancel(ctx), *previous); err != nil {
			s.logger.Warn("Failed to delete previous photo",
				zap.Int64("user_id", userID),
				zap.String("photo", *previous),
				zap.Error(err),
			)
		}
	}

	middleware.RecordPhotoUpload(middleware.OutcomeSuccess)
	s.logger.Info("Profile photo updated",
		zap.Int64("user_id", userID),
		zap.String("photo", name),
	)
	view := newProfileView(*updated, s.photos)
	return &view, nil
}

// readUpload applies the size and type checks and reads the file.
func (s *PhotoService) readUpload(upload *PhotoUpload) ([]byte, error) {
	if upload == nil || upload.Content == nil {
		return nil, photoError(msgPhotoMissing)
	}
	if upload.Size > s.maxBytes {
		return nil, photoError(fmt.Sprintf(msgPhotoTooLarge, s.maxBytes>>20))
	}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if mediaType, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = strings.TrimSpace(mediaType)
	}
	if !allowedPhotoTypes[contentType] {
		return nil, photoError(msgPhotoBadType)
	}

	// Size is client supplied; bound the read as well.
	data, err := io.ReadAll(io.LimitReader(upload.Content, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, photoError(fmt.Sprintf(msgPhotoTooLarge, s.maxBytes>>20))
	}
	if len(data) == 0 {
		return nil, photoError(msgPhotoMissing)
	}
	return data, nil
}

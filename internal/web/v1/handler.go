package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/duynhne/profile-service/internal/core/domain"
	logicv1 "github.com/duynhne/profile-service/internal/logic/v1"
	"github.com/duynhne/profile-service/middleware"
)

// DefaultBasePath is where the API is mounted unless configured otherwise.
const DefaultBasePath = "/usuarios/api"

// Response messages.
const (
	msgCredentialsRequired = "Username y password son requeridos"
	msgInvalidCredentials  = "Credenciales inválidas"
	msgAccountDisabled     = "Cuenta desactivada"
	msgRefreshRequired     = "Refresh token requerido"
	msgInvalidToken        = "Token inválido"
	msgAuthRequired        = "Autenticación requerida"
	msgProfileUpdated      = "Perfil actualizado correctamente"
	msgInvalidData         = "Datos inválidos"
	msgPhotoUpdated        = "Foto actualizada correctamente"
	msgInvalidFile         = "Archivo inválido"
	msgProfileNotFound     = "Perfil no encontrado"
	msgUserInfo            = "Información del usuario"
	msgAPIStatus           = "API funcionando correctamente"
	msgInternal            = "Error interno del servidor"
	msgGetProfileFailed    = "Error al obtener perfil"
	msgUpdateFailed        = "Error al actualizar perfil"
	msgPhotoFailed         = "Error al subir foto"
	msgRefreshFailed       = "Error al renovar token"
)

// multipartOverhead is the room left for multipart headers above the photo size cap.
const multipartOverhead = 1 << 20

// Options configures a Handler.
type Options struct {
	Version        string // reported by /status
	BasePath       string // API mount point, DefaultBasePath when empty
	MaxUploadBytes int64  // request body cap for photo uploads
}

// Handler serves the auth and profile endpoints.
type Handler struct {
	auth     *logicv1.AuthService
	profiles *logicv1.ProfileService
	photos   *logicv1.PhotoService
	opts     Options
}

// NewHandler creates a new handler
func NewHandler(auth *logicv1.AuthService, profiles *logicv1.ProfileService, photos *logicv1.PhotoService, opts Options) *Handler {
	if opts.BasePath == "" {
		opts.BasePath = DefaultBasePath
	}
	opts.BasePath = "/" + strings.Trim(opts.BasePath, "/")
	return &Handler{auth: auth, profiles: profiles, photos: photos, opts: opts}
}

// BasePath returns the API mount point.
func (h *Handler) BasePath() string { return h.opts.BasePath }

// RegisterRoutes mounts every endpoint under the base path. auth guards the
// profile endpoints; loginGuards run in front of /login only.
func (h *Handler) RegisterRoutes(r gin.IRouter, auth gin.HandlerFunc, loginGuards ...gin.HandlerFunc) {
	api := r.Group(h.opts.BasePath)

	login := make([]gin.HandlerFunc, 0, len(loginGuards)+1)
	login = append(login, loginGuards...)
	api.POST("/login", append(login, h.Login)...)
	api.POST("/token/refresh", h.RefreshToken)
	api.GET("/status", h.Status)

	protected := api.Group("", auth)
	protected.GET("/perfil", h.GetProfile)
	protected.PUT("/usuario/perfil", h.UpdateProfile)
	protected.PATCH("/perfil/foto", h.UploadPhoto)
	protected.GET("/user/info", h.UserInfo)
}

func startSpan(c *gin.Context) (context.Context, trace.Span) {
	//nolint:spancheck // handlers end the span
	return middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.FullPath()),
	))
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	var req domain.LoginRequest
	if err := c.ShouldBind(&req); err != nil && !isEmptyBody(err) {
		zapLogger.Debug("Unreadable login body", zap.Error(err))
		req = domain.LoginRequest{}
	}
	span.SetAttributes(attribute.String("auth.username", req.Username))

	pair, err := h.auth.Login(ctx, req)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, domain.ErrBadRequest):
			fail(c, http.StatusBadRequest, msgCredentialsRequired)
		case errors.Is(err, domain.ErrInvalidCredentials):
			zapLogger.Info("Login rejected", zap.String("username", req.Username))
			fail(c, http.StatusUnauthorized, msgInvalidCredentials)
		case errors.Is(err, domain.ErrAccountDisabled):
			zapLogger.Info("Login for disabled account", zap.String("username", req.Username))
			fail(c, http.StatusUnauthorized, msgAccountDisabled)
		default:
			zapLogger.Error("Failed to log in", zap.Error(err))
			fail(c, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

// RefreshToken handles POST /token/refresh
func (h *Handler) RefreshToken(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	var req domain.RefreshRequest
	if err := c.ShouldBind(&req); err != nil && !isEmptyBody(err) {
		zapLogger.Debug("Unreadable refresh body", zap.Error(err))
		req = domain.RefreshRequest{}
	}

	pair, err := h.auth.Refresh(ctx, req)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, domain.ErrBadRequest):
			fail(c, http.StatusBadRequest, msgRefreshRequired)
		case errors.Is(err, domain.ErrInvalidToken):
			fail(c, http.StatusUnauthorized, msgInvalidToken)
		default:
			zapLogger.Error("Failed to refresh token", zap.Error(err))
			fail(c, http.StatusInternalServerError, msgRefreshFailed)
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

// GetProfile handles GET /perfil
func (h *Handler) GetProfile(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, msgAuthRequired)
		return
	}
	span.SetAttributes(attribute.Int64("user.id", identity.ID))

	view, err := h.profiles.GetProfile(ctx, identity.ID)
	if err != nil {
		span.RecordError(err)
		zapLogger.Error("Failed to get profile", zap.Int64("user_id", identity.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, msgGetProfileFailed)
		return
	}

	c.JSON(http.StatusOK, absolutize(c, view))
}

// UpdateProfile handles PUT /usuario/perfil
func (h *Handler) UpdateProfile(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, msgAuthRequired)
		return
	}
	span.SetAttributes(attribute.Int64("user.id", identity.ID))

	var req domain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		span.SetAttributes(attribute.Bool("request.valid", false))
		zapLogger.Warn("Invalid request", zap.Error(err))
		middleware.RecordProfileUpdate(middleware.OutcomeInvalid)
		failWithData(c, http.StatusBadRequest, msgInvalidData, bindErrorFields(err))
		return
	}

	view, err := h.profiles.UpdateProfile(ctx, identity.ID, req)
	if err != nil {
		span.RecordError(err)

		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			span.SetAttributes(attribute.Bool("request.valid", false))
			failWithData(c, http.StatusBadRequest, msgInvalidData, verr.Fields)
		default:
			zapLogger.Error("Failed to update profile", zap.Int64("user_id", identity.ID), zap.Error(err))
			fail(c, http.StatusInternalServerError, msgUpdateFailed)
		}
		return
	}

	success(c, http.StatusOK, msgProfileUpdated, absolutize(c, view))
}

// UploadPhoto handles PATCH /perfil/foto with a multipart "foto" field.
func (h *Handler) UploadPhoto(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, msgAuthRequired)
		return
	}
	span.SetAttributes(attribute.Int64("user.id", identity.ID))

	var bodyLimit int64
	if h.opts.MaxUploadBytes > 0 {
		bodyLimit = h.opts.MaxUploadBytes + multipartOverhead
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)
	}

	var upload *logicv1.PhotoUpload
	header, err := c.FormFile(logicv1.PhotoField)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		file, openErr := header.Open()
		if openErr != nil {
			span.RecordError(openErr)
			zapLogger.Error("Failed to open uploaded file", zap.Error(openErr))
			fail(c, http.StatusInternalServerError, msgPhotoFailed)
			return
		}
		defer file.Close()
		upload = &logicv1.PhotoUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     file,
		}
	case errors.As(err, &tooLarge):
		// the body was cut off; only the size is known
		upload = &logicv1.PhotoUpload{Size: bodyLimit, Content: http.NoBody}
	default:
		zapLogger.Debug("No photo in request", zap.Error(err))
	}

	view, err := h.photos.UploadPhoto(ctx, identity.ID, upload)
	if err != nil {
		span.RecordError(err)

		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			failWithData(c, http.StatusBadRequest, msgInvalidFile, verr.Fields)
		case errors.Is(err, domain.ErrNotFound):
			fail(c, http.StatusNotFound, msgProfileNotFound)
		default:
			zapLogger.Error("Failed to upload photo", zap.Int64("user_id", identity.ID), zap.Error(err))
			fail(c, http.StatusInternalServerError, msgPhotoFailed)
		}
		return
	}

	success(c, http.StatusOK, msgPhotoUpdated, absolutize(c, view))
}

// UserInfo handles GET /user/info
func (h *Handler) UserInfo(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		fail(c, http.StatusUnauthorized, msgAuthRequired)
		return
	}
	success(c, http.StatusOK, msgUserInfo, domain.NewUserInfo(*identity))
}

// StatusData is the /status payload.
type StatusData struct {
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Status handles GET /status
func (h *Handler) Status(c *gin.Context) {
	base := h.opts.BasePath
	if base == "/" {
		base = ""
	}
	success(c, http.StatusOK, msgAPIStatus, StatusData{
		Version: h.opts.Version,
		Endpoints: []string{
			base + "/login/",
			base + "/perfil/",
			base + "/usuario/perfil/",
			base + "/perfil/foto/",
			base + "/token/refresh/",
		},
	})
}

// absolutize turns the public photo path into an absolute URL for this request.
func absolutize(c *gin.Context, view *domain.ProfileView) *domain.ProfileView {
	if view == nil || view.PhotoURL == nil {
		return view
	}
	url := *view.PhotoURL
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return view
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	absolute := scheme + "://" + c.Request.Host + url
	out := *view
	out.PhotoURL = &absolute
	return &out
}

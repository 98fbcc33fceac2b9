package v1

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/duynhne/profile-service/internal/core/domain"
)

// maxNameLength matches the identity name columns.
const maxNameLength = 150

// newValidator returns a validator reporting json field names and knowing the
// profile enums.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("user_kind", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseUserKind(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("legal_nature", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseLegalNature(fl.Field().String())
		return ok
	})
	// blank clears the column; anything else must be an http(s) URL
	_ = v.RegisterValidation("profile_url", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || v.Var(value, "http_url") == nil
	})
	return v
}

// normalizeUpdate trims every text input. Blank URLs become "" so the merge
// clears them.
func normalizeUpdate(req *domain.UpdateProfileRequest) {
	for _, field := range []*string{
		req.Phone, req.Document, req.UserKind, req.LegalNature, req.Biography,
		req.LinkedIn, req.Twitter, req.GitHub, req.Website,
	} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

// validateUpdate collects every problem with req into one ValidationError.
// It returns the trimmed names on success.
func (s *ProfileService) validateUpdate(req *domain.UpdateProfileRequest) (first, last string, err error) {
	verr := domain.NewValidationError()

	if req.User == nil {
		verr.Add("user", "This field is required.")
	} else {
		first = checkName(verr, "first_name", req.User.FirstName)
		last = checkName(verr, "last_name", req.User.LastName)
	}

	normalizeUpdate(req)
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return "", "", fmt.Errorf("validate profile update: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), fieldMessage(fe))
		}
	}

	return first, last, verr.OrNil()
}

func checkName(verr *domain.ValidationError, field string, value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		verr.Add("user", field+" is required")
		return ""
	}
	trimmed := strings.TrimSpace(*value)
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		verr.Add("user", fmt.Sprintf("%s must have at most %d characters", field, maxNameLength))
	}
	return trimmed
}

// fieldMessage renders a validator failure the way clients already display them.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "profile_url":
		return "Enter a valid URL."
	case "user_kind", "legal_nature":
		return fmt.Sprintf("%q is not a valid choice.", fe.Value())
	default:
		return "Invalid value."
	}
}

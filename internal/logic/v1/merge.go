package v1

import (
	"strings"

	"github.com/duynhne/profile-service/internal/core/domain"
)

// verifiedTruthy lists the string spellings accepted as true for esta_verificado.
var verifiedTruthy = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
	"on":   true,
}

// ParseVerified reads the loosely typed esta_verificado value. Only boolean
// true or one of the truthy strings (any case) count; everything else,
// absent and malformed values included, is false.
func ParseVerified(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return verifiedTruthy[strings.ToLower(strings.TrimSpace(v))]
	default:
		return false
	}
}

// MergeProfile applies a validated update to current and returns the result.
// Only the fields listed here are writable; id, user, photo and timestamps
// always come from current.
func MergeProfile(current domain.Profile, req domain.UpdateProfileRequest) domain.Profile {
	next := current

	setText(&next.Phone, req.Phone)
	setText(&next.Document, req.Document)
	setText(&next.Biography, req.Biography)

	if req.UserKind != nil {
		if kind, ok := domain.ParseUserKind(*req.UserKind); ok {
			next.UserKind = kind
		}
	}
	if req.LegalNature != nil {
		if nature, ok := domain.ParseLegalNature(*req.LegalNature); ok {
			next.LegalNature = nature
		}
	}

	setText(&next.LinkedIn, req.LinkedIn)
	setText(&next.Twitter, req.Twitter)
	setText(&next.GitHub, req.GitHub)
	setText(&next.Website, req.Website)

	next.Verified = ParseVerified(req.Verified)

	next.NormalizeURLs()
	return next
}

// setText copies value into dst when the client sent it.
func setText(dst **string, value *string) {
	if value == nil {
		return
	}
	v := *value
	*dst = &v
}

package v1

import (
	"context"

	"github.com/duynhne/profile-service/internal/core/domain"
)

// PhotoStore keeps uploaded photo files. *media.Storage implements it.
type PhotoStore interface {
	SavePhoto(ctx context.Context, data []byte, ext string) (string, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

// newProfileView renders a record. foto_url is the public path of the photo;
// the web layer makes it absolute.
func newProfileView(record domain.ProfileRecord, photos PhotoStore) domain.ProfileView {
	p := record.Profile
	u := record.Identity

	view := domain.ProfileView{
		ID: p.ID,
		User: domain.UserSummary{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			FullName:  u.FullName(),
		},
		Phone:       p.Phone,
		Document:    p.Document,
		UserKind:    p.UserKind,
		LegalNature: p.LegalNature,
		Biography:   p.Biography,
		Photo:       p.Photo,
		LinkedIn:    p.LinkedIn,
		Twitter:     p.Twitter,
		GitHub:      p.GitHub,
		Website:     p.Website,
		Verified:    p.Verified,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Photo != nil && *p.Photo != "" && photos != nil {
		url := photos.URL(*p.Photo)
		view.PhotoURL = &url
	}
	return view
}

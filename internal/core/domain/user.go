package domain

import (
	"strings"
	"time"
)

// UserKind is the role a profile plays on the platform (tipo_usuario).
type UserKind string

const (
	UserKindInstructor UserKind = "instructor"
	UserKindStudent    UserKind = "estudiante"
	UserKindAdmin      UserKind = "admin"
)

// LegalNature distinguishes natural persons from legal entities (tipo_naturaleza).
type LegalNature string

const (
	LegalNatureNatural   LegalNature = "natural"
	LegalNatureJuridical LegalNature = "juridica"
)

// userKindAliases maps every accepted input spelling to its stored value.
var userKindAliases = map[string]UserKind{
	"instructor": UserKindInstructor,
	"estudiante": UserKindStudent,
	"student":    UserKindStudent,
	"admin":      UserKindAdmin,
}

var legalNatureAliases = map[string]LegalNature{
	"natural":   LegalNatureNatural,
	"juridica":  LegalNatureJuridical,
	"juridical": LegalNatureJuridical,
}

// ParseUserKind resolves an input value (stored or English spelling) to a UserKind.
func ParseUserKind(value string) (UserKind, bool) {
	kind, ok := userKindAliases[strings.ToLower(strings.TrimSpace(value))]
	return kind, ok
}

// ParseLegalNature resolves an input value (stored or English spelling) to a LegalNature.
func ParseLegalNature(value string) (LegalNature, bool) {
	nature, ok := legalNatureAliases[strings.ToLower(strings.TrimSpace(value))]
	return nature, ok
}

// Identity is the authentication record owned by the credential store.
type Identity struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	FirstName    string
	LastName     string
	IsActive     bool
	DateJoined   time.Time
}

// FullName joins first and last name, trimming the gap when one is empty.
func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Profile is the 1:1 extension of an Identity. Optional columns are nil when absent.
type Profile struct {
	ID          int64
	UserID      int64
	Phone       *string
	Document    *string
	UserKind    UserKind
	LegalNature LegalNature
	Biography   *string
	Photo       *string
	LinkedIn    *string
	Twitter     *string
	GitHub      *string
	Website     *string
	Verified    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDefaultProfile returns the profile every fresh identity starts with.
func NewDefaultProfile(userID int64) Profile {
	return Profile{
		UserID:      userID,
		UserKind:    UserKindInstructor,
		LegalNature: LegalNatureNatural,
	}
}

// NormalizeURLs clears every optional URL field holding an empty string.
// Stores call it before every write so "" never reaches a URL column.
func (p *Profile) NormalizeURLs() {
	for _, field := range []**string{&p.LinkedIn, &p.Twitter, &p.GitHub, &p.Website} {
		if *field != nil && **field == "" {
			*field = nil
		}
	}
}

// ProfileRecord is a profile joined with its owning identity.
type ProfileRecord struct {
	Identity Identity
	Profile  Profile
}

// UserSummary is the identity block embedded in ProfileView.
type UserSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

// ProfileView is the wire representation of a profile.
type ProfileView struct {
	ID          int64       `json:"id"`
	User        UserSummary `json:"user"`
	Phone       *string     `json:"telefono"`
	Document    *string     `json:"documento"`
	UserKind    UserKind    `json:"tipo_usuario"`
	LegalNature LegalNature `json:"tipo_naturaleza"`
	Biography   *string     `json:"biografia"`
	Photo       *string     `json:"foto"`
	PhotoURL    *string     `json:"foto_url"`
	LinkedIn    *string     `json:"linkedin"`
	Twitter     *string     `json:"twitter"`
	GitHub      *string     `json:"github"`
	Website     *string     `json:"sitio_web"`
	Verified    bool        `json:"esta_verificado"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserInfo is the basic identity payload returned by /user/info.
type UserInfo struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	FullName   string    `json:"full_name"`
	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

// NewUserInfo projects an identity onto the /user/info payload.
func NewUserInfo(identity Identity) UserInfo {
	return UserInfo{
		ID:         identity.ID,
		Username:   identity.Username,
		Email:      identity.Email,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		FullName:   identity.FullName(),
		IsActive:   identity.IsActive,
		DateJoined: identity.DateJoined,
	}
}

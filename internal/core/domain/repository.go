package domain

import "context"

// Queries is the data access contract shared by identities and profiles.
// Implementations return ErrIdentityNotFound / ErrProfileNotFound for missing rows.
type Queries interface {
	GetIdentity(ctx context.Context, id int64) (*Identity, error)
	GetIdentityByUsername(ctx context.Context, username string) (*Identity, error)
	CreateIdentity(ctx context.Context, identity Identity) (*Identity, error)
	UpdateIdentityNames(ctx context.Context, id int64, firstName, lastName string) error

	GetProfile(ctx context.Context, userID int64) (*ProfileRecord, error)
	// GetProfileForUpdate reads the profile and locks its row until the
	// surrounding transaction ends. Outside a transaction it behaves like GetProfile.
	GetProfileForUpdate(ctx context.Context, userID int64) (*ProfileRecord, error)
	// EnsureProfile inserts a default profile unless one already exists.
	EnsureProfile(ctx context.Context, userID int64) error
	UpdateProfile(ctx context.Context, profile Profile) error
}

// Store is a transactional store holding identities and profiles together,
// so one transaction can cover writes to both.
type Store interface {
	Queries
	// WithinTx runs fn in a single transaction; a non-nil error rolls everything back.
	WithinTx(ctx context.Context, fn func(q Queries) error) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close()
}

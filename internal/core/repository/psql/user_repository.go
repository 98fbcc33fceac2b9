package psql

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/profile-service/internal/core/domain"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes handled explicitly.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const selectProfileRecord = `
SELECT
	p.id, p.user_id, p.telefono, p.documento, p.tipo_usuario, p.tipo_naturaleza,
	p.biografia, p.foto, p.linkedin, p.twitter, p.github, p.sitio_web,
	p.esta_verificado, p.created_at, p.updated_at,
	u.id, u.username, u.password, u.email, u.first_name, u.last_name, u.is_active, u.date_joined
FROM usuarios_profile p
JOIN auth_user u ON u.id = p.user_id
WHERE p.user_id = $1`

const selectIdentity = `
SELECT id, username, password, email, first_name, last_name, is_active, date_joined
FROM auth_user`

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements domain.Store on PostgreSQL.
type UserRepository struct {
	*queries
	pool *pgxpool.Pool
}

// NewUserRepository creates a PostgreSQL-backed store over pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{queries: &queries{db: pool}, pool: pool}
}

// Migrate applies the bundled schema. Every statement is idempotent.
func (r *UserRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a single transaction.
func (r *UserRepository) WithinTx(ctx context.Context, fn func(q domain.Queries) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&queries{db: tx, inTx: true})
	})
}

// Ping checks a pooled connection.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *UserRepository) Close() {
	r.pool.Close()
}

type queries struct {
	db   dbtx
	inTx bool
}

// GetIdentity retrieves an identity by ID
func (q *queries) GetIdentity(ctx context.Context, id int64) (*domain.Identity, error) {
	return q.scanIdentity(q.db.QueryRow(ctx, selectIdentity+` WHERE id = $1`, id))
}

// GetIdentityByUsername retrieves an identity by its unique username
func (q *queries) GetIdentityByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return q.scanIdentity(q.db.QueryRow(ctx, selectIdentity+` WHERE username = $1`, username))
}

func (q *queries) scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.PasswordHash,
		&identity.Email,
		&identity.FirstName,
		&identity.LastName,
		&identity.IsActive,
		&identity.DateJoined,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &identity, nil
}

// CreateIdentity inserts a new identity and returns it with its assigned ID
func (q *queries) CreateIdentity(ctx context.Context, identity domain.Identity) (*domain.Identity, error) {
	query := `
INSERT INTO auth_user (username, password, email, first_name, last_name, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, date_joined`
	err := q.db.QueryRow(ctx, query,
		identity.Username,
		identity.PasswordHash,
		identity.Email,
		identity.FirstName,
		identity.LastName,
		identity.IsActive,
	).Scan(&identity.ID, &identity.DateJoined)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return nil, fmt.Errorf("create identity %q: %w", identity.Username, domain.ErrIdentityExists)
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return &identity, nil
}

// UpdateIdentityNames replaces first and last name
func (q *queries) UpdateIdentityNames(ctx context.Context, id int64, firstName, lastName string) error {
	result, err := q.db.Exec(ctx,
		`UPDATE auth_user SET first_name = $1, last_name = $2 WHERE id = $3`,
		firstName, lastName, id)
	if err != nil {
		return fmt.Errorf("update identity names: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// GetProfile retrieves the profile joined with its identity
func (q *queries) GetProfile(ctx context.Context, userID int64) (*domain.ProfileRecord, error) {
	return q.scanProfile(q.db.QueryRow(ctx, selectProfileRecord, userID))
}

// GetProfileForUpdate retrieves the profile and row-locks it for the rest of the transaction
func (q *queries) GetProfileForUpdate(ctx context.Context, userID int64) (*domain.ProfileRecord, error) {
	if !q.inTx {
		return q.GetProfile(ctx, userID)
	}
	return q.scanProfile(q.db.QueryRow(ctx, selectProfileRecord+` FOR UPDATE OF p`, userID))
}

func (q *queries) scanProfile(row pgx.Row) (*domain.ProfileRecord, error) {
	var (
		record      domain.ProfileRecord
		userKind    string
		legalNature string
	)
	p := &record.Profile
	u := &record.Identity
	err := row.Scan(
		&p.ID, &p.UserID, &p.Phone, &p.Document, &userKind, &legalNature,
		&p.Biography, &p.Photo, &p.LinkedIn, &p.Twitter, &p.GitHub, &p.Website,
		&p.Verified, &p.CreatedAt, &p.UpdatedAt,
		&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName, &u.IsActive, &u.DateJoined,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.UserKind = domain.UserKind(userKind)
	p.LegalNature = domain.LegalNature(legalNature)
	return &record, nil
}

// EnsureProfile inserts a default profile for userID unless one exists
func (q *queries) EnsureProfile(ctx context.Context, userID int64) error {
	defaults := domain.NewDefaultProfile(userID)
	_, err := q.db.Exec(ctx, `
INSERT INTO usuarios_profile (user_id, tipo_usuario, tipo_naturaleza, esta_verificado)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO NOTHING`,
		userID, string(defaults.UserKind), string(defaults.LegalNature), defaults.Verified)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return domain.ErrIdentityNotFound
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// UpdateProfile writes every mutable profile column and bumps updated_at
func (q *queries) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	profile.NormalizeURLs()
	result, err := q.db.Exec(ctx, `
UPDATE usuarios_profile SET
	telefono = $1, documento = $2, tipo_usuario = $3, tipo_naturaleza = $4,
	biografia = $5, foto = $6, linkedin = $7, twitter = $8, github = $9, sitio_web = $10,
	esta_verificado = $11, updated_at = now()
WHERE user_id = $12`,
		profile.Phone, profile.Document, string(profile.UserKind), string(profile.LegalNature),
		profile.Biography, profile.Photo, profile.LinkedIn, profile.Twitter, profile.GitHub, profile.Website,
		profile.Verified, profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

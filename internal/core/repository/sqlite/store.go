// Package sqlite implements the identity/profile store over an embedded SQLite
// file. It backs local development and the transactional tests; production
// deployments use the PostgreSQL store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/repository/sqlite/migrations"
)

const migrationTable = "schema_migrations"

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.Store over SQLite.
type Store struct {
	*queries
	sqlDB     *sql.DB
	closeOnce sync.Once
}

// Open opens the SQLite file at path and applies bundled migrations.
// Transactions start with BEGIN IMMEDIATE so concurrent writers serialize
// on the database lock instead of failing at commit.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{queries: &queries{db: sqlDB}, sqlDB: sqlDB}, nil
}

// Ping checks the database file is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close releases the underlying database. Later calls are no-ops.
func (s *Store) Close() {
	if s == nil || s.sqlDB == nil {
		return
	}
	s.closeOnce.Do(func() { _ = s.sqlDB.Close() })
}

// WithinTx runs fn in one transaction and commits only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(q domain.Queries) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&queries{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// applyMigrations executes each embedded .sql file at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied int
		err := sqlDB.QueryRow(`SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// isConstraintError matches any SQLITE_CONSTRAINT family code, extended or not.
func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

const selectIdentity = `
SELECT id, username, password, email, first_name, last_name, is_active, date_joined
FROM auth_user`

const selectProfileRecord = `
SELECT
	p.id, p.user_id, p.telefono, p.documento, p.tipo_usuario, p.tipo_naturaleza,
	p.biografia, p.foto, p.linkedin, p.twitter, p.github, p.sitio_web,
	p.esta_verificado, p.created_at, p.updated_at,
	u.id, u.username, u.password, u.email, u.first_name, u.last_name, u.is_active, u.date_joined
FROM usuarios_profile p
JOIN auth_user u ON u.id = p.user_id
WHERE p.user_id = ?`

type queries struct {
	db execQuerier
}

func (q *queries) GetIdentity(ctx context.Context, id int64) (*domain.Identity, error) {
	return scanIdentity(q.db.QueryRowContext(ctx, selectIdentity+` WHERE id = ?`, id))
}

func (q *queries) GetIdentityByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return scanIdentity(q.db.QueryRowContext(ctx, selectIdentity+` WHERE username = ?`, username))
}

func scanIdentity(row *sql.Row) (*domain.Identity, error) {
	var (
		identity   domain.Identity
		dateJoined int64
	)
	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.PasswordHash,
		&identity.Email,
		&identity.FirstName,
		&identity.LastName,
		&identity.IsActive,
		&dateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}
	identity.DateJoined = fromMillis(dateJoined)
	return &identity, nil
}

func (q *queries) CreateIdentity(ctx context.Context, identity domain.Identity) (*domain.Identity, error) {
	joined := time.Now().UTC().Truncate(time.Millisecond)
	err := q.db.QueryRowContext(ctx, `
INSERT INTO auth_user (username, password, email, first_name, last_name, is_active, date_joined)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		identity.Username,
		identity.PasswordHash,
		identity.Email,
		identity.FirstName,
		identity.LastName,
		identity.IsActive,
		toMillis(joined),
	).Scan(&identity.ID)
	if err != nil {
		// username is the only constraint an insert with every column set can violate
		if isConstraintError(err) {
			return nil, fmt.Errorf("create identity %q: %w", identity.Username, domain.ErrIdentityExists)
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	identity.DateJoined = joined
	return &identity, nil
}

func (q *queries) UpdateIdentityNames(ctx context.Context, id int64, firstName, lastName string) error {
	result, err := q.db.ExecContext(ctx,
		`UPDATE auth_user SET first_name = ?, last_name = ? WHERE id = ?`,
		firstName, lastName, id)
	if err != nil {
		return fmt.Errorf("update identity names: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (q *queries) GetProfile(ctx context.Context, userID int64) (*domain.ProfileRecord, error) {
	var (
		record                           domain.ProfileRecord
		userKind, legalNature            string
		createdAt, updatedAt, dateJoined int64
	)
	p := &record.Profile
	u := &record.Identity
	err := q.db.QueryRowContext(ctx, selectProfileRecord, userID).Scan(
		&p.ID, &p.UserID, &p.Phone, &p.Document, &userKind, &legalNature,
		&p.Biography, &p.Photo, &p.LinkedIn, &p.Twitter, &p.GitHub, &p.Website,
		&p.Verified, &createdAt, &updatedAt,
		&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName, &u.IsActive, &dateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.UserKind = domain.UserKind(userKind)
	p.LegalNature = domain.LegalNature(legalNature)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	u.DateJoined = fromMillis(dateJoined)
	return &record, nil
}

// GetProfileForUpdate needs no row lock: WithinTx already holds the
// database write lock via BEGIN IMMEDIATE.
func (q *queries) GetProfileForUpdate(ctx context.Context, userID int64) (*domain.ProfileRecord, error) {
	return q.GetProfile(ctx, userID)
}

func (q *queries) EnsureProfile(ctx context.Context, userID int64) error {
	defaults := domain.NewDefaultProfile(userID)
	now := toMillis(time.Now())
	_, err := q.db.ExecContext(ctx, `
INSERT INTO usuarios_profile (user_id, tipo_usuario, tipo_naturaleza, esta_verificado, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO NOTHING`,
		userID, string(defaults.UserKind), string(defaults.LegalNature), defaults.Verified, now, now)
	if err != nil {
		if isConstraintError(err) {
			return domain.ErrIdentityNotFound
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (q *queries) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	profile.NormalizeURLs()
	result, err := q.db.ExecContext(ctx, `
UPDATE usuarios_profile SET
	telefono = ?, documento = ?, tipo_usuario = ?, tipo_naturaleza = ?,
	biografia = ?, foto = ?, linkedin = ?, twitter = ?, github = ?, sitio_web = ?,
	esta_verificado = ?, updated_at = ?
WHERE user_id = ?`,
		profile.Phone, profile.Document, string(profile.UserKind), string(profile.LegalNature),
		profile.Biography, profile.Photo, profile.LinkedIn, profile.Twitter, profile.GitHub, profile.Website,
		profile.Verified, toMillis(time.Now()), profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

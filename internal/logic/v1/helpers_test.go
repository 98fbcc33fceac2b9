package v1

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/profile-service/config"
	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/media"
	"github.com/duynhne/profile-service/internal/core/repository/sqlite"
)

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "profile.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func openTempMedia(t *testing.T) *media.Storage {
	t.Helper()
	storage, err := media.NewStorage(config.MediaConfig{Root: t.TempDir(), URLPrefix: "/media/"})
	if err != nil {
		t.Fatalf("open media: %v", err)
	}
	return storage
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func newTestIdentityService(store domain.Store) *IdentityService {
	return NewIdentityService(store, zap.NewNop()).WithBcryptCost(bcrypt.MinCost)
}

// createUser registers an identity through the normal path, profile included.
func createUser(t *testing.T, store domain.Store, username, password string) *domain.Identity {
	t.Helper()
	identity, err := newTestIdentityService(store).Create(context.Background(), NewIdentity{
		Username:  username,
		Password:  password,
		Email:     username + "@example.com",
		FirstName: "First",
		LastName:  "Last",
	})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return identity
}

// insertBareIdentity writes an identity without a profile, as an
// out-of-band import would.
func insertBareIdentity(t *testing.T, store domain.Store, username, password string, active bool) *domain.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	identity, err := store.CreateIdentity(context.Background(), domain.Identity{
		Username:     username,
		PasswordHash: string(hash),
		Email:        username + "@example.com",
		IsActive:     active,
	})
	if err != nil {
		t.Fatalf("insert %s: %v", username, err)
	}
	return identity
}

func ptr(s string) *string { return &s }

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *domain.ValidationError", err)
	}
	return verr.Fields
}

// faultyStore fails UpdateProfile inside transactions.
type faultyStore struct {
	*sqlite.Store
	err error
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(q domain.Queries) error) error {
	return s.Store.WithinTx(ctx, func(q domain.Queries) error {
		return fn(faultyQueries{Queries: q, err: s.err})
	})
}

type faultyQueries struct {
	domain.Queries
	err error
}

func (q faultyQueries) UpdateProfile(context.Context, domain.Profile) error {
	return q.err
}

// stubbornPhotos refuses to delete files.
type stubbornPhotos struct {
	*media.Storage
}

func (stubbornPhotos) Delete(context.Context, string) error {
	return errors.New("permission denied")
}

package psql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/duynhne/profile-service/internal/core/domain"
)

type stubRow struct{ err error }

func (r stubRow) Scan(...any) error { return r.err }

// recordingDB answers every call with the configured results and keeps the
// statements it saw.
type recordingDB struct {
	rowErr  error
	execErr error
	tag     pgconn.CommandTag
	sql     []string
	args    [][]any
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql = append(d.sql, sql)
	d.args = append(d.args, args)
	return d.tag, d.execErr
}

func (d *recordingDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.sql = append(d.sql, sql)
	d.args = append(d.args, args)
	return stubRow{err: d.rowErr}
}

func ptr(s string) *string { return &s }

func TestCreateIdentityMapsUniqueViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rowErr     error
		wantExists bool
	}{
		{name: "unique violation", rowErr: &pgconn.PgError{Code: codeUniqueViolation}, wantExists: true},
		{name: "other constraint", rowErr: &pgconn.PgError{Code: codeForeignKeyViolation}},
		{name: "connection error", rowErr: errors.New("conn reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &queries{db: &recordingDB{rowErr: tt.rowErr}}
			_, err := q.CreateIdentity(context.Background(), domain.Identity{Username: "ana"})
			if err == nil {
				t.Fatal("CreateIdentity() succeeded")
			}
			if got := errors.Is(err, domain.ErrIdentityExists); got != tt.wantExists {
				t.Fatalf("errors.Is(err, ErrIdentityExists) = %v, want %v (err %v)", got, tt.wantExists, err)
			}
		})
	}
}

func TestNoRowsMapsToNotFound(t *testing.T) {
	t.Parallel()

	q := &queries{db: &recordingDB{rowErr: pgx.ErrNoRows}}
	ctx := context.Background()

	if _, err := q.GetIdentity(ctx, 1); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("GetIdentity() error = %v", err)
	}
	if _, err := q.GetIdentityByUsername(ctx, "ghost"); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("GetIdentityByUsername() error = %v", err)
	}
	_, err := q.GetProfile(ctx, 1)
	if !errors.Is(err, domain.ErrProfileNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetProfile() error = %v", err)
	}
}

func TestGetProfileForUpdateLocksInsideTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	inTx := &recordingDB{rowErr: pgx.ErrNoRows}
	_, _ = (&queries{db: inTx, inTx: true}).GetProfileForUpdate(ctx, 5)
	if len(inTx.sql) != 1 || !strings.HasSuffix(inTx.sql[0], "FOR UPDATE OF p") {
		t.Fatalf("transactional read = %q, want row lock", inTx.sql)
	}

	outside := &recordingDB{rowErr: pgx.ErrNoRows}
	_, _ = (&queries{db: outside}).GetProfileForUpdate(ctx, 5)
	if len(outside.sql) != 1 || strings.Contains(outside.sql[0], "FOR UPDATE") {
		t.Fatalf("pooled read = %q, want no lock", outside.sql)
	}
}

func TestEnsureProfileMapsForeignKeyViolation(t *testing.T) {
	t.Parallel()

	q := &queries{db: &recordingDB{execErr: &pgconn.PgError{Code: codeForeignKeyViolation}}}
	if err := q.EnsureProfile(context.Background(), 99); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("EnsureProfile() error = %v, want ErrIdentityNotFound", err)
	}
}

func TestUpdateProfileWritesNullForBlankURLs(t *testing.T) {
	t.Parallel()

	db := &recordingDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	q := &queries{db: db}
	profile := domain.NewDefaultProfile(3)
	profile.LinkedIn = ptr("")
	profile.GitHub = ptr("https://github.com/ana")

	if err := q.UpdateProfile(context.Background(), profile); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	args := db.args[0]
	if linkedin, _ := args[6].(*string); linkedin != nil {
		t.Fatalf("linkedin arg = %q, want NULL", *linkedin)
	}
	if github, _ := args[8].(*string); github == nil || *github != "https://github.com/ana" {
		t.Fatalf("github arg = %v", args[8])
	}
	if userID, _ := args[11].(int64); userID != 3 {
		t.Fatalf("user id arg = %v", args[11])
	}

	db.tag = pgconn.NewCommandTag("UPDATE 0")
	if err := q.UpdateProfile(context.Background(), profile); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("UpdateProfile() on missing row error = %v", err)
	}
}

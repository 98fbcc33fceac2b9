package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/profile-service/config"
	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/media"
	"github.com/duynhne/profile-service/internal/core/repository/sqlite"
	logicv1 "github.com/duynhne/profile-service/internal/logic/v1"
)

func TestSeedIsIdempotent(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	storage, err := media.NewStorage(config.MediaConfig{Root: t.TempDir(), URLPrefix: "/media/"})
	if err != nil {
		t.Fatalf("open media: %v", err)
	}

	identities := logicv1.NewIdentityService(store, zap.NewNop()).WithBcryptCost(bcrypt.MinCost)
	profiles := logicv1.NewProfileService(store, storage, zap.NewNop())
	a := defaultAccount()
	ctx := context.Background()

	var out bytes.Buffer
	first, err := seed(ctx, identities, profiles, a, &out)
	if err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if !strings.Contains(out.String(), "creado exitosamente") {
		t.Fatalf("output = %q", out.String())
	}
	if first.User.FullName != "Carlos Moreno" || first.UserKind != domain.UserKindInstructor || first.Verified {
		t.Fatalf("view = %+v", first)
	}
	if first.GitHub == nil || *first.GitHub != "https://github.com/carlosmoreno" {
		t.Fatalf("github = %v", first.GitHub)
	}

	out.Reset()
	second, err := seed(ctx, identities, profiles, a, &out)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out.String(), "ya existe") {
		t.Fatalf("output = %q", out.String())
	}
	if second.ID != first.ID || second.User.ID != first.User.ID {
		t.Fatalf("second seed created new rows: %d/%d vs %d/%d", second.ID, second.User.ID, first.ID, first.User.ID)
	}

	identity, err := identities.GetIdentityByUsername(ctx, a.Username)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(a.Password)) != nil {
		t.Fatal("seeded password does not verify")
	}
}

// Package main creates (or refreshes) the demo account used by the frontend:
// an active identity plus a fully populated profile.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/duynhne/profile-service/config"
	database "github.com/duynhne/profile-service/internal/core"
	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/media"
	logicv1 "github.com/duynhne/profile-service/internal/logic/v1"
	"github.com/duynhne/profile-service/middleware"
)

// account describes the seeded identity.
type account struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

func defaultAccount() account {
	return account{
		Username:  "carlosandresmoreno",
		Password:  "90122856_Hanz",
		Email:     "carlos.moreno@example.com",
		FirstName: "Carlos",
		LastName:  "Moreno",
	}
}

func str(s string) *string { return &s }

// sampleProfile is the profile every seeded account ends up with.
func sampleProfile(a account) domain.UpdateProfileRequest {
	return domain.UpdateProfileRequest{
		User:        &domain.NamesInput{FirstName: str(a.FirstName), LastName: str(a.LastName)},
		Phone:       str("3001234567"),
		Document:    str("12345678"),
		UserKind:    str(string(domain.UserKindInstructor)),
		LegalNature: str(string(domain.LegalNatureNatural)),
		Biography:   str("Instructor con amplia experiencia en desarrollo frontend y backend. Especializado en React, Node.js y Python."),
		LinkedIn:    str("https://www.linkedin.com/in/carlos-moreno/"),
		Twitter:     str("https://twitter.com/carlosmoreno"),
		GitHub:      str("https://github.com/carlosmoreno"),
		Website:     str("https://carlosmoreno.dev"),
		Verified:    false,
	}
}

// seed creates the identity unless the username is taken, then overwrites its
// profile with the sample data. An existing identity keeps its password.
func seed(ctx context.Context, identities *logicv1.IdentityService, profiles *logicv1.ProfileService, a account, out io.Writer) (*domain.ProfileView, error) {
	identity, err := identities.Create(ctx, logicv1.NewIdentity{
		Username:  a.Username,
		Password:  a.Password,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	})
	switch {
	case err == nil:
		fmt.Fprintf(out, "Usuario %s creado exitosamente\n", a.Username)
	case errors.Is(err, domain.ErrIdentityExists):
		fmt.Fprintf(out, "Usuario %s ya existe\n", a.Username)
		identity, err = identities.GetIdentityByUsername(ctx, a.Username)
		if err != nil {
			return nil, fmt.Errorf("load existing identity: %w", err)
		}
	default:
		return nil, fmt.Errorf("create identity: %w", err)
	}

	view, err := profiles.UpdateProfile(ctx, identity.ID, sampleProfile(a))
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	fmt.Fprintln(out, "Perfil actualizado exitosamente")
	return view, nil
}

func main() {
	a := defaultAccount()
	flag.StringVar(&a.Username, "username", a.Username, "username of the demo account")
	flag.StringVar(&a.Password, "password", a.Password, "password, used only when the account is created")
	flag.StringVar(&a.Email, "email", a.Email, "email of the demo account")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, a, logger); err != nil {
		logger.Error("Seeding failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, a account, logger *zap.Logger) error {
	store, err := database.OpenStore(ctx, cfg.Database, cfg.Service.Name+"-seed")
	if err != nil {
		return err
	}
	defer store.Close()

	photoStorage, err := media.NewStorage(cfg.Media)
	if err != nil {
		return err
	}

	identities := logicv1.NewIdentityService(store, logger)
	profiles := logicv1.NewProfileService(store, photoStorage, logger)
	view, err := seed(ctx, identities, profiles, a, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Println("\n=== DATOS DE PRUEBA CREADOS ===")
	fmt.Printf("Username: %s\n", a.Username)
	fmt.Printf("Password: %s\n", a.Password)
	fmt.Printf("Email: %s\n", view.User.Email)
	fmt.Printf("Nombre: %s\n", view.User.FullName)
	fmt.Println("==================================")
	return nil
}

package service

import (
	"context"
	"log/slog"

	"github.com/agrilink/agrilink/internal/issuer/domain"
	"github.com/agrilink/agrilink/internal/issuer/store"
	"github.com/agrilink/agrilink/pkg/cryptox"
	"github.com/agrilink/agrilink/pkg/idx"
)

// BootstrapService seeds the initial admin account on an empty database so a
// fresh deployment can be logged into at all.
type BootstrapService struct {
	Store  store.Store
	Logger *slog.Logger

	AdminUsername string
	AdminPassword string
}

// EnsureAdmin creates the configured admin user if the user table is empty.
// A database that already has users is left alone, so this is safe to run on
// every startup.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) error {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	if s.AdminUsername == "" || s.AdminPassword == "" {
		s.Logger.Warn("user table is empty and no bootstrap admin is configured, nobody can log in")
		return nil
	}

	passHash, err := cryptox.HashPassword(s.AdminPassword)
	if err != nil {
		return err
	}

	admin := domain.User{
		ID:           idx.New().String(),
		Username:     s.AdminUsername,
		PasswordHash: passHash,
		Roles:        []string{domain.RoleAdmin},
	}
	if err := s.Store.Users().CreateUser(ctx, admin); err != nil {
		return err
	}

	s.Logger.Info("bootstrap admin user created",
		slog.String("user_id", admin.ID),
		slog.String("username", admin.Username),
	)
	return nil
}

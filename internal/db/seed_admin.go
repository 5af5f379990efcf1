package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markmehq/markme/internal/config"
	"github.com/markmehq/markme/internal/domain/user"
	"github.com/markmehq/markme/internal/security"
)

// EnsureAdminUser creates the bootstrap ADMIN account if it does not exist.
// Without it a fresh install has nobody who can reach the admin surface.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := user.NormalizeEmail(cfg.AdminEmail)

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	u := user.New(cfg.AdminName, email, user.RoleAdmin, security.HashPassword(email, cfg.AdminPassword))

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, full_name, email, role, password_hash, qr_token, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.FullName, u.Email, string(u.Role), u.PasswordHash, u.QRToken, u.CreatedAt,
	)

	return err
}

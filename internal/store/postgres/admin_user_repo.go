package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

func (s *Store) CreateAdminUser(ctx context.Context, user domain.AdminUser) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create admin user: %w", err)
	}
	return nil
}

func (s *Store) GetAdminUserByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = $1`, username)

	var u domain.AdminUser
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan admin user: %w", err)
	}
	return &u, nil
}

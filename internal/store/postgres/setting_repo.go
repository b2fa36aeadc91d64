package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

func (s *Store) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	row := s.pool.QueryRow(ctx, `SELECT key, value FROM settings WHERE key = $1`, key)
	return scanSetting(row)
}

func (s *Store) SetSetting(ctx context.Context, setting domain.Setting) error {
	valueJSON, err := json.Marshal(setting.Value)
	if err != nil {
		return fmt.Errorf("postgres: marshal setting value: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2`,
		setting.Key, valueJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: set setting: %w", err)
	}
	return nil
}

func (s *Store) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settings: %w", err)
	}
	defer rows.Close()

	var out []domain.Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSetting(row rowScanner) (*domain.Setting, error) {
	var s domain.Setting
	var valueJSON []byte
	if err := row.Scan(&s.Key, &valueJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan setting: %w", err)
	}
	if err := json.Unmarshal(valueJSON, &s.Value); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal setting value: %w", err)
	}
	return &s, nil
}

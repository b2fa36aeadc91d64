package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

func (s *Store) UpsertCapability(ctx context.Context, cap domain.AgentCapability) error {
	configJSON, err := json.Marshal(cap.Config)
	if err != nil {
		return fmt.Errorf("postgres: marshal capability config: %w", err)
	}
	if cap.ID == "" {
		cap.ID = uuid.NewString()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agent_capabilities (id, agent_id, type, enabled, config)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agent_id, type) DO UPDATE SET enabled = $4, config = $5`,
		cap.ID, cap.AgentID, string(cap.Type), cap.Enabled, configJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert capability: %w", err)
	}
	return nil
}

func (s *Store) GetCapability(ctx context.Context, agentID string, capType domain.CapabilityType) (*domain.AgentCapability, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, agent_id, type, enabled, config FROM agent_capabilities WHERE agent_id = $1 AND type = $2`,
		agentID, string(capType))
	return scanCapability(row)
}

func (s *Store) ListCapabilities(ctx context.Context, agentID string) ([]domain.AgentCapability, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, type, enabled, config FROM agent_capabilities WHERE agent_id = $1`, agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list capabilities: %w", err)
	}
	defer rows.Close()

	var out []domain.AgentCapability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCapability(row rowScanner) (*domain.AgentCapability, error) {
	var c domain.AgentCapability
	var capType string
	var configJSON []byte
	if err := row.Scan(&c.ID, &c.AgentID, &capType, &c.Enabled, &configJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan capability: %w", err)
	}
	c.Type = domain.CapabilityType(capType)
	if err := json.Unmarshal(configJSON, &c.Config); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal capability config: %w", err)
	}
	return &c, nil
}

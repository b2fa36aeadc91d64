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

func (s *Store) LastAuditEvent(ctx context.Context) (*domain.AuditEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, prev_hash, event_hash, event_type, data, created_at FROM audit_events ORDER BY seq DESC LIMIT 1`)
	event, err := scanAuditEvent(row)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return event, err
}

func (s *Store) AppendAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit data: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, prev_hash, event_hash, event_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.PrevHash, event.EventHash, event.EventType, dataJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, sinceID string, limit int) ([]domain.AuditEvent, error) {
	var afterSeq int64
	if sinceID != "" {
		if err := s.pool.QueryRow(ctx, `SELECT seq FROM audit_events WHERE id = $1`, sinceID).Scan(&afterSeq); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("postgres: resolve since_id: %w", err)
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, prev_hash, event_hash, event_type, data, created_at FROM audit_events
		 WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanAuditEvent(row rowScanner) (*domain.AuditEvent, error) {
	var e domain.AuditEvent
	var dataJSON []byte
	if err := row.Scan(&e.ID, &e.PrevHash, &e.EventHash, &e.EventType, &dataJSON, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan audit event: %w", err)
	}
	if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal audit data: %w", err)
	}
	return &e, nil
}

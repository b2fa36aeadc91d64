package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/actionhost/agentgate/internal/domain"
)

func (s *Store) CreateReceipt(ctx context.Context, receipt domain.ExecutionReceipt) error {
	logsJSON, err := json.Marshal(receipt.Logs)
	if err != nil {
		return fmt.Errorf("postgres: marshal receipt logs: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO execution_receipts (id, plan_id, status, logs, executed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		receipt.ID, receipt.PlanID, string(receipt.Status), logsJSON, receipt.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create receipt: %w", err)
	}
	return nil
}

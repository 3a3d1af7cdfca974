package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/line-broadcast/internal/domain"
)

// ExecutionLogRepo implements executionlog.Store against PostgreSQL.
type ExecutionLogRepo struct{ db *sql.DB }

// NewExecutionLogRepo creates a Postgres-backed execution log store.
func NewExecutionLogRepo(db *sql.DB) *ExecutionLogRepo { return &ExecutionLogRepo{db: db} }

func (r *ExecutionLogRepo) Insert(ctx context.Context, l *domain.ExecutionLog) error {
	snapshot, err := json.Marshal(l.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_logs
			(id, campaign_id, executed_at, executed_by, execution_type, snapshot,
			 target_count, success_count, failed_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8)
	`, l.ID, l.CampaignID, l.ExecutedAt, l.ExecutedBy, l.ExecutionType, snapshot,
		l.TargetCount, l.Status)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// Close only touches pending rows, so a row transitions at most once.
func (r *ExecutionLogRepo) Close(ctx context.Context, id string, success, failed int, status domain.ExecutionStatus, payload *domain.ExecutionError, closedAt time.Time) (bool, error) {
	var errPayload []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return false, fmt.Errorf("encode error payload: %w", err)
		}
		errPayload = b
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE execution_logs
		SET success_count = $1, failed_count = $2, status = $3,
		    error_payload = $4, closed_at = $5
		WHERE id = $6 AND status = 'pending'
	`, success, failed, status, errPayload, closedAt, id)
	if err != nil {
		return false, fmt.Errorf("close execution log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *ExecutionLogRepo) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]domain.ExecutionLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, executed_at, COALESCE(executed_by,''), execution_type,
		       snapshot, target_count, success_count, failed_count, status,
		       error_payload, closed_at
		FROM execution_logs
		WHERE campaign_id = $1
		ORDER BY executed_at DESC
		LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionLog
	for rows.Next() {
		var (
			l                  domain.ExecutionLog
			snapshot, errorRaw []byte
			closedAt           sql.NullTime
		)
		if err := rows.Scan(
			&l.ID, &l.CampaignID, &l.ExecutedAt, &l.ExecutedBy, &l.ExecutionType,
			&snapshot, &l.TargetCount, &l.SuccessCount, &l.FailedCount, &l.Status,
			&errorRaw, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if err := json.Unmarshal(snapshot, &l.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if len(errorRaw) > 0 {
			l.Error = &domain.ExecutionError{}
			if err := json.Unmarshal(errorRaw, l.Error); err != nil {
				return nil, fmt.Errorf("decode error payload: %w", err)
			}
		}
		if closedAt.Valid {
			t := closedAt.Time
			l.ClosedAt = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

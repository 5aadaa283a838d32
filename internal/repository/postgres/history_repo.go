package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
)

var _ health.HistoryRepo = (*HistoryRepoImpl)(nil)

type HistoryRepoImpl struct{ db *DB }

func NewHistoryRepo(db *DB) *HistoryRepoImpl { return &HistoryRepoImpl{db: db} }

const (
	qHistoryInsert = `
INSERT INTO health_check_history (service_name, status, response_time_ms, error_message, checked_at, check_details)
VALUES ($1, $2, $3, $4, $5, $6);
`
	qHistoryByService = `
SELECT service_name, status, response_time_ms, COALESCE(error_message, ''), checked_at, check_details
FROM health_check_history
WHERE service_name = $1
ORDER BY checked_at DESC
LIMIT $2;
`
	qHistoryPrune = `DELETE FROM health_check_history WHERE checked_at < $1;`
)

func (r *HistoryRepoImpl) Insert(ctx context.Context, res *health.CheckResult) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qHistoryInsert,
		res.Service,
		string(res.Status),
		res.ResponseTimeMs,
		nullString(res.Error),
		res.Timestamp,
		nullJSON(res.Checks),
	); err != nil {
		return fmt.Errorf("insert check history: %w", err)
	}
	return nil
}

func (r *HistoryRepoImpl) ListByService(ctx context.Context, service string, limit int) ([]*health.CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qHistoryByService, service, limit)
	if err != nil {
		return nil, fmt.Errorf("query check history: %w", err)
	}
	defer rows.Close()

	out := make([]*health.CheckResult, 0, limit)
	for rows.Next() {
		var (
			res     health.CheckResult
			status  string
			details []byte
		)
		if err := rows.Scan(&res.Service, &status, &res.ResponseTimeMs, &res.Error, &res.Timestamp, &details); err != nil {
			return nil, fmt.Errorf("scan check history: %w", err)
		}
		res.Status = health.Status(status)
		res.Checks = details
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *HistoryRepoImpl) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qHistoryPrune, before)
	if err != nil {
		return 0, fmt.Errorf("prune check history: %w", err)
	}
	return cmd.RowsAffected(), nil
}

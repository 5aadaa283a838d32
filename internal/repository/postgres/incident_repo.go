package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ incident.Repo = (*IncidentRepoImpl)(nil)

type IncidentRepoImpl struct{ db *DB }

func NewIncidentRepo(db *DB) *IncidentRepoImpl { return &IncidentRepoImpl{db: db} }

const (
	incidentCols = `id, service_name, severity, started_at, resolved_at, error_details, updated_at`

	qIncidentInsert = `
INSERT INTO incidents (id, service_name, severity, started_at, error_details, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING updated_at;
`
	qIncidentUpdate = `
UPDATE incidents
SET severity = $2, error_details = $3, updated_at = NOW()
WHERE id = $1 AND resolved_at IS NULL
RETURNING updated_at;
`
	qIncidentResolve = `
UPDATE incidents
SET resolved_at = $2, updated_at = NOW()
WHERE id = $1 AND resolved_at IS NULL;
`
	qIncidentByID = `SELECT ` + incidentCols + ` FROM incidents WHERE id = $1;`

	qIncidentActive = `
SELECT ` + incidentCols + `
FROM incidents
WHERE resolved_at IS NULL
ORDER BY started_at;
`
	qIncidentByService = `
SELECT ` + incidentCols + `
FROM incidents
WHERE service_name = $1
ORDER BY started_at DESC
LIMIT $2;
`
)

func scanIncident(row pgx.Row, in *incident.Incident) error {
	var (
		severity string
		details  []byte
	)
	if err := row.Scan(
		&in.ID,
		&in.ServiceName,
		&severity,
		&in.StartedAt,
		&in.ResolvedAt,
		&details,
		&in.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan incident: %w", err)
	}
	in.Severity = health.Status(severity)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &in.ErrorDetails); err != nil {
			return fmt.Errorf("decode error_details: %w", err)
		}
	}
	return nil
}

func (r *IncidentRepoImpl) Create(ctx context.Context, in *incident.Incident) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	details, err := json.Marshal(in.ErrorDetails)
	if err != nil {
		return fmt.Errorf("encode error_details: %w", err)
	}

	if err := r.db.Pool.QueryRow(ctx, qIncidentInsert,
		in.ID, in.ServiceName, string(in.Severity), in.StartedAt, details,
	).Scan(&in.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (r *IncidentRepoImpl) Update(ctx context.Context, in *incident.Incident) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	details, err := json.Marshal(in.ErrorDetails)
	if err != nil {
		return fmt.Errorf("encode error_details: %w", err)
	}
	if err := r.db.Pool.QueryRow(ctx, qIncidentUpdate, in.ID, string(in.Severity), details).
		Scan(&in.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

func (r *IncidentRepoImpl) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qIncidentResolve, id, at)
	if err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *IncidentRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var in incident.Incident
	if err := scanIncident(r.db.Pool.QueryRow(ctx, qIncidentByID, id), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *IncidentRepoImpl) ListActive(ctx context.Context) ([]*incident.Incident, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qIncidentActive)
	if err != nil {
		return nil, fmt.Errorf("query active incidents: %w", err)
	}
	return collectIncidents(rows)
}

func (r *IncidentRepoImpl) ListByService(ctx context.Context, service string, limit int) ([]*incident.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qIncidentByService, service, limit)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	return collectIncidents(rows)
}

func collectIncidents(rows pgx.Rows) ([]*incident.Incident, error) {
	defer rows.Close()

	var out []*incident.Incident
	for rows.Next() {
		var in incident.Incident
		if err := scanIncident(rows, &in); err != nil {
			return nil, err
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

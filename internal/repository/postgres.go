package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"audioscribe/internal/model"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) SnapshotRepository {
	return &postgresRepository{db: db}
}

// Upsert writes the snapshot, replacing any previous row with the same id
func (r *postgresRepository) Upsert(ctx context.Context, rec model.ProjectRecord) error {
	query := `
		INSERT INTO projects (id, file_name, snapshot, updated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.FileName, string(rec.Snapshot), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a project row by id
func (r *postgresRepository) Get(ctx context.Context, id string) (*model.ProjectRecord, error) {
	query := `
		SELECT id, file_name, snapshot, updated_at
		FROM projects
		WHERE id = $1
	`
	var rec model.ProjectRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.FileName, &rec.Snapshot, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &rec, nil
}

// List retrieves every project row, newest first
func (r *postgresRepository) List(ctx context.Context) ([]model.ProjectRecord, error) {
	query := `
		SELECT id, file_name, snapshot, updated_at
		FROM projects
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var records []model.ProjectRecord
	for rows.Next() {
		var rec model.ProjectRecord
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.Snapshot, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Delete removes a project row. A row that is visible but survives the
// DELETE is reported as ErrPolicyBlocked.
func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check project %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrPolicyBlocked)
	}
	return nil
}

package repository

import (
	"context"
	"errors"

	"audioscribe/internal/model"
)

var (
	// ErrNotFound is returned when no project row exists for the id.
	ErrNotFound = errors.New("project not found")
	// ErrPolicyBlocked is returned when the row exists but the store refused
	// to remove it (for example a row-level security policy).
	ErrPolicyBlocked = errors.New("delete blocked by storage policy")
)

//go:generate mockgen -destination=mocks/snapshot_mock.go -package=mocks audioscribe/internal/repository SnapshotRepository

// SnapshotRepository defines durable storage for project snapshots
type SnapshotRepository interface {
	// Upsert inserts or replaces the snapshot row keyed by rec.ID
	Upsert(ctx context.Context, rec model.ProjectRecord) error

	// Get retrieves one snapshot row
	Get(ctx context.Context, id string) (*model.ProjectRecord, error)

	// List returns all rows, most recently updated first
	List(ctx context.Context) ([]model.ProjectRecord, error)

	// Delete removes a row
	Delete(ctx context.Context, id string) error
}

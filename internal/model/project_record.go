package model

import "time"

// ProjectRecord is one durable snapshot row, keyed by item id.
type ProjectRecord struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Snapshot  []byte    `json:"snapshot"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectSummary is the listing view of a saved project.
type ProjectSummary struct {
	ID              string    `json:"id"`
	FileName        string    `json:"file_name"`
	Status          Status    `json:"status"`
	VersionCount    int       `json:"version_count"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

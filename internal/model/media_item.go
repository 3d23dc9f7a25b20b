package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Error codes stored alongside LastError so callers can tell failure kinds apart
// without parsing messages.
const (
	ErrorCodeRemote            = "remote_failure"
	ErrorCodeCredentialMissing = "credential_missing"
	ErrorCodeSource            = "source_failure"
	ErrorCodeInterrupted       = "interrupted"
)

// MediaItem is one audio/video source under processing.
type MediaItem struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Title    string `json:"title,omitempty"`
	// SourcePath points at the raw bytes on local disk. Empty means the binary
	// is absent (for example a restored snapshot); that is a valid, permanent state.
	SourcePath       string    `json:"-"`
	DurationSeconds  float64   `json:"duration_seconds"`
	TotalChunks      int       `json:"total_chunks"`
	ProcessedChunks  int       `json:"processed_chunks"`
	Status           Status    `json:"status"`
	ProgressPercent  int       `json:"progress_percent"`
	Versions         []Version `json:"versions"`
	CurrentVersionID string    `json:"current_version_id,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	LastErrorCode    string    `json:"last_error_code,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewMediaItem builds an idle item with no versions.
func NewMediaItem(id, fileName, sourcePath string, now time.Time) *MediaItem {
	return &MediaItem{
		ID:         id,
		FileName:   fileName,
		SourcePath: sourcePath,
		Status:     StatusIdle,
		Versions:   []Version{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasSource reports whether a source handle is attached.
func (m *MediaItem) HasSource() bool {
	return strings.TrimSpace(m.SourcePath) != ""
}

// ResolvedFileName returns a displayable file name even when the binary is gone.
func (m *MediaItem) ResolvedFileName() string {
	if name := strings.TrimSpace(m.FileName); name != "" {
		return name
	}
	if m.HasSource() {
		return filepath.Base(m.SourcePath)
	}
	short := m.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return "untitled-" + short
}

// SetError records a failure reason. An empty message clears both fields.
func (m *MediaItem) SetError(code, message string) {
	if message == "" {
		m.LastError = ""
		m.LastErrorCode = ""
		return
	}
	m.LastError = message
	m.LastErrorCode = code
}

// UserPaused reports a pause requested by the user rather than caused by a failure.
func (m *MediaItem) UserPaused() bool {
	return m.Status == StatusPaused && m.LastError == ""
}

// Clone returns a deep copy safe to hand out of the repository.
func (m *MediaItem) Clone() MediaItem {
	out := *m
	out.Versions = make([]Version, len(m.Versions))
	copy(out.Versions, m.Versions)
	return out
}

// Percent converts done/total into a rounded 0..100 value.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(float64(done)/float64(total)*100 + 0.5)
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrVersionNotFound  = errors.New("version not found")
	ErrDuplicateVersion = errors.New("duplicate version id")
	ErrUnknownParent    = errors.New("parent version not found")
	ErrVersionFinal     = errors.New("version is final")
	ErrContentShrink    = errors.New("version content may only grow while streaming")
)

// AppendVersion adds v at the end of the lineage. The parent, when set, must
// already exist on the item.
func (m *MediaItem) AppendVersion(v Version, makeCurrent bool) error {
	if v.ID == "" {
		return fmt.Errorf("append version: empty id")
	}
	if m.indexOf(v.ID) >= 0 {
		return fmt.Errorf("append version %s: %w", v.ID, ErrDuplicateVersion)
	}
	if v.ParentID != "" && m.indexOf(v.ParentID) < 0 {
		return fmt.Errorf("append version %s: %w: %s", v.ID, ErrUnknownParent, v.ParentID)
	}
	m.Versions = append(m.Versions, v)
	if makeCurrent {
		m.CurrentVersionID = v.ID
	}
	return nil
}

// PatchVersion replaces content and display name of a version that is still
// streaming. Content is append-only.
func (m *MediaItem) PatchVersion(id, content, displayName string) error {
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("patch version %s: %w", id, ErrVersionNotFound)
	}
	v := &m.Versions[i]
	if v.Final {
		return fmt.Errorf("patch version %s: %w", id, ErrVersionFinal)
	}
	if !strings.HasPrefix(content, v.Content) {
		return fmt.Errorf("patch version %s: %w", id, ErrContentShrink)
	}
	v.Content = content
	v.DisplayName = displayName
	return nil
}

// FinalizeVersion writes the terminal content and name and freezes the version.
func (m *MediaItem) FinalizeVersion(id, content, displayName string) error {
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("finalize version %s: %w", id, ErrVersionNotFound)
	}
	v := &m.Versions[i]
	if v.Final {
		return fmt.Errorf("finalize version %s: %w", id, ErrVersionFinal)
	}
	v.Content = content
	v.DisplayName = displayName
	v.Final = true
	return nil
}

// MarkVersionFailed finalizes a version as a visible failed attempt.
func (m *MediaItem) MarkVersionFailed(id, marker, displayName string) error {
	if err := m.FinalizeVersion(id, marker, displayName); err != nil {
		return err
	}
	m.Versions[m.indexOf(id)].Failed = true
	return nil
}

// VersionsByStage returns versions of kind in creation order.
func (m *MediaItem) VersionsByStage(kind StageKind) []Version {
	var out []Version
	for _, v := range m.Versions {
		if v.StageKind == kind {
			out = append(out, v)
		}
	}
	return out
}

// VersionByID looks up a version.
func (m *MediaItem) VersionByID(id string) (Version, bool) {
	if i := m.indexOf(id); i >= 0 {
		return m.Versions[i], true
	}
	return Version{}, false
}

// LatestRaw returns the most recently created RAW version.
func (m *MediaItem) LatestRaw() (Version, bool) {
	for i := len(m.Versions) - 1; i >= 0; i-- {
		if m.Versions[i].StageKind == StageRaw {
			return m.Versions[i], true
		}
	}
	return Version{}, false
}

// SetCurrentVersion points the item at an existing version.
func (m *MediaItem) SetCurrentVersion(id string) error {
	if m.indexOf(id) < 0 {
		return fmt.Errorf("set current version %s: %w", id, ErrVersionNotFound)
	}
	m.CurrentVersionID = id
	return nil
}

// CheckLineage verifies that every parent resolves and the current pointer is valid.
func (m *MediaItem) CheckLineage() error {
	for _, v := range m.Versions {
		if v.ParentID != "" && m.indexOf(v.ParentID) < 0 {
			return fmt.Errorf("version %s: %w: %s", v.ID, ErrUnknownParent, v.ParentID)
		}
	}
	if m.CurrentVersionID != "" && m.indexOf(m.CurrentVersionID) < 0 {
		return fmt.Errorf("current version %s: %w", m.CurrentVersionID, ErrVersionNotFound)
	}
	if m.ProcessedChunks < 0 || m.ProcessedChunks > m.TotalChunks {
		return fmt.Errorf("processed chunks %d out of range 0..%d", m.ProcessedChunks, m.TotalChunks)
	}
	return nil
}

func (m *MediaItem) indexOf(id string) int {
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return i
		}
	}
	return -1
}

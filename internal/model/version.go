package model

import "time"

// StageKind names the transformation that produced a version.
type StageKind string

const (
	StageRaw              StageKind = "RAW"
	StageArabicDiacritics StageKind = "ARABIC_DIACRITICS"
	StageTitles           StageKind = "TITLES"
	StageFormal           StageKind = "FORMAL"
	StageCustom           StageKind = "CUSTOM"
)

// StageKinds lists every kind in display order.
var StageKinds = []StageKind{StageRaw, StageArabicDiacritics, StageTitles, StageFormal, StageCustom}

// Valid reports whether k is a known stage kind.
func (k StageKind) Valid() bool {
	for _, known := range StageKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Label is the human name used in display names.
func (k StageKind) Label() string {
	switch k {
	case StageRaw:
		return "Raw transcript"
	case StageArabicDiacritics:
		return "Diacritics"
	case StageTitles:
		return "Headings"
	case StageFormal:
		return "Formal"
	case StageCustom:
		return "Custom edit"
	default:
		return string(k)
	}
}

// Version is one node in an item's lineage forest.
type Version struct {
	ID          string    `json:"id"`
	StageKind   StageKind `json:"stage_kind"`
	ParentID    string    `json:"parent_id,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	PromptUsed  string    `json:"prompt_used,omitempty"`
	DisplayName string    `json:"display_name"`
	Final       bool      `json:"final"`
	Failed      bool      `json:"failed,omitempty"`
}

// IsRoot reports whether v has no parent.
func (v Version) IsRoot() bool {
	return v.ParentID == ""
}

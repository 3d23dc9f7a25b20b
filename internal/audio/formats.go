package audio

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions are the container formats accepted for ingestion.
var SupportedExtensions = []string{".m4a", ".mp3", ".wav", ".aac", ".ogg", ".opus", ".flac", ".webm", ".mp4", ".caf", ".aiff", ".aif"}

// IsSupported reports whether name has a supported extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range SupportedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

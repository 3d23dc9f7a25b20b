package stt

import "context"

// Request is one encoded audio window sent to a model.
type Request struct {
	Audio    []byte
	MimeType string
	Model    string
	APIKey   string
}

// Provider defines the interface for speech-to-text providers
type Provider interface {
	// Transcribe returns the text for one audio chunk. An empty string is a
	// valid result for silent audio.
	Transcribe(ctx context.Context, req Request) (string, error)

	// Name returns the name of the provider (e.g., "openai", "fpt")
	Name() string
}

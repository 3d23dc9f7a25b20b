// Package credential holds the API key used for remote model calls.
package credential

import (
	"strings"
	"sync"
)

// Holder is a concurrency-safe, replaceable API key.
type Holder struct {
	mu  sync.RWMutex
	key string
}

// NewHolder seeds the holder, typically from OPENAI_API_KEY.
func NewHolder(key string) *Holder {
	return &Holder{key: strings.TrimSpace(key)}
}

// Get returns the current key and whether one is set.
func (h *Holder) Get() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.key, h.key != ""
}

// Set replaces the key. An empty value clears it.
func (h *Holder) Set(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.key = strings.TrimSpace(key)
}

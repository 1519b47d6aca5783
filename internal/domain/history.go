package domain

import (
	"sync"
	"time"
)

// CallLogEntry is the immutable record appended when a session ends.
type CallLogEntry struct {
	PhoneNumber string        `json:"phone_number"`
	Outcome     string        `json:"outcome"`
	Duration    time.Duration `json:"duration_ms"`
	EndedAt     time.Time     `json:"ended_at"`
}

// SatisfactionEntry records one satisfaction verdict, automatic or manual.
type SatisfactionEntry struct {
	AgentID   string    `json:"agent_id"`
	Verdict   string    `json:"verdict"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a fixed-capacity ring: appending past capacity evicts the
// oldest entry. Entries iterates newest first.
type History[T any] struct {
	entries []T
	start   int
	size    int
	mutex   sync.RWMutex
}

func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{entries: make([]T, capacity)}
}

func (h *History[T]) Append(entry T) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	idx := (h.start + h.size) % len(h.entries)
	h.entries[idx] = entry
	if h.size < len(h.entries) {
		h.size++
	} else {
		h.start = (h.start + 1) % len(h.entries)
	}
}

func (h *History[T]) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.size
}

// Entries returns a copy ordered newest first.
func (h *History[T]) Entries() []T {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	result := make([]T, h.size)
	for i := 0; i < h.size; i++ {
		idx := (h.start + h.size - 1 - i) % len(h.entries)
		result[i] = h.entries[idx]
	}
	return result
}

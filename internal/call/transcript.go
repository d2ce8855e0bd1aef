package call

import (
	"sync"

	"github.com/yoockh/intervyu/internal/models"
)

// Transcript is the append-only log of finalized utterances for one session,
// plus the latest partial utterance shown live. Partials are never persisted.
type Transcript struct {
	mu      sync.RWMutex
	entries []models.TranscriptEntry
	partial string
}

// Append records a finalized utterance and clears the live partial it supersedes.
func (t *Transcript) Append(e models.TranscriptEntry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.partial = ""
	t.mu.Unlock()
}

func (t *Transcript) SetPartial(text string) {
	t.mu.Lock()
	t.partial = text
	t.mu.Unlock()
}

func (t *Transcript) Partial() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.partial
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns a copy of the log in append order.
func (t *Transcript) Snapshot() []models.TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

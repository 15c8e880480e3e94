package orchestration

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fragment is one submitted transcript segment awaiting a turn.
type Fragment struct {
	ID        string
	Text      string
	ArrivedAt time.Time
}

// PendingInputBuffer collects fragments between turns. Appends and drains
// are mutually exclusive, so a fragment ends up in exactly one drain.
type PendingInputBuffer struct {
	mu        sync.Mutex
	fragments []Fragment
}

func NewPendingInputBuffer() *PendingInputBuffer {
	return &PendingInputBuffer{}
}

// Append stores text at the tail of the buffer.
func (b *PendingInputBuffer) Append(text string) Fragment {
	b.mu.Lock()
	defer b.mu.Unlock()

	fragment := Fragment{ID: uuid.NewString(), Text: text, ArrivedAt: time.Now()}
	b.fragments = append(b.fragments, fragment)
	return fragment
}

// DrainAll returns every buffered fragment in arrival order and empties the
// buffer. An empty buffer drains to nil.
func (b *PendingInputBuffer) DrainAll() []Fragment {
	b.mu.Lock()
	defer b.mu.Unlock()

	fragments := b.fragments
	b.fragments = nil
	return fragments
}

func (b *PendingInputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}

// Newest returns the most recently appended fragment, if any.
func (b *PendingInputBuffer) Newest() (Fragment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.fragments) == 0 {
		return Fragment{}, false
	}
	return b.fragments[len(b.fragments)-1], true
}

func joinFragments(fragments []Fragment) string {
	texts := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		texts = append(texts, fragment.Text)
	}
	return strings.Join(texts, "\n")
}

func fragmentIDs(fragments []Fragment) []string {
	ids := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		ids = append(ids, fragment.ID)
	}
	return ids
}

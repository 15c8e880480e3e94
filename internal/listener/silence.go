package listener

import (
	"context"
	"sync"
	"time"
)

// silenceWatcher logs the current time once per silence longer than the
// threshold. It only observes transcripts, the speaker is not affected.
type silenceWatcher struct {
	threshold time.Duration
	now       func() time.Time
	onSilence func(at time.Time)

	mu        sync.Mutex
	lastHeard time.Time
	reported  bool
}

func newSilenceWatcher(threshold time.Duration) *silenceWatcher {
	return &silenceWatcher{
		threshold: threshold,
		now:       time.Now,
		onSilence: func(at time.Time) {
			logger.Info("silence", "time", at.Format(time.TimeOnly))
		},
		lastHeard: time.Now(),
	}
}

func (w *silenceWatcher) observe() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastHeard = w.now()
	w.reported = false
}

func (w *silenceWatcher) check() {
	w.mu.Lock()
	now := w.now()
	if w.reported || now.Sub(w.lastHeard) < w.threshold {
		w.mu.Unlock()
		return
	}
	w.reported = true
	w.mu.Unlock()

	w.onSilence(now)
}

func (w *silenceWatcher) run(ctx context.Context) {
	if w.threshold <= 0 {
		return
	}

	ticker := time.NewTicker(max(w.threshold/4, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

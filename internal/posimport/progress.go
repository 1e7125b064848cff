package posimport

import "sync"

// progressTracker converts completed discrete steps into a monotonically
// increasing percentage and pushes it onto the progress channel. Sends never
// block: a slow consumer only misses intermediate percentages, never the
// ordering. Safe for concurrent step calls from parallel day rebuilds.
type progressTracker struct {
	mu    sync.Mutex
	total int
	done  int
	last  int
	stage string
	ch    chan<- ProgressEvent
}

func newProgressTracker(total int, stage string, ch chan<- ProgressEvent) *progressTracker {
	return &progressTracker{total: total, stage: stage, ch: ch}
}

func (t *progressTracker) step(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += n
	if t.total <= 0 {
		return
	}
	pct := t.done * 100 / t.total
	if pct > 100 {
		pct = 100
	}
	if pct <= t.last {
		return
	}
	t.last = pct
	t.emit(ProgressEvent{Percent: pct, Stage: t.stage})
}

func (t *progressTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last >= 100 {
		return
	}
	t.last = 100
	t.emit(ProgressEvent{Percent: 100, Stage: t.stage})
}

func (t *progressTracker) emit(ev ProgressEvent) {
	if t.ch == nil {
		return
	}
	select {
	case t.ch <- ev:
	default:
	}
}

package telemetry

import (
	"sync"
	"time"
)

const defaultMaxBreadcrumbs = 100

// Recorder keeps breadcrumbs and events in memory. Each captured event gets a
// copy of the trail recorded so far, oldest first.
type Recorder struct {
	mu             sync.Mutex
	maxBreadcrumbs int
	breadcrumbs    []Breadcrumb
	events         []Event
	now            func() time.Time
}

// NewRecorder returns a recorder that keeps at most maxBreadcrumbs entries
// (100 when maxBreadcrumbs <= 0).
func NewRecorder(maxBreadcrumbs int) *Recorder {
	if maxBreadcrumbs <= 0 {
		maxBreadcrumbs = defaultMaxBreadcrumbs
	}
	return &Recorder{maxBreadcrumbs: maxBreadcrumbs, now: time.Now}
}

func (r *Recorder) AddBreadcrumb(b Breadcrumb) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Timestamp.IsZero() {
		b.Timestamp = r.now()
	}
	r.breadcrumbs = append(r.breadcrumbs, b)
	if over := len(r.breadcrumbs) - r.maxBreadcrumbs; over > 0 {
		r.breadcrumbs = append([]Breadcrumb(nil), r.breadcrumbs[over:]...)
	}
}

func (r *Recorder) CaptureException(err error, ctx Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := Event{
		ID:          newEventID(),
		Timestamp:   r.now(),
		Context:     ctx,
		Breadcrumbs: append([]Breadcrumb(nil), r.breadcrumbs...),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.events = append(r.events, ev)
	return ev.ID
}

// Breadcrumbs returns a copy of the current trail.
func (r *Recorder) Breadcrumbs() []Breadcrumb {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Breadcrumb(nil), r.breadcrumbs...)
}

// Events returns a copy of every captured exception.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// BreadcrumbCount returns how many breadcrumbs are currently retained.
func (r *Recorder) BreadcrumbCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.breadcrumbs)
}

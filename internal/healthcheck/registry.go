package healthcheck

import "sync"

// EntityState tracks how far cleanup of a created record has progressed.
type EntityState string

const (
	StateCreated  EntityState = "created"
	StateArchived EntityState = "archived"
	StateDeleted  EntityState = "deleted"
)

// TrackedEntity is one record created during a run.
type TrackedEntity struct {
	Entity string      `json:"entity"`
	ID     string      `json:"id"`
	State  EntityState `json:"state"`
	// Note holds the last cleanup failure, if any.
	Note string `json:"note,omitempty"`
}

// Registry is the ordered set of records a run created and has not yet
// confirmed gone. An id leaves the registry only through MarkGone.
type Registry struct {
	mu      sync.Mutex
	entries []*TrackedEntity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add tracks a newly created record. Adding a tracked id again is a no-op.
func (r *Registry) Add(entity, id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(entity, id) != nil {
		return
	}
	r.entries = append(r.entries, &TrackedEntity{Entity: entity, ID: id, State: StateCreated})
}

// MarkArchived records a successful archive.
func (r *Registry) MarkArchived(entity, id string) {
	r.setState(entity, id, StateArchived)
}

// MarkDeleted records a successful delete that has not been verified yet.
func (r *Registry) MarkDeleted(entity, id string) {
	r.setState(entity, id, StateDeleted)
}

// MarkGone removes an id once a read confirmed it no longer exists.
func (r *Registry) MarkGone(entity, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Entity == entity && e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Note attaches a cleanup failure message to a tracked id.
func (r *Registry) Note(entity, id, note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(entity, id); e != nil {
		e.Note = note
	}
}

// State returns the state of a tracked id.
func (r *Registry) State(entity, id string) (EntityState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(entity, id); e != nil {
		return e.State, true
	}
	return "", false
}

// Outstanding returns copies of the tracked records for entity in creation
// order. An empty entity returns every record.
func (r *Registry) Outstanding(entity string) []TrackedEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TrackedEntity
	for _, e := range r.entries {
		if entity == "" || e.Entity == entity {
			out = append(out, *e)
		}
	}
	return out
}

// IDs returns the tracked ids for entity in creation order.
func (r *Registry) IDs(entity string) []string {
	var ids []string
	for _, e := range r.Outstanding(entity) {
		ids = append(ids, e.ID)
	}
	return ids
}

// Len returns the number of tracked records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) setState(entity, id string, state EntityState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(entity, id); e != nil {
		e.State = state
	}
}

func (r *Registry) find(entity, id string) *TrackedEntity {
	for _, e := range r.entries {
		if e.Entity == entity && e.ID == id {
			return e
		}
	}
	return nil
}

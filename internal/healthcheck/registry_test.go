package healthcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	r.Add(EntityEscrows, "a")
	r.Add(EntityEscrows, "b")
	r.Add(EntityClients, "c")
	r.Add(EntityEscrows, "a")
	r.Add(EntityEscrows, "")

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.IDs(EntityEscrows))
	assert.Len(t, r.Outstanding(""), 3)

	r.MarkArchived(EntityEscrows, "a")
	state, ok := r.State(EntityEscrows, "a")
	assert.True(t, ok)
	assert.Equal(t, StateArchived, state)

	r.MarkDeleted(EntityEscrows, "a")
	state, _ = r.State(EntityEscrows, "a")
	assert.Equal(t, StateDeleted, state)
	assert.Equal(t, 3, r.Len(), "a delete is not a confirmation")

	r.MarkGone(EntityEscrows, "a")
	_, ok = r.State(EntityEscrows, "a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, r.IDs(EntityEscrows))

	r.Note(EntityClients, "c", "archive: 500")
	out := r.Outstanding(EntityClients)
	assert.Equal(t, "archive: 500", out[0].Note)
}

func TestRegistry_SameIDDifferentEntities(t *testing.T) {
	r := NewRegistry()
	r.Add(EntityLeads, "1")
	r.Add(EntityClients, "1")

	r.MarkGone(EntityLeads, "1")

	assert.Empty(t, r.IDs(EntityLeads))
	assert.Equal(t, []string{"1"}, r.IDs(EntityClients))
}

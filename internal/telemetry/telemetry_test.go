package telemetry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_EventCarriesTrail(t *testing.T) {
	r := NewRecorder(0)
	r.AddBreadcrumb(Breadcrumb{Category: "api", Message: "GET /escrows"})
	r.AddBreadcrumb(Breadcrumb{Category: "api", Message: "POST /escrows"})

	id := r.CaptureException(errors.New("connection refused"), Context{
		Tags: map[string]string{"endpoint": "/escrows", "method": "POST"},
	})
	require.NotEmpty(t, id)

	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "connection refused", events[0].Error)
	require.Len(t, events[0].Breadcrumbs, 2)
	assert.Equal(t, "POST /escrows", events[0].Breadcrumbs[1].Message)
	assert.False(t, events[0].Breadcrumbs[0].Timestamp.IsZero())
}

func TestRecorder_TrimsOldest(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		r.AddBreadcrumb(Breadcrumb{Category: "api", Message: fmt.Sprintf("GET /%d", i)})
	}

	crumbs := r.Breadcrumbs()
	require.Len(t, crumbs, 3)
	assert.Equal(t, "GET /2", crumbs[0].Message)
	assert.Equal(t, 3, r.BreadcrumbCount())
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	m := Multi{Nop{}, a, b}

	m.AddBreadcrumb(Breadcrumb{Category: "api", Message: "GET /leads"})
	id := m.CaptureException(errors.New("boom"), Context{})

	assert.Len(t, a.Breadcrumbs(), 1)
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, a.Events()[0].ID, id)
}

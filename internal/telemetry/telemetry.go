// Package telemetry defines the diagnostic trail the request pipeline writes to:
// breadcrumbs on every call and captured exceptions for transport failures.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Breadcrumb is one entry in the diagnostic trail.
type Breadcrumb struct {
	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Context describes the request that raised a captured exception.
type Context struct {
	Tags  map[string]string `json:"tags,omitempty"`
	Extra map[string]any    `json:"extra,omitempty"`
}

// Event is a captured exception together with the trail that led to it.
type Event struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Error       string       `json:"error"`
	Context     Context      `json:"context"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs,omitempty"`
}

// Sink receives breadcrumbs and exceptions.
type Sink interface {
	AddBreadcrumb(b Breadcrumb)
	CaptureException(err error, ctx Context) string
}

// Nop discards everything.
type Nop struct{}

func (Nop) AddBreadcrumb(Breadcrumb) {}

func (Nop) CaptureException(error, Context) string { return "" }

// Multi fans out to several sinks. The returned id is the first non-empty one.
type Multi []Sink

func (m Multi) AddBreadcrumb(b Breadcrumb) {
	for _, s := range m {
		s.AddBreadcrumb(b)
	}
}

func (m Multi) CaptureException(err error, ctx Context) string {
	var id string
	for _, s := range m {
		if got := s.CaptureException(err, ctx); id == "" {
			id = got
		}
	}
	return id
}

func newEventID() string {
	return uuid.NewString()
}

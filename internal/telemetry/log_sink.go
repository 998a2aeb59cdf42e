package telemetry

import (
	"crmcheck/pkg/logging"
)

// LogSink writes breadcrumbs at debug level and exceptions at error level.
type LogSink struct{}

func (LogSink) AddBreadcrumb(b Breadcrumb) {
	logging.Debug("Telemetry", "[%s] %s %v", b.Category, b.Message, b.Data)
}

func (LogSink) CaptureException(err error, ctx Context) string {
	id := newEventID()
	logging.Error("Telemetry", err, "captured exception %s tags=%v", id, ctx.Tags)
	return id
}

package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crmcheck/internal/api"
	"crmcheck/pkg/logging"
)

// cleanupTimeout bounds one record's archive, delete and verify sequence.
const cleanupTimeout = 15 * time.Second

// cleaner removes created records and keeps the registry in step.
type cleaner struct {
	sender   Sender
	registry *Registry
}

// remove archives (when needed), deletes and verifies id. It runs on a
// context detached from ctx's cancellation so an aborted run still cleans up.
func (c *cleaner) remove(ctx context.Context, spec EntitySpec, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	state, tracked := c.registry.State(spec.Name, id)
	if !tracked {
		return nil
	}

	var errs []error
	if state == StateDeleted {
		gone, err := c.verifyGone(ctx, spec, id)
		if gone {
			return nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		// The delete was acknowledged but did not take; try it again.
		state = StateArchived
	}
	if state == StateCreated {
		if _, err := c.sender.Send(ctx, api.Request{Method: spec.archiveMethod(), Endpoint: spec.ArchivePath(id)}); err != nil && !isNotFound(nil, err) {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		} else {
			c.registry.MarkArchived(spec.Name, id)
			state = StateArchived
		}
	}
	if state == StateArchived {
		if _, err := c.sender.Send(ctx, api.Request{Method: http.MethodDelete, Endpoint: spec.RecordPath(id)}); err != nil && !isNotFound(nil, err) {
			errs = append(errs, fmt.Errorf("delete: %w", err))
		} else {
			c.registry.MarkDeleted(spec.Name, id)
		}
	}

	gone, err := c.verifyGone(ctx, spec, id)
	if err != nil {
		errs = append(errs, err)
	}
	if gone {
		return nil
	}
	if err := errors.Join(errs...); err != nil {
		c.registry.Note(spec.Name, id, err.Error())
		logging.Warn("Cleanup", "%s %s not removed: %v", spec.Name, id, err)
		return err
	}
	err = fmt.Errorf("%s %s still readable after delete", spec.Name, id)
	c.registry.Note(spec.Name, id, err.Error())
	return err
}

// verifyGone reads id and drops it from the registry when the backend
// confirms it is absent.
func (c *cleaner) verifyGone(ctx context.Context, spec EntitySpec, id string) (bool, error) {
	out, err := c.sender.Send(ctx, api.Request{Method: http.MethodGet, Endpoint: spec.RecordPath(id)})
	if isNotFound(out, err) {
		c.registry.MarkGone(spec.Name, id)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	return false, nil
}

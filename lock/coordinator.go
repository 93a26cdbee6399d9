package lock

import (
	"context"
	"time"

	"oss.nandlabs.io/fleet/chrono"
	"oss.nandlabs.io/fleet/clusterapi"
)

// Acquire obtains the named lock, retrying across conflicts and forcing
// away expired holders, until either it succeeds, ctx is canceled, or
// AcquireTimeoutSeconds elapses. data is stored alongside the lock and is
// visible to anything reading the custom resource; it may be nil.
func (c *Coordinator) Acquire(ctx context.Context, name string, data map[string]interface{}) (*Handle, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	h := &Handle{coordinator: c, name: name, fullName: fullName(name), data: data}

	logger.InfoF("acquiring lock %s", h.fullName)
	deadline := time.Now().Add(time.Duration(c.config.AcquireTimeoutSeconds) * time.Second)
	delay := time.Duration(c.config.AcquireDelaySeconds) * time.Second

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obj, err := c.api.CreateCustomResource(Group, Version, Namespace, Plural, h.body())
		if err == nil {
			h.absorb(obj)
			logger.InfoF("acquired lock %s", h.fullName)
			return h, nil
		}

		if clusterapi.IsNotFound(err) {
			logger.InfoF("lock custom resource definition not found, creating now")
			if defErr := c.createDefinition(); defErr != nil {
				return nil, &FatalError{Name: name, Cause: defErr}
			}
			continue
		}
		if !clusterapi.IsConflict(err) {
			return nil, &FatalError{Name: name, Cause: err}
		}

		logger.WarnF("lock %s already held, checking ownership", h.fullName)
		owned, err := c.owns(h)
		if err != nil {
			return nil, &FatalError{Name: name, Cause: err}
		}
		if owned {
			logger.InfoF("already own lock %s", h.fullName)
			return h, nil
		}

		age, err := c.age(h.fullName)
		if err != nil {
			return nil, &FatalError{Name: name, Cause: err}
		}
		if age > time.Duration(c.config.ExpirationSeconds)*time.Second {
			logger.InfoF("lock %s has exceeded expiry, forcibly removing so processing can continue", h.fullName)
			if err := c.release(h.fullName); err != nil {
				return nil, &FatalError{Name: name, Cause: err}
			}
			continue
		}

		logger.DebugF("sleeping %s before attempting to acquire lock %s again", delay, h.fullName)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, &TimeoutError{Name: name}
}

// Release deletes h's underlying custom resource. Releasing a lock that is
// already gone (e.g. forced away by another holder) is not an error.
func (h *Handle) Release() error {
	logger.InfoF("releasing lock %s", h.fullName)
	return h.coordinator.release(h.fullName)
}

// Heartbeat refreshes h's lastUpdated timestamp using optimistic
// concurrency on the stored resourceVersion. It returns a *StatusError
// (via clusterapi.IsConflict/IsNotFound) if the lock has been usurped.
func (h *Handle) Heartbeat() error {
	logger.DebugF("updating lock %s", h.fullName)
	obj, err := h.coordinator.api.ReplaceCustomResource(Group, Version, Namespace, Plural, h.fullName, h.body())
	if err != nil {
		return err
	}
	h.absorb(obj)
	return nil
}

// RunWithLock acquires name, runs work while periodically heartbeating the
// lock to keep it alive, and releases it on return. If the heartbeat
// detects the lock has been usurped, work's context is canceled and
// RunWithLock returns an *UsurpedError once work unwinds.
func (c *Coordinator) RunWithLock(ctx context.Context, name string, data map[string]interface{}, work func(ctx context.Context) error) error {
	handle, err := c.Acquire(ctx, name, data)
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Release(); err != nil {
			logger.ErrorF("error releasing lock %s: %v", handle.fullName, err)
		}
	}()

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler := chrono.New()
	schedule, err := chrono.NewIntervalSchedule(time.Duration(c.config.UpdateIntervalSeconds) * time.Second)
	if err != nil {
		return &FatalError{Name: name, Cause: err}
	}

	usurped := make(chan struct{}, 1)
	jobErr := scheduler.AddJob("lock-heartbeat-"+handle.fullName, "lock heartbeat", func(ctx context.Context) error {
		return handle.Heartbeat()
	}, schedule, chrono.WithOnError(func(jobID string, err error) {
		logger.WarnF("lock heartbeat for %s failed: %v", handle.fullName, err)
		if clusterapi.IsConflict(err) || clusterapi.IsNotFound(err) {
			select {
			case usurped <- struct{}{}:
			default:
			}
			cancel()
		}
	}))
	if jobErr != nil {
		return &FatalError{Name: name, Cause: jobErr}
	}
	if err := scheduler.Start(); err != nil {
		return &FatalError{Name: name, Cause: err}
	}
	defer scheduler.Stop()

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- work(workCtx)
	}()

	var workErr error
	select {
	case workErr = <-resultCh:
	case <-workCtx.Done():
		workErr = <-resultCh
	}

	select {
	case <-usurped:
		return &UsurpedError{Name: name}
	default:
	}
	return workErr
}

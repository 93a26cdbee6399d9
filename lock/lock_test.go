package lock

import (
	"context"
	"testing"
	"time"

	"oss.nandlabs.io/fleet/clusterapi"
	"oss.nandlabs.io/fleet/testing/assert"
)

func fastConfig() Config {
	return Config{
		ExpirationSeconds:     1,
		AcquireTimeoutSeconds: 2,
		AcquireDelaySeconds:   0,
		UpdateIntervalSeconds: 1,
	}
}

func TestAcquireCreatesDefinitionOnFirstUse(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	handle, err := c.Acquire(context.Background(), "deploy-foo", nil)
	assert.NoError(t, err)
	assert.NotNil(t, handle)
	assert.Equal(t, "deploy-foo", handle.Name())
}

func TestAcquireIsExclusive(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	first, err := c.Acquire(context.Background(), "deploy-bar", nil)
	assert.NoError(t, err)
	assert.NotNil(t, first)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, err := c.Acquire(ctx, "deploy-bar", nil)
	assert.Nil(t, second)
	assert.Error(t, err)
}

func TestAcquireForcesExpiredLock(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	cfg := fastConfig()
	cfg.ExpirationSeconds = 0
	c := New(api, cfg)

	first, err := c.Acquire(context.Background(), "deploy-baz", nil)
	assert.NoError(t, err)
	assert.NotNil(t, first)

	time.Sleep(10 * time.Millisecond)

	second, err := c.Acquire(context.Background(), "deploy-baz", nil)
	assert.NoError(t, err)
	assert.NotNil(t, second)
}

func TestReleaseIsIdempotent(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	handle, err := c.Acquire(context.Background(), "deploy-qux", nil)
	assert.NoError(t, err)

	assert.NoError(t, handle.Release())
	assert.NoError(t, handle.Release())
}

func TestHeartbeatRefreshesResourceVersion(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	handle, err := c.Acquire(context.Background(), "deploy-heartbeat", nil)
	assert.NoError(t, err)

	before := handle.version
	assert.NoError(t, handle.Heartbeat())
	assert.NotEqual(t, before, handle.version)
}

func TestRunWithLockExecutesWork(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	ran := false
	err := c.RunWithLock(context.Background(), "deploy-run", nil, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)

	// Lock should be released afterwards, so a second run succeeds immediately.
	ran = false
	err = c.RunWithLock(context.Background(), "deploy-run", nil, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestRunWithLockPropagatesWorkError(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	boom := &FatalError{Name: "deploy-err", Cause: context.DeadlineExceeded}
	err := c.RunWithLock(context.Background(), "deploy-err", nil, func(ctx context.Context) error {
		return boom
	})
	assert.Error(t, err)
}

func TestRunWithLockDetectsUsurpation(t *testing.T) {
	api := clusterapi.NewMemoryClusterAPI()
	c := New(api, fastConfig())

	workStarted := make(chan struct{})
	workDone := make(chan struct{})
	errCh := make(chan error, 1)

	go func() {
		errCh <- c.RunWithLock(context.Background(), "deploy-usurp", nil, func(ctx context.Context) error {
			close(workStarted)
			<-ctx.Done()
			close(workDone)
			return ctx.Err()
		})
	}()

	<-workStarted
	// Simulate another process forcibly taking the lock out from under us.
	full := fullName("deploy-usurp")
	assert.NoError(t, api.DeleteCustomResource(Group, Version, Namespace, Plural, full, nil))
	_, err := api.CreateCustomResource(Group, Version, Namespace, Plural, clusterapi.Object{
		"metadata": map[string]interface{}{"name": full},
		"data":     map[string]interface{}{"lastUpdated": time.Now().UTC().Format(timeLayout)},
	})
	assert.NoError(t, err)

	<-workDone
	err = <-errCh
	assert.Error(t, err)
	if _, ok := err.(*UsurpedError); !ok {
		t.Fatalf("expected *UsurpedError, got %T: %v", err, err)
	}
}

package lockout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduro/pkg/platform/audit"
	auditmemory "eduro/pkg/platform/audit/store/memory"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (Record, error) {
	return Record{}, errors.New("store down")
}
func (brokenStore) Put(context.Context, Record, time.Duration) error { return errors.New("store down") }
func (brokenStore) Clear(context.Context, string) error              { return errors.New("store down") }

func newTestService(t *testing.T, store Store) (*Service, *auditmemory.InMemoryStore, *time.Time) {
	t.Helper()

	auditLog := auditmemory.NewInMemoryStore()
	publisher := audit.NewPublisher([]audit.Sink{auditLog})
	t.Cleanup(publisher.Close)

	now := time.Now()
	svc, err := New(store, DefaultConfig(),
		WithAuditPublisher(publisher),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return svc, auditLog, &now
}

func TestAllowsUnderLimit(t *testing.T) {
	svc, _, _ := newTestService(t, NewInMemoryStore())
	ctx := context.Background()

	for range 4 {
		assert.True(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)
		svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")
	}
	assert.True(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)
}

func TestLocksAtLimit(t *testing.T) {
	svc, auditLog, _ := newTestService(t, NewInMemoryStore())
	ctx := context.Background()

	for range 5 {
		svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")
	}

	decision := svc.Check(ctx, "amara@example.org", "10.0.0.1")
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))

	events := auditLog.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, string(audit.EventLockout), events[0].Action)
}

func TestLockExpires(t *testing.T) {
	svc, _, now := newTestService(t, NewInMemoryStore())
	ctx := context.Background()

	for range 5 {
		svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")
	}
	require.False(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)

	*now = now.Add(16 * time.Minute)
	assert.True(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)
}

func TestDistinctPairsAreIndependent(t *testing.T) {
	svc, _, _ := newTestService(t, NewInMemoryStore())
	ctx := context.Background()

	for range 5 {
		svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")
	}

	assert.False(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)
	assert.True(t, svc.Check(ctx, "amara@example.org", "10.0.0.2").Allowed)
	assert.True(t, svc.Check(ctx, "other@example.org", "10.0.0.1").Allowed)
}

func TestClearResetsFailures(t *testing.T) {
	svc, _, _ := newTestService(t, NewInMemoryStore())
	ctx := context.Background()

	for range 4 {
		svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")
	}
	svc.ClearFailures(ctx, "amara@example.org", "10.0.0.1")
	svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")

	assert.True(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)
}

func TestStoreFailureAllowsAttempt(t *testing.T) {
	svc, _, _ := newTestService(t, brokenStore{})
	ctx := context.Background()

	assert.True(t, svc.Check(ctx, "amara@example.org", "10.0.0.1").Allowed)
	svc.RecordFailure(ctx, "amara@example.org", "10.0.0.1")
	svc.ClearFailures(ctx, "amara@example.org", "10.0.0.1")
}

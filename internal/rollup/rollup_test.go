package rollup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roy-sema/cto-tool-sub001/internal/store"
	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// recorder is a hook that remembers the organizations it saw.
type recorder struct {
	mu   sync.Mutex
	seen []int64
}

func (r *recorder) hook(_ context.Context, organizationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, organizationID)
	return nil
}

func (r *recorder) calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seen...)
}

func TestQueueRunsEveryTaskWithoutDedup(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(3, quiet, rec.hook)
	q.Start(context.Background())

	for _, id := range []int64{1, 2, 1, 3, 1} {
		q.Schedule(context.Background(), id)
	}
	q.Close()

	assert.ElementsMatch(t, []int64{1, 1, 1, 2, 3}, rec.calls())
	processed, failed := q.Stats()
	assert.Equal(t, int64(5), processed)
	assert.Zero(t, failed)
	assert.Zero(t, q.Pending())
}

func TestQueueSingleWorkerIsFIFO(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(1, quiet, rec.hook)
	q.Start(context.Background())

	for id := int64(1); id <= 20; id++ {
		q.Schedule(context.Background(), id)
	}
	q.Close()

	calls := rec.calls()
	require.Len(t, calls, 20)
	for i, id := range calls {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestScheduleDoesNotBlockOnHooks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue(1, quiet, func(context.Context, int64) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	q.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for id := int64(1); id <= 10; id++ {
			q.Schedule(context.Background(), id)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Schedule blocked while a hook was running")
	}

	<-started
	close(release)
	q.Close()
	processed, _ := q.Stats()
	assert.Equal(t, int64(10), processed)
}

func TestFailingHookIsLoggedNotRetried(t *testing.T) {
	rec := &recorder{}
	attempts := 0
	var mu sync.Mutex
	failing := func(context.Context, int64) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("downstream unavailable")
	}

	q := NewQueue(2, quiet, failing, rec.hook)
	q.Start(context.Background())
	q.Schedule(context.Background(), 9)
	q.Close()

	assert.Equal(t, 1, attempts)
	assert.Equal(t, []int64{9}, rec.calls(), "later hooks still run")
	processed, failed := q.Stats()
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(1), failed)
}

func TestScheduleAfterCloseIsDropped(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(1, quiet, rec.hook)
	q.Start(context.Background())
	q.Close()
	q.Close()

	q.Schedule(context.Background(), 4)
	assert.Empty(t, rec.calls())
	assert.Zero(t, q.Pending())
}

func TestCloseWithoutStartRunsInline(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(2, quiet, rec.hook)
	q.Schedule(context.Background(), 5)
	q.Schedule(context.Background(), 6)
	assert.Equal(t, 2, q.Pending())

	q.Close()
	assert.Equal(t, []int64{5, 6}, rec.calls())
}

func TestTasksOutliveCanceledCallerContext(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(1, quiet, func(ctx context.Context, id int64) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return rec.hook(ctx, id)
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.Schedule(ctx, 8)
	cancel()

	q.Start(context.Background())
	q.Close()
	assert.Equal(t, []int64{8}, rec.calls())
}

func TestOrganizationRollup(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	org, err := s.EnsureOrganization(ctx, "acme")
	require.NoError(t, err)

	for i, counts := range []schema.Counts{{Total: 100, AI: 40, Blended: 10}, {Total: 50, AI: 5, Blended: 5}} {
		repo, err := s.EnsureRepository(ctx, org.ID, []string{"api", "web"}[i])
		require.NoError(t, err)
		repo.Counts = counts
		require.NoError(t, s.UpdateRepository(ctx, repo))
	}

	stamp := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	hook := OrganizationRollup(s, func() time.Time { return stamp })
	require.NoError(t, hook(ctx, org.ID))

	stored, err := s.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.Counts{Total: 150, AI: 45, Blended: 15}, stored.Counts)
	require.NotNil(t, stored.LastRolledUpAt)
	assert.Equal(t, stamp, *stored.LastRolledUpAt)

	assert.Error(t, hook(ctx, 999))
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// recordingRefresher records the progress rows handed to Run.
type recordingRefresher struct {
	mu   sync.Mutex
	runs []*domain.RefreshProgress
}

func (r *recordingRefresher) InitialDownload(_ context.Context) (*domain.RefreshProgress, error) {
	return nil, nil
}

func (r *recordingRefresher) Refresh(_ context.Context) (*domain.RefreshProgress, error) {
	return nil, nil
}

func (r *recordingRefresher) RefreshSingleTitle(_ context.Context, _ int) (*domain.RefreshProgress, error) {
	return nil, nil
}

func (r *recordingRefresher) Run(_ context.Context, progress *domain.RefreshProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, progress)
	return nil
}

func (r *recordingRefresher) ran() []*domain.RefreshProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func newWatcherFixture(now time.Time) (*TriggerWatcher, *memory.RefreshProgressStore, *recordingRefresher) {
	progress := memory.NewRefreshProgressStore()
	refresher := &recordingRefresher{}
	watcher := NewTriggerWatcher(progress, refresher)
	watcher.now = func() time.Time { return now }
	return watcher, progress, refresher
}

func pendingTrigger(t *testing.T, store *memory.RefreshProgressStore, createdAt time.Time, by domain.TriggerSource, number int) *domain.RefreshProgress {
	t.Helper()
	row := &domain.RefreshProgress{
		Type:        domain.RefreshSingleTitle,
		Status:      domain.JobPending,
		TitlesOrder: []int{number},
		CreatedAt:   createdAt,
		TriggeredBy: by,
	}
	require.NoError(t, store.SaveRefreshProgress(context.Background(), row))
	return row
}

func TestTickPromotesOldestPendingManual(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	watcher, store, refresher := newWatcherFixture(now)
	ctx := context.Background()

	older := pendingTrigger(t, store, now.Add(-10*time.Minute), domain.TriggerManual, 5)
	pendingTrigger(t, store, now.Add(-5*time.Minute), domain.TriggerManualSingle, 7)

	require.NoError(t, watcher.Tick(ctx))

	runs := refresher.ran()
	require.Len(t, runs, 1)
	assert.Equal(t, older.ID, runs[0].ID)
	assert.Equal(t, domain.JobInProgress, runs[0].Status)
	require.NotNil(t, runs[0].StartedAt)
	assert.Equal(t, now, *runs[0].StartedAt)

	saved, err := store.GetRefreshProgress(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobInProgress, saved.Status)
}

func TestTickSkipsWhenRefreshInProgress(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	watcher, store, refresher := newWatcherFixture(now)
	ctx := context.Background()

	pendingTrigger(t, store, now.Add(-5*time.Minute), domain.TriggerManual, 5)
	require.NoError(t, store.SaveRefreshProgress(ctx, &domain.RefreshProgress{
		Type:      domain.RefreshFull,
		Status:    domain.JobInProgress,
		CreatedAt: now.Add(-time.Hour),
	}))

	require.NoError(t, watcher.Tick(ctx))
	assert.Empty(t, refresher.ran())
}

func TestTickKeepsOldTriggerQueuedBehindRunningRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	watcher, store, refresher := newWatcherFixture(now)
	ctx := context.Background()

	// A full refresh can run for days; a trigger queued hours ago must
	// wait it out, not expire.
	queued := pendingTrigger(t, store, now.Add(-2*time.Hour), domain.TriggerManual, 3)
	running := &domain.RefreshProgress{
		Type:      domain.RefreshFull,
		Status:    domain.JobInProgress,
		CreatedAt: now.Add(-26 * time.Hour),
	}
	require.NoError(t, store.SaveRefreshProgress(ctx, running))

	require.NoError(t, watcher.Tick(ctx))
	assert.Empty(t, refresher.ran())

	waiting, err := store.GetRefreshProgress(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, waiting.Status)

	// Once the running job finishes, the next tick promotes the trigger
	// regardless of its age.
	running.Status = domain.JobCompleted
	require.NoError(t, store.SaveRefreshProgress(ctx, running))

	require.NoError(t, watcher.Tick(ctx))
	runs := refresher.ran()
	require.Len(t, runs, 1)
	assert.Equal(t, queued.ID, runs[0].ID)
}

func TestTickNoPendingIsNoOp(t *testing.T) {
	watcher, _, refresher := newWatcherFixture(time.Now())
	require.NoError(t, watcher.Tick(context.Background()))
	assert.Empty(t, refresher.ran())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	watcher, _, _ := newWatcherFixture(time.Now())
	watcher.period = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := watcher.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

type fakeRebuilder struct {
	progress    *domain.IndexRebuildProgress
	err         error
	triggeredBy domain.TriggerSource
}

func (f *fakeRebuilder) Rebuild(_ context.Context, by domain.TriggerSource) (*domain.IndexRebuildProgress, error) {
	f.triggeredBy = by
	return f.progress, f.err
}

func withRebuilder(t *testing.T, fake *fakeRebuilder) {
	t.Helper()
	original := rebuilder
	rebuilder = fake
	t.Cleanup(func() { rebuilder = original })
}

func TestRebuildCmd_RunsManualRebuild(t *testing.T) {
	fake := &fakeRebuilder{progress: &domain.IndexRebuildProgress{
		ID:               "rb-1",
		Status:           domain.JobCompleted,
		TotalDocuments:   100,
		IndexedDocuments: 100,
	}}
	withRebuilder(t, fake)

	out, err := execute(t, "rebuild")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerManual, fake.triggeredBy)
	assert.Contains(t, out, "100 indexed, 0 failed of 100 documents")
}

func TestRebuildCmd_PropagatesFailure(t *testing.T) {
	withRebuilder(t, &fakeRebuilder{err: errors.New("cluster unavailable")})

	_, err := execute(t, "rebuild")
	assert.ErrorContains(t, err, "cluster unavailable")
}

func TestRebuildCmd_NotConfigured(t *testing.T) {
	original := rebuilder
	rebuilder = nil
	defer func() { rebuilder = original }()

	_, err := execute(t, "rebuild")
	assert.ErrorContains(t, err, "not configured")
}

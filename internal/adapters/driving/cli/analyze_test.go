package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
)

// fakeThreadManager records which lifecycle calls were made.
type fakeThreadManager struct {
	started   []domain.ThreadType
	stopped   []domain.ThreadType
	restarted []domain.ThreadType
	startAll  bool
	stopAll   bool
	threads   []domain.AnalysisThread
	err       error
}

func (f *fakeThreadManager) StartThread(_ context.Context, t domain.ThreadType, _ driving.StartOptions) error {
	f.started = append(f.started, t)
	return f.err
}

func (f *fakeThreadManager) StopThread(_ context.Context, t domain.ThreadType) error {
	f.stopped = append(f.stopped, t)
	return f.err
}

func (f *fakeThreadManager) RestartThread(_ context.Context, t domain.ThreadType) error {
	f.restarted = append(f.restarted, t)
	return f.err
}

func (f *fakeThreadManager) StartAll(_ context.Context) error {
	f.startAll = true
	return f.err
}

func (f *fakeThreadManager) StopAll(_ context.Context) error {
	f.stopAll = true
	return f.err
}

func (f *fakeThreadManager) GetThreadStatus(_ context.Context) ([]domain.AnalysisThread, error) {
	return f.threads, f.err
}

func withThreadManager(t *testing.T, fake *fakeThreadManager) {
	t.Helper()
	original := threadManager
	threadManager = fake
	t.Cleanup(func() { threadManager = original })
}

func TestAnalyzeStart_All(t *testing.T) {
	fake := &fakeThreadManager{}
	withThreadManager(t, fake)

	_, err := execute(t, "analyze", "start")
	require.NoError(t, err)
	assert.True(t, fake.startAll)
}

func TestAnalyzeStart_One(t *testing.T) {
	fake := &fakeThreadManager{}
	withThreadManager(t, fake)

	_, err := execute(t, "analyze", "start", "text_metrics")
	require.NoError(t, err)
	assert.Equal(t, []domain.ThreadType{domain.ThreadTextMetrics}, fake.started)
}

func TestAnalyzeStart_UnknownType(t *testing.T) {
	withThreadManager(t, &fakeThreadManager{})

	_, err := execute(t, "analyze", "start", "sentiment")
	assert.ErrorContains(t, err, "unknown thread type")
}

func TestAnalyzeStop_One(t *testing.T) {
	fake := &fakeThreadManager{}
	withThreadManager(t, fake)

	_, err := execute(t, "analyze", "stop", "section_analysis")
	require.NoError(t, err)
	assert.Equal(t, []domain.ThreadType{domain.ThreadSectionAnalysis}, fake.stopped)
}

func TestAnalyzeRestart_RequiresType(t *testing.T) {
	withThreadManager(t, &fakeThreadManager{})

	_, err := execute(t, "analyze", "restart")
	assert.Error(t, err)
}

func TestAnalyzeRestart_One(t *testing.T) {
	fake := &fakeThreadManager{}
	withThreadManager(t, fake)

	_, err := execute(t, "analyze", "restart", "version_history")
	require.NoError(t, err)
	assert.Equal(t, []domain.ThreadType{domain.ThreadVersionHistory}, fake.restarted)
}

func TestAnalyzeStatus_PrintsRows(t *testing.T) {
	fake := &fakeThreadManager{threads: []domain.AnalysisThread{
		{
			ThreadType:  domain.ThreadTextMetrics,
			Status:      domain.ThreadRunning,
			Progress:    domain.ThreadProgress{Current: 10, Total: 48, Percentage: 20.8},
			CurrentItem: "title-11",
		},
		{
			ThreadType: domain.ThreadSectionAnalysis,
			Status:     domain.ThreadFailed,
			Error:      "llm unreachable",
		},
	}}
	withThreadManager(t, fake)

	out, err := execute(t, "analyze", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "text_metrics")
	assert.Contains(t, out, "10/48")
	assert.Contains(t, out, "current=title-11")
	assert.Contains(t, out, "error=llm unreachable")
}

func TestAnalyze_NotConfigured(t *testing.T) {
	original := threadManager
	threadManager = nil
	defer func() { threadManager = original }()

	_, err := execute(t, "analyze", "status")
	assert.ErrorContains(t, err, "not configured")
}

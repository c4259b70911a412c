package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/parser"
)

type fakeRegistry struct {
	titles []domain.RegistryTitle
	err    error
}

func (f *fakeRegistry) ListTitles(_ context.Context) ([]domain.RegistryTitle, error) {
	return f.titles, f.err
}

type fakeDownloader struct {
	xml   map[int][]byte
	fail  map[int]error
	calls map[int]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		xml:   make(map[int][]byte),
		fail:  make(map[int]error),
		calls: make(map[int]int),
	}
}

func (f *fakeDownloader) DownloadTitle(_ context.Context, number int) ([]byte, error) {
	f.calls[number]++
	if err := f.fail[number]; err != nil {
		return nil, err
	}
	xmlBytes, ok := f.xml[number]
	if !ok {
		return nil, fmt.Errorf("no fixture for title %d", number)
	}
	return xmlBytes, nil
}

// titleXML builds a minimal parseable title with one part and one
// section.
func titleXML(number int) []byte {
	return []byte(fmt.Sprintf(`<DLPSTEXTCLASS><TEXT><BODY><ECFRBRWS>`+
		`<AMDDATE>Jan. 5, 2017</AMDDATE>`+
		`<DIV1 N="%d" TYPE="TITLE"><HEAD>Title %d</HEAD>`+
		`<DIV5 N="100" TYPE="PART"><HEAD>PART 100</HEAD>`+
		`<DIV8 N="100.1" TYPE="SECTION"><HEAD>100.1 Purpose.</HEAD>`+
		`<P>This section states the purpose of part 100.</P>`+
		`</DIV8></DIV5></DIV1>`+
		`</ECFRBRWS></BODY></TEXT></DLPSTEXTCLASS>`, number, number))
}

type refresherFixture struct {
	registry   *fakeRegistry
	downloader *fakeDownloader
	titles     *memory.TitleStore
	documents  *memory.DocumentStore
	blobs      *memory.BlobStore
	search     *memory.SearchIndex
	progress   *memory.RefreshProgressStore
	refresher  *Refresher

	clock time.Time
}

func newRefresherFixture(registryTitles ...domain.RegistryTitle) *refresherFixture {
	f := &refresherFixture{
		registry:   &fakeRegistry{titles: registryTitles},
		downloader: newFakeDownloader(),
		titles:     memory.NewTitleStore(),
		documents:  memory.NewDocumentStore(),
		blobs:      memory.NewBlobStore(),
		search:     memory.NewSearchIndex(),
		progress:   memory.NewRefreshProgressStore(),
		clock:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, rt := range registryTitles {
		if !rt.Reserved {
			f.downloader.xml[rt.Number] = titleXML(rt.Number)
		}
	}
	f.refresher = NewRefresher(
		f.registry, f.downloader,
		f.titles, f.documents, f.blobs, f.search, f.progress,
	)
	f.refresher.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	f.refresher.now = func() time.Time { return f.clock }
	return f
}

func TestInitialDownloadCompletes(t *testing.T) {
	f := newRefresherFixture(
		domain.RegistryTitle{Number: 1, Name: "General Provisions"},
		domain.RegistryTitle{Number: 2, Name: "Grants and Agreements"},
		domain.RegistryTitle{Number: 35, Name: "Reserved", Reserved: true},
	)
	ctx := context.Background()

	progress, err := f.refresher.InitialDownload(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.JobCompleted, progress.Status)
	assert.Equal(t, []int{1, 2}, progress.TitlesOrder)
	assert.Equal(t, 2, progress.ProcessedTitles)
	assert.NotNil(t, progress.CompletedAt)

	title, err := f.titles.GetTitle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "General Provisions", title.Name)
	assert.NotEmpty(t, title.Checksum)
	assert.NotEmpty(t, title.XMLContent)
	assert.False(t, title.IsOversized)
	assert.NotNil(t, title.LastDownloaded)
	assert.NotNil(t, title.LatestAmendedOn)

	count, err := f.documents.CountByTitle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count) // title, part, section

	assert.Equal(t, 6, f.search.Len())

	// The reserved title was never touched.
	assert.Zero(t, f.downloader.calls[35])
	_, err = f.titles.GetTitle(ctx, 35)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshRecordsFailureAndKeepsGoing(t *testing.T) {
	f := newRefresherFixture(
		domain.RegistryTitle{Number: 1, Name: "One"},
		domain.RegistryTitle{Number: 2, Name: "Two"},
		domain.RegistryTitle{Number: 3, Name: "Three"},
	)
	f.downloader.fail[2] = errors.New("upstream 503")
	ctx := context.Background()

	progress, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.JobInProgress, progress.Status)
	assert.Equal(t, 2, progress.ProcessedTitles)
	assert.True(t, progress.IsProcessed(1))
	assert.True(t, progress.IsProcessed(3))
	assert.False(t, progress.IsProcessed(2))

	failure := progress.FailureFor(2)
	require.NotNil(t, failure)
	assert.Equal(t, "Two", failure.Name)
	assert.Contains(t, failure.Error, "upstream 503")
	assert.Contains(t, progress.LastError, "upstream 503")

	// Titles 1 and 3 were fully stored despite the failure in between.
	_, err = f.titles.GetTitle(ctx, 3)
	assert.NoError(t, err)
}

func TestRefreshRetriesFailedTitleAfterDelay(t *testing.T) {
	f := newRefresherFixture(
		domain.RegistryTitle{Number: 1, Name: "One"},
		domain.RegistryTitle{Number: 2, Name: "Two"},
	)
	f.downloader.fail[2] = errors.New("upstream 503")
	ctx := context.Background()

	_, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.downloader.calls[2])

	// Immediately re-running resumes the same job but the failed title
	// is not yet due for retry.
	_, err = f.refresher.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.downloader.calls[2])
	assert.Equal(t, 1, f.downloader.calls[1])

	// Past the retry delay the title is attempted again and the job
	// completes.
	f.clock = f.clock.Add(domain.RetryDelay + time.Minute)
	delete(f.downloader.fail, 2)

	progress, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.downloader.calls[2])
	assert.Equal(t, domain.JobCompleted, progress.Status)
}

func TestRefreshSkipsUnchangedTitles(t *testing.T) {
	f := newRefresherFixture(
		domain.RegistryTitle{Number: 1, Name: "One", LatestIssueDate: "2025-05-01"},
	)
	ctx := context.Background()

	_, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.downloader.calls[1])

	// The stored download time now postdates the upstream issue date, so
	// a second refresh completes without downloading anything.
	progress, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.downloader.calls[1])
	assert.Equal(t, domain.JobCompleted, progress.Status)
}

func TestRefreshSingleTitleForcesDownload(t *testing.T) {
	f := newRefresherFixture(
		domain.RegistryTitle{Number: 1, Name: "One", LatestIssueDate: "2025-05-01"},
	)
	ctx := context.Background()

	_, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)

	progress, err := f.refresher.RefreshSingleTitle(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, f.downloader.calls[1])
	assert.Equal(t, domain.RefreshSingleTitle, progress.Type)
	assert.Equal(t, domain.TriggerManualSingle, progress.TriggeredBy)
	assert.Equal(t, domain.JobCompleted, progress.Status)
}

func TestRefreshReindexesReplacedDocuments(t *testing.T) {
	f := newRefresherFixture(domain.RegistryTitle{Number: 1, Name: "One"})
	ctx := context.Background()

	_, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)
	before := f.search.Len()
	require.Equal(t, 3, before)

	_, err = f.refresher.RefreshSingleTitle(ctx, 1)
	require.NoError(t, err)

	// Old entries were removed before the new ones went in.
	assert.Equal(t, before, f.search.Len())
	count, err := f.documents.CountByTitle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSkipUnchanged(t *testing.T) {
	downloaded := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		downloaded *time.Time
		issueDate  string
		want       bool
	}{
		{"issue date before download", &downloaded, "2025-05-01", true},
		{"issue date equals download", &downloaded, "2025-05-10", true},
		{"issue date after download", &downloaded, "2025-05-20", false},
		{"never downloaded", nil, "2025-05-01", false},
		{"missing issue date", &downloaded, "", false},
		{"malformed issue date", &downloaded, "May 2025", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stored := &domain.Title{Number: 1, LastDownloaded: tc.downloaded}
			reg := domain.RegistryTitle{Number: 1, LatestIssueDate: tc.issueDate}
			assert.Equal(t, tc.want, skipUnchanged(stored, reg))
		})
	}
}

func TestCompressXMLRoundTrip(t *testing.T) {
	input := []byte(`<DIV1 N="1" TYPE="TITLE"><HEAD>Title 1</HEAD></DIV1>`)

	comp := compressXML(input)
	require.True(t, comp.gzip)

	gz, err := gzip.NewReader(bytes.NewReader(comp.data))
	require.NoError(t, err)
	out, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestBuildTitleOversized(t *testing.T) {
	f := newRefresherFixture()
	reg := domain.RegistryTitle{Number: 7, Name: "Agriculture"}

	big := compressed{data: make([]byte, titleEmbedLimit+1)}
	title := f.refresher.buildTitle(reg, nil, "abc123", big)
	assert.True(t, title.IsOversized)
	assert.Nil(t, title.XMLContent)

	small := compressed{data: []byte("tiny"), gzip: true}
	title = f.refresher.buildTitle(reg, nil, "abc123", small)
	assert.False(t, title.IsOversized)
	assert.Equal(t, []byte("tiny"), title.XMLContent)
}

func TestBuildTitlePreservesStoredFields(t *testing.T) {
	f := newRefresherFixture()
	analyzed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	stored := &domain.Title{Number: 7, Name: "Agriculture", LastAnalyzed: &analyzed}

	// The registry sometimes returns an empty name; the stored one wins.
	title := f.refresher.buildTitle(domain.RegistryTitle{Number: 7}, stored, "abc", compressed{})
	assert.Equal(t, "Agriculture", title.Name)
	require.NotNil(t, title.LastAnalyzed)
	assert.Equal(t, analyzed, *title.LastAnalyzed)
}

func TestApplySpillsUploadsAndRewires(t *testing.T) {
	f := newRefresherFixture()
	ctx := context.Background()

	result := &parser.Result{
		Documents: []domain.Document{
			{TitleNumber: 1, Type: domain.DocTypeSection, Identifier: "1.1", Content: domain.SpillSentinel},
		},
		Spills: []parser.Spill{
			{DocIndex: 0, Field: parser.SpillContent, Data: []byte("the oversized body")},
		},
	}

	require.NoError(t, f.refresher.applySpills(ctx, 1, result))

	doc := result.Documents[0]
	require.NotEmpty(t, doc.ContentGridFS)
	assert.Equal(t, domain.SpillSentinel, doc.Content)

	data, err := f.blobs.Download(ctx, doc.ContentGridFS)
	require.NoError(t, err)
	assert.Equal(t, []byte("the oversized body"), data)
}

func TestRefreshStampsDocumentModification(t *testing.T) {
	f := newRefresherFixture(domain.RegistryTitle{Number: 4, Name: "Accounts"})
	ctx := context.Background()

	_, err := f.refresher.RefreshSingleTitle(ctx, 4)
	require.NoError(t, err)

	cursor, err := f.documents.StreamByTitle(ctx, 4)
	require.NoError(t, err)
	defer cursor.Close(ctx)

	// Every stored document carries the refresh time, not the zero value.
	count := 0
	for cursor.Next(ctx) {
		count++
		assert.Equal(t, f.clock, cursor.Document().LastModified)
	}
	require.NoError(t, cursor.Err())
	assert.Equal(t, 3, count)
}

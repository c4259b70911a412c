package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
	"github.com/custodia-labs/ecfr-ingest/internal/parser"
)

// Ensure Refresher implements the interface.
var _ driving.Refresher = (*Refresher)(nil)

const (
	// titleSleep is the pause between successfully processed titles;
	// failureSleep applies after a failed one.
	titleSleep   = 2 * time.Second
	failureSleep = 5 * time.Second

	// documentBatchSize is how many documents go into one bulk insert.
	documentBatchSize = 50

	// rawSizeLimit is the raw XML size above which compression is
	// skipped and the bytes are handled uncompressed.
	rawSizeLimit = 500 * 1024 * 1024

	// titleEmbedLimit is the compressed XML size above which the Title
	// record stores no inline copy. Slightly under the store's 16 MB
	// record limit to leave room for the rest of the record.
	titleEmbedLimit = 15 * 1024 * 1024
)

// Refresher downloads title XML, parses it into the document tree and
// keeps the stores and search index in sync.
type Refresher struct {
	registry   driven.RegistryClient
	downloader driven.TitleDownloader
	titles     driven.TitleStore
	documents  driven.DocumentStore
	blobs      driven.BlobStore
	search     driven.SearchIndex
	progress   driven.RefreshProgressStore

	// sleep and now are replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRefresher creates a refresher. search may be nil, in which case
// indexing is skipped.
func NewRefresher(
	registry driven.RegistryClient,
	downloader driven.TitleDownloader,
	titles driven.TitleStore,
	documents driven.DocumentStore,
	blobs driven.BlobStore,
	search driven.SearchIndex,
	progress driven.RefreshProgressStore,
) *Refresher {
	return &Refresher{
		registry:   registry,
		downloader: downloader,
		titles:     titles,
		documents:  documents,
		blobs:      blobs,
		search:     search,
		progress:   progress,
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// InitialDownload runs a full first-time download of every non-reserved
// title, resuming any in-flight initial job.
func (r *Refresher) InitialDownload(ctx context.Context) (*domain.RefreshProgress, error) {
	return r.runType(ctx, domain.RefreshInitial, domain.TriggerScheduled)
}

// Refresh re-downloads titles whose upstream issue date is newer than
// the stored copy, resuming any in-flight refresh job.
func (r *Refresher) Refresh(ctx context.Context) (*domain.RefreshProgress, error) {
	return r.runType(ctx, domain.RefreshFull, domain.TriggerScheduled)
}

// RefreshSingleTitle force-downloads one title regardless of freshness.
func (r *Refresher) RefreshSingleTitle(ctx context.Context, number int) (*domain.RefreshProgress, error) {
	progress := &domain.RefreshProgress{
		ID:          uuid.NewString(),
		Type:        domain.RefreshSingleTitle,
		Status:      domain.JobPending,
		TitlesOrder: []int{number},
		CreatedAt:   r.now(),
		TriggeredBy: domain.TriggerManualSingle,
	}
	if err := r.progress.SaveRefreshProgress(ctx, progress); err != nil {
		return nil, err
	}
	if err := r.Run(ctx, progress); err != nil {
		return progress, err
	}
	return progress, nil
}

// runType resumes the newest unfinished job of the given type, or
// starts a fresh one.
func (r *Refresher) runType(ctx context.Context, t domain.RefreshType, by domain.TriggerSource) (*domain.RefreshProgress, error) {
	progress, err := r.progress.FindResumableRefresh(ctx, t)
	if errors.Is(err, domain.ErrNotFound) {
		progress = &domain.RefreshProgress{
			ID:          uuid.NewString(),
			Type:        t,
			Status:      domain.JobPending,
			CreatedAt:   r.now(),
			TriggeredBy: by,
		}
		if err := r.progress.SaveRefreshProgress(ctx, progress); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		logger.Info("Resuming %s job %s: %d/%d titles done",
			progress.Type, progress.ID, progress.ProcessedTitles, progress.TotalTitles)
	}

	if err := r.Run(ctx, progress); err != nil {
		return progress, err
	}
	return progress, nil
}

// Run executes a progress row to completion or until the context ends.
// Per-title failures are recorded and never abort the job.
func (r *Refresher) Run(ctx context.Context, progress *domain.RefreshProgress) error {
	registryTitles, err := r.registry.ListTitles(ctx)
	if err != nil {
		progress.LastError = err.Error()
		_ = r.progress.SaveRefreshProgress(ctx, progress)
		return fmt.Errorf("list titles: %w", err)
	}

	byNumber := make(map[int]domain.RegistryTitle, len(registryTitles))
	for _, rt := range registryTitles {
		byNumber[rt.Number] = rt
	}

	targets := r.targetNumbers(progress, registryTitles)
	progress.TotalTitles = len(targets)
	progress.Status = domain.JobInProgress
	if progress.StartedAt == nil {
		started := r.now()
		progress.StartedAt = &started
	}
	if err := r.progress.SaveRefreshProgress(ctx, progress); err != nil {
		return err
	}

	if r.search != nil {
		if err := r.search.EnsureIndex(ctx); err != nil {
			logger.Warn("Ensure search index: %v", err)
		}
	}

	for _, number := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if progress.IsProcessed(number) {
			continue
		}
		if prior := progress.FailureFor(number); prior != nil && !prior.ShouldRetry(r.now()) {
			logger.Debug("Title %d failed recently; retry not due yet", number)
			continue
		}

		reg, known := byNumber[number]
		if !known {
			reg = domain.RegistryTitle{Number: number}
		}

		progress.CurrentTitle = number
		pause := titleSleep
		if err := r.processTitle(ctx, progress, reg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Title %d failed: %v", number, err)
			progress.RecordFailure(number, reg.Name, err, r.now())
			progress.LastError = err.Error()
			pause = failureSleep
		} else {
			progress.MarkProcessed(number)
		}

		if err := r.progress.SaveRefreshProgress(ctx, progress); err != nil {
			return err
		}
		if err := r.sleep(ctx, pause); err != nil {
			return err
		}
	}

	if progress.Complete() {
		progress.Status = domain.JobCompleted
		completed := r.now()
		progress.CompletedAt = &completed
		logger.Info("%s job %s completed: %d titles", progress.Type, progress.ID, progress.ProcessedTitles)
	}
	return r.progress.SaveRefreshProgress(ctx, progress)
}

// targetNumbers determines which titles the job covers, ascending.
func (r *Refresher) targetNumbers(progress *domain.RefreshProgress, registry []domain.RegistryTitle) []int {
	if progress.Type == domain.RefreshSingleTitle {
		return progress.TitlesOrder
	}

	var numbers []int
	for _, rt := range registry {
		if rt.Reserved {
			continue
		}
		numbers = append(numbers, rt.Number)
	}
	sort.Ints(numbers)
	progress.TitlesOrder = numbers
	return numbers
}

// processTitle downloads, parses and persists one title.
func (r *Refresher) processTitle(ctx context.Context, progress *domain.RefreshProgress, reg domain.RegistryTitle) error {
	number := reg.Number

	stored, err := r.titles.GetTitle(ctx, number)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load stored title: %w", err)
	}

	if progress.Type != domain.RefreshSingleTitle && stored != nil {
		if skipUnchanged(stored, reg) {
			logger.Info("Title %d unchanged upstream; skipping", number)
			return nil
		}
	}

	logger.Info("Downloading title %d", number)
	xmlBytes, err := r.downloader.DownloadTitle(ctx, number)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	sum := sha256.Sum256(xmlBytes)
	checksum := hex.EncodeToString(sum[:])

	comp := compressXML(xmlBytes)
	title := r.buildTitle(reg, stored, checksum, comp)

	result, parseErr := parser.Parse(xmlBytes, number)
	if parseErr != nil {
		logger.Error("Parse title %d: %v; persisting title with no documents", number, parseErr)
		result = &parser.Result{}
	}
	if result.AmendmentDate != nil {
		title.LatestAmendedOn = result.AmendmentDate
	}

	if err := r.titles.UpsertTitle(ctx, title); err != nil {
		return fmt.Errorf("persist title: %w", err)
	}

	if err := r.applySpills(ctx, number, result); err != nil {
		return fmt.Errorf("spill content: %w", err)
	}

	modified := r.now()
	for i := range result.Documents {
		result.Documents[i].LastModified = modified
	}

	if _, err := r.documents.DeleteByTitle(ctx, number); err != nil {
		return fmt.Errorf("delete old documents: %w", err)
	}
	if r.search != nil {
		if err := r.search.DeleteByTitle(ctx, number); err != nil {
			logger.Warn("Delete title %d from search index: %v", number, err)
		}
	}

	inserted, failed := 0, 0
	for start := 0; start < len(result.Documents); start += documentBatchSize {
		end := start + documentBatchSize
		if end > len(result.Documents) {
			end = len(result.Documents)
		}
		batch := result.Documents[start:end]

		res, err := r.documents.InsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert documents: %w", err)
		}
		inserted += res.Inserted
		failed += res.Failed

		r.indexBatch(ctx, batch)
	}

	logger.Info("Title %d: %d documents stored, %d failed", number, inserted, failed)
	return nil
}

// skipUnchanged implements change detection: skip iff the upstream
// issue date is at or before the stored download time. A missing
// upstream date never skips.
func skipUnchanged(stored *domain.Title, reg domain.RegistryTitle) bool {
	if stored.LastDownloaded == nil || reg.LatestIssueDate == "" {
		return false
	}
	issued, err := time.Parse("2006-01-02", reg.LatestIssueDate)
	if err != nil {
		return false
	}
	return !issued.After(*stored.LastDownloaded)
}

// compressed carries gzip output, falling back to raw bytes when the
// input is too large or compression fails.
type compressed struct {
	data []byte
	gzip bool
}

func compressXML(xmlBytes []byte) compressed {
	if len(xmlBytes) > rawSizeLimit {
		logger.Warn("XML is %d bytes; storing uncompressed", len(xmlBytes))
		return compressed{data: xmlBytes}
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(xmlBytes); err != nil {
		_ = gz.Close()
		logger.Warn("Compress XML: %v; storing uncompressed", err)
		return compressed{data: xmlBytes}
	}
	if err := gz.Close(); err != nil {
		logger.Warn("Compress XML: %v; storing uncompressed", err)
		return compressed{data: xmlBytes}
	}
	return compressed{data: buf.Bytes(), gzip: true}
}

// buildTitle assembles the Title record, embedding the XML only when it
// fits the record limit.
func (r *Refresher) buildTitle(reg domain.RegistryTitle, stored *domain.Title, checksum string, c compressed) *domain.Title {
	title := &domain.Title{
		Number:   reg.Number,
		Name:     reg.Name,
		Reserved: reg.Reserved,
		Checksum: checksum,
	}
	if stored != nil {
		title.LastAnalyzed = stored.LastAnalyzed
		if title.Name == "" {
			title.Name = stored.Name
		}
	}

	if t := parseRegistryDate(reg.LatestAmendedOn); t != nil {
		title.LatestAmendedOn = t
	}
	if t := parseRegistryDate(reg.LatestIssueDate); t != nil {
		title.LatestIssueDate = t
	}
	if t := parseRegistryDate(reg.UpToDateAsOf); t != nil {
		title.UpToDateAsOf = t
	}

	downloaded := r.now()
	title.LastDownloaded = &downloaded

	if len(c.data) > titleEmbedLimit {
		title.IsOversized = true
		return title
	}
	title.XMLContent = c.data
	return title
}

func parseRegistryDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// applySpills uploads each spilled field and records its blob id on the
// owning document.
func (r *Refresher) applySpills(ctx context.Context, number int, result *parser.Result) error {
	for _, spill := range result.Spills {
		doc := &result.Documents[spill.DocIndex]
		filename := fmt.Sprintf("title%d-%s-%s", number, doc.Identifier, spill.Field)

		id, err := r.blobs.Upload(ctx, filename, bytes.NewReader(spill.Data))
		if err != nil {
			return fmt.Errorf("upload %s for %s: %w", spill.Field, doc.Identifier, err)
		}

		switch spill.Field {
		case parser.SpillContent:
			doc.ContentGridFS = id
		case parser.SpillFormattedContent:
			doc.FormattedContentGridFS = id
		case parser.SpillStructuredContent:
			doc.StructuredContentGridFS = id
		}
	}
	return nil
}

// indexBatch projects a batch to the search shape and indexes it.
// Index failures are logged, never fatal to the refresh.
func (r *Refresher) indexBatch(ctx context.Context, docs []domain.Document) {
	if r.search == nil || len(docs) == 0 {
		return
	}

	projected := make([]domain.SearchDocument, 0, len(docs))
	for i := range docs {
		projected = append(projected, domain.NewSearchDocument(&docs[i]))
	}

	res, err := r.search.BulkIndex(ctx, projected)
	if err != nil {
		logger.Warn("Bulk index %d documents: %v", len(projected), err)
		return
	}
	if res.Failed > 0 {
		logger.Warn("Bulk index: %d of %d documents failed", res.Failed, len(projected))
	}
}

// sleepCtx waits for the duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

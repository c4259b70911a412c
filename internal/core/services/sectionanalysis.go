package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure SectionAnalysisWorker implements the interface.
var _ Worker = (*SectionAnalysisWorker)(nil)

const (
	// sectionContentLimit is how much section text goes into a prompt.
	sectionContentLimit = 2000

	// fallbackScore is stored when a score reply cannot be parsed.
	fallbackScore = 50

	// analysisTemperature keeps score replies stable across runs.
	analysisTemperature = 0.3
)

// scorePattern extracts the first plausible 1-100 score from a reply
// that is not a bare integer.
var scorePattern = regexp.MustCompile(`\b([1-9][0-9]?|100)\b`)

// SectionAnalysisWorker runs three LLM prompts over every section
// document: a plain-English summary, an antiquated-language score and a
// business-burden score. Sections are processed in batches; the
// checkpoint between batches names the next unprocessed section id.
type SectionAnalysisWorker struct {
	base      workerBase
	documents driven.DocumentStore
	blobs     driven.BlobStore
	analyses  driven.SectionAnalysisStore
	llm       driven.LLMService
	prompts   driven.PromptStore

	batchSize int
	rpm       int
	maxTokens int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSectionAnalysisWorker creates the worker. llm must already be
// wrapped in the shared rate limiter.
func NewSectionAnalysisWorker(
	threads driven.ThreadStore,
	documents driven.DocumentStore,
	blobs driven.BlobStore,
	analyses driven.SectionAnalysisStore,
	llm driven.LLMService,
	prompts driven.PromptStore,
	batchSize int,
	rpm int,
	maxTokens int,
) *SectionAnalysisWorker {
	if batchSize < 1 {
		batchSize = 5
	}
	if rpm < 1 {
		rpm = 1
	}
	return &SectionAnalysisWorker{
		base:      workerBase{threads: threads, ttype: domain.ThreadSectionAnalysis},
		documents: documents,
		blobs:     blobs,
		analyses:  analyses,
		llm:       llm,
		prompts:   prompts,
		batchSize: batchSize,
		rpm:       rpm,
		maxTokens: maxTokens,
	}
}

// ThreadType identifies the worker.
func (w *SectionAnalysisWorker) ThreadType() domain.ThreadType {
	return domain.ThreadSectionAnalysis
}

// interBatchWait spreads batches across the rate budget.
func (w *SectionAnalysisWorker) interBatchWait() time.Duration {
	return time.Duration(60_000/w.rpm) * time.Millisecond
}

// Run streams section documents in ascending id order, resuming from
// the stored checkpoint unless restarted.
func (w *SectionAnalysisWorker) Run(ctx context.Context, restart bool) error {
	if w.sleep == nil {
		w.sleep = sleepCtx
	}

	thread, err := w.base.threads.GetThread(ctx, w.base.ttype)
	if err != nil {
		return err
	}

	fromID := ""
	processed := 0
	failed := 0
	if !restart && thread.Resume != nil {
		fromID = thread.Resume.LastSectionID
		processed = thread.Progress.Current
		failed = thread.Statistics.ItemsFailed
	}

	total, err := w.documents.CountSections(ctx)
	if err != nil {
		return fmt.Errorf("count sections: %w", err)
	}

	cursor, err := w.documents.StreamSections(ctx, fromID)
	if err != nil {
		return fmt.Errorf("stream sections: %w", err)
	}
	defer cursor.Close(ctx)

	// Buffer one past the batch so the checkpoint can name the first
	// section of the next batch.
	var pending []domain.Document
	for cursor.Next(ctx) {
		pending = append(pending, *cursor.Document())
		if len(pending) < w.batchSize+1 {
			continue
		}

		batch, next := pending[:w.batchSize], pending[w.batchSize]
		failed += w.processBatch(ctx, batch, restart)
		processed += len(batch)

		if err := w.checkpointBatch(ctx, processed, total, failed, next.ID); err != nil {
			return err
		}

		stop, err := w.base.stopRequested(ctx)
		if err != nil {
			return err
		}
		if stop {
			return domain.ErrStopRequested
		}
		if err := w.sleep(ctx, w.interBatchWait()); err != nil {
			return err
		}

		pending = []domain.Document{next}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate sections: %w", err)
	}

	if len(pending) > 0 {
		failed += w.processBatch(ctx, pending, restart)
		processed += len(pending)
		if err := w.checkpointBatch(ctx, processed, total, failed, ""); err != nil {
			return err
		}
	}
	return nil
}

// checkpointBatch records progress and the next unprocessed section
// id. processed and failed are cumulative for the run.
func (w *SectionAnalysisWorker) checkpointBatch(ctx context.Context, processed, total, failed int, nextID string) error {
	return w.base.checkpoint(ctx, func(t *domain.AnalysisThread) {
		t.Progress = domain.ThreadProgress{
			Current:    processed,
			Total:      total,
			Percentage: percentage(processed, total),
		}
		t.Statistics.ItemsProcessed = processed - failed
		t.Statistics.ItemsFailed = failed
		if nextID == "" {
			t.Resume = nil
			t.CurrentItem = ""
			return
		}
		t.Resume = &domain.ResumeData{LastSectionID: nextID}
		t.CurrentItem = nextID
	})
}

// processBatch analyzes a batch concurrently. Per-section failures are
// logged and counted, never fatal.
func (w *SectionAnalysisWorker) processBatch(ctx context.Context, batch []domain.Document, restart bool) int {
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	results := make([]error, len(batch))
	for i := range batch {
		doc := batch[i]
		idx := i
		g.Go(func() error {
			results[idx] = w.analyzeSection(gctx, &doc, restart)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		if err != nil && !errors.Is(err, errSkipped) {
			logger.Error("Section %s analysis failed: %v", batch[i].Identifier, err)
			failed++
		}
	}
	return failed
}

// errSkipped marks a section that needed no new analysis.
var errSkipped = errors.New("section skipped")

// analyzeSection runs the three prompts for one section and upserts
// the result.
func (w *SectionAnalysisWorker) analyzeSection(ctx context.Context, doc *domain.Document, restart bool) error {
	if !restart {
		exists, err := w.analyses.HasAnalysis(ctx, doc.ID, domain.CurrentAnalysisVersion)
		if err != nil {
			return err
		}
		if exists {
			return errSkipped
		}
	}

	content, err := w.sectionContent(ctx, doc)
	if err != nil {
		return err
	}
	if runes := []rune(content); len(runes) > sectionContentLimit {
		content = string(runes[:sectionContentLimit])
	}

	summary, err := w.generate(ctx, driven.PromptSummary, doc.Heading, content)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		logger.Warn("Empty summary for section %s; skipping", doc.Identifier)
		return domain.ErrEmptySummary
	}

	antiquatedReply, err := w.generate(ctx, driven.PromptAntiquated, doc.Heading, content)
	if err != nil {
		return fmt.Errorf("antiquated score: %w", err)
	}
	antiquatedScore, antiquatedExpl := parseScore(antiquatedReply)

	businessReply, err := w.generate(ctx, driven.PromptBusinessUnfriendly, doc.Heading, content)
	if err != nil {
		return fmt.Errorf("business score: %w", err)
	}
	businessScore, businessExpl := parseScore(businessReply)

	analysis := &domain.SectionAnalysis{
		DocumentID:              doc.ID,
		TitleNumber:             doc.TitleNumber,
		SectionIdentifier:       doc.Identifier,
		AnalysisDate:            time.Now(),
		AnalysisVersion:         domain.CurrentAnalysisVersion,
		Summary:                 summary,
		AntiquatedScore:         antiquatedScore,
		AntiquatedExplanation:   antiquatedExpl,
		BusinessUnfriendlyScore: businessScore,
		BusinessUnfriendlyExpl:  businessExpl,
		Metadata: domain.AnalysisMetadata{
			Model:       w.llm.ModelName(),
			Temperature: analysisTemperature,
		},
	}
	return w.analyses.UpsertSectionAnalysis(ctx, analysis)
}

// sectionContent loads the section text, following the blob reference
// when the inline value was spilled.
func (w *SectionAnalysisWorker) sectionContent(ctx context.Context, doc *domain.Document) (string, error) {
	if doc.Content == domain.SpillSentinel && doc.ContentGridFS != "" {
		data, err := w.blobs.Download(ctx, doc.ContentGridFS)
		if err != nil {
			return "", fmt.Errorf("download spilled content: %w", err)
		}
		return string(data), nil
	}
	return doc.Content, nil
}

// generate renders a prompt template and calls the LLM.
func (w *SectionAnalysisWorker) generate(ctx context.Context, name, heading, content string) (string, error) {
	template, err := w.prompts.Load(name)
	if err != nil {
		return "", err
	}
	prompt := strings.NewReplacer("{heading}", heading, "{content}", content).Replace(template)

	return w.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   w.maxTokens,
		Temperature: analysisTemperature,
	})
}

// parseScore extracts a 1-100 integer from a score reply. If the first
// line is a bare integer in range, the remainder becomes the
// explanation. Otherwise the first in-range number anywhere in the
// reply is used and the whole reply becomes the explanation. Failing
// both, the fallback score is stored with the raw reply.
func parseScore(reply string) (int, string) {
	trimmed := strings.TrimSpace(reply)
	firstLine, rest, _ := strings.Cut(trimmed, "\n")

	if n, err := strconv.Atoi(strings.TrimSpace(firstLine)); err == nil && n >= 1 && n <= 100 {
		return n, strings.TrimSpace(rest)
	}

	if m := scorePattern.FindString(trimmed); m != "" {
		n, _ := strconv.Atoi(m)
		return n, trimmed
	}

	return fallbackScore, trimmed
}

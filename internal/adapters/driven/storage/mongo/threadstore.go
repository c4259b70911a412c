package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure ThreadStore implements the interface.
var _ driven.ThreadStore = (*ThreadStore)(nil)

// ThreadStore is a MongoDB implementation of driven.ThreadStore.
type ThreadStore struct {
	col *mongo.Collection
}

// threadRecord mirrors domain.AnalysisThread but keeps resumeData raw
// so legacy checkpoint shapes can be decoded field by field.
type threadRecord struct {
	ID         string              `bson:"_id,omitempty"`
	ThreadType domain.ThreadType   `bson:"threadType"`
	Status     domain.ThreadStatus `bson:"status"`

	Progress    domain.ThreadProgress `bson:"progress"`
	CurrentItem string                `bson:"currentItem,omitempty"`

	LastStartTime     *time.Time `bson:"lastStartTime,omitempty"`
	LastStopTime      *time.Time `bson:"lastStopTime,omitempty"`
	LastCompletedTime *time.Time `bson:"lastCompletedTime,omitempty"`

	Error string `bson:"error,omitempty"`

	Statistics domain.ThreadStatistics `bson:"statistics"`

	Resume bson.Raw `bson:"resumeData,omitempty"`
}

// toDomain converts the record, decoding the checkpoint defensively.
func (r *threadRecord) toDomain() *domain.AnalysisThread {
	return &domain.AnalysisThread{
		ID:                r.ID,
		ThreadType:        r.ThreadType,
		Status:            r.Status,
		Progress:          r.Progress,
		CurrentItem:       r.CurrentItem,
		LastStartTime:     r.LastStartTime,
		LastStopTime:      r.LastStopTime,
		LastCompletedTime: r.LastCompletedTime,
		Error:             r.Error,
		Statistics:        r.Statistics,
		Resume:            decodeResume(r.ThreadType, r.Resume),
	}
}

// decodeResume tolerates the checkpoint shapes that have accumulated
// over time. Only a plain string lastSectionId holding a valid
// ObjectID hex is honoured; any other shape resets that field so the
// worker restarts from the beginning rather than resuming from
// garbage. Stored rows are never rewritten just because they decoded
// oddly.
func decodeResume(t domain.ThreadType, raw bson.Raw) *domain.ResumeData {
	if len(raw) == 0 {
		return nil
	}

	resume := &domain.ResumeData{}

	if v, err := raw.LookupErr("lastTitleIndex"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			idx := int(n)
			resume.LastTitleIndex = &idx
		}
	}
	if v, err := raw.LookupErr("lastSectionIndex"); err == nil {
		if n, ok := v.AsInt64OK(); ok {
			idx := int(n)
			resume.LastSectionIndex = &idx
		}
	}
	if v, err := raw.LookupErr("lastSectionId"); err == nil {
		if s, ok := v.StringValueOK(); !ok {
			logger.Warn("Thread %s has unrecognized lastSectionId shape (%s); ignoring checkpoint", t, v.Type)
		} else if _, err := primitive.ObjectIDFromHex(s); err != nil {
			logger.Warn("Thread %s has non-ObjectID lastSectionId %q; ignoring checkpoint", t, s)
		} else {
			resume.LastSectionID = s
		}
	}

	return resume
}

// GetThread retrieves the row for a worker kind, creating a stopped row
// if absent.
func (s *ThreadStore) GetThread(ctx context.Context, t domain.ThreadType) (*domain.AnalysisThread, error) {
	var rec threadRecord
	err := s.col.FindOne(ctx, bson.M{"threadType": t}).Decode(&rec)
	if err == nil {
		return rec.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get thread %s: %w", t, err)
	}

	thread := &domain.AnalysisThread{
		ID:         primitive.NewObjectID().Hex(),
		ThreadType: t,
		Status:     domain.ThreadStopped,
	}
	if err := s.SaveThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// SaveThread stores the full row.
func (s *ThreadStore) SaveThread(ctx context.Context, thread *domain.AnalysisThread) error {
	if thread.ID == "" {
		thread.ID = primitive.NewObjectID().Hex()
	}
	filter := bson.M{"threadType": thread.ThreadType}
	_, err := s.col.ReplaceOne(ctx, filter, thread, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save thread %s: %w", thread.ThreadType, err)
	}
	return nil
}

// SaveThreadCheckpoint updates only the fields a worker owns. Status
// and the lifecycle timestamps are never written here, so a
// pending_stop set between the worker's load and this save survives.
func (s *ThreadStore) SaveThreadCheckpoint(ctx context.Context, thread *domain.AnalysisThread) error {
	set := bson.M{
		"progress":    thread.Progress,
		"currentItem": thread.CurrentItem,
		"statistics":  thread.Statistics,
	}
	update := bson.M{"$set": set}
	if thread.Resume == nil {
		update["$unset"] = bson.M{"resumeData": ""}
	} else {
		set["resumeData"] = thread.Resume
	}

	res, err := s.col.UpdateOne(ctx, bson.M{"threadType": thread.ThreadType}, update)
	if err != nil {
		return fmt.Errorf("checkpoint thread %s: %w", thread.ThreadType, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListThreads returns all worker rows.
func (s *ThreadStore) ListThreads(ctx context.Context) ([]domain.AnalysisThread, error) {
	cursor, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "threadType", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer cursor.Close(ctx)

	var threads []domain.AnalysisThread
	for cursor.Next(ctx) {
		var rec threadRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode thread: %w", err)
		}
		threads = append(threads, *rec.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return threads, nil
}

// SetThreadStatus updates only the status field.
func (s *ThreadStore) SetThreadStatus(ctx context.Context, t domain.ThreadType, status domain.ThreadStatus) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"threadType": t},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("set thread %s status: %w", t, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// batchDegradeThreshold is the serialized batch size above which a bulk
// insert degrades to single-record inserts, leaving headroom below the
// server's 16 MB message limit.
const batchDegradeThreshold = 15 * 1024 * 1024

// DocumentStore is a MongoDB implementation of driven.DocumentStore.
type DocumentStore struct {
	col *mongo.Collection
}

// DeleteByTitle removes every document for a title number.
func (s *DocumentStore) DeleteByTitle(ctx context.Context, titleNumber int) (int, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"titleNumber": titleNumber})
	if err != nil {
		return 0, fmt.Errorf("delete documents for title %d: %w", titleNumber, err)
	}
	return int(res.DeletedCount), nil
}

// InsertBatch inserts documents with unordered continue-on-error
// semantics. When the serialized batch would approach the server
// message limit, it degrades to single-record inserts so one oversized
// record cannot sink its neighbours.
func (s *DocumentStore) InsertBatch(ctx context.Context, docs []domain.Document) (driven.BatchResult, error) {
	if len(docs) == 0 {
		return driven.BatchResult{}, nil
	}

	records := make([]any, 0, len(docs))
	totalSize := 0
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = primitive.NewObjectID().Hex()
		}
		raw, err := bson.Marshal(docs[i])
		if err != nil {
			return driven.BatchResult{}, fmt.Errorf("marshal document %s: %w", docs[i].Identifier, err)
		}
		totalSize += len(raw)
		records = append(records, bson.Raw(raw))
	}

	if totalSize > batchDegradeThreshold {
		logger.Warn("Batch of %d documents is %d bytes; inserting individually", len(docs), totalSize)
		return s.insertSingles(ctx, records)
	}

	_, err := s.col.InsertMany(ctx, records, options.InsertMany().SetOrdered(false))
	if err == nil {
		return driven.BatchResult{Inserted: len(records)}, nil
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		failed := len(bulkErr.WriteErrors)
		for _, we := range bulkErr.WriteErrors {
			logger.Warn("Document insert failed: %s", we.Message)
		}
		return driven.BatchResult{Inserted: len(records) - failed, Failed: failed}, nil
	}

	return driven.BatchResult{Failed: len(records)}, fmt.Errorf("insert batch: %w", err)
}

// insertSingles inserts records one at a time, logging and skipping
// per-record failures.
func (s *DocumentStore) insertSingles(ctx context.Context, records []any) (driven.BatchResult, error) {
	var result driven.BatchResult
	for _, rec := range records {
		if _, err := s.col.InsertOne(ctx, rec); err != nil {
			logger.Warn("Document insert failed: %v", err)
			result.Failed++
			continue
		}
		result.Inserted++
	}
	return result, nil
}

// GetDocument retrieves a document by id.
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// GetTitleRoot returns the title-type document for a title number.
func (s *DocumentStore) GetTitleRoot(ctx context.Context, titleNumber int) (*domain.Document, error) {
	var doc domain.Document
	err := s.col.FindOne(ctx, bson.M{
		"titleNumber": titleNumber,
		"type":        domain.DocTypeTitle,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get title root %d: %w", titleNumber, err)
	}
	return &doc, nil
}

// DistinctTitleNumbers lists the distinct title numbers present,
// ascending.
func (s *DocumentStore) DistinctTitleNumbers(ctx context.Context) ([]int, error) {
	values, err := s.col.Distinct(ctx, "titleNumber", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct title numbers: %w", err)
	}

	numbers := make([]int, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case int32:
			numbers = append(numbers, int(n))
		case int64:
			numbers = append(numbers, int(n))
		case int:
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

// CountByTitle counts documents for a title number. A zero title number
// counts the whole collection.
func (s *DocumentStore) CountByTitle(ctx context.Context, titleNumber int) (int, error) {
	filter := bson.M{}
	if titleNumber > 0 {
		filter["titleNumber"] = titleNumber
	}
	count, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return int(count), nil
}

// CountSections counts section-type documents.
func (s *DocumentStore) CountSections(ctx context.Context) (int, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{"type": domain.DocTypeSection})
	if err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return int(count), nil
}

// StreamByTitle streams a title's documents in ascending id order.
func (s *DocumentStore) StreamByTitle(ctx context.Context, titleNumber int) (driven.DocumentCursor, error) {
	cur, err := s.col.Find(ctx,
		bson.M{"titleNumber": titleNumber},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("stream title %d: %w", titleNumber, err)
	}
	return &documentCursor{cur: cur}, nil
}

// StreamSections streams section documents in ascending id order,
// starting at fromID when non-empty (inclusive, so a stored checkpoint
// names the next unprocessed section).
func (s *DocumentStore) StreamSections(ctx context.Context, fromID string) (driven.DocumentCursor, error) {
	filter := bson.M{"type": domain.DocTypeSection}
	if fromID != "" {
		filter["_id"] = bson.M{"$gte": fromID}
	}
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("stream sections: %w", err)
	}
	return &documentCursor{cur: cur}, nil
}

// documentCursor adapts *mongo.Cursor to driven.DocumentCursor.
type documentCursor struct {
	cur     *mongo.Cursor
	current domain.Document
	err     error
}

func (c *documentCursor) Next(ctx context.Context) bool {
	if !c.cur.Next(ctx) {
		c.err = c.cur.Err()
		return false
	}
	if err := c.cur.Decode(&c.current); err != nil {
		c.err = err
		return false
	}
	return true
}

func (c *documentCursor) Document() *domain.Document {
	return &c.current
}

func (c *documentCursor) Err() error {
	return c.err
}

func (c *documentCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

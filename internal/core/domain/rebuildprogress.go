package domain

import "time"

// RebuildOperation records the outcome of one step of an index rebuild.
type RebuildOperation struct {
	Completed bool   `bson:"completed"`
	Error     string `bson:"error,omitempty"`
}

// RebuildOperations is the three-step sub-progress of a rebuild.
type RebuildOperations struct {
	DeleteIndex    RebuildOperation `bson:"deleteIndex"`
	CreateIndex    RebuildOperation `bson:"createIndex"`
	IndexDocuments RebuildOperation `bson:"indexDocuments"`
}

// IndexRebuildProgress tracks one search index rebuild. It mirrors
// RefreshProgress but counts documents rather than titles.
type IndexRebuildProgress struct {
	ID     string    `bson:"_id,omitempty"`
	Status JobStatus `bson:"status"`

	TotalDocuments     int `bson:"totalDocuments"`
	ProcessedDocuments int `bson:"processedDocuments"`
	IndexedDocuments   int `bson:"indexedDocuments"`
	FailedDocuments    int `bson:"failedDocuments"`

	CurrentTitle int `bson:"currentTitle,omitempty"`

	Operations RebuildOperations `bson:"operations"`

	StartTime *time.Time `bson:"startTime,omitempty"`
	EndTime   *time.Time `bson:"endTime,omitempty"`
	CreatedAt time.Time  `bson:"createdAt"`

	Error       string        `bson:"error,omitempty"`
	TriggeredBy TriggerSource `bson:"triggeredBy"`
}

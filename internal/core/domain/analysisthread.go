package domain

import "time"

// ThreadType identifies one of the four analytics workers.
type ThreadType string

// The four worker kinds.
const (
	ThreadTextMetrics     ThreadType = "text_metrics"
	ThreadAgeDistribution ThreadType = "age_distribution"
	ThreadVersionHistory  ThreadType = "version_history"
	ThreadSectionAnalysis ThreadType = "section_analysis"
)

// AllThreadTypes lists every worker kind in startup order.
var AllThreadTypes = []ThreadType{
	ThreadTextMetrics,
	ThreadAgeDistribution,
	ThreadVersionHistory,
	ThreadSectionAnalysis,
}

// Valid reports whether t names a known worker kind.
func (t ThreadType) Valid() bool {
	for _, known := range AllThreadTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ThreadStatus is the lifecycle state of a worker.
type ThreadStatus string

// Worker lifecycle states.
const (
	ThreadStopped        ThreadStatus = "stopped"
	ThreadPendingStart   ThreadStatus = "pending_start"
	ThreadRunning        ThreadStatus = "running"
	ThreadPendingStop    ThreadStatus = "pending_stop"
	ThreadPendingRestart ThreadStatus = "pending_restart"
	ThreadCompleted      ThreadStatus = "completed"
	ThreadFailed         ThreadStatus = "failed"
)

// ThreadProgress tracks how far a worker has advanced through its items.
type ThreadProgress struct {
	Current    int     `bson:"current"`
	Total      int     `bson:"total"`
	Percentage float64 `bson:"percentage"`
}

// ThreadStatistics accumulates per-run processing counters.
type ThreadStatistics struct {
	ItemsProcessed     int     `bson:"itemsProcessed"`
	ItemsFailed        int     `bson:"itemsFailed"`
	AverageTimePerItem float64 `bson:"averageTimePerItem"` // seconds
}

// ResumeData is a worker's checkpoint, sufficient to resume after a
// crash or restart without re-doing completed work.
//
// LastSectionID has historically been persisted in several shapes
// (string, nested object, binary). Store adapters decode defensively
// and clear the checkpoint when the shape is unrecognized; values are
// never canonicalized in place.
type ResumeData struct {
	LastTitleIndex   *int   `bson:"lastTitleIndex,omitempty"`
	LastSectionIndex *int   `bson:"lastSectionIndex,omitempty"`
	LastSectionID    string `bson:"lastSectionId,omitempty"`
}

// AnalysisThread is the persisted lifecycle row for one worker kind,
// unique on ThreadType. Written only by its own worker and the thread
// manager.
type AnalysisThread struct {
	ID         string       `bson:"_id,omitempty"`
	ThreadType ThreadType   `bson:"threadType"`
	Status     ThreadStatus `bson:"status"`

	Progress    ThreadProgress `bson:"progress"`
	CurrentItem string         `bson:"currentItem,omitempty"`

	LastStartTime     *time.Time `bson:"lastStartTime,omitempty"`
	LastStopTime      *time.Time `bson:"lastStopTime,omitempty"`
	LastCompletedTime *time.Time `bson:"lastCompletedTime,omitempty"`

	Error string `bson:"error,omitempty"`

	Statistics ThreadStatistics `bson:"statistics"`

	Resume *ResumeData `bson:"resumeData,omitempty"`
}

// StopRequested reports whether the worker should exit at its next
// checkpoint.
func (t *AnalysisThread) StopRequested() bool {
	return t.Status == ThreadPendingStop || t.Status == ThreadPendingRestart
}

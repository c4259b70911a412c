package domain

import "time"

// RefreshType identifies what kind of refresh job a progress row tracks.
type RefreshType string

// Refresh job kinds.
const (
	RefreshInitial     RefreshType = "initial"
	RefreshFull        RefreshType = "refresh"
	RefreshSingleTitle RefreshType = "single_title"
)

// JobStatus is the lifecycle state of a refresh or rebuild job.
type JobStatus string

// Job lifecycle states.
const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// TriggerSource records what initiated a job.
type TriggerSource string

// Trigger sources.
const (
	TriggerScheduled    TriggerSource = "scheduled"
	TriggerManual       TriggerSource = "manual"
	TriggerManualSingle TriggerSource = "manual_single"
)

// FailedTitle records one title that could not be processed in a
// refresh. Failures are per-item and never abort the job.
type FailedTitle struct {
	Number   int       `bson:"number"`
	Name     string    `bson:"name,omitempty"`
	Error    string    `bson:"error"`
	FailedAt time.Time `bson:"failedAt"`
}

// RetryDelay is how long a failed title waits before it becomes
// eligible for retry.
const RetryDelay = 30 * time.Minute

// ShouldRetry reports whether enough time has passed to retry the title.
func (f FailedTitle) ShouldRetry(now time.Time) bool {
	return now.Sub(f.FailedAt) >= RetryDelay
}

// RefreshProgress tracks one refresh job across restarts. A resumed job
// skips the titles already in ProcessedTitleNumbers.
type RefreshProgress struct {
	ID     string      `bson:"_id,omitempty"`
	Type   RefreshType `bson:"type"`
	Status JobStatus   `bson:"status"`

	TotalTitles           int   `bson:"totalTitles"`
	ProcessedTitles       int   `bson:"processedTitles"`
	ProcessedTitleNumbers []int `bson:"processedTitleNumbers,omitempty"`

	FailedTitles []FailedTitle `bson:"failedTitles,omitempty"`

	CurrentTitle       int   `bson:"currentTitle,omitempty"`
	LastProcessedTitle int   `bson:"lastProcessedTitle,omitempty"`
	TitlesOrder        []int `bson:"titlesOrder,omitempty"`

	StartedAt   *time.Time `bson:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`

	LastError   string        `bson:"lastError,omitempty"`
	TriggeredBy TriggerSource `bson:"triggeredBy"`

	Metadata map[string]any `bson:"metadata,omitempty"`
}

// IsProcessed reports whether the title number is already done.
func (p *RefreshProgress) IsProcessed(number int) bool {
	for _, n := range p.ProcessedTitleNumbers {
		if n == number {
			return true
		}
	}
	return false
}

// MarkProcessed records a completed title. Idempotent.
func (p *RefreshProgress) MarkProcessed(number int) {
	if p.IsProcessed(number) {
		return
	}
	p.ProcessedTitleNumbers = append(p.ProcessedTitleNumbers, number)
	p.ProcessedTitles = len(p.ProcessedTitleNumbers)
	p.LastProcessedTitle = number
}

// RecordFailure appends or refreshes the failure entry for a title.
func (p *RefreshProgress) RecordFailure(number int, name string, err error, now time.Time) {
	entry := FailedTitle{Number: number, Name: name, Error: err.Error(), FailedAt: now}
	for i := range p.FailedTitles {
		if p.FailedTitles[i].Number == number {
			p.FailedTitles[i] = entry
			return
		}
	}
	p.FailedTitles = append(p.FailedTitles, entry)
}

// FailureFor returns the failure entry for a title, if any.
func (p *RefreshProgress) FailureFor(number int) *FailedTitle {
	for i := range p.FailedTitles {
		if p.FailedTitles[i].Number == number {
			return &p.FailedTitles[i]
		}
	}
	return nil
}

// Complete reports whether every title has been processed. This is the
// sole transition to JobCompleted.
func (p *RefreshProgress) Complete() bool {
	return p.TotalTitles > 0 && p.ProcessedTitles == p.TotalTitles
}

package domain

import "time"

// CurrentAnalysisVersion tags SectionAnalysis rows produced by the
// current prompt set. Bumping it causes every section to be re-analyzed.
const CurrentAnalysisVersion = "1.0"

// AnalysisMetadata records which model produced an analysis.
type AnalysisMetadata struct {
	Model       string  `bson:"model"`
	Temperature float64 `bson:"temperature"`
}

// SectionAnalysis holds the LLM-generated scores for one section
// document. Unique on DocumentID.
type SectionAnalysis struct {
	ID                string    `bson:"_id,omitempty"`
	DocumentID        string    `bson:"documentId"`
	TitleNumber       int       `bson:"titleNumber"`
	SectionIdentifier string    `bson:"sectionIdentifier"`
	AnalysisDate      time.Time `bson:"analysisDate"`
	AnalysisVersion   string    `bson:"analysisVersion"`

	Summary string `bson:"summary"`

	// Scores are integers in [1,100]; higher is worse.
	AntiquatedScore         int    `bson:"antiquatedScore"`
	BusinessUnfriendlyScore int    `bson:"businessUnfriendlyScore"`
	AntiquatedExplanation   string `bson:"antiquatedExplanation,omitempty"`
	BusinessUnfriendlyExpl  string `bson:"businessUnfriendlyExplanation,omitempty"`

	Metadata AnalysisMetadata `bson:"metadata"`
}

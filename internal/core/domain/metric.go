package domain

import "time"

// AgeDistribution is a fixed five-bucket histogram of regulation
// version ages.
type AgeDistribution struct {
	Under1Year       int `bson:"under1Year" json:"under1Year"`
	OneToFiveYears   int `bson:"oneToFiveYears" json:"oneToFiveYears"`
	FiveToTenYears   int `bson:"fiveToTenYears" json:"fiveToTenYears"`
	TenToTwentyYears int `bson:"tenToTwentyYears" json:"tenToTwentyYears"`
	OverTwentyYears  int `bson:"overTwentyYears" json:"overTwentyYears"`
}

// Total returns the number of versions counted across all buckets.
func (a AgeDistribution) Total() int {
	return a.Under1Year + a.OneToFiveYears + a.FiveToTenYears +
		a.TenToTwentyYears + a.OverTwentyYears
}

// Add increments the bucket matching the given age.
func (a *AgeDistribution) Add(age time.Duration) {
	const year = 365 * 24 * time.Hour
	switch {
	case age < year:
		a.Under1Year++
	case age < 5*year:
		a.OneToFiveYears++
	case age < 10*year:
		a.FiveToTenYears++
	case age < 20*year:
		a.TenToTwentyYears++
	default:
		a.OverTwentyYears++
	}
}

// MetricValues holds the computed analytics for one title.
type MetricValues struct {
	WordCount             int              `bson:"wordCount,omitempty"`
	ComplexityScore       int              `bson:"complexityScore,omitempty"`
	ReadabilityScore      int              `bson:"readabilityScore,omitempty"`
	AverageSentenceLength int              `bson:"averageSentenceLength,omitempty"`
	KeywordFrequency      map[string]int   `bson:"keywordFrequency,omitempty"`
	RegulationAgeDist     *AgeDistribution `bson:"regulationAgeDistribution,omitempty"`
}

// Metric is one analytics snapshot for a title.
//
// Text metrics are append-only: every run creates a new Metric row so
// word-count history is preserved. The age-distribution worker instead
// updates the same-day Metric in place. The asymmetry is intentional.
type Metric struct {
	ID           string       `bson:"_id,omitempty"`
	TitleNumber  int          `bson:"titleNumber"`
	AnalysisDate time.Time    `bson:"analysisDate"`
	Metrics      MetricValues `bson:"metrics"`
}

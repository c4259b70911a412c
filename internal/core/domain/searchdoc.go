package domain

import "time"

// SearchDocument is the thin projection of a Document that goes into
// the search index: hierarchy coordinates, heading, content and dates
// only. Structured content and blob references never leave the store.
type SearchDocument struct {
	ID          string `json:"-"`
	TitleNumber int    `json:"titleNumber"`
	Type        string `json:"type"`
	Identifier  string `json:"identifier"`

	Subtitle     string `json:"subtitle,omitempty"`
	Chapter      string `json:"chapter,omitempty"`
	Subchapter   string `json:"subchapter,omitempty"`
	Part         string `json:"part,omitempty"`
	Subpart      string `json:"subpart,omitempty"`
	SubjectGroup string `json:"subjectGroup,omitempty"`
	Section      string `json:"section,omitempty"`

	Heading string `json:"heading,omitempty"`
	Content string `json:"content,omitempty"`

	WordCount     int        `json:"wordCount"`
	CitationCount int        `json:"citationCount"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
	AmendmentDate *time.Time `json:"amendmentDate,omitempty"`
	LastModified  time.Time  `json:"lastModified"`
}

// NewSearchDocument projects a Document to its search shape. Spilled
// content is excluded; the sentinel never reaches the index.
func NewSearchDocument(d *Document) SearchDocument {
	content := d.Content
	if content == SpillSentinel {
		content = ""
	}
	return SearchDocument{
		ID:            d.ID,
		TitleNumber:   d.TitleNumber,
		Type:          string(d.Type),
		Identifier:    d.Identifier,
		Subtitle:      d.Hierarchy.Subtitle,
		Chapter:       d.Hierarchy.Chapter,
		Subchapter:    d.Hierarchy.Subchapter,
		Part:          d.Hierarchy.Part,
		Subpart:       d.Hierarchy.Subpart,
		SubjectGroup:  d.Hierarchy.SubjectGroup,
		Section:       d.Hierarchy.Section,
		Heading:       d.Heading,
		Content:       content,
		WordCount:     d.WordCount(),
		CitationCount: len(d.Citations),
		EffectiveDate: d.EffectiveDate,
		AmendmentDate: d.AmendmentDate,
		LastModified:  d.LastModified,
	}
}

package domain

import "time"

// DocumentType identifies the level of a node in the CFR hierarchy.
type DocumentType string

// Document types, in hierarchy order.
const (
	DocTypeTitle        DocumentType = "title"
	DocTypeSubtitle     DocumentType = "subtitle"
	DocTypeChapter      DocumentType = "chapter"
	DocTypeSubchapter   DocumentType = "subchapter"
	DocTypePart         DocumentType = "part"
	DocTypeSubpart      DocumentType = "subpart"
	DocTypeSubjectGroup DocumentType = "subjectgroup"
	DocTypeSection      DocumentType = "section"
	DocTypeAppendix     DocumentType = "appendix"
)

// SpillSentinel replaces an inline content field when the value has
// been moved to the blob store. The paired *GridFS field holds the id.
const SpillSentinel = "[content stored in GridFS]"

// Hierarchy holds the accumulated coordinates of a document's ancestors.
// Each field is the "N" attribute of the matching ancestor div.
type Hierarchy struct {
	Subtitle     string `bson:"subtitle,omitempty"`
	Chapter      string `bson:"chapter,omitempty"`
	Subchapter   string `bson:"subchapter,omitempty"`
	Part         string `bson:"part,omitempty"`
	Subpart      string `bson:"subpart,omitempty"`
	SubjectGroup string `bson:"subjectGroup,omitempty"`
	Section      string `bson:"section,omitempty"`
}

// Citation is a source citation extracted from a CITA element.
type Citation struct {
	Text string `bson:"text"`
	Type string `bson:"type,omitempty"`
}

// EditorialNote is an explanatory note extracted from an EDNOTE element.
type EditorialNote struct {
	Heading string `bson:"heading,omitempty"`
	Content string `bson:"content"`
}

// Image is a graphic reference extracted from an IMG element.
type Image struct {
	Src string `bson:"src"`
	Alt string `bson:"alt,omitempty"`

	// PDFLink is synthesised from Src for .gif graphics by swapping the
	// extension and inserting /pdfs/ under /graphics/.
	PDFLink string `bson:"pdfLink,omitempty"`
}

// Table is a table extracted from the XML, kept both as the raw node
// tree and as flattened text.
type Table struct {
	Raw  map[string]any `bson:"raw,omitempty"`
	Text string         `bson:"text,omitempty"`
}

// StructuredContent is the typed breakdown of a document's body.
type StructuredContent struct {
	Paragraphs      []string `bson:"paragraphs,omitempty"`
	Tables          []Table  `bson:"tables,omitempty"`
	Extracts        []string `bson:"extracts,omitempty"`
	TableOfContents []string `bson:"tableOfContents,omitempty"`
}

// IsEmpty reports whether no structured content was extracted.
func (s *StructuredContent) IsEmpty() bool {
	return s == nil ||
		(len(s.Paragraphs) == 0 && len(s.Tables) == 0 &&
			len(s.Extracts) == 0 && len(s.TableOfContents) == 0)
}

// Document is one node of the CFR hierarchy parsed from a title's XML.
//
// Invariants: (TitleNumber, Identifier) is unique across the collection,
// and for each content field exactly one of the inline value or the
// paired GridFS id is authoritative.
type Document struct {
	// ID is the store-assigned id (ObjectID hex). Empty before insert.
	ID string `bson:"_id,omitempty"`

	TitleNumber int          `bson:"titleNumber"`
	Type        DocumentType `bson:"type"`

	// Identifier is the node's locally unique identifier, e.g. "100.1"
	// for a section or "IV" for a chapter.
	Identifier string `bson:"identifier"`

	Hierarchy Hierarchy `bson:"hierarchy"`

	Heading   string `bson:"heading,omitempty"`
	Authority string `bson:"authority,omitempty"`
	Source    string `bson:"source,omitempty"`

	// Content is the plain-text body, or SpillSentinel when spilled.
	Content string `bson:"content,omitempty"`

	// FormattedContent is the body with a restricted inline-HTML tag
	// set, or SpillSentinel when spilled.
	FormattedContent string `bson:"formattedContent,omitempty"`

	// Structured is the typed content breakdown; nil when spilled.
	Structured *StructuredContent `bson:"structuredContent,omitempty"`

	// Blob ids for spilled fields.
	ContentGridFS           string `bson:"contentGridFS,omitempty"`
	FormattedContentGridFS  string `bson:"formattedContentGridFS,omitempty"`
	StructuredContentGridFS string `bson:"structuredContentGridFS,omitempty"`

	Citations      []Citation      `bson:"citations,omitempty"`
	EditorialNotes []EditorialNote `bson:"editorialNotes,omitempty"`
	Images         []Image         `bson:"images,omitempty"`

	EffectiveDate *time.Time `bson:"effectiveDate,omitempty"`
	AmendmentDate *time.Time `bson:"amendmentDate,omitempty"`
	LastModified  time.Time  `bson:"lastModified"`
}

// WordCount returns a rough count of whitespace-separated words in the
// inline content. Used only for search projection, not metrics.
func (d *Document) WordCount() int {
	if d.Content == "" || d.Content == SpillSentinel {
		return 0
	}
	count := 0
	inWord := false
	for _, r := range d.Content {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			inWord = false
		case !inWord:
			inWord = true
			count++
		}
	}
	return count
}

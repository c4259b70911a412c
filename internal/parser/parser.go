package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// Spill thresholds. A record over DocumentSpillThreshold has each field
// over FieldSpillThreshold moved to the blob store so the persisted
// record fits the document store's per-record limit.
const (
	DocumentSpillThreshold = 10 * 1024 * 1024
	FieldSpillThreshold    = 1 * 1024 * 1024
)

// SpillField names a content field eligible for blob spillover.
type SpillField string

// Spillable fields.
const (
	SpillContent           SpillField = "content"
	SpillFormattedContent  SpillField = "formattedContent"
	SpillStructuredContent SpillField = "structuredContent"
)

// Spill is a request to move one oversized field of one parsed document
// into the blob store.
type Spill struct {
	// DocIndex is the position of the document in Result.Documents.
	DocIndex int
	Field    SpillField
	Data     []byte
}

// Result is the outcome of parsing one title's XML.
type Result struct {
	Documents     []domain.Document
	Spills        []Spill
	AmendmentDate *time.Time
}

// divPattern matches the nested division elements DIV1..DIV9.
var divPattern = regexp.MustCompile(`^div([1-9])$`)

// divTypes maps division level to document type.
var divTypes = map[int]domain.DocumentType{
	1: domain.DocTypeTitle,
	2: domain.DocTypeSubtitle,
	3: domain.DocTypeChapter,
	4: domain.DocTypeSubchapter,
	5: domain.DocTypePart,
	6: domain.DocTypeSubpart,
	7: domain.DocTypeSubjectGroup,
	8: domain.DocTypeSection,
	9: domain.DocTypeAppendix,
}

// Parse converts one title's raw XML into its document tree. The first
// document is always the title node; descendants follow depth-first.
func Parse(xmlBytes []byte, titleNumber int) (*Result, error) {
	tree, err := decodeTree(xmlBytes)
	if err != nil {
		return nil, err
	}

	browse, div1 := findTitleDiv(tree)
	if div1 == nil {
		return nil, fmt.Errorf("parse title %d: no div1 element found", titleNumber)
	}

	result := &Result{}
	if browse != nil {
		if amd := browse.Child("amddate"); amd != nil {
			result.AmendmentDate = ParseDate(amd.FlatText())
		}
	}

	walkDiv(result, div1, 1, titleNumber, domain.Hierarchy{})

	for i := range result.Documents {
		result.Documents[i].AmendmentDate = result.AmendmentDate
		applySpillPolicy(result, i)
	}

	return result, nil
}

// findTitleDiv locates the browse element and its div1 along the path
// dlpstextclass/text/body/ecfrbrws/div1. ecfrbrws can repeat; the one
// carrying a div1 wins. Falls back to the first div1 anywhere when the
// expected path is absent.
func findTitleDiv(tree *Node) (*Node, *Node) {
	cur := tree
	for _, name := range []string{"dlpstextclass", "text", "body"} {
		next := cur.Child(name)
		if next == nil {
			next = firstDescendant(cur, name)
		}
		if next == nil {
			cur = nil
			break
		}
		cur = next
	}

	if cur != nil {
		for _, browse := range cur.ChildrenNamed("ecfrbrws") {
			if div1 := browse.Child("div1"); div1 != nil {
				return browse, div1
			}
		}
	}

	if div1 := firstDescendant(tree, "div1"); div1 != nil {
		return nil, div1
	}
	return nil, nil
}

func firstDescendant(n *Node, name string) *Node {
	if nodes := n.Descendants(name); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// walkDiv emits one document for the division and recurses into nested
// divisions. Children inherit the accumulated hierarchy coordinates.
func walkDiv(result *Result, div *Node, level, titleNumber int, h domain.Hierarchy) {
	identifier := div.Attr("n")
	setCoordinate(&h, level, identifier)

	doc := buildDocument(div, level, titleNumber, identifier, h)
	result.Documents = append(result.Documents, doc)

	for _, child := range div.Children {
		m := divPattern.FindStringSubmatch(child.Name)
		if m == nil {
			continue
		}
		childLevel := int(m[1][0] - '0')
		if childLevel <= level {
			continue
		}
		walkDiv(result, child, childLevel, titleNumber, h)
	}
}

// setCoordinate records a division's N attribute in the matching
// hierarchy field. The title level and appendices carry no coordinate.
func setCoordinate(h *domain.Hierarchy, level int, n string) {
	switch level {
	case 2:
		h.Subtitle = n
	case 3:
		h.Chapter = n
	case 4:
		h.Subchapter = n
	case 5:
		h.Part = n
	case 6:
		h.Subpart = n
	case 7:
		h.SubjectGroup = n
	case 8:
		h.Section = n
	}
}

// buildDocument extracts every field of one division node.
func buildDocument(div *Node, level, titleNumber int, identifier string, h domain.Hierarchy) domain.Document {
	doc := domain.Document{
		TitleNumber: titleNumber,
		Type:        divTypes[level],
		Identifier:  identifier,
		Hierarchy:   h,
	}

	if head := div.Child("head"); head != nil {
		doc.Heading = head.FlatText()
	}
	if auth := firstOf(div, "auth"); auth != nil {
		doc.Authority = auth.FlatText()
	}
	if source := firstOf(div, "source"); source != nil {
		doc.Source = source.FlatText()
	}
	if eff := firstOf(div, "effdate"); eff != nil {
		doc.EffectiveDate = ParseDate(eff.FlatText())
	}

	for _, cita := range div.Descendants("cita") {
		doc.Citations = append(doc.Citations, domain.Citation{
			Text: cita.FlatText(),
			Type: cita.Attr("type"),
		})
	}

	for _, note := range div.Descendants("ednote") {
		entry := domain.EditorialNote{Content: note.FlatText()}
		if hed := note.Child("hed"); hed != nil {
			entry.Heading = hed.FlatText()
		}
		doc.EditorialNotes = append(doc.EditorialNotes, entry)
	}

	for _, img := range div.Descendants("img") {
		src := img.Attr("src")
		if src == "" {
			continue
		}
		doc.Images = append(doc.Images, domain.Image{
			Src:     src,
			Alt:     img.Attr("alt"),
			PDFLink: pdfLinkFor(src),
		})
	}

	doc.Structured = structuredContent(div)
	doc.Content = plainText(div)
	doc.FormattedContent = formattedText(div)

	return doc
}

func firstOf(n *Node, name string) *Node {
	if c := n.Child(name); c != nil {
		return c
	}
	return firstDescendant(n, name)
}

// pdfLinkFor synthesises the PDF counterpart of a .gif graphic by
// swapping the extension and inserting /pdfs/ under /graphics/.
func pdfLinkFor(src string) string {
	if !strings.HasSuffix(strings.ToLower(src), ".gif") {
		return ""
	}
	link := src[:len(src)-len(".gif")] + ".pdf"
	return strings.Replace(link, "/graphics/", "/graphics/pdfs/", 1)
}

// applySpillPolicy replaces oversized fields of one parsed document
// with spill requests and sentinels.
func applySpillPolicy(result *Result, i int) {
	doc := &result.Documents[i]

	structuredJSON := []byte(nil)
	if doc.Structured != nil {
		structuredJSON, _ = json.Marshal(doc.Structured)
	}

	approxSize := len(doc.Content) + len(doc.FormattedContent) + len(structuredJSON)
	if approxSize <= DocumentSpillThreshold {
		return
	}

	if len(doc.Content) > FieldSpillThreshold {
		result.Spills = append(result.Spills, Spill{
			DocIndex: i,
			Field:    SpillContent,
			Data:     []byte(doc.Content),
		})
		doc.Content = domain.SpillSentinel
	}
	if len(doc.FormattedContent) > FieldSpillThreshold {
		result.Spills = append(result.Spills, Spill{
			DocIndex: i,
			Field:    SpillFormattedContent,
			Data:     []byte(doc.FormattedContent),
		})
		doc.FormattedContent = domain.SpillSentinel
	}
	if len(structuredJSON) > FieldSpillThreshold {
		result.Spills = append(result.Spills, Spill{
			DocIndex: i,
			Field:    SpillStructuredContent,
			Data:     structuredJSON,
		})
		doc.Structured = nil
	}
}

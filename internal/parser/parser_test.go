package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
)

// wrapTitleXML builds a minimal valid title document around body markup.
func wrapTitleXML(inner string) []byte {
	return []byte(`<DLPSTEXTCLASS><TEXT><BODY><ECFRBRWS>` +
		`<AMDDATE>Jan. 5, 2017</AMDDATE>` + inner +
		`</ECFRBRWS></BODY></TEXT></DLPSTEXTCLASS>`)
}

func TestParseHierarchy(t *testing.T) {
	xml := wrapTitleXML(`
		<DIV1 N="1" TYPE="TITLE">
			<HEAD>Title 1 - General Provisions</HEAD>
			<DIV5 N="100" TYPE="PART">
				<HEAD>PART 100 - EXAMPLE</HEAD>
				<DIV8 N="100.1" TYPE="SECTION">
					<HEAD>&#xA7; 100.1 Purpose.</HEAD>
					<P>This part describes the purpose.</P>
				</DIV8>
			</DIV5>
		</DIV1>`)

	result, err := Parse(xml, 1)
	require.NoError(t, err)
	require.Len(t, result.Documents, 3)

	title := result.Documents[0]
	assert.Equal(t, domain.DocTypeTitle, title.Type)
	assert.Equal(t, "1", title.Identifier)
	assert.Equal(t, "Title 1 - General Provisions", title.Heading)
	assert.Empty(t, title.Hierarchy.Part)

	part := result.Documents[1]
	assert.Equal(t, domain.DocTypePart, part.Type)
	assert.Equal(t, "100", part.Identifier)
	assert.Equal(t, "100", part.Hierarchy.Part)
	assert.Empty(t, part.Hierarchy.Section)

	section := result.Documents[2]
	assert.Equal(t, domain.DocTypeSection, section.Type)
	assert.Equal(t, "100.1", section.Identifier)
	assert.Equal(t, "100", section.Hierarchy.Part)
	assert.Equal(t, "100.1", section.Hierarchy.Section)
	assert.Contains(t, section.Content, "This part describes the purpose.")
}

func TestParseAmendmentDate(t *testing.T) {
	xml := wrapTitleXML(`<DIV1 N="1" TYPE="TITLE"><HEAD>Title 1</HEAD></DIV1>`)

	result, err := Parse(xml, 1)
	require.NoError(t, err)
	require.NotNil(t, result.AmendmentDate)
	assert.Equal(t, 2017, result.AmendmentDate.Year())

	// Every emitted document carries the title amendment date.
	for _, doc := range result.Documents {
		assert.Equal(t, result.AmendmentDate, doc.AmendmentDate)
	}
}

func TestParseNoDiv1(t *testing.T) {
	_, err := Parse([]byte(`<DLPSTEXTCLASS><TEXT/></DLPSTEXTCLASS>`), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no div1")
}

func TestParseAuthoritySourceCitations(t *testing.T) {
	xml := wrapTitleXML(`
		<DIV1 N="2" TYPE="TITLE">
			<HEAD>Title 2</HEAD>
			<DIV5 N="5" TYPE="PART">
				<HEAD>PART 5</HEAD>
				<AUTH><HED>Authority:</HED><PSPACE>5 U.S.C. 301.</PSPACE></AUTH>
				<SOURCE><HED>Source:</HED><PSPACE>80 FR 1234.</PSPACE></SOURCE>
				<CITA TYPE="N">[80 FR 1234, Jan. 5, 2015]</CITA>
				<EDNOTE><HED>Editorial Note:</HED><PSPACE>See FR doc.</PSPACE></EDNOTE>
			</DIV5>
		</DIV1>`)

	result, err := Parse(xml, 2)
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)

	part := result.Documents[1]
	assert.Contains(t, part.Authority, "5 U.S.C. 301.")
	assert.Contains(t, part.Source, "80 FR 1234.")

	require.Len(t, part.Citations, 1)
	assert.Equal(t, "[80 FR 1234, Jan. 5, 2015]", part.Citations[0].Text)
	assert.Equal(t, "N", part.Citations[0].Type)

	require.Len(t, part.EditorialNotes, 1)
	assert.Equal(t, "Editorial Note:", part.EditorialNotes[0].Heading)
	assert.Contains(t, part.EditorialNotes[0].Content, "See FR doc.")
}

func TestParseImages(t *testing.T) {
	xml := wrapTitleXML(`
		<DIV1 N="7" TYPE="TITLE">
			<HEAD>Title 7</HEAD>
			<DIV8 N="7.1" TYPE="SECTION">
				<HEAD>Section</HEAD>
				<IMG SRC="/graphics/er01ja17.000.gif" ALT="formula"/>
				<IMG SRC="/graphics/photo.jpg"/>
			</DIV8>
		</DIV1>`)

	result, err := Parse(xml, 7)
	require.NoError(t, err)

	section := result.Documents[1]
	require.Len(t, section.Images, 2)

	gif := section.Images[0]
	assert.Equal(t, "/graphics/er01ja17.000.gif", gif.Src)
	assert.Equal(t, "formula", gif.Alt)
	assert.Equal(t, "/graphics/pdfs/er01ja17.000.pdf", gif.PDFLink)

	jpg := section.Images[1]
	assert.Empty(t, jpg.PDFLink)
}

func TestParseStructuredContent(t *testing.T) {
	xml := wrapTitleXML(`
		<DIV1 N="9" TYPE="TITLE">
			<HEAD>Title 9</HEAD>
			<DIV8 N="9.1" TYPE="SECTION">
				<HEAD>Section 9.1</HEAD>
				<P>First paragraph.</P>
				<FP-1>Flush paragraph.</FP-1>
				<EXTRACT><P>Quoted text.</P></EXTRACT>
				<TABLE><TR><TD>cell one</TD><TD>cell two</TD></TR></TABLE>
			</DIV8>
		</DIV1>`)

	result, err := Parse(xml, 9)
	require.NoError(t, err)

	section := result.Documents[1]
	require.NotNil(t, section.Structured)
	assert.Contains(t, section.Structured.Paragraphs, "First paragraph.")
	assert.Contains(t, section.Structured.Paragraphs, "Flush paragraph.")
	require.Len(t, section.Structured.Extracts, 1)
	assert.Equal(t, "Quoted text.", section.Structured.Extracts[0])
	require.Len(t, section.Structured.Tables, 1)
	assert.Contains(t, section.Structured.Tables[0].Text, "cell one")
	assert.Equal(t, "table", section.Structured.Tables[0].Raw["tag"])
}

func TestFormattedText(t *testing.T) {
	xml := wrapTitleXML(`
		<DIV1 N="4" TYPE="TITLE">
			<HEAD>Title 4</HEAD>
			<DIV8 N="4.1" TYPE="SECTION">
				<HEAD>Section</HEAD>
				<P>Text with <I>italics</I> and <E T="02">bold code</E> and <E T="04">caps</E> and <SU>8</SU>.</P>
			</DIV8>
		</DIV1>`)

	result, err := Parse(xml, 4)
	require.NoError(t, err)

	formatted := result.Documents[1].FormattedContent
	assert.Contains(t, formatted, "<i>italics</i>")
	assert.Contains(t, formatted, "<b>bold code</b>")
	assert.Contains(t, formatted, `<span class="small-caps">caps</span>`)
	assert.Contains(t, formatted, "<sup>8</sup>")
	assert.Contains(t, formatted, "<p>")
}

func TestSpillPolicy(t *testing.T) {
	// A section whose content alone exceeds the document threshold.
	big := strings.Repeat("regulatory filler text ", 500_000) // ~11.5 MB

	xml := wrapTitleXML(fmt.Sprintf(`
		<DIV1 N="6" TYPE="TITLE">
			<HEAD>Title 6</HEAD>
			<DIV8 N="6.1" TYPE="SECTION">
				<HEAD>Big section</HEAD>
				<P>%s</P>
			</DIV8>
		</DIV1>`, big))

	result, err := Parse(xml, 6)
	require.NoError(t, err)

	var sectionIdx int
	for i, d := range result.Documents {
		if d.Type == domain.DocTypeSection {
			sectionIdx = i
		}
	}

	section := result.Documents[sectionIdx]
	assert.Equal(t, domain.SpillSentinel, section.Content)

	var found bool
	for _, spill := range result.Spills {
		if spill.DocIndex == sectionIdx && spill.Field == SpillContent {
			found = true
			assert.Greater(t, len(spill.Data), FieldSpillThreshold)
		}
	}
	assert.True(t, found, "expected a content spill for the big section")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		year  int
		nil_  bool
	}{
		{"abbreviated month", "Jan. 5, 2017", 2017, false},
		{"full month", "January 5, 2017", 2017, false},
		{"iso", "2017-01-05", 2017, false},
		{"trailing annotation", "Jan. 5, 2017 (unless otherwise noted)", 2017, false},
		{"garbage", "not a date", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			if tt.nil_ {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.year, got.Year())
		})
	}
}

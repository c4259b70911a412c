package parser

import (
	"regexp"
	"strings"
	"time"
)

// trailingAnnotation strips a trailing parenthesised note, e.g.
// "Jan. 5, 2017 (unless otherwise noted)".
var trailingAnnotation = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// dateLayouts are the formats the eCFR corpus uses for dates.
var dateLayouts = []string{
	"Jan. 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"1/2/2006",
}

// ParseDate parses a CFR date string, stripping any trailing
// parenthesised annotation. Unparseable dates return nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(trailingAnnotation.ReplaceAllString(s, ""))
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

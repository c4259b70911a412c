package domain

import "time"

// Title is one top-level division of the CFR (numbered 1-50).
// Created on first successful download and mutated only by the refresher.
type Title struct {
	// Number is the unique title number (1-50).
	Number int `bson:"number"`

	// Name is the official title name from the upstream registry.
	Name string `bson:"name"`

	// LatestAmendedOn is the upstream latest amendment date.
	LatestAmendedOn *time.Time `bson:"latestAmendedOn,omitempty"`

	// LatestIssueDate is the upstream latest issue date, used for
	// change detection on refresh.
	LatestIssueDate *time.Time `bson:"latestIssueDate,omitempty"`

	// UpToDateAsOf is the upstream currency date.
	UpToDateAsOf *time.Time `bson:"upToDateAsOf,omitempty"`

	// Reserved marks a title that exists in the numbering but has no
	// content. Reserved titles are excluded from ingestion.
	Reserved bool `bson:"reserved"`

	// Checksum is the hex SHA-256 of the raw downloaded XML.
	Checksum string `bson:"checksum,omitempty"`

	// LastDownloaded is when the XML was last fetched successfully.
	LastDownloaded *time.Time `bson:"lastDownloaded,omitempty"`

	// LastAnalyzed is when analytics last ran over this title.
	LastAnalyzed *time.Time `bson:"lastAnalyzed,omitempty"`

	// XMLContent holds the gzip-compressed raw XML when it fits within
	// the store's record limit, nil otherwise.
	XMLContent []byte `bson:"xmlContent,omitempty"`

	// IsOversized is true when the compressed XML could not be embedded
	// and XMLContent is nil.
	IsOversized bool `bson:"isOversized"`
}

// RegistryTitle is one entry from the upstream title registry.
type RegistryTitle struct {
	Number          int    `json:"number"`
	Name            string `json:"name"`
	Reserved        bool   `json:"reserved"`
	LatestAmendedOn string `json:"latest_amended_on"`
	LatestIssueDate string `json:"latest_issue_date"`
	UpToDateAsOf    string `json:"up_to_date_as_of"`
}

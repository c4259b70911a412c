package domain

import "time"

// Version is one entry in a title's amendment timeline.
type Version struct {
	Date       *time.Time `bson:"date,omitempty"`
	Identifier string     `bson:"identifier"`
	Name       string     `bson:"name,omitempty"`
	Part       string     `bson:"part,omitempty"`
	Type       string     `bson:"type,omitempty"`
}

// VersionHistory is the amendment timeline for one title, unique on
// TitleNumber. Order follows the upstream versioner response.
type VersionHistory struct {
	ID          string    `bson:"_id,omitempty"`
	TitleNumber int       `bson:"titleNumber"`
	LastUpdated time.Time `bson:"lastUpdated"`
	Versions    []Version `bson:"versions"`
}

// ContentVersion is one entry from the upstream versioner API.
type ContentVersion struct {
	AmendmentDate string `json:"amendment_date"`
	IssueDate     string `json:"issue_date"`
	Identifier    string `json:"identifier"`
	Name          string `json:"name"`
	Part          string `json:"part"`
	Type          string `json:"type"`
	Removed       bool   `json:"removed"`
}

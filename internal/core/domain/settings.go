package domain

// SettingRegulatoryKeywords is the settings key holding the keyword
// list counted by the text metrics worker.
const SettingRegulatoryKeywords = "regulatory_keywords"

// Setting is one global key/value configuration row.
type Setting struct {
	ID          string `bson:"_id,omitempty"`
	Key         string `bson:"key"`
	Value       any    `bson:"value"`
	Description string `bson:"description,omitempty"`
}

// DefaultRegulatoryKeywords seeds the keyword list on first run.
var DefaultRegulatoryKeywords = []string{
	"shall",
	"must",
	"prohibited",
	"required",
	"compliance",
	"penalty",
	"violation",
	"enforcement",
	"exemption",
	"waiver",
}

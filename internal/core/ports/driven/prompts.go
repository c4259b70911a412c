package driven

// Prompt names used by the section analysis worker.
const (
	PromptSummary            = "summary"
	PromptAntiquated         = "antiquated"
	PromptBusinessUnfriendly = "business_unfriendly"
)

// PromptStore loads prompt templates by name. Templates use {heading}
// and {content} placeholders.
type PromptStore interface {
	// Load returns the template for a prompt name.
	Load(name string) (string, error)
}

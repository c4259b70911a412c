package env

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// Environment variables that override the embedded prompts. Values may
// contain literal \n sequences, which are un-escaped at load.
var promptEnvVars = map[string]string{
	driven.PromptSummary:            "ANALYSIS_PROMPT_SUMMARY",
	driven.PromptAntiquated:         "ANALYSIS_PROMPT_ANTIQUATED",
	driven.PromptBusinessUnfriendly: "ANALYSIS_PROMPT_BUSINESS_UNFRIENDLY",
}

// defaultPrompts contains embedded default prompts.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptSummary: `Summarize the following federal regulation section in one or two plain-English sentences.
Return ONLY the summary, nothing else.

Section: {heading}

{content}`,

	driven.PromptAntiquated: `Rate how antiquated or outdated the language of this federal regulation section is, on a scale of 1 (modern) to 100 (highly antiquated).
Respond with the number on the first line, followed by a brief explanation.

Section: {heading}

{content}`,

	driven.PromptBusinessUnfriendly: `Rate how burdensome this federal regulation section is for businesses to comply with, on a scale of 1 (minimal burden) to 100 (highly burdensome).
Respond with the number on the first line, followed by a brief explanation.

Section: {heading}

{content}`,
}

// PromptStore resolves prompt templates with precedence:
// prompts.toml file, then environment variable, then embedded default.
type PromptStore struct {
	mu       sync.Mutex
	filePath string
	cache    map[string]string
	fileData map[string]string
}

// NewPromptStore creates a prompt store. filePath may be empty, in
// which case only environment overrides and defaults apply.
func NewPromptStore(filePath string) *PromptStore {
	return &PromptStore{
		filePath: filePath,
		cache:    make(map[string]string),
	}
}

// Load returns the prompt template for the given name.
func (s *PromptStore) Load(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prompt, ok := s.cache[name]; ok {
		return prompt, nil
	}

	prompt, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload clears the cache, forcing fresh resolution on next Load.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]string)
	s.fileData = nil
}

// resolve picks the template source. Caller must hold the lock.
func (s *PromptStore) resolve(name string) (string, error) {
	if fromFile, ok := s.loadFile()[name]; ok && fromFile != "" {
		return strings.TrimSpace(fromFile), nil
	}

	if envVar, ok := promptEnvVars[name]; ok {
		if v := os.Getenv(envVar); v != "" {
			return unescape(v), nil
		}
	}

	if prompt, ok := defaultPrompts[name]; ok {
		return prompt, nil
	}
	return "", fmt.Errorf("unknown prompt %q", name)
}

// loadFile parses prompts.toml once per cache generation. A missing or
// unreadable file is treated as empty. Caller must hold the lock.
func (s *PromptStore) loadFile() map[string]string {
	if s.fileData != nil {
		return s.fileData
	}
	s.fileData = make(map[string]string)
	if s.filePath == "" {
		return s.fileData
	}
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return s.fileData
	}
	var parsed map[string]string
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return s.fileData
	}
	s.fileData = parsed
	return s.fileData
}

// unescape converts literal \n sequences to newlines.
func unescape(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

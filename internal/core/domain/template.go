package domain

import (
	"regexp"
	"sort"
	"time"
)

// PromptTemplate is the current authoritative form of a named prompt.
// The Template/Variables/Version fields always mirror the latest (or
// rolled-back-to) version's content.
type PromptTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Scenario    string    `json:"scenario"` // logical use-case key, e.g. "resume_parsing"
	Language    string    `json:"language"` // ISO code, default "en"
	Template    string    `json:"template"`
	Variables   []string  `json:"variables"`
	Version     int       `json:"version"`
	Provider    string    `json:"provider,omitempty"` // "" = generic, usable by any provider
	IsEncrypted bool      `json:"is_encrypted"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// ExtractVariables returns the distinct {name} placeholder names found in
// content. Duplicates collapse; the result is sorted for determinism.
func ExtractVariables(content string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		seen[m[1]] = struct{}{}
	}

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// HasPlaceholders reports whether content still contains {name} tokens.
func HasPlaceholders(content string) bool {
	return placeholderPattern.MatchString(content)
}

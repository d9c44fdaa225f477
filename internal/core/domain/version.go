package domain

import "time"

// PromptTemplateVersion is an immutable history record of a template's
// content at a given version. Only the IsActive flag changes after
// creation, during activation and rollback.
type PromptTemplateVersion struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Version    int       `json:"version"` // strictly increasing per template, starting at 1
	Content    string    `json:"content"`
	Variables  []string  `json:"variables"`
	Author     string    `json:"author"`
	Reason     string    `json:"reason,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// VersionDiff is the result of comparing two versions of a template.
type VersionDiff struct {
	VersionA    int      `json:"version_a"`
	VersionB    int      `json:"version_b"`
	Differences []string `json:"differences"`
}

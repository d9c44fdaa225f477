package domain

import "time"

// ABTest is an append-only record pairing two versions of a template for
// comparison. It has no lifecycle beyond creation and lookup.
type ABTest struct {
	TestID      string    `json:"test_id"`
	TemplateID  string    `json:"template_id"`
	VersionA    int       `json:"version_a"`
	VersionB    int       `json:"version_b"`
	TestName    string    `json:"test_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

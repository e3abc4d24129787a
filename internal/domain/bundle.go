package domain

import (
	"fmt"
	"time"
)

// BuildState represents the state of a context build for one cache key
type BuildState string

const (
	BuildStateBuilding BuildState = "building"
	BuildStateComplete BuildState = "complete"
	BuildStateFailed   BuildState = "failed"
)

// SelectedChunk is a chunk admitted into a context bundle, with provenance
// sufficient for later citation.
type SelectedChunk struct {
	DocumentID   string       `json:"document_id"`
	DocumentName string       `json:"document_name"`
	ChunkIndex   int          `json:"chunk_index"`
	Label        SectionLabel `json:"label"`
	Text         string       `json:"text"`
	TokenCount   int          `json:"token_count"`
	Pinned       bool         `json:"pinned,omitempty"`
}

// OverflowRecommendation is a human-auditable explanation produced when the
// candidate set exceeded the token ceiling: what was kept, what was cut, and
// a suggested swap when one exists.
type OverflowRecommendation struct {
	IncludedDocuments  []string `json:"included_documents"`
	TruncatedDocuments []string `json:"truncated_documents,omitempty"`
	ExcludedDocuments  []string `json:"excluded_documents"`
	TokensSaved        int      `json:"tokens_saved"`
	SuggestedSwap      string   `json:"suggested_swap,omitempty"`
	Summary            string   `json:"summary"`
}

// ContextBundle is the artifact of one successful assembly: the ordered
// selected chunks plus aggregate counts and the input-set fingerprint.
// At most one complete bundle exists per (project, category) key; it is
// replaced on rebuild, never versioned.
type ContextBundle struct {
	ProjectID      string                  `json:"project_id"`
	Category       DocumentCategory        `json:"category"`
	Chunks         []SelectedChunk         `json:"chunks"`
	Text           string                  `json:"text"`
	TokenCount     int                     `json:"token_count"`
	CharacterCount int                     `json:"character_count"`
	WordCount      int                     `json:"word_count"`
	DocumentCount  int                     `json:"document_count"`
	Overflowed     bool                    `json:"overflowed"`
	Recommendation *OverflowRecommendation `json:"recommendation,omitempty"`
	Fingerprint    string                  `json:"fingerprint"`
	BuiltAt        time.Time               `json:"built_at"`
}

// BuildStatus is the lightweight poll record for one (project, category) key.
type BuildStatus struct {
	ProjectID     string
	Category      DocumentCategory
	State         BuildState
	TokenCount    int
	DocumentCount int
	ErrorMessage  string
	Fingerprint   string
	BuiltAt       time.Time
	Stale         bool
}

// ValidBuildTransition reports whether a build state transition is allowed.
// Transitions are monotonic within one attempt: building resolves to complete
// or failed; any terminal state may start a fresh attempt.
func ValidBuildTransition(from, to BuildState) bool {
	switch from {
	case "":
		return to == BuildStateBuilding
	case BuildStateBuilding:
		return to == BuildStateComplete || to == BuildStateFailed
	case BuildStateComplete, BuildStateFailed:
		return to == BuildStateBuilding
	}
	return false
}

// ValidateBundle validates a ContextBundle instance
func ValidateBundle(b *ContextBundle) error {
	if b == nil {
		return fmt.Errorf("bundle cannot be nil")
	}

	if b.ProjectID == "" {
		return fmt.Errorf("bundle ProjectID is required")
	}

	if !IsValidDocumentCategory(b.Category) {
		return fmt.Errorf("bundle Category is invalid: %s", b.Category)
	}

	if b.Fingerprint == "" {
		return fmt.Errorf("bundle Fingerprint is required")
	}

	if b.TokenCount < 0 {
		return fmt.Errorf("bundle TokenCount cannot be negative")
	}

	return nil
}

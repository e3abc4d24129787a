package domain

// SectionLabel is a coarse semantic tag assigned to a chunk of extracted text.
type SectionLabel string

const (
	SectionExecutiveSummary SectionLabel = "executive_summary"
	SectionTechnical        SectionLabel = "technical"
	SectionManagement       SectionLabel = "management"
	SectionRequirements     SectionLabel = "requirements"
	SectionExperience       SectionLabel = "experience"
	SectionGeneral          SectionLabel = "general"
)

// Chunk represents a contiguous, labeled slice of a document's extracted text.
// Chunks are regenerated on every extraction pass, never mutated in place.
type Chunk struct {
	DocumentID string
	Index      int
	Label      SectionLabel
	Text       string
	TokenCount int
}

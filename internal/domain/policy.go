package domain

import (
	"fmt"
	"math"
)

// ModelCategory groups models by context window size class
type ModelCategory string

const (
	ModelCategorySmall  ModelCategory = "small"
	ModelCategoryMedium ModelCategory = "medium"
	ModelCategoryLarge  ModelCategory = "large"
)

// ScoringWeights holds the additive relevance bonuses and penalties.
// The relevance component is clamped to [0, RelevanceMax] after summing.
type ScoringWeights struct {
	Base            int `json:"base"`
	AgencyMatch     int `json:"agency_match"`
	TechnologyMatch int `json:"technology_match"`
	HealthySize     int `json:"healthy_size"`
	RecencyRecent   int `json:"recency_recent"`
	RecencyModerate int `json:"recency_moderate"`
	FinalArtifact   int `json:"final_artifact"`
	DraftPenalty    int `json:"draft_penalty"`
}

// SectionKeywords maps a set of trigger keywords to a section label.
// The table is ordered; the first label whose keywords match wins.
type SectionKeywords struct {
	Label    SectionLabel `json:"label"`
	Keywords []string     `json:"keywords"`
}

// AllocationPolicy is the read-only configuration for one build: the token
// budget split, per-model total budgets, the document-category priority
// ordering, scoring weights, and the section keyword table.
type AllocationPolicy struct {
	ContextPercent    float64               `json:"context_percent"`
	GenerationPercent float64               `json:"generation_percent"`
	SafetyPercent     float64               `json:"safety_percent"`
	ModelBudgets      map[ModelCategory]int `json:"model_budgets"`
	CategoryOrder     []DocumentCategory    `json:"category_order"`
	Weights           ScoringWeights        `json:"weights"`
	SectionBonuses    map[SectionLabel]int  `json:"section_bonuses"`
	KeywordTable      []SectionKeywords     `json:"keyword_table"`
	MaxCandidates     int                   `json:"max_candidates"`
	MaxChunkChars     int                   `json:"max_chunk_chars"`
}

// RelevanceMax bounds the relevance component of a composite score.
const RelevanceMax = 100

// DefaultAllocationPolicy returns the built-in policy used when no
// admin-tuned policy is stored for a model category.
func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{
		ContextPercent:    0.70,
		GenerationPercent: 0.20,
		SafetyPercent:     0.10,
		ModelBudgets: map[ModelCategory]int{
			ModelCategorySmall:  8192,
			ModelCategoryMedium: 32768,
			ModelCategoryLarge:  131072,
		},
		CategoryOrder: []DocumentCategory{
			DocumentCategorySolicitation,
			DocumentCategoryRequirements,
			DocumentCategoryReference,
			DocumentCategoryPastPerformance,
			DocumentCategoryProposal,
			DocumentCategoryCompliance,
			DocumentCategoryMedia,
		},
		Weights: ScoringWeights{
			Base:            50,
			AgencyMatch:     10,
			TechnologyMatch: 10,
			HealthySize:     10,
			RecencyRecent:   15,
			RecencyModerate: 8,
			FinalArtifact:   10,
			DraftPenalty:    15,
		},
		SectionBonuses: map[SectionLabel]int{
			SectionExecutiveSummary: 5,
			SectionRequirements:     5,
		},
		KeywordTable: []SectionKeywords{
			{Label: SectionExecutiveSummary, Keywords: []string{"executive", "summary", "overview"}},
			{Label: SectionRequirements, Keywords: []string{"requirement", "shall", "must", "compliance matrix"}},
			{Label: SectionTechnical, Keywords: []string{"technical", "architecture", "design", "implementation"}},
			{Label: SectionManagement, Keywords: []string{"management", "schedule", "staffing", "milestone"}},
			{Label: SectionExperience, Keywords: []string{"experience", "past performance", "qualification"}},
		},
		MaxCandidates: 10000,
		MaxChunkChars: 1600,
	}
}

// IsValidModelCategory checks if a ModelCategory is valid
func IsValidModelCategory(mc ModelCategory) bool {
	switch mc {
	case ModelCategorySmall, ModelCategoryMedium, ModelCategoryLarge:
		return true
	}
	return false
}

// CategoryRank returns the priority rank of a category under this policy;
// lower rank means higher priority. Unknown categories sort last.
func (p AllocationPolicy) CategoryRank(c DocumentCategory) int {
	for i, cat := range p.CategoryOrder {
		if cat == c {
			return i
		}
	}
	return len(p.CategoryOrder)
}

// TotalBudget returns the total model token budget for a model category.
func (p AllocationPolicy) TotalBudget(mc ModelCategory) (int, error) {
	budget, ok := p.ModelBudgets[mc]
	if !ok || budget <= 0 {
		return 0, NewDomainErrorWithCause(ErrCodeConfiguration,
			fmt.Sprintf("no token budget configured for model category %q", mc), nil)
	}
	return budget, nil
}

// ValidatePolicy validates an AllocationPolicy. A malformed policy is fatal
// for the build attempt that received it.
func ValidatePolicy(p AllocationPolicy) error {
	if p.ContextPercent <= 0 || p.ContextPercent >= 1 {
		return NewDomainError(ErrCodeConfiguration, "context percent must be in (0, 1)")
	}

	if p.GenerationPercent < 0 || p.SafetyPercent < 0 {
		return NewDomainError(ErrCodeConfiguration, "budget percentages cannot be negative")
	}

	sum := p.ContextPercent + p.GenerationPercent + p.SafetyPercent
	if math.Abs(sum-1.0) > 1e-6 {
		return NewDomainError(ErrCodeConfiguration,
			fmt.Sprintf("budget percentages must sum to 1.0, got %.4f", sum))
	}

	if len(p.ModelBudgets) == 0 {
		return NewDomainError(ErrCodeConfiguration, "at least one model budget is required")
	}
	for mc, budget := range p.ModelBudgets {
		if budget <= 0 {
			return NewDomainError(ErrCodeConfiguration,
				fmt.Sprintf("model budget for %q must be positive", mc))
		}
	}

	if len(p.CategoryOrder) == 0 {
		return NewDomainError(ErrCodeConfiguration, "category order is required")
	}
	seen := make(map[DocumentCategory]bool, len(p.CategoryOrder))
	for _, c := range p.CategoryOrder {
		if !IsValidDocumentCategory(c) {
			return NewDomainError(ErrCodeConfiguration,
				fmt.Sprintf("unknown category %q in category order", c))
		}
		if seen[c] {
			return NewDomainError(ErrCodeConfiguration,
				fmt.Sprintf("duplicate category %q in category order", c))
		}
		seen[c] = true
	}

	if p.MaxChunkChars < 0 || p.MaxCandidates < 0 {
		return NewDomainError(ErrCodeConfiguration, "limits cannot be negative")
	}

	return nil
}

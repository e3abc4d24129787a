package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/telemetry"
)

const draftSystemPrompt = `You are a proposal writer for government solicitations. ` +
	`Write the requested section using only the supplied context documents. ` +
	`Cite every factual claim with a marker of the form [cite:<document-id>#<chunk-index>] ` +
	`taken from the chunk headers in the context.`

// TextGenerator produces text from a system message and prompt, bounded by
// maxTokens when positive.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// ContextProviderInterface is the read surface the draft path needs.
type ContextProviderInterface interface {
	WaitForContext(ctx context.Context, projectID string, category domain.DocumentCategory, mc domain.ModelCategory) (*domain.ContextBundle, error)
	GetContext(ctx context.Context, projectID string, category domain.DocumentCategory, mc domain.ModelCategory, pins []string) (*ContextResult, error)
}

// DraftRequest asks for one generated proposal section.
type DraftRequest struct {
	ProjectID     string
	Category      domain.DocumentCategory
	Section       string
	Instructions  string
	ModelCategory domain.ModelCategory
	Pins          []string
}

// Draft is a generated section with resolved citations and the bundle
// metadata the caller needs to audit what the model saw.
type Draft struct {
	Section        string                         `json:"section"`
	Text           string                         `json:"text"`
	Citations      []Citation                     `json:"citations"`
	ContextTokens  int                            `json:"context_tokens"`
	Overflowed     bool                           `json:"overflowed"`
	Recommendation *domain.OverflowRecommendation `json:"recommendation,omitempty"`
	Fingerprint    string                         `json:"fingerprint"`
}

// DraftService generates proposal section drafts grounded in an assembled
// context bundle, with the generation output capped at the policy's
// generation share of the model budget.
type DraftService struct {
	contexts  ContextProviderInterface
	generator TextGenerator
	policies  PolicyProviderInterface
	resolver  *CitationResolver
}

// NewDraftService creates a new DraftService instance.
func NewDraftService(contexts ContextProviderInterface, generator TextGenerator, policies PolicyProviderInterface) *DraftService {
	return &DraftService{
		contexts:  contexts,
		generator: generator,
		policies:  policies,
		resolver:  NewCitationResolver(),
	}
}

// GenerateDraft assembles (or waits for) the context bundle for the request's
// cache key, prompts the generator with it, and resolves citation markers in
// the output against the bundle.
func (s *DraftService) GenerateDraft(ctx context.Context, req DraftRequest) (*Draft, error) {
	ctx, span := telemetry.StartSpan(ctx, "DraftService.GenerateDraft", telemetry.SpanAttributes{
		ProjectID: req.ProjectID,
		Category:  string(req.Category),
		Operation: "generate_draft",
	})
	defer span.End()

	if req.Section == "" {
		return nil, domain.ErrMissingRequiredField
	}

	mc := req.ModelCategory
	if mc == "" {
		mc = domain.ModelCategoryMedium
	}

	var bundle *domain.ContextBundle
	if len(req.Pins) > 0 {
		res, err := s.contexts.GetContext(ctx, req.ProjectID, req.Category, mc, req.Pins)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		bundle = res.Bundle
	} else {
		var err error
		bundle, err = s.contexts.WaitForContext(ctx, req.ProjectID, req.Category, mc)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	policy, err := s.policies.GetAllocationPolicy(ctx, mc)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	budget, err := policy.TotalBudget(mc)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	maxTokens := GenerationBudget(budget, policy)

	prompt := buildDraftPrompt(req, bundle)
	text, err := s.generator.GenerateText(ctx, draftSystemPrompt, prompt, maxTokens)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "draft generation failed", err)
	}

	resolved := s.resolver.Resolve(text, bundle)

	return &Draft{
		Section:        req.Section,
		Text:           resolved.Text,
		Citations:      resolved.Citations,
		ContextTokens:  bundle.TokenCount,
		Overflowed:     bundle.Overflowed,
		Recommendation: bundle.Recommendation,
		Fingerprint:    bundle.Fingerprint,
	}, nil
}

func buildDraftPrompt(req DraftRequest, bundle *domain.ContextBundle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Section to write: %s\n", req.Section)
	if req.Instructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", req.Instructions)
	}
	b.WriteString("\nContext documents:\n\n")

	// Re-emit chunks with machine-citable headers so the model can point
	// back at exact sources.
	for _, c := range bundle.Chunks {
		fmt.Fprintf(&b, "--- %s [cite:%s#%d] | %s ---\n%s\n\n",
			c.DocumentName, c.DocumentID, c.ChunkIndex, c.Label, c.Text)
	}

	return b.String()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/telemetry"
)

// ContextBuilderInterface is the build-side surface the read path needs:
// kicking off rebuilds, checking input freshness, and computing one-off
// bundles for pinned requests.
type ContextBuilderInterface interface {
	TriggerBuild(projectID string, category domain.DocumentCategory)
	CurrentFingerprint(ctx context.Context, projectID string, category domain.DocumentCategory) (string, error)
	ComputeBundle(ctx context.Context, projectID string, category domain.DocumentCategory, mc domain.ModelCategory, pins []string) (*domain.ContextBundle, error)
}

// ContextResult is what a context read returns: the bundle when one is
// servable, the key's build state, and a staleness warning when the served
// bundle predates the current document set.
type ContextResult struct {
	Bundle  *domain.ContextBundle
	State   domain.BuildState
	Stale   bool
	Warning string
}

// ContextService serves assembled context bundles. Reads never block on a
// build: a missing bundle reports building, a stale bundle is served
// immediately with a warning while a rebuild runs behind it, and a failed
// build still serves the previous complete bundle.
type ContextService struct {
	bundles  BundleRepositoryInterface
	builder  ContextBuilderInterface
	policies PolicyProviderInterface

	pollInterval time.Duration
}

// NewContextService creates a new ContextService instance.
func NewContextService(bundles BundleRepositoryInterface, builder ContextBuilderInterface, policies PolicyProviderInterface) *ContextService {
	return &ContextService{
		bundles:      bundles,
		builder:      builder,
		policies:     policies,
		pollInterval: 500 * time.Millisecond,
	}
}

// GetContext returns the context bundle for a key. Pinned requests bypass the
// shared cache and compute synchronously, since pins are caller-specific.
// For unpinned requests the cached bundle is served when its fingerprint
// matches the current document set and it fits the requested model's context
// ceiling; otherwise a rebuild is triggered and the best available bundle is
// served with Stale set.
func (s *ContextService) GetContext(
	ctx context.Context,
	projectID string,
	category domain.DocumentCategory,
	mc domain.ModelCategory,
	pins []string,
) (*ContextResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ContextService.GetContext", telemetry.SpanAttributes{
		ProjectID: projectID,
		Category:  string(category),
		Operation: "get_context",
	})
	defer span.End()

	if !domain.IsValidDocumentCategory(category) {
		return nil, domain.ErrInvalidDocumentCategory
	}
	if mc != "" && !domain.IsValidModelCategory(mc) {
		return nil, domain.ErrInvalidModelCategory
	}

	if len(pins) > 0 {
		bundle, err := s.builder.ComputeBundle(ctx, projectID, category, mc, pins)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return &ContextResult{Bundle: bundle, State: domain.BuildStateComplete}, nil
	}

	rec, err := s.bundles.Get(ctx, projectID, category)
	if err != nil {
		if errors.Is(err, domain.ErrBundleNotFound) {
			s.builder.TriggerBuild(projectID, category)
			return &ContextResult{State: domain.BuildStateBuilding}, nil
		}
		span.SetError(err)
		return nil, err
	}

	switch rec.State {
	case domain.BuildStateBuilding:
		if rec.Bundle == nil {
			return &ContextResult{State: domain.BuildStateBuilding}, nil
		}
		return &ContextResult{
			Bundle:  rec.Bundle,
			State:   domain.BuildStateBuilding,
			Stale:   true,
			Warning: "a rebuild is in progress; serving the previous bundle",
		}, nil

	case domain.BuildStateFailed:
		if rec.Bundle == nil {
			return nil, domain.NewDomainError(domain.ErrCodeInternalError,
				fmt.Sprintf("context build failed: %s", rec.ErrorMessage))
		}
		return &ContextResult{
			Bundle:  rec.Bundle,
			State:   domain.BuildStateFailed,
			Stale:   true,
			Warning: fmt.Sprintf("last rebuild failed (%s); serving the previous bundle", rec.ErrorMessage),
		}, nil
	}

	if rec.Bundle == nil {
		s.builder.TriggerBuild(projectID, category)
		return &ContextResult{State: domain.BuildStateBuilding}, nil
	}

	// A request for a tighter model budget than the cached bundle was built
	// against gets a synchronous recompute rather than an oversized bundle.
	if mc != "" {
		ceiling, err := s.contextCeiling(ctx, mc)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		if rec.Bundle.TokenCount > ceiling {
			bundle, err := s.builder.ComputeBundle(ctx, projectID, category, mc, nil)
			if err != nil {
				span.SetError(err)
				return nil, err
			}
			return &ContextResult{Bundle: bundle, State: domain.BuildStateComplete}, nil
		}
	}

	current, err := s.builder.CurrentFingerprint(ctx, projectID, category)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if current != rec.Bundle.Fingerprint {
		s.builder.TriggerBuild(projectID, category)
		return &ContextResult{
			Bundle:  rec.Bundle,
			State:   domain.BuildStateBuilding,
			Stale:   true,
			Warning: "documents changed since this bundle was built; a rebuild has been queued",
		}, nil
	}

	return &ContextResult{Bundle: rec.Bundle, State: domain.BuildStateComplete}, nil
}

// GetBuildStatus returns the lightweight poll record for a key, including
// live token counts from the most recent bundle and whether the document set
// has drifted since it was built.
func (s *ContextService) GetBuildStatus(ctx context.Context, projectID string, category domain.DocumentCategory) (*domain.BuildStatus, error) {
	if !domain.IsValidDocumentCategory(category) {
		return nil, domain.ErrInvalidDocumentCategory
	}

	rec, err := s.bundles.Get(ctx, projectID, category)
	if err != nil {
		return nil, err
	}

	status := &domain.BuildStatus{
		ProjectID:    projectID,
		Category:     category,
		State:        rec.State,
		ErrorMessage: rec.ErrorMessage,
	}
	if rec.Bundle != nil {
		status.TokenCount = rec.Bundle.TokenCount
		status.DocumentCount = rec.Bundle.DocumentCount
		status.Fingerprint = rec.Bundle.Fingerprint
		status.BuiltAt = rec.Bundle.BuiltAt

		current, err := s.builder.CurrentFingerprint(ctx, projectID, category)
		if err != nil {
			return nil, err
		}
		status.Stale = current != rec.Bundle.Fingerprint
	}

	return status, nil
}

// WaitForContext polls until the key has a fresh complete bundle or the
// context expires. Used by callers that need the bundle now and can afford
// to block, such as the draft generation path.
func (s *ContextService) WaitForContext(
	ctx context.Context,
	projectID string,
	category domain.DocumentCategory,
	mc domain.ModelCategory,
) (*domain.ContextBundle, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		res, err := s.GetContext(ctx, projectID, category, mc, nil)
		if err != nil {
			return nil, err
		}
		if res.State == domain.BuildStateComplete && !res.Stale && res.Bundle != nil {
			return res.Bundle, nil
		}

		select {
		case <-ctx.Done():
			if res.Bundle != nil {
				// Best effort under deadline pressure: the stale bundle.
				return res.Bundle, nil
			}
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeBuildTimeout,
				"timed out waiting for context build", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *ContextService) contextCeiling(ctx context.Context, mc domain.ModelCategory) (int, error) {
	policy, err := s.policies.GetAllocationPolicy(ctx, mc)
	if err != nil {
		return 0, err
	}
	budget, err := policy.TotalBudget(mc)
	if err != nil {
		return 0, err
	}
	return Allocate(budget, policy), nil
}

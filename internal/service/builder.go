package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/telemetry"
)

// DocumentListerInterface lists the documents under one cache key.
// Archived documents are included: they remain candidates, ranked below
// active ones, and their metadata participates in the fingerprint.
type DocumentListerInterface interface {
	ListByProjectCategory(ctx context.Context, projectID string, category domain.DocumentCategory) ([]*domain.Document, error)
}

// ProjectGetterInterface resolves the project whose metadata feeds scoring.
type ProjectGetterInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
}

// PolicyProviderInterface supplies the allocation policy for a model category.
type PolicyProviderInterface interface {
	GetAllocationPolicy(ctx context.Context, mc domain.ModelCategory) (domain.AllocationPolicy, error)
}

// DocumentExtractorInterface extracts plain text for one document.
type DocumentExtractorInterface interface {
	ExtractDocument(ctx context.Context, doc *domain.Document) (string, error)
}

// BundleRecord is the persisted cache record for one (project, category) key.
// A failed attempt keeps the previous complete bundle servable.
type BundleRecord struct {
	ProjectID    string
	Category     domain.DocumentCategory
	State        domain.BuildState
	Bundle       *domain.ContextBundle
	ErrorMessage string
	UpdatedAt    time.Time
}

// BundleRepositoryInterface persists cache records, one per key.
type BundleRepositoryInterface interface {
	Get(ctx context.Context, projectID string, category domain.DocumentCategory) (*BundleRecord, error)
	SetBuilding(ctx context.Context, projectID string, category domain.DocumentCategory) error
	SaveComplete(ctx context.Context, bundle *domain.ContextBundle) error
	SetFailed(ctx context.Context, projectID string, category domain.DocumentCategory, errMsg string) error
}

// BuildConfig controls build scheduling and limits.
type BuildConfig struct {
	Debounce      time.Duration
	BuildTimeout  time.Duration
	ModelCategory domain.ModelCategory
}

// DefaultBuildConfig returns the default build configuration.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Debounce:      2 * time.Second,
		BuildTimeout:  5 * time.Minute,
		ModelCategory: domain.ModelCategoryMedium,
	}
}

type buildKey struct {
	ProjectID string
	Category  domain.DocumentCategory
}

type keyState struct {
	building bool
	pending  bool
	timer    *time.Timer
}

// BuildService owns the context build lifecycle for every cache key: debounced
// triggers, one build in flight per key with at most one queued follow-up, a
// commit-time fingerprint check that discards stale results, and graceful
// degradation to the previous complete bundle on failure.
type BuildService struct {
	docs       DocumentListerInterface
	projects   ProjectGetterInterface
	policies   PolicyProviderInterface
	extraction DocumentExtractorInterface
	bundles    BundleRepositoryInterface
	estimator  TokenEstimator
	cfg        BuildConfig

	mu   sync.Mutex
	keys map[buildKey]*keyState
	wg   sync.WaitGroup
}

// NewBuildService creates a BuildService with default configuration.
func NewBuildService(
	docs DocumentListerInterface,
	projects ProjectGetterInterface,
	policies PolicyProviderInterface,
	extraction DocumentExtractorInterface,
	bundles BundleRepositoryInterface,
) *BuildService {
	return NewBuildServiceWithConfig(docs, projects, policies, extraction, bundles, DefaultTokenEstimator(), DefaultBuildConfig())
}

// NewBuildServiceWithConfig creates a BuildService with explicit configuration.
func NewBuildServiceWithConfig(
	docs DocumentListerInterface,
	projects ProjectGetterInterface,
	policies PolicyProviderInterface,
	extraction DocumentExtractorInterface,
	bundles BundleRepositoryInterface,
	estimator TokenEstimator,
	cfg BuildConfig,
) *BuildService {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultBuildConfig().Debounce
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultBuildConfig().BuildTimeout
	}
	if cfg.ModelCategory == "" {
		cfg.ModelCategory = DefaultBuildConfig().ModelCategory
	}
	if estimator == nil {
		estimator = DefaultTokenEstimator()
	}
	return &BuildService{
		docs:       docs,
		projects:   projects,
		policies:   policies,
		extraction: extraction,
		bundles:    bundles,
		estimator:  estimator,
		cfg:        cfg,
		keys:       make(map[buildKey]*keyState),
	}
}

// NotifyChange records a document mutation under a key and schedules a
// debounced rebuild, coalescing bursts of edits into one build.
func (s *BuildService) NotifyChange(projectID string, category domain.DocumentCategory) {
	key := buildKey{ProjectID: projectID, Category: category}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(key)
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.TriggerBuild(projectID, category)
	})
}

// TriggerBuild starts a background build for a key. If one is already in
// flight, a single follow-up rebuild is queued; further triggers coalesce
// into that one pending rebuild.
func (s *BuildService) TriggerBuild(projectID string, category domain.DocumentCategory) {
	key := buildKey{ProjectID: projectID, Category: category}

	s.mu.Lock()
	st := s.state(key)
	if st.building {
		st.pending = true
		s.mu.Unlock()
		return
	}
	st.building = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runBuild(key)
}

// Stop cancels pending debounce timers and waits for in-flight builds.
func (s *BuildService) Stop() {
	s.mu.Lock()
	for _, st := range s.keys {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// CurrentFingerprint computes the fingerprint of the key's current document
// set, used by readers to detect staleness.
func (s *BuildService) CurrentFingerprint(ctx context.Context, projectID string, category domain.DocumentCategory) (string, error) {
	docs, err := s.docs.ListByProjectCategory(ctx, projectID, category)
	if err != nil {
		return "", err
	}
	return DocumentSetFingerprint(docs), nil
}

// ComputeBundle runs the full assembly pipeline synchronously without
// touching the cache. Used for pinned requests, which bypass the shared
// cache record so caller-specific pins never pollute it.
func (s *BuildService) ComputeBundle(
	ctx context.Context,
	projectID string,
	category domain.DocumentCategory,
	mc domain.ModelCategory,
	pins []string,
) (*domain.ContextBundle, error) {
	policy, err := s.loadPolicy(ctx, mc)
	if err != nil {
		return nil, err
	}

	docs, err := s.docs.ListByProjectCategory(ctx, projectID, category)
	if err != nil {
		return nil, err
	}

	return s.assemble(ctx, projectID, category, docs, policy, mc, pins)
}

func (s *BuildService) state(key buildKey) *keyState {
	st, ok := s.keys[key]
	if !ok {
		st = &keyState{}
		s.keys[key] = st
	}
	return st
}

func (s *BuildService) runBuild(key buildKey) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BuildTimeout)
	defer cancel()

	if err := s.buildOnce(ctx, key); err != nil {
		log.Printf("build: key (%s, %s) failed: %v", key.ProjectID, key.Category, err)
	}

	s.mu.Lock()
	st := s.state(key)
	st.building = false
	pending := st.pending
	st.pending = false
	s.mu.Unlock()

	if pending {
		s.TriggerBuild(key.ProjectID, key.Category)
	}
}

// buildOnce executes one build attempt: fingerprint, extract, chunk, score,
// select, assemble, and commit. The commit is guarded by a fingerprint
// re-check so a result computed against a stale document set is discarded
// and a fresh build queued instead of overwriting newer state.
func (s *BuildService) buildOnce(ctx context.Context, key buildKey) error {
	ctx, span := telemetry.StartSpan(ctx, "BuildService.buildOnce", telemetry.SpanAttributes{
		ProjectID: key.ProjectID,
		Category:  string(key.Category),
		Operation: "build",
	})
	defer span.End()

	policy, err := s.loadPolicy(ctx, s.cfg.ModelCategory)
	if err != nil {
		// Malformed policy is fatal for this attempt, no retry.
		s.markFailed(key, err.Error())
		return err
	}

	docs, err := s.docs.ListByProjectCategory(ctx, key.ProjectID, key.Category)
	if err != nil {
		s.markFailed(key, err.Error())
		return err
	}
	fingerprint := DocumentSetFingerprint(docs)

	rec, err := s.bundles.Get(ctx, key.ProjectID, key.Category)
	if err != nil && !errors.Is(err, domain.ErrBundleNotFound) {
		s.markFailed(key, err.Error())
		return err
	}
	if rec != nil && rec.State == domain.BuildStateComplete && rec.Bundle != nil && rec.Bundle.Fingerprint == fingerprint {
		// Unchanged input set: the cached bundle stands, skip re-extraction.
		return nil
	}

	if err := s.bundles.SetBuilding(ctx, key.ProjectID, key.Category); err != nil {
		return err
	}

	bundle, err := s.assemble(ctx, key.ProjectID, key.Category, docs, policy, s.cfg.ModelCategory, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.NewDomainErrorWithCause(domain.ErrCodeBuildTimeout,
				"context build exceeded time limit", err)
		}
		span.SetError(err)
		s.markFailed(key, err.Error())
		return err
	}

	// Commit-time staleness check: the most recent document set wins, not
	// the last build to finish.
	fresh, err := s.docs.ListByProjectCategory(ctx, key.ProjectID, key.Category)
	if err != nil {
		s.markFailed(key, err.Error())
		return err
	}
	if DocumentSetFingerprint(fresh) != fingerprint {
		log.Printf("build: key (%s, %s) result stale at commit, queueing rebuild", key.ProjectID, key.Category)
		s.mu.Lock()
		s.state(key).pending = true
		s.mu.Unlock()
		return nil
	}

	if err := s.bundles.SaveComplete(ctx, bundle); err != nil {
		s.markFailed(key, err.Error())
		return err
	}

	log.Printf("build: key (%s, %s) complete: %d documents, %d tokens, overflowed=%t",
		key.ProjectID, key.Category, bundle.DocumentCount, bundle.TokenCount, bundle.Overflowed)
	return nil
}

// assemble runs the pure pipeline over an already-listed document set.
// Per-document extraction failures are recovered locally: the document is
// skipped and the build continues with the remaining documents.
func (s *BuildService) assemble(
	ctx context.Context,
	projectID string,
	category domain.DocumentCategory,
	docs []*domain.Document,
	policy domain.AllocationPolicy,
	mc domain.ModelCategory,
	pins []string,
) (*domain.ContextBundle, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if !errors.Is(err, domain.ErrProjectNotFound) {
			return nil, err
		}
		project = nil
	}

	budget, err := policy.TotalBudget(mc)
	if err != nil {
		return nil, err
	}
	ceiling := Allocate(budget, policy)

	now := time.Now().UTC()
	chunker := NewChunker(policy, s.estimator)
	scorer := NewScorer(policy, now)

	var candidates []ScoredCandidate
	for _, doc := range docs {
		text, err := s.extraction.ExtractDocument(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One bad document never fails the whole build.
			log.Printf("build: skipping unreadable document %s (%s): %v", doc.ID, doc.Name, err)
			continue
		}
		for _, chunk := range chunker.ChunkDocument(doc, text) {
			candidates = append(candidates, scorer.Score(project, doc, chunk))
		}
	}

	sel := NewSelector(policy).Select(candidates, ceiling, pins)

	fingerprint := DocumentSetFingerprint(docs)
	return NewAssembler().Assemble(projectID, category, sel, fingerprint, now), nil
}

func (s *BuildService) loadPolicy(ctx context.Context, mc domain.ModelCategory) (domain.AllocationPolicy, error) {
	policy, err := s.policies.GetAllocationPolicy(ctx, mc)
	if err != nil {
		return domain.AllocationPolicy{}, err
	}
	if err := domain.ValidatePolicy(policy); err != nil {
		return domain.AllocationPolicy{}, err
	}
	return policy, nil
}

func (s *BuildService) markFailed(key buildKey, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.bundles.SetFailed(ctx, key.ProjectID, key.Category, msg); err != nil {
		log.Printf("build: failed to record failure for key (%s, %s): %v", key.ProjectID, key.Category, err)
	}
}

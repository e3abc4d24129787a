package service

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/propelgov/propelai/internal/domain"
)

// categoryWeight spaces category priority bands wider than the bounded
// relevance range, so a higher-priority category always outranks relevance.
const categoryWeight = 1000

// Healthy size band: not near-empty, not excessively large.
const (
	healthySizeMin = 1 << 10 // 1 KiB
	healthySizeMax = 5 << 20 // 5 MiB
)

// Recency tiers for the relevance bonus.
const (
	recencyRecentWindow   = 30 * 24 * time.Hour
	recencyModerateWindow = 90 * 24 * time.Hour
)

var (
	finalMarkers = []string{"final", "approved", "signed", "submitted"}
	draftMarkers = []string{"draft", "temp", "tmp", "wip", "backup", "old"}
)

// ScoredCandidate is a (document, chunk) pair annotated with its composite
// score and token cost. Transient: it exists only during one assembly run.
type ScoredCandidate struct {
	Document   *domain.Document
	Chunk      domain.Chunk
	StatusRank int
	Relevance  int
	Composite  int
	Pinned     bool
}

// Scorer computes composite scores from an allocation policy. The policy is
// an immutable per-call value, never ambient state.
type Scorer struct {
	policy domain.AllocationPolicy
	now    time.Time
}

// NewScorer creates a Scorer for one assembly run.
func NewScorer(policy domain.AllocationPolicy, now time.Time) *Scorer {
	return &Scorer{policy: policy, now: now}
}

// Score computes the composite score for one chunk of one document.
// The composite is category priority plus bounded relevance plus section
// bonus; document status is carried separately as a lexicographic rank so
// active documents are never starved by category or relevance alone.
func (s *Scorer) Score(project *domain.Project, doc *domain.Document, chunk domain.Chunk) ScoredCandidate {
	relevance := s.relevance(project, doc)

	rank := s.policy.CategoryRank(doc.Category)
	priority := (len(s.policy.CategoryOrder) - rank) * categoryWeight

	composite := priority + relevance + s.policy.SectionBonuses[chunk.Label]

	statusRank := 0
	if doc.Status == domain.DocumentStatusArchived {
		statusRank = 1
	}

	return ScoredCandidate{
		Document:   doc,
		Chunk:      chunk,
		StatusRank: statusRank,
		Relevance:  relevance,
		Composite:  composite,
	}
}

// relevance computes the additive relevance component, clamped to
// [0, RelevanceMax]. A document with no metadata gets the base score only.
func (s *Scorer) relevance(project *domain.Project, doc *domain.Document) int {
	w := s.policy.Weights
	score := w.Base

	if project != nil {
		if project.Agency != "" && doc.Agency != "" && strings.EqualFold(project.Agency, doc.Agency) {
			score += w.AgencyMatch
		}
		if keywordOverlap(project.Technologies, doc.Technologies) || keywordOverlap(project.Technologies, doc.Keywords) {
			score += w.TechnologyMatch
		}
	}

	if doc.SizeBytes >= healthySizeMin && doc.SizeBytes <= healthySizeMax {
		score += w.HealthySize
	}

	age := s.now.Sub(doc.UpdatedAt)
	switch {
	case age >= 0 && age < recencyRecentWindow:
		score += w.RecencyRecent
	case age >= 0 && age < recencyModerateWindow:
		score += w.RecencyModerate
	}

	name := strings.ToLower(path.Base(doc.Name))
	if containsAnyMarker(name, finalMarkers) {
		score += w.FinalArtifact
	}
	if containsAnyMarker(name, draftMarkers) {
		score -= w.DraftPenalty
	}

	if score < 0 {
		return 0
	}
	if score > domain.RelevanceMax {
		return domain.RelevanceMax
	}
	return score
}

func keywordOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	for _, v := range b {
		if set[strings.ToLower(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

func containsAnyMarker(name string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// sortCandidates orders candidates deterministically: active before archived,
// then composite score descending, then document creation time ascending
// (older, more authoritative first), then chunk ordinal, then document id.
// Identical inputs always produce identical order.
func sortCandidates(candidates []ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.StatusRank != b.StatusRank {
			return a.StatusRank < b.StatusRank
		}
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if !a.Document.CreatedAt.Equal(b.Document.CreatedAt) {
			return a.Document.CreatedAt.Before(b.Document.CreatedAt)
		}
		if a.Chunk.Index != b.Chunk.Index {
			return a.Chunk.Index < b.Chunk.Index
		}
		return a.Document.ID < b.Document.ID
	})
}

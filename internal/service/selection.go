package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/propelgov/propelai/internal/domain"
)

// ExclusionReason explains why a candidate was not admitted.
type ExclusionReason string

const (
	// ExcludedByBudget marks candidates dropped solely because the token
	// ceiling was reached. Only this reason sets Overflowed.
	ExcludedByBudget ExclusionReason = "budget"
	// ExcludedEmpty marks candidates with no usable text.
	ExcludedEmpty ExclusionReason = "empty"
	// ExcludedCandidateLimit marks candidates past the safety limit.
	ExcludedCandidateLimit ExclusionReason = "candidate_limit"
)

// ExcludedCandidate is a candidate that did not make it into the selection.
type ExcludedCandidate struct {
	Candidate ScoredCandidate
	Reason    ExclusionReason
}

// Selection is the result of one overflow-resolution pass.
type Selection struct {
	Selected       []ScoredCandidate
	Excluded       []ExcludedCandidate
	TokensUsed     int
	Ceiling        int
	Overflowed     bool
	Recommendation *domain.OverflowRecommendation
}

// Allocate computes the context token ceiling from a total model budget and
// the policy's context share. The remainder is reserved for generation and
// the safety buffer.
func Allocate(totalModelBudget int, policy domain.AllocationPolicy) int {
	if totalModelBudget <= 0 {
		return 0
	}
	return int(math.Floor(float64(totalModelBudget) * policy.ContextPercent))
}

// GenerationBudget computes the token share reserved for generation output.
func GenerationBudget(totalModelBudget int, policy domain.AllocationPolicy) int {
	if totalModelBudget <= 0 {
		return 0
	}
	return int(math.Floor(float64(totalModelBudget) * policy.GenerationPercent))
}

// Selector resolves overflow: it picks a maximal-value candidate subset under
// a token ceiling using a greedy, priority-ordered pass. Determinism and
// explainability are required; knapsack optimality is not.
type Selector struct {
	maxCandidates int
}

// NewSelector creates a Selector with the policy's candidate safety limit.
func NewSelector(policy domain.AllocationPolicy) *Selector {
	limit := policy.MaxCandidates
	if limit <= 0 {
		limit = domain.DefaultAllocationPolicy().MaxCandidates
	}
	return &Selector{maxCandidates: limit}
}

// Select admits candidates under the ceiling. Pinned documents (pins, ordered
// oldest pin first) bypass scoring and are admitted before the greedy pass;
// when pins alone exceed the ceiling, the least-recently-pinned content is
// truncated first. The greedy pass walks the score-sorted remainder and keeps
// scanning past misses so smaller candidates can still fill the budget.
// Raising the ceiling never decreases TokensUsed, but the fill can reshape
// membership: a larger ceiling may admit a bigger candidate in score order
// that leaves no room for a smaller one admitted at the lower ceiling.
// Given identical inputs the output is byte-identical on every invocation.
func (s *Selector) Select(candidates []ScoredCandidate, ceiling int, pins []string) Selection {
	sel := Selection{Ceiling: ceiling}
	if ceiling < 0 {
		ceiling = 0
	}

	pinRank := make(map[string]int, len(pins))
	for i, id := range pins {
		pinRank[id] = i
	}

	var pinned, scored []ScoredCandidate
	for _, c := range candidates {
		if _, ok := pinRank[c.Document.ID]; ok {
			c.Pinned = true
			pinned = append(pinned, c)
		} else {
			scored = append(scored, c)
		}
	}

	// Most recently pinned documents are admitted first, so truncation
	// under pressure drops the least-recently-pinned content.
	sort.SliceStable(pinned, func(i, j int) bool {
		a, b := pinned[i], pinned[j]
		if pinRank[a.Document.ID] != pinRank[b.Document.ID] {
			return pinRank[a.Document.ID] > pinRank[b.Document.ID]
		}
		return a.Chunk.Index < b.Chunk.Index
	})
	sortCandidates(scored)

	processed := 0
	admit := func(c ScoredCandidate) {
		if strings.TrimSpace(c.Chunk.Text) == "" {
			sel.Excluded = append(sel.Excluded, ExcludedCandidate{Candidate: c, Reason: ExcludedEmpty})
			return
		}
		if sel.TokensUsed+c.Chunk.TokenCount > ceiling {
			sel.Excluded = append(sel.Excluded, ExcludedCandidate{Candidate: c, Reason: ExcludedByBudget})
			return
		}
		sel.Selected = append(sel.Selected, c)
		sel.TokensUsed += c.Chunk.TokenCount
	}

	for _, c := range pinned {
		admit(c)
		processed++
	}

	for _, c := range scored {
		if processed >= s.maxCandidates {
			sel.Excluded = append(sel.Excluded, ExcludedCandidate{Candidate: c, Reason: ExcludedCandidateLimit})
			continue
		}
		admit(c)
		processed++
	}

	for _, e := range sel.Excluded {
		if e.Reason == ExcludedByBudget {
			sel.Overflowed = true
			break
		}
	}

	if sel.Overflowed {
		sel.Recommendation = buildRecommendation(&sel)
	}

	return sel
}

// buildRecommendation summarizes, per document, what was fully included,
// truncated, or excluded, how many tokens exclusion saved, and a suggested
// swap when a large low-scoring document crowds out smaller higher-relevance
// ones. Second-pass heuristic, not an exhaustive search.
func buildRecommendation(sel *Selection) *domain.OverflowRecommendation {
	type docTally struct {
		name           string
		selectedTokens int
		excludedTokens int
		minComposite   int
		maxRelevance   int
	}

	tallies := make(map[string]*docTally)
	var order []string
	tally := func(c ScoredCandidate) *docTally {
		t, ok := tallies[c.Document.ID]
		if !ok {
			t = &docTally{name: c.Document.Name, minComposite: c.Composite, maxRelevance: c.Relevance}
			tallies[c.Document.ID] = t
			order = append(order, c.Document.ID)
		}
		if c.Composite < t.minComposite {
			t.minComposite = c.Composite
		}
		if c.Relevance > t.maxRelevance {
			t.maxRelevance = c.Relevance
		}
		return t
	}

	for _, c := range sel.Selected {
		tally(c).selectedTokens += c.Chunk.TokenCount
	}
	for _, e := range sel.Excluded {
		if e.Reason != ExcludedByBudget {
			continue
		}
		tally(e.Candidate).excludedTokens += e.Candidate.Chunk.TokenCount
	}

	rec := &domain.OverflowRecommendation{}
	for _, id := range order {
		t := tallies[id]
		switch {
		case t.excludedTokens == 0:
			rec.IncludedDocuments = append(rec.IncludedDocuments, t.name)
		case t.selectedTokens == 0:
			rec.ExcludedDocuments = append(rec.ExcludedDocuments, t.name)
			rec.TokensSaved += t.excludedTokens
		default:
			rec.TruncatedDocuments = append(rec.TruncatedDocuments, t.name)
			rec.TokensSaved += t.excludedTokens
		}
	}

	// Swap heuristic: if the lowest-scoring fully-included document is large
	// enough to hold several excluded documents of higher relevance, suggest
	// trading it for them.
	var swapOutID string
	for _, id := range order {
		t := tallies[id]
		if t.excludedTokens > 0 || t.selectedTokens == 0 {
			continue
		}
		if swapOutID == "" || t.minComposite < tallies[swapOutID].minComposite ||
			(t.minComposite == tallies[swapOutID].minComposite && t.selectedTokens > tallies[swapOutID].selectedTokens) {
			swapOutID = id
		}
	}
	if swapOutID != "" {
		out := tallies[swapOutID]
		budget := out.selectedTokens
		var swapIn []string
		used := 0
		for _, id := range order {
			t := tallies[id]
			if t.selectedTokens > 0 || t.excludedTokens == 0 {
				continue
			}
			if t.maxRelevance <= out.maxRelevance {
				continue
			}
			if used+t.excludedTokens > budget {
				continue
			}
			swapIn = append(swapIn, t.name)
			used += t.excludedTokens
		}
		if len(swapIn) >= 2 {
			rec.SuggestedSwap = fmt.Sprintf(
				"dropping %q (%d tokens) would make room for %s",
				out.name, out.selectedTokens, strings.Join(quoteAll(swapIn), ", "))
		}
	}

	rec.Summary = fmt.Sprintf(
		"%d document(s) fully included, %d truncated, %d excluded; exclusion saved %d tokens against a ceiling of %d",
		len(rec.IncludedDocuments), len(rec.TruncatedDocuments), len(rec.ExcludedDocuments),
		rec.TokensSaved, sel.Ceiling)

	return rec
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

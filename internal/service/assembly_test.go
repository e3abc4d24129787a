package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propelgov/propelai/internal/domain"
)

func TestAssemble_PreservesSelectionOrder(t *testing.T) {
	assembler := NewAssembler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	sel := Selection{
		Selected: []ScoredCandidate{
			{
				Document: &domain.Document{ID: "sol", Name: "solicitation.pdf"},
				Chunk:    domain.Chunk{DocumentID: "sol", Index: 0, Label: domain.SectionRequirements, Text: "The contractor shall.", TokenCount: 5},
			},
			{
				Document: &domain.Document{ID: "ref", Name: "reference.pdf"},
				Chunk:    domain.Chunk{DocumentID: "ref", Index: 2, Label: domain.SectionGeneral, Text: "Background material.", TokenCount: 4},
				Pinned:   true,
			},
		},
		TokensUsed: 9,
	}

	bundle := assembler.Assemble("proj-1", domain.DocumentCategorySolicitation, sel, "fp-123", now)

	require.Len(t, bundle.Chunks, 2)
	assert.Equal(t, "sol", bundle.Chunks[0].DocumentID)
	assert.Equal(t, "ref", bundle.Chunks[1].DocumentID)
	assert.Equal(t, 2, bundle.Chunks[1].ChunkIndex)
	assert.True(t, bundle.Chunks[1].Pinned)
}

func TestAssemble_ProvenanceHeaders(t *testing.T) {
	assembler := NewAssembler()

	sel := Selection{
		Selected: []ScoredCandidate{
			{
				Document: &domain.Document{ID: "d1", Name: "report.pdf"},
				Chunk:    domain.Chunk{DocumentID: "d1", Index: 3, Label: domain.SectionTechnical, Text: "Architecture details.", TokenCount: 5},
			},
		},
		TokensUsed: 5,
	}

	bundle := assembler.Assemble("proj-1", domain.DocumentCategoryReference, sel, "fp", time.Now())

	assert.Contains(t, bundle.Text, "--- report.pdf |")
	assert.Contains(t, bundle.Text, "chunk 3 ---")
	assert.Contains(t, bundle.Text, "Architecture details.")
}

func TestAssemble_Counts(t *testing.T) {
	assembler := NewAssembler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	sel := Selection{
		Selected: []ScoredCandidate{
			{
				Document: &domain.Document{ID: "d1", Name: "a.pdf"},
				Chunk:    domain.Chunk{DocumentID: "d1", Index: 0, Text: "one two three", TokenCount: 4},
			},
			{
				Document: &domain.Document{ID: "d1", Name: "a.pdf"},
				Chunk:    domain.Chunk{DocumentID: "d1", Index: 1, Text: "four five", TokenCount: 3},
			},
			{
				Document: &domain.Document{ID: "d2", Name: "b.pdf"},
				Chunk:    domain.Chunk{DocumentID: "d2", Index: 0, Text: "six", TokenCount: 1},
			},
		},
		TokensUsed: 8,
		Overflowed: true,
		Recommendation: &domain.OverflowRecommendation{
			Summary: "1 document(s) excluded",
		},
	}

	bundle := assembler.Assemble("proj-1", domain.DocumentCategoryReference, sel, "fp", now)

	assert.Equal(t, 8, bundle.TokenCount)
	assert.Equal(t, 2, bundle.DocumentCount, "chunks of the same document count once")
	assert.Positive(t, bundle.WordCount)
	assert.Positive(t, bundle.CharacterCount)
	assert.True(t, bundle.Overflowed)
	require.NotNil(t, bundle.Recommendation)
	assert.Equal(t, "1 document(s) excluded", bundle.Recommendation.Summary)
	assert.Equal(t, "fp", bundle.Fingerprint)
	assert.Equal(t, now, bundle.BuiltAt)
}

func TestAssemble_EmptySelection(t *testing.T) {
	assembler := NewAssembler()

	bundle := assembler.Assemble("proj-1", domain.DocumentCategoryMedia, Selection{}, "fp-empty", time.Now())

	assert.Empty(t, bundle.Chunks)
	assert.Empty(t, bundle.Text)
	assert.Zero(t, bundle.TokenCount)
	assert.Zero(t, bundle.DocumentCount)
	assert.False(t, bundle.Overflowed)
}

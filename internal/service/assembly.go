package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/propelgov/propelai/internal/domain"
)

// Assembler concatenates selected chunks into a context bundle, attaching a
// provenance header to each chunk for later citation.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble produces the final bundle from a selection, preserving the
// selector's ordering (priority order, not document order). It has no side
// effects; persistence is the cache's job.
func (a *Assembler) Assemble(
	projectID string,
	category domain.DocumentCategory,
	sel Selection,
	fingerprint string,
	now time.Time,
) *domain.ContextBundle {
	chunks := make([]domain.SelectedChunk, 0, len(sel.Selected))
	docs := make(map[string]bool, len(sel.Selected))

	var b strings.Builder
	for _, c := range sel.Selected {
		header := fmt.Sprintf("--- %s | %s | chunk %d ---\n", c.Document.Name, c.Chunk.Label, c.Chunk.Index)
		b.WriteString(header)
		b.WriteString(c.Chunk.Text)
		b.WriteString("\n\n")

		chunks = append(chunks, domain.SelectedChunk{
			DocumentID:   c.Document.ID,
			DocumentName: c.Document.Name,
			ChunkIndex:   c.Chunk.Index,
			Label:        c.Chunk.Label,
			Text:         c.Chunk.Text,
			TokenCount:   c.Chunk.TokenCount,
			Pinned:       c.Pinned,
		})
		docs[c.Document.ID] = true
	}

	text := b.String()

	return &domain.ContextBundle{
		ProjectID:      projectID,
		Category:       category,
		Chunks:         chunks,
		Text:           text,
		TokenCount:     sel.TokensUsed,
		CharacterCount: utf8.RuneCountInString(text),
		WordCount:      len(strings.Fields(text)),
		DocumentCount:  len(docs),
		Overflowed:     sel.Overflowed,
		Recommendation: sel.Recommendation,
		Fingerprint:    fingerprint,
		BuiltAt:        now.UTC(),
	}
}

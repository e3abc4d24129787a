package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/propelgov/propelai/internal/domain"
)

// citeMarker matches inline citation markers of the form
// [cite:<document-id>#<chunk-index>] emitted by the generation prompt.
var citeMarker = regexp.MustCompile(`\[cite:([^#\]\s]+)#(\d+)\]`)

// Citation is one resolved inline citation: the marker tied back to the
// bundle chunk it referenced.
type Citation struct {
	Number       int                 `json:"number"`
	DocumentID   string              `json:"document_id"`
	DocumentName string              `json:"document_name"`
	ChunkIndex   int                 `json:"chunk_index"`
	Label        domain.SectionLabel `json:"label"`
}

// ResolvedDraft is generated text with citation markers rewritten to
// numbered footnotes, plus the footnote list.
type ResolvedDraft struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// CitationResolver rewrites citation markers in generated text against the
// bundle the text was generated from.
type CitationResolver struct{}

// NewCitationResolver creates a CitationResolver.
func NewCitationResolver() *CitationResolver {
	return &CitationResolver{}
}

// Resolve replaces every marker that points at a chunk present in the bundle
// with a [n] footnote reference, numbering citations in order of first
// appearance. Markers pointing outside the bundle are dropped from the text
// rather than left dangling.
func (r *CitationResolver) Resolve(text string, bundle *domain.ContextBundle) ResolvedDraft {
	chunks := make(map[string]domain.SelectedChunk, len(bundle.Chunks))
	for _, c := range bundle.Chunks {
		chunks[chunkRef(c.DocumentID, c.ChunkIndex)] = c
	}

	numbers := make(map[string]int)
	var citations []Citation

	resolved := citeMarker.ReplaceAllStringFunc(text, func(marker string) string {
		m := citeMarker.FindStringSubmatch(marker)
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return ""
		}

		ref := chunkRef(m[1], idx)
		chunk, ok := chunks[ref]
		if !ok {
			return ""
		}

		n, seen := numbers[ref]
		if !seen {
			n = len(citations) + 1
			numbers[ref] = n
			citations = append(citations, Citation{
				Number:       n,
				DocumentID:   chunk.DocumentID,
				DocumentName: chunk.DocumentName,
				ChunkIndex:   chunk.ChunkIndex,
				Label:        chunk.Label,
			})
		}
		return fmt.Sprintf("[%d]", n)
	})

	return ResolvedDraft{
		Text:      strings.TrimSpace(resolved),
		Citations: citations,
	}
}

func chunkRef(documentID string, index int) string {
	return fmt.Sprintf("%s#%d", documentID, index)
}

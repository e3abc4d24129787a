package service

import (
	"strings"
	"unicode"

	"github.com/propelgov/propelai/internal/domain"
)

// SectionClassifier assigns a section label to a piece of chunk text.
type SectionClassifier interface {
	Classify(text string) domain.SectionLabel
}

// KeywordClassifier labels chunks by matching an ordered keyword table.
// The first label whose keywords appear in the text wins.
type KeywordClassifier struct {
	table []domain.SectionKeywords
}

// NewKeywordClassifier creates a classifier from a policy keyword table.
func NewKeywordClassifier(table []domain.SectionKeywords) *KeywordClassifier {
	return &KeywordClassifier{table: table}
}

// Classify implements SectionClassifier.
func (c *KeywordClassifier) Classify(text string) domain.SectionLabel {
	lower := strings.ToLower(text)
	for _, entry := range c.table {
		for _, kw := range entry.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				return entry.Label
			}
		}
	}
	return domain.SectionGeneral
}

// ChunkConfig controls chunking of extracted document text.
type ChunkConfig struct {
	MaxChars int
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking. MaxChars is sized
// so a chunk lands at a few hundred tokens under the ~4 chars/token estimate.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1600,
		MinChars: 400,
	}
}

// Chunker splits extracted text into ordered, labeled chunks.
type Chunker struct {
	cfg        ChunkConfig
	classifier SectionClassifier
	estimator  TokenEstimator
}

// NewChunker creates a Chunker driven by the given policy's keyword table.
func NewChunker(policy domain.AllocationPolicy, estimator TokenEstimator) *Chunker {
	cfg := DefaultChunkConfig()
	if policy.MaxChunkChars > 0 {
		cfg.MaxChars = policy.MaxChunkChars
	}
	return NewChunkerWithConfig(cfg, NewKeywordClassifier(policy.KeywordTable), estimator)
}

// NewChunkerWithConfig creates a Chunker with explicit configuration.
func NewChunkerWithConfig(cfg ChunkConfig, classifier SectionClassifier, estimator TokenEstimator) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if classifier == nil {
		classifier = NewKeywordClassifier(nil)
	}
	if estimator == nil {
		estimator = DefaultTokenEstimator()
	}
	return &Chunker{cfg: cfg, classifier: classifier, estimator: estimator}
}

// ChunkDocument splits extracted text into ordered, labeled chunks for one
// document. Empty or unreadable text yields zero chunks; that is a degenerate
// case, not an error.
func (c *Chunker) ChunkDocument(doc *domain.Document, text string) []domain.Chunk {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	units := splitStructural(clean)

	chunks := make([]domain.Chunk, 0, len(units))
	for _, unit := range units {
		for _, piece := range splitOversized(unit, c.cfg) {
			chunks = append(chunks, domain.Chunk{
				DocumentID: doc.ID,
				Index:      len(chunks),
				Label:      c.classifier.Classify(piece),
				Text:       piece,
				TokenCount: c.estimator.EstimateTokens(piece),
			})
		}
	}

	return chunks
}

// splitStructural splits text on structural boundaries: headings start a new
// unit, blank lines delimit paragraphs. Order is preserved.
func splitStructural(text string) []string {
	lines := strings.Split(text, "\n")

	var units []string
	var buf []string

	flush := func() {
		if len(buf) == 0 {
			return
		}
		unit := strings.TrimSpace(strings.Join(buf, "\n"))
		if unit != "" {
			units = append(units, unit)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if isHeadingLine(trimmed) {
			flush()
			buf = append(buf, trimmed)
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return units
}

// isHeadingLine reports whether a line looks like a section heading:
// a markdown heading, a numbered heading ("3.2 Technical Approach"), or a
// short all-caps line.
func isHeadingLine(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}

	if len(line) > 120 {
		return false
	}

	r := rune(line[0])
	if unicode.IsDigit(r) && strings.ContainsAny(line, ".)") && len(strings.Fields(line)) <= 12 {
		return true
	}

	letters := 0
	upper := 0
	for _, ch := range line {
		if unicode.IsLetter(ch) {
			letters++
			if unicode.IsUpper(ch) {
				upper++
			}
		}
	}
	return letters >= 3 && letters == upper
}

// splitOversized sub-splits a structural unit that exceeds MaxChars, cutting
// at whitespace boundaries no earlier than MinChars into the window.
func splitOversized(unit string, cfg ChunkConfig) []string {
	runes := []rune(unit)
	if len(runes) <= cfg.MaxChars {
		return []string{unit}
	}

	pieces := make([]string, 0, len(runes)/cfg.MaxChars+1)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		start = end
	}

	return pieces
}

package service

import "unicode/utf8"

// TokenEstimator estimates the token cost of a piece of text.
// The default is a cheap character heuristic; a real tokenizer can be
// substituted per model family without touching the selector.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// HeuristicEstimator approximates tokens as ceil(characters / CharsPerToken).
type HeuristicEstimator struct {
	CharsPerToken int
}

// DefaultTokenEstimator returns the standard ~4 characters per token estimator.
func DefaultTokenEstimator() HeuristicEstimator {
	return HeuristicEstimator{CharsPerToken: 4}
}

// EstimateTokens implements TokenEstimator.
func (e HeuristicEstimator) EstimateTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return 0
	}
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	return (chars + cpt - 1) / cpt
}

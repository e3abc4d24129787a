package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicEstimator_EstimateTokens(t *testing.T) {
	est := DefaultTokenEstimator()

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"single char rounds up", "a", 1},
		{"exactly one token", "abcd", 1},
		{"five chars rounds up", "abcde", 2},
		{"hundred chars", strings.Repeat("x", 100), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, est.EstimateTokens(tt.text))
		})
	}
}

func TestHeuristicEstimator_CountsRunesNotBytes(t *testing.T) {
	est := DefaultTokenEstimator()

	// 4 multi-byte runes should count as one token, not three
	assert.Equal(t, 1, est.EstimateTokens("日本語字"))
}

func TestHeuristicEstimator_ZeroCharsPerTokenFallsBack(t *testing.T) {
	est := HeuristicEstimator{CharsPerToken: 0}

	assert.Equal(t, 2, est.EstimateTokens("abcdefgh"))
}

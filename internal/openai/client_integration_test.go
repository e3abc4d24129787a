//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateText_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	text, err := client.GenerateText(ctx, "You are a concise assistant.", "Reply with the single word: pong", 16)

	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

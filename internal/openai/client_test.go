package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockChatAPI is a mock for the chat completion API
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateCompletion(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, system, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

func TestClient_GenerateText_Success(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := &Client{api: mockAPI}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, "you are a writer", "write an intro", 512).
		Return("Here is an introduction.", nil)

	text, err := client.GenerateText(ctx, "you are a writer", "write an intro", 512)

	assert.NoError(t, err)
	assert.Equal(t, "Here is an introduction.", text)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateText_EmptyPrompt(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := &Client{api: mockAPI}

	_, err := client.GenerateText(context.Background(), "system", "", 0)

	assert.ErrorIs(t, err, ErrEmptyPrompt)
	mockAPI.AssertNotCalled(t, "CreateCompletion")
}

func TestClient_GenerateText_APIError(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := &Client{api: mockAPI}

	ctx := context.Background()
	apiErr := errors.New("rate limited")
	mockAPI.On("CreateCompletion", ctx, "system", "prompt", 0).Return("", apiErr)

	_, err := client.GenerateText(ctx, "system", "prompt", 0)

	assert.Error(t, err)
	assert.ErrorIs(t, err, apiErr)
	mockAPI.AssertExpectations(t)
}

func TestNewClientFromEnv_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewClientFromEnv()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

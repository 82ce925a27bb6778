package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestMockLLMClient_ScriptedResponses(t *testing.T) {
	mock := NewMockLLMClient()
	mock.Responses = []string{"first", "second"}

	ctx := context.Background()

	got, err := mock.Complete(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = mock.Complete(ctx, "p2", "")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	// Script exhausted: last response repeats.
	got, err = mock.Complete(ctx, "p3", "")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	assert.Equal(t, 3, mock.CompleteCalls)
	assert.Equal(t, []string{"p1", "p2", "p3"}, mock.Prompts)
}

func TestMockLLMClient_CompleteFunc(t *testing.T) {
	mock := NewMockLLMClient()
	mock.CompleteFunc = func(ctx context.Context, prompt, system string) (string, error) {
		return "from func: " + prompt, nil
	}

	got, err := mock.Complete(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "from func: hello", got)

	mock.Reset()
	assert.Equal(t, 0, mock.CompleteCalls)
	assert.Empty(t, mock.Prompts)
}

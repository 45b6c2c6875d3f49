package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
)

// mockLLM implements driven.LLMService, recording the last call.
type mockLLM struct {
	response   string
	err        error
	lastPrompt string
	lastOpts   driven.GenerateOptions
	calls      int
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastOpts = opts
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }
func (m *mockLLM) Close() error      { return nil }

func TestClusterSummariser_Summarise(t *testing.T) {
	llm := &mockLLM{response: "  a tidy summary  \n"}
	s := NewClusterSummariser(llm)

	summary, err := s.Summarise(context.Background(), []string{"first passage", "second passage"})
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", summary)

	// Both texts reach the model, separated so passage boundaries survive.
	assert.Contains(t, llm.lastPrompt, "first passage")
	assert.Contains(t, llm.lastPrompt, "second passage")
	assert.Contains(t, llm.lastPrompt, "\n---\n")
	assert.Equal(t, summaryMaxTokens, llm.lastOpts.MaxTokens)
}

func TestClusterSummariser_Summarise_EmptyInput(t *testing.T) {
	s := NewClusterSummariser(&mockLLM{response: "unused"})

	_, err := s.Summarise(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClusterSummariser_Summarise_NilLLM(t *testing.T) {
	s := NewClusterSummariser(nil)

	_, err := s.Summarise(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestClusterSummariser_Summarise_GenerateError(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewClusterSummariser(&mockLLM{err: boom})

	_, err := s.Summarise(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestClusterSummariser_Summarise_EmptyResponse(t *testing.T) {
	s := NewClusterSummariser(&mockLLM{response: "   \n  "})

	_, err := s.Summarise(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty summary")
}

func TestClusterSummariser_WithModel(t *testing.T) {
	llm := &mockLLM{response: "summary"}
	s := NewClusterSummariser(llm, WithModel("small-fast-model"))

	_, err := s.Summarise(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Equal(t, "small-fast-model", llm.lastOpts.Model)
}

func TestClusterSummariser_WithRateLimit_ContextCancelled(t *testing.T) {
	llm := &mockLLM{response: "summary"}
	// One token per hour: the first call drains the bucket, the second
	// must wait and sees the cancelled context instead.
	s := NewClusterSummariser(llm, WithRateLimit(1.0/3600))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Summarise(ctx, []string{"text"})
	require.NoError(t, err)

	cancel()
	_, err = s.Summarise(ctx, []string{"text"})
	require.Error(t, err)
	assert.Equal(t, 1, llm.calls)
}

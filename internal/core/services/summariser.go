package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
	"github.com/custodia-labs/raptor/internal/logger"
)

// summaryPrompt instructs the model to produce a self-contained cluster
// summary. Concrete facts, names and numbers must survive; the output
// carries no meta-commentary about being a summary.
const summaryPrompt = `The following passages are excerpts on a shared topic.

Write one coherent summary of the information they contain. Requirements:
- Self-contained: readable without the original passages.
- Preserve concrete facts, names and numbers.
- Plain language.
- Do not mention that this is a summary or refer to "the passages".

Passages:

%s

Summary:`

// summaryMaxTokens bounds summary generation length.
const summaryMaxTokens = 1024

// ClusterSummariser reduces a list of semantically related texts to one
// summary string via an LLM call. Summarisation latency dominates tree
// build time, so calls can be paced with an optional rate limiter;
// retries belong in the LLMService implementation, not here.
type ClusterSummariser struct {
	llm     driven.LLMService
	model   string
	limiter *rate.Limiter
}

// SummariserOption configures a ClusterSummariser.
type SummariserOption func(*ClusterSummariser)

// WithModel overrides which model summarises clusters. An empty value
// keeps the service's default (the QA model).
func WithModel(model string) SummariserOption {
	return func(s *ClusterSummariser) {
		s.model = model
	}
}

// WithRateLimit paces LLM calls to at most rps requests per second.
func WithRateLimit(rps float64) SummariserOption {
	return func(s *ClusterSummariser) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClusterSummariser creates a summariser backed by the given LLM.
func NewClusterSummariser(llm driven.LLMService, opts ...SummariserOption) *ClusterSummariser {
	s := &ClusterSummariser{llm: llm}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarise produces one summary of the given texts.
// An empty input is a caller bug and fails immediately; an empty model
// response is an error, never silently returned.
func (s *ClusterSummariser) Summarise(ctx context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: no texts to summarise", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var sb strings.Builder
	for i, text := range texts {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(text)
	}
	prompt := fmt.Sprintf(summaryPrompt, sb.String())

	logger.Debug("Summarising %d texts (model=%q)", len(texts), s.model)

	summary, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		Model:       s.model,
		MaxTokens:   summaryMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("summarise: model returned an empty summary")
	}

	return summary, nil
}

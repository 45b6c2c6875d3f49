package driven

import "context"

// LLMService provides language model text generation.
// Cluster summarisation is the only consumer; its latency dominates tree
// build time, so retries and backoff belong in implementations of this
// interface, not in the build algorithm.
//
// Implementations may include:
//   - OpenAI (GPT-4, GPT-4o-mini)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// Model optionally overrides the service's default model.
	Model string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

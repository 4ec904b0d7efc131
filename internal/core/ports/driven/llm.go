package driven

import "context"

// LLMService is the capability interface every provider variant
// implements. Providers form a small closed set of tagged variants
// (anthropic, ollama); adding a provider means adding a variant, not
// branching on a provider-type string at call sites.
type LLMService interface {
	// Chat conducts a multi-turn conversation and returns the full reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ChatStream conducts a conversation and delivers the reply as text
	// fragments on the returned channel, in generation order. The
	// channel is closed when the reply is complete or the context is
	// cancelled; a terminal error, if any, is delivered on the error
	// channel before close.
	ChatStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan string, <-chan error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// Package llm is the remote completion client used to voice personas.
//
// The response engine treats every error from this package as transient: it
// falls back to an offline reply instead of retrying. Clients therefore make
// exactly one upstream attempt per call.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned by Complete before a successful Initialize, or
	// when no API key is configured.
	ErrNotReady = errors.New("llm: client not initialized")

	// ErrRateLimit is returned when the local limiter refuses the call or the
	// upstream API answers 429.
	ErrRateLimit = errors.New("llm: rate limit exceeded")

	// ErrBudgetExhausted is returned when the caller has spent its daily
	// token allowance.
	ErrBudgetExhausted = errors.New("llm: daily token budget exhausted")

	// ErrEmptyCompletion is returned when the API answered without any text.
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// CompletionRequest is a single-turn completion: one system instruction and
// an optional user message.
type CompletionRequest struct {
	System string
	User   string

	// MaxTokens and Temperature override the client defaults when non-zero.
	MaxTokens   int
	Temperature float32

	// BudgetKey selects the daily token counter charged for this call,
	// usually the persona id. Empty means the shared counter.
	BudgetKey string
}

// Usage is the token accounting reported by the API.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Completion is a successful reply.
type Completion struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client is the remote model. Implementations must be safe for concurrent
// use.
type Client interface {
	// Initialize prepares the client and reports whether it can serve
	// completions. It may be called again to retry.
	Initialize(ctx context.Context) bool

	// Ready reports the result of the last Initialize.
	Ready() bool

	// Complete issues one completion request.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Offline is a Client that is never ready. It stands in when no API key is
// configured so every reply takes the offline path.
type Offline struct{}

var _ Client = Offline{}

func (Offline) Initialize(context.Context) bool { return false }
func (Offline) Ready() bool                     { return false }

func (Offline) Complete(context.Context, CompletionRequest) (*Completion, error) {
	return nil, ErrNotReady
}

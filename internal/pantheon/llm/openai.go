package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/bdobrica/pantheon/common/redact"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the chat model personas speak through.
	DefaultModel = "llama-3.1-70b-versatile"

	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.8

	defaultTimeout = 30 * time.Second
)

// Config configures the OpenAI-compatible client.
type Config struct {
	// APIKey is the bearer token. An empty key leaves the client permanently
	// not ready.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// Model defaults to DefaultModel.
	Model string

	// MaxTokens and Temperature apply when a request leaves them zero.
	MaxTokens   int
	Temperature float32

	// Timeout bounds each HTTP request. Defaults to 30 s.
	Timeout time.Duration

	// RatePerMinute throttles calls locally. Zero disables the limiter.
	RatePerMinute int

	// DailyTokens caps the tokens charged to each BudgetKey per UTC day.
	// Zero disables the budget.
	DailyTokens int

	// HTTPClient replaces the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
	Now    func() time.Time
}

// OpenAI implements Client over any OpenAI-compatible chat completions API.
type OpenAI struct {
	cfg     Config
	client  *openai.Client
	limiter *rate.Limiter
	budget  *TokenBudget
	log     *slog.Logger
	ready   atomic.Bool
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI returns a client. It does not touch the network; call Initialize.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = cfg.HTTPClient

	c := &OpenAI{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
		budget: NewTokenBudget(cfg.DailyTokens, cfg.Now),
		log:    cfg.Logger,
	}
	if cfg.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}
	return c
}

// Model returns the configured model name.
func (c *OpenAI) Model() string { return c.cfg.Model }

// RemainingTokens returns the daily tokens key may still spend, or Unlimited
// when DailyTokens is zero.
func (c *OpenAI) RemainingTokens(key string) int { return c.budget.Remaining(key) }

// Initialize checks the key against the models endpoint.
func (c *OpenAI) Initialize(ctx context.Context) bool {
	if c.cfg.APIKey == "" {
		c.log.Info("llm: no API key configured, personas will answer offline")
		c.ready.Store(false)
		return false
	}
	if _, err := c.client.ListModels(ctx); err != nil {
		c.log.Warn("llm: initialization failed, personas will answer offline",
			"base_url", c.cfg.BaseURL, "err", c.redact(err))
		c.ready.Store(false)
		return false
	}
	c.log.Info("llm: client ready", "base_url", c.cfg.BaseURL, "model", c.cfg.Model)
	c.ready.Store(true)
	return true
}

func (c *OpenAI) Ready() bool { return c.ready.Load() }

// Complete sends one chat completion request. Upstream 429s map to
// ErrRateLimit; every other failure is wrapped with the API key removed.
func (c *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if !c.Ready() {
		return nil, ErrNotReady
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, ErrRateLimit
	}
	if !c.budget.Allow(req.BudgetKey) {
		return nil, ErrBudgetExhausted
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.cfg.Temperature
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
	}
	if req.User != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		if statusCode(err) == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrRateLimit, c.redact(err))
		}
		return nil, fmt.Errorf("llm: chat completion: %w", c.redact(err))
	}

	c.budget.Record(req.BudgetKey, resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, ErrEmptyCompletion
	}
	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	return &Completion{
		Text:  text,
		Model: model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAI) redact(err error) error {
	return redact.Error(err, c.cfg.APIKey)
}

// statusCode extracts the HTTP status from go-openai errors, or 0.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Package llm adapts eino's tool-calling chat models into the single
// Complete surface the task agent and skill-learn agent call against,
// independent of which provider backs a given project.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Provider names a supported backend. A project's ModelParams.Provider
// selects one of these at call time.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
)

// Config carries the per-provider credentials and endpoint overrides read
// from the environment at server startup.
type Config struct {
	ClaudeAPIKey    string
	ClaudeBaseURL   string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxElapsedRetry time.Duration
}

// Request is one chat-completion call: the conversation so far, the tool
// palette available to the model, and the provider/model/temperature
// selection carried on the session's ModelParams.
type Request struct {
	Provider    Provider
	Model       string
	Temperature *float64
	System      string
	Messages    []*schema.Message
	Tools       []ToolSchema
}

// Client builds a provider chat model on demand and retries transient
// failures with backoff, presenting one Complete entrypoint regardless of
// backend.
type Client struct {
	cfg Config
}

// New constructs a Client bound to cfg. Provider chat models are created
// per call rather than cached, since each call may bind a different tool
// palette via WithTools.
func New(cfg Config) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxElapsedRetry == 0 {
		cfg.MaxElapsedRetry = 30 * time.Second
	}
	return &Client{cfg: cfg}
}

// Complete runs one turn against req.Provider, retrying failed calls with
// exponential backoff. Only context cancellation and deadline errors stop
// the retries early; provider errors are not told apart, so validation
// (4xx) failures are retried the same way as rate limits and 5xx errors.
func (c *Client) Complete(ctx context.Context, req Request) (*schema.Message, error) {
	chatModel, err := c.buildModel(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: build %s model: %w", req.Provider, err)
	}

	if len(req.Tools) > 0 {
		toolInfos, err := toolInfosFromSchemas(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("llm: convert tool schemas: %w", err)
		}
		chatModel, err = chatModel.WithTools(toolInfos)
		if err != nil {
			return nil, fmt.Errorf("llm: bind tools to %s model: %w", req.Provider, err)
		}
	}

	messages := req.Messages
	if req.System != "" {
		messages = append([]*schema.Message{schema.SystemMessage(req.System)}, messages...)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxElapsedTime = c.cfg.MaxElapsedRetry
	retrier := backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries))

	var result *schema.Message
	operation := func() error {
		msg, err := chatModel.Generate(ctx, messages)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = msg
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(retrier, ctx)); err != nil {
		return nil, fmt.Errorf("llm: %s completion failed: %w", req.Provider, err)
	}
	return result, nil
}

func (c *Client) buildModel(ctx context.Context, req Request) (model.ToolCallingChatModel, error) {
	switch req.Provider {
	case ProviderClaude:
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:      c.cfg.ClaudeAPIKey,
			BaseURL:     c.cfg.ClaudeBaseURL,
			Model:       req.Model,
			Temperature: req.Temperature,
		})
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.Config{
			APIKey:      c.cfg.OpenAIAPIKey,
			BaseURL:     c.cfg.OpenAIBaseURL,
			Model:       req.Model,
			Temperature: req.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", req.Provider)
	}
}

// isRetryable treats everything except a bare context.Canceled or
// context.DeadlineExceeded as a transient problem, provider 4xx validation
// failures included.
func isRetryable(err error) bool {
	return ctxErr(err) == nil
}

func ctxErr(err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return nil
}

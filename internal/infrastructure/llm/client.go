package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/summary"
	"jan-server/services/grant-scout/internal/infrastructure/metrics"
	"jan-server/services/grant-scout/internal/infrastructure/resilience"
	"jan-server/services/grant-scout/internal/infrastructure/scraper"
	"jan-server/services/grant-scout/utils/grantid"
	"jan-server/services/grant-scout/utils/platformerrors"
)

const (
	SourceGenerative    = "generative"
	SourceGenerativeWeb = "web: generative"

	chatCompletionsPath = "/chat/completions"
	maxErrorBodyChars   = 300
)

// ClientConfig configures the OpenAI-compatible chat completion client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	Retry       resilience.RetryConfig
	Breaker     resilience.CircuitBreakerConfig
}

// Client is the generative information source. It implements the search,
// scraping-extraction and summary contracts over one chat completion endpoint.
type Client struct {
	client  *resty.Client
	cfg     ClientConfig
	breaker *resilience.CircuitBreaker
	now     func() time.Time
}

// NewClient creates a new generative source client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("llm", cfg.Breaker),
		now:     time.Now,
	}
}

// SearchGrants asks the model directly for programmes matching query.
func (c *Client) SearchGrants(ctx context.Context, query, category string) ([]grant.Grant, error) {
	content, err := c.complete(ctx, "search_grants", searchMessages(query, category, false), true)
	if err != nil {
		return nil, err
	}
	return c.toGrants(ctx, content, category, grantid.PrefixGenerated, SourceGenerative)
}

// SearchGrantsWeb asks the model for currently published programmes with
// working application links.
func (c *Client) SearchGrantsWeb(ctx context.Context, query, category string) ([]grant.Grant, error) {
	content, err := c.complete(ctx, "search_grants_web", searchMessages(query, category, true), true)
	if err != nil {
		return nil, err
	}
	return c.toGrants(ctx, content, category, grantid.PrefixWeb, SourceGenerativeWeb)
}

// ExtractGrants turns scraped page text into records attributed to site.
func (c *Client) ExtractGrants(ctx context.Context, site string, query string, pages []scraper.Page) ([]grant.Grant, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	content, err := c.complete(ctx, "extract_grants", extractionMessages(site, query, pages), true)
	if err != nil {
		return nil, err
	}
	grants, err := c.toGrants(ctx, content, "", grantid.PrefixWeb, scraper.SourceLabel(site))
	if err != nil {
		return nil, err
	}
	for i := range grants {
		if grants[i].URL == "" && len(pages) == 1 {
			grants[i].URL = pages[0].URL
		}
	}
	return grants, nil
}

// Summarize renders records as a markdown document.
func (c *Client) Summarize(ctx context.Context, in summary.Input) (string, error) {
	messages, err := summaryMessages(in)
	if err != nil {
		return "", platformerrors.NewSourceError(ctx, "failed to encode grants for summary", err, "0e7b3c59-8a41-4d2f-b6e0-93c5f1a7d28e")
	}
	content, err := c.complete(ctx, "summarize", messages, false)
	if err != nil {
		return "", err
	}
	markdown := stripCodeFence(content)
	if strings.TrimSpace(markdown) == "" {
		return "", platformerrors.NewSourceError(ctx, "summary response was empty", nil, "a4d81f6c-2b9e-47c3-8e15-6c0f9b2d73a1")
	}
	return markdown, nil
}

func (c *Client) toGrants(ctx context.Context, content, category string, prefix grantid.Prefix, source string) ([]grant.Grant, error) {
	grants, err := parseGrants(content)
	if err != nil {
		return nil, platformerrors.NewSourceError(ctx, "could not parse grants from model output", err, "5c2e8f1b-7d34-4a96-b0e2-1f8c6a3d9e57")
	}
	now := c.now().UTC()
	for i := range grants {
		grants[i].ID = grantid.New(prefix)
		grants[i].Source = source
		grants[i].CreatedAt = now
		if grants[i].Category == "" {
			grants[i].Category = category
		}
	}
	return grants, nil
}

// complete sends one chat completion through the breaker and retry policy and
// returns the first choice's content.
func (c *Client) complete(ctx context.Context, operation string, messages []openai.ChatCompletionMessage, jsonMode bool) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if jsonMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := c.now()
	content, err := resilience.WithRetry(ctx, c.cfg.Retry, operation, func(ctx context.Context) (string, error) {
		var out string
		err := c.breaker.Execute(operation, func() error {
			var err error
			out, err = c.post(ctx, request)
			return err
		}, resilience.IsCancellation)
		return out, err
	})
	elapsed := c.now().Sub(start)

	if err != nil {
		metrics.RecordSourceLatency(SourceGenerative, "error", elapsed.Seconds())
		if resilience.IsCancellation(err) {
			return "", err
		}
		log.Warn().
			Err(err).
			Str("operation", operation).
			Str("model", c.cfg.Model).
			Dur("elapsed", elapsed).
			Msg("chat completion failed")
		return "", platformerrors.NewSourceError(ctx, operation+" failed", err, "d93a0c7e-5b18-4f62-a3d4-8e1b7c0f5a29")
	}

	metrics.RecordSourceLatency(SourceGenerative, "success", elapsed.Seconds())
	log.Debug().
		Str("operation", operation).
		Str("model", c.cfg.Model).
		Int("content_length", len(content)).
		Dur("elapsed", elapsed).
		Msg("chat completion succeeded")
	return content, nil
}

func (c *Client) post(ctx context.Context, request openai.ChatCompletionRequest) (string, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&respBody).
		Post(chatCompletionsPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBodyChars {
			body = body[:maxErrorBodyChars]
		}
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode(), body)
	}
	if len(respBody.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return respBody.Choices[0].Message.Content, nil
}

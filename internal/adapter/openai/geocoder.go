// Package openai resolves region identifiers with a chat completion model.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
)

const (
	provider = "openai"

	// DefaultModel is the chat model used when none is configured.
	DefaultModel = goopenai.GPT4o

	maxReplyTokens = 100
)

// Geocoder implements domain.RegionGeocoder by prompting a chat model for a
// "west,east,south,north" reply. The reply is returned verbatim; parsing and
// validation belong to the caller.
type Geocoder struct {
	client  *goopenai.Client
	model   string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGeocoder creates a Geocoder. An empty baseURL uses the public API.
func NewGeocoder(apiKey, baseURL, model string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Geocoder {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = DefaultModel
	}
	return &Geocoder{
		client:  goopenai.NewClientWithConfig(cfg),
		model:   model,
		metrics: metrics,
		logger:  logger,
	}
}

// GeocodeRegion sends the fixed region prompt and returns the model's reply.
func (g *Geocoder) GeocodeRegion(ctx context.Context, identifier string) (string, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: domain.RegionSystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: domain.RegionPrompt(identifier)},
		},
		MaxTokens:   maxReplyTokens,
		Temperature: 0,
	})
	g.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		g.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		g.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
		return "", &domain.ResolutionError{Identifier: identifier, Reason: "model returned no choices"}
	}

	g.metrics.GeocodeRequests.WithLabelValues(provider, "success").Inc()
	reply := resp.Choices[0].Message.Content
	g.logger.Debug("openai region reply", "identifier", identifier, "model", g.model, "reply", reply,
		"total_tokens", resp.Usage.TotalTokens)
	return reply, nil
}

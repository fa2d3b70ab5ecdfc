// Package gemini turns a customer message into a reply using the Gemini
// API. Failures never reach the caller: they degrade to FallbackText.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// FallbackText is returned by Generate whenever the generation call fails.
const FallbackText = "Sorry, I encountered an error while processing your message. Please try again later."

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("gemini returned no text")

// Models is the part of *genai.Models the client needs.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configure a Client.
type Options struct {
	Model    string
	Preamble string        // empty uses Preamble
	Timeout  time.Duration // zero means no timeout of our own
}

// Client wraps a Gemini model with the fixed preamble.
type Client struct {
	models   Models
	model    string
	preamble string
	timeout  time.Duration
	log      zerolog.Logger
}

// New creates a Client backed by the Gemini Developer API.
func New(ctx context.Context, apiKey string, opts Options, log zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return NewWithModels(gc.Models, opts, log), nil
}

// NewWithModels creates a Client on top of an existing Models
// implementation.
func NewWithModels(models Models, opts Options, log zerolog.Logger) *Client {
	preamble := opts.Preamble
	if preamble == "" {
		preamble = Preamble
	}
	return &Client{
		models:   models,
		model:    opts.Model,
		preamble: preamble,
		timeout:  opts.Timeout,
		log:      log,
	}
}

// Prompt builds the text actually sent to the model.
func (c *Client) Prompt(message string) string {
	return fmt.Sprintf(promptTemplate, c.preamble, message)
}

// GenerateText issues a single generation call and returns the trimmed
// reply.
func (c *Client) GenerateText(ctx context.Context, message string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(c.Prompt(message)), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", fb.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Generate is GenerateText with every failure replaced by FallbackText.
func (c *Client) Generate(ctx context.Context, message string) string {
	text, err := c.GenerateText(ctx, message)
	if err != nil {
		c.log.Error().Err(err).Str("model", c.model).Msg("Error generating AI response")
		return FallbackText
	}
	return text
}

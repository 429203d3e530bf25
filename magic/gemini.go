package magic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, prompt string) (string, error)

// Gemini is a Parser backed by the Gemini API.
type Gemini struct {
	generate generateFunc
	timeout  time.Duration
	logger   *log.Logger
}

// NewGemini creates a Gemini parser for the given API key.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, logger *log.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrUnavailable
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
	gen := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGemini(gen, timeout, logger), nil
}

func newGemini(gen generateFunc, timeout time.Duration, logger *log.Logger) *Gemini {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gemini{generate: gen, timeout: timeout, logger: logger}
}

// Parse asks the model for a task draft.
func (g *Gemini) Parse(ctx context.Context, text string, c Context) (*Draft, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	raw, err := g.generate(ctx, buildPrompt(text, c))
	if err != nil {
		g.logger.WithError(err).Warn("gemini request failed")
		return nil, err
	}
	g.logger.WithField("took_ms", float64(time.Since(start))/float64(time.Millisecond)).Debug("gemini responded")

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, ErrEmptyResponse
	}
	var d Draft
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := d.normalize(); err != nil {
		return nil, err
	}
	return &d, nil
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"status": {
				Type: genai.TypeString,
				Enum: []string{"todo", "in-progress", "done"},
			},
			"assignee": {
				Type: genai.TypeString,
				Enum: []string{"userA", "userB", "shared"},
			},
			"dueDate": {
				Type:        genai.TypeString,
				Description: "ISO date string YYYY-MM-DD or null",
			},
			"priorityColor": {
				Type:        genai.TypeString,
				Description: "Hex color code",
			},
		},
		Required: []string{"title", "status", "assignee", "priorityColor"},
	}
}

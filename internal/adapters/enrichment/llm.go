// Package enrichment implements the optional external confidence
// enhancer on top of an OpenAI-compatible chat model. Its output is
// advisory only: callers clamp the adjustment and drop it entirely on
// any failure.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"mexcSniperBot/internal/ports"
)

const systemPrompt = `You are a crypto listing analyst. You receive a new exchange listing
that has been scored by a rule-based pattern detector, and you adjust the
confidence score based on qualitative signals the rules cannot see
(project reputation, naming red flags, typical behavior of listings with
this much advance notice).

Respond with a single JSON object and nothing else:
{"adjustment": <number between -10 and 15>, "reasoning": "<one sentence>", "factors": ["<factor>", ...]}

A positive adjustment means the listing looks more snipeable than the
rule score suggests; negative means riskier. Small adjustments are
expected; reserve the extremes for strong signals.`

// Enhancer implements ports.ConfidenceEnhancer using a chat model.
type Enhancer struct {
	model     llms.Model
	modelName string
	logger    ports.Logger
	timeout   time.Duration
}

// Config holds configuration for the LLM enhancer.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // Optional OpenAI-compatible endpoint
	Logger  ports.Logger
	Timeout time.Duration // Per-call budget, default 10s
}

// New creates an LLM-backed confidence enhancer.
func New(cfg Config) (*Enhancer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for LLM enhancer")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for LLM enhancer")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cfg.Logger.Info(context.Background(), "LLM confidence enhancer ready", map[string]interface{}{"model": model})
	return &Enhancer{model: llm, modelName: model, logger: cfg.Logger, timeout: timeout}, nil
}

type llmResponse struct {
	Adjustment float64  `json:"adjustment"`
	Reasoning  string   `json:"reasoning"`
	Factors    []string `json:"factors"`
}

// EnhanceConfidence asks the model for a bounded adjustment to the
// rule-based confidence score.
func (e *Enhancer) EnhanceConfidence(ctx context.Context, symbol string, currentConfidence float64, ec ports.EnhancementContext) (*ports.Enhancement, error) {
	op := "EnhanceConfidence"
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Listing: %s\nProject: %s\nDetected pattern: %s\nRule-based confidence: %.1f\nAdvance notice: %.2f hours",
		symbol, ec.ProjectName, ec.PatternType, currentConfidence, ec.AdvanceHours)

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: systemPrompt}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: userPrompt}}},
	}

	start := time.Now()
	resp, err := e.model.GenerateContent(callCtx, messages)
	if err != nil {
		return nil, fmt.Errorf("%s: model call failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: model returned no choices", op)
	}

	parsed, err := parseResponse(resp.Choices[0].Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Debug(ctx, op+" completed", map[string]interface{}{
		"symbol": symbol, "adjustment": parsed.Adjustment,
		"model": e.modelName, "elapsed": time.Since(start).String(),
	})
	return &ports.Enhancement{
		Adjustment: parsed.Adjustment,
		Reasoning:  parsed.Reasoning,
		Factors:    parsed.Factors,
	}, nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseResponse extracts the JSON object from the completion, tolerating
// surrounding prose or markdown fences.
func parseResponse(raw string) (llmResponse, error) {
	var out llmResponse
	clean := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(clean), &out); err == nil {
		return out, nil
	}

	match := jsonObjectRe.FindString(clean)
	if match == "" {
		return out, fmt.Errorf("no JSON object found in model response")
	}
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return out, fmt.Errorf("failed to parse model JSON output: %w", err)
	}
	return out, nil
}

var _ ports.ConfidenceEnhancer = (*Enhancer)(nil)

// Package llmclient is the default LLM Extractor (spec §4.8, component
// C): a provider-agnostic wrapper dispatching to Anthropic Claude or
// Google Gemini depending on configuration, adapted from the teacher's
// ProviderFactory.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/extractionengine/internal/common"
	"github.com/ternarybob/extractionengine/internal/interfaces"
	"github.com/ternarybob/extractionengine/internal/model"
)

// ProviderType names which backend answers a request.
type ProviderType string

const (
	ProviderClaude ProviderType = "claude"
	ProviderGemini ProviderType = "gemini"
)

// ProviderFactory implements interfaces.LLMExtractor by prompting the
// configured backend for JSON matching the schema. It owns one rate
// limiter per provider, independent of the caller's watchdog deadline:
// the limiter bounds provider-wide request rate, the deadline bounds
// this call's wall-clock budget.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger

	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeReady  bool

	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

var _ interfaces.LLMExtractor = (*ProviderFactory)(nil)

// NewProviderFactory builds a ProviderFactory. Rate limits default to one
// request per RateLimit duration for each provider, matching the
// teacher's per-provider throttling.
func NewProviderFactory(geminiConfig *common.GeminiConfig, claudeConfig *common.ClaudeConfig, llmConfig *common.LLMConfig, logger arbor.ILogger) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		logger:        logger,
		geminiLimiter: rate.NewLimiter(rate.Every(parseDurationOr(geminiConfig.RateLimit, 4*time.Second)), 1),
		claudeLimiter: rate.NewLimiter(rate.Every(parseDurationOr(claudeConfig.RateLimit, time.Second)), 1),
	}
}

// retryConfigFor picks the retry policy by whether ctx carries a deadline:
// the synchronous path always calls through a context.WithTimeout derived
// from the watchdog's per-item budget, while background jobs run on
// context.Background() (spec §7's two retry policies).
func retryConfigFor(ctx context.Context) *RetryConfig {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return NewSyncRetryConfig()
	}
	return NewDefaultRetryConfig()
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// DetectProvider returns the backend named by the configured default
// provider, falling back to Claude for an unrecognised value. Model names
// are not inspected.
func (f *ProviderFactory) DetectProvider() ProviderType {
	switch f.llmConfig.DefaultProvider {
	case common.LLMProviderClaude:
		return ProviderClaude
	case common.LLMProviderGemini:
		return ProviderGemini
	default:
		return ProviderClaude
	}
}

// ExtractAll implements interfaces.LLMExtractor: fills every schema field
// to best effort (spec §4.8). Cancellation returns an empty record, never
// an error.
func (f *ProviderFactory) ExtractAll(ctx context.Context, schema model.Schema, text string) (model.FieldRecord, error) {
	prompt := buildExtractAllPrompt(schema, text)
	return f.promptForRecord(ctx, schema, prompt)
}

// ExtractMissing implements interfaces.LLMExtractor: resolves only the
// fields partial has null, and returns partial merged with whatever the
// model found (spec §4.8: "merged on return"). Fields partial already has
// a value for are passed through untouched.
func (f *ProviderFactory) ExtractMissing(ctx context.Context, schema model.Schema, text string, partial model.FieldRecord) (model.FieldRecord, error) {
	missingSchema := model.Schema{}
	for field, desc := range schema {
		if _, ok := partial.Get(field); !ok {
			missingSchema[field] = desc
		}
	}

	merged := partial.Clone()
	if len(missingSchema) == 0 {
		return merged, nil
	}

	prompt := buildExtractAllPrompt(missingSchema, text)
	filled, err := f.promptForRecord(ctx, missingSchema, prompt)
	if err != nil {
		return merged, err
	}

	merged.MergeMissing(filled)
	return merged, nil
}

// promptForRecord dispatches to the configured provider and parses its
// response into a field record restricted to schema's keys. On context
// cancellation it returns an empty record rather than propagating the
// cancellation as an error, per spec §4.8.
func (f *ProviderFactory) promptForRecord(ctx context.Context, schema model.Schema, prompt string) (model.FieldRecord, error) {
	select {
	case <-ctx.Done():
		return model.FieldRecord{}, nil
	default:
	}

	var raw string
	var err error

	switch f.DetectProvider() {
	case ProviderClaude:
		raw, err = f.callClaude(ctx, prompt)
	default:
		raw, err = f.callGemini(ctx, prompt)
	}

	if err != nil {
		if ctx.Err() != nil {
			return model.FieldRecord{}, nil
		}
		return model.FieldRecord{}, err
	}

	return parseFieldRecord(schema, raw), nil
}

func (f *ProviderFactory) getClaudeClient() anthropic.Client {
	if !f.claudeReady {
		f.claudeClient = anthropic.NewClient(option.WithAPIKey(f.claudeConfig.APIKey))
		f.claudeReady = true
	}
	return f.claudeClient
}

func (f *ProviderFactory) callClaude(ctx context.Context, prompt string) (string, error) {
	if err := f.claudeLimiter.Wait(ctx); err != nil {
		return "", err
	}

	client := f.getClaudeClient()
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(f.claudeConfig.Model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	retryConfig := retryConfigFor(ctx)
	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		backoff := retryConfig.CalculateBackoff(attempt, 0)
		if f.logger != nil {
			f.logger.Warn().Int("attempt", attempt+1).Err(apiErr).Msg("retrying Claude extraction call")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("claude extraction call failed: %w", apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func (f *ProviderFactory) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	f.geminiClient = client
	return client, nil
}

func (f *ProviderFactory) callGemini(ctx context.Context, prompt string) (string, error) {
	if err := f.geminiLimiter.Wait(ctx); err != nil {
		return "", err
	}

	client, err := f.getGeminiClient(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	retryConfig := retryConfigFor(ctx)
	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = client.Models.GenerateContent(ctx, f.geminiConfig.Model, contents, config)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = retryConfig.CalculateBackoff(attempt, 0)
		}

		if f.logger != nil {
			f.logger.Warn().Int("attempt", attempt+1).Err(apiErr).Msg("retrying Gemini extraction call")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("gemini extraction call failed: %w", apiErr)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	return resp.Text(), nil
}

// buildExtractAllPrompt renders the schema as a field->description list
// and instructs the model to return a flat JSON object with exactly
// those keys, null where it cannot find a value.
func buildExtractAllPrompt(schema model.Schema, text string) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from the document text below. ")
	b.WriteString("Respond with a single JSON object whose keys are exactly the field names given, ")
	b.WriteString("and whose values are the extracted string, or null if not present. ")
	b.WriteString("Do not include any text outside the JSON object.\n\nFields:\n")
	for field, desc := range schema {
		fmt.Fprintf(&b, "- %s: %s\n", field, desc)
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(text)
	return b.String()
}

// parseFieldRecord decodes the model's JSON response into a field
// record restricted to schema's key set. Malformed payloads (spec §7
// MalformedProviderOutput) degrade to an empty record rather than an
// error, matching the synchronous-path DeadlineExceeded-equivalent
// handling described in the spec.
func parseFieldRecord(schema model.Schema, raw string) model.FieldRecord {
	cleaned := stripCodeFence(raw)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return model.FieldRecord{}
	}

	record := model.FieldRecord{}
	for field := range schema {
		value, ok := decoded[field]
		if !ok || value == nil {
			continue
		}
		if s, ok := value.(string); ok && s != "" {
			record.Set(field, s)
		}
	}
	return record
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

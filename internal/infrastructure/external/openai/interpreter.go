package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatClient is the part of the OpenAI client the interpreter needs
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Interpreter implements port.CommandInterpreter using OpenAI chat completions
type Interpreter struct {
	client  ChatClient
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewInterpreter creates an interpreter backed by the OpenAI API.
// baseURL is optional and points the client at a compatible endpoint;
// a positive timeout bounds each API call.
func NewInterpreter(apiKey, baseURL, model string, timeout time.Duration, prompts *PromptConfig, logger *zap.Logger) *Interpreter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return NewInterpreterWithClient(openai.NewClientWithConfig(cfg), model, prompts, logger)
}

// NewInterpreterWithClient creates an interpreter around an existing chat client
func NewInterpreterWithClient(client ChatClient, model string, prompts *PromptConfig, logger *zap.Logger) *Interpreter {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Interpreter{
		client:  client,
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

// interpretation is the JSON shape the model is asked to return
type interpretation struct {
	Kind        string   `json:"kind"`
	Target      string   `json:"target"`
	Value       *float64 `json:"value"`
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        string   `json:"unit"`
	Category    string   `json:"category"`
	Operation   string   `json:"operation"`
	Scope       string   `json:"scope"`
	Confidence  float64  `json:"confidence"`
}

// Interpret asks the model for a command. Transport failures are reported as
// port.ErrInterpreterUnavailable; unusable answers as entity.ErrMalformedCommand.
func (in *Interpreter) Interpret(ctx context.Context, transcript string, items []entity.QuoteItem) (*entity.VoiceEditCommand, error) {
	prompt, err := renderTemplate(in.prompts.Interpret.UserTemplate, map[string]interface{}{
		"Transcript": transcript,
		"Items":      items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	in.logger.Debug("Sending interpretation request to OpenAI",
		zap.String("model", in.model),
		zap.Int("items", len(items)))

	resp, err := in.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       in.model,
		Temperature: in.prompts.Interpret.Temperature,
		MaxTokens:   in.prompts.Interpret.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: in.prompts.Interpret.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		in.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", port.ErrInterpreterUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from OpenAI", port.ErrInterpreterUnavailable)
	}

	cmd, err := parseCommand(resp.Choices[0].Message.Content)
	if err != nil {
		in.logger.Error("Failed to parse interpretation",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, err
	}
	cmd.Transcript = transcript

	in.logger.Info("Transcript interpreted",
		zap.String("kind", string(cmd.Kind)),
		zap.String("target", cmd.Target),
		zap.Float64("confidence", cmd.Confidence))
	return cmd, nil
}

// parseCommand decodes the model output, falling back to the first JSON
// object embedded in surrounding text
func parseCommand(content string) (*entity.VoiceEditCommand, error) {
	var raw interpretation
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("%w: response is not JSON", entity.ErrMalformedCommand)
		}
		if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrMalformedCommand, err)
		}
	}

	cmd := &entity.VoiceEditCommand{
		Kind:        entity.CommandKind(strings.ToUpper(strings.TrimSpace(raw.Kind))),
		Target:      strings.TrimSpace(raw.Target),
		Value:       raw.Value,
		Description: strings.TrimSpace(raw.Description),
		Quantity:    raw.Quantity,
		Unit:        entity.ItemUnit(strings.ToLower(raw.Unit)),
		Category:    entity.ItemCategory(strings.ToLower(raw.Category)),
		Operation:   entity.BulkOperation(strings.ToLower(raw.Operation)),
		Scope:       strings.ToLower(strings.TrimSpace(raw.Scope)),
		Confidence:  clamp01(raw.Confidence),
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// extractJSON returns the first balanced JSON object in content, or ""
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escapeNext = true
		case c == '"':
			inString = !inString
		case c == '{' && !inString:
			depth++
		case c == '}' && !inString:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// Verify interface compliance
var _ port.CommandInterpreter = (*Interpreter)(nil)

package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// AIResult is the raw outcome of an AI classification call, before
// threshold/conflict resolution against the keyword cascade.
type AIResult struct {
	Category   Category
	Confidence float64
	Reasoning  string
}

// AIClassifier is implemented by the external AI call. ErrorKind lets the
// circuit breaker's caller categorize failures for metrics without
// string-matching twice.
type AIClassifier interface {
	Classify(ctx context.Context, text string) (AIResult, error)
}

// ErrorKind buckets AI call failures the way metrics (§6) report them.
type ErrorKind string

const (
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindParseError ErrorKind = "parse_error"
	ErrorKindAPIError   ErrorKind = "api_error"
)

// ClassifyErrorKind buckets an AI call error for metrics using the
// substring rules: "timeout" -> timeout, 429/"rate limit" -> rate_limit,
// "json"/"parse" -> parse_error, anything else -> api_error.
func ClassifyErrorKind(err error) ErrorKind {
	if err == nil {
		return ErrorKindAPIError
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ErrorKindTimeout
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return ErrorKindRateLimit
	case strings.Contains(msg, "json"), strings.Contains(msg, "parse"):
		return ErrorKindParseError
	default:
		return ErrorKindAPIError
	}
}

// OpenAIClassifier calls a chat-completion model and expects a JSON object
// back: {"category": "...", "confidence": 0.0, "reasoning": "..."}.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, baseURL, model string) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClassifier{client: openai.NewClientWithConfig(cfg), model: model}
}

const classifierSystemPrompt = `You classify a single accountant-chat message into exactly one of: REQUEST, SPAM, GRATITUDE, CLARIFICATION.
REQUEST: the client is asking the accountant to do or explain something.
SPAM: advertising or unrelated promotional content.
GRATITUDE: a thank-you or closing remark, no action needed.
CLARIFICATION: a short filler acknowledging a previous message.
Respond with a single JSON object: {"category": "...", "confidence": 0.0-1.0, "reasoning": "short reason"}.`

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (AIResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return AIResult{}, errors.Wrap(err, "ai classifier call failed")
	}
	if len(resp.Choices) == 0 {
		return AIResult{}, fmt.Errorf("ai classifier returned no choices")
	}

	var parsed struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return AIResult{}, errors.Wrap(err, "failed to parse ai classifier json response")
	}

	return AIResult{Category: Category(parsed.Category), Confidence: parsed.Confidence, Reasoning: parsed.Reasoning}, nil
}

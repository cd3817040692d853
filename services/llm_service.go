package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"

	"trends-backend/config"
	"trends-backend/models"
	"trends-backend/prompts"
)

// ErrEmptyCompletion is returned when the model sends no choices
var ErrEmptyCompletion = errors.New("llm returned no choices")

// NewLLMClient builds an OpenAI-compatible client for the configured provider.
// It returns nil when no key is configured.
func NewLLMClient(cfg config.LLMConfig) (*openai.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case "openai":
		clientConfig := openai.DefaultConfig(cfg.OpenAIKey)
		return openai.NewClientWithConfig(clientConfig), nil
	case "groq":
		clientConfig := openai.DefaultConfig(cfg.GroqKey)
		clientConfig.BaseURL = cfg.BaseURL
		return openai.NewClientWithConfig(clientConfig), nil
	default:
		return nil, fmt.Errorf("invalid llm provider: %s", cfg.Provider)
	}
}

// cleanJSONContent strips markdown code fences some models wrap JSON in
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// firstChoice returns the content of the first completion choice
func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return cleanJSONContent(resp.Choices[0].Message.Content), nil
}

// LLMTermSource asks the model for localized search queries
type LLMTermSource struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
}

func NewLLMTermSource(client ChatCompleter, model string, timeout time.Duration) *LLMTermSource {
	return &LLMTermSource{client: client, model: model, timeout: timeout}
}

func (s *LLMTermSource) Name() string {
	return "llm"
}

// Timeout bounds one expansion call
func (s *LLMTermSource) Timeout() time.Duration {
	return s.timeout
}

type expansionReply struct {
	Terms []string `json:"terms"`
}

func (s *LLMTermSource) ExpandTerms(ctx context.Context, topic string, country config.CountryProfile, window models.Window, max int) ([]string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.TermExpansionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompts.BuildExpansionPrompt(topic, country, window, max)},
		},
		Temperature:    0.3,
		MaxTokens:      200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, &models.ProviderError{Provider: "llm", Op: "expand", Err: err}
	}

	content, err := firstChoice(resp)
	if err != nil {
		return nil, &models.ProviderError{Provider: "llm", Op: "expand", Err: err}
	}

	var reply expansionReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, &models.ProviderError{Provider: "llm", Op: "expand", Err: fmt.Errorf("parse reply: %w", err)}
	}

	var terms []string
	for _, t := range reply.Terms {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" || len([]rune(t)) > 100 || strings.EqualFold(t, topic) {
			continue
		}
		terms = append(terms, t)
		if max > 0 && len(terms) == max {
			break
		}
	}
	return terms, nil
}

package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/relaycrew/switchboard/agent/contract"
)

// LLMConfig configures the chat-completions team adapter. The defaults
// target an OpenRouter-compatible endpoint.
type LLMConfig struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey      string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model       string        `envconfig:"MODEL" split_words:"true" required:"true"`
	Temperature float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL     string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName    string        `envconfig:"SITE_NAME" split_words:"true"`
}

// LLMTeam adapts a chat model behind the contract.Team interface. It is a
// transport, not a reasoning engine: the capability snapshot and knowledge
// context go into the system prompt verbatim.
type LLMTeam struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	timeout     time.Duration
}

var _ contractx.Team = (*LLMTeam)(nil)

func NewLLMTeam(cfg LLMConfig) (*LLMTeam, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("llm api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("llm model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := openaisdk.NewClient(opts...)
	return &LLMTeam{
		client:      &client,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

type llmOutput struct {
	Reply   string `json:"reply"`
	Summary string `json:"summary,omitempty"`
}

func (t *LLMTeam) Execute(ctx context.Context, req contractx.TeamRequest) (contractx.TeamResult, error) {
	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	completion, err := t.client.Chat.Completions.New(cctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(t.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt(req)),
			openaisdk.UserMessage(string(req.Payload)),
		},
		Temperature: openaisdk.Float(t.temperature),
	})
	if err != nil {
		return contractx.TeamResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return contractx.TeamResult{}, errors.New("chat completion returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return contractx.TeamResult{}, errors.New("chat completion returned empty content")
	}

	// The model is asked for {"reply", "summary"} JSON; fall back to the
	// raw text when it does not comply.
	var out llmOutput
	if err := json.Unmarshal([]byte(content), &out); err == nil && out.Reply != "" {
		reply, err := json.Marshal(out.Reply)
		if err != nil {
			return contractx.TeamResult{}, fmt.Errorf("encode reply: %w", err)
		}
		return contractx.TeamResult{Reply: reply, Summary: out.Summary}, nil
	}

	reply, err := json.Marshal(content)
	if err != nil {
		return contractx.TeamResult{}, fmt.Errorf("encode reply: %w", err)
	}
	return contractx.TeamResult{Reply: reply}, nil
}

func systemPrompt(req contractx.TeamRequest) string {
	var b strings.Builder
	b.WriteString("You are an agent team handling one business request.\n")
	b.WriteString("Respond with JSON: {\"reply\": \"...\", \"summary\": \"...\"}. ")
	b.WriteString("The summary is one sentence describing the conversation outcome; omit it when nothing noteworthy happened.\n")

	if len(req.Capabilities) > 0 {
		b.WriteString("\nOperations currently available to you:\n")
		for _, cap := range req.Capabilities {
			b.WriteString("- ")
			b.WriteString(cap.QualifiedName())
			b.WriteString("\n")
		}
	}
	if len(req.Knowledge) > 0 {
		b.WriteString("\nRelevant known facts:\n")
		for _, item := range req.Knowledge {
			b.WriteString("- [")
			b.WriteString(string(item.Kind))
			b.WriteString("] ")
			b.WriteString(item.Topic)
			if item.Title != "" {
				b.WriteString(": ")
				b.WriteString(item.Title)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

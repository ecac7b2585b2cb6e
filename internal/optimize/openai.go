package optimize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/storyforge/internal/backend"
)

// OpenAIConfig holds configuration for the direct chat completions optimizer.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string // OpenAI-compatible base, e.g. https://api.openai.com/v1
	Model         string // default gpt-4.1-mini
	ImageTemplate string // default DefaultImageTemplate
	VideoTemplate string // default DefaultVideoTemplate
	MaxRetries    int
	Timeout       time.Duration // default 60s
	HTTPClient    *http.Client  // Optional (tests)
}

// OpenAI optimizes prompts with a direct chat completion call.
type OpenAI struct {
	model         string
	imageTemplate string
	videoTemplate string
	client        openai.Client
}

// NewOpenAI creates a chat completions optimizer.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("optimize api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	return &OpenAI{
		model:         cfg.Model,
		imageTemplate: cfg.ImageTemplate,
		videoTemplate: cfg.VideoTemplate,
		client:        openai.NewClient(opts...),
	}, nil
}

// Optimize implements Optimizer.
func (o *OpenAI) Optimize(ctx context.Context, field backend.PromptField, page backend.Page) (string, error) {
	if strings.TrimSpace(field.Of(page)) == "" {
		return "", fmt.Errorf("page %d has an empty %s", page.Index, field)
	}

	template, system := o.imageTemplate, imageSystemPrompt
	if field == backend.PromptVideo {
		template, system = o.videoTemplate, videoSystemPrompt
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(Render(template, field, page)),
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("optimize returned no choices")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("optimize returned an empty prompt")
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("optimize api error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("optimize api error (status %d)", apiErr.StatusCode)
	}
	return err
}

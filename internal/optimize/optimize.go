// Package optimize rewrites page prompts with an LLM.
//
// Two implementations exist: Backend routes through the backend's own
// optimize endpoints, OpenAI calls an OpenAI-compatible chat completions
// API directly using the same templates the backend uses.
package optimize

import (
	"context"
	"strings"

	"github.com/jackzampolin/storyforge/internal/backend"
)

// Optimizer rewrites one prompt of one page. Implementations must be safe
// for concurrent use.
type Optimizer interface {
	Optimize(ctx context.Context, field backend.PromptField, page backend.Page) (string, error)
}

// Mode selects an Optimizer implementation.
type Mode string

const (
	ModeBackend Mode = "backend"
	ModeOpenAI  Mode = "openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4.1-mini"

// DefaultVideoTemplate and DefaultImageTemplate match the backend's built-in
// templates. {prompt} is the prompt being rewritten, {narration} the English
// narration, and {image_prompt} / {video_prompt} the sibling prompt.
const (
	DefaultVideoTemplate = "根据下面旁白、图片提示词和视频提示词，在不改变故事大意的情况下，加上更多的细节，更合理的逻辑，优化修改润色生成新视频提示词，直接只输出新视频提示词，不要多余的解释：\n视频提示词：{prompt}\n图片提示词：{image_prompt}\n旁白：{narration}"
	DefaultImageTemplate = "根据下面旁白、视频提示词和图片提示词，在不改变故事大意的情况下，加上更多的视觉细节、场景描述和艺术风格，优化修改润色生成新图片提示词，直接只输出新图片提示词，不要多余的解释：\n图片提示词：{prompt}\n视频提示词：{video_prompt}\n旁白：{narration}"

	videoSystemPrompt = "You are a helpful assistant that optimizes video prompts."
	imageSystemPrompt = "You are a helpful assistant that optimizes image generation prompts for better visual quality."
)

// Render fills a template for the given field and page. An empty template
// selects the default for the field.
func Render(template string, field backend.PromptField, page backend.Page) string {
	if template == "" {
		template = DefaultImageTemplate
		if field == backend.PromptVideo {
			template = DefaultVideoTemplate
		}
	}
	r := strings.NewReplacer(
		"{prompt}", field.Of(page),
		"{narration}", page.EngNarration,
		"{image_prompt}", page.ImagePrompt,
		"{video_prompt}", page.VideoPrompt,
	)
	return r.Replace(template)
}

// Backend optimizes through the backend's /api/optimize endpoints.
type Backend struct {
	client *backend.Client
}

// NewBackend wraps a backend client.
func NewBackend(client *backend.Client) *Backend {
	return &Backend{client: client}
}

// Optimize implements Optimizer.
func (b *Backend) Optimize(ctx context.Context, field backend.PromptField, page backend.Page) (string, error) {
	return b.client.OptimizePrompt(ctx, field, page)
}

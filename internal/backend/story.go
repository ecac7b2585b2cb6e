package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/storyforge/internal/schema"
)

// Page is one script page of the loaded story.
type Page struct {
	Index        int    `json:"page_index" yaml:"page_index"`
	ImagePrompt  string `json:"image_prompt,omitempty" yaml:"image_prompt,omitempty"`
	VideoPrompt  string `json:"video_prompt,omitempty" yaml:"video_prompt,omitempty"`
	Narration    string `json:"narration,omitempty" yaml:"narration,omitempty"`
	EngNarration string `json:"eng_narration,omitempty" yaml:"eng_narration,omitempty"`
}

// Story is the loaded script.
type Story struct {
	Title string `json:"title" yaml:"title"`
	Pages []Page `json:"pages" yaml:"pages"`
}

// Indexes returns page indexes in script order.
func (s *Story) Indexes() []int {
	idx := make([]int, 0, len(s.Pages))
	for _, p := range s.Pages {
		idx = append(idx, p.Index)
	}
	return idx
}

// Page looks up a page by index.
func (s *Story) Page(index int) (Page, bool) {
	for _, p := range s.Pages {
		if p.Index == index {
			return p, true
		}
	}
	return Page{}, false
}

type wirePage struct {
	Index        int     `json:"page_index"`
	ImagePrompt  *string `json:"image_prompt"`
	VideoPrompt  *string `json:"video_prompt"`
	Narration    *string `json:"narration"`
	EngNarration *string `json:"eng_narration"`
}

type storyResponse struct {
	envelope
	Data *struct {
		Title  string     `json:"title"`
		Script []wirePage `json:"script"`
	} `json:"data"`
}

// Story reads GET /api/story. A backend without a loaded story returns
// ErrNoProject.
func (c *Client) Story(ctx context.Context) (*Story, error) {
	body, err := c.get(ctx, "/api/story")
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if err := schema.Validate("Story", body); err != nil {
		return nil, err
	}

	var resp storyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode story: %w", err)
	}
	if resp.failed() || resp.Data == nil {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoProject, resp.Error)
		}
		return nil, ErrNoProject
	}

	story := &Story{Title: resp.Data.Title, Pages: make([]Page, 0, len(resp.Data.Script))}
	for _, p := range resp.Data.Script {
		story.Pages = append(story.Pages, Page{
			Index:        p.Index,
			ImagePrompt:  deref(p.ImagePrompt),
			VideoPrompt:  deref(p.VideoPrompt),
			Narration:    deref(p.Narration),
			EngNarration: deref(p.EngNarration),
		})
	}
	return story, nil
}

// PromptField names an editable prompt on a page.
type PromptField string

const (
	PromptImage PromptField = "image_prompt"
	PromptVideo PromptField = "video_prompt"
)

// ParsePromptField accepts "image", "video" or the wire field names.
func ParsePromptField(s string) (PromptField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "image_prompt", "image-prompt":
		return PromptImage, nil
	case "video", "video_prompt", "video-prompt":
		return PromptVideo, nil
	}
	return "", fmt.Errorf("unknown prompt field: %q", s)
}

// Of returns the page's current value for the field.
func (f PromptField) Of(p Page) string {
	if f == PromptVideo {
		return p.VideoPrompt
	}
	return p.ImagePrompt
}

// UpdatePrompt persists a prompt via POST /api/story/update-prompt.
func (c *Client) UpdatePrompt(ctx context.Context, page int, field PromptField, value string) error {
	payload := map[string]any{
		"page_index":  page,
		"prompt_type": string(field),
		"value":       value,
	}
	body, err := c.post(ctx, "/api/story/update-prompt", payload)
	if err != nil {
		return fmt.Errorf("failed to update %s for page %d: %w", field, page, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode update response: %w", err)
	}
	if env.failed() {
		return fmt.Errorf("failed to update %s for page %d: %s", field, page, env.Error)
	}
	return nil
}

type optimizeResponse struct {
	envelope
	NewPrompt string `json:"new_prompt"`
}

// OptimizePrompt asks the backend to rewrite one page's prompt via
// POST /api/optimize/{image,video}-prompt. The result is not persisted.
func (c *Client) OptimizePrompt(ctx context.Context, field PromptField, page Page) (string, error) {
	path := "/api/optimize/image-prompt"
	if field == PromptVideo {
		path = "/api/optimize/video-prompt"
	}
	payload := map[string]any{
		"page_index":    page.Index,
		"image_prompt":  page.ImagePrompt,
		"video_prompt":  page.VideoPrompt,
		"narration":     page.Narration,
		"eng_narration": page.EngNarration,
	}

	body, err := c.post(ctx, path, payload)
	if err != nil {
		return "", fmt.Errorf("optimize %s page %d: %w", field, page.Index, err)
	}
	var resp optimizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode optimize response: %w", err)
	}
	if resp.failed() {
		msg := resp.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return "", errors.New(msg)
	}
	out := strings.TrimSpace(resp.NewPrompt)
	if out == "" {
		return "", fmt.Errorf("optimize %s page %d: empty result", field, page.Index)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

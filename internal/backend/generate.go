package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackzampolin/storyforge/internal/status"
)

// UnitPath returns the generate endpoint for one unit.
func UnitPath(kind status.Kind, unit int, lang status.Lang) (string, error) {
	switch kind {
	case status.KindCharacterSheet:
		return "/api/generate/character-sheet", nil
	case status.KindSceneSheet:
		return "/api/generate/scene-sheet", nil
	case status.KindItemSheet:
		return "/api/generate/item-sheet", nil
	case status.KindImage:
		return fmt.Sprintf("/api/generate/page-image/%d", unit), nil
	case status.KindVideo:
		return fmt.Sprintf("/api/generate/page-video/%d", unit), nil
	case status.KindAudio:
		if lang == "" {
			lang = status.LangCN
		}
		q := url.Values{"lang": []string{string(lang)}}
		return fmt.Sprintf("/api/generate/page-audio/%d?%s", unit, q.Encode()), nil
	}
	return "", fmt.Errorf("unsupported kind: %q", kind)
}

// RunUnit performs one generate call and blocks until the backend answers.
// A response declaring failure becomes *UnitError. The call is never retried.
func (c *Client) RunUnit(ctx context.Context, kind status.Kind, unit int, lang status.Lang) error {
	path, err := UnitPath(kind, unit, lang)
	if err != nil {
		return err
	}
	if kind != status.KindAudio {
		lang = ""
	}

	body, err := c.post(ctx, path, nil)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return &UnitError{Kind: kind, Unit: unit, Lang: lang, Message: httpErr.Error()}
		}
		return fmt.Errorf("%s unit %d: %w", kind, unit, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &UnitError{Kind: kind, Unit: unit, Lang: lang, Message: "malformed response"}
	}
	if env.failed() {
		msg := env.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return &UnitError{Kind: kind, Unit: unit, Lang: lang, Message: msg}
	}

	c.logger.Debug("unit generated", "kind", kind, "unit", unit, "lang", lang, "message", env.Message)
	return nil
}

// GenerateSRT asks the backend to build subtitle files from existing audio.
func (c *Client) GenerateSRT(ctx context.Context) error {
	body, err := c.post(ctx, "/api/generate/project-srt", nil)
	if err != nil {
		return fmt.Errorf("srt generation failed: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode srt response: %w", err)
	}
	if env.failed() {
		return fmt.Errorf("srt generation failed: %s", env.Error)
	}
	return nil
}

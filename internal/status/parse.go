package status

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackzampolin/storyforge/internal/schema"
)

type wireResponse struct {
	Success     *bool      `json:"success"`
	Error       string     `json:"error"`
	ProjectName *string    `json:"project_name"`
	Status      wireStatus `json:"status"`
}

type wireStatus struct {
	CharacterSheet *string             `json:"character_sheet"`
	SceneSheet     *string             `json:"scene_sheet"`
	ItemSheet      *string             `json:"item_sheet"`
	SRT            *string             `json:"srt"`
	Pages          map[string]wirePage `json:"pages"`
}

type wirePage struct {
	Image    *string         `json:"image"`
	Video    *string         `json:"video"`
	Audio    json.RawMessage `json:"audio"`
	Selected *bool           `json:"selected"`
}

// Parse decodes a GET /api/status body into a normalized Snapshot.
// The payload is validated against the Status schema first, so callers only
// ever see well-formed snapshots or an error.
func Parse(body []byte) (*Snapshot, error) {
	if err := schema.Validate("Status", body); err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("status endpoint reported failure: %s", msg)
	}

	snap := Empty()
	if resp.ProjectName != nil {
		snap.Project = *resp.ProjectName
	}
	snap.Sheets[KindCharacterSheet] = statusOf(resp.Status.CharacterSheet)
	snap.Sheets[KindSceneSheet] = statusOf(resp.Status.SceneSheet)
	snap.Sheets[KindItemSheet] = statusOf(resp.Status.ItemSheet)
	snap.SRT = statusOf(resp.Status.SRT)

	for key, wp := range resp.Status.Pages {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid page key %q: %w", key, err)
		}
		audio, err := parseAudio(wp.Audio)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", idx, err)
		}
		snap.Pages[idx] = PageStatus{
			Image:    statusOf(wp.Image),
			Video:    statusOf(wp.Video),
			Audio:    audio,
			Selected: wp.Selected != nil && *wp.Selected,
		}
	}

	return snap, nil
}

// parseAudio normalizes the audio field. The backend historically stored a
// single scalar for Chinese narration; newer versions store {"cn":..,"en":..}.
func parseAudio(raw json.RawMessage) (map[Lang]Status, error) {
	audio := map[Lang]Status{LangCN: None, LangEN: None}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return audio, nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var scalar string
		if err := json.Unmarshal(raw, &scalar); err != nil {
			return nil, fmt.Errorf("invalid audio status: %w", err)
		}
		audio[LangCN] = ParseStatus(scalar)
		return audio, nil
	}

	var byLang map[string]*string
	if err := json.Unmarshal(raw, &byLang); err != nil {
		return nil, fmt.Errorf("invalid audio status: %w", err)
	}
	for code, v := range byLang {
		lang, err := ParseLang(code)
		if err != nil {
			continue
		}
		audio[lang] = statusOf(v)
	}
	return audio, nil
}

func statusOf(v *string) Status {
	if v == nil {
		return None
	}
	return ParseStatus(*v)
}

// Package status models the backend's per-unit completion state.
//
// A Snapshot is a point-in-time read of GET /api/status. It is parsed once,
// normalized (the legacy scalar audio form becomes a per-language map), and
// then consulted by planners to decide which units to skip.
package status

import (
	"fmt"
	"strings"
)

// Status is the completion state of one unit for one kind.
type Status string

const (
	None       Status = "none"
	Generating Status = "generating"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

// ParseStatus maps a wire value to a Status. Unknown or empty values are None.
func ParseStatus(v string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(v))) {
	case Generating:
		return Generating
	case Completed:
		return Completed
	case Failed:
		return Failed
	default:
		return None
	}
}

// Kind identifies what a job generates.
type Kind string

const (
	KindCharacterSheet Kind = "character_sheet"
	KindSceneSheet     Kind = "scene_sheet"
	KindItemSheet      Kind = "item_sheet"
	KindImage          Kind = "image"
	KindVideo          Kind = "video"
	KindAudio          Kind = "audio"
)

// SheetKinds lists the design-reference kinds in prerequisite order.
var SheetKinds = []Kind{KindCharacterSheet, KindSceneSheet, KindItemSheet}

// IsSheet reports whether k is a singleton design-reference kind.
func (k Kind) IsSheet() bool {
	switch k {
	case KindCharacterSheet, KindSceneSheet, KindItemSheet:
		return true
	}
	return false
}

// ParseKind accepts canonical kind names plus short sheet aliases
// ("character", "scene", "item").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "character", "character_sheet", "character-sheet":
		return KindCharacterSheet, nil
	case "scene", "scene_sheet", "scene-sheet":
		return KindSceneSheet, nil
	case "item", "item_sheet", "item-sheet":
		return KindItemSheet, nil
	case "image", "images":
		return KindImage, nil
	case "video", "videos":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	}
	return "", fmt.Errorf("unknown kind: %q", s)
}

// Lang is a narration language code.
type Lang string

const (
	LangCN Lang = "cn"
	LangEN Lang = "en"
)

// Languages lists the supported narration languages.
var Languages = []Lang{LangCN, LangEN}

// ParseLang validates a language code.
func ParseLang(s string) (Lang, error) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case LangCN:
		return LangCN, nil
	case LangEN:
		return LangEN, nil
	}
	return "", fmt.Errorf("unknown language: %q", s)
}

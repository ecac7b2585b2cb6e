package status

import (
	"sort"
)

// PageStatus holds the per-kind state of one page.
type PageStatus struct {
	Image    Status          `json:"image" yaml:"image"`
	Video    Status          `json:"video" yaml:"video"`
	Audio    map[Lang]Status `json:"audio" yaml:"audio"`
	Selected bool            `json:"selected" yaml:"selected"`
}

// Snapshot is a normalized read of the backend's completion state.
// The zero value and a nil *Snapshot both behave as "nothing known".
type Snapshot struct {
	Project string             `json:"project,omitempty" yaml:"project,omitempty"`
	Sheets  map[Kind]Status    `json:"sheets" yaml:"sheets"`
	SRT     Status             `json:"srt" yaml:"srt"`
	Pages   map[int]PageStatus `json:"pages" yaml:"pages"`
}

// Empty returns a snapshot with no known completions.
func Empty() *Snapshot {
	return &Snapshot{
		Sheets: make(map[Kind]Status),
		SRT:    None,
		Pages:  make(map[int]PageStatus),
	}
}

// Of returns the status of a unit. lang is only consulted for KindAudio;
// unit is ignored for sheet kinds.
func (s *Snapshot) Of(kind Kind, unit int, lang Lang) Status {
	if s == nil {
		return None
	}
	if kind.IsSheet() {
		if st, ok := s.Sheets[kind]; ok {
			return st
		}
		return None
	}

	page, ok := s.Pages[unit]
	if !ok {
		return None
	}
	var st Status
	switch kind {
	case KindImage:
		st = page.Image
	case KindVideo:
		st = page.Video
	case KindAudio:
		st = page.Audio[lang]
	}
	if st == "" {
		return None
	}
	return st
}

// Completed reports whether the unit's artifact is known to exist.
func (s *Snapshot) Completed(kind Kind, unit int, lang Lang) bool {
	return s.Of(kind, unit, lang) == Completed
}

// Selected reports whether the page is flagged as selected.
func (s *Snapshot) Selected(unit int) bool {
	if s == nil {
		return false
	}
	return s.Pages[unit].Selected
}

// PageIndexes returns the known page indexes in ascending order.
func (s *Snapshot) PageIndexes() []int {
	if s == nil {
		return nil
	}
	idx := make([]int, 0, len(s.Pages))
	for i := range s.Pages {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Counts tallies statuses for one kind (and language, for audio).
type Counts struct {
	None       int `json:"none" yaml:"none"`
	Generating int `json:"generating" yaml:"generating"`
	Completed  int `json:"completed" yaml:"completed"`
	Failed     int `json:"failed" yaml:"failed"`
}

func (c *Counts) add(st Status) {
	switch st {
	case Generating:
		c.Generating++
	case Completed:
		c.Completed++
	case Failed:
		c.Failed++
	default:
		c.None++
	}
}

// Summary aggregates page statuses per kind.
type Summary struct {
	Project string          `json:"project,omitempty" yaml:"project,omitempty"`
	Pages   int             `json:"pages" yaml:"pages"`
	Sheets  map[Kind]Status `json:"sheets" yaml:"sheets"`
	Image   Counts          `json:"image" yaml:"image"`
	Video   Counts          `json:"video" yaml:"video"`
	Audio   map[Lang]Counts `json:"audio" yaml:"audio"`
	SRT     Status          `json:"srt" yaml:"srt"`
}

// Summarize counts statuses across all known pages.
func (s *Snapshot) Summarize() Summary {
	sum := Summary{
		Sheets: make(map[Kind]Status),
		Audio:  make(map[Lang]Counts),
		SRT:    None,
	}
	if s == nil {
		return sum
	}
	sum.Project = s.Project
	sum.Pages = len(s.Pages)
	sum.SRT = s.SRT
	for _, k := range SheetKinds {
		sum.Sheets[k] = s.Of(k, 0, "")
	}
	for _, idx := range s.PageIndexes() {
		sum.Image.add(s.Of(KindImage, idx, ""))
		sum.Video.add(s.Of(KindVideo, idx, ""))
		for _, lang := range Languages {
			c := sum.Audio[lang]
			c.add(s.Of(KindAudio, idx, lang))
			sum.Audio[lang] = c
		}
	}
	return sum
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/jobcfg"
	"github.com/jackzampolin/storyforge/internal/status"
)

var retryLang string

var retryCmd = &cobra.Command{
	Use:   "retry <kind> [page]",
	Short: "Regenerate a single unit",
	Long: `Regenerate one unit with a single direct call. The status snapshot is
not consulted, so completed units are regenerated too.

Kinds: character_sheet, scene_sheet, item_sheet, image, video, audio.
Sheets take no page; audio defaults to --lang cn.

Examples:
  storyforge retry scene_sheet
  storyforge retry image 3
  storyforge retry audio 3 --lang en`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := status.ParseKind(args[0])
		if err != nil {
			return err
		}

		page := 0
		switch {
		case kind.IsSheet() && len(args) == 2:
			return fmt.Errorf("%s does not take a page", kind)
		case !kind.IsSheet() && len(args) != 2:
			return fmt.Errorf("%s requires a page index", kind)
		case len(args) == 2:
			page, err = strconv.Atoi(args[1])
			if err != nil || page < 0 {
				return fmt.Errorf("invalid page index %q", args[1])
			}
		}

		var lang status.Lang
		if retryLang != "" {
			if kind != status.KindAudio {
				return fmt.Errorf("--lang only applies to audio")
			}
			if lang, err = status.ParseLang(retryLang); err != nil {
				return err
			}
		}

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		b := jobcfg.NewBuilder(a.config.Get(), a.logger, nil)
		p, err := b.Planner(b.Backend())
		if err != nil {
			return err
		}

		res, err := p.RetryUnit(cmd.Context(), kind, page, lang)
		if err != nil {
			return err
		}
		if err := api.Output(res); err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("retry failed: %s", res.Error)
		}
		return nil
	},
}

func init() {
	retryCmd.Flags().StringVar(&retryLang, "lang", "", "Audio language (cn, en)")
	rootCmd.AddCommand(retryCmd)
}

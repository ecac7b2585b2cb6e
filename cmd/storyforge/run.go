package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/jobcfg"
	"github.com/jackzampolin/storyforge/internal/planner"
	"github.com/jackzampolin/storyforge/internal/server/endpoints"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a batch in the foreground",
	Long: `Run a batch against the backend and wait for it to finish.

Completed units are skipped. Progress is printed to stderr and the final
result is written to stdout.

Examples:
  storyforge run sheets
  storyforge run images --pages 0,2,5
  storyforge run audio --lang en --srt
  storyforge run pipeline --selected`,
}

var runDescriptions = map[batches.Kind]string{
	batches.KindSheets:         "Generate missing design sheets",
	batches.KindImages:         "Generate missing page images",
	batches.KindVideos:         "Generate missing page videos",
	batches.KindAudio:          "Generate missing narration audio",
	batches.KindOptimizeImages: "Optimize and save image prompts",
	batches.KindOptimizeVideos: "Optimize and save video prompts",
	batches.KindPipeline:       "Sheets, then images, then videos",
}

func newRunKindCmd(kind batches.Kind) *cobra.Command {
	var spec batches.Spec
	var pages string
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: runDescriptions[kind],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			spec.Kind = kind
			if spec.Pages, err = endpoints.ParsePages(pages); err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
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

			res, err := batches.Execute(cmd.Context(), p, spec, batches.Hooks{
				Progress: stderrProgress(cmd),
			})
			if err != nil {
				// Setup failures still carry a result worth printing.
				if res.Outcome == planner.OutcomeSetupFailed {
					_ = api.Output(res)
				}
				return err
			}
			if err := api.Output(res); err != nil {
				return err
			}
			if res.Aborted {
				return fmt.Errorf("%s batch interrupted", kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pages, "pages", "", "Comma-separated page indexes (default all)")
	cmd.Flags().BoolVar(&spec.OnlySelected, "selected", false, "Only pages flagged selected")
	if kind == batches.KindAudio {
		cmd.Flags().StringSliceVar(&spec.Languages, "lang", nil, "Languages (cn, en; default audio.languages)")
		cmd.Flags().BoolVar(&spec.SRT, "srt", false, "Generate subtitles after the batch")
	}
	return cmd
}

func init() {
	for _, kind := range batches.Kinds {
		runCmd.AddCommand(newRunKindCmd(kind))
	}
	rootCmd.AddCommand(runCmd)
}

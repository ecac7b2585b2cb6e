package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/jobcfg"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize generation progress from the backend",
	Long: `Read the backend's status snapshot directly and print per-kind counts.

Use "storyforge api status" to ask a running server instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		client := jobcfg.NewBuilder(a.config.Get(), a.logger, nil).Backend()

		snap, err := client.FetchStatus(cmd.Context())
		if err != nil {
			return err
		}
		return api.Output(snap.Summarize())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

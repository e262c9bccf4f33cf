package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-settings/pkg/state"
)

func newMergeCommand(a *app) *cobra.Command {
	var defaults, out string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Layer the settings file over a defaults file",
		Long: `Layer the settings file over a defaults file. Objects merge key by key;
arrays and scalars from the settings file replace the defaults.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			doc, err := a.openLayered(defaults)
			if err != nil {
				return err
			}
			if out != "" {
				return state.WriteFile(a.fs, out, doc.Root())
			}
			if a.format == "" {
				a.format = "json"
			}
			return a.printValue(doc.Root())
		},
	}
	cmd.Flags().StringVar(&defaults, "defaults", "", "Defaults file (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the merged settings to this file instead of stdout")
	_ = cmd.MarkFlagRequired("defaults")
	return cmd
}

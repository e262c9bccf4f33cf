package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/rules"
)

var errNoRules = errors.New("no rules: pass --rules or set rules.file in the config")

func newValidateCommand(a *app) *cobra.Command {
	var rulesPath, engine string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the settings file against expression rules",
		Long: `Check the settings file against expression rules.

Each rule names a dotted path and an expression that must be true. The
expression sees value, present, path, settings, every top-level key, now,
args and metadata.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := a.ruleSet(rulesPath, engine)
			if err != nil {
				return err
			}
			if set == nil {
				return errNoRules
			}
			doc, err := a.openDocument(settings.WithValidator(set))
			if err != nil {
				return err
			}
			err = doc.Validate(cmd.Context())
			var validation *rules.ValidationError
			if errors.As(err, &validation) {
				warn := color.New(color.FgRed)
				for _, violation := range validation.Violations {
					_, _ = warn.Fprintf(a.stderr, "✗ %s: %s\n", violation.Path, violation.Message)
				}
				return fmt.Errorf("%d rule(s) failed", len(validation.Violations))
			}
			if err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Fprintf(a.stdout, "✓ %d rule(s) passed\n", len(set.Rules))
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules file (.yaml or .json)")
	cmd.Flags().StringVar(&engine, "engine", "", "Rule engine: expr, cel or js")
	return cmd
}

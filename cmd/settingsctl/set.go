package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/hydrate"
)

type valueMode struct {
	asJSON   bool
	asString bool
}

func newSetCommand(a *app) *cobra.Command {
	var (
		create    bool
		mode      valueMode
		rulesPath string
		engine    string
	)
	cmd := &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Assign a value at a dotted path",
		Long: `Assign a value at a dotted path and write the file back.

Values are parsed as YAML scalars, so 30 is a number and true a boolean.
Use --string to keep the raw text or --json to pass objects and arrays.
Missing intermediate containers are an error unless --create is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1], mode)
			if err != nil {
				return err
			}
			var opts []settings.Option
			if create || a.cfg.AutoCreate {
				opts = append(opts, settings.WithAutoCreate(true))
			}
			set, err := a.ruleSet(rulesPath, engine)
			if err != nil {
				return err
			}
			if set != nil {
				opts = append(opts, settings.WithValidator(set))
			}
			doc, err := a.openDocument(opts...)
			if err != nil {
				return err
			}
			if err := doc.SetContext(cmd.Context(), args[0], value); err != nil {
				return err
			}
			if err := doc.Validate(cmd.Context()); err != nil {
				return err
			}
			return a.writeDocument(doc)
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "Create missing intermediate containers")
	cmd.Flags().BoolVar(&mode.asJSON, "json", false, "Parse the value as JSON")
	cmd.Flags().BoolVar(&mode.asString, "string", false, "Store the value as a string without parsing")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules file checked before writing")
	cmd.Flags().StringVar(&engine, "engine", "", "Rule engine: expr, cel or js")
	cmd.MarkFlagsMutuallyExclusive("json", "string")
	return cmd
}

func newUnsetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <path>",
		Short: "Remove the value at a dotted path",
		Long:  "Remove the value at a dotted path. Array elements are cleared to null so later indexes keep their position.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.openDocument()
			if err != nil {
				return err
			}
			if err := doc.DeleteContext(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.writeDocument(doc)
		},
	}
}

func parseValue(raw string, mode valueMode) (any, error) {
	if mode.asString {
		return raw, nil
	}
	if mode.asJSON {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("parse JSON value: %w", err)
		}
		return value, nil
	}
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return raw, nil
	}
	return hydrate.Normalize(value)
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-settings/schema/jsonschema"
)

func newFlattenCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flatten",
		Short: "List every leaf path with its type and value",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			doc, err := a.openDocument()
			if err != nil {
				return err
			}
			fields := doc.Flatten()
			if format := strings.ToLower(a.format); format == "json" || format == "yaml" || format == "yml" {
				rows := make([]any, len(fields))
				for i, field := range fields {
					rows[i] = map[string]any{"path": field.Path, "type": field.Type, "value": field.Value}
				}
				return a.printValue(rows)
			}
			for _, field := range fields {
				encoded, err := json.Marshal(field.Value)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", field.Path, field.Type, encoded); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newSchemaCommand(a *app) *cobra.Command {
	var required, defaults bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print a JSON Schema describing the settings file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			doc, err := a.openDocument()
			if err != nil {
				return err
			}
			opts := []jsonschema.Option{jsonschema.WithTitle(doc.ID())}
			if required {
				opts = append(opts, jsonschema.WithRequired())
			}
			if defaults {
				opts = append(opts, jsonschema.WithDefaults())
			}
			schema, err := jsonschema.Generate(doc.Root(), opts...)
			if err != nil {
				return err
			}
			if a.format == "" || strings.EqualFold(a.format, "text") {
				a.format = "json"
			}
			return a.printValue(schema)
		},
	}
	cmd.Flags().BoolVar(&required, "required", false, "Mark every present key as required")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Record current values as defaults")
	return cmd
}

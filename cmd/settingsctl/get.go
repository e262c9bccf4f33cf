package main

import (
	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/state"
)

func newGetCommand(a *app) *cobra.Command {
	var (
		defaults string
		trace    bool
	)
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print the value at a dotted path",
		Long: `Print the value at a dotted path such as "mbox.hosts.0".

With --defaults the file is layered over a defaults file and --trace reports
which layer supplied the value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.openLayered(defaults)
			if err != nil {
				return err
			}
			if trace {
				_, provenance, err := doc.Trace(args[0])
				if err != nil {
					return err
				}
				return a.printValue(traceView(provenance))
			}
			value, err := doc.Lookup(args[0])
			if err != nil {
				return err
			}
			return a.printValue(value)
		},
	}
	cmd.Flags().StringVar(&defaults, "defaults", "", "Defaults file the settings file is layered over")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print per-layer provenance instead of the value")
	return cmd
}

// openLayered reads --file, optionally layered over a defaults file.
func (a *app) openLayered(defaultsPath string) (*settings.Document, error) {
	if defaultsPath == "" {
		return a.openDocument()
	}
	path, err := a.requireFile()
	if err != nil {
		return nil, err
	}
	stored, err := state.ReadFile(a.fs, path)
	if err != nil {
		return nil, err
	}
	defaults, err := state.ReadFile(a.fs, defaultsPath)
	if err != nil {
		return nil, err
	}
	return settings.NewLayeredDocument([]settings.Layer{
		{Name: path, Settings: stored},
		{Name: defaultsPath, Settings: defaults},
	}, a.documentOptions(settings.WithDocumentID(path))...)
}

func traceView(trace settings.Trace) map[string]any {
	layers := make([]any, 0, len(trace.Layers))
	for _, layer := range trace.Layers {
		entry := map[string]any{
			"layer": layer.Layer,
			"found": layer.Found,
		}
		if layer.Found {
			entry["value"] = layer.Value
		}
		layers = append(layers, entry)
	}
	view := map[string]any{
		"path":   trace.Path,
		"layers": layers,
	}
	if winner, ok := trace.Winner(); ok {
		view["winner"] = winner.Layer
	}
	return view
}

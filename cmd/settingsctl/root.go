package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/config"
	"github.com/goliatone/go-settings/pkg/logging"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/rules"
)

var errFileRequired = errors.New("--file is required")

// app carries everything commands need so tests can swap the filesystem and
// the output streams.
type app struct {
	fs     afero.Fs
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger

	file     string
	format   string
	logLevel string
}

func newApp(fs afero.Fs, cfg config.Config, stdout, stderr io.Writer) *app {
	return &app{
		fs:     fs,
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		logger: zerolog.Nop(),
	}
}

// newRootCommand creates the main root command that shows help by default.
func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "settingsctl",
		Short:         "Read and edit nested settings files by dotted path",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.setupLogger()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVarP(&a.file, "file", "f", "", "Settings file (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&a.format, "format", a.cfg.Format, "Output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", a.cfg.Log.Level, "Log level")

	rootCmd.AddCommand(
		newGetCommand(a),
		newSetCommand(a),
		newUnsetCommand(a),
		newFlattenCommand(a),
		newSchemaCommand(a),
		newValidateCommand(a),
		newMergeCommand(a),
		newStoreCommand(a),
	)
	return rootCmd
}

func (a *app) setupLogger() {
	cfg := logging.Config{
		Level:  a.logLevel,
		Format: a.cfg.Log.Format,
		File:   a.cfg.Log.File,
	}
	if cfg.File == "" {
		cfg.Writer = a.stderr
	}
	a.logger = logging.New(cfg)
}

func (a *app) documentOptions(extra ...settings.Option) []settings.Option {
	opts := []settings.Option{
		settings.WithAccessLogger(logging.AccessLogger(a.logger)),
	}
	return append(opts, extra...)
}

func (a *app) requireFile() (string, error) {
	if strings.TrimSpace(a.file) == "" {
		return "", errFileRequired
	}
	return a.file, nil
}

// openDocument reads --file into a document with id set to the file name.
func (a *app) openDocument(extra ...settings.Option) (*settings.Document, error) {
	path, err := a.requireFile()
	if err != nil {
		return nil, err
	}
	root, err := state.ReadFile(a.fs, path)
	if err != nil {
		return nil, err
	}
	opts := append([]settings.Option{settings.WithDocumentID(path)}, extra...)
	return settings.NewDocument(root, a.documentOptions(opts...)...), nil
}

func (a *app) writeDocument(doc *settings.Document) error {
	path, err := a.requireFile()
	if err != nil {
		return err
	}
	return state.WriteFile(a.fs, path, doc.Root())
}

// ruleSet loads rules from path, falling back to the configured rules file.
// It returns nil when neither is set.
func (a *app) ruleSet(path, engine string) (*rules.Set, error) {
	if path == "" {
		path = a.cfg.Rules.File
	}
	if path == "" {
		return nil, nil
	}
	if engine == "" {
		engine = a.cfg.Rules.Engine
	}
	loaded, err := rules.LoadRules(a.fs, path)
	if err != nil {
		return nil, err
	}
	evaluator, err := rules.EvaluatorByName(engine, rules.NewMapCache(), nil)
	if err != nil {
		return nil, err
	}
	return &rules.Set{
		Rules:     loaded,
		Evaluator: evaluator,
		Logger:    logging.EvaluatorLogger(a.logger),
	}, nil
}

func (a *app) printValue(value any) error {
	switch strings.ToLower(a.format) {
	case "json":
		return a.encode(state.JSONCodec{}, value)
	case "yaml", "yml":
		return a.encode(state.YAMLCodec{}, value)
	case "", "text":
		switch value.(type) {
		case map[string]any, []any:
			return a.encode(state.JSONCodec{}, value)
		case nil:
			_, err := fmt.Fprintln(a.stdout, "null")
			return err
		default:
			_, err := fmt.Fprintln(a.stdout, value)
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", a.format)
	}
}

func (a *app) encode(codec state.Codec, value any) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

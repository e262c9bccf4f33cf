package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/state"
)

const dirScheme = "dir://"

var errDSNRequired = errors.New("--dsn is required (or set store.dsn in the config)")

type storeHandle struct {
	state.Store
	close func() error
}

func newStoreCommand(a *app) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Work with settings snapshots kept in a store",
		Long: `Work with settings snapshots kept in a store.

Refs are written extension/property. The store DSN is either a SQLite DSN
such as "file:settings.db" or "dir:///var/lib/settings" for one file per ref.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", a.cfg.Store.DSN, "Store DSN")

	open := func(ctx context.Context) (*storeHandle, error) {
		return a.openStore(ctx, dsn)
	}
	cmd.AddCommand(
		newStoreGetCommand(a, open),
		newStoreSetCommand(a, open),
		newStoreImportCommand(a, open),
		newStoreExportCommand(a, open),
		newStoreDeleteCommand(open),
	)
	return cmd
}

func (a *app) openStore(ctx context.Context, dsn string) (*storeHandle, error) {
	switch {
	case strings.TrimSpace(dsn) == "":
		return nil, errDSNRequired
	case strings.HasPrefix(dsn, dirScheme):
		codec := state.Codec(state.JSONCodec{})
		if strings.EqualFold(a.format, "yaml") || strings.EqualFold(a.format, "yml") {
			codec = state.YAMLCodec{}
		}
		store := state.NewFileStore(a.fs, strings.TrimPrefix(dsn, dirScheme), state.WithCodec(codec))
		return &storeHandle{Store: store, close: func() error { return nil }}, nil
	default:
		store, err := state.OpenSQLiteStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &storeHandle{Store: store, close: store.Close}, nil
	}
}

func (a *app) resolver(store state.Store, opts ...settings.Option) state.Resolver {
	hook := activity.HookFunc(func(_ context.Context, event activity.Event) error {
		a.logger.Info().
			Str("verb", event.Verb).
			Str("object", event.ObjectID).
			Str("path", event.Path).
			Msg("settings activity")
		return nil
	})
	emitter := activity.NewEmitter(activity.Hooks{hook}, activity.Config{Enabled: true})
	opts = append(opts, settings.WithActivityEmitter(emitter))
	return state.Resolver{
		Store:   store,
		Emitter: emitter,
		Options: a.documentOptions(opts...),
	}
}

type storeOpener func(context.Context) (*storeHandle, error)

func newStoreGetCommand(a *app, open storeOpener) *cobra.Command {
	var defaults string
	cmd := &cobra.Command{
		Use:   "get <ref> [path]",
		Short: "Print a stored snapshot or one value in it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ref, err := state.ParseRef(args[0])
			if err != nil {
				return err
			}
			var defaultValues map[string]any
			if defaults != "" {
				if defaultValues, err = state.ReadFile(a.fs, defaults); err != nil {
					return err
				}
			}
			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, store.close()) }()

			doc, _, err := a.resolver(store).Open(cmd.Context(), ref, defaultValues)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return a.printValue(doc.Root())
			}
			value, err := doc.Lookup(args[1])
			if err != nil {
				return err
			}
			return a.printValue(value)
		},
	}
	cmd.Flags().StringVar(&defaults, "defaults", "", "Defaults file the snapshot is layered over")
	return cmd
}

func newStoreSetCommand(a *app, open storeOpener) *cobra.Command {
	var (
		create bool
		mode   valueMode
	)
	cmd := &cobra.Command{
		Use:   "set <ref> <path> <value>",
		Short: "Assign a value inside a stored snapshot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ref, err := state.ParseRef(args[0])
			if err != nil {
				return err
			}
			value, err := parseValue(args[2], mode)
			if err != nil {
				return err
			}
			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, store.close()) }()

			var opts []settings.Option
			if create || a.cfg.AutoCreate {
				opts = append(opts, settings.WithAutoCreate(true))
			}
			_, meta, err := a.resolver(store, opts...).Mutate(cmd.Context(), ref, state.Meta{}, func(doc *settings.Document) error {
				return doc.SetContext(cmd.Context(), args[1], value)
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%s %s\n", ref, meta.SnapshotID)
			return err
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "Create missing intermediate containers")
	cmd.Flags().BoolVar(&mode.asJSON, "json", false, "Parse the value as JSON")
	cmd.Flags().BoolVar(&mode.asString, "string", false, "Store the value as a string without parsing")
	cmd.MarkFlagsMutuallyExclusive("json", "string")
	return cmd
}

func newStoreImportCommand(a *app, open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "import <ref>",
		Short: "Save --file as the snapshot for ref",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ref, err := state.ParseRef(args[0])
			if err != nil {
				return err
			}
			doc, err := a.openDocument()
			if err != nil {
				return err
			}
			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, store.close()) }()

			meta, err := a.resolver(store).Save(cmd.Context(), ref, doc, state.Meta{})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%s %s\n", ref, meta.SnapshotID)
			return err
		},
	}
}

func newStoreExportCommand(a *app, open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "export <ref>",
		Short: "Write the snapshot for ref to --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ref, err := state.ParseRef(args[0])
			if err != nil {
				return err
			}
			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, store.close()) }()

			snapshot, _, ok, err := store.Load(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no snapshot stored for %s", ref)
			}
			return a.writeDocument(settings.NewDocument(snapshot))
		},
	}
}

func newStoreDeleteCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ref>",
		Short: "Remove the snapshot for ref",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ref, err := state.ParseRef(args[0])
			if err != nil {
				return err
			}
			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, store.close()) }()
			return store.Delete(cmd.Context(), ref)
		},
	}
}

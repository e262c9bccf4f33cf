package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/config"
	"github.com/goliatone/go-settings/pkg/state"
)

const settingsFile = "/etc/app/settings.json"

func newTestFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, state.WriteFile(fs, settingsFile, map[string]any{
		"clientCode": "ACME",
		"mbox": map[string]any{
			"timeout": 30,
			"hosts":   []any{"a.example.com", "b.example.com"},
		},
	}))
	return fs
}

func execute(t *testing.T, fs afero.Fs, cfg config.Config, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(newApp(fs, cfg, &stdout, &stderr))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func readSettings(t *testing.T, fs afero.Fs, path string) map[string]any {
	t.Helper()
	root, err := state.ReadFile(fs, path)
	require.NoError(t, err)
	return root
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	cmd := newRootCommand(newApp(afero.NewMemMapFs(), config.Config{}, &bytes.Buffer{}, &bytes.Buffer{}))
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"get", "set", "unset", "flatten", "schema", "validate", "merge", "store"} {
		assert.Contains(t, names, want)
	}
}

func TestGetCommand(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)

	out, _, err := execute(t, fs, config.Config{}, "get", "-f", settingsFile, "mbox.hosts.1")
	require.NoError(t, err)
	assert.Equal(t, "b.example.com\n", out)

	out, _, err = execute(t, fs, config.Config{}, "get", "-f", settingsFile, "mbox.timeout")
	require.NoError(t, err)
	assert.Equal(t, "30\n", out)

	out, _, err = execute(t, fs, config.Config{}, "get", "-f", settingsFile, "--format", "json", "mbox")
	require.NoError(t, err)
	var mbox map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &mbox))
	assert.EqualValues(t, 30, mbox["timeout"])
}

func TestGetCommandErrors(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)

	_, _, err := execute(t, fs, config.Config{}, "get", "-f", settingsFile, "mbox.port")
	require.ErrorIs(t, err, settings.ErrMissingKey)

	_, _, err = execute(t, fs, config.Config{}, "get", "-f", settingsFile, "smtp.port")
	require.ErrorIs(t, err, settings.ErrMissingContainer)

	_, _, err = execute(t, fs, config.Config{}, "get", "mbox")
	require.ErrorIs(t, err, errFileRequired)
}

func TestGetCommandTraceWithDefaults(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)
	require.NoError(t, state.WriteFile(fs, "/etc/app/defaults.yaml", map[string]any{
		"mbox":   map[string]any{"timeout": 10, "retries": 3},
		"region": "eu",
	}))

	out, _, err := execute(t, fs, config.Config{}, "get", "-f", settingsFile, "--defaults", "/etc/app/defaults.yaml", "mbox.retries")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, _, err = execute(t, fs, config.Config{}, "get", "-f", settingsFile, "--defaults", "/etc/app/defaults.yaml", "--trace", "--format", "json", "mbox.timeout")
	require.NoError(t, err)
	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, settingsFile, view["winner"])
	assert.Len(t, view["layers"], 2)
}

func TestSetCommand(t *testing.T) {
	t.Parallel()

	t.Run("parses yaml scalars", func(t *testing.T) {
		fs := newTestFs(t)
		_, _, err := execute(t, fs, config.Config{}, "set", "-f", settingsFile, "mbox.timeout", "45")
		require.NoError(t, err)
		_, _, err = execute(t, fs, config.Config{}, "set", "-f", settingsFile, "mbox.hosts.2", "c.example.com")
		require.NoError(t, err)

		root := readSettings(t, fs, settingsFile)
		timeout, _ := settings.Get(root, "mbox.timeout")
		assert.EqualValues(t, 45, timeout)
		hosts, _ := settings.Get(root, "mbox.hosts")
		assert.Equal(t, []any{"a.example.com", "b.example.com", "c.example.com"}, hosts)
	})

	t.Run("missing containers need create", func(t *testing.T) {
		fs := newTestFs(t)
		_, _, err := execute(t, fs, config.Config{}, "set", "-f", settingsFile, "smtp.port", "25")
		require.ErrorIs(t, err, settings.ErrMissingContainer)

		_, _, err = execute(t, fs, config.Config{}, "set", "-f", settingsFile, "--create", "smtp.port", "25")
		require.NoError(t, err)
		port, ok := settings.Get(readSettings(t, fs, settingsFile), "smtp.port")
		require.True(t, ok)
		assert.EqualValues(t, 25, port)
	})

	t.Run("auto create from config", func(t *testing.T) {
		fs := newTestFs(t)
		_, _, err := execute(t, fs, config.Config{AutoCreate: true}, "set", "-f", settingsFile, "smtp.hosts.0", "mx")
		require.NoError(t, err)
		hosts, _ := settings.Get(readSettings(t, fs, settingsFile), "smtp.hosts")
		assert.Equal(t, []any{"mx"}, hosts)
	})

	t.Run("string and json values", func(t *testing.T) {
		fs := newTestFs(t)
		_, _, err := execute(t, fs, config.Config{}, "set", "-f", settingsFile, "--string", "clientCode", "true")
		require.NoError(t, err)
		_, _, err = execute(t, fs, config.Config{}, "set", "-f", settingsFile, "--json", "mbox.tls", `{"enabled":true,"ciphers":["a"]}`)
		require.NoError(t, err)

		root := readSettings(t, fs, settingsFile)
		code, _ := settings.Get(root, "clientCode")
		assert.Equal(t, "true", code)
		enabled, _ := settings.Get(root, "mbox.tls.enabled")
		assert.Equal(t, true, enabled)
	})

	t.Run("rules reject invalid writes", func(t *testing.T) {
		fs := newTestFs(t)
		require.NoError(t, afero.WriteFile(fs, "/etc/app/rules.yaml", []byte("- path: mbox.timeout\n  expr: value <= 60\n"), 0o644))

		_, _, err := execute(t, fs, config.Config{}, "set", "-f", settingsFile, "--rules", "/etc/app/rules.yaml", "mbox.timeout", "120")
		require.Error(t, err)
		timeout, _ := settings.Get(readSettings(t, fs, settingsFile), "mbox.timeout")
		assert.EqualValues(t, 30, timeout, "file must be untouched")
	})
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		mode valueMode
		want any
	}{
		{raw: "30", want: 30},
		{raw: "1.5", want: 1.5},
		{raw: "true", want: true},
		{raw: "hello", want: "hello"},
		{raw: "", want: ""},
		{raw: "[a, b]", want: []any{"a", "b"}},
		{raw: "{a: 1}", want: map[string]any{"a": 1}},
		{raw: "30", mode: valueMode{asString: true}, want: "30"},
		{raw: `{"a":[1]}`, mode: valueMode{asJSON: true}, want: map[string]any{"a": []any{float64(1)}}},
	}
	for _, tc := range cases {
		got, err := parseValue(tc.raw, tc.mode)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	_, err := parseValue("{", valueMode{asJSON: true})
	require.Error(t, err)
}

func TestUnsetCommand(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)

	_, _, err := execute(t, fs, config.Config{}, "unset", "-f", settingsFile, "mbox.hosts.0")
	require.NoError(t, err)
	_, _, err = execute(t, fs, config.Config{}, "unset", "-f", settingsFile, "clientCode")
	require.NoError(t, err)
	_, _, err = execute(t, fs, config.Config{}, "unset", "-f", settingsFile, "missing.path")
	require.NoError(t, err)

	root := readSettings(t, fs, settingsFile)
	assert.NotContains(t, root, "clientCode")
	hosts, _ := settings.Get(root, "mbox.hosts")
	assert.Equal(t, []any{nil, "b.example.com"}, hosts)
}

func TestFlattenCommand(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)

	out, _, err := execute(t, fs, config.Config{}, "flatten", "-f", settingsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "clientCode\tstring\t\"ACME\"", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "mbox.hosts.0\t"))
}

func TestSchemaCommand(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)

	out, _, err := execute(t, fs, config.Config{}, "schema", "-f", settingsFile, "--required")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, settingsFile, schema["title"])
	assert.ElementsMatch(t, []any{"clientCode", "mbox"}, schema["required"])
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/app/rules.yaml", []byte(`
rules:
  - path: mbox.timeout
    expr: value >= 10
  - path: clientCode
    required: true
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/etc/app/strict.yaml", []byte(`
rules:
  - path: mbox.timeout
    expr: double(value) > 60.0
    message: timeout must exceed a minute
  - path: region
    required: true
`), 0o644))

	out, _, err := execute(t, fs, config.Config{}, "validate", "-f", settingsFile, "--rules", "/etc/app/rules.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rule(s) passed")

	_, stderr, err := execute(t, fs, config.Config{}, "validate", "-f", settingsFile, "--rules", "/etc/app/strict.yaml", "--engine", "cel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 rule(s) failed")
	assert.Contains(t, stderr, "mbox.timeout: timeout must exceed a minute")
	assert.Contains(t, stderr, "region: is required")

	cfg := config.Config{Rules: config.RulesConfig{File: "/etc/app/rules.yaml"}}
	_, _, err = execute(t, fs, cfg, "validate", "-f", settingsFile)
	require.NoError(t, err)

	_, _, err = execute(t, fs, config.Config{}, "validate", "-f", settingsFile)
	require.ErrorIs(t, err, errNoRules)
}

func TestMergeCommand(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)
	require.NoError(t, state.WriteFile(fs, "/etc/app/defaults.json", map[string]any{
		"mbox":   map[string]any{"timeout": 10, "retries": 3, "hosts": []any{"default"}},
		"region": "eu",
	}))

	_, _, err := execute(t, fs, config.Config{}, "merge", "-f", settingsFile, "--defaults", "/etc/app/defaults.json", "-o", "/tmp/merged.yaml")
	require.NoError(t, err)

	merged := readSettings(t, fs, "/tmp/merged.yaml")
	assert.Equal(t, "eu", merged["region"])
	retries, _ := settings.Get(merged, "mbox.retries")
	assert.EqualValues(t, 3, retries)
	hosts, _ := settings.Get(merged, "mbox.hosts")
	assert.Equal(t, []any{"a.example.com", "b.example.com"}, hosts)

	_, _, err = execute(t, fs, config.Config{}, "merge", "-f", settingsFile)
	require.Error(t, err)
}

func TestStoreCommandsWithDirectoryStore(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)
	dsn := "dir:///var/lib/settings"

	out, _, err := execute(t, fs, config.Config{}, "store", "--dsn", dsn, "import", "mail/accounts", "-f", settingsFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mail/accounts "))

	exists, err := afero.Exists(fs, "/var/lib/settings/mail/accounts.json")
	require.NoError(t, err)
	assert.True(t, exists)

	_, stderr, err := execute(t, fs, config.Config{}, "store", "--dsn", dsn, "set", "mail/accounts", "mbox.timeout", "90")
	require.NoError(t, err)
	assert.Contains(t, stderr, "settings.saved")

	out, _, err = execute(t, fs, config.Config{}, "store", "--dsn", dsn, "get", "mail/accounts", "mbox.timeout")
	require.NoError(t, err)
	assert.Equal(t, "90\n", out)

	_, _, err = execute(t, fs, config.Config{}, "store", "--dsn", dsn, "export", "mail/accounts", "-f", "/tmp/export.yaml")
	require.NoError(t, err)
	timeout, _ := settings.Get(readSettings(t, fs, "/tmp/export.yaml"), "mbox.timeout")
	assert.EqualValues(t, 90, timeout)

	_, _, err = execute(t, fs, config.Config{}, "store", "--dsn", dsn, "delete", "mail/accounts")
	require.NoError(t, err)
	_, _, err = execute(t, fs, config.Config{}, "store", "--dsn", dsn, "export", "mail/accounts", "-f", "/tmp/again.json")
	require.Error(t, err)
}

func TestStoreCommandsWithSQLite(t *testing.T) {
	t.Parallel()
	fs := newTestFs(t)
	cfg := config.Config{Store: config.StoreConfig{DSN: filepath.Join(t.TempDir(), "settings.db")}}

	_, _, err := execute(t, fs, cfg, "store", "set", "--create", "mail/accounts", "mbox.hosts.0", "imap.example.com")
	require.NoError(t, err)

	out, _, err := execute(t, fs, cfg, "store", "get", "mail/accounts", "mbox.hosts.0")
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com\n", out)

	_, _, err = execute(t, fs, config.Config{}, "store", "get", "mail/accounts")
	require.ErrorIs(t, err, errDSNRequired)

	_, _, err = execute(t, fs, cfg, "store", "get", "not-a-ref")
	require.ErrorIs(t, err, state.ErrInvalidRef)
}

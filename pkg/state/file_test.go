package state_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-settings/pkg/state"
)

func TestCodecFor(t *testing.T) {
	assert.IsType(t, state.YAMLCodec{}, state.CodecFor("settings.yaml"))
	assert.IsType(t, state.YAMLCodec{}, state.CodecFor("settings.YML"))
	assert.IsType(t, state.JSONCodec{}, state.CodecFor("settings.json"))
	assert.IsType(t, state.JSONCodec{}, state.CodecFor("settings"))
}

func TestWriteAndReadFile(t *testing.T) {
	for _, path := range []string{"/etc/app/settings.json", "/etc/app/settings.yaml"} {
		t.Run(path, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			settings := map[string]any{
				"clientCode": "ACME",
				"mbox": map[string]any{
					"timeout": 30,
					"hosts":   []any{"a", map[string]any{"name": "b"}},
				},
			}
			require.NoError(t, state.WriteFile(fs, path, settings))

			loaded, err := state.ReadFile(fs, path)
			require.NoError(t, err)
			assert.Equal(t, "ACME", loaded["clientCode"])
			mbox := loaded["mbox"].(map[string]any)
			assert.EqualValues(t, 30, mbox["timeout"])
			hosts := mbox["hosts"].([]any)
			require.Len(t, hosts, 2)
			assert.Equal(t, map[string]any{"name": "b"}, hosts[1])
		})
	}
}

func TestReadFileEmptyIsEmptyObject(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "empty.yaml", nil, 0o644))

	loaded, err := state.ReadFile(fs, "empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestReadFileRejectsNonObjects(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "list.json", []byte(`[1,2]`), 0o644))

	_, err := state.ReadFile(fs, "list.json")
	require.Error(t, err)

	_, err = state.ReadFile(fs, "missing.json")
	require.Error(t, err)
}

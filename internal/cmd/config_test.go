package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"
)

func TestConfigInitSim(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "sim.json")

	require.NoError(t, (&ConfigInit{Command: "sim", Format: "json", Output: dest}).Run())
	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	var root map[string]any
	require.NoError(t, json.Unmarshal(data, &root))
	drv, ok := root["driver"].(map[string]any)
	require.True(t, ok, "driver section")
	assert.EqualValues(t, 512, drv["bufferSize"])
	assert.EqualValues(t, 3, drv["echoRetries"])
	assert.Equal(t, "0s", drv["waitTimeout"])

	st, ok := root["stream"].(map[string]any)
	require.True(t, ok, "stream section")
	assert.Equal(t, "5s", st["requestTimeout"])
	assert.Equal(t, true, root["realtime"])
}

func TestConfigInitFormats(t *testing.T) {
	type testCase struct {
		name    string
		command string
		format  string
		file    string
	}

	cases := []testCase{
		{name: "monitor yaml", command: "monitor", format: "yaml", file: "monitor.yaml"},
		{name: "decode toml", command: "decode", format: "toml", file: "decode.toml"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), tc.file)
			require.NoError(t, (&ConfigInit{Command: tc.command, Format: tc.format, Output: dest}).Run())
			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.NotEmpty(t, data)
			if tc.format == "yaml" {
				var root map[string]any
				require.NoError(t, yaml.Unmarshal(data, &root))
				assert.Equal(t, "localhost:3243", root["addr"])
			}
		})
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sim.json")
	require.NoError(t, os.WriteFile(dest, []byte("{}"), 0o644))

	err := (&ConfigInit{Command: "sim", Format: "json", Output: dest}).Run()
	assert.ErrorContains(t, err, "destination exists")
	assert.NoError(t, (&ConfigInit{Command: "sim", Format: "json", Output: dest, Force: true}).Run())
}

func TestTemplateFor(t *testing.T) {
	type testCase struct {
		name    string
		command string
		want    map[string]any
		absent  []string
	}
	cases := []testCase{
		{
			name:    "decode leaves positional codes out",
			command: "decode",
			want:    map[string]any{"file": "", "bufferSize": int64(512), "hex": false},
			absent:  []string{"codes"},
		},
		{
			name:    "monitor durations stay strings",
			command: "monitor",
			want:    map[string]any{"addr": "localhost:3243", "dialTimeout": "3s", "noStream": false},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := templateFor(templateCommands[tc.command])
			for k, v := range tc.want {
				assert.Equal(t, v, root[k], k)
			}
			for _, k := range tc.absent {
				assert.NotContains(t, root, k)
			}
		})
	}
}

func TestConfigInitUnknownCommand(t *testing.T) {
	err := (&ConfigInit{Command: "server", Output: filepath.Join(t.TempDir(), "x.json")}).Run()
	assert.ErrorContains(t, err, "unknown command")
}

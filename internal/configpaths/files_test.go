package configpaths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCandidatePathsUserFirst(t *testing.T) {
	type testCase struct {
		name     string
		userPath string
		pick     func(j, y, tm []string) []string
	}

	cases := []testCase{
		{name: "json", userPath: "/tmp/x.json", pick: func(j, _, _ []string) []string { return j }},
		{name: "yaml", userPath: "/tmp/x.yml", pick: func(_, y, _ []string) []string { return y }},
		{name: "toml", userPath: "/tmp/x.toml", pick: func(_, _, tm []string) []string { return tm }},
		{name: "unknown extension goes to json", userPath: "/tmp/x.conf", pick: func(j, _, _ []string) []string { return j }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j, y, tm := ConfigCandidatePaths(tc.userPath)
			got := tc.pick(j, y, tm)
			require.NotEmpty(t, got)
			assert.Equal(t, tc.userPath, got[0])
		})
	}
}

func TestConfigCandidatePathsSearchOrder(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	wd, err := os.Getwd()
	require.NoError(t, err)

	j, y, tm := ConfigCandidatePaths("")
	assert.Equal(t, filepath.Join(wd, "ps2bridge.json"), j[0])
	assert.Contains(t, j, filepath.Join("/xdg", "ps2bridge", "sim.json"))
	assert.Contains(t, y, filepath.Join("/xdg", "ps2bridge", "monitor.yml"))
	assert.Contains(t, tm, filepath.Join(wd, "config.toml"))
	if runtime.GOOS != "windows" {
		assert.Equal(t, filepath.Join(SystemDir, "monitor.json"), j[len(j)-1])
	}
}

func TestDefaultNamedConfigPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	for format, want := range map[string]string{"json": "sim.json", "yml": "sim.yaml", "toml": "sim.toml", "": "sim.json"} {
		p, err := DefaultNamedConfigPath("sim", format)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/xdg", "ps2bridge", want), p)
	}
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"extsort"}, args...))
	return out.String(), err
}

func TestGenerateSortVerify(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data.stm")
	sorted := filepath.Join(dir, "sorted.stm")

	out, err := run(t, "--compress", "generate", "--count", "5000", "--seed", "1", "--out", data)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 5000 values")

	_, err = run(t, "verify", "--in", data)
	assert.ErrorContains(t, err, "out of order")

	out, err = run(t, "--memory", "100", "--fan-in", "4", "--log-level", "warn",
		"sort", "--in", data, "--out", sorted)
	require.NoError(t, err)
	assert.Contains(t, out, "sorted 5000 items")

	out, err = run(t, "verify", "--in", sorted)
	require.NoError(t, err)
	assert.Equal(t, "5000 items in order\n", out)
}

func TestGenerateCompression(t *testing.T) {
	dir := t.TempDir()
	compressed := filepath.Join(dir, "compressed.toml")
	require.NoError(t, os.WriteFile(compressed, []byte("compress = true\n"), 0o600))

	tests := []struct {
		name      string
		args      []string
		wantFlags byte
	}{
		{name: "default", wantFlags: 0},
		{name: "flag", args: []string{"--compress"}, wantFlags: 1},
		{name: "config file", args: []string{"--config", compressed}, wantFlags: 1},
		{name: "flag overrides config", args: []string{"--config", compressed, "--compress=false"}, wantFlags: 0},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := filepath.Join(dir, fmt.Sprintf("data-%d.stm", i))
			args := append(tt.args, "generate", "--count", "100", "--seed", "1", "--out", data)
			_, err := run(t, args...)
			require.NoError(t, err)

			got, err := os.ReadFile(data)
			require.NoError(t, err)
			require.Greater(t, len(got), 24)
			assert.Equal(t, tt.wantFlags, got[16])

			out, err := run(t, "verify", "--in", data)
			require.Error(t, err, out)
			assert.ErrorContains(t, err, "out of order")
		})
	}
}

func TestSortLinesWithConfig(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	sorted := filepath.Join(dir, "out.txt")
	config := filepath.Join(dir, "extsort.toml")

	require.NoError(t, os.WriteFile(in, []byte("pear\napple\nfig\napple\nbanana\n"), 0o600))
	require.NoError(t, os.WriteFile(config, []byte(`
memory_items = 2
fan_in = 2
backend = "pebble"
dir = "`+filepath.ToSlash(filepath.Join(dir, "runs"))+`"
log_level = "error"
`), 0o600))

	out, err := run(t, "--config", config, "sort", "--format", "lines", "--unique", "--in", in, "--out", sorted)
	require.NoError(t, err)
	assert.Contains(t, out, "sorted 5 items (4 written)")

	got, err := os.ReadFile(sorted)
	require.NoError(t, err)
	assert.Equal(t, "apple\nbanana\nfig\npear\n", string(got))

	out, err = run(t, "verify", "--format", "lines", "--in", sorted)
	require.NoError(t, err)
	assert.Equal(t, "4 items in order\n", out)
}

func TestSortErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(in, []byte("b\na\n"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "unknown format",
			args: []string{"sort", "--format", "csv", "--in", in, "--out", filepath.Join(dir, "x")},
			want: "unknown format",
		},
		{
			name: "bad fan-in",
			args: []string{"--fan-in", "1", "sort", "--format", "lines", "--in", in, "--out", filepath.Join(dir, "y")},
			want: "fan-in",
		},
		{
			name: "missing config",
			args: []string{"--config", filepath.Join(dir, "none.toml"), "sort", "--in", in, "--out", filepath.Join(dir, "z")},
			want: "load config",
		},
		{
			name: "unknown backend",
			args: []string{"--backend", "tape", "sort", "--in", in, "--out", filepath.Join(dir, "w")},
			want: "unknown storage backend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

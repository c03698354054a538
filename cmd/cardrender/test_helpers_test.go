package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testLayout = `
origin_x = 0
origin_y = 0
width = 16
height = 16

[[elements]]
name = "Badge"
kind = "shape"
visible_field = "rare"
x = 2
y = 2
width = 4
height = 4
color = "#ffcc00"

[[elements]]
name = "Base"
kind = "shape"
x = 0
y = 0
width = 16
height = 16
color = "#3a3f4b"
`

const testCatalog = `
cards:
  - id: A
    name: Alpha
    rare: true
  - id: B
    name: Beta
    rare: false
`

type testEnv struct {
	dir        string
	configPath string
	renderDir  string
	manifest   string
	catalog    string
}

// newTestEnv writes a config, layout and catalog into a temp directory with
// a tiny capture geometry.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "cardrender.toml"),
		renderDir:  filepath.Join(dir, "out"),
		manifest:   filepath.Join(dir, "summary.csv"),
		catalog:    filepath.Join(dir, "cards.yaml"),
	}
	layoutPath := filepath.Join(dir, "layout.toml")
	writeFile(t, layoutPath, testLayout)
	writeFile(t, env.catalog, testCatalog)

	content := fmt.Sprintf(`[paths]
render_dir = %q
manifest_path = %q
log_dir = %q

[render]
capture_width = 16
capture_height = 16
export_width = 16
export_height = 16
src_x = 0
src_y = 0
src_width = 16
src_height = 16
range_start = 0
range_end = 10
drain_timeout = 5

[catalog]
source = "file"
path = %q

[scene]
layout = %q

[logging]
level = "error"
`, env.renderDir, env.manifest, filepath.Join(dir, "logs"), env.catalog, layoutPath)
	writeFile(t, env.configPath, content)
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireFiles(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var got []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		got = append(got, entry.Name())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("files in %s = %v, want %v", dir, got, want)
	}
}

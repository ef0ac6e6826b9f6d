package featurelist

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_PlainText(t *testing.T) {
	path := writeFile(t, "features.txt", `
# login epic
add login endpoint
add logout endpoint

add session refresh
`)

	features, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"add login endpoint", "add logout endpoint", "add session refresh"}
	if !reflect.DeepEqual(features, want) {
		t.Errorf("features = %v, want %v", features, want)
	}
}

func TestLoad_YAMLList(t *testing.T) {
	path := writeFile(t, "features.yaml", `
- add login endpoint
- add logout endpoint
`)
	features, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 2 || features[0] != "add login endpoint" {
		t.Errorf("features = %v", features)
	}
}

func TestLoad_YAMLDocument(t *testing.T) {
	path := writeFile(t, "features.yml", `
features:
  - add login endpoint
  - add session refresh
`)
	features, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 2 || features[1] != "add session refresh" {
		t.Errorf("features = %v", features)
	}
}

func TestLoad_Markdown(t *testing.T) {
	path := writeFile(t, "features.md", `# Sprint plan

Some prose describing the sprint.

- add login endpoint
- [ ] add logout endpoint
- [x] already shipped
* add session refresh
  - nested detail, not a feature
`)
	features, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"add login endpoint", "add logout endpoint", "add session refresh"}
	if !reflect.DeepEqual(features, want) {
		t.Errorf("features = %v, want %v", features, want)
	}
}

func TestLoad_Empty(t *testing.T) {
	path := writeFile(t, "features.txt", "# only comments\n")
	if _, err := Load(path); err == nil {
		t.Error("empty feature list should error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("missing file should error")
	}
}

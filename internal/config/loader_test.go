package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JiLiZART/fast-staged/internal/task"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestFind_CascadeOrder(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		want    string
	}{
		{
			name:    "hidden toml beats everything",
			present: []string{".fast-staged.toml", "fast-staged.toml", "fast-staged.json", "package.json"},
			want:    ".fast-staged.toml",
		},
		{
			name:    "plain toml beats json",
			present: []string{"fast-staged.toml", ".fast-staged.json", "package.json"},
			want:    "fast-staged.toml",
		},
		{
			name:    "hidden json beats plain json",
			present: []string{".fast-staged.json", "fast-staged.json"},
			want:    ".fast-staged.json",
		},
		{
			name:    "json beats yaml",
			present: []string{"fast-staged.json", ".fast-staged.yaml"},
			want:    "fast-staged.json",
		},
		{
			name:    "yaml beats package.json",
			present: []string{".fast-staged.yaml", "package.json"},
			want:    ".fast-staged.yaml",
		},
		{
			name:    "package.json is the last resort",
			present: []string{"package.json"},
			want:    "package.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.present {
				writeFile(t, dir, name, "")
			}

			path, _, err := Find(dir)
			if err != nil {
				t.Fatalf("Find() = %v", err)
			}
			if got := filepath.Base(path); got != tt.want {
				t.Errorf("Find() picked %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFind_NotFound(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Find(dir)
	if err == nil {
		t.Fatal("Find() = nil, want error")
	}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error type = %T, want *NotFoundError", err)
	}
	if len(notFound.Checked) != 7 {
		t.Errorf("checked %d paths, want 7", len(notFound.Checked))
	}
	if !strings.HasPrefix(err.Error(), "Configuration file not found. Checked paths: ") {
		t.Errorf("Error() = %q, want the checked-paths wording", err.Error())
	}
	if !strings.Contains(err.Error(), filepath.Join(dir, ".fast-staged.toml")) {
		t.Errorf("Error() = %q, missing the first candidate path", err.Error())
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".fast-staged.toml", `
timeout = "30s"

[js]
timeout = "10s"
execution_order = "sequential"

[js.patterns]
"*.js" = ["eslint $FILE", "prettier --check $FILE"]
"*.jsx" = ["eslint $FILE"]

[styles]

[styles.patterns]
"*.css" = ["stylelint $FILE"]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Source != SourceTOML {
		t.Errorf("Source = %s, want %s", cfg.Source, SourceTOML)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if len(cfg.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(cfg.Groups))
	}

	js := cfg.Groups[0]
	if js.Name != "js" {
		t.Fatalf("first group = %s, want js (declaration order)", js.Name)
	}
	if js.Timeout != 10*time.Second {
		t.Errorf("js timeout = %v, want the group override", js.Timeout)
	}
	if js.Order != task.OrderSequential {
		t.Errorf("js order = %s, want sequential", js.Order)
	}
	if len(js.Rules) != 2 || js.Rules[0].Pattern != "*.js" || js.Rules[1].Pattern != "*.jsx" {
		t.Errorf("js rules out of declaration order: %+v", js.Rules)
	}
	if len(js.Rules[0].Commands) != 2 || js.Rules[0].Commands[0] != "eslint $FILE" {
		t.Errorf("js *.js commands = %v", js.Rules[0].Commands)
	}

	styles := cfg.Groups[1]
	if styles.Timeout != 30*time.Second {
		t.Errorf("styles timeout = %v, want the top-level fallback", styles.Timeout)
	}
	if styles.Order != task.OrderParallel {
		t.Errorf("styles order = %s, want the parallel default", styles.Order)
	}
}

func TestLoad_TOML_GroupDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fast-staged.toml", `
[zeta]
[zeta.patterns]
"*.md" = ["mdlint $FILE"]

[alpha]
[alpha.patterns]
"*.md" = ["prettier --check $FILE"]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if len(cfg.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(cfg.Groups))
	}
	// zeta is declared first, so zeta wins matches even though it sorts
	// after alpha.
	if cfg.Groups[0].Name != "zeta" || cfg.Groups[1].Name != "alpha" {
		t.Errorf("group order = [%s, %s], want declaration order [zeta, alpha]",
			cfg.Groups[0].Name, cfg.Groups[1].Name)
	}
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".fast-staged.json", `{
  "timeout": "5s",
  "py": {
    "execution_order": "sequential",
    "patterns": {
      "*.py": ["black --check $FILE", "ruff check $FILE"]
    }
  },
  "docs": {
    "timeout": "1s",
    "patterns": {
      "*.md": ["mdlint $FILE"]
    }
  }
}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Source != SourceJSON {
		t.Errorf("Source = %s, want %s", cfg.Source, SourceJSON)
	}
	if len(cfg.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(cfg.Groups))
	}
	if cfg.Groups[0].Name != "py" || cfg.Groups[1].Name != "docs" {
		t.Errorf("group order = [%s, %s], want [py, docs]", cfg.Groups[0].Name, cfg.Groups[1].Name)
	}
	if cfg.Groups[0].Order != task.OrderSequential {
		t.Errorf("py order = %s, want sequential", cfg.Groups[0].Order)
	}
	if cfg.Groups[0].Timeout != 5*time.Second {
		t.Errorf("py timeout = %v, want top-level 5s", cfg.Groups[0].Timeout)
	}
	if cfg.Groups[1].Timeout != time.Second {
		t.Errorf("docs timeout = %v, want 1s", cfg.Groups[1].Timeout)
	}
	if got := cfg.Groups[0].Rules[0].Commands[1]; got != "ruff check $FILE" {
		t.Errorf("py commands[1] = %q", got)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".fast-staged.yaml", `
timeout: 45s
go:
  execution_order: sequential
  patterns:
    "*.go":
      - gofmt -l $FILE
      - go vet $FILE
shell:
  patterns:
    "*.sh":
      - shellcheck $FILE
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Source != SourceYAML {
		t.Errorf("Source = %s, want %s", cfg.Source, SourceYAML)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if len(cfg.Groups) != 2 || cfg.Groups[0].Name != "go" || cfg.Groups[1].Name != "shell" {
		t.Fatalf("groups = %+v, want [go, shell]", cfg.Groups)
	}
	if cfg.Groups[0].Order != task.OrderSequential {
		t.Errorf("go order = %s, want sequential", cfg.Groups[0].Order)
	}
	if got := cfg.Groups[0].Rules[0].Commands; len(got) != 2 || got[0] != "gofmt -l $FILE" {
		t.Errorf("go commands = %v", got)
	}
}

func TestLoad_PackageJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
  "name": "my-app",
  "version": "1.0.0",
  "fast-staged": {
    "js": {
      "patterns": {
        "*.js": ["eslint $FILE"]
      }
    }
  }
}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Source != SourcePackageJSON {
		t.Errorf("Source = %s, want %s", cfg.Source, SourcePackageJSON)
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0].Name != "js" {
		t.Fatalf("groups = %+v, want just js", cfg.Groups)
	}
}

func TestLoad_PackageJSON_MissingSection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.json", `{"name": "my-app"}`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() = nil, want error")
	}

	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("error type = %T, want *InvalidError", err)
	}
	if invalid.Path != path {
		t.Errorf("Path = %s, want %s", invalid.Path, path)
	}
	want := "No 'fast-staged' section found in package.json"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("Error() = %q, want it to contain %q", err.Error(), want)
	}
	if !strings.HasPrefix(err.Error(), "Invalid configuration in ") {
		t.Errorf("Error() = %q, want the invalid-configuration wording", err.Error())
	}
}

func TestLoad_InvalidInputs(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "malformed toml",
			file:    ".fast-staged.toml",
			content: "[js\nbroken",
			want:    "Invalid TOML",
		},
		{
			name:    "malformed json",
			file:    ".fast-staged.json",
			content: "{not json",
			want:    "Invalid JSON",
		},
		{
			name:    "group without patterns",
			file:    ".fast-staged.toml",
			content: "[js]\ntimeout = \"5s\"\n",
			want:    "group 'js' is missing 'patterns'",
		},
		{
			name:    "unparseable timeout",
			file:    ".fast-staged.json",
			content: `{"timeout": "banana", "js": {"patterns": {"*.js": ["eslint"]}}}`,
			want:    `invalid timeout "banana"`,
		},
		{
			name:    "negative timeout",
			file:    ".fast-staged.json",
			content: `{"timeout": "-5s", "js": {"patterns": {"*.js": ["eslint"]}}}`,
			want:    "must not be negative",
		},
		{
			name:    "numeric timeout",
			file:    ".fast-staged.json",
			content: `{"timeout": 30, "js": {"patterns": {"*.js": ["eslint"]}}}`,
			want:    "'timeout' must be a duration string",
		},
		{
			name:    "bad execution order",
			file:    ".fast-staged.json",
			content: `{"js": {"execution_order": "diagonal", "patterns": {"*.js": ["eslint"]}}}`,
			want:    "execution_order must be 'parallel' or 'sequential'",
		},
		{
			name:    "commands not an array",
			file:    ".fast-staged.json",
			content: `{"js": {"patterns": {"*.js": "eslint"}}}`,
			want:    "must map to an array of commands",
		},
		{
			name:    "group is not an object",
			file:    ".fast-staged.json",
			content: `{"js": "eslint"}`,
			want:    "'js' must be a group object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load() = nil, want error")
			}
			var invalid *InvalidError
			if !errors.As(err, &invalid) {
				t.Fatalf("error type = %T, want *InvalidError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestSourceForPath(t *testing.T) {
	tests := []struct {
		path string
		want Source
	}{
		{"/repo/.fast-staged.toml", SourceTOML},
		{"/repo/custom.yaml", SourceYAML},
		{"/repo/custom.yml", SourceYAML},
		{"/repo/package.json", SourcePackageJSON},
		{"/repo/fast-staged.json", SourceJSON},
		{"/repo/no-extension", SourceJSON},
	}

	for _, tt := range tests {
		if got := SourceForPath(tt.path); got != tt.want {
			t.Errorf("SourceForPath(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestConfig_Patterns(t *testing.T) {
	cfg := &Config{
		Groups: []Group{
			{Name: "a", Rules: []PatternRule{{Pattern: "*.js"}, {Pattern: "*.jsx"}}},
			{Name: "b", Rules: []PatternRule{{Pattern: "*.css"}}},
		},
	}

	got := cfg.Patterns()
	want := []string{"*.js", "*.jsx", "*.css"}
	if len(got) != len(want) {
		t.Fatalf("Patterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Patterns() = %v, want %v", got, want)
		}
	}
}

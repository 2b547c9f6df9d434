package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schemforge/schemforge/pkg/pipeline"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty defaults to kicad_pcb", "", []string{"kicad_pcb"}},
		{"single format", "text", []string{"text"}},
		{"multiple formats", "kicad_pcb,text,json", []string{"kicad_pcb", "text", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFormats(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseFormats(%q) length = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i, v := range got {
				if v != tt.want[i] {
					t.Errorf("parseFormats(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
				}
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		input  string
		want   string
	}{
		{"no output strips input extension", "", "divider.json", "divider"},
		{"output with artifact extension", "board.kicad_pcb", "divider.json", "board"},
		{"output with text extension", "board.txt", "divider.json", "board"},
		{"plain output kept", "out/board", "divider.json", "out/board"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := basePath(tt.output, tt.input); got != tt.want {
				t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
			}
		})
	}
}

func TestCacheDir(t *testing.T) {
	oldXdg := os.Getenv("XDG_CACHE_HOME")
	os.Unsetenv("XDG_CACHE_HOME")
	defer func() {
		if oldXdg != "" {
			os.Setenv("XDG_CACHE_HOME", oldXdg)
		}
	}()

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cache", appName)
	if dir != expected {
		t.Errorf("cacheDir() = %q, want %q", dir, expected)
	}
}

func TestCacheDirXDG(t *testing.T) {
	oldXdg := os.Getenv("XDG_CACHE_HOME")
	os.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")
	defer func() {
		if oldXdg != "" {
			os.Setenv("XDG_CACHE_HOME", oldXdg)
		} else {
			os.Unsetenv("XDG_CACHE_HOME")
		}
	}()

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if dir != filepath.Join("/tmp/custom-cache", appName) {
		t.Errorf("cacheDir() = %q, want XDG override", dir)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()

	want := []string{"parse", "netlist", "board", "graph", "cache", "serve", "completion"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestGraphFormatValidation(t *testing.T) {
	for _, f := range []string{"dot", "svg", "png"} {
		if !validGraphFormats[f] {
			t.Errorf("format %q should be valid", f)
		}
	}
	if validGraphFormats["pdf"] {
		t.Error("pdf should not be a graph format")
	}
}

func TestDefaultFormatIsValid(t *testing.T) {
	for _, f := range parseFormats("") {
		if err := pipeline.ValidateFormat(f); err != nil {
			t.Errorf("default format %q rejected: %v", f, err)
		}
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "divider.json")

	artifacts := map[string][]byte{
		"kicad_pcb": []byte("(kicad_pcb)"),
		"text":      []byte("Board: test"),
	}

	err := writeArtifacts(artifactWriteParams{
		artifacts: artifacts,
		formats:   []string{"kicad_pcb", "text"},
		input:     input,
	}, pipeline.Extension)
	if err != nil {
		t.Fatalf("writeArtifacts() error: %v", err)
	}

	for _, name := range []string{"divider.kicad_pcb", "divider.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected output file %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("output file %s is empty", name)
		}
	}
}

func TestWriteArtifactsMissingFormat(t *testing.T) {
	err := writeArtifacts(artifactWriteParams{
		artifacts: map[string][]byte{},
		formats:   []string{"kicad_pcb"},
		input:     "divider.json",
	}, pipeline.Extension)
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !strings.Contains(err.Error(), "kicad_pcb") {
		t.Errorf("error should name the missing format, got %v", err)
	}
}

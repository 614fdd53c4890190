package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// writeExecutable creates an executable file named name in dir.
func writeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestLocator_Locate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}

	first := t.TempDir()
	second := t.TempDir()

	// A lower-priority name in the first directory and a higher-priority name
	// in the second: name order wins over directory order.
	writeExecutable(t, first, "chromium", "#!/bin/sh\n")
	chrome := writeExecutable(t, second, "google-chrome", "#!/bin/sh\n")

	// Not executable, must be ignored
	if err := os.WriteFile(filepath.Join(first, "google-chrome-stable"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := Locator{
		Names:   DefaultBrowserNames,
		PathEnv: strings.Join([]string{first, second}, string(os.PathListSeparator)),
	}

	got, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != chrome {
		t.Errorf("Locate = %s, want %s", got, chrome)
	}
}

func TestLocator_Override(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}

	dir := t.TempDir()
	custom := writeExecutable(t, dir, "my-browser", "#!/bin/sh\n")
	writeExecutable(t, dir, "chromium", "#!/bin/sh\n")

	l := Locator{Override: custom, Names: DefaultBrowserNames, PathEnv: dir}
	got, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != custom {
		t.Errorf("Locate = %s, want override %s", got, custom)
	}

}

func TestLocator_BadOverrideFallsBackToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}

	dir := t.TempDir()
	chromium := writeExecutable(t, dir, "chromium", "#!/bin/sh\n")
	if err := os.WriteFile(filepath.Join(dir, "not-exec"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	tests := []struct {
		name     string
		override string
	}{
		{"missing file", filepath.Join(dir, "missing")},
		{"not executable", filepath.Join(dir, "not-exec")},
		{"directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			l := Locator{Override: tt.override, Names: DefaultBrowserNames, PathEnv: dir, Logger: &logger}

			got, err := l.Locate()
			if err != nil {
				t.Fatalf("Locate failed: %v", err)
			}
			if got != chromium {
				t.Errorf("Locate = %s, want PATH match %s", got, chromium)
			}
			if !strings.Contains(logs.String(), tt.override) {
				t.Errorf("Expected a warning naming the override, got %q", logs.String())
			}
		})
	}

	l := Locator{Override: filepath.Join(dir, "missing"), Names: DefaultBrowserNames, PathEnv: t.TempDir(), Logger: &logger}
	if _, err := l.Locate(); !errors.Is(err, ErrRendererUnavailable) {
		t.Errorf("Expected ErrRendererUnavailable when nothing is usable, got %v", err)
	}
}

func TestLocator_NothingFound(t *testing.T) {
	l := Locator{Names: DefaultBrowserNames, PathEnv: t.TempDir()}
	_, err := l.Locate()
	if !errors.Is(err, ErrRendererUnavailable) {
		t.Errorf("Expected ErrRendererUnavailable, got %v", err)
	}
}

func TestDefaultLocator_Env(t *testing.T) {
	t.Setenv(BrowserPathEnv, "/opt/browser/chrome")

	if got := DefaultLocator("").Override; got != "/opt/browser/chrome" {
		t.Errorf("Override = %q, want value of %s", got, BrowserPathEnv)
	}
	if got := DefaultLocator("/usr/bin/custom").Override; got != "/usr/bin/custom" {
		t.Errorf("Override = %q, want explicit path", got)
	}
}

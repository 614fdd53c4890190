package render

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BrowserPathEnv overrides browser discovery.
const BrowserPathEnv = "CHROME_PATH"

// DefaultBrowserNames lists the executables searched for on PATH, in priority order.
var DefaultBrowserNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
	"microsoft-edge",
}

// Locator finds a headless-capable browser executable.
type Locator struct {
	// Override is an explicit executable path; it wins over PATH discovery
	// when it names an executable file
	Override string

	// Names are the executable names to look for
	Names []string

	// PathEnv is a PATH-style directory list
	PathEnv string

	// Logger defaults to the global logger
	Logger *zerolog.Logger
}

// DefaultLocator builds a Locator from the environment. A non-empty override
// takes precedence over CHROME_PATH.
func DefaultLocator(override string) Locator {
	if override == "" {
		override = os.Getenv(BrowserPathEnv)
	}
	return Locator{
		Override: override,
		Names:    DefaultBrowserNames,
		PathEnv:  os.Getenv("PATH"),
	}
}

// Locate returns the path of the first matching executable. An unusable
// override is logged and discovery continues on PATH. Names are tried in
// order and each name is looked up across every PATH directory before the
// next name is considered.
func (l Locator) Locate() (string, error) {
	if l.Override != "" {
		if isExecutable(l.Override) {
			return l.Override, nil
		}
		logger := log.Logger
		if l.Logger != nil {
			logger = *l.Logger
		}
		logger.Warn().Str("path", l.Override).Msg("Browser override is not an executable file, searching PATH")
	}

	dirs := filepath.SplitList(l.PathEnv)
	for _, name := range l.Names {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			for _, candidate := range candidates(filepath.Join(dir, name)) {
				if isExecutable(candidate) {
					return candidate, nil
				}
			}
		}
	}

	return "", fmt.Errorf("%w: no headless browser found on PATH (tried %s); set %s",
		ErrRendererUnavailable, strings.Join(l.Names, ", "), BrowserPathEnv)
}

func candidates(path string) []string {
	if runtime.GOOS == "windows" && filepath.Ext(path) == "" {
		return []string{path + ".exe", path}
	}
	return []string{path}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

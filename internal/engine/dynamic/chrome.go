// internal/engine/dynamic/chrome.go
package dynamic

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

// pathEnv lists the environment variables consulted before standard locations
var pathEnv = []string{"LOTSCOUT_CHROME_PATH", "CHROME_PATH"}

// browserNames are looked up in PATH as a last resort
var browserNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
	"brave-browser",
}

// FindChrome locates a Chrome-compatible executable. preferred wins when it
// is executable. An empty result lets chromedp fall back to its own lookup.
func FindChrome(preferred string) string {
	if preferred != "" {
		if isExecutable(preferred) {
			return preferred
		}
		log.Warn().Str("path", preferred).Msg("Configured browser path is not executable")
	}

	for _, env := range pathEnv {
		if path := os.Getenv(env); path != "" {
			if isExecutable(path) {
				log.Debug().Str("path", path).Str("env", env).Msg("Chrome found via environment")
				return path
			}
			log.Warn().Str("path", path).Str("env", env).Msg("Browser path from environment is not executable")
		}
	}

	for _, path := range standardLocations(runtime.GOOS) {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Chrome found at standard location")
			return path
		}
	}

	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, falling back to chromedp default")
	return ""
}

func standardLocations(goos string) []string {
	home := os.Getenv("HOME")
	switch goos {
	case "darwin":
		out := []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
		if home != "" {
			out = append(out, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"))
		}
		return out
	case "windows":
		var out []string
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if base == "" {
				continue
			}
			out = append(out,
				filepath.Join(base, `Google\Chrome\Application\chrome.exe`),
				filepath.Join(base, `Chromium\Application\chrome.exe`),
				filepath.Join(base, `Microsoft\Edge\Application\msedge.exe`),
			)
		}
		return out
	case "linux":
		out := []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
		if home != "" {
			out = append(out, filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"))
		}
		return out
	}
	return nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// ChromeVersion returns the browser's --version output, or "unknown"
func ChromeVersion(path string) string {
	if path == "" || runtime.GOOS == "windows" {
		return "unknown"
	}
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

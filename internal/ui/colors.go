// Package ui holds terminal styling for lotscout's CLI output.
package ui

import "os"

// ANSI escape sequences used by the help renderer and status lines
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Plain disables styling of status lines. NO_COLOR sets it at startup.
var Plain = os.Getenv("NO_COLOR") != ""

func paint(style, s string) string {
	if Plain {
		return s
	}
	return style + s + ColorReset
}

// Bold wraps s in bold
func Bold(s string) string { return paint(ColorBold, s) }

// Success renders s green
func Success(s string) string { return paint(ColorGreen, s) }

// Info renders s dim yellow
func Info(s string) string { return paint(ColorDim+ColorYellow, s) }

// Warn renders s yellow
func Warn(s string) string { return paint(ColorYellow, s) }

// Error renders s red
func Error(s string) string { return paint(ColorRed, s) }

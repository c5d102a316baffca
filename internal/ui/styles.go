package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 214 // orange
	colorBar    = 110 // light blue
)

var noColor bool

func paint(code int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color, used for titles.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color, used for secondary fields.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderWarn returns s in orange.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderCount renders n green when zero-or-more is good, orange when it
// counts errors and is non-zero.
func RenderCount(n int, isError bool) string {
	s := fmt.Sprintf("%d", n)
	if isError && n > 0 {
		return RenderWarn(s)
	}
	if isError {
		return RenderOK(s)
	}
	return s
}

// RenderBar draws a horizontal bar of up to width cells for n out of max.
// Any non-zero n draws at least one cell.
func RenderBar(n, max, width int) string {
	if n <= 0 || max <= 0 || width <= 0 {
		return ""
	}
	cells := n * width / max
	if cells == 0 {
		cells = 1
	}
	if cells > width {
		cells = width
	}
	return paint(colorBar, strings.Repeat("█", cells))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

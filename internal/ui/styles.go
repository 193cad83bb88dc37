// Package ui holds terminal styling for the lngraph CLI.
package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

func RenderOK(s string) string { return paint(colorOK, s) }

func RenderWarn(s string) string { return paint(colorWarn, s) }

func RenderFail(s string) string { return paint(colorError, s) }

// RenderError formats err for the terminal. Decode errors are split into
// their kind, the offending field or position, and the detail.
func RenderError(err error) string {
	var de *model.DecodeError
	if !errors.As(err, &de) {
		return RenderFail("error: ") + err.Error()
	}
	var b strings.Builder
	b.WriteString(RenderFail(strings.ReplaceAll(de.Kind.String(), "_", " ")))
	switch {
	case de.Kind == model.KindSyntax:
		fmt.Fprintf(&b, " %s", RenderAccent(fmt.Sprintf("%d:%d", de.Line, de.Column)))
	case de.Field != "":
		fmt.Fprintf(&b, " %s", RenderAccent(de.Field))
	}
	b.WriteString(RenderMuted(": " + de.Error()))
	return b.String()
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

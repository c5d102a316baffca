package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/ui"
)

// helpStyle rewrites the matches of re with style applied to capture group
// 2, keeping groups 1 and 3 as they are. Patterns with a single group style
// the whole match.
type helpStyle struct {
	re    *regexp.Regexp
	style func(string) string
}

var helpStyles = []helpStyle{
	// Group headers such as "Pipeline:" or "Flags:".
	{regexp.MustCompile(`(?m)^()((?:[A-Z][a-z]+ )*[A-Z][a-z]+:)()[ \t]*$`), ui.RenderAccent},
	// Subcommand names in the command list.
	{regexp.MustCompile(`(?m)^(  )([a-z][\w-]*)(  +)`), ui.RenderCommand},
	// Flag value types.
	{regexp.MustCompile(`(--[\w-]+ )(string|int|duration|strings|float64)( )`), ui.RenderMuted},
	// Defaults.
	{regexp.MustCompile(`()(\(default [^)]*\))()`), ui.RenderMuted},
}

// colorizedHelpFunc renders cobra's usage text and styles it when the
// terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, h := range helpStyles {
		s = h.re.ReplaceAllStringFunc(s, func(m string) string {
			parts := h.re.FindStringSubmatch(m)
			if parts[2] == "" {
				return m
			}
			return parts[1] + h.style(parts[2]) + parts[3]
		})
	}
	return s
}

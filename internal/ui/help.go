package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Help writes colorized help for cmd
func Help(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintf(w, "\n%s\n", Heading(strings.ToUpper(cmd.Name())))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", Wrap(cmd.Long, 80))
	}

	usage(w, cmd)
	examples(w, cmd.Example)
	commands(w, cmd)

	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		Flags(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		Flags(w, cmd.InheritedFlags().FlagUsages())
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%sUse \"%s%s%s %s<command>%s %s--help%s\" for more information about a command.%s\n",
			ColorDim,
			ColorCyan, cmd.CommandPath(), ColorReset+ColorDim,
			ColorYellow, ColorReset+ColorDim,
			ColorGreen, ColorReset+ColorDim,
			ColorReset)
	}
	fmt.Fprintln(w)
}

// Usage writes the short usage shown after a flag or argument error
func Usage(w io.Writer, cmd *cobra.Command) error {
	usage(w, cmd)
	commands(w, cmd)
	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		Flags(w, cmd.LocalFlags().FlagUsages())
	}
	fmt.Fprintf(w, "\n%sUse \"%s%s%s %s--help%s\" for more information.%s\n",
		ColorDim,
		ColorCyan, cmd.CommandPath(), ColorReset+ColorDim,
		ColorGreen, ColorReset+ColorDim,
		ColorReset)
	return nil
}

// Heading renders a bold cyan title
func Heading(s string) string {
	return ColorBold + ColorCyan + s + ColorReset
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", ColorBold+ColorWhite, title, ColorReset)
}

func usage(w io.Writer, cmd *cobra.Command) {
	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ColorCyan, cmd.UseLine(), ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ColorCyan, cmd.CommandPath(), ColorReset,
			ColorYellow, ColorReset,
			ColorDim, ColorReset)
	}
}

// examples prints comment lines dimmed and command lines with a prompt
func examples(w io.Writer, example string) {
	if strings.TrimSpace(example) == "" {
		return
	}
	section(w, "Examples")
	afterCommand := false
	for _, line := range strings.Split(example, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			if afterCommand {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s%s%s\n", ColorDim, line, ColorReset)
			afterCommand = false
		default:
			fmt.Fprintf(w, "  %s$ %s%s\n", ColorGreen, line, ColorReset)
			afterCommand = true
		}
	}
}

func commands(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	section(w, "Commands")

	var subs []*cobra.Command
	width := 0
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() && c.Name() != "help" {
			subs = append(subs, c)
			width = max(width, len(c.Name()))
		}
	}
	for _, c := range subs {
		fmt.Fprintf(w, "  %s%-*s%s  %s%s%s\n", ColorCyan, width, c.Name(), ColorReset, ColorDim, c.Short, ColorReset)
	}
}

// Flags prints pflag usage text with flag names and descriptions aligned
func Flags(w io.Writer, flagUsages string) {
	lines := strings.Split(flagUsages, "\n")

	width := 28
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "-") {
			name, _, _ := strings.Cut(trimmed, "  ")
			width = max(width, len(strings.TrimSpace(name)))
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") {
			fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", width+4), ColorDim, trimmed, ColorReset)
			continue
		}
		name, desc, ok := strings.Cut(trimmed, "  ")
		if !ok {
			fmt.Fprintf(w, "  %s%s%s\n", ColorGreen, trimmed, ColorReset)
			continue
		}
		fmt.Fprintf(w, "  %s%-*s%s  %s%s%s\n",
			ColorGreen, width, strings.TrimSpace(name), ColorReset,
			ColorDim, strings.TrimSpace(desc), ColorReset)
	}
}

// Wrap wraps text at width, keeping paragraphs and list items intact
func Wrap(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var out []string
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
				out = append(out, line)
				continue
			}
			var cur strings.Builder
			for _, word := range strings.Fields(line) {
				if cur.Len() > 0 && cur.Len()+1+len(word) > width {
					out = append(out, cur.String())
					cur.Reset()
				}
				if cur.Len() > 0 {
					cur.WriteByte(' ')
				}
				cur.WriteString(word)
			}
			if cur.Len() > 0 {
				out = append(out, cur.String())
			}
		}
		if len(out) > 0 {
			paragraphs = append(paragraphs, strings.Join(out, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

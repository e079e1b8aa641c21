package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danmuck/cadview/internal/render"
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	styleTitle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func printResult(w io.Writer, title string, res *render.Result) {
	s := res.Summary
	row := func(label string, value any) {
		fmt.Fprintln(w, styleLabel.Render(label)+fmt.Sprint(value))
	}
	fmt.Fprintln(w, styleTitle.Render(title))
	row("nodes", fmt.Sprintf("%d (shapes %d, edges %d, other %d)", s.Nodes, s.Shapes, s.Edges, s.Other))
	row("blocks", s.Blocks)
	row("references", s.Refs)
	row("instances", res.Instances.Blocks)
	row("cache hits", res.CacheHits)
	row("took", res.Duration)

	names := make([]string, 0, len(s.Channels))
	for name := range s.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, s.Channels[name])
	}
	row("channels", strings.Join(parts, " "))

	if n := res.Report.Len(); n > 0 {
		fmt.Fprintln(w, styleWarn.Render(fmt.Sprintf("%d field errors", n)))
		for _, err := range res.Report.Errors {
			fmt.Fprintln(w, "  "+err.Error())
		}
		return
	}
	fmt.Fprintln(w, styleOK.Render("ok"))
}

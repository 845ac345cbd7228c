package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"perfreporter/internal/metrics"
	"perfreporter/internal/report"
)

// Out is where every Print function writes
var Out io.Writer = os.Stdout

// PrintHeader prints the application header
func PrintHeader() {
	fmt.Fprintln(Out, RenderBanner())
	fmt.Fprintln(Out, RenderSubtitle())
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Fprintln(Out, RenderSectionStart(title))
}

// PrintSectionEnd prints a section footer
func PrintSectionEnd() {
	fmt.Fprintln(Out, RenderSectionEnd())
}

// PrintStatus prints a status message
func PrintStatus(status, message string) {
	fmt.Fprintln(Out, RenderStatus(status, message))
}

// PrintError prints an error in its own section
func PrintError(message string) {
	PrintSection("Error")
	PrintStatus("error", message)
	PrintSectionEnd()
}

// CreateBeautifulList creates a bulleted key : value list sorted by key
func CreateBeautifulList(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var result strings.Builder
	for _, key := range keys {
		result.WriteString(RenderKeyValue(key, data[key]))
		result.WriteString("\n")
	}
	return result.String()
}

// RenderTree renders a report tree with one branch per context
func RenderTree(tree *report.Tree) string {
	var result strings.Builder
	if tree == nil || tree.Len() == 0 {
		result.WriteString(RenderStatus("warning", "No counters matched"))
		result.WriteString("\n")
		return result.String()
	}

	for _, node := range tree.Root.Children {
		renderNode(&result, node, "  ")
	}
	return result.String()
}

func renderNode(b *strings.Builder, n report.Node, indent string) {
	b.WriteString(indent)
	b.WriteString(ContextStyle.Render(n.Context))
	b.WriteString("\n")

	last := len(n.Metrics) + len(n.Children) - 1
	for i, m := range n.Metrics {
		branch := TreeBranch
		if i == last {
			branch = TreeLast
		}
		b.WriteString(indent)
		b.WriteString(SeparatorStyle.Render(branch))
		b.WriteString(" ")
		b.WriteString(renderLeaf(m))
		b.WriteString("\n")
	}
	for _, child := range n.Children {
		renderNode(b, child, indent+"   ")
	}
}

func renderLeaf(m report.Metric) string {
	name := m.Name
	for _, t := range m.Tags {
		name += " " + t.Key + "=" + t.Value
	}

	if m.Kind == metrics.KindTimer {
		return BulletStyle.Render(IconTimer) + " " + KeyStyle.Render(name) + " " +
			SeparatorStyle.Render(":") + " " + ValueStyle.Render(formatTimer(m.Timer))
	}
	return KeyStyle.Render(name) + " " + SeparatorStyle.Render(":") + " " + ValueStyle.Render(formatNumber(m.Value))
}

func formatTimer(t *metrics.TimerStats) string {
	if t == nil || t.Samples == 0 {
		return "timer, no samples yet"
	}
	return fmt.Sprintf("mean %s us, p95 %s us (%d samples)", formatNumber(t.Mean), formatNumber(t.P95), t.Samples)
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// RenderPassStats summarizes a reconciliation pass
func RenderPassStats(stats metrics.PassStats) string {
	return CreateBeautifulList(map[string]string{
		"Resolved paths": fmt.Sprint(stats.Resolved),
		"Registered":     fmt.Sprint(stats.Created + stats.Carried),
		"Dropped":        fmt.Sprint(stats.Dropped),
		"Failed":         fmt.Sprint(stats.Failed + stats.Conflicts),
	})
}

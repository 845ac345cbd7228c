package ui

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"perfreporter/internal/metrics"
	"perfreporter/internal/report"
)

func plain(t *testing.T) *bytes.Buffer {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestRenderTree(t *testing.T) {
	plain(t)
	tree := &report.Tree{Root: report.Node{Children: []report.Node{
		{Context: "memory", Metrics: []report.Metric{{Name: "available_mbytes", Value: 2048}}},
		{Context: "physicaldisk", Metrics: []report.Metric{
			{
				Name: "avg_disk_sec_write", Kind: metrics.KindTimer,
				Tags:  []metrics.Tag{{Key: "instance", Value: "0_c_"}},
				Timer: &metrics.TimerStats{Samples: 4, Mean: 250, P95: 400.5},
			},
			{
				Name: "avg_disk_sec_write", Kind: metrics.KindTimer,
				Tags:  []metrics.Tag{{Key: "instance", Value: "1_d_"}},
				Timer: &metrics.TimerStats{},
			},
		}},
	}}}

	got := RenderTree(tree)

	want := []string{
		"  memory",
		"  └─ available_mbytes : 2048",
		"  physicaldisk",
		"  ├─ ⏱ avg_disk_sec_write instance=0_c_ : mean 250 us, p95 400.5 us (4 samples)",
		"  └─ ⏱ avg_disk_sec_write instance=1_d_ : timer, no samples yet",
	}
	if got != strings.Join(want, "\n")+"\n" {
		t.Errorf("RenderTree() =\n%s\nwant\n%s", got, strings.Join(want, "\n"))
	}
}

func TestRenderTree_Empty(t *testing.T) {
	plain(t)
	if got := RenderTree(&report.Tree{}); !strings.Contains(got, "No counters matched") {
		t.Errorf("RenderTree(empty) = %q", got)
	}
	if got := RenderTree(nil); !strings.Contains(got, "No counters matched") {
		t.Errorf("RenderTree(nil) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2048, "2048"},
		{12.5, "12.5"},
		{0.25, "0.25"},
		{100, "100"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	buf := plain(t)

	PrintStatus("success", "Service installed")
	PrintStatus("error", "boom")

	out := buf.String()
	if !strings.Contains(out, "✓ Service installed") || !strings.Contains(out, "✗ boom") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCreateBeautifulList_Sorted(t *testing.T) {
	plain(t)
	got := CreateBeautifulList(map[string]string{"b": "2", "a": "1"})
	if got != "  • a : 1\n  • b : 2\n" {
		t.Errorf("CreateBeautifulList() = %q", got)
	}
}

func TestWithSpinner_NoTerminal(t *testing.T) {
	buf := plain(t)

	got, err := WithSpinner("Resolving counters", func() (string, error) { return "3 counters", nil })
	if err != nil || got != "3 counters" {
		t.Fatalf("WithSpinner() = %q, %v", got, err)
	}
	if !strings.Contains(buf.String(), "✓ 3 counters") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

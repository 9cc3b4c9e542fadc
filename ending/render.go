package ending

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	xtime "github.com/mensylisir/xmupgrade/time"
)

var (
	colorTitle   = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorSkipped = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorFailed  = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
)

// RenderOptions controls the summary layout.
type RenderOptions struct {
	// ShowSkipped lists skipped entries instead of collapsing them into a count.
	ShowSkipped bool
	// Verbose implies ShowSkipped and adds per-entry durations.
	Verbose bool
}

type summaryStyles struct {
	title   lipgloss.Style
	name    lipgloss.Style
	success lipgloss.Style
	skipped lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
}

func newSummaryStyles(w io.Writer) summaryStyles {
	r := lipgloss.NewRenderer(w)
	return summaryStyles{
		title:   r.NewStyle().Bold(true).Foreground(colorTitle),
		name:    r.NewStyle(),
		success: r.NewStyle().Foreground(colorSuccess),
		skipped: r.NewStyle().Foreground(colorSkipped),
		failed:  r.NewStyle().Bold(true).Foreground(colorFailed),
		muted:   r.NewStyle().Foreground(colorMuted),
	}
}

// Render writes the end-of-run summary to w.
func Render(w io.Writer, r *Report, opts RenderOptions) error {
	styles := newSummaryStyles(w)
	showSkipped := opts.ShowSkipped || opts.Verbose

	entries := r.Entries()
	width := 0
	for _, e := range entries {
		if l := lipgloss.Width(e.Name); l > width {
			width = l
		}
	}
	nameStyle := styles.name.Width(width + 2)

	var b strings.Builder
	header := fmt.Sprintf("Summary (%s)", xtime.Elapsed(r.Duration()))
	b.WriteString("\n" + styles.title.Render("── "+header+" ──") + "\n")

	hidden := 0
	for _, e := range entries {
		if e.Outcome.IsSkipped() && !showSkipped {
			hidden++
			continue
		}
		line := nameStyle.Render(e.Name) + statusText(styles, e.Outcome)
		if opts.Verbose && !e.Outcome.IsSkipped() {
			line += styles.muted.Render(" (" + xtime.Elapsed(e.Duration) + ")")
		}
		b.WriteString(line + "\n")
	}

	if hidden > 0 {
		noun := "entries"
		if hidden == 1 {
			noun = "entry"
		}
		b.WriteString(styles.muted.Render(fmt.Sprintf("%d skipped %s hidden, use --show-skipped to list them", hidden, noun)) + "\n")
	}

	success, skipped, failed := r.Counts()
	totals := fmt.Sprintf("%d succeeded, %d skipped, %d failed", success, skipped, failed)
	if failed > 0 {
		b.WriteString(styles.failed.Render(totals) + "\n")
	} else {
		b.WriteString(styles.success.Render(totals) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusText(styles summaryStyles, o Outcome) string {
	switch o.Status {
	case StatusSuccess:
		return styles.success.Render("OK")
	case StatusSkipped:
		return styles.skipped.Render("SKIPPED") + styles.muted.Render(": "+o.Reason)
	default:
		return styles.failed.Render("FAILED") + ": " + o.Detail()
	}
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// theme defines the colour palette for terminal output.
type theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

func defaultTheme() theme {
	return theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
	}
}

// renderer styles output for one writer. Colours are dropped when the
// writer is not a terminal.
type renderer struct {
	w io.Writer

	title     lipgloss.Style
	marker    lipgloss.Style
	source    lipgloss.Style
	muted     lipgloss.Style
	success   lipgloss.Style
	warning   lipgloss.Style
	errorText lipgloss.Style
	passage   lipgloss.Style
}

func newRenderer(w io.Writer) *renderer {
	t := defaultTheme()
	r := lipgloss.NewRenderer(w)

	return &renderer{
		w:         w,
		title:     r.NewStyle().Bold(true).Foreground(t.Primary),
		marker:    r.NewStyle().Bold(true).Foreground(t.Secondary),
		source:    r.NewStyle().Foreground(t.Secondary),
		muted:     r.NewStyle().Foreground(t.Muted),
		success:   r.NewStyle().Foreground(t.Success),
		warning:   r.NewStyle().Foreground(t.Warning),
		errorText: r.NewStyle().Bold(true).Foreground(t.Error),
		passage:   r.NewStyle().PaddingLeft(4),
	}
}

func (r *renderer) println(s string) {
	fmt.Fprintln(r.w, s)
}

// printRetrieval prints each passage under its citation marker, followed
// by a sources list.
func (r *renderer) printRetrieval(ret *domain.Retrieval) {
	if ret.Empty() {
		r.println(r.warning.Render(domain.NoInformationResponse))
		return
	}

	for i, res := range ret.Results {
		c := ret.Citations[i]
		origin := "indexed"
		if res.Ephemeral {
			origin = "attached"
		}
		r.println(fmt.Sprintf("%s %s %s",
			r.marker.Render(c.Label()),
			r.title.Render(c.SourceTitle),
			r.muted.Render(fmt.Sprintf("p. %d, %s, distance %.4f", c.Page, origin, res.Distance)),
		))
		r.println(r.passage.Render(res.Text))
		r.println("")
	}

	r.println(r.title.Render("Sources"))
	for _, c := range ret.Citations {
		r.println(fmt.Sprintf("  %s %s, page %d  %s",
			r.marker.Render(c.Label()), c.SourceTitle, c.Page, r.source.Render(c.Source)))
	}
}

func (r *renderer) printReport(report domain.IngestReport) {
	r.println(fmt.Sprintf("%s %s %s",
		r.success.Render("indexed"),
		report.Title,
		r.muted.Render(fmt.Sprintf("(%d pages, %d chunks) %s", report.Pages, report.Chunks, report.Source)),
	))
}

func (r *renderer) printStats(stats domain.IndexStats, sources []string) {
	r.println(r.title.Render("Durable index"))
	r.println(fmt.Sprintf("  Records: %d", stats.TotalRecords))
	r.println(fmt.Sprintf("  Sources: %d", stats.DistinctSources))
	if len(sources) == 0 {
		return
	}
	r.println("")
	for _, s := range sources {
		r.println("  " + r.source.Render(s))
	}
}

func (r *renderer) printSettings(entries []domain.SettingEntry) {
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Key))
	}

	section := ""
	for _, e := range entries {
		if group, _, _ := strings.Cut(e.Key, "."); group != section {
			if section != "" {
				r.println("")
			}
			section = group
			r.println(r.title.Render("[" + group + "]"))
		}
		r.println(fmt.Sprintf("  %-*s  %s  %s", width, e.Key, e.Value, r.muted.Render("("+e.Source+")")))
	}
}

func (r *renderer) printError(err error) {
	msg := err.Error()
	if domain.IsRetryable(err) {
		msg += r.muted.Render(" (temporary, retry later)")
	}
	r.println(r.errorText.Render("Error:") + " " + msg)
}

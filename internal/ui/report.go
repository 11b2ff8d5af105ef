package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/keywordscout/keywordscout/internal/keyword"
	"github.com/keywordscout/keywordscout/internal/pipeline"
)

// Report renders run results for the terminal.
type Report struct {
	styles Styles
	w      io.Writer

	// TopN limits the keyword table; zero shows everything.
	TopN int
}

// NewReport creates a report writer.
func NewReport(w io.Writer, styles Styles) *Report {
	return &Report{styles: styles, w: w, TopN: 20}
}

// Render writes the full run summary: top keywords, clusters, stage
// counts, and any degraded sources.
func (r *Report) Render(result *pipeline.RunResult) {
	s := r.styles

	fmt.Fprintln(r.w, s.Header.Render("Top keywords"))
	limit := len(result.Keywords)
	if r.TopN > 0 && limit > r.TopN {
		limit = r.TopN
	}
	for i := 0; i < limit; i++ {
		kw := result.Keywords[i]
		line := fmt.Sprintf("%3d. %s %s  %s",
			i+1,
			s.Score.Render(fmt.Sprintf("%5.1f", kw.FinalScore)),
			s.Value.Render(kw.DisplayText),
			s.Dim.Render(fmt.Sprintf("vol~%d comp %.2f", kw.VolumeEstimate, kw.CompetitionEstimate)),
		)
		fmt.Fprintln(r.w, line)
	}
	if limit < len(result.Keywords) {
		fmt.Fprintln(r.w, s.Dim.Render(fmt.Sprintf("  ... and %d more", len(result.Keywords)-limit)))
	}

	if len(result.Clusters) > 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, s.Header.Render("Clusters"))
		for _, c := range result.Clusters {
			fmt.Fprintf(r.w, "  %s %s\n",
				s.Label.Render(fmt.Sprintf("[%d] %s", c.ID, c.Label)),
				s.Cluster.Render(fmt.Sprintf("(%d keywords)", len(c.Members))))
		}
	}

	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, s.Header.Render("Run"))
	fmt.Fprintf(r.w, "  %s %s\n", s.Label.Render("harvested:"),
		s.Value.Render(fmt.Sprintf("%d", result.Stats.Harvested)))
	fmt.Fprintf(r.w, "  %s %s\n", s.Label.Render("unique:"),
		s.Value.Render(fmt.Sprintf("%d", result.Stats.Deduplicated)))
	fmt.Fprintf(r.w, "  %s %s\n", s.Label.Render("scored:"),
		s.Value.Render(fmt.Sprintf("%d", result.Stats.Scored)))
	fmt.Fprintf(r.w, "  %s %s\n", s.Label.Render("clusters:"),
		s.Value.Render(fmt.Sprintf("%d", len(result.Clusters))))
	fmt.Fprintf(r.w, "  %s %s\n", s.Label.Render("duration:"),
		s.Value.Render(result.Duration.Round(1e7).String()))
	if result.LimiterStats.TotalRequests > 0 {
		fmt.Fprintf(r.w, "  %s %s\n", s.Label.Render("requests:"),
			s.Value.Render(fmt.Sprintf("%d (%.0f%% ok)",
				result.LimiterStats.TotalRequests, result.LimiterStats.SuccessRate*100)))
	}

	if len(result.DegradedSources) > 0 {
		fmt.Fprintln(r.w, s.Warning.Render(
			"  degraded: "+strings.Join(result.DegradedSources, ", ")))
	}
	if result.Partial {
		fmt.Fprintln(r.w, s.Warning.Render("  run cancelled, results are partial"))
	}
}

// RenderKeywords writes a plain keyword table, used by the query command.
func (r *Report) RenderKeywords(kws []keyword.ScoredKeyword) {
	s := r.styles
	if len(kws) == 0 {
		fmt.Fprintln(r.w, s.Dim.Render("No keywords match the filter."))
		return
	}
	for i, kw := range kws {
		fmt.Fprintf(r.w, "%3d. %s %s  %s\n",
			i+1,
			s.Score.Render(fmt.Sprintf("%5.1f", kw.FinalScore)),
			s.Value.Render(kw.DisplayText),
			s.Dim.Render(fmt.Sprintf("vol~%d comp %.2f %s/%s",
				kw.VolumeEstimate, kw.CompetitionEstimate, kw.Geo, kw.Language)),
		)
	}
}

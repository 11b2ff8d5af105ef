// Package export writes run artifacts to disk: one CSV of scored keywords
// and one CSV of cluster assignments.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

// Exporter writes timestamped CSV artifacts under a base directory.
// The zero value is unusable; a nil *Exporter is a no-op, so the pipeline
// can run without exports configured.
type Exporter struct {
	dir string
	now func() time.Time
}

// New creates an exporter rooted at dir. The directory is created on the
// first write, not here.
func New(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Keywords writes the scored keyword table and returns the file path.
func (e *Exporter) Keywords(kws []keyword.ScoredKeyword) (string, error) {
	if e == nil {
		return "", nil
	}
	path := filepath.Join(e.dir, fmt.Sprintf("keywords_%s.csv", e.stamp()))

	rows := make([][]string, 0, len(kws)+1)
	rows = append(rows, []string{
		"keyword", "display", "score", "volume", "trend", "competition",
		"intent", "geo", "language", "source", "penalties", "bonuses",
	})
	for _, kw := range kws {
		rows = append(rows, []string{
			kw.NormalizedText,
			kw.DisplayText,
			formatScore(kw.FinalScore),
			strconv.Itoa(kw.VolumeEstimate),
			formatScore(kw.TrendScore),
			strconv.FormatFloat(kw.CompetitionEstimate, 'f', 2, 64),
			strconv.FormatFloat(kw.IntentWeight, 'f', 2, 64),
			kw.Geo,
			kw.Language,
			kw.SourceLabel,
			strings.Join(kw.AppliedPenalties, ";"),
			strings.Join(kw.AppliedBonuses, ";"),
		})
	}
	return path, e.write(path, rows)
}

// Clusters writes the cluster assignment table and returns the file path.
func (e *Exporter) Clusters(clusters []keyword.Cluster) (string, error) {
	if e == nil {
		return "", nil
	}
	path := filepath.Join(e.dir, fmt.Sprintf("clusters_%s.csv", e.stamp()))

	rows := [][]string{{"cluster_id", "cluster_label", "keyword", "score"}}
	for _, c := range clusters {
		for _, kw := range c.Members {
			rows = append(rows, []string{
				strconv.Itoa(c.ID),
				c.Label,
				kw.NormalizedText,
				formatScore(kw.FinalScore),
			})
		}
	}
	return path, e.write(path, rows)
}

func (e *Exporter) write(path string, rows [][]string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Sync()
}

func (e *Exporter) stamp() string {
	return e.now().Format("20060102_150405")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Package store persists scored keywords and run statistics in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keywordscout/keywordscout/internal/keyword"
)

// KeywordStore is a SQLite-backed keyword archive. Rows are keyed by
// (keyword, geo, language); re-inserting an existing key refreshes its
// signals and score.
type KeywordStore struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (creating if needed) the keyword database at path.
// Pass ":memory:" for an ephemeral store.
func Open(path string) (*KeywordStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open keyword db: %w", err)
	}

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; the DSN
	// parameters alone are not honored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &KeywordStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT NOT NULL,
		display TEXT NOT NULL,
		geo TEXT NOT NULL,
		language TEXT NOT NULL,
		source TEXT,
		discovered_from TEXT,
		word_count INTEGER NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		trend_score REAL NOT NULL DEFAULT 0,
		competition REAL NOT NULL DEFAULT 0,
		intent_weight REAL NOT NULL DEFAULT 0,
		final_score REAL NOT NULL DEFAULT 0,
		penalties TEXT,
		bonuses TEXT,
		scored_at TIMESTAMP,
		UNIQUE(keyword, geo, language)
	);
	CREATE INDEX IF NOT EXISTS idx_keywords_score ON keywords(final_score DESC);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		seeds TEXT NOT NULL,
		geo TEXT NOT NULL,
		language TEXT NOT NULL,
		harvested INTEGER NOT NULL DEFAULT 0,
		deduplicated INTEGER NOT NULL DEFAULT 0,
		scored INTEGER NOT NULL DEFAULT 0,
		clustered INTEGER NOT NULL DEFAULT 0,
		degraded_sources TEXT
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create keyword schema: %w", err)
	}
	return nil
}

// InsertKeywords upserts a batch of scored keywords in one transaction and
// returns the number of rows written.
func (s *KeywordStore) InsertKeywords(kws []keyword.ScoredKeyword) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("keyword store is closed")
	}
	if len(kws) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO keywords (
			keyword, display, geo, language, source, discovered_from,
			word_count, volume, trend_score, competition, intent_weight,
			final_score, penalties, bonuses, scored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword, geo, language) DO UPDATE SET
			display = excluded.display,
			source = excluded.source,
			discovered_from = excluded.discovered_from,
			word_count = excluded.word_count,
			volume = excluded.volume,
			trend_score = excluded.trend_score,
			competition = excluded.competition,
			intent_weight = excluded.intent_weight,
			final_score = excluded.final_score,
			penalties = excluded.penalties,
			bonuses = excluded.bonuses,
			scored_at = excluded.scored_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, kw := range kws {
		_, err := stmt.Exec(
			kw.NormalizedText, kw.DisplayText, kw.Geo, kw.Language,
			kw.SourceLabel, kw.DiscoveredFrom,
			kw.WordCount(), kw.VolumeEstimate, kw.TrendScore,
			kw.CompetitionEstimate, kw.IntentWeight, kw.FinalScore,
			strings.Join(kw.AppliedPenalties, ","),
			strings.Join(kw.AppliedBonuses, ","),
			kw.ScoredAt,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert keyword %q: %w", kw.NormalizedText, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return written, nil
}

// Filter narrows Query results. Zero values mean "no constraint".
type Filter struct {
	Geo            string
	Language       string
	MinScore       float64
	MinVolume      int
	MaxCompetition float64
	MinWords       int
	Limit          int
}

// Query returns stored keywords matching the filter, highest score first.
func (s *KeywordStore) Query(f Filter) ([]keyword.ScoredKeyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("keyword store is closed")
	}

	var (
		conds []string
		args  []any
	)
	if f.Geo != "" {
		conds = append(conds, "geo = ?")
		args = append(args, f.Geo)
	}
	if f.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, f.Language)
	}
	if f.MinScore > 0 {
		conds = append(conds, "final_score >= ?")
		args = append(args, f.MinScore)
	}
	if f.MinVolume > 0 {
		conds = append(conds, "volume >= ?")
		args = append(args, f.MinVolume)
	}
	if f.MaxCompetition > 0 {
		conds = append(conds, "competition <= ?")
		args = append(args, f.MaxCompetition)
	}
	if f.MinWords > 0 {
		conds = append(conds, "word_count >= ?")
		args = append(args, f.MinWords)
	}

	query := `
		SELECT keyword, display, geo, language, source, discovered_from,
			volume, trend_score, competition, intent_weight, final_score,
			penalties, bonuses, scored_at
		FROM keywords`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY final_score DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var out []keyword.ScoredKeyword
	for rows.Next() {
		var (
			kw                 keyword.ScoredKeyword
			penalties, bonuses sql.NullString
			scoredAt           sql.NullTime
		)
		if err := rows.Scan(
			&kw.NormalizedText, &kw.DisplayText, &kw.Geo, &kw.Language,
			&kw.SourceLabel, &kw.DiscoveredFrom,
			&kw.VolumeEstimate, &kw.TrendScore, &kw.CompetitionEstimate,
			&kw.IntentWeight, &kw.FinalScore, &penalties, &bonuses, &scoredAt,
		); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		kw.AppliedPenalties = splitLabels(penalties.String)
		kw.AppliedBonuses = splitLabels(bonuses.String)
		if scoredAt.Valid {
			kw.ScoredAt = scoredAt.Time
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

// RunStats summarizes one pipeline execution.
type RunStats struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	Seeds           []string
	Geo             string
	Language        string
	Harvested       int
	Deduplicated    int
	Scored          int
	Clustered       int
	DegradedSources []string
}

// RecordRun appends a run statistics row.
func (s *KeywordStore) RecordRun(stats RunStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("keyword store is closed")
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (
			started_at, finished_at, seeds, geo, language,
			harvested, deduplicated, scored, clustered, degraded_sources
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		stats.StartedAt, stats.FinishedAt, strings.Join(stats.Seeds, ","),
		stats.Geo, stats.Language, stats.Harvested, stats.Deduplicated,
		stats.Scored, stats.Clustered, strings.Join(stats.DegradedSources, ","),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Count returns the total number of stored keywords.
func (s *KeywordStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("keyword store is closed")
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM keywords").Scan(&n); err != nil {
		return 0, fmt.Errorf("count keywords: %w", err)
	}
	return n, nil
}

// Close releases the underlying database.
func (s *KeywordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func splitLabels(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

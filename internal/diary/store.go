// Package diary persists the health diary entries whose snapshot is handed
// to a dictation session as read-only drafting context.
package diary

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry types.
const (
	TypeSymptom = "symptom"
	TypeFood    = "food"
	TypeMood    = "mood"
	TypeGeneral = "general"
)

// symptomLexicon drives keyword tagging of symptom entries.
var symptomLexicon = []string{
	"headache", "pain", "fever", "nausea", "fatigue", "cough", "sore throat",
}

// Entry is one diary record.
type Entry struct {
	ID        int64
	Type      string
	Text      string
	Tags      []string
	CreatedAt time.Time
}

// SymptomCount is one lexicon keyword with its occurrence count.
type SymptomCount struct {
	Symptom string
	Count   int
}

// Store is a SQLite-backed diary.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the diary database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS entries (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			type      TEXT NOT NULL,
			text      TEXT NOT NULL,
			tags      TEXT NOT NULL DEFAULT '',
			createdAt REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_createdAt ON entries(createdAt);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a new entry. Symptom entries are tagged against the lexicon.
func (s *Store) Add(ctx context.Context, entryType, text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, fmt.Errorf("entry text must not be empty")
	}
	switch entryType {
	case TypeSymptom, TypeFood, TypeMood, TypeGeneral:
	default:
		return Entry{}, fmt.Errorf("unknown entry type %q", entryType)
	}

	entry := Entry{
		Type:      entryType,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if entryType == TypeSymptom {
		entry.Tags = TagSymptoms(text)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (type, text, tags, createdAt)
		VALUES (?, ?, ?, ?)
	`, entry.Type, entry.Text, strings.Join(entry.Tags, ","), unixFloat(entry.CreatedAt))
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("last insert id: %w", err)
	}
	return entry, nil
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, text, tags, createdAt
		FROM entries
		ORDER BY createdAt DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var tags string
		var createdAt float64
		if err := rows.Scan(&e.ID, &e.Type, &e.Text, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if tags != "" {
			e.Tags = strings.Split(tags, ",")
		}
		e.CreatedAt = timeFromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ContextSnapshot formats the newest entries as "type: text" lines, oldest
// first, for inclusion in a session's drafting context.
func (s *Store) ContextSnapshot(ctx context.Context, limit int) ([]string, error) {
	entries, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("%s: %s", entries[i].Type, entries[i].Text))
	}
	return lines, nil
}

// SymptomCounts aggregates lexicon tags over all symptom entries, most
// frequent first, capped at limit.
func (s *Store) SymptomCounts(ctx context.Context, limit int) ([]SymptomCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tags FROM entries WHERE type = ? AND tags != ''
	`, TypeSymptom)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, fmt.Errorf("scan tags: %w", err)
		}
		for _, tag := range strings.Split(tags, ",") {
			counts[tag]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Lexicon order breaks ties so the output is stable.
	var out []SymptomCount
	for _, symptom := range symptomLexicon {
		if n := counts[symptom]; n > 0 {
			out = append(out, SymptomCount{Symptom: symptom, Count: n})
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Count > out[i].Count {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TagSymptoms returns the lexicon keywords present in the text.
func TagSymptoms(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, symptom := range symptomLexicon {
		if strings.Contains(lower, symptom) {
			tags = append(tags, symptom)
		}
	}
	return tags
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

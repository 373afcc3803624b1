// Package reviewstore keeps a SQLite record of refined protocols and of
// the speaker announcements that could not be attributed, for manual review.
package reviewstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/protorefine/internal/attribute"
)

const schema = `
CREATE TABLE IF NOT EXISTS protocols (
	protocol      TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL,
	filename      TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	year          INTEGER NOT NULL,
	dates_json    TEXT NOT NULL,
	utterances    INTEGER NOT NULL,
	unknowns      INTEGER NOT NULL,
	refined_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id      TEXT NOT NULL,
	protocol    TEXT NOT NULL,
	node_id     TEXT NOT NULL,
	text        TEXT NOT NULL,
	name        TEXT NOT NULL,
	role        TEXT NOT NULL,
	other       TEXT NOT NULL,
	gender      TEXT NOT NULL,
	party       TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_protocol ON observations(protocol);
`

// Protocol is the stored summary of one refined protocol.
type Protocol struct {
	Protocol    string    `json:"protocol"`
	JobID       string    `json:"job_id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	Year        int       `json:"year"`
	Dates       []string  `json:"dates"`
	Utterances  int       `json:"utterances"`
	Unknowns    int       `json:"unknowns"`
	RefinedAt   time.Time `json:"refined_at"`
}

// Entry is a stored unknown-speaker observation.
type Entry struct {
	ID    int64  `json:"id"`
	JobID string `json:"job_id"`
	attribute.Observation
	CreatedAt time.Time `json:"created_at"`
}

// Store manages the review database.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// dsn applies the pragmas to every pooled connection. Write transactions
// take the lock up front so concurrent recorders wait on busy_timeout.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a protocol summary together with its unknown-speaker
// observations. Recording a protocol again replaces its earlier rows.
func (s *Store) Record(ctx context.Context, p Protocol, obs []attribute.Observation) error {
	datesJSON, err := json.Marshal(p.Dates)
	if err != nil {
		return fmt.Errorf("marshal dates: %w", err)
	}
	if p.RefinedAt.IsZero() {
		p.RefinedAt = time.Now()
	}
	refinedAt := p.RefinedAt.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO protocols (protocol, job_id, filename, content_hash, year, dates_json, utterances, unknowns, refined_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(protocol) DO UPDATE SET
			job_id = excluded.job_id,
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			year = excluded.year,
			dates_json = excluded.dates_json,
			utterances = excluded.utterances,
			unknowns = excluded.unknowns,
			refined_at = excluded.refined_at`,
		p.Protocol, p.JobID, p.Filename, p.ContentHash, p.Year, string(datesJSON), p.Utterances, len(obs), refinedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert protocol: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE protocol = ?`, p.Protocol); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (job_id, protocol, node_id, text, name, role, other, gender, party, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, p.JobID, p.Protocol, o.NodeID, o.Text, o.Name, o.Role, o.Other, o.Gender, o.Party, refinedAt); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return tx.Commit()
}

// List returns stored observations, newest first. An empty protocol lists
// every protocol.
func (s *Store) List(ctx context.Context, protocol string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, job_id, protocol, node_id, text, name, role, other, gender, party, created_at
		FROM observations`
	args := []any{}
	if protocol != "" {
		q += ` WHERE protocol = ?`
		args = append(args, protocol)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.JobID, &e.Protocol, &e.NodeID, &e.Text, &e.Name, &e.Role, &e.Other, &e.Gender, &e.Party, &created); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored observations for a protocol, or for
// all protocols when protocol is empty.
func (s *Store) Count(ctx context.Context, protocol string) (int, error) {
	var n int
	var err error
	if protocol == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations WHERE protocol = ?`, protocol).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// Protocols returns recorded protocol summaries ordered by name.
func (s *Store) Protocols(ctx context.Context, limit int) ([]Protocol, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT protocol, job_id, filename, content_hash, year, dates_json, utterances, unknowns, refined_at
		 FROM protocols ORDER BY protocol LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query protocols: %w", err)
	}
	defer rows.Close()

	var out []Protocol
	for rows.Next() {
		var p Protocol
		var datesJSON, refined string
		if err := rows.Scan(&p.Protocol, &p.JobID, &p.Filename, &p.ContentHash, &p.Year, &datesJSON, &p.Utterances, &p.Unknowns, &refined); err != nil {
			return nil, fmt.Errorf("scan protocol: %w", err)
		}
		if err := json.Unmarshal([]byte(datesJSON), &p.Dates); err != nil {
			return nil, fmt.Errorf("unmarshal dates: %w", err)
		}
		p.RefinedAt, _ = time.Parse(time.RFC3339Nano, refined)
		out = append(out, p)
	}
	return out, rows.Err()
}

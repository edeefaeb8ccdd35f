// Package store persists rule atoms, knowledge docs and scan reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/clausecheck/internal/model"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS rule_atoms (
	code        TEXT PRIMARY KEY,
	law_ref     TEXT NOT NULL,
	predicate   TEXT NOT NULL,
	severity    TEXT NOT NULL,
	atom_json   TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kb_docs (
	doc_id      TEXT PRIMARY KEY,
	law_id      TEXT NOT NULL,
	ref         TEXT NOT NULL,
	title       TEXT,
	text        TEXT NOT NULL,
	embedding   BLOB,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kb_docs_law ON kb_docs(law_id);

CREATE TABLE IF NOT EXISTS reports (
	report_id   TEXT PRIMARY KEY,
	source      TEXT,
	goal        TEXT,
	status      TEXT NOT NULL,
	lang        TEXT,
	violations  INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	report_json TEXT NOT NULL
);
`

// Store wraps a SQLite database
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Pragmas go in the DSN so every pooled connection gets them; writes are
// serialized on one connection since SQLite allows a single writer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRules inserts or replaces atoms by code. Existing rows keep their
// position, so Rules returns atoms in first-import order.
func (s *Store) UpsertRules(ctx context.Context, atoms []model.RuleAtom) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, a := range atoms {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal atom %s: %w", a.Code, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rule_atoms (code, law_ref, predicate, severity, atom_json, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(code) DO UPDATE SET
			   law_ref = excluded.law_ref, predicate = excluded.predicate,
			   severity = excluded.severity, atom_json = excluded.atom_json,
			   updated_at = excluded.updated_at`,
			a.Code, a.LawRef, string(a.Predicate), string(a.Severity), string(data), now,
		)
		if err != nil {
			return fmt.Errorf("upsert atom %s: %w", a.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rules returns all stored atoms
func (s *Store) Rules(ctx context.Context) ([]model.RuleAtom, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT atom_json FROM rule_atoms ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query atoms: %w", err)
	}
	defer rows.Close()

	var atoms []model.RuleAtom
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan atom: %w", err)
		}
		var a model.RuleAtom
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decode atom: %w", err)
		}
		atoms = append(atoms, a)
	}
	return atoms, rows.Err()
}

// UpsertDocs inserts or replaces knowledge docs by ID
func (s *Store) UpsertDocs(ctx context.Context, docs []model.KnowledgeDoc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		var emb []byte
		if len(d.Embedding) > 0 {
			emb = encodeVector(d.Embedding)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kb_docs (doc_id, law_id, ref, title, text, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(doc_id) DO UPDATE SET
			   law_id = excluded.law_id, ref = excluded.ref, title = excluded.title,
			   text = excluded.text, embedding = excluded.embedding`,
			id, d.LawID, d.Ref, d.Title, d.Text, emb, now,
		)
		if err != nil {
			return fmt.Errorf("upsert doc %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Docs returns knowledge docs in insertion order; an empty lawID returns all
func (s *Store) Docs(ctx context.Context, lawID string) ([]model.KnowledgeDoc, error) {
	query := `SELECT doc_id, law_id, ref, title, text, embedding FROM kb_docs`
	var args []any
	if lawID != "" {
		query += ` WHERE law_id = ?`
		args = append(args, lawID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query docs: %w", err)
	}
	defer rows.Close()

	var docs []model.KnowledgeDoc
	for rows.Next() {
		var d model.KnowledgeDoc
		var title sql.NullString
		var emb []byte
		if err := rows.Scan(&d.ID, &d.LawID, &d.Ref, &title, &d.Text, &emb); err != nil {
			return nil, fmt.Errorf("scan doc: %w", err)
		}
		d.Title = title.String
		if len(emb) > 0 {
			d.Embedding = decodeVector(emb)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocs removes every doc of lawID and returns the number removed
func (s *Store) DeleteDocs(ctx context.Context, lawID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kb_docs WHERE law_id = ?`, lawID)
	if err != nil {
		return 0, fmt.Errorf("delete docs: %w", err)
	}
	return res.RowsAffected()
}

// ReportSummary is one row of the reports listing
type ReportSummary struct {
	ID         string
	Source     string
	Status     model.Status
	Violations int
	StartedAt  time.Time
	ElapsedMS  int64
}

// SaveReport stores a report, assigning an ID if it has none
func (s *Store) SaveReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (report_id, source, goal, status, lang, violations, started_at, elapsed_ms, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(report_id) DO UPDATE SET
		   status = excluded.status, violations = excluded.violations,
		   elapsed_ms = excluded.elapsed_ms, report_json = excluded.report_json`,
		r.ID, r.Source, r.Goal, string(r.Status), r.Lang, len(r.Findings),
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.ElapsedMS, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Report loads a stored report by ID
func (s *Store) Report(ctx context.Context, id string) (*model.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE report_id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var r model.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// ListReports returns the most recent reports first
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id, source, status, violations, started_at, elapsed_ms
		 FROM reports ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var rs ReportSummary
		var source sql.NullString
		var status, started string
		if err := rows.Scan(&rs.ID, &source, &status, &rs.Violations, &started, &rs.ElapsedMS); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rs.Source = source.String
		rs.Status = model.Status(status)
		rs.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/seboll13/TextGenerator/pkg/tagger"
)

// ErrModelNotFound is returned when a model name is not present in the database.
var ErrModelNotFound = errors.New("store: model not found")

// SetupSchema initializes the necessary tables in the provided database. This
// function should be called once on a new database before any other operations
// are performed. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS textgen_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS textgen_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_mode TEXT NOT NULL
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS textgen_transitions (
    model_id INTEGER NOT NULL,
    cur_token_id INTEGER NOT NULL,
    cur_tag TEXT NOT NULL DEFAULT '',
    next_token_id INTEGER NOT NULL,
    next_tag TEXT NOT NULL DEFAULT '',
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, cur_token_id, cur_tag, next_token_id, next_tag)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaVocab); err != nil {
		return fmt.Errorf("could not create vocabulary schema: %w", err)
	}

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists trained transition counts in SQLite. It holds the database
// connection, the tagger used to turn training text into tokens, and prepared
// SQL statements for the hot paths.
type Store struct {
	db               *sql.DB
	tagger           *tagger.Tagger
	stmtGetModelInfo *sql.Stmt
	stmtGetModels    *sql.Stmt
	stmtAddModel     *sql.Stmt
	stmtPruneModel   *sql.Stmt
	stmtModelLinks   *sql.Stmt
	stmtModelFreq    *sql.Stmt
	stmtModelWords   *sql.Stmt
	stmtModelTags    *sql.Stmt
	stmtLoadModel    *sql.Stmt
	stmtGetVocabLen  *sql.Stmt
	stmtInsertVocab  *sql.Stmt
	stmtInsertLink   *sql.Stmt
	logger           *slog.Logger
}

// NewStore creates a Store on top of db. A nil tagger uses tagger.NewTagger(nil).
// All SQL statements are prepared up front and an error is returned if any of
// them fails.
func NewStore(db *sql.DB, tg *tagger.Tagger) (*Store, error) {
	if tg == nil {
		tg = tagger.NewTagger(nil)
	}

	s := &Store{
		db:     db,
		tagger: tg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetModelInfo, `SELECT model_id, model_mode FROM textgen_models WHERE model_name = ?;`},
		{&s.stmtGetModels, `SELECT model_id, model_name, model_mode FROM textgen_models ORDER BY model_name;`},
		{&s.stmtAddModel, `INSERT INTO textgen_models (model_name, model_mode) VALUES (?, ?);`},
		{&s.stmtPruneModel, `DELETE FROM textgen_transitions WHERE model_id = ? AND frequency <= ?;`},
		{&s.stmtModelLinks, `SELECT COUNT(*) FROM textgen_transitions WHERE model_id = ?;`},
		{&s.stmtModelFreq, `SELECT coalesce(SUM(frequency), 0) FROM textgen_transitions WHERE model_id = ?;`},
		{&s.stmtModelWords, `SELECT COUNT(DISTINCT cur_token_id) FROM textgen_transitions WHERE model_id = ?;`},
		{&s.stmtModelTags, `SELECT COUNT(DISTINCT cur_tag) FROM textgen_transitions WHERE model_id = ? AND cur_tag <> '';`},
		{&s.stmtLoadModel, `
SELECT cv.token_text, t.cur_tag, nv.token_text, t.next_tag, t.frequency
FROM textgen_transitions t
JOIN textgen_vocabulary cv ON cv.token_id = t.cur_token_id
JOIN textgen_vocabulary nv ON nv.token_id = t.next_token_id
WHERE t.model_id = ?;`},
		{&s.stmtGetVocabLen, `SELECT COUNT(*) FROM textgen_vocabulary;`},
		{&s.stmtInsertVocab, `INSERT INTO textgen_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`},
		{&s.stmtInsertLink, `
INSERT INTO textgen_transitions (model_id, cur_token_id, cur_tag, next_token_id, next_tag, frequency) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(model_id, cur_token_id, cur_tag, next_token_id, next_tag) DO UPDATE SET frequency = frequency + excluded.frequency;`},
	}

	for _, st := range statements {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*st.dst = stmt
	}

	return s, nil
}

// Close releases all prepared SQL statements held by the Store. The database
// itself is owned by the caller and stays open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetModelInfo,
		s.stmtGetModels,
		s.stmtAddModel,
		s.stmtPruneModel,
		s.stmtModelLinks,
		s.stmtModelFreq,
		s.stmtModelWords,
		s.stmtModelTags,
		s.stmtLoadModel,
		s.stmtGetVocabLen,
		s.stmtInsertVocab,
		s.stmtInsertLink,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
// The same logger is handed to models loaded through LoadModel.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Tagger returns the tagger used to tokenize training text.
func (s *Store) Tagger() *tagger.Tagger {
	return s.tagger
}

// Package storage persists per-file stack graphs and partial paths in a
// SQLite database and loads them back lazily at query time. Artifacts are
// keyed by file name; graphs carry a caller-supplied content tag for
// freshness checks (the index command uses a SHA-1 of the serialized graph
// file it loaded).
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/tangle/api"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
)

var (
	// ErrFileNotIndexed is returned when a query names a file the store has
	// never indexed.
	ErrFileNotIndexed = errors.New("file not indexed")
)

// unitSeparator joins the symbols of a root path's symbol stack key.
const unitSeparator = "␟"

// Status describes the freshness of a stored file.
type Status uint8

const (
	// StatusMissing: the file has never been indexed.
	StatusMissing Status = iota
	// StatusIndexed: the stored artifacts match the given tag.
	StatusIndexed
	// StatusStale: the stored artifacts were built from different content.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusIndexed:
		return "indexed"
	case StatusStale:
		return "stale"
	default:
		return "missing"
	}
}

// FileEntry is one stored file and its content tag.
type FileEntry struct {
	File string
	Tag  string
}

// Store is a SQLite-backed store of serialized per-file subgraphs and
// partial paths.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Bulk-insert friendly settings; artifacts are rebuildable, so
	// durability takes the back seat.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS graphs (
		file TEXT PRIMARY KEY,
		tag  TEXT NOT NULL,
		json BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS file_paths (
		file     TEXT NOT NULL,
		local_id INTEGER NOT NULL,
		json     BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_file_paths_start ON file_paths(file, local_id);
	CREATE TABLE IF NOT EXISTS root_paths (
		file         TEXT NOT NULL,
		symbol_stack TEXT NOT NULL,
		json         BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_root_paths_key ON root_paths(symbol_stack);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreFile replaces the stored artifacts for one file: its serialized
// subgraph (tagged with the content tag) and its partial paths, in a single
// transaction. Partial paths starting at the root are keyed by their symbol
// stack precondition; all others by their start node's local id.
func (s *Store) StoreFile(
	g *graph.StackGraph,
	pp *partial.PartialPaths,
	file graph.FileHandle,
	tag string,
	partialPaths []partial.PartialPath,
) error {
	fileName := g.File(file).Name()
	graphBlob, err := json.Marshal(api.FromGraphFile(g, file))
	if err != nil {
		return fmt.Errorf("serialize graph %s: %w", fileName, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO graphs (file, tag, json) VALUES (?, ?, ?)",
		fileName, tag, graphBlob,
	); err != nil {
		return fmt.Errorf("store graph %s: %w", fileName, err)
	}
	if _, err := tx.Exec("DELETE FROM file_paths WHERE file = ?", fileName); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM root_paths WHERE file = ?", fileName); err != nil {
		return err
	}

	stmtFile, err := tx.Prepare("INSERT INTO file_paths (file, local_id, json) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmtFile.Close() }()
	stmtRoot, err := tx.Prepare("INSERT INTO root_paths (file, symbol_stack, json) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmtRoot.Close() }()

	for i := range partialPaths {
		path := &partialPaths[i]
		blob, err := json.Marshal(api.FromPartialPath(g, pp, path))
		if err != nil {
			return fmt.Errorf("serialize partial path: %w", err)
		}
		start := g.Node(path.StartNode)
		switch {
		case start.IsRoot():
			key := symbolStackKey(g, pp, path.SymbolStackPrecondition)
			if _, err := stmtRoot.Exec(fileName, key, blob); err != nil {
				return err
			}
		case start.ID.IsInFile(file):
			if _, err := stmtFile.Exec(fileName, start.ID.LocalID(), blob); err != nil {
				return err
			}
		default:
			return fmt.Errorf("partial path for %s starts in another file", fileName)
		}
	}

	return tx.Commit()
}

// StatusForFile compares the stored tag for file against tag.
func (s *Store) StatusForFile(file, tag string) (Status, error) {
	var stored string
	err := s.db.QueryRow("SELECT tag FROM graphs WHERE file = ?", file).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return StatusMissing, nil
	case err != nil:
		return StatusMissing, err
	case stored == tag:
		return StatusIndexed, nil
	default:
		return StatusStale, nil
	}
}

// ListFiles returns every stored file with its tag, ordered by name.
func (s *Store) ListFiles() ([]FileEntry, error) {
	rows, err := s.db.Query("SELECT file, tag FROM graphs ORDER BY file")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []FileEntry
	for rows.Next() {
		var e FileEntry
		if err := rows.Scan(&e.File, &e.Tag); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteFile removes every artifact stored for file.
func (s *Store) DeleteFile(file string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range []string{"graphs", "file_paths", "root_paths"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE file = ?", file); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteAll removes every stored artifact.
func (s *Store) DeleteAll() error {
	for _, table := range []string{"graphs", "file_paths", "root_paths"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return nil
}

// symbolStackKey joins the concrete symbols of a partial symbol stack with
// U+241F (Symbol For Unit Separator), front to back.
func symbolStackKey(g *graph.StackGraph, pp *partial.PartialPaths, stack partial.PartialSymbolStack) string {
	var parts []string
	stack.ForEach(pp, func(symbol partial.PartialScopedSymbol) {
		parts = append(parts, g.SymbolText(symbol.Symbol))
	})
	return strings.Join(parts, unitSeparator)
}

// symbolStackKeyPrefixes returns the keys of every prefix of the stack,
// shortest (empty) first.
func symbolStackKeyPrefixes(g *graph.StackGraph, pp *partial.PartialPaths, stack partial.PartialSymbolStack) []string {
	prefixes := []string{""}
	stack.ForEach(pp, func(symbol partial.PartialScopedSymbol) {
		key := prefixes[len(prefixes)-1]
		if key != "" {
			key += unitSeparator
		}
		key += g.SymbolText(symbol.Symbol)
		prefixes = append(prefixes, key)
	})
	return prefixes
}

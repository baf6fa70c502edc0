// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.CaseIndex = (*CaseIndex)(nil)

// CaseIndex implements store.CaseIndex backed by SQLite with sqlite-vec. It
// indexes one embedding per analysis result for similar-case retrieval.
type CaseIndex struct {
	db         *sql.DB
	dimensions int
}

// NewCaseIndex opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and companion metadata table.
func NewCaseIndex(dbPath string, dimensions int) (*CaseIndex, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening case index db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging case index db: %w", err)
	}

	if err := migrateCaseIndex(db, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating case index tables: %w", err)
	}

	return &CaseIndex{db: db, dimensions: dimensions}, nil
}

func migrateCaseIndex(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS case_vectors USING vec0(result_id INTEGER PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating case_vectors virtual table: %w", err)
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS case_metadata (
	result_id INTEGER PRIMARY KEY,
	metadata  TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return fmt.Errorf("creating case_metadata table: %w", err)
	}

	return nil
}

// Store inserts or replaces a result's embedding and metadata.
func (c *CaseIndex) Store(ctx context.Context, resultID int64, embedding []float32, metadata map[string]any) error {
	if len(embedding) != c.dimensions {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(embedding), c.dimensions)
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshalling case metadata: %w", err)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM case_vectors WHERE result_id = ?`, resultID); err != nil {
		return fmt.Errorf("deleting existing vector for result %d: %w", resultID, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO case_vectors(result_id, embedding) VALUES (?, ?)`, resultID, blob); err != nil {
		return fmt.Errorf("inserting vector for result %d: %w", resultID, err)
	}

	const metaQ = `INSERT INTO case_metadata(result_id, metadata) VALUES (?, ?)
ON CONFLICT(result_id) DO UPDATE SET metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, metaQ, resultID, string(metaJSON)); err != nil {
		return fmt.Errorf("upserting case metadata for result %d: %w", resultID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing case index write: %w", err)
	}
	return nil
}

// Search performs a k-nearest-neighbor search. Distance is L2; lower means
// more similar, 0.0 is an exact match.
func (c *CaseIndex) Search(ctx context.Context, query []float32, k int) ([]store.CaseMatch, error) {
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	const q = `SELECT v.result_id, v.distance, COALESCE(m.metadata, '{}')
FROM case_vectors v
LEFT JOIN case_metadata m ON m.result_id = v.result_id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := c.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, fmt.Errorf("searching case vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []store.CaseMatch
	for rows.Next() {
		var m store.CaseMatch
		var metaStr string

		if err := rows.Scan(&m.ResultID, &m.Distance, &metaStr); err != nil {
			return nil, fmt.Errorf("scanning case match: %w", err)
		}

		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling case metadata: %w", err)
			}
		}

		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating case matches: %w", err)
	}

	return matches, nil
}

// Close closes the underlying database connection.
func (c *CaseIndex) Close() error {
	return c.db.Close()
}

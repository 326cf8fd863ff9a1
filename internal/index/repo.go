package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/models"
)

// EntryRow represents a row in the entries table.
type EntryRow struct {
	ID        string
	Title     string
	Checksum  string
	LinkCount int
	UpdatedAt time.Time
}

// GraphNode is one entry in the link graph.
type GraphNode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	LinkCount int    `json:"link_count"`
}

// ErrUnknownSort is returned by ListEntries for an unsupported sort key.
var ErrUnknownSort = errors.New("index: unknown sort key")

// sortColumns maps accepted sort keys to ORDER BY clauses.
var sortColumns = map[string]string{
	"":        "id ASC",
	"id":      "id ASC",
	"title":   "title ASC, id ASC",
	"updated": "updated_at DESC, id ASC",
	"links":   "link_count DESC, id ASC",
}

// UpsertEntry inserts or replaces an entry and its outgoing links within a
// transaction.
func (db *DB) UpsertEntry(e EntryRow, edges []models.Edge) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO entries (id, title, checksum, link_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			link_count = excluded.link_count,
			updated_at = excluded.updated_at
	`, e.ID, e.Title, e.Checksum, e.LinkCount, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	// Replace links: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, e.ID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(edges) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, annotation, annotated) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, ed := range edges {
			if _, err := stmt.Exec(e.ID, ed.Target, ed.Annotation, ed.Annotated); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteEntry removes an entry and its outgoing links.
func (db *DB) DeleteEntry(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, id); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete entry: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for an entry, or empty string if
// it is not indexed.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entries WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// GetEntry returns the indexed row for id.
func (db *DB) GetEntry(id string) (*EntryRow, error) {
	var r EntryRow
	err := db.conn.QueryRow(`
		SELECT id, title, checksum, link_count, updated_at FROM entries WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &r.Checksum, &r.LinkCount, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: entry %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get entry: %w", err)
	}
	return &r, nil
}

// ListEntries returns a page of entries whose ID starts with prefix, plus
// the total number of matches.
func (db *DB) ListEntries(limit, offset int, prefix, sort string) ([]EntryRow, int, error) {
	order, ok := sortColumns[sort]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownSort, sort)
	}
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := db.conn.QueryRow(
		`SELECT count(*) FROM entries WHERE substr(id, 1, ?) = ?`, len(prefix), prefix,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count entries: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, checksum, link_count, updated_at FROM entries
		WHERE substr(id, 1, ?) = ?
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, len(prefix), prefix, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list entries: %w", err)
	}
	defer rows.Close()

	var out []EntryRow
	for rows.Next() {
		var r EntryRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Checksum, &r.LinkCount, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Backlinks returns every indexed link pointing at target, ordered by source.
func (db *DB) Backlinks(target string) ([]models.Edge, error) {
	rows, err := db.conn.Query(`
		SELECT source, target, annotation, annotated FROM links
		WHERE target = ?
		ORDER BY source, annotated, annotation
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// Graph returns every indexed entry and every indexed link.
func (db *DB) Graph() ([]GraphNode, []models.Edge, error) {
	nrows, err := db.conn.Query(`SELECT id, title, link_count FROM entries ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer nrows.Close()

	var nodes []GraphNode
	for nrows.Next() {
		var n GraphNode
		if err := nrows.Scan(&n.ID, &n.Title, &n.LinkCount); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := nrows.Err(); err != nil {
		return nil, nil, err
	}

	erows, err := db.conn.Query(`
		SELECT source, target, annotation, annotated FROM links
		ORDER BY source, target, annotated, annotation
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer erows.Close()
	edges, err := scanEdges(erows)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// AllChecksums returns the stored checksum of every indexed entry.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]models.Edge, error) {
	var out []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Annotation, &e.Annotated); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Package catalog mirrors the interval trees of a run into a SQLite database
// so extents can be queried without opening the master index.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/notargets/meshtvprep/intervaltree"
	"github.com/notargets/meshtvprep/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS extents (
	entity TEXT NOT NULL,
	state  INTEGER NOT NULL,
	domain INTEGER NOT NULL,
	xmin REAL, xmax REAL, ymin REAL, ymax REAL, zmin REAL, zmax REAL,
	PRIMARY KEY (entity, state, domain)
);
CREATE TABLE IF NOT EXISTS roots (
	entity TEXT NOT NULL,
	state  INTEGER NOT NULL,
	xmin REAL, xmax REAL, ymin REAL, ymax REAL, zmin REAL, zmax REAL,
	PRIMARY KEY (entity, state)
);`

const overlap = `xmin <= ? AND xmax >= ? AND ymin <= ? AND ymax >= ? AND zmin <= ? AND zmax >= ?`

type Catalog struct {
	db   *sql.DB
	path string
}

func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db, path: path}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// Write replaces the catalog contents with the per state trees (state ->
// trees) and the root index. Empty domain extents are not stored.
func (c *Catalog) Write(ctx context.Context, trees map[int][]*intervaltree.Tree, ri *intervaltree.RootIndex) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog write: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range []string{`DELETE FROM extents`, `DELETE FROM roots`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
	}
	insDomain, err := tx.PrepareContext(ctx,
		`INSERT INTO extents (entity, state, domain, xmin, xmax, ymin, ymax, zmin, zmax) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare extent insert: %w", err)
	}
	defer func() { _ = insDomain.Close() }()
	states := make([]int, 0, len(trees))
	for st := range trees {
		states = append(states, st)
	}
	sort.Ints(states)
	for _, st := range states {
		for _, tr := range trees[st] {
			for d := 0; d < tr.NDomains; d++ {
				e := tr.Extent(d)
				if e.IsEmpty() {
					continue
				}
				a := e.Array()
				if _, err = insDomain.ExecContext(ctx, tr.Entity, st, d, a[0], a[1], a[2], a[3], a[4], a[5]); err != nil {
					return fmt.Errorf("insert %s state %d domain %d: %w", tr.Entity, st, d, err)
				}
			}
		}
	}
	if ri != nil {
		for _, ent := range ri.Entities() {
			for st, e := range ri.Series(ent) {
				if e.IsEmpty() {
					continue
				}
				a := e.Array()
				if _, err = tx.ExecContext(ctx,
					`INSERT INTO roots (entity, state, xmin, xmax, ymin, ymax, zmin, zmax) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					ent, st, a[0], a[1], a[2], a[3], a[4], a[5]); err != nil {
					return fmt.Errorf("insert root %s state %d: %w", ent, st, err)
				}
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	return nil
}

// Domains returns the domains of entity at state whose extent overlaps q
func (c *Catalog) Domains(ctx context.Context, entity string, state int, q types.Extent) ([]int, error) {
	args := append([]any{entity, state}, overlapArgs(q)...)
	return c.ints(ctx, `SELECT domain FROM extents WHERE entity = ? AND state = ? AND `+overlap+` ORDER BY domain`, args...)
}

// States returns the states at which the root extent of entity overlaps q
func (c *Catalog) States(ctx context.Context, entity string, q types.Extent) ([]int, error) {
	args := append([]any{entity}, overlapArgs(q)...)
	return c.ints(ctx, `SELECT state FROM roots WHERE entity = ? AND `+overlap+` ORDER BY state`, args...)
}

func overlapArgs(q types.Extent) []any {
	a := q.Array()
	return []any{a[1], a[0], a[3], a[2], a[5], a[4]}
}

func (c *Catalog) ints(ctx context.Context, query string, args ...any) ([]int, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog %s: %w", c.path, err)
	}
	defer func() { _ = rows.Close() }()
	var res []int
	for rows.Next() {
		var v int
		if err = rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// Package engine ties the pager, page parser, record parser, schema catalog,
// and B-tree traverser together into the read-only query engine described in
// spec.md §4.9, and exposes the CLI-facing operations (§6): .dbinfo,
// .tables, and restricted SELECT execution.
package engine

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kbaker/litequery/internal/btree"
	"github.com/kbaker/litequery/internal/page"
	"github.com/kbaker/litequery/internal/pager"
	"github.com/kbaker/litequery/internal/record"
	"github.com/kbaker/litequery/internal/schema"
)

// Engine is a read-only handle on one database file.
type Engine struct {
	pg  *pager.Pager
	cat *schema.Catalog
	log *logrus.Logger
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	log       *logrus.Logger
	cacheSize int
}

// WithLogger attaches a logger for recovered, non-fatal conditions
// encountered during traversal (spec.md §7).
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithPageCacheSize bounds the underlying pager's page cache, grounded on
// the teacher's DatabaseOption/WithPageCacheSize (see DESIGN.md).
func WithPageCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// Open opens the database file, reads its schema catalog, and returns a
// ready-to-query Engine.
func Open(path string, opts ...Option) (*Engine, error) {
	cfg := config{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	pg, err := pager.Open(path, pager.WithCacheSize(cfg.cacheSize), pager.WithLogger(cfg.log))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	cat, err := schema.Read(pg)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("read schema catalog: %w", err)
	}
	return &Engine{pg: pg, cat: cat, log: cfg.log}, nil
}

// Close releases the underlying file handle.
func (e *Engine) Close() error {
	return e.pg.Close()
}

// DBInfo returns the database's page size and the cell count of page 1
// (spec.md §6: "number of tables" includes indexes and internal entries,
// per the §9 open question preserved as-is).
func (e *Engine) DBInfo() (pageSize int, numTables int, err error) {
	buf, err := e.pg.ReadPage(1)
	if err != nil {
		return 0, 0, fmt.Errorf("dbinfo: %w", err)
	}
	pg1, err := page.Parse(buf, 1)
	if err != nil {
		return 0, 0, fmt.Errorf("dbinfo: %w", err)
	}
	return e.pg.PageSize(), int(pg1.CellCount()), nil
}

// Tables returns the user table names (spec.md §4.6 user_tables, §6 .tables).
func (e *Engine) Tables() []string {
	entries := e.cat.UserTables()
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.TblName
	}
	return out
}

// IndexEntry describes one secondary index for introspection.
type IndexEntry struct {
	Name  string
	Table string
}

// Indexes enumerates every index in the schema catalog (SPEC_FULL.md §5
// supplement; not part of the CLI surface, exposed for introspection and
// testing). The planner's index-vs-scan decision does not call it; it uses
// schema.Catalog.FindIndexForColumn.
func (e *Engine) Indexes() []IndexEntry {
	var out []IndexEntry
	for _, entry := range e.cat.All() {
		if entry.Type == "index" {
			out = append(out, IndexEntry{Name: entry.Name, Table: entry.TblName})
		}
	}
	return out
}

// CacheStats exposes the pager's page-cache hit/miss counters.
func (e *Engine) CacheStats() pager.Stats {
	return e.pg.Stats()
}

// Query executes a restricted SELECT and returns one formatted row per
// result: count queries return a single row, column queries return each
// record's requested columns joined by "|" (spec.md §4.9, §6).
func (e *Engine) Query(sql string) ([]string, error) {
	shape, err := parseSelect(sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	tableEntry, err := e.cat.FindTable(shape.table)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	cols := schema.ExtractColumns(tableEntry.SQL)
	hasRowidAlias := schema.HasIntegerPrimaryKeyAlias(tableEntry.SQL)

	if shape.isCount {
		return e.executeCount(tableEntry.RootPage, shape, cols, hasRowidAlias)
	}
	return e.executeSelect(tableEntry, shape, cols, hasRowidAlias)
}

func (e *Engine) executeCount(rootPage int, shape *queryShape, cols []string, hasRowidAlias bool) ([]string, error) {
	if shape.whereCol == "" {
		recs, err := btree.CollectAll(e.pg, rootPage, e.log)
		if err != nil {
			return nil, fmt.Errorf("count rows: %w", err)
		}
		return []string{fmt.Sprintf("%d", len(recs))}, nil
	}

	whereIdx := resolveColumn(cols, shape.whereCol, hasRowidAlias)
	if whereIdx == notFound {
		return nil, fmt.Errorf("count rows: column %q not found", shape.whereCol)
	}
	recs, err := btree.CollectAll(e.pg, rootPage, e.log)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	n := 0
	for _, rec := range recs {
		if v, ok := rec.ReadString(whereIdx); ok && v == shape.whereVal {
			n++
		}
	}
	return []string{fmt.Sprintf("%d", n)}, nil
}

func (e *Engine) executeSelect(tableEntry schema.Entry, shape *queryShape, cols []string, hasRowidAlias bool) ([]string, error) {
	outIdx := make([]int, len(shape.columns))
	for i, name := range shape.columns {
		idx := resolveColumn(cols, name, hasRowidAlias)
		if idx == notFound {
			return nil, fmt.Errorf("select: column %q not found in table %q", name, tableEntry.TblName)
		}
		outIdx[i] = idx
	}

	var recs []*record.Record
	if shape.whereCol == "" {
		var err error
		recs, err = btree.CollectAll(e.pg, tableEntry.RootPage, e.log)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
	} else {
		var err error
		recs, err = e.whereMatches(tableEntry, shape, cols, hasRowidAlias)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]string, len(recs))
	for i, rec := range recs {
		rows[i] = strings.Join(rec.ReadStrings(outIdx), "|")
	}
	return rows, nil
}

// whereMatches resolves the single equality WHERE clause: via an index
// search when one exists on the column, otherwise a full scan filtered by
// decoded string equality (spec.md §4.9 item 3).
func (e *Engine) whereMatches(tableEntry schema.Entry, shape *queryShape, cols []string, hasRowidAlias bool) ([]*record.Record, error) {
	if indexEntry, ok := e.cat.FindIndexForColumn(tableEntry.TblName, shape.whereCol); ok {
		rowids, err := btree.SearchIndex(e.pg, indexEntry.RootPage, shape.whereVal)
		if err != nil {
			return nil, fmt.Errorf("select: index search: %w", err)
		}
		recs := make([]*record.Record, 0, len(rowids))
		for _, rowid := range rowids {
			rec, found, err := btree.FindByRowid(e.pg, tableEntry.RootPage, rowid)
			if err != nil {
				return nil, fmt.Errorf("select: rowid lookup: %w", err)
			}
			if found {
				recs = append(recs, rec)
			}
		}
		return recs, nil
	}

	whereIdx := resolveColumn(cols, shape.whereCol, hasRowidAlias)
	if whereIdx == notFound {
		return nil, fmt.Errorf("select: column %q not found in table %q", shape.whereCol, tableEntry.TblName)
	}
	all, err := btree.CollectAll(e.pg, tableEntry.RootPage, e.log)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	var matched []*record.Record
	for _, rec := range all {
		if v, ok := rec.ReadString(whereIdx); ok && v == shape.whereVal {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// notFound is returned by resolveColumn when name is neither the rowid
// alias nor a known column.
const notFound = -2

// resolveColumn implements the spec's "id" ⇒ rowid query-time rewrite
// (spec.md §4.9 item 3, §9 "Rowid-as-column"): when name is literally "id"
// and the table's CREATE statement carries the INTEGER PRIMARY KEY phrase,
// the rowid sentinel is used in place of a real column lookup.
func resolveColumn(cols []string, name string, hasRowidAlias bool) int {
	if hasRowidAlias && strings.EqualFold(name, "id") {
		return record.RowidColumn
	}
	idx := schema.ColumnIndex(cols, name)
	if idx < 0 {
		return notFound
	}
	return idx
}

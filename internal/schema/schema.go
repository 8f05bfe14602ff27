// Package schema reads the sqlite_schema catalog from page 1 and answers
// the lookups the query planner needs: table resolution, index resolution,
// and user-table enumeration (spec.md §3 "Schema catalog entry", §4.6).
package schema

import (
	"fmt"
	"strings"

	"github.com/kbaker/litequery/internal/page"
	"github.com/kbaker/litequery/internal/pager"
	"github.com/kbaker/litequery/internal/record"
)

// Entry is one row of the schema catalog.
type Entry struct {
	Type     string // "table", "index", "view", "trigger"
	Name     string
	TblName  string
	RootPage int
	SQL      string
}

// Catalog is the parsed contents of page 1's schema table.
type Catalog struct {
	entries []Entry
}

// Read parses page 1's B-tree as leaf-table records and builds a Catalog.
// Entries with an empty type or table name are dropped (spec.md §4.6).
func Read(pg *pager.Pager) (*Catalog, error) {
	buf, err := pg.ReadPage(1)
	if err != nil {
		return nil, fmt.Errorf("read schema page: %w", err)
	}
	pg1, err := page.Parse(buf, 1)
	if err != nil {
		return nil, fmt.Errorf("parse schema page: %w", err)
	}
	if pg1.Kind() != page.KindLeafTable {
		return nil, fmt.Errorf("unexpected schema page kind %s, want leaf-table", pg1.Kind())
	}

	var entries []Entry
	for _, off := range pg1.CellOffsets() {
		rec, _, err := record.ParseLeafTableCell(pg1.Buf(), int(off))
		if err != nil {
			return nil, fmt.Errorf("parse schema cell at offset %d: %w", off, err)
		}
		typ, _ := rec.ReadString(0)
		tblName, _ := rec.ReadString(2)
		if typ == "" || tblName == "" {
			continue
		}
		name, _ := rec.ReadString(1)
		rootPage, _ := rec.ReadInt(3)
		sql, _ := rec.ReadString(4)
		entries = append(entries, Entry{
			Type:     typ,
			Name:     name,
			TblName:  tblName,
			RootPage: int(rootPage),
			SQL:      sql,
		})
	}

	return &Catalog{entries: entries}, nil
}

// All returns every schema entry (tables, indexes, views, triggers), in
// catalog order.
func (c *Catalog) All() []Entry { return c.entries }

// UserTables returns the entries whose type is "table" and whose name
// doesn't begin with the reserved "sqlite_" prefix.
func (c *Catalog) UserTables() []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Type == "table" && !strings.HasPrefix(e.TblName, "sqlite_") {
			out = append(out, e)
		}
	}
	return out
}

// FindTable returns the first table entry named name.
func (c *Catalog) FindTable(name string) (Entry, error) {
	for _, e := range c.entries {
		if e.Type == "table" && e.TblName == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("table %q not found", name)
}

// FindIndexForColumn returns the first index on table whose CREATE INDEX
// SQL contains `on <table> (<column>)`, matched case-insensitively on that
// fixed substring only (spec.md §4.6, §9: whitespace elsewhere in the SQL
// is not normalized, so unusual formatting can miss a real index — this
// mirrors the original tool's documented limitation rather than papering
// over it with a real parser).
func (c *Catalog) FindIndexForColumn(table, column string) (Entry, bool) {
	needle := fmt.Sprintf("on %s (%s)", strings.ToLower(table), strings.ToLower(column))
	for _, e := range c.entries {
		if e.Type != "index" {
			continue
		}
		if strings.Contains(strings.ToLower(e.SQL), needle) {
			return e, true
		}
	}
	return Entry{}, false
}

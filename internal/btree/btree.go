// Package btree implements the three descent modes over table and index
// B-trees described in spec.md §4.8: a full scan, a rowid point lookup, and
// an indexed-value search. Descent is plain recursion over page numbers
// (spec.md §9 "cyclic or recursive data"): each stack frame holds one page
// buffer and releases it on return, so peak live memory is O(tree height)
// except for the full-scan path, which necessarily collects every cell.
package btree

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kbaker/litequery/internal/page"
	"github.com/kbaker/litequery/internal/pager"
	"github.com/kbaker/litequery/internal/record"
)

// CollectAll performs a full scan of the table B-tree rooted at root and
// returns every leaf record in tree order (ascending rowid in a well-formed
// file). A zero child pointer is logged at Warn and skipped rather than
// treated as a hard error (spec.md §4.8, §7).
func CollectAll(pg *pager.Pager, root int, log *logrus.Logger) ([]*record.Record, error) {
	var out []*record.Record
	if err := collectAll(pg, root, log, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectAll(pg *pager.Pager, pageNum int, log *logrus.Logger, out *[]*record.Record) error {
	if pageNum == 0 {
		log.Warnf("btree: zero child pointer encountered, skipping subtree")
		return nil
	}

	buf, err := pg.ReadPage(pageNum)
	if err != nil {
		return fmt.Errorf("collect all: read page %d: %w", pageNum, err)
	}
	pg2, err := page.Parse(buf, pageNum)
	if err != nil {
		return fmt.Errorf("collect all: parse page %d: %w", pageNum, err)
	}

	if pg2.Kind() == page.KindLeafTable {
		for _, off := range pg2.CellOffsets() {
			rec, _, err := record.ParseLeafTableCell(pg2.Buf(), int(off))
			if err != nil {
				return fmt.Errorf("collect all: parse cell on page %d: %w", pageNum, err)
			}
			*out = append(*out, rec)
		}
		return nil
	}
	if pg2.Kind() != page.KindInteriorTable {
		return fmt.Errorf("collect all: page %d has non-table kind %s", pageNum, pg2.Kind())
	}

	for _, off := range pg2.CellOffsets() {
		leftChild, _, err := pg2.InteriorTableCell(int(off))
		if err != nil {
			return fmt.Errorf("collect all: interior cell on page %d: %w", pageNum, err)
		}
		if err := collectAll(pg, int(leftChild), log, out); err != nil {
			return err
		}
	}
	if rightmost, ok := pg2.RightmostChild(); ok {
		if err := collectAll(pg, int(rightmost), log, out); err != nil {
			return err
		}
	}
	return nil
}

// FindByRowid descends the table B-tree rooted at root looking for the
// record whose rowid equals target, in O(log n) steps on a well-formed
// tree. Returns ok=false if no such record exists.
func FindByRowid(pg *pager.Pager, root int, target int64) (*record.Record, bool, error) {
	pageNum := root
	for {
		buf, err := pg.ReadPage(pageNum)
		if err != nil {
			return nil, false, fmt.Errorf("find by rowid: read page %d: %w", pageNum, err)
		}
		pg2, err := page.Parse(buf, pageNum)
		if err != nil {
			return nil, false, fmt.Errorf("find by rowid: parse page %d: %w", pageNum, err)
		}

		if pg2.Kind() == page.KindLeafTable {
			for _, off := range pg2.CellOffsets() {
				rec, _, err := record.ParseLeafTableCell(pg2.Buf(), int(off))
				if err != nil {
					return nil, false, fmt.Errorf("find by rowid: parse cell on page %d: %w", pageNum, err)
				}
				if rec.Rowid == target {
					return rec, true, nil
				}
			}
			return nil, false, nil
		}
		if pg2.Kind() != page.KindInteriorTable {
			return nil, false, fmt.Errorf("find by rowid: page %d has non-table kind %s", pageNum, pg2.Kind())
		}

		next, found := uint32(0), false
		for _, off := range pg2.CellOffsets() {
			leftChild, keyRowid, err := pg2.InteriorTableCell(int(off))
			if err != nil {
				return nil, false, fmt.Errorf("find by rowid: interior cell on page %d: %w", pageNum, err)
			}
			if keyRowid >= target {
				next, found = leftChild, true
				break
			}
		}
		if !found {
			rightmost, ok := pg2.RightmostChild()
			if !ok {
				return nil, false, nil
			}
			next = rightmost
		}
		if next == 0 {
			return nil, false, nil
		}
		pageNum = int(next)
	}
}

// SearchIndex descends the index B-tree rooted at root collecting the
// rowids of every index entry whose first indexed column equals value
// (byte-for-byte text equality). On an interior-index page it follows the
// "set of children that could contain value" rule (spec.md §4.8): a key
// value may straddle adjacent leaf pages, so descent cannot stop at the
// first match.
func SearchIndex(pg *pager.Pager, root int, value string) ([]int64, error) {
	var out []int64
	if err := searchIndex(pg, root, value, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func searchIndex(pg *pager.Pager, pageNum int, value string, out *[]int64) error {
	if pageNum == 0 {
		return nil
	}
	buf, err := pg.ReadPage(pageNum)
	if err != nil {
		return fmt.Errorf("search index: read page %d: %w", pageNum, err)
	}
	pg2, err := page.Parse(buf, pageNum)
	if err != nil {
		return fmt.Errorf("search index: parse page %d: %w", pageNum, err)
	}

	if pg2.Kind() == page.KindLeafIndex {
		for _, off := range pg2.CellOffsets() {
			rec, _, err := record.ParseLeafIndexCell(pg2.Buf(), int(off))
			if err != nil {
				return fmt.Errorf("search index: parse cell on page %d: %w", pageNum, err)
			}
			if s, ok := rec.ReadString(0); ok && s == value {
				*out = append(*out, rec.Rowid)
			}
		}
		return nil
	}
	if pg2.Kind() != page.KindInteriorIndex {
		return fmt.Errorf("search index: page %d has non-index kind %s", pageNum, pg2.Kind())
	}

	offsets := pg2.CellOffsets()
	var lastKey string
	haveLastKey := false
	for _, off := range offsets {
		leftChild, key, err := pg2.InteriorIndexCell(int(off))
		if err != nil {
			return fmt.Errorf("search index: interior cell on page %d: %w", pageNum, err)
		}
		if value <= key {
			if err := searchIndex(pg, int(leftChild), value, out); err != nil {
				return err
			}
		}
		lastKey, haveLastKey = key, true
	}
	if rightmost, ok := pg2.RightmostChild(); ok {
		if !haveLastKey || value >= lastKey {
			if err := searchIndex(pg, int(rightmost), value, out); err != nil {
				return err
			}
		}
	}
	return nil
}

package btree

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kbaker/litequery/internal/pager"
	"github.com/kbaker/litequery/internal/varint"
)

const fixturePageSize = 512

// buildRecordPayload encodes a record header + column bodies for the given
// column values (string or int64), assuming the header-size varint itself
// fits in one byte — true for every column set used in these fixtures.
func buildRecordPayload(cols []interface{}) []byte {
	var serialTypes []uint64
	var bodies [][]byte
	for _, c := range cols {
		switch v := c.(type) {
		case string:
			serialTypes = append(serialTypes, uint64(13+2*len(v)))
			bodies = append(bodies, []byte(v))
		case int64:
			serialTypes = append(serialTypes, 4)
			bodies = append(bodies, []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
		}
	}
	var header []byte
	for _, st := range serialTypes {
		header = append(header, varint.Write(st)...)
	}
	headerSize := uint64(len(header) + 1)
	if len(varint.Write(headerSize)) != 1 {
		panic("fixture header too large for the one-byte assumption")
	}
	var payload []byte
	payload = append(payload, varint.Write(headerSize)...)
	payload = append(payload, header...)
	for _, b := range bodies {
		payload = append(payload, b...)
	}
	return payload
}

func buildLeafTableCell(rowid int64, cols []interface{}) []byte {
	payload := buildRecordPayload(cols)
	var cell []byte
	cell = append(cell, varint.Write(uint64(len(payload)))...)
	cell = append(cell, varint.Write(uint64(rowid))...)
	cell = append(cell, payload...)
	return cell
}

// buildLeafTablePage lays out cells back-to-front from the end of the page,
// matching real SQLite allocation order, and fills in the header/pointer
// array to match.
func buildLeafTablePage(rows []struct {
	rowid int64
	cols  []interface{}
}) []byte {
	buf := make([]byte, fixturePageSize)
	buf[0] = 0x0d // leaf-table
	n := len(rows)
	buf[3] = byte(n >> 8)
	buf[4] = byte(n)

	pointerArrayOff := 8
	end := fixturePageSize
	offsets := make([]int, n)
	for i, r := range rows {
		cell := buildLeafTableCell(r.rowid, r.cols)
		end -= len(cell)
		copy(buf[end:], cell)
		offsets[i] = end
	}
	for i, off := range offsets {
		pos := pointerArrayOff + i*2
		buf[pos] = byte(off >> 8)
		buf[pos+1] = byte(off)
	}
	return buf
}

func buildInteriorTablePage(cells []struct {
	leftChild uint32
	keyRowid  int64
}, rightmost uint32) []byte {
	buf := make([]byte, fixturePageSize)
	buf[0] = 0x05 // interior-table
	n := len(cells)
	buf[3] = byte(n >> 8)
	buf[4] = byte(n)
	buf[8] = byte(rightmost >> 24)
	buf[9] = byte(rightmost >> 16)
	buf[10] = byte(rightmost >> 8)
	buf[11] = byte(rightmost)

	pointerArrayOff := 12
	end := fixturePageSize
	offsets := make([]int, n)
	for i, c := range cells {
		key := varint.Write(uint64(c.keyRowid))
		cell := make([]byte, 4+len(key))
		cell[0] = byte(c.leftChild >> 24)
		cell[1] = byte(c.leftChild >> 16)
		cell[2] = byte(c.leftChild >> 8)
		cell[3] = byte(c.leftChild)
		copy(cell[4:], key)
		end -= len(cell)
		copy(buf[end:], cell)
		offsets[i] = end
	}
	for i, off := range offsets {
		pos := pointerArrayOff + i*2
		buf[pos] = byte(off >> 8)
		buf[pos+1] = byte(off)
	}
	return buf
}

func buildLeafIndexCell(value string, rowid int64) []byte {
	payload := buildRecordPayload([]interface{}{value, rowid})
	var cell []byte
	cell = append(cell, varint.Write(uint64(len(payload)))...)
	cell = append(cell, payload...)
	return cell
}

func buildLeafIndexPage(entries []struct {
	value string
	rowid int64
}) []byte {
	buf := make([]byte, fixturePageSize)
	buf[0] = 0x0a // leaf-index
	n := len(entries)
	buf[3] = byte(n >> 8)
	buf[4] = byte(n)

	pointerArrayOff := 8
	end := fixturePageSize
	offsets := make([]int, n)
	for i, e := range entries {
		cell := buildLeafIndexCell(e.value, e.rowid)
		end -= len(cell)
		copy(buf[end:], cell)
		offsets[i] = end
	}
	for i, off := range offsets {
		pos := pointerArrayOff + i*2
		buf[pos] = byte(off >> 8)
		buf[pos+1] = byte(off)
	}
	return buf
}

func buildInteriorIndexPage(cells []struct {
	leftChild uint32
	key       string
}, rightmost uint32) []byte {
	buf := make([]byte, fixturePageSize)
	buf[0] = 0x02 // interior-index
	n := len(cells)
	buf[3] = byte(n >> 8)
	buf[4] = byte(n)
	buf[8] = byte(rightmost >> 24)
	buf[9] = byte(rightmost >> 16)
	buf[10] = byte(rightmost >> 8)
	buf[11] = byte(rightmost)

	pointerArrayOff := 12
	end := fixturePageSize
	offsets := make([]int, n)
	for i, c := range cells {
		payload := buildRecordPayload([]interface{}{c.key})
		cell := make([]byte, 4+len(varint.Write(uint64(len(payload))))+len(payload))
		cell[0] = byte(c.leftChild >> 24)
		cell[1] = byte(c.leftChild >> 16)
		cell[2] = byte(c.leftChild >> 8)
		cell[3] = byte(c.leftChild)
		szBytes := varint.Write(uint64(len(payload)))
		copy(cell[4:], szBytes)
		copy(cell[4+len(szBytes):], payload)
		end -= len(cell)
		copy(buf[end:], cell)
		offsets[i] = end
	}
	for i, off := range offsets {
		pos := pointerArrayOff + i*2
		buf[pos] = byte(off >> 8)
		buf[pos+1] = byte(off)
	}
	return buf
}

// writeFixtureDB writes pages (1-indexed by position in the slice) into a
// temp file with a valid 100-byte file header and returns an open Pager.
func writeFixtureDB(t *testing.T, pages [][]byte) *pager.Pager {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "btree-fixture-*.db")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	header := make([]byte, 100)
	copy(header, "SQLite format 3\x00")
	header[16] = byte(fixturePageSize >> 8)
	header[17] = byte(fixturePageSize)

	page1 := make([]byte, fixturePageSize)
	copy(page1, header)
	if len(pages) > 0 {
		copy(page1[100:], pages[0][100:])
		page1[0], page1[3], page1[4] = pages[0][0], pages[0][3], pages[0][4]
	}
	if _, err := f.Write(page1); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(pages); i++ {
		if _, err := f.Write(pages[i]); err != nil {
			t.Fatal(err)
		}
	}

	pg, err := pager.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return pg
}

func twoLeafTableTree(t *testing.T) *pager.Pager {
	leafA := buildLeafTablePage([]struct {
		rowid int64
		cols  []interface{}
	}{
		{1, []interface{}{"Granny Smith"}},
		{2, []interface{}{"Fuji"}},
	})
	leafB := buildLeafTablePage([]struct {
		rowid int64
		cols  []interface{}
	}{
		{3, []interface{}{"Gala"}},
		{4, []interface{}{"Honeycrisp"}},
	})
	root := buildInteriorTablePage([]struct {
		leftChild uint32
		keyRowid  int64
	}{
		{3, 2},
	}, 4)

	// page numbers: 1=unused placeholder, 2=root, 3=leafA, 4=leafB
	placeholder := make([]byte, fixturePageSize)
	placeholder[0] = 0x0d
	return writeFixtureDB(t, [][]byte{placeholder, root, leafA, leafB})
}

func TestCollectAllAcrossInteriorTable(t *testing.T) {
	pg := twoLeafTableTree(t)
	defer pg.Close()

	recs, err := CollectAll(pg, 2, logrus.StandardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d records, want 4", len(recs))
	}
	want := []string{"Granny Smith", "Fuji", "Gala", "Honeycrisp"}
	for i, rec := range recs {
		got, _ := rec.ReadString(0)
		if got != want[i] {
			t.Errorf("record %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestFindByRowidDescendsInteriorTable(t *testing.T) {
	pg := twoLeafTableTree(t)
	defer pg.Close()

	cases := []struct {
		target int64
		want   string
		found  bool
	}{
		{1, "Granny Smith", true},
		{2, "Fuji", true},
		{3, "Gala", true},
		{4, "Honeycrisp", true},
		{5, "", false},
	}
	for _, c := range cases {
		rec, ok, err := FindByRowid(pg, 2, c.target)
		if err != nil {
			t.Fatal(err)
		}
		if ok != c.found {
			t.Errorf("rowid %d: found = %v, want %v", c.target, ok, c.found)
			continue
		}
		if ok {
			got, _ := rec.ReadString(0)
			if got != c.want {
				t.Errorf("rowid %d: got %q, want %q", c.target, got, c.want)
			}
		}
	}
}

func TestSearchIndexStraddlesLeafPages(t *testing.T) {
	leafA := buildLeafIndexPage([]struct {
		value string
		rowid int64
	}{
		{"Pink Eyes", 10},
		{"Pink Eyes", 11},
	})
	leafB := buildLeafIndexPage([]struct {
		value string
		rowid int64
	}{
		{"Red", 20},
	})
	root := buildInteriorIndexPage([]struct {
		leftChild uint32
		key       string
	}{
		{3, "Pink Eyes"},
	}, 4)

	placeholder := make([]byte, fixturePageSize)
	placeholder[0] = 0x0d
	pg := writeFixtureDB(t, [][]byte{placeholder, root, leafA, leafB})
	defer pg.Close()

	rowids, err := SearchIndex(pg, 2, "Pink Eyes")
	if err != nil {
		t.Fatal(err)
	}
	if len(rowids) != 2 || rowids[0] != 10 || rowids[1] != 11 {
		t.Errorf("SearchIndex(Pink Eyes) = %v, want [10 11]", rowids)
	}

	rowids, err = SearchIndex(pg, 2, "Red")
	if err != nil {
		t.Fatal(err)
	}
	if len(rowids) != 1 || rowids[0] != 20 {
		t.Errorf("SearchIndex(Red) = %v, want [20]", rowids)
	}

	rowids, err = SearchIndex(pg, 2, "Blue")
	if err != nil {
		t.Fatal(err)
	}
	if len(rowids) != 0 {
		t.Errorf("SearchIndex(Blue) = %v, want []", rowids)
	}
}

func TestCollectAllSkipsZeroChildPointer(t *testing.T) {
	leaf := buildLeafTablePage([]struct {
		rowid int64
		cols  []interface{}
	}{{1, []interface{}{"only"}}})
	root := buildInteriorTablePage([]struct {
		leftChild uint32
		keyRowid  int64
	}{
		{0, 1}, // corrupt: zero child pointer, must be skipped not fatal
	}, 4)

	placeholder := make([]byte, fixturePageSize)
	placeholder[0] = 0x0d
	pg := writeFixtureDB(t, [][]byte{placeholder, root, placeholder, leaf})
	defer pg.Close()

	recs, err := CollectAll(pg, 2, logrus.StandardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 (zero child skipped, rightmost scanned)", len(recs))
	}
}

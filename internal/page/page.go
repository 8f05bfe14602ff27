// Package page classifies a raw page buffer by B-tree page kind and exposes
// its header fields and cell-pointer array (spec.md §3/§4.4).
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/kbaker/litequery/internal/varint"
)

// Kind is the page-type tag read from the first header byte.
type Kind uint8

const (
	KindInteriorIndex Kind = 0x02
	KindInteriorTable Kind = 0x05
	KindLeafIndex     Kind = 0x0a
	KindLeafTable     Kind = 0x0d
)

func (k Kind) String() string {
	switch k {
	case KindInteriorIndex:
		return "interior-index"
	case KindInteriorTable:
		return "interior-table"
	case KindLeafIndex:
		return "leaf-index"
	case KindLeafTable:
		return "leaf-table"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(k))
	}
}

func (k Kind) IsLeaf() bool {
	return k == KindLeafIndex || k == KindLeafTable
}

func (k Kind) IsTable() bool {
	return k == KindInteriorTable || k == KindLeafTable
}

// Page wraps one page's raw bytes along with its page number, tracking
// where its B-tree header starts (page 1 carries the 100-byte file header
// first; every other page's header starts at offset 0).
type Page struct {
	buf          []byte
	Num          int
	headerOffset int
	kind         Kind
}

// Parse classifies buf (the full page, as returned by pager.ReadPage) for
// page number num.
func Parse(buf []byte, num int) (*Page, error) {
	headerOffset := 0
	if num == 1 {
		headerOffset = 100
	}
	if headerOffset+8 > len(buf) {
		return nil, fmt.Errorf("page %d too small for a B-tree header", num)
	}

	kind := Kind(buf[headerOffset])
	switch kind {
	case KindInteriorIndex, KindInteriorTable, KindLeafIndex, KindLeafTable:
	default:
		return nil, fmt.Errorf("corrupt or unsupported page type 0x%02x on page %d", buf[headerOffset], num)
	}

	return &Page{buf: buf, Num: num, headerOffset: headerOffset, kind: kind}, nil
}

// Kind returns the page's B-tree page type.
func (p *Page) Kind() Kind { return p.kind }

// CellCount returns the number of cells recorded in the page header.
func (p *Page) CellCount() uint16 {
	return binary.BigEndian.Uint16(p.buf[p.headerOffset+3 : p.headerOffset+5])
}

// cellPointerArrayOffset returns where the 2-byte cell offset array begins:
// right after an 8-byte leaf header, or a 12-byte interior header (8 bytes
// plus the 4-byte rightmost-child pointer).
func (p *Page) cellPointerArrayOffset() int {
	if p.kind.IsLeaf() {
		return p.headerOffset + 8
	}
	return p.headerOffset + 12
}

// CellOffsets returns each cell's byte offset into the page buffer, in
// cell-pointer-array order.
func (p *Page) CellOffsets() []uint16 {
	n := int(p.CellCount())
	start := p.cellPointerArrayOffset()
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		off := start + i*2
		out[i] = binary.BigEndian.Uint16(p.buf[off : off+2])
	}
	return out
}

// RightmostChild returns the interior page's trailing child pointer, which
// covers every key greater than the page's last cell key. Returns ok=false
// for leaf pages.
func (p *Page) RightmostChild() (child uint32, ok bool) {
	if p.kind.IsLeaf() {
		return 0, false
	}
	return binary.BigEndian.Uint32(p.buf[p.headerOffset+8 : p.headerOffset+12]), true
}

// Buf exposes the raw page bytes, for passing to the record parser.
func (p *Page) Buf() []byte { return p.buf }

// InteriorTableCell decodes an interior-table cell: a 4-byte left-child
// page pointer followed by a varint rowid key.
func (p *Page) InteriorTableCell(off int) (leftChild uint32, keyRowid int64, err error) {
	if off+4 > len(p.buf) {
		return 0, 0, fmt.Errorf("interior table cell at offset %d overruns page %d", off, p.Num)
	}
	leftChild = binary.BigEndian.Uint32(p.buf[off : off+4])
	key, _ := varint.Read(p.buf, off+4)
	return leftChild, int64(key), nil
}

// InteriorIndexCell decodes an interior-index cell: a 4-byte left-child
// page pointer, a varint payload size, and a record payload whose first
// column is the key used for comparison during descent.
func (p *Page) InteriorIndexCell(off int) (leftChild uint32, firstKey string, err error) {
	if off+4 > len(p.buf) {
		return 0, "", fmt.Errorf("interior index cell at offset %d overruns page %d", off, p.Num)
	}
	leftChild = binary.BigEndian.Uint32(p.buf[off : off+4])
	pos := off + 4
	payloadSize, n := varint.Read(p.buf, pos)
	pos += n
	if pos+int(payloadSize) > len(p.buf) {
		return leftChild, "", fmt.Errorf("interior index payload at offset %d overruns page %d", pos, p.Num)
	}
	// Parse just enough of the record header to decode column 0's text.
	payload := p.buf[pos : pos+int(payloadSize)]
	key, err := firstColumnText(payload)
	return leftChild, key, err
}

// firstColumnText decodes only as much of a record as is needed to read its
// first column's text value: the header size, the first serial type, and
// that column's body bytes. Used by InteriorIndexCell, which only ever
// needs the indexed column for key comparison during descent.
func firstColumnText(payload []byte) (string, error) {
	headerSize, n := varint.Read(payload, 0)
	pos := n
	if int(headerSize) > len(payload) {
		return "", fmt.Errorf("record header size %d exceeds payload size %d", headerSize, len(payload))
	}
	if pos >= int(headerSize) {
		return "", fmt.Errorf("record has no columns")
	}
	firstType, _ := varint.Read(payload, pos)

	bodyStart := int(headerSize)
	size := serialTypeSize(firstType)
	if bodyStart+size > len(payload) {
		return "", fmt.Errorf("record body needs %d bytes, payload has %d", bodyStart+size, len(payload))
	}
	if firstType < 13 || firstType%2 != 1 {
		// Not text: the body bytes are rendered in Go's %v slice form (for
		// example "[0 42]"), which does not order like the decoded value.
		return fmt.Sprintf("%v", payload[bodyStart:bodyStart+size]), nil
	}
	return string(payload[bodyStart : bodyStart+size]), nil
}

// serialTypeSize duplicates internal/record.SizeOf's table to avoid page
// depending on record (record's Record type isn't needed here, only sizing).
func serialTypeSize(code uint64) int {
	switch code {
	case 0, 8, 9, 10, 11:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	case 4:
		return 4
	case 5:
		return 6
	case 6, 7:
		return 8
	default:
		if code >= 12 && code%2 == 0 {
			return int((code - 12) / 2)
		}
		if code >= 13 && code%2 == 1 {
			return int((code - 13) / 2)
		}
		return 0
	}
}

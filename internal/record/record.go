package record

import (
	"fmt"

	"github.com/kbaker/litequery/internal/varint"
)

// RowidColumn is the sentinel column index passed to Read* to fetch a
// record's rowid rather than a stored column — used to satisfy
// `SELECT id FROM t` when `id` aliases an INTEGER PRIMARY KEY (spec.md §4.5).
const RowidColumn = -1

// Record is a parsed leaf-cell payload: a rowid (read from the cell for table
// cells; taken from the trailing column for index cells) plus the column
// offsets computed from the record header's serial types.
type Record struct {
	Rowid       int64
	payload     []byte
	serialTypes []uint64
	offsets     []int // byte offset into payload of each column's body
}

// ParseLeafTableCell decodes a leaf-table-B-tree cell
// (payload_size · rowid · payload) starting at cellOff within pageBuf, and
// returns the parsed record plus the number of bytes the cell occupies.
func ParseLeafTableCell(pageBuf []byte, cellOff int) (*Record, int, error) {
	pos := cellOff
	payloadSize, n := varint.Read(pageBuf, pos)
	pos += n
	rowid, n := varint.Read(pageBuf, pos)
	pos += n

	payloadEnd := pos + int(payloadSize)
	if payloadEnd > len(pageBuf) {
		return nil, 0, fmt.Errorf("record payload at offset %d overruns page (need %d bytes, have %d)",
			cellOff, payloadEnd, len(pageBuf))
	}
	payload := pageBuf[pos:payloadEnd]

	rec, err := parsePayload(payload)
	if err != nil {
		return nil, 0, err
	}
	rec.Rowid = int64(rowid)
	return rec, payloadEnd - cellOff, nil
}

// ParseLeafIndexCell decodes a leaf-index-B-tree cell (payload_size ·
// payload), whose trailing column carries the rowid (spec.md §3). The
// returned Record's Rowid field is populated from that trailing column.
func ParseLeafIndexCell(pageBuf []byte, cellOff int) (*Record, int, error) {
	pos := cellOff
	payloadSize, n := varint.Read(pageBuf, pos)
	pos += n

	payloadEnd := pos + int(payloadSize)
	if payloadEnd > len(pageBuf) {
		return nil, 0, fmt.Errorf("index record payload at offset %d overruns page (need %d bytes, have %d)",
			cellOff, payloadEnd, len(pageBuf))
	}
	payload := pageBuf[pos:payloadEnd]

	rec, err := parsePayload(payload)
	if err != nil {
		return nil, 0, err
	}
	if n := rec.NumColumns(); n > 0 {
		if rowid, ok := rec.ReadInt(n - 1); ok {
			rec.Rowid = rowid
		}
	}
	return rec, payloadEnd - cellOff, nil
}

// parsePayload parses a record header (header_size · serial_type_1 ...
// serial_type_N) followed by its column bodies, and computes each column's
// byte offset by walking SizeOf(serial_type) forward. The loop relies on
// spec.md §3's header self-consistency invariant: it reads serial types
// until the position reaches header_size, and does not check that the last
// varint ends exactly there.
func parsePayload(payload []byte) (*Record, error) {
	headerSize, n := varint.Read(payload, 0)
	pos := n
	headerEnd := int(headerSize)
	if headerEnd > len(payload) {
		return nil, fmt.Errorf("record header size %d exceeds payload size %d", headerEnd, len(payload))
	}

	var serialTypes []uint64
	for pos < headerEnd {
		st, n := varint.Read(payload, pos)
		serialTypes = append(serialTypes, st)
		pos += n
	}

	offsets := make([]int, len(serialTypes))
	bodyPos := headerEnd
	for i, st := range serialTypes {
		offsets[i] = bodyPos
		bodyPos += SizeOf(st)
	}
	if bodyPos > len(payload) {
		return nil, fmt.Errorf("record body needs %d bytes, payload has %d", bodyPos, len(payload))
	}

	return &Record{
		payload:     payload,
		serialTypes: serialTypes,
		offsets:     offsets,
	}, nil
}

// NumColumns returns the number of columns this record's header describes.
func (r *Record) NumColumns() int { return len(r.serialTypes) }

func (r *Record) columnBytes(col int) ([]byte, uint64, bool) {
	if col < 0 || col >= len(r.serialTypes) {
		return nil, 0, false
	}
	st := r.serialTypes[col]
	size := SizeOf(st)
	off := r.offsets[col]
	return r.payload[off : off+size], st, true
}

// ReadString returns col's value rendered as a string: text columns decode
// directly, integer columns are decimal-formatted, NULL and out-of-range
// columns are absent. RowidColumn returns the record's rowid as a decimal
// string (spec.md §4.5).
func (r *Record) ReadString(col int) (string, bool) {
	if col == RowidColumn {
		return fmt.Sprintf("%d", r.Rowid), true
	}
	data, st, ok := r.columnBytes(col)
	if !ok {
		return "", false
	}
	if s, ok := DecodeText(st, data); ok {
		return s, true
	}
	if IsNull(st) {
		return "", false
	}
	if i, ok := DecodeInt(st, data); ok {
		return fmt.Sprintf("%d", i), true
	}
	return "", false
}

// ReadInt returns col's value as an integer, if it is one.
func (r *Record) ReadInt(col int) (int64, bool) {
	if col == RowidColumn {
		return r.Rowid, true
	}
	data, st, ok := r.columnBytes(col)
	if !ok || IsNull(st) {
		return 0, false
	}
	return DecodeInt(st, data)
}

// ReadStrings reads each of cols positionally; a column with no value
// becomes the empty string, matching spec.md §4.5.
func (r *Record) ReadStrings(cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if s, ok := r.ReadString(c); ok {
			out[i] = s
		}
	}
	return out
}

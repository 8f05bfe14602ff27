// Package record decodes the serial-type-tagged column encoding used by
// leaf B-tree cells (spec.md §3 "Record" and §4.2/§4.5), and exposes typed
// readers over a parsed record.
package record

import (
	"math"
	"strings"
)

// SizeOf returns the number of payload bytes a column with the given serial
// type occupies, per the table in spec.md §3.
func SizeOf(code uint64) int {
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

// DecodeText decodes a TEXT column (odd serial type >= 13). It returns
// false for any other serial type. Corrupt UTF-8 is replaced rather than
// rejected, per spec.md §7: a query must never abort because one column's
// bytes are not valid UTF-8.
func DecodeText(code uint64, data []byte) (string, bool) {
	if code < 13 || code%2 != 1 {
		return "", false
	}
	return strings.ToValidUTF8(string(data), "�"), true
}

// DecodeInt decodes an integer-family serial type (0,1,2,3,4,5,6,8,9). It
// returns false for float, blob, text, or reserved codes.
func DecodeInt(code uint64, data []byte) (int64, bool) {
	switch code {
	case 0:
		return 0, true // NULL logically has no integer value; callers treat this as absent
	case 8:
		return 0, true
	case 9:
		return 1, true
	case 1:
		return int64(int8(data[0])), true
	case 2:
		return int64(int16(uint16(data[0])<<8 | uint16(data[1]))), true
	case 3:
		v := int32(uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2]))
		if data[0]&0x80 != 0 {
			v |= ^int32(0xffffff)
		}
		return int64(v), true
	case 4:
		v := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		return int64(int32(v)), true
	case 5:
		var v int64
		for i := 0; i < 6; i++ {
			v = (v << 8) | int64(data[i])
		}
		if data[0]&0x80 != 0 {
			v |= ^int64(0xffffffffffff)
		}
		return v, true
	case 6:
		var v uint64
		for i := 0; i < 8; i++ {
			v = (v << 8) | uint64(data[i])
		}
		return int64(v), true
	default:
		return 0, false
	}
}

// DecodeFloat decodes serial type 7 (IEEE-754 double, big-endian). Present
// for sizing completeness per spec.md §4.2; the supported query shapes never
// need the decoded value, only DecodeText/DecodeInt results.
func DecodeFloat(code uint64, data []byte) (float64, bool) {
	if code != 7 {
		return 0, false
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits = (bits << 8) | uint64(data[i])
	}
	return math.Float64frombits(bits), true
}

// IsNull reports whether code denotes the NULL serial type.
func IsNull(code uint64) bool { return code == 0 }

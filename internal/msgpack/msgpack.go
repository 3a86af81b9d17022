// Package msgpack implements the MessagePack wire format over the
// primitive+container subset bmdb needs: booleans, integers up to
// 32 bits (wider magnitudes fall back to float64), float64, UTF-8 strings
// up to 2^16-1 bytes, and arrays/maps up to 2^16-1 entries. 64-bit integer
// widths and binary blobs are intentionally out of scope.
package msgpack

import (
	"encoding/binary"
	"math"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// Type code constants from the published MessagePack specification.
const (
	codeNil       byte = 0xc0
	codeFalse     byte = 0xc2
	codeTrue      byte = 0xc3
	codeFloat64   byte = 0xcb
	codeUint8     byte = 0xcc
	codeUint16    byte = 0xcd
	codeUint32    byte = 0xce
	codeInt8      byte = 0xd0
	codeInt16     byte = 0xd1
	codeInt32     byte = 0xd2
	codeStr8      byte = 0xd9
	codeStr16     byte = 0xda
	codeArray16   byte = 0xdc
	codeMap16     byte = 0xde

	fixintPosMax byte = 0x7f // 0x00-0x7f: positive fixint
	fixintNegMin byte = 0xe0 // 0xe0-0xff: negative fixint (-32..-1)
	fixstrMask   byte = 0xa0 // 0xa0-0xbf: fixstr, low 5 bits = length (0-31)
	fixstrMax    int  = 31
	fixarrayMask byte = 0x90 // 0x90-0x9f: fixarray, low 4 bits = length (0-15)
	fixarrayMax  int  = 15
	fixmapMask   byte = 0x80 // 0x80-0x8f: fixmap, low 4 bits = length (0-15)
	fixmapMax    int  = 15
)

const maxLen = 1<<16 - 1 // 2^16-1, the ceiling for strings, arrays, and maps

// Encode serializes v to its deterministic MessagePack encoding.
// Structurally equal Values with identical map-key insertion order produce
// byte-equal output across calls and across processes.
func Encode(v value.Value) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf, err := encodeInto(buf, v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeInto(buf []byte, v value.Value) ([]byte, error) {
	switch v.Kind() {
	case value.KindNull:
		return append(buf, codeNil), nil
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return append(buf, codeTrue), nil
		}
		return append(buf, codeFalse), nil
	case value.KindInt:
		i, _ := v.AsInt()
		return encodeInt(buf, i), nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		return encodeFloat(buf, f), nil
	case value.KindString:
		s, _ := v.AsString()
		return encodeString(buf, s)
	case value.KindArray:
		arr, _ := v.AsArray()
		return encodeArray(buf, arr)
	case value.KindMap:
		m, _ := v.AsMap()
		return encodeMap(buf, m)
	default:
		return nil, &dberrors.Unsupported{Detail: "unknown value kind"}
	}
}

func encodeInt(buf []byte, i int64) []byte {
	switch {
	case i >= 0 && i <= 0x7f:
		return append(buf, byte(i))
	case i < 0 && i >= -32:
		return append(buf, byte(int8(i)))
	case i >= math.MinInt8 && i <= math.MaxInt8:
		return append(buf, codeInt8, byte(int8(i)))
	case i >= 0 && i <= math.MaxUint8:
		return append(buf, codeUint8, byte(i))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(int16(i)))
		return append(append(buf, codeInt16), b...)
	case i >= 0 && i <= math.MaxUint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(i))
		return append(append(buf, codeUint16), b...)
	case i >= math.MinInt32 && i <= math.MaxInt32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(int32(i)))
		return append(append(buf, codeInt32), b...)
	case i >= 0 && i <= math.MaxUint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(i))
		return append(append(buf, codeUint32), b...)
	default:
		// Magnitude exceeds uint32/int32 bounds: fall back to float64.
		// Lossy beyond 2^53 — documented, not guarded against, because the
		// value is still legal input.
		return encodeFloat(buf, float64(i))
	}
}

func encodeFloat(buf []byte, f float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f))
	return append(append(buf, codeFloat64), b...)
}

func encodeString(buf []byte, s string) ([]byte, error) {
	n := len(s) // UTF-8 byte length
	switch {
	case n <= fixstrMax:
		buf = append(buf, fixstrMask|byte(n))
	case n <= math.MaxUint8:
		buf = append(buf, codeStr8, byte(n))
	case n <= maxLen:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(buf, codeStr16)
		buf = append(buf, b...)
	default:
		return nil, &dberrors.Unsupported{Detail: "string exceeds 2^16-1 bytes"}
	}
	return append(buf, s...), nil
}

func encodeArray(buf []byte, arr []value.Value) ([]byte, error) {
	n := len(arr)
	var err error
	switch {
	case n <= fixarrayMax:
		buf = append(buf, fixarrayMask|byte(n))
	case n <= maxLen:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(buf, codeArray16)
		buf = append(buf, b...)
	default:
		return nil, &dberrors.Unsupported{Detail: "array exceeds 2^16-1 entries"}
	}
	for _, item := range arr {
		buf, err = encodeInto(buf, item)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeMap(buf []byte, m *value.Map) ([]byte, error) {
	n := m.Len()
	var err error
	switch {
	case n <= fixmapMax:
		buf = append(buf, fixmapMask|byte(n))
	case n <= maxLen:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(buf, codeMap16)
		buf = append(buf, b...)
	default:
		return nil, &dberrors.Unsupported{Detail: "map exceeds 2^16-1 entries"}
	}
	for _, k := range m.Keys() {
		buf, err = encodeString(buf, k)
		if err != nil {
			return nil, err
		}
		v, _ := m.Get(k)
		buf, err = encodeInto(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

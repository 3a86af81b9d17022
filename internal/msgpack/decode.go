package msgpack

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// Decode parses the MessagePack encoding of a single Value from the start
// of buf. Trailing bytes after the decoded value are ignored. Use DecodeAll
// to also recover the number of bytes consumed.
func Decode(buf []byte) (value.Value, error) {
	v, _, err := DecodeAll(buf)
	return v, err
}

// DecodeAll parses a single Value from the start of buf and returns the
// number of bytes it consumed, so callers can decode a sequence of values
// back to back (e.g. a document region with multiple records).
func DecodeAll(buf []byte) (value.Value, int, error) {
	d := &decoder{buf: buf}
	v, err := d.decodeValue()
	if err != nil {
		return value.Value{}, 0, err
	}
	return v, d.pos, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) eof() error {
	return &dberrors.Corruption{Where: "msgpack", Detail: "unexpected end of input"}
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, d.eof()
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, d.eof()
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) decodeValue() (value.Value, error) {
	code, err := d.readByte()
	if err != nil {
		return value.Value{}, err
	}

	switch {
	case code <= fixintPosMax: // 0x00-0x7f
		return value.Int(int64(code)), nil
	case code >= fixintNegMin: // 0xe0-0xff
		return value.Int(int64(int8(code))), nil
	case code >= 0x80 && code <= 0x8f: // fixmap
		return d.decodeMap(int(code & 0x0f))
	case code >= 0x90 && code <= 0x9f: // fixarray
		return d.decodeArray(int(code & 0x0f))
	case code >= 0xa0 && code <= 0xbf: // fixstr
		return d.decodeStringOfLen(int(code & 0x1f))
	}

	switch code {
	case codeNil:
		return value.Null(), nil
	case codeFalse:
		return value.Bool(false), nil
	case codeTrue:
		return value.Bool(true), nil
	case codeFloat64:
		b, err := d.readN(8)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case codeUint8:
		b, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(b)), nil
	case codeUint16:
		b, err := d.readN(2)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(binary.BigEndian.Uint16(b))), nil
	case codeUint32:
		b, err := d.readN(4)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(binary.BigEndian.Uint32(b))), nil
	case codeInt8:
		b, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(int8(b))), nil
	case codeInt16:
		b, err := d.readN(2)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(int16(binary.BigEndian.Uint16(b)))), nil
	case codeInt32:
		b, err := d.readN(4)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(int32(binary.BigEndian.Uint32(b)))), nil
	case codeStr8:
		n, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeStringOfLen(int(n))
	case codeStr16:
		b, err := d.readN(2)
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeStringOfLen(int(binary.BigEndian.Uint16(b)))
	case codeArray16:
		b, err := d.readN(2)
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeArray(int(binary.BigEndian.Uint16(b)))
	case codeMap16:
		b, err := d.readN(2)
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeMap(int(binary.BigEndian.Uint16(b)))
	}

	return value.Value{}, &dberrors.Unsupported{Detail: fmt.Sprintf("Unknown type: 0x%02x", code)}
}

func (d *decoder) decodeStringOfLen(n int) (value.Value, error) {
	b, err := d.readN(n)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(string(b)), nil
}

func (d *decoder) decodeArray(n int) (value.Value, error) {
	items := make([]value.Value, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return value.Value{}, err
		}
		items[i] = v
	}
	return value.ArrayFrom(items), nil
}

func (d *decoder) decodeMap(n int) (value.Value, error) {
	m := value.NewMap()
	for i := 0; i < n; i++ {
		k, err := d.decodeValue()
		if err != nil {
			return value.Value{}, err
		}
		key, ok := k.AsString()
		if !ok {
			return value.Value{}, &dberrors.Corruption{Where: "msgpack", Detail: "map key is not a string"}
		}
		v, err := d.decodeValue()
		if err != nil {
			return value.Value{}, err
		}
		m.Set(key, v)
	}
	return value.FromMap(m), nil
}

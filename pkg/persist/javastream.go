package persist

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/james-see/beatbox/pkg/grid"
)

// Object stream constants for a serialized boolean[]
const (
	streamMagic   = 0xACED
	streamVersion = 5

	tcNull          = 0x70
	tcClassDesc     = 0x72
	tcEndBlockData  = 0x78
	tcArray         = 0x75
	scSerializable  = 0x02
	boolArrayClass  = "[Z"
	boolArraySerial = 0x578F203914B85DE2
)

// JavaStream is the object stream layout of a Java boolean[256]:
//
//	AC ED 00 05                 stream magic and version
//	75                          TC_ARRAY
//	72 00 02 5B 5A              TC_CLASSDESC "[Z"
//	57 8F 20 39 14 B8 5D E2     serialVersionUID
//	02 00 00 78 70              SC_SERIALIZABLE, no fields, TC_ENDBLOCKDATA, TC_NULL
//	00 00 01 00                 element count
//	256 bytes                   one byte per cell, instrument major
type JavaStream struct{}

func (JavaStream) Name() string   { return "Java object stream" }
func (JavaStream) Format() Format { return FormatJava }

// Encode writes the grid as a serialized boolean[256]
func (JavaStream) Encode(m grid.Matrix) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(27 + grid.Cells)

	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }
	w(uint16(streamMagic))
	w(uint16(streamVersion))
	buf.WriteByte(tcArray)
	buf.WriteByte(tcClassDesc)
	w(uint16(len(boolArrayClass)))
	buf.WriteString(boolArrayClass)
	w(uint64(boolArraySerial))
	buf.WriteByte(scSerializable)
	w(uint16(0))
	buf.WriteByte(tcEndBlockData)
	buf.WriteByte(tcNull)
	w(int32(grid.Cells))

	for _, on := range m.Flat() {
		if on {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes(), nil
}

// Decode reads a serialized boolean[] and requires exactly 256 elements.
// Bytes after the array are ignored.
func (JavaStream) Decode(data []byte) (grid.Matrix, error) {
	r := bytes.NewReader(data)
	offset := func() int64 { return int64(len(data)) - int64(r.Len()) }

	var (
		magic, version uint16
		serial         uint64
		nameLen        uint16
		fields         uint16
		count          int32
	)

	expectByte := func(want byte, what string) error {
		at := offset()
		b, err := r.ReadByte()
		if err != nil {
			return corrupt("truncated before %s at offset %d", what, at)
		}
		if b != want {
			return corrupt("expected %s 0x%02X at offset %d, got 0x%02X", what, want, at, b)
		}
		return nil
	}
	read := func(v any, what string) error {
		at := offset()
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return corrupt("truncated %s at offset %d", what, at)
		}
		return nil
	}

	if err := read(&magic, "stream magic"); err != nil {
		return grid.Matrix{}, err
	}
	if magic != streamMagic {
		return grid.Matrix{}, corrupt("bad stream magic 0x%04X", magic)
	}
	if err := read(&version, "stream version"); err != nil {
		return grid.Matrix{}, err
	}
	if version != streamVersion {
		return grid.Matrix{}, corrupt("unsupported stream version %d", version)
	}
	if err := expectByte(tcArray, "TC_ARRAY"); err != nil {
		return grid.Matrix{}, err
	}
	if err := expectByte(tcClassDesc, "TC_CLASSDESC"); err != nil {
		return grid.Matrix{}, err
	}
	if err := read(&nameLen, "class name length"); err != nil {
		return grid.Matrix{}, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return grid.Matrix{}, corrupt("truncated class name")
	}
	if string(name) != boolArrayClass {
		return grid.Matrix{}, corrupt("class %q is not a boolean array", name)
	}
	if err := read(&serial, "serialVersionUID"); err != nil {
		return grid.Matrix{}, err
	}
	if serial != boolArraySerial {
		return grid.Matrix{}, corrupt("unexpected serialVersionUID 0x%016X", serial)
	}
	if err := expectByte(scSerializable, "class flags"); err != nil {
		return grid.Matrix{}, err
	}
	if err := read(&fields, "field count"); err != nil {
		return grid.Matrix{}, err
	}
	if fields != 0 {
		return grid.Matrix{}, corrupt("array class declares %d fields", fields)
	}
	if err := expectByte(tcEndBlockData, "TC_ENDBLOCKDATA"); err != nil {
		return grid.Matrix{}, err
	}
	if err := expectByte(tcNull, "TC_NULL"); err != nil {
		return grid.Matrix{}, err
	}
	if err := read(&count, "array length"); err != nil {
		return grid.Matrix{}, err
	}
	if count != grid.Cells {
		return grid.Matrix{}, corrupt("array holds %d values, want %d", count, grid.Cells)
	}

	values := make([]byte, grid.Cells)
	if n, err := io.ReadFull(r, values); err != nil {
		return grid.Matrix{}, corrupt("array truncated after %d of %d values", n, grid.Cells)
	}

	cells := make([]bool, grid.Cells)
	for i, b := range values {
		cells[i] = b != 0
	}
	m, err := grid.FromFlat(cells)
	if err != nil {
		return grid.Matrix{}, corrupt("%v", err)
	}
	return m, nil
}

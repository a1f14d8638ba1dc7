package codec

import (
	"encoding/binary"
	"math/big"
)

// Writer accumulates SCALE encoded bytes
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded bytes written so far
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) WriteCompact(v uint64) {
	w.buf = AppendCompact(w.buf, v)
}

func (w *Writer) WriteCompactBig(v *big.Int) error {
	buf, err := AppendCompactBig(w.buf, v)
	if err != nil {
		return err
	}
	w.buf = buf
	return nil
}

// WriteBytes writes a compact length prefix followed by b
func (w *Writer) WriteBytes(b []byte) {
	w.WriteCompact(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteString(s string) {
	w.WriteCompact(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

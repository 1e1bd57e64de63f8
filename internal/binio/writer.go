/*
Copyright © 2026 the dosio authors.
This file is part of dosio.

dosio is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dosio is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dosio.  If not, see <http://www.gnu.org/licenses/>.
*/

package binio

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer writes named fields to an underlying stream.
type Writer struct {
	w     io.Writer
	order binary.ByteOrder
	short ShortFunc
}

// NewWriter creates a field writer. A nil order means the host byte order.
func NewWriter(w io.Writer, order binary.ByteOrder, short ShortFunc) *Writer {
	if order == nil {
		order = binary.NativeEndian
	}
	if short == nil {
		short = func(string, int, int, int, error) {}
	}
	return &Writer{w: w, order: order, short: short}
}

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.order
}

// flush writes buf, which holds n elements of size bytes each, and returns
// the number of complete elements written.
func (w *Writer) flush(field string, buf []byte, n, size int) int {
	if n <= 0 {
		return 0
	}
	got, err := w.w.Write(buf)
	if got < len(buf) && err == nil {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.short(field, NoIndex, n, got/size, err)
	}
	return got / size
}

// Int32 writes a single 32-bit integer.
func (w *Writer) Int32(field string, v int32) bool {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, uint32(v))
	return w.flush(field, buf, 1, 4) == 1
}

// Float64 writes a single double-precision value.
func (w *Writer) Float64(field string, v float64) bool {
	buf := make([]byte, 8)
	w.order.PutUint64(buf, math.Float64bits(v))
	return w.flush(field, buf, 1, 8) == 1
}

// Float32 narrows v to single precision and writes it.
func (w *Writer) Float32(field string, v float64) bool {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, math.Float32bits(float32(v)))
	return w.flush(field, buf, 1, 4) == 1
}

// Float32s narrows src to single precision and writes it as one block.
func (w *Writer) Float32s(field string, src []float64) int {
	buf := make([]byte, len(src)*4)
	for i, v := range src {
		w.order.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return w.flush(field, buf, len(src), 4)
}

// Int16s writes src as one block of 16-bit integers.
func (w *Writer) Int16s(field string, src []int16) int {
	buf := make([]byte, len(src)*2)
	for i, v := range src {
		w.order.PutUint16(buf[i*2:], uint16(v))
	}
	return w.flush(field, buf, len(src), 2)
}

// Bytes writes raw bytes.
func (w *Writer) Bytes(field string, b []byte) int {
	return w.flush(field, b, len(b), 1)
}

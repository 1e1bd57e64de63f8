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

// Package binio reads and writes fixed-layout binary records one named
// field at a time. A field that transfers fewer elements than requested is
// reported through a callback and the transfer continues with the next field.
package binio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
)

// NoIndex is passed to a ShortFunc for fields that are not one element of
// a larger sequence.
const NoIndex = -1

// chunkSize bounds the buffer used to read a block of elements.
const chunkSize = 64 << 10

// ShortFunc receives a short transfer of field. index is the position of the
// element within its sequence, or NoIndex. want and got are element counts.
type ShortFunc func(field string, index, want, got int, err error)

// Reader reads named fields from an underlying stream.
type Reader struct {
	r     io.Reader
	order binary.ByteOrder
	short ShortFunc
	left  int64 // unread bytes in r, or -1 if unknown
}

// NewReader creates a field reader. A nil order means the host byte order.
// If r is an in-memory reader with a Len method or a file, the number of
// bytes left in it is tracked so that Fits can check declared sizes.
func NewReader(r io.Reader, order binary.ByteOrder, short ShortFunc) *Reader {
	if order == nil {
		order = binary.NativeEndian
	}
	if short == nil {
		short = func(string, int, int, int, error) {}
	}
	return &Reader{r: r, order: order, short: short, left: sizeLeft(r)}
}

func sizeLeft(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len())
	case interface {
		Stat() (os.FileInfo, error)
		io.Seeker
	}:
		fi, err := v.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return -1
		}
		off, err := v.Seek(0, io.SeekCurrent)
		if err != nil || off > fi.Size() {
			return -1
		}
		return fi.Size() - off
	}
	return -1
}

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}

// Remaining returns the number of bytes left in the source, or -1 if the
// source does not report its size.
func (r *Reader) Remaining() int64 {
	return r.left
}

// Array describes a block of N elements of Size bytes each.
type Array struct {
	Field   string
	N, Size int
}

// Fits reports whether arrays, read in order from the current position,
// could be filled from the rest of the source with at most half of their
// bytes missing. If not, each array is reported short with the number of
// elements the source still holds for it and nothing is read, so that the
// caller can skip allocating them. Fits is always true when the size of the
// source is unknown.
func (r *Reader) Fits(arrays ...Array) bool {
	if r.left < 0 {
		return true
	}
	var total int64
	for _, a := range arrays {
		total += int64(a.N) * int64(a.Size)
	}
	if total <= 2*r.left {
		return true
	}
	left := r.left
	for _, a := range arrays {
		got := int64(a.N)
		if a.Size > 0 && left/int64(a.Size) < got {
			got = left / int64(a.Size)
		}
		left -= got * int64(a.Size)
		if got < int64(a.N) {
			r.short(a.Field, NoIndex, a.N, int(got), io.ErrUnexpectedEOF)
		}
	}
	return false
}

func (r *Reader) readFull(buf []byte) (int, error) {
	n, err := io.ReadFull(r.r, buf)
	if r.left >= 0 {
		r.left -= int64(n)
		if r.left < 0 {
			r.left = 0
		}
	}
	return n, err
}

// block reads n elements of size bytes each in chunks of at most chunkSize
// bytes, passing each chunk of complete elements to decode along with the
// index of its first element. It returns the number of elements read.
func (r *Reader) block(field string, index, n, size int, decode func(buf []byte, first int)) int {
	if n <= 0 {
		return 0
	}
	k := chunkSize / size
	if k > n {
		k = n
	}
	buf := make([]byte, k*size)
	for done := 0; done < n; {
		if m := n - done; m < k {
			k = m
		}
		got, err := r.readFull(buf[:k*size])
		decode(buf[:got/size*size], done)
		done += got / size
		if err != nil {
			r.short(field, index, n, done, err)
			return done
		}
	}
	return n
}

// scalar reads a single element of size bytes into buf.
func (r *Reader) scalar(field string, index int, buf []byte) bool {
	got, err := r.readFull(buf)
	if err != nil {
		r.short(field, index, 1, got/len(buf), err)
		return false
	}
	return true
}

// Int32 reads a single 32-bit integer. ok is false on a short read, in
// which case v is zero.
func (r *Reader) Int32(field string) (v int32, ok bool) {
	var buf [4]byte
	if !r.scalar(field, NoIndex, buf[:]) {
		return 0, false
	}
	return int32(r.order.Uint32(buf[:])), true
}

// Float64 reads a single double-precision value.
func (r *Reader) Float64(field string) (v float64, ok bool) {
	var buf [8]byte
	if !r.scalar(field, NoIndex, buf[:]) {
		return 0, false
	}
	return math.Float64frombits(r.order.Uint64(buf[:])), true
}

// Float32 reads a single single-precision value and widens it. index is
// reported with a short read.
func (r *Reader) Float32(field string, index int) (v float64, ok bool) {
	var buf [4]byte
	if !r.scalar(field, index, buf[:]) {
		return 0, false
	}
	return float64(math.Float32frombits(r.order.Uint32(buf[:]))), true
}

// Float32s reads len(dst) single-precision values as one block and widens
// them into dst. Elements past a short read are left as they were.
func (r *Reader) Float32s(field string, dst []float64) int {
	return r.block(field, NoIndex, len(dst), 4, func(buf []byte, first int) {
		for i := 0; i < len(buf)/4; i++ {
			dst[first+i] = float64(math.Float32frombits(r.order.Uint32(buf[i*4:])))
		}
	})
}

// Int16s reads len(dst) 16-bit integers as one block.
func (r *Reader) Int16s(field string, dst []int16) int {
	return r.block(field, NoIndex, len(dst), 2, func(buf []byte, first int) {
		for i := 0; i < len(buf)/2; i++ {
			dst[first+i] = int16(r.order.Uint16(buf[i*2:]))
		}
	})
}

// Bytes reads len(dst) raw bytes.
func (r *Reader) Bytes(field string, index int, dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	got, err := r.readFull(dst)
	if err != nil {
		r.short(field, index, len(dst), got, err)
	}
	return got
}

// Skip discards n bytes.
func (r *Reader) Skip(field string, index, n int) int {
	if n <= 0 {
		return 0
	}
	got, err := io.CopyN(io.Discard, r.r, int64(n))
	if r.left >= 0 {
		r.left -= got
		if r.left < 0 {
			r.left = 0
		}
	}
	if err != nil {
		r.short(field, index, n, int(got), err)
	}
	return int(got)
}

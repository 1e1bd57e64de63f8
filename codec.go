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

// Package dosio encodes and decodes the binary files exchanged between
// parallel dose-calculation chunks and the recombination step: partial-dose
// accumulators (.pardose), binary phantoms (.egsphant), binary dose grids
// (.3dbindose) and 2D source-intensity maps.
//
// All formats are headerless fixed layouts with scalars in the host byte
// order. They carry no magic number or version tag and none may be added
// without breaking existing files.
//
// A field that transfers fewer elements than requested does not stop a
// call: the failure is logged as it happens, the remaining fields are still
// processed, and the call returns its result together with a
// TransferErrors value listing every short field.
package dosio

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/dosio/internal/binio"
)

// Codec holds the settings shared by all of the readers and writers in this
// package. The zero value reads and writes in the host byte order and logs
// to the logrus standard logger. A Codec may be used concurrently.
type Codec struct {
	// ByteOrder overrides the byte order of multi-byte scalars.
	// If nil, the host byte order is used.
	ByteOrder binary.ByteOrder

	// Log receives a message for every field that is transferred short.
	Log logrus.FieldLogger
}

// NewCodec returns a codec that logs to log.
func NewCodec(log logrus.FieldLogger) *Codec {
	return &Codec{Log: log}
}

// DefaultCodec is used by the package-level file functions.
var DefaultCodec = &Codec{}

func (c *Codec) logger() logrus.FieldLogger {
	if c == nil || c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func (c *Codec) order() binary.ByteOrder {
	if c == nil {
		return nil
	}
	return c.ByteOrder
}

// transfer records the short transfers of a single codec call.
type transfer struct {
	log  logrus.FieldLogger
	verb string // "reading" or "writing"
	path string
	errs TransferErrors
}

func (t *transfer) short(field string, index, want, got int, err error) {
	e := &IoError{
		Kind:  ShortTransfer,
		Path:  t.path,
		Field: field,
		Index: index,
		Want:  want,
		Got:   got,
		Err:   err,
	}
	t.errs = append(t.errs, e)

	entry := t.log.WithFields(logrus.Fields{
		"field": field,
		"want":  want,
		"got":   got,
	})
	if t.path != "" {
		entry = entry.WithField("file", t.path)
	}
	if index != binio.NoIndex {
		entry.WithField("index", index).Errorf("Error %s %s value %d.", t.verb, field, index)
		return
	}
	entry.Errorf("Error %s %s.", t.verb, field)
}

func (c *Codec) newReader(r io.Reader) (*binio.Reader, *transfer) {
	t := &transfer{log: c.logger(), verb: "reading", path: pathOf(r)}
	return binio.NewReader(r, c.order(), t.short), t
}

func (c *Codec) newWriter(w io.Writer) (*binio.Writer, *transfer) {
	t := &transfer{log: c.logger(), verb: "writing", path: pathOf(w)}
	return binio.NewWriter(w, c.order(), t.short), t
}

// pathOf returns the file name of v if it is an open file.
func pathOf(v interface{}) string {
	if f, ok := v.(interface{ Name() string }); ok {
		return f.Name()
	}
	return ""
}

// openFile opens path for reading. fatal marks formats without which a
// simulation cannot proceed.
func (c *Codec) openFile(path string, fatal bool) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		c.logger().WithField("file", path).Errorf("Cannot open file %s", path)
		return nil, &IoError{Kind: OpenFailed, Path: path, Index: -1, Fatal: fatal, Err: err}
	}
	return f, nil
}

// createFile creates or truncates path for writing.
func (c *Codec) createFile(path string, fatal bool) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		c.logger().WithField("file", path).Errorf("Cannot open file %s", path)
		return nil, &IoError{Kind: OpenFailed, Path: path, Index: -1, Fatal: fatal, Err: err}
	}
	return f, nil
}

// closeFile closes f. If err is nil, a close error is returned as a
// ShortTransfer on the whole file.
func closeFile(f *os.File, err error) error {
	cerr := f.Close()
	if err == nil && cerr != nil {
		return &IoError{Kind: ShortTransfer, Path: f.Name(), Index: -1, Err: cerr}
	}
	return err
}

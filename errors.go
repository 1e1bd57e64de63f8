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

package dosio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an IoError.
type ErrorKind int

const (
	// OpenFailed means the source or destination file could not be opened
	// or created.
	OpenFailed ErrorKind = iota + 1

	// ShortTransfer means a read or write moved fewer elements than
	// requested for one field.
	ShortTransfer

	// InvalidDimensions means a count read from or supplied to a codec was
	// zero, negative, too large, or disagreed with an array length.
	InvalidDimensions
)

func (k ErrorKind) String() string {
	switch k {
	case OpenFailed:
		return "open failed"
	case ShortTransfer:
		return "short transfer"
	case InvalidDimensions:
		return "invalid dimensions"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinel errors matched by IoError through errors.Is.
var (
	ErrOpenFailed        = errors.New("dosio: open failed")
	ErrShortTransfer     = errors.New("dosio: short transfer")
	ErrInvalidDimensions = errors.New("dosio: invalid dimensions")
)

// IoError describes a failure of a single codec call or of a single field
// within it.
type IoError struct {
	Kind ErrorKind

	// Path is the file involved, if any.
	Path string

	// Field names the record field, for ShortTransfer and
	// InvalidDimensions errors.
	Field string

	// Index is the element index within Field for fields that are
	// transferred one element at a time, and -1 otherwise.
	Index int

	// Want and Got are the requested and transferred element counts of a
	// short transfer.
	Want, Got int

	// Fatal marks errors after which the simulation cannot proceed, such
	// as a missing phantom file. The codec never exits; the caller decides.
	Fatal bool

	// Err is the underlying error.
	Err error
}

func (e *IoError) Error() string {
	var b strings.Builder
	b.WriteString("dosio: ")
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, " for %s", e.Field)
		if e.Index >= 0 {
			fmt.Fprintf(&b, "[%d]", e.Index)
		}
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Kind == ShortTransfer {
		fmt.Fprintf(&b, " (%d of %d elements)", e.Got, e.Want)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *IoError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *IoError) Is(target error) bool {
	switch target {
	case ErrOpenFailed:
		return e.Kind == OpenFailed
	case ErrShortTransfer:
		return e.Kind == ShortTransfer
	case ErrInvalidDimensions:
		return e.Kind == InvalidDimensions
	}
	return false
}

// TransferErrors collects the short transfers of one encode or decode call.
// A codec that returns TransferErrors has still processed every field; the
// affected fields are only partially populated.
type TransferErrors []*IoError

func (te TransferErrors) Error() string {
	if len(te) == 1 {
		return te[0].Error()
	}
	msgs := make([]string, len(te))
	for i, e := range te {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("dosio: %d short transfers: %s", len(te), strings.Join(msgs, "; "))
}

// Unwrap returns the individual field errors.
func (te TransferErrors) Unwrap() []error {
	o := make([]error, len(te))
	for i, e := range te {
		o[i] = e
	}
	return o
}

// Fields returns the names of the fields that were short, in the order the
// failures occurred.
func (te TransferErrors) Fields() []string {
	o := make([]string, len(te))
	for i, e := range te {
		o[i] = e.Field
	}
	return o
}

// errOrNil returns te as an error, or nil if it is empty.
func (te TransferErrors) errOrNil() error {
	if len(te) == 0 {
		return nil
	}
	return te
}

func invalidDims(field string, format string, args ...interface{}) *IoError {
	return &IoError{
		Kind:  InvalidDimensions,
		Field: field,
		Index: -1,
		Err:   fmt.Errorf(format, args...),
	}
}

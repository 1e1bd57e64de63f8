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

// Package combine sums the partial-dose records written by parallel
// simulation chunks into a single record.
//
// Chunks are added in the order they are given. Deciding which chunks
// belong to a run, and when to combine them, is up to the caller.
package combine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/dosio"
	"github.com/spatialmodel/dosio/internal/hash"
	"gonum.org/v1/gonum/floats"
)

// ErrDuplicate is returned by Add when a chunk with the same name was
// already added.
var ErrDuplicate = errors.New("combine: duplicate chunk")

// Combiner accumulates partial-dose records.
type Combiner struct {
	// Log receives a message for every chunk added or rejected.
	Log logrus.FieldLogger

	// AllowShort makes AddDecoded add chunks that were only partly read,
	// with a warning, instead of rejecting them.
	AllowShort bool

	sum     *dosio.EnergyAccumulator
	names   map[string]bool
	content map[string]string // fingerprint → chunk name
	n       int
}

// New returns an empty Combiner.
func New(log logrus.FieldLogger) *Combiner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Combiner{Log: log, names: make(map[string]bool), content: make(map[string]string)}
}

// Add adds chunk a, identified by name in messages. The first chunk sets
// the grid dimensions and every later chunk must match them. A chunk whose
// name was already added is skipped and ErrDuplicate is returned. A chunk
// with the same content as an earlier one under another name is added with
// a warning, since chunks that deposit no energy are legitimately identical.
func (c *Combiner) Add(name string, a *dosio.EnergyAccumulator) error {
	if c.names[name] {
		c.Log.WithField("chunk", name).Warnf("skipping chunk %s: already added", name)
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	if c.sum != nil && a.Dims != c.sum.Dims {
		return fmt.Errorf("combine: chunk %s has dimensions %v but earlier chunks have %v",
			name, a.Dims, c.sum.Dims)
	}
	n := a.Dims.Voxels()
	if len(a.Energy) != n || len(a.Energy2) != n {
		return fmt.Errorf("combine: chunk %s has %d and %d energy elements for %d voxels",
			name, len(a.Energy), len(a.Energy2), n)
	}
	key := hash.Fingerprint(a)
	if prev, ok := c.content[key]; ok {
		c.Log.WithFields(logrus.Fields{"chunk": name, "same_as": prev}).
			Warnf("chunk %s has the same content as %s", name, prev)
	} else {
		c.content[key] = name
	}
	c.names[name] = true

	if c.sum == nil {
		c.sum = dosio.NewEnergyAccumulator(a.Dims)
	}
	c.sum.CPUTime += a.CPUTime
	floats.Add(c.sum.Energy, a.Energy)
	floats.Add(c.sum.Energy2, a.Energy2)
	c.n++
	c.Log.WithFields(logrus.Fields{"chunk": name, "cpu_time": a.CPUTime}).Debugf("added chunk %s", name)
	return nil
}

// Chunks returns the number of chunks added.
func (c *Combiner) Chunks() int { return c.n }

// Result returns the combined record, or nil if no chunk has been added.
// The returned record is owned by the Combiner and changes with later calls
// to Add.
func (c *Combiner) Result() *dosio.EnergyAccumulator { return c.sum }

// Files reads the partial-dose files at paths with codec and combines them.
// A file with short fields stops the combination; use a Combiner with
// AllowShort set to add such files anyway.
func Files(codec *dosio.Codec, log logrus.FieldLogger, paths ...string) (*dosio.EnergyAccumulator, error) {
	c := New(log)
	if err := c.AddFiles(codec, paths...); err != nil {
		return nil, err
	}
	return c.Result(), nil
}

// AddFiles reads the partial-dose files at paths with codec and adds them.
// Files that were already added are skipped.
func (c *Combiner) AddFiles(codec *dosio.Codec, paths ...string) error {
	for _, path := range paths {
		a, err := codec.ReadPartialDoseFile(path)
		if err = c.AddDecoded(path, a, err); err != nil {
			return err
		}
	}
	if c.Chunks() == 0 {
		return fmt.Errorf("combine: no partial-dose chunks to combine")
	}
	return nil
}

// AddDecoded adds the result of a decode call. A record with short
// transfers is rejected with an error naming the short fields unless
// AllowShort is set, in which case it is added with a warning. Duplicates
// are skipped without error.
func (c *Combiner) AddDecoded(name string, a *dosio.EnergyAccumulator, decodeErr error) error {
	if decodeErr != nil {
		var te dosio.TransferErrors
		if !errors.As(decodeErr, &te) || a == nil {
			return fmt.Errorf("combine: reading chunk %s: %w", name, decodeErr)
		}
		if !c.AllowShort {
			return fmt.Errorf("combine: chunk %s is incomplete: short fields %v: %w", name, te.Fields(), decodeErr)
		}
		c.Log.WithField("chunk", name).Warnf("chunk %s is incomplete: short fields %v", name, te.Fields())
	}
	if err := c.Add(name, a); err != nil && !errors.Is(err, ErrDuplicate) {
		return err
	}
	return nil
}

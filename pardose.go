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
	"io"

	"github.com/spatialmodel/dosio/internal/binio"
)

// EnergyAccumulator is the partial-dose record written by one parallel
// simulation chunk. Energy holds the deposited energy per voxel and Energy2
// the per-voxel sum of squares used to estimate its uncertainty.
// Both are stored on disk in single precision.
type EnergyAccumulator struct {
	// CPUTime is the CPU time spent by the chunk so far.
	CPUTime float64
	Dims    GridDimensions
	Energy  []float64
	Energy2 []float64
}

// NewEnergyAccumulator allocates a zeroed accumulator for d.
func NewEnergyAccumulator(d GridDimensions) *EnergyAccumulator {
	n := d.Voxels()
	return &EnergyAccumulator{
		Dims:    d,
		Energy:  make([]float64, n),
		Energy2: make([]float64, n),
	}
}

// EncodePartialDose writes a in the partial-dose layout:
//
//	time(f64) imax,jmax,kmax(i32) energy[N](f32) energy2[N](f32)
//
// Short writes are logged and returned as TransferErrors after every field
// has been attempted.
func (c *Codec) EncodePartialDose(w io.Writer, a *EnergyAccumulator) error {
	if err := a.Dims.Validate(); err != nil {
		return err
	}
	n := a.Dims.Voxels()
	if err := checkVoxelArray("endep", a.Energy, n); err != nil {
		return err
	}
	if err := checkVoxelArray("endep2", a.Energy2, n); err != nil {
		return err
	}
	bw, t := c.newWriter(w)
	bw.Float64("temp2", a.CPUTime)
	writeDims(bw, a.Dims)
	bw.Float32s("endep", a.Energy)
	bw.Float32s("endep2", a.Energy2)
	return t.errs.errOrNil()
}

// DecodePartialDose reads a partial-dose record. If some fields are short,
// the record is returned along with a TransferErrors value and the elements
// that could not be read are zero; such a record should be treated as
// unreliable. If the dimensions cannot be read the record is nil. The
// record is also nil, with every energy field reported short, when the
// source is a file or in-memory reader holding less than half of the
// energy arrays its header declares.
func (c *Codec) DecodePartialDose(r io.Reader) (*EnergyAccumulator, error) {
	br, t := c.newReader(r)
	cpu, _ := br.Float64("temp2")
	d, err := readDims(br)
	if err != nil {
		return nil, err
	}
	n := d.Voxels()
	if !br.Fits(binio.Array{Field: "endep", N: n, Size: 4}, binio.Array{Field: "endep2", N: n, Size: 4}) {
		return nil, t.errs.errOrNil()
	}
	a := NewEnergyAccumulator(d)
	a.CPUTime = cpu
	br.Float32s("endep", a.Energy)
	br.Float32s("endep2", a.Energy2)
	return a, t.errs.errOrNil()
}

// WritePartialDoseFile creates the file at path and writes a to it.
func (c *Codec) WritePartialDoseFile(path string, a *EnergyAccumulator) error {
	f, err := c.createFile(path, false)
	if err != nil {
		return err
	}
	return closeFile(f, c.EncodePartialDose(f, a))
}

// ReadPartialDoseFile reads the partial-dose record at path.
func (c *Codec) ReadPartialDoseFile(path string) (*EnergyAccumulator, error) {
	f, err := c.openFile(path, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.DecodePartialDose(f)
}

// WritePartialDose writes a to path using DefaultCodec.
func WritePartialDose(path string, a *EnergyAccumulator) error {
	return DefaultCodec.WritePartialDoseFile(path, a)
}

// ReadPartialDose reads the record at path using DefaultCodec.
func ReadPartialDose(path string) (*EnergyAccumulator, error) {
	return DefaultCodec.ReadPartialDoseFile(path)
}

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

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/dosio/internal/binio"
)

// DoseGrid is a finished dose distribution with its per-voxel uncertainty.
type DoseGrid struct {
	Dims        GridDimensions
	Bounds      VoxelBoundaries
	Dose        []float64
	Uncertainty []float64
}

// NewDoseGrid allocates a zeroed dose grid for d.
func NewDoseGrid(d GridDimensions) *DoseGrid {
	n := d.Voxels()
	return &DoseGrid{
		Dims:        d,
		Bounds:      NewVoxelBoundaries(d),
		Dose:        make([]float64, n),
		Uncertainty: make([]float64, n),
	}
}

// DoseArray returns the dose as a [kmax][jmax][imax] array sharing storage
// with g.Dose.
func (g *DoseGrid) DoseArray() *sparse.DenseArray {
	return g.array(g.Dose)
}

// UncertaintyArray returns the uncertainty as a [kmax][jmax][imax] array
// sharing storage with g.Uncertainty.
func (g *DoseGrid) UncertaintyArray() *sparse.DenseArray {
	return g.array(g.Uncertainty)
}

func (g *DoseGrid) array(data []float64) *sparse.DenseArray {
	a := sparse.ZerosDense(g.Dims.KMax, g.Dims.JMax, g.Dims.IMax)
	a.Elements = data
	return a
}

// EncodeDoseGrid writes g in the binary dose layout:
//
//	imax,jmax,kmax(i32) xbound,ybound,zbound(f32) dose[N](f32) uncertainty[N](f32)
//
// Short writes are logged and returned as TransferErrors after every field
// has been attempted.
func (c *Codec) EncodeDoseGrid(w io.Writer, g *DoseGrid) error {
	if err := g.Dims.Validate(); err != nil {
		return err
	}
	if err := g.Bounds.check(g.Dims); err != nil {
		return err
	}
	n := g.Dims.Voxels()
	if err := checkVoxelArray("doses", g.Dose, n); err != nil {
		return err
	}
	if err := checkVoxelArray("dose uncertainties", g.Uncertainty, n); err != nil {
		return err
	}
	bw, t := c.newWriter(w)
	writeDims(bw, g.Dims)
	writeBounds(bw, g.Bounds)
	bw.Float32s("doses", g.Dose)
	bw.Float32s("dose uncertainties", g.Uncertainty)
	return t.errs.errOrNil()
}

// DecodeDoseGrid reads a grid written by EncodeDoseGrid. Short fields, and
// sources far smaller than the declared grid, are handled as in
// DecodePartialDose.
func (c *Codec) DecodeDoseGrid(r io.Reader) (*DoseGrid, error) {
	br, t := c.newReader(r)
	d, err := readDims(br)
	if err != nil {
		return nil, err
	}
	n := d.Voxels()
	if !br.Fits(append(boundsArrays(d),
		binio.Array{Field: "doses", N: n, Size: 4},
		binio.Array{Field: "dose uncertainties", N: n, Size: 4})...) {
		return nil, t.errs.errOrNil()
	}
	g := NewDoseGrid(d)
	g.Bounds = readBounds(br, d)
	br.Float32s("doses", g.Dose)
	br.Float32s("dose uncertainties", g.Uncertainty)
	return g, t.errs.errOrNil()
}

// WriteDoseGridFile creates the file at path and writes g to it. Failing to
// create the output is marked Fatal.
func (c *Codec) WriteDoseGridFile(path string, g *DoseGrid) error {
	f, err := c.createFile(path, true)
	if err != nil {
		return err
	}
	return closeFile(f, c.EncodeDoseGrid(f, g))
}

// ReadDoseGridFile reads the binary dose grid at path.
func (c *Codec) ReadDoseGridFile(path string) (*DoseGrid, error) {
	f, err := c.openFile(path, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.DecodeDoseGrid(f)
}

// WriteDoseGrid writes g to path using DefaultCodec.
func WriteDoseGrid(path string, g *DoseGrid) error {
	return DefaultCodec.WriteDoseGridFile(path, g)
}

// ReadDoseGrid reads the grid at path using DefaultCodec.
func ReadDoseGrid(path string) (*DoseGrid, error) {
	return DefaultCodec.ReadDoseGridFile(path)
}

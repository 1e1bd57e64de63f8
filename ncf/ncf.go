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

// Package ncf converts dose grids to and from NetCDF files so they can be
// inspected with standard scientific tools.
package ncf

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/dosio"
)

// Comment is stored as the global "comment" attribute of every file
// written by Write.
const Comment = "dosio dose distribution"

const (
	doseVar        = "dose"
	uncertaintyVar = "uncertainty"
)

var boundVars = []string{"xbound", "ybound", "zbound"}

// Write writes g to w as NetCDF. The dose and uncertainty are stored as
// single-precision [z][y][x] variables and the voxel boundaries as three
// single-precision vectors.
func Write(w *os.File, g *dosio.DoseGrid) error {
	if err := g.Dims.Validate(); err != nil {
		return err
	}
	d := g.Dims
	h := cdf.NewHeader(
		[]string{"x", "y", "z", "xb", "yb", "zb"},
		[]int{d.IMax, d.JMax, d.KMax, d.IMax + 1, d.JMax + 1, d.KMax + 1})
	h.AddAttribute("", "comment", Comment)
	h.AddVariable("xbound", []string{"xb"}, []float32{0})
	h.AddVariable("ybound", []string{"yb"}, []float32{0})
	h.AddVariable("zbound", []string{"zb"}, []float32{0})
	h.AddVariable(doseVar, []string{"z", "y", "x"}, []float32{0})
	h.AddAttribute(doseVar, "description", "Absorbed dose per voxel")
	h.AddVariable(uncertaintyVar, []string{"z", "y", "x"}, []float32{0})
	h.AddAttribute(uncertaintyVar, "description", "Dose uncertainty per voxel")
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	bounds := [][]float64{g.Bounds.X, g.Bounds.Y, g.Bounds.Z}
	for i, name := range boundVars {
		if err = writeNCF(f, name, sparse.ZerosDense(len(bounds[i])), bounds[i]); err != nil {
			return fmt.Errorf("ncf: writing variable %s: %v", name, err)
		}
	}
	if err = writeNCF(f, doseVar, g.DoseArray(), nil); err != nil {
		return fmt.Errorf("ncf: writing variable %s: %v", doseVar, err)
	}
	if err = writeNCF(f, uncertaintyVar, g.UncertaintyArray(), nil); err != nil {
		return fmt.Errorf("ncf: writing variable %s: %v", uncertaintyVar, err)
	}
	return cdf.UpdateNumRecs(w)
}

// writeNCF narrows data to float32 and writes it to variable v. If elems
// is not nil it replaces the elements of data.
func writeNCF(f *cdf.File, v string, data *sparse.DenseArray, elems []float64) error {
	if elems != nil {
		data.Elements = elems
	}
	n := 1
	for _, l := range data.Shape {
		n *= l
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = dosio.Narrow(e)
	}
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	_, err := f.Writer(v, start, end).Write(data32)
	return err
}

// Read reads a dose grid written by Write.
func Read(rw cdf.ReaderWriterAt) (*dosio.DoseGrid, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("ncf: %v", err)
	}
	lengths := f.Header.Lengths(doseVar)
	if len(lengths) != 3 {
		return nil, fmt.Errorf("ncf: variable %s has %d dimensions, want 3", doseVar, len(lengths))
	}
	d := dosio.GridDimensions{IMax: lengths[2], JMax: lengths[1], KMax: lengths[0]}
	if err = d.Validate(); err != nil {
		return nil, err
	}
	g := dosio.NewDoseGrid(d)
	dst := map[string][]float64{
		"xbound":       g.Bounds.X,
		"ybound":       g.Bounds.Y,
		"zbound":       g.Bounds.Z,
		doseVar:        g.Dose,
		uncertaintyVar: g.Uncertainty,
	}
	for _, v := range append(boundVars, doseVar, uncertaintyVar) {
		if err = readNCF(f, v, dst[v]); err != nil {
			return nil, fmt.Errorf("ncf: reading variable %s: %v", v, err)
		}
	}
	return g, nil
}

func readNCF(f *cdf.File, v string, dst []float64) error {
	n := 1
	for _, l := range f.Header.Lengths(v) {
		n *= l
	}
	if n != len(dst) {
		return fmt.Errorf("dims are %d but grid needs %d values", n, len(dst))
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return err
	}
	data, ok := buf.([]float32)
	if !ok {
		return fmt.Errorf("type %T is not float32", buf)
	}
	for i, val := range data {
		dst[i] = dosio.Widen(val)
	}
	return nil
}

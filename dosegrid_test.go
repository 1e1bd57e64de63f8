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
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func randomDoseGrid(rnd *rand.Rand, d GridDimensions) *DoseGrid {
	g := NewDoseGrid(d)
	for _, b := range [][]float64{g.Bounds.X, g.Bounds.Y, g.Bounds.Z} {
		x := -10 * rnd.Float64()
		for i := range b {
			b[i] = x
			x += 0.1 + rnd.Float64()
		}
	}
	for i := range g.Dose {
		g.Dose[i] = rnd.Float64() * 1e-12
		g.Uncertainty[i] = rnd.Float64()
	}
	return g
}

func TestDoseGridRoundTrip(t *testing.T) {
	c, _ := testCodec()
	rnd := rand.New(rand.NewSource(10))
	for trial := 0; trial < 30; trial++ {
		d := GridDimensions{IMax: rnd.Intn(8) + 1, JMax: rnd.Intn(8) + 1, KMax: rnd.Intn(8) + 1}
		g := randomDoseGrid(rnd, d)
		buf := new(bytes.Buffer)
		if err := c.EncodeDoseGrid(buf, g); err != nil {
			t.Fatal(err)
		}
		n := d.Voxels()
		if want := 12 + 4*(d.IMax+d.JMax+d.KMax+3) + 8*n; buf.Len() != want {
			t.Errorf("%v: %d bytes, want %d", d, buf.Len(), want)
		}
		g2, err := c.DecodeDoseGrid(buf)
		if err != nil {
			t.Fatal(err)
		}
		if g2.Dims != d {
			t.Errorf("dims %v != %v", g2.Dims, d)
		}
		for _, pair := range [][2][]float64{
			{g2.Bounds.X, g.Bounds.X}, {g2.Bounds.Y, g.Bounds.Y}, {g2.Bounds.Z, g.Bounds.Z},
			{g2.Dose, g.Dose}, {g2.Uncertainty, g.Uncertainty},
		} {
			if !reflect.DeepEqual(pair[0], narrowed(pair[1])) {
				t.Errorf("%v: not reproduced within single precision", d)
			}
			for i := range pair[0] {
				if !floats.EqualWithinAbsOrRel(pair[0][i], pair[1][i], 1e-30, 1e-7) {
					t.Errorf("%g != %g", pair[0][i], pair[1][i])
				}
			}
		}
	}
}

func TestDoseGridLayout(t *testing.T) {
	c, _ := testCodec()
	g := &DoseGrid{
		Dims:        GridDimensions{IMax: 1, JMax: 1, KMax: 2},
		Bounds:      VoxelBoundaries{X: []float64{0, 1}, Y: []float64{0, 2}, Z: []float64{0, 0.5, 1}},
		Dose:        []float64{3, 4},
		Uncertainty: []float64{0.5, 0.25},
	}
	buf := new(bytes.Buffer)
	if err := c.EncodeDoseGrid(buf, g); err != nil {
		t.Fatal(err)
	}
	want := le(t, int32(1), int32(1), int32(2),
		[]float32{0, 1}, []float32{0, 2}, []float32{0, 0.5, 1},
		[]float32{3, 4}, []float32{0.5, 0.25})
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("layout:\n%x\nwant\n%x", buf.Bytes(), want)
	}
}

func TestDoseGridInvalid(t *testing.T) {
	c, _ := testCodec()
	g := NewDoseGrid(GridDimensions{IMax: 2, JMax: 2, KMax: 2})
	g.Bounds.Y = g.Bounds.Y[:2]
	if err := c.EncodeDoseGrid(new(bytes.Buffer), g); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("err = %v", err)
	}
	g = NewDoseGrid(GridDimensions{IMax: 2, JMax: 2, KMax: 2})
	g.Uncertainty = nil
	err := c.EncodeDoseGrid(new(bytes.Buffer), g)
	var ioe *IoError
	if !errors.As(err, &ioe) || ioe.Field != "dose uncertainties" {
		t.Errorf("err = %v", err)
	}
}

func TestDoseGridOversizedHeader(t *testing.T) {
	c, _ := testCodec()
	g, err := c.DecodeDoseGrid(bytes.NewReader(le(t, int32(1290), int32(1290), int32(1290), []float32{0, 1})))
	if g != nil {
		t.Error("grid allocated for an oversized header")
	}
	var te TransferErrors
	if !errors.As(err, &te) {
		t.Fatalf("err = %v", err)
	}
	if want := []string{"xbound", "ybound", "zbound", "doses", "dose uncertainties"}; !reflect.DeepEqual(te.Fields(), want) {
		t.Errorf("short fields = %v, want %v", te.Fields(), want)
	}
	if te[0].Got != 2 || te[0].Want != 1291 {
		t.Errorf("xbound: want %d, got %d", te[0].Want, te[0].Got)
	}
}

func TestDoseGridShortWrite(t *testing.T) {
	c, hook := testCodec()
	g := randomDoseGrid(rand.New(rand.NewSource(11)), GridDimensions{IMax: 2, JMax: 2, KMax: 2})
	// Room for the dimensions and the x boundaries only.
	err := c.EncodeDoseGrid(&limitWriter{w: new(bytes.Buffer), n: 12 + 12}, g)
	var te TransferErrors
	if !errors.As(err, &te) {
		t.Fatalf("err = %v", err)
	}
	want := []string{"ybound", "zbound", "doses", "dose uncertainties"}
	if !reflect.DeepEqual(te.Fields(), want) {
		t.Errorf("short fields = %v, want %v", te.Fields(), want)
	}
	wantLog := []string{"Error writing ybound.", "Error writing zbound.",
		"Error writing doses.", "Error writing dose uncertainties."}
	if msgs := logMessages(hook); !reflect.DeepEqual(msgs, wantLog) {
		t.Errorf("log = %v", msgs)
	}
}

func TestDoseGridArrays(t *testing.T) {
	g := NewDoseGrid(GridDimensions{IMax: 3, JMax: 2, KMax: 4})
	for i := range g.Dose {
		g.Dose[i] = float64(i)
	}
	a := g.DoseArray()
	if !reflect.DeepEqual(a.Shape, []int{4, 2, 3}) {
		t.Errorf("shape = %v", a.Shape)
	}
	i, j, k := 2, 1, 3
	if got, want := a.Get(k, j, i), float64(g.Dims.Index(i, j, k)); got != want {
		t.Errorf("dose(%d,%d,%d) = %g, want %g", i, j, k, got, want)
	}
	g.UncertaintyArray().Set(7, 0, 0, 1)
	if g.Uncertainty[1] != 7 {
		t.Error("uncertainty array does not share storage")
	}
}

func TestDoseGridFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "dosio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	c, _ := testCodec()
	g := randomDoseGrid(rand.New(rand.NewSource(12)), GridDimensions{IMax: 3, JMax: 3, KMax: 3})
	path := filepath.Join(dir, "water.3dbindose")
	if err := c.WriteDoseGridFile(path, g); err != nil {
		t.Fatal(err)
	}
	g2, err := c.ReadDoseGridFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g2.Dose, narrowed(g.Dose)) {
		t.Error("dose not reproduced")
	}

	err = c.WriteDoseGridFile(filepath.Join(dir, "nodir", "x.3dbindose"), g)
	var ioe *IoError
	if !errors.As(err, &ioe) || ioe.Kind != OpenFailed || !ioe.Fatal {
		t.Errorf("err = %v, want fatal open failure", err)
	}
}

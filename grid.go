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
	"fmt"
	"math"

	"github.com/spatialmodel/dosio/internal/binio"
)

// MaxVoxels is the largest number of voxels a record may hold. Per-voxel
// arrays are addressed with 32-bit counts on disk.
const MaxVoxels = math.MaxInt32

// GridDimensions holds the number of voxels along each axis.
type GridDimensions struct {
	IMax, JMax, KMax int
}

// Voxels returns the total number of voxels, imax*jmax*kmax.
func (d GridDimensions) Voxels() int {
	return d.IMax * d.JMax * d.KMax
}

// Index returns the flattened index of voxel (i, j, k). X varies fastest.
func (d GridDimensions) Index(i, j, k int) int {
	return (k*d.JMax+j)*d.IMax + i
}

// Validate checks that every count is positive and that the voxel count
// fits in a record.
func (d GridDimensions) Validate() error {
	for _, c := range []struct {
		name string
		v    int
	}{{"imax", d.IMax}, {"jmax", d.JMax}, {"kmax", d.KMax}} {
		if c.v <= 0 {
			return invalidDims(c.name, "%s = %d must be positive", c.name, c.v)
		}
	}
	if int64(d.IMax)*int64(d.JMax)*int64(d.KMax) > MaxVoxels {
		return invalidDims("imax*jmax*kmax", "%d×%d×%d voxels exceeds %d", d.IMax, d.JMax, d.KMax, MaxVoxels)
	}
	return nil
}

func (d GridDimensions) String() string {
	return fmt.Sprintf("%d×%d×%d", d.IMax, d.JMax, d.KMax)
}

// VoxelBoundaries holds the voxel edge coordinates along each axis. Each
// slice has one more element than the voxel count along its axis, and is
// expected to be strictly increasing.
type VoxelBoundaries struct {
	X, Y, Z []float64
}

// NewVoxelBoundaries allocates boundary arrays for d.
func NewVoxelBoundaries(d GridDimensions) VoxelBoundaries {
	return VoxelBoundaries{
		X: make([]float64, d.IMax+1),
		Y: make([]float64, d.JMax+1),
		Z: make([]float64, d.KMax+1),
	}
}

// check verifies that the boundary lengths match d.
func (b VoxelBoundaries) check(d GridDimensions) error {
	for _, c := range []struct {
		name string
		n, n0 int
	}{{"xbound", len(b.X), d.IMax}, {"ybound", len(b.Y), d.JMax}, {"zbound", len(b.Z), d.KMax}} {
		if c.n != c.n0+1 {
			return invalidDims(c.name, "%s has %d edges, want %d", c.name, c.n, c.n0+1)
		}
	}
	return nil
}

// Narrow converts v to single precision, rounding to nearest even. This is
// the conversion applied to every floating-point field stored as float32.
func Narrow(v float64) float32 { return float32(v) }

// Widen converts a stored single-precision value back to double precision.
// Narrow(Widen(f)) == f for every float32 f.
func Widen(v float32) float64 { return float64(v) }

// checkVoxelArray verifies that a per-voxel array supplied for encoding has
// one element per voxel.
func checkVoxelArray(field string, a []float64, n int) error {
	if len(a) != n {
		return invalidDims(field, "%s has %d elements, want %d", field, len(a), n)
	}
	return nil
}

// readDims reads imax, jmax and kmax and validates them. A short read
// leaves the corresponding count at zero, which fails validation.
func readDims(r *binio.Reader) (GridDimensions, error) {
	var d GridDimensions
	imax, _ := r.Int32("imax")
	jmax, _ := r.Int32("jmax")
	kmax, _ := r.Int32("kmax")
	d.IMax, d.JMax, d.KMax = int(imax), int(jmax), int(kmax)
	return d, d.Validate()
}

func writeDims(w *binio.Writer, d GridDimensions) {
	w.Int32("imax", int32(d.IMax))
	w.Int32("jmax", int32(d.JMax))
	w.Int32("kmax", int32(d.KMax))
}

func readBounds(r *binio.Reader, d GridDimensions) VoxelBoundaries {
	b := NewVoxelBoundaries(d)
	r.Float32s("xbound", b.X)
	r.Float32s("ybound", b.Y)
	r.Float32s("zbound", b.Z)
	return b
}

// boundsArrays describes the boundary fields of a grid with dimensions d.
func boundsArrays(d GridDimensions) []binio.Array {
	return []binio.Array{
		{Field: "xbound", N: d.IMax + 1, Size: 4},
		{Field: "ybound", N: d.JMax + 1, Size: 4},
		{Field: "zbound", N: d.KMax + 1, Size: 4},
	}
}

func writeBounds(w *binio.Writer, b VoxelBoundaries) {
	w.Float32s("xbound", b.X)
	w.Float32s("ybound", b.Y)
	w.Float32s("zbound", b.Z)
}

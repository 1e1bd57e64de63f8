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
	"fmt"
	"io"
	"math"

	"github.com/spatialmodel/dosio/internal/binio"
)

const (
	// MediumNameLen is the on-disk width of a medium name.
	MediumNameLen = 24

	// MediumNameStride is the number of output bytes each name character
	// occupies in the expanded media table. The character is in the first
	// byte and the other three are spaces.
	MediumNameStride = 4

	// ExpandedNameLen is the width of one entry of the expanded media table.
	ExpandedNameLen = MediumNameLen * MediumNameStride

	// mediumFillerLen is the byte following each name on disk. It carries
	// no information and is skipped.
	mediumFillerLen = 1
)

// Phantom is a voxelized geometry: the media present, the voxel grid, and
// the medium and relative mass density of every voxel.
type Phantom struct {
	// NMed is the number of media.
	NMed int

	// Media is the expanded media table, ExpandedNameLen bytes per medium.
	Media []byte

	Dims   GridDimensions
	Bounds VoxelBoundaries

	// MediumIndex holds the medium number of each voxel.
	MediumIndex []int16

	// RelativeDensity holds the density of voxel n at index DensityBase+n.
	// Elements below DensityBase belong to the caller and are never written
	// by the decoder.
	RelativeDensity []float64
	DensityBase     int
}

// MediumName returns the name of medium i with trailing padding removed.
func (p *Phantom) MediumName(i int) string {
	if i < 0 || i >= p.NMed {
		return ""
	}
	return string(bytes.TrimRight(CompactMediumName(p.Media[i*ExpandedNameLen:(i+1)*ExpandedNameLen]), " \x00"))
}

// Density returns the relative density of voxel n.
func (p *Phantom) Density(n int) float64 {
	return p.RelativeDensity[p.DensityBase+n]
}

// ExpandMediumName writes the MediumNameLen bytes of name into dst with
// MediumNameStride bytes per character: name[j] goes to dst[j*4] and
// dst[j*4+1:j*4+4] are set to spaces. dst must hold ExpandedNameLen bytes.
func ExpandMediumName(dst, name []byte) {
	for j := 0; j < MediumNameLen; j++ {
		var ch byte = ' '
		if j < len(name) {
			ch = name[j]
		}
		dst[j*MediumNameStride] = ch
		for k := 1; k < MediumNameStride; k++ {
			dst[j*MediumNameStride+k] = ' '
		}
	}
}

// CompactMediumName reverses ExpandMediumName.
func CompactMediumName(expanded []byte) []byte {
	o := make([]byte, MediumNameLen)
	for j := range o {
		o[j] = expanded[j*MediumNameStride]
	}
	return o
}

// DecodePhantom reads a binary phantom:
//
//	nmed(i32) {name[24] filler[1]}×nmed imax,jmax,kmax(i32)
//	xbound[imax+1] ybound[jmax+1] zbound[kmax+1](f32)
//	med[N](i16) density[N](f32)
//
// Densities are widened and stored in density[base:base+N]. If density is
// too short a larger slice is allocated and density is copied into it, so
// values the caller placed below base are kept. A file or in-memory source
// holding less than half of the media table or voxel arrays its header
// declares yields a nil phantom with those fields reported short.
func (c *Codec) DecodePhantom(r io.Reader, density []float64, base int) (*Phantom, error) {
	if base < 0 {
		return nil, invalidDims("density base", "base index %d must not be negative", base)
	}
	br, t := c.newReader(r)

	nmed, _ := br.Int32("nmed")
	if nmed <= 0 || int64(nmed)*ExpandedNameLen > math.MaxInt32 {
		return nil, invalidDims("nmed", "nmed = %d", nmed)
	}
	if !br.Fits(binio.Array{Field: "media", N: int(nmed), Size: MediumNameLen + mediumFillerLen}) {
		return nil, t.errs.errOrNil()
	}
	p := &Phantom{
		NMed:  int(nmed),
		Media: make([]byte, int(nmed)*ExpandedNameLen),
	}
	name := make([]byte, MediumNameLen)
	for i := 0; i < p.NMed; i++ {
		for j := range name {
			name[j] = ' '
		}
		br.Bytes("media", i, name)
		ExpandMediumName(p.Media[i*ExpandedNameLen:], name)
		br.Skip("media filler", i, mediumFillerLen)
	}

	var err error
	if p.Dims, err = readDims(br); err != nil {
		return nil, err
	}
	n := p.Dims.Voxels()
	if !br.Fits(append(boundsArrays(p.Dims),
		binio.Array{Field: "med", N: n, Size: 2},
		binio.Array{Field: "srhor", N: n, Size: 4})...) {
		return nil, t.errs.errOrNil()
	}
	p.Bounds = readBounds(br, p.Dims)

	p.MediumIndex = make([]int16, n)
	br.Int16s("med", p.MediumIndex)

	if len(density) < base+n {
		d := make([]float64, base+n)
		copy(d, density)
		density = d
	}
	p.RelativeDensity = density
	p.DensityBase = base
	br.Float32s("srhor", density[base:base+n])

	return p, t.errs.errOrNil()
}

// ReadPhantomFile reads the binary phantom at path. A phantom that cannot
// be opened yields an OpenFailed error marked Fatal, since a simulation
// cannot run without its geometry; the process is not terminated.
func (c *Codec) ReadPhantomFile(path string, density []float64, base int) (*Phantom, error) {
	f, err := c.openFile(path, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.DecodePhantom(f, density, base)
}

// ReadPhantom reads the phantom at path using DefaultCodec, storing
// densities from index 1 so that index 0 stays available for the caller.
func ReadPhantom(path string) (*Phantom, error) {
	return DefaultCodec.ReadPhantomFile(path, nil, 1)
}

func (p *Phantom) String() string {
	return fmt.Sprintf("phantom: %d media, %s voxels", p.NMed, p.Dims)
}

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

// IntensityMap is a 2D source-intensity map. Values holds NX*NY samples,
// with x varying fastest.
type IntensityMap struct {
	XMin, XMax float64
	NX         int
	YMin, YMax float64
	NY         int
	Values     []float64
}

// At returns the sample in row (y index) row and column (x index) col.
func (m *IntensityMap) At(row, col int) float64 {
	return m.Values[row*m.NX+col]
}

func checkMapDims(nx, ny int) error {
	if nx <= 0 {
		return invalidDims("nx", "nx = %d must be positive", nx)
	}
	if ny <= 0 {
		return invalidDims("ny", "ny = %d must be positive", ny)
	}
	if int64(nx)*int64(ny) > MaxVoxels {
		return invalidDims("nx*ny", "%d×%d samples exceeds %d", nx, ny, MaxVoxels)
	}
	return nil
}

// DecodeIntensityMap reads a binary 2D intensity map:
//
//	xmin,xmax(f32) nx(i32) ymin,ymax(f32) ny(i32) values[nx*ny](f32)
//
// Samples are read one at a time. Each sample that cannot be read is
// logged with its index and left at zero, and reading continues with the
// next sample. A file or in-memory source holding less than half of the
// declared samples yields a nil map and a single short "intensity" field.
func (c *Codec) DecodeIntensityMap(r io.Reader) (*IntensityMap, error) {
	br, t := c.newReader(r)
	m := new(IntensityMap)
	m.XMin, _ = br.Float32("minx", binio.NoIndex)
	m.XMax, _ = br.Float32("maxx", binio.NoIndex)
	nx, _ := br.Int32("nx")
	m.YMin, _ = br.Float32("miny", binio.NoIndex)
	m.YMax, _ = br.Float32("maxy", binio.NoIndex)
	ny, _ := br.Int32("ny")
	m.NX, m.NY = int(nx), int(ny)
	if err := checkMapDims(m.NX, m.NY); err != nil {
		return nil, err
	}
	if !br.Fits(binio.Array{Field: "intensity", N: m.NX * m.NY, Size: 4}) {
		return nil, t.errs.errOrNil()
	}
	m.Values = make([]float64, m.NX*m.NY)
	for i := range m.Values {
		if v, ok := br.Float32("intensity", i); ok {
			m.Values[i] = v
		}
	}
	return m, t.errs.errOrNil()
}

// EncodeIntensityMap writes m in the layout read by DecodeIntensityMap.
func (c *Codec) EncodeIntensityMap(w io.Writer, m *IntensityMap) error {
	if err := checkMapDims(m.NX, m.NY); err != nil {
		return err
	}
	if len(m.Values) != m.NX*m.NY {
		return invalidDims("intensity", "%d samples, want %d", len(m.Values), m.NX*m.NY)
	}
	bw, t := c.newWriter(w)
	bw.Float32("minx", m.XMin)
	bw.Float32("maxx", m.XMax)
	bw.Int32("nx", int32(m.NX))
	bw.Float32("miny", m.YMin)
	bw.Float32("maxy", m.YMax)
	bw.Int32("ny", int32(m.NY))
	bw.Float32s("intensity", m.Values)
	return t.errs.errOrNil()
}

// ReadIntensityMapFile reads the intensity map at path. A map that cannot
// be opened yields an OpenFailed error marked Fatal.
func (c *Codec) ReadIntensityMapFile(path string) (*IntensityMap, error) {
	c.logger().WithField("file", path).Infof("reading binary file of 2D intensities, %s", path)
	f, err := c.openFile(path, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.DecodeIntensityMap(f)
}

// WriteIntensityMapFile creates the file at path and writes m to it.
func (c *Codec) WriteIntensityMapFile(path string, m *IntensityMap) error {
	f, err := c.createFile(path, false)
	if err != nil {
		return err
	}
	return closeFile(f, c.EncodeIntensityMap(f, m))
}

// ReadIntensityMap reads the map at path using DefaultCodec.
func ReadIntensityMap(path string) (*IntensityMap, error) {
	return DefaultCodec.ReadIntensityMapFile(path)
}

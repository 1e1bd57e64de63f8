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

package dosioutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/dosio"
	"github.com/spatialmodel/dosio/cloud"
	"github.com/spatialmodel/dosio/combine"
	"github.com/spatialmodel/dosio/ncf"
	"gonum.org/v1/gonum/floats"
)

// PartialDoseExt is the file extension of partial-dose records.
const PartialDoseExt = ".pardose"

// decodeInput decodes the file at path with fromFile if it is local, or
// downloads it and decodes it with fromReader if it is a blob URL.
func decodeInput(ctx context.Context, path string, fromFile func(string) error, fromReader func(io.Reader) error) error {
	path = os.ExpandEnv(path)
	if !cloud.IsBlob(path) {
		return fromFile(path)
	}
	data, err := cloud.ReadURL(ctx, path, Log)
	if err != nil {
		return err
	}
	return fromReader(bytes.NewReader(data))
}

// encodeOutput writes a file with toFile if path is local, or encodes it
// in memory and uploads it if path is a blob URL.
func encodeOutput(ctx context.Context, path string, toFile func(string) error, toWriter func(io.Writer) error) error {
	path = os.ExpandEnv(path)
	if !cloud.IsBlob(path) {
		return toFile(path)
	}
	var b bytes.Buffer
	if err := toWriter(&b); err != nil {
		return err
	}
	return cloud.WriteURL(ctx, path, b.Bytes())
}

// expandChunks replaces every blob directory in chunks (a URL ending in
// '/') with the partial-dose files it holds.
func expandChunks(ctx context.Context, chunks []string) ([]string, error) {
	var o []string
	for _, c := range chunks {
		c = os.ExpandEnv(c)
		if !cloud.IsBlob(c) || !strings.HasSuffix(c, "/") {
			o = append(o, c)
			continue
		}
		urls, err := cloud.List(ctx, c, PartialDoseExt)
		if err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("dosio: no %s files in %s", PartialDoseExt, c)
		}
		o = append(o, urls...)
	}
	return o, nil
}

// Combine sums the partial-dose chunks and writes the total to output.
// A chunk that can only be partly read stops the combination unless
// allowShort is true.
func Combine(ctx context.Context, c *dosio.Codec, output string, allowShort bool, chunks ...string) error {
	if output == "" {
		return fmt.Errorf(`dosio: you need to specify an output file (for example: --output="total.pardose")`)
	}
	chunks, err := expandChunks(ctx, chunks)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("dosio: there are no chunks to combine")
	}
	cb := combine.New(Log)
	cb.AllowShort = allowShort
	for _, path := range chunks {
		var a *dosio.EnergyAccumulator
		err := decodeInput(ctx, path,
			func(p string) (err error) {
				a, err = c.ReadPartialDoseFile(p)
				return
			},
			func(r io.Reader) (err error) {
				a, err = c.DecodePartialDose(r)
				return
			})
		if err = cb.AddDecoded(path, a, err); err != nil {
			return err
		}
	}
	total := cb.Result()
	if total == nil {
		return fmt.Errorf("dosio: there are no chunks to combine")
	}
	Log.WithField("chunks", cb.Chunks()).Infof("writing combined partial dose to %s", output)
	return encodeOutput(ctx, output,
		func(p string) error { return c.WritePartialDoseFile(p, total) },
		func(w io.Writer) error { return c.EncodePartialDose(w, total) })
}

// Export converts the binary dose grid at input to a NetCDF file at output.
func Export(ctx context.Context, c *dosio.Codec, input, output string) error {
	if output == "" {
		return fmt.Errorf(`dosio: you need to specify an output file (for example: --output="dose.ncf")`)
	}
	output = os.ExpandEnv(output)
	g, err := readDoseGrid(ctx, c, input)
	if err != nil {
		return err
	}
	if !cloud.IsBlob(output) {
		return writeNCF(output, g)
	}
	// NetCDF needs random access, so build the file locally and upload it.
	dir, err := os.MkdirTemp("", "dosio")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	tmp := filepath.Join(dir, "dose.ncf")
	if err = writeNCF(tmp, g); err != nil {
		return err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return err
	}
	return cloud.WriteURL(ctx, output, data)
}

func writeNCF(path string, g *dosio.DoseGrid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dosio: creating NetCDF file: %v", err)
	}
	if err = ncf.Write(f, g); err != nil {
		f.Close()
		return fmt.Errorf("dosio: writing NetCDF file %s: %v", path, err)
	}
	return f.Close()
}

func readDoseGrid(ctx context.Context, c *dosio.Codec, path string) (*dosio.DoseGrid, error) {
	var g *dosio.DoseGrid
	err := decodeInput(ctx, path,
		func(p string) (err error) {
			g, err = c.ReadDoseGridFile(p)
			return
		},
		func(r io.Reader) (err error) {
			g, err = c.DecodeDoseGrid(r)
			return
		})
	return g, err
}

// PartialDoseSummary describes the partial-dose record at path.
func PartialDoseSummary(ctx context.Context, c *dosio.Codec, path string) (string, error) {
	var a *dosio.EnergyAccumulator
	err := decodeInput(ctx, path,
		func(p string) (err error) {
			a, err = c.ReadPartialDoseFile(p)
			return
		},
		func(r io.Reader) (err error) {
			a, err = c.DecodePartialDose(r)
			return
		})
	if a == nil {
		return "", err
	}
	return fmt.Sprintf("partial dose: %s voxels, cpu time %g, total energy %g",
		a.Dims, a.CPUTime, floats.Sum(a.Energy)), err
}

// PhantomSummary describes the phantom at path, storing its densities from
// index base.
func PhantomSummary(ctx context.Context, c *dosio.Codec, path string, base int) (string, error) {
	var p *dosio.Phantom
	err := decodeInput(ctx, path,
		func(f string) (err error) {
			p, err = c.ReadPhantomFile(f, nil, base)
			return
		},
		func(r io.Reader) (err error) {
			p, err = c.DecodePhantom(r, nil, base)
			return
		})
	if p == nil {
		return "", err
	}
	names := make([]string, p.NMed)
	for i := range names {
		names[i] = p.MediumName(i)
	}
	n := p.Dims.Voxels()
	density := p.RelativeDensity[p.DensityBase : p.DensityBase+n]
	return fmt.Sprintf("%s\nmedia: %s\nrelative density: min %g, max %g",
		p, strings.Join(names, ", "), floats.Min(density), floats.Max(density)), err
}

// DoseGridSummary describes the dose grid at path.
func DoseGridSummary(ctx context.Context, c *dosio.Codec, path string) (string, error) {
	g, err := readDoseGrid(ctx, c, path)
	if g == nil {
		return "", err
	}
	imax := floats.MaxIdx(g.Dose)
	i := imax % g.Dims.IMax
	j := imax / g.Dims.IMax % g.Dims.JMax
	k := imax / (g.Dims.IMax * g.Dims.JMax)
	return fmt.Sprintf("dose grid: %s voxels, max dose %g ± %g at voxel (%d, %d, %d)",
		g.Dims, g.Dose[imax], g.Uncertainty[imax], i, j, k), err
}

// IntensityMapSummary describes the 2D intensity map at path.
func IntensityMapSummary(ctx context.Context, c *dosio.Codec, path string) (string, error) {
	var m *dosio.IntensityMap
	err := decodeInput(ctx, path,
		func(p string) (err error) {
			m, err = c.ReadIntensityMapFile(p)
			return
		},
		func(r io.Reader) (err error) {
			m, err = c.DecodeIntensityMap(r)
			return
		})
	if m == nil {
		return "", err
	}
	return fmt.Sprintf("intensity map: %d×%d over x [%g, %g], y [%g, %g], intensity min %g, max %g",
		m.NX, m.NY, m.XMin, m.XMax, m.YMin, m.YMax, floats.Min(m.Values), floats.Max(m.Values)), err
}

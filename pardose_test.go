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
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// testCodec returns a little-endian codec whose log output is captured.
func testCodec() (*Codec, *test.Hook) {
	log, hook := test.NewNullLogger()
	return &Codec{ByteOrder: binary.LittleEndian, Log: log}, hook
}

// logMessages returns the messages of every captured log entry.
func logMessages(hook *test.Hook) []string {
	var o []string
	for _, e := range hook.Entries {
		o = append(o, e.Message)
	}
	return o
}

// le writes the given values to a buffer in little-endian order.
func le(t *testing.T, vals ...interface{}) []byte {
	b := new(bytes.Buffer)
	for _, v := range vals {
		if err := binary.Write(b, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	return b.Bytes()
}

func narrowed(v []float64) []float64 {
	o := make([]float64, len(v))
	for i, x := range v {
		o[i] = Widen(Narrow(x))
	}
	return o
}

func randomAccumulator(rnd *rand.Rand, d GridDimensions) *EnergyAccumulator {
	a := NewEnergyAccumulator(d)
	a.CPUTime = rnd.Float64() * 1000
	for i := range a.Energy {
		a.Energy[i] = rnd.NormFloat64() * 1e-3
		a.Energy2[i] = a.Energy[i] * a.Energy[i] * rnd.Float64() * 10
	}
	return a
}

func TestPartialDoseRoundTrip(t *testing.T) {
	c, hook := testCodec()
	rnd := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		d := GridDimensions{IMax: rnd.Intn(8) + 1, JMax: rnd.Intn(8) + 1, KMax: rnd.Intn(8) + 1}
		a := randomAccumulator(rnd, d)

		buf := new(bytes.Buffer)
		if err := c.EncodePartialDose(buf, a); err != nil {
			t.Fatal(err)
		}
		if want := 8 + 12 + 2*4*d.Voxels(); buf.Len() != want {
			t.Errorf("%v: encoded %d bytes, want %d", d, buf.Len(), want)
		}
		b, err := c.DecodePartialDose(buf)
		if err != nil {
			t.Fatal(err)
		}
		if b.Dims != d {
			t.Errorf("dims %v != %v", b.Dims, d)
		}
		if b.CPUTime != a.CPUTime {
			t.Errorf("cpu time %g != %g", b.CPUTime, a.CPUTime)
		}
		if !reflect.DeepEqual(b.Energy, narrowed(a.Energy)) {
			t.Errorf("%v: energy not reproduced within single precision", d)
		}
		if !reflect.DeepEqual(b.Energy2, narrowed(a.Energy2)) {
			t.Errorf("%v: energy2 not reproduced within single precision", d)
		}
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected log output: %v", logMessages(hook))
	}
}

func TestPartialDoseLayout(t *testing.T) {
	c, _ := testCodec()
	a := &EnergyAccumulator{
		CPUTime: 12.5,
		Dims:    GridDimensions{IMax: 2, JMax: 1, KMax: 1},
		Energy:  []float64{1, 0.25},
		Energy2: []float64{1, 0.0625},
	}
	buf := new(bytes.Buffer)
	if err := c.EncodePartialDose(buf, a); err != nil {
		t.Fatal(err)
	}
	want := le(t, float64(12.5), int32(2), int32(1), int32(1),
		[]float32{1, 0.25}, []float32{1, 0.0625})
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("layout:\n%x\nwant\n%x", buf.Bytes(), want)
	}
}

func TestPartialDoseShortRead(t *testing.T) {
	c, hook := testCodec()
	d := GridDimensions{IMax: 3, JMax: 2, KMax: 2}
	a := randomAccumulator(rand.New(rand.NewSource(2)), d)
	buf := new(bytes.Buffer)
	if err := c.EncodePartialDose(buf, a); err != nil {
		t.Fatal(err)
	}
	// Drop the last energy2 element.
	truncated := buf.Bytes()[:buf.Len()-4]

	b, err := c.DecodePartialDose(bytes.NewReader(truncated))
	if !errors.Is(err, ErrShortTransfer) {
		t.Fatalf("err = %v, want short transfer", err)
	}
	var te TransferErrors
	if !errors.As(err, &te) {
		t.Fatalf("err is %T, want TransferErrors", err)
	}
	if !reflect.DeepEqual(te.Fields(), []string{"endep2"}) {
		t.Errorf("short fields = %v", te.Fields())
	}
	if te[0].Want != d.Voxels() || te[0].Got != d.Voxels()-1 {
		t.Errorf("transferred %d of %d", te[0].Got, te[0].Want)
	}
	if b == nil {
		t.Fatal("no record returned")
	}
	if b.Dims != d {
		t.Errorf("dims %v != %v", b.Dims, d)
	}
	if !reflect.DeepEqual(b.Energy, narrowed(a.Energy)) {
		t.Error("energy not fully populated")
	}
	n := d.Voxels()
	if !reflect.DeepEqual(b.Energy2[:n-1], narrowed(a.Energy2)[:n-1]) {
		t.Error("energy2 prefix not populated")
	}
	if msgs := logMessages(hook); len(msgs) != 1 || msgs[0] != "Error reading endep2." {
		t.Errorf("log = %v", msgs)
	}
}

func TestPartialDoseTruncatedHeader(t *testing.T) {
	c, _ := testCodec()
	_, err := c.DecodePartialDose(bytes.NewReader(le(t, float64(1), int32(4))))
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("err = %v, want invalid dimensions", err)
	}
}

func TestPartialDoseOversizedHeader(t *testing.T) {
	dir, err := os.MkdirTemp("", "dosio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	// A 20-byte file declaring about two billion voxels.
	path := filepath.Join(dir, "huge.pardose")
	if err := os.WriteFile(path, le(t, float64(1), int32(1290), int32(1290), int32(1290)), 0644); err != nil {
		t.Fatal(err)
	}
	c, hook := testCodec()
	a, err := c.ReadPartialDoseFile(path)
	if a != nil {
		t.Error("record allocated for an oversized header")
	}
	var te TransferErrors
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransferErrors", err)
	}
	if !reflect.DeepEqual(te.Fields(), []string{"endep", "endep2"}) {
		t.Errorf("short fields = %v", te.Fields())
	}
	if te[0].Want != 1290*1290*1290 || te[0].Got != 0 || te[0].Path != path {
		t.Errorf("short transfer = %+v", te[0])
	}
	if msgs := logMessages(hook); !reflect.DeepEqual(msgs, []string{"Error reading endep.", "Error reading endep2."}) {
		t.Errorf("log = %v", msgs)
	}
}

func TestPartialDoseInvalidDimensions(t *testing.T) {
	c, _ := testCodec()
	for _, tt := range []struct {
		name string
		a    *EnergyAccumulator
	}{
		{
			name: "zero",
			a:    &EnergyAccumulator{Dims: GridDimensions{IMax: 0, JMax: 1, KMax: 1}},
		},
		{
			name: "negative",
			a:    &EnergyAccumulator{Dims: GridDimensions{IMax: 2, JMax: -1, KMax: 1}},
		},
		{
			name: "length",
			a: &EnergyAccumulator{
				Dims:    GridDimensions{IMax: 2, JMax: 1, KMax: 1},
				Energy:  []float64{1, 2},
				Energy2: []float64{1},
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			err := c.EncodePartialDose(buf, tt.a)
			if !errors.Is(err, ErrInvalidDimensions) {
				t.Errorf("err = %v, want invalid dimensions", err)
			}
			if buf.Len() != 0 {
				t.Errorf("wrote %d bytes", buf.Len())
			}
		})
	}
	_, err := c.DecodePartialDose(bytes.NewReader(le(t, float64(1), int32(2), int32(0), int32(2))))
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("decode: err = %v, want invalid dimensions", err)
	}
}

// limitWriter accepts n bytes and then fails every write.
type limitWriter struct {
	w io.Writer
	n int
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if len(p) <= l.n {
		l.n -= len(p)
		return l.w.Write(p)
	}
	n, _ := l.w.Write(p[:l.n])
	l.n = 0
	return n, errors.New("disk full")
}

func TestPartialDoseShortWrite(t *testing.T) {
	c, hook := testCodec()
	a := randomAccumulator(rand.New(rand.NewSource(3)), GridDimensions{IMax: 2, JMax: 2, KMax: 2})
	buf := new(bytes.Buffer)
	// Room for the header and five energy elements.
	err := c.EncodePartialDose(&limitWriter{w: buf, n: 20 + 5*4}, a)
	var te TransferErrors
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransferErrors", err)
	}
	if !reflect.DeepEqual(te.Fields(), []string{"endep", "endep2"}) {
		t.Errorf("short fields = %v", te.Fields())
	}
	if te[0].Got != 5 || te[1].Got != 0 {
		t.Errorf("transferred %d and %d elements", te[0].Got, te[1].Got)
	}
	want := []string{"Error writing endep.", "Error writing endep2."}
	if msgs := logMessages(hook); !reflect.DeepEqual(msgs, want) {
		t.Errorf("log = %v, want %v", msgs, want)
	}
}

func TestPartialDoseFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "dosio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	log, hook := test.NewNullLogger()
	c := NewCodec(log)
	a := randomAccumulator(rand.New(rand.NewSource(4)), GridDimensions{IMax: 4, JMax: 3, KMax: 2})
	path := filepath.Join(dir, "chunk_w1.pardose")
	if err := c.WritePartialDoseFile(path, a); err != nil {
		t.Fatal(err)
	}
	b, err := c.ReadPartialDoseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Dims != a.Dims || !reflect.DeepEqual(b.Energy, narrowed(a.Energy)) {
		t.Error("file round trip failed")
	}

	_, err = c.ReadPartialDoseFile(filepath.Join(dir, "missing.pardose"))
	var ioe *IoError
	if !errors.As(err, &ioe) || ioe.Kind != OpenFailed {
		t.Fatalf("err = %v, want open failure", err)
	}
	if ioe.Fatal {
		t.Error("a missing partial-dose file should not be fatal")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("open failure should wrap the os error")
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.ErrorLevel || !strings.HasPrefix(e.Message, "Cannot open file ") {
		t.Errorf("log = %v", logMessages(hook))
	}

	if err := c.WritePartialDoseFile(filepath.Join(dir, "nodir", "x.pardose"), a); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("create: err = %v, want open failure", err)
	}
}

func TestNarrowIdempotent(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	vals := []float64{0, 1, -1, 0.1, 1.0 / 3, math.Pi, 1e-45, 3.4e38, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1)}
	for i := 0; i < 1000; i++ {
		vals = append(vals, rnd.NormFloat64()*math.Pow(10, float64(rnd.Intn(60)-30)))
	}
	for _, v := range vals {
		once := Narrow(v)
		twice := Narrow(Widen(Narrow(Widen(once))))
		if math.Float32bits(once) != math.Float32bits(twice) {
			t.Errorf("%g: %x != %x", v, math.Float32bits(once), math.Float32bits(twice))
		}
	}
	// Ties round to even: 1 + 2^-24 lies halfway between 1 and the next float32.
	if got := Narrow(1 + math.Pow(2, -24)); got != 1 {
		t.Errorf("tie rounded to %v", got)
	}
}

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
along with dosio.  If not, see <http://www.gnu.org/licenses/>.*/

package hash

import "testing"

type record struct {
	T float64
	E []float64
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(&record{T: 1, E: []float64{1, 2}})
	b := Fingerprint(&record{T: 1, E: []float64{1, 2}})
	c := Fingerprint(&record{T: 1, E: []float64{1, 3}})
	if a != b {
		t.Errorf("equal records: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("different records share fingerprint %s", a)
	}
	if len(a) != 32 {
		t.Errorf("fingerprint %q is not 128 bits", a)
	}
}

func TestFingerprintFallback(t *testing.T) {
	// gob cannot encode a struct without exported fields, so spew is used.
	type hidden struct {
		n int
	}
	a := Fingerprint(hidden{n: 1})
	b := Fingerprint(hidden{n: 2})
	if a == b || a == "" {
		t.Errorf("fallback fingerprints %q, %q", a, b)
	}
}

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
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Manifest lists the partial-dose chunks of one run, for example:
//
//	Output = "${RUN}/total.pardose"
//	Chunks = ["${RUN}/w1.pardose", "${RUN}/w2.pardose"]
//
// Environment variables in the paths are expanded.
type Manifest struct {
	Output string
	Chunks []string
}

// ReadManifest reads the TOML manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("dosio: opening manifest: %v", err)
	}
	defer f.Close()
	var m Manifest
	if _, err = toml.DecodeReader(f, &m); err != nil {
		return nil, fmt.Errorf("dosio: reading manifest %s: %v", path, err)
	}
	m.Output = os.ExpandEnv(m.Output)
	m.Chunks = expandStringSlice(m.Chunks)
	return &m, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

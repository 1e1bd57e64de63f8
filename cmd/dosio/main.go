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

// Command dosio is a command-line interface for combining, inspecting, and
// converting dose calculation files.
package main

import (
	"os"

	"github.com/spatialmodel/dosio/dosioutil"
)

func main() {
	if err := dosioutil.Root.Execute(); err != nil {
		os.Exit(1)
	}
}

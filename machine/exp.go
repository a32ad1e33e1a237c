// Copyright 2020 MPI-SWS and Valentin Wuestholz

// This file is part of Spelt.
//
// Spelt is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Spelt is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Spelt.  If not, see <https://www.gnu.org/licenses/>.

package machine

import "fmt"

// Position locates an expression in its source program.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Exp is an expression of the analyzed language.
// The machine never looks inside expressions; it only needs a source
// position (for addresses and error reports) and a printable form
// (for state descriptors and graph labels).
type Exp interface {
	Pos() Position
	String() string
}

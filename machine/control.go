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

// Control is where the machine is looking: evaluating an expression,
// returning a value to the topmost frame, or stuck on an error.
type Control interface {
	control()
	String() string
}

// ControlEval is about to evaluate an expression in an environment.
type ControlEval struct {
	Exp Exp
	Env Env
}

func (ControlEval) control() {}

func (c ControlEval) String() string {
	return fmt.Sprintf("ev(%v)", c.Exp)
}

// ControlKont returns a value to the topmost frame.
type ControlKont struct {
	V Value
}

func (ControlKont) control() {}

func (c ControlKont) String() string {
	return fmt.Sprintf("ko(%v)", c.V)
}

// ControlError is a terminal control: the branch reached a semantic
// error and has no successors.
type ControlError struct {
	Err SemanticError
}

func (ControlError) control() {}

func (c ControlError) String() string {
	return fmt.Sprintf("err(%v)", c.Err)
}

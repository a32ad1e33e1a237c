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

// Value is an element of an abstract value lattice. Values are opaque
// to the machine; every operation on them goes through the Lattice
// that produced them.
type Value interface {
	String() string
}

// Closure pairs a lambda expression with its definition environment.
type Closure struct {
	Lam Exp
	Env Env
}

func (c Closure) String() string {
	return fmt.Sprintf("#<closure %v>", c.Lam.Pos())
}

// key is the set key for closures: the lambda position plus the
// environment descriptor.
func (c Closure) key() string {
	return fmt.Sprintf("%v%v", c.Lam.Pos(), c.Env)
}

// Behavior is an instantiated actor behavior: the actor literal plus
// an environment in which its state parameters are already bound.
type Behavior struct {
	Act Exp
	Env Env
}

func (b Behavior) String() string {
	return fmt.Sprintf("#<behavior %v>", b.Act.Pos())
}

func (b Behavior) key() string {
	return fmt.Sprintf("%v%v", b.Act.Pos(), b.Env)
}

// TID identifies an analyzed thread. Thread identifiers are allocated
// from the spawn site and context, so recursive spawns at the same
// site collapse into one abstract thread.
type TID struct {
	Site string
	Ctx  string
}

func (t TID) String() string {
	return fmt.Sprintf("tid(%v@%v)", t.Site, t.Ctx)
}

// MainTID is the thread the program starts on.
var MainTID = TID{Site: "main"}

// PID identifies an analyzed actor, bounded per creation site.
type PID struct {
	Site string
	Ctx  string
	Idx  int
}

func (p PID) String() string {
	return fmt.Sprintf("pid(%v@%v#%v)", p.Site, p.Ctx, p.Idx)
}

// Lattice is an abstract value domain: a join-semilattice with
// injections for every kind of denotable value, operator
// interpretations, and content extractors. Operators never fail as Go
// errors; an inapplicable operation yields an error-tagged value.
type Lattice interface {
	Name() string
	// Counting reports whether the lattice supports abstract counting
	// (distinguishing one allocation from many at an address).
	Counting() bool

	Bottom() Value
	Join(x, y Value) Value
	Subsumes(x, y Value) bool
	IsBottom(v Value) bool

	// IsTrue and IsFalse may both hold for the same element: the value
	// may be true and may be false.
	IsTrue(v Value) bool
	IsFalse(v Value) bool
	IsError(v Value) bool

	InjectInt(n int64) Value
	InjectFloat(f float64) Value
	InjectBool(b bool) Value
	InjectString(s string) Value
	InjectSymbol(s string) Value
	InjectChar(r rune) Value
	InjectNil() Value
	InjectClosure(lam Exp, env Env) Value
	InjectPrimitive(name string) Value
	InjectTid(tid TID) Value
	InjectPid(pid PID) Value
	InjectLock(a Address) Value
	InjectBehavior(b Behavior) Value
	InjectCons(car, cdr Address) Value
	InjectVector(cell Address, size Value) Value
	InjectError(err SemanticError) Value

	UnaryOp(op UnaryOperator, v Value) Value
	BinaryOp(op BinaryOperator, x, y Value) Value

	Closures(v Value) []Closure
	Primitives(v Value) []string
	Tids(v Value) []TID
	Pids(v Value) []PID
	Locks(v Value) []Address
	Behaviors(v Value) []Behavior
	Car(v Value) []Address
	Cdr(v Value) []Address
	Vectors(v Value) []Address
	VectorSize(v Value) Value
	Errors(v Value) []SemanticError
	// WithoutErrors strips the error leaves, leaving the proper value
	// content. The Scheme primitives split operator results into value
	// successors and error successors with it.
	WithoutErrors(v Value) Value
}

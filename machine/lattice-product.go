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

// productLattice combines two lattices component-wise. A product value
// abstracts a concrete value through both components at once, so
// may-predicates need both components to agree and extractors may use
// either; the implementation intersects predicates and unions
// extractor results, both of which over-approximate the componentwise
// intersection of concretizations.
type productLattice struct {
	l1 Lattice
	l2 Lattice
}

// NewProductLattice builds a lattice from two lattices component-wise.
func NewProductLattice(l1, l2 Lattice) Lattice {
	return &productLattice{l1: l1, l2: l2}
}

type productValue struct {
	v1 Value
	v2 Value
}

func (v productValue) String() string {
	return fmt.Sprintf("(%v,%v)", v.v1, v.v2)
}

func (l *productLattice) split(v Value) (Value, Value) {
	if pv, ok := v.(productValue); ok {
		return pv.v1, pv.v2
	}
	return l.l1.Bottom(), l.l2.Bottom()
}

func (l *productLattice) Name() string {
	return fmt.Sprintf("Product(%v,%v)", l.l1.Name(), l.l2.Name())
}

// Counting is true iff both components count.
func (l *productLattice) Counting() bool {
	return l.l1.Counting() && l.l2.Counting()
}

func (l *productLattice) Bottom() Value {
	return productValue{v1: l.l1.Bottom(), v2: l.l2.Bottom()}
}

func (l *productLattice) Join(x, y Value) Value {
	x1, x2 := l.split(x)
	y1, y2 := l.split(y)
	return productValue{v1: l.l1.Join(x1, y1), v2: l.l2.Join(x2, y2)}
}

func (l *productLattice) Subsumes(x, y Value) bool {
	x1, x2 := l.split(x)
	y1, y2 := l.split(y)
	return l.l1.Subsumes(x1, y1) && l.l2.Subsumes(x2, y2)
}

func (l *productLattice) IsBottom(v Value) bool {
	v1, v2 := l.split(v)
	return l.l1.IsBottom(v1) || l.l2.IsBottom(v2)
}

func (l *productLattice) IsTrue(v Value) bool {
	v1, v2 := l.split(v)
	return l.l1.IsTrue(v1) && l.l2.IsTrue(v2)
}

func (l *productLattice) IsFalse(v Value) bool {
	v1, v2 := l.split(v)
	return l.l1.IsFalse(v1) && l.l2.IsFalse(v2)
}

func (l *productLattice) IsError(v Value) bool {
	v1, v2 := l.split(v)
	return l.l1.IsError(v1) || l.l2.IsError(v2)
}

func (l *productLattice) InjectInt(n int64) Value {
	return productValue{v1: l.l1.InjectInt(n), v2: l.l2.InjectInt(n)}
}

func (l *productLattice) InjectFloat(f float64) Value {
	return productValue{v1: l.l1.InjectFloat(f), v2: l.l2.InjectFloat(f)}
}

func (l *productLattice) InjectBool(b bool) Value {
	return productValue{v1: l.l1.InjectBool(b), v2: l.l2.InjectBool(b)}
}

func (l *productLattice) InjectString(s string) Value {
	return productValue{v1: l.l1.InjectString(s), v2: l.l2.InjectString(s)}
}

func (l *productLattice) InjectSymbol(s string) Value {
	return productValue{v1: l.l1.InjectSymbol(s), v2: l.l2.InjectSymbol(s)}
}

func (l *productLattice) InjectChar(r rune) Value {
	return productValue{v1: l.l1.InjectChar(r), v2: l.l2.InjectChar(r)}
}

func (l *productLattice) InjectNil() Value {
	return productValue{v1: l.l1.InjectNil(), v2: l.l2.InjectNil()}
}

func (l *productLattice) InjectClosure(lam Exp, env Env) Value {
	return productValue{v1: l.l1.InjectClosure(lam, env), v2: l.l2.InjectClosure(lam, env)}
}

func (l *productLattice) InjectPrimitive(name string) Value {
	return productValue{v1: l.l1.InjectPrimitive(name), v2: l.l2.InjectPrimitive(name)}
}

func (l *productLattice) InjectTid(tid TID) Value {
	return productValue{v1: l.l1.InjectTid(tid), v2: l.l2.InjectTid(tid)}
}

func (l *productLattice) InjectPid(pid PID) Value {
	return productValue{v1: l.l1.InjectPid(pid), v2: l.l2.InjectPid(pid)}
}

func (l *productLattice) InjectLock(a Address) Value {
	return productValue{v1: l.l1.InjectLock(a), v2: l.l2.InjectLock(a)}
}

func (l *productLattice) InjectBehavior(b Behavior) Value {
	return productValue{v1: l.l1.InjectBehavior(b), v2: l.l2.InjectBehavior(b)}
}

func (l *productLattice) InjectCons(car, cdr Address) Value {
	return productValue{v1: l.l1.InjectCons(car, cdr), v2: l.l2.InjectCons(car, cdr)}
}

func (l *productLattice) InjectVector(cell Address, size Value) Value {
	s1, s2 := l.split(size)
	return productValue{v1: l.l1.InjectVector(cell, s1), v2: l.l2.InjectVector(cell, s2)}
}

func (l *productLattice) InjectError(err SemanticError) Value {
	return productValue{v1: l.l1.InjectError(err), v2: l.l2.InjectError(err)}
}

func (l *productLattice) UnaryOp(op UnaryOperator, v Value) Value {
	v1, v2 := l.split(v)
	return productValue{v1: l.l1.UnaryOp(op, v1), v2: l.l2.UnaryOp(op, v2)}
}

func (l *productLattice) BinaryOp(op BinaryOperator, x, y Value) Value {
	x1, x2 := l.split(x)
	y1, y2 := l.split(y)
	return productValue{v1: l.l1.BinaryOp(op, x1, y1), v2: l.l2.BinaryOp(op, x2, y2)}
}

func (l *productLattice) Closures(v Value) []Closure {
	v1, v2 := l.split(v)
	return dedupClosures(append(l.l1.Closures(v1), l.l2.Closures(v2)...))
}

func (l *productLattice) Primitives(v Value) []string {
	v1, v2 := l.split(v)
	return dedupStrings(append(l.l1.Primitives(v1), l.l2.Primitives(v2)...))
}

func (l *productLattice) Tids(v Value) []TID {
	v1, v2 := l.split(v)
	seen := map[TID]bool{}
	var res []TID
	for _, t := range append(l.l1.Tids(v1), l.l2.Tids(v2)...) {
		if !seen[t] {
			seen[t] = true
			res = append(res, t)
		}
	}
	return res
}

func (l *productLattice) Pids(v Value) []PID {
	v1, v2 := l.split(v)
	seen := map[PID]bool{}
	var res []PID
	for _, p := range append(l.l1.Pids(v1), l.l2.Pids(v2)...) {
		if !seen[p] {
			seen[p] = true
			res = append(res, p)
		}
	}
	return res
}

func (l *productLattice) Locks(v Value) []Address {
	v1, v2 := l.split(v)
	return dedupAddrs(append(l.l1.Locks(v1), l.l2.Locks(v2)...))
}

func (l *productLattice) Behaviors(v Value) []Behavior {
	v1, v2 := l.split(v)
	seen := map[string]bool{}
	var res []Behavior
	for _, b := range append(l.l1.Behaviors(v1), l.l2.Behaviors(v2)...) {
		if !seen[b.key()] {
			seen[b.key()] = true
			res = append(res, b)
		}
	}
	return res
}

func (l *productLattice) Car(v Value) []Address {
	v1, v2 := l.split(v)
	return dedupAddrs(append(l.l1.Car(v1), l.l2.Car(v2)...))
}

func (l *productLattice) Cdr(v Value) []Address {
	v1, v2 := l.split(v)
	return dedupAddrs(append(l.l1.Cdr(v1), l.l2.Cdr(v2)...))
}

func (l *productLattice) Vectors(v Value) []Address {
	v1, v2 := l.split(v)
	return dedupAddrs(append(l.l1.Vectors(v1), l.l2.Vectors(v2)...))
}

func (l *productLattice) VectorSize(v Value) Value {
	v1, v2 := l.split(v)
	return productValue{v1: l.l1.VectorSize(v1), v2: l.l2.VectorSize(v2)}
}

func (l *productLattice) Errors(v Value) []SemanticError {
	v1, v2 := l.split(v)
	seen := map[string]bool{}
	var res []SemanticError
	for _, e := range append(l.l1.Errors(v1), l.l2.Errors(v2)...) {
		if !seen[e.String()] {
			seen[e.String()] = true
			res = append(res, e)
		}
	}
	return res
}

func (l *productLattice) WithoutErrors(v Value) Value {
	v1, v2 := l.split(v)
	return productValue{v1: l.l1.WithoutErrors(v1), v2: l.l2.WithoutErrors(v2)}
}

func dedupClosures(cs []Closure) []Closure {
	seen := map[string]bool{}
	var res []Closure
	for _, c := range cs {
		if !seen[c.key()] {
			seen[c.key()] = true
			res = append(res, c)
		}
	}
	return res
}

func dedupStrings(ss []string) []string {
	seen := map[string]bool{}
	var res []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			res = append(res, s)
		}
	}
	return res
}

func dedupAddrs(as []Address) []Address {
	seen := map[Address]bool{}
	var res []Address
	for _, a := range as {
		if !seen[a] {
			seen[a] = true
			res = append(res, a)
		}
	}
	return res
}

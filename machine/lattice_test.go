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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testExp is a minimal expression for kernel-level tests.
type testExp struct {
	name string
	line int
}

func (e testExp) Pos() Position {
	return Position{Line: e.line, Col: 1}
}

func (e testExp) String() string {
	return e.name
}

func TestConcreteLatticeKeepsScalarsPrecise(t *testing.T) {
	lat := NewConcreteLattice(false)
	five := lat.InjectInt(5)
	seven := lat.InjectInt(7)

	sum := lat.BinaryOp(OpPlus, five, seven)
	assert.True(t, lat.Subsumes(sum, lat.InjectInt(12)))
	assert.False(t, lat.Subsumes(sum, lat.InjectInt(13)))

	diff := lat.BinaryOp(OpMinus, lat.InjectInt(10), lat.InjectInt(4))
	assert.True(t, lat.Subsumes(diff, lat.InjectInt(6)))
	assert.False(t, lat.Subsumes(diff, lat.InjectInt(14)), "minus must subtract, not add")
}

func TestTypeSetLatticeWidensScalars(t *testing.T) {
	lat := NewTypeSetLattice(false)
	five := lat.InjectInt(5)

	// Injection already loses the integer, keeping only the type.
	assert.True(t, lat.Subsumes(five, lat.InjectInt(123456)))
	assert.False(t, lat.Subsumes(five, lat.InjectBool(true)))
	assert.False(t, lat.Subsumes(five, lat.InjectFloat(5.0)))
}

func TestBoundedIntLattice(t *testing.T) {
	lat := NewBoundedIntLattice(100, false)
	small := lat.InjectInt(42)
	big := lat.InjectInt(1000)

	assert.False(t, lat.Subsumes(small, lat.InjectInt(43)))
	assert.True(t, lat.Subsumes(small, lat.InjectInt(42)))
	// Beyond the bound everything collapses to the integer top.
	assert.True(t, lat.Subsumes(big, lat.InjectInt(2000)))
	assert.True(t, lat.Subsumes(big, small))
}

func TestJoinIsUpperBound(t *testing.T) {
	for _, lat := range []Lattice{
		NewConcreteLattice(false),
		NewTypeSetLattice(false),
		NewBoundedIntLattice(10, false),
	} {
		x := lat.InjectInt(1)
		y := lat.InjectBool(true)
		j := lat.Join(x, y)
		assert.True(t, lat.Subsumes(j, x), lat.Name())
		assert.True(t, lat.Subsumes(j, y), lat.Name())
		assert.True(t, lat.Subsumes(j, lat.Bottom()), lat.Name())
		assert.True(t, lat.Subsumes(x, lat.Bottom()), lat.Name())
		assert.True(t, lat.IsBottom(lat.Bottom()), lat.Name())
	}
}

func TestTruthProjections(t *testing.T) {
	lat := NewTypeSetLattice(false)

	tv := lat.InjectBool(true)
	assert.True(t, lat.IsTrue(tv))
	assert.False(t, lat.IsFalse(tv))

	fv := lat.InjectBool(false)
	assert.False(t, lat.IsTrue(fv))
	assert.True(t, lat.IsFalse(fv))

	// The join may be true and may be false at once.
	both := lat.Join(tv, fv)
	assert.True(t, lat.IsTrue(both))
	assert.True(t, lat.IsFalse(both))

	// Non-boolean values are truthy.
	assert.True(t, lat.IsTrue(lat.InjectInt(0)))
	assert.True(t, lat.IsTrue(lat.InjectNil()))
}

func TestOperatorsNeverReturnGoErrors(t *testing.T) {
	lat := NewConcreteLattice(false)
	res := lat.BinaryOp(OpPlus, lat.InjectBool(true), lat.InjectString("x"))
	require.True(t, lat.IsError(res))
	errs := lat.Errors(res)
	require.NotEmpty(t, errs)
	assert.Equal(t, OperatorNotApplicable, errs[0].Kind)
	assert.True(t, lat.IsBottom(lat.WithoutErrors(res)))
}

func TestDivisionByZeroIsTagged(t *testing.T) {
	lat := NewConcreteLattice(false)
	res := lat.BinaryOp(OpDiv, lat.InjectInt(4), lat.InjectInt(0))
	assert.True(t, lat.IsError(res))

	mixed := lat.BinaryOp(OpDiv, lat.InjectInt(4), lat.Join(lat.InjectInt(0), lat.InjectInt(2)))
	// May divide and may fail.
	assert.True(t, lat.IsError(mixed))
	assert.True(t, lat.Subsumes(lat.WithoutErrors(mixed), lat.InjectInt(2)))
}

func TestComparisons(t *testing.T) {
	lat := NewConcreteLattice(false)
	lt := lat.BinaryOp(OpLt, lat.InjectInt(1), lat.InjectInt(2))
	assert.True(t, lat.IsTrue(lt))
	assert.False(t, lat.IsFalse(lt))

	joined := lat.Join(lat.InjectInt(1), lat.InjectInt(3))
	maybe := lat.BinaryOp(OpLt, joined, lat.InjectInt(2))
	assert.True(t, lat.IsTrue(maybe))
	assert.True(t, lat.IsFalse(maybe))
}

func TestEqOp(t *testing.T) {
	lat := NewConcreteLattice(false)
	same := lat.BinaryOp(OpEq, lat.InjectSymbol("a"), lat.InjectSymbol("a"))
	assert.True(t, lat.IsTrue(same))
	assert.False(t, lat.IsFalse(same))

	diff := lat.BinaryOp(OpEq, lat.InjectSymbol("a"), lat.InjectSymbol("b"))
	assert.False(t, lat.IsTrue(diff))
	assert.True(t, lat.IsFalse(diff))
}

func TestClosureAndPrimitiveExtractors(t *testing.T) {
	lat := NewTypeSetLattice(false)
	lam := testExp{name: "(lambda (x) x)", line: 3}
	env := EmptyEnv()

	v := lat.Join(lat.InjectClosure(lam, env), lat.InjectPrimitive("+"))
	clos := lat.Closures(v)
	require.Len(t, clos, 1)
	assert.Equal(t, lam.String(), clos[0].Lam.String())
	assert.Equal(t, []string{"+"}, lat.Primitives(v))
}

func TestPairExtractors(t *testing.T) {
	lat := NewTypeSetLattice(false)
	car := CellAddress{Pos: Position{Line: 1}, Tag: "car"}
	cdr := CellAddress{Pos: Position{Line: 1}, Tag: "cdr"}
	v := lat.InjectCons(car, cdr)
	assert.Equal(t, []Address{Address(car)}, lat.Car(v))
	assert.Equal(t, []Address{Address(cdr)}, lat.Cdr(v))
	assert.True(t, lat.IsTrue(lat.UnaryOp(OpIsPair, v)))
	assert.False(t, lat.IsFalse(lat.UnaryOp(OpIsPair, v)))
}

func TestProductLattice(t *testing.T) {
	p := NewProductLattice(NewTypeSetLattice(true), NewConcreteLattice(true))
	assert.True(t, p.Counting())

	notCounting := NewProductLattice(NewTypeSetLattice(true), NewConcreteLattice(false))
	assert.False(t, notCounting.Counting())

	x := p.InjectInt(4)
	y := p.InjectInt(5)
	j := p.Join(x, y)
	assert.True(t, p.Subsumes(j, x))
	assert.True(t, p.Subsumes(j, y))
	// The concrete component still separates 4 from 6.
	assert.False(t, p.Subsumes(j, p.InjectInt(6)))

	sum := p.BinaryOp(OpPlus, x, y)
	assert.True(t, p.Subsumes(sum, p.InjectInt(9)))

	assert.True(t, p.IsTrue(p.InjectBool(true)))
	assert.False(t, p.IsTrue(p.InjectBool(false)))
}

func TestAbstractCountingFlag(t *testing.T) {
	assert.True(t, NewConcreteLattice(true).Counting())
	assert.False(t, NewConcreteLattice(false).Counting())
	assert.True(t, NewTypeSetLattice(true).Counting())
}

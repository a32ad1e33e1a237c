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
)

// Equal allocation coordinates must give equal addresses, distinct
// coordinates distinct addresses.
func TestClassicalAllocationRoundTrip(t *testing.T) {
	lat := NewTypeSetLattice(false)
	alloc := ClassicalAllocator{}
	t0 := KCFA{K: 1}.Zero()
	t1 := t0.TickCall(testExp{name: "(f x)", line: 4})

	x := Identifier{Name: "x", Pos: Position{Line: 9}}
	y := Identifier{Name: "y", Pos: Position{Line: 9}}
	a1 := alloc.Variable(x, lat.InjectInt(1), t0)
	a2 := alloc.Variable(x, lat.InjectInt(2), t0)
	assert.Equal(t, a1, a2, "the classical policy ignores the value coordinate")

	assert.NotEqual(t, a1, alloc.Variable(y, lat.InjectInt(1), t0))
	assert.NotEqual(t, a1, alloc.Variable(x, lat.InjectInt(1), t1))
	assert.NotEqual(t, a1, alloc.Variable(Identifier{Name: "x", Pos: Position{Line: 10}}, lat.InjectInt(1), t0),
		"the same name under a different binder is a different cell")
}

func TestValueSensitiveAllocationRoundTrip(t *testing.T) {
	lat := NewConcreteLattice(false)
	alloc := ValueSensitiveAllocator{}
	t0 := KCFA{K: 1}.Zero()

	x := Identifier{Name: "x", Pos: Position{Line: 9}}
	a1 := alloc.Variable(x, lat.InjectInt(1), t0)
	a2 := alloc.Variable(x, lat.InjectInt(1), t0)
	a3 := alloc.Variable(x, lat.InjectInt(2), t0)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, a3, "the value-sensitive policy separates distinct values")
}

func TestKontAddressesCoalesceByExpression(t *testing.T) {
	alloc := ClassicalAllocator{}
	e := testExp{name: "(f x)", line: 7}
	t0 := KCFA{K: 0}.Zero()
	t1 := t0.TickCall(e)
	assert.Equal(t, alloc.Kont(e, t0), alloc.Kont(e, t1))
}

func TestConcreteAllocatorIsFresh(t *testing.T) {
	lat := NewConcreteLattice(false)
	alloc := ConcreteAllocator{}
	t0 := ConcreteTimestamps{}.Zero()
	x := Identifier{Name: "x", Pos: Position{Line: 9}}
	a1 := alloc.Variable(x, lat.InjectInt(1), t0)
	a2 := alloc.Variable(x, lat.InjectInt(1), t0)
	assert.NotEqual(t, a1, a2)
}

func TestKCFATruncatesHistory(t *testing.T) {
	e1 := testExp{name: "(f)", line: 1}
	e2 := testExp{name: "(g)", line: 2}
	e3 := testExp{name: "(h)", line: 3}

	one := KCFA{K: 1}.Zero().TickCall(e1).TickCall(e2)
	oneAgain := KCFA{K: 1}.Zero().TickCall(e3).TickCall(e2)
	assert.Equal(t, one, oneAgain, "1-CFA keeps only the last call site")

	two := KCFA{K: 2}.Zero().TickCall(e1).TickCall(e2)
	twoOther := KCFA{K: 2}.Zero().TickCall(e3).TickCall(e2)
	assert.NotEqual(t, two, twoOther, "2-CFA separates different histories")

	zero := KCFA{K: 0}.Zero()
	assert.Equal(t, zero, zero.TickCall(e1))
	assert.Equal(t, zero, zero.Tick(e1))
}

func TestEffectConflicts(t *testing.T) {
	a := addr("x")
	b := addr("y")

	read := Effects(Effect{Kind: ReadVar, Addr: a})
	write := Effects(Effect{Kind: WriteVar, Addr: a})
	writeOther := Effects(Effect{Kind: WriteVar, Addr: b})

	assert.False(t, read.Conflicts(read))
	assert.True(t, read.Conflicts(write))
	assert.True(t, write.Conflicts(write))
	assert.False(t, write.Conflicts(writeOther))

	locks := Effects(Effect{Kind: Acquire, Addr: a})
	assert.True(t, locks.Conflicts(Effects(Effect{Kind: Release, Addr: a})))

	union := read.Union(writeOther)
	assert.Len(t, union, 2)
	assert.True(t, union.Conflicts(write))
}

func TestMayFailMonoid(t *testing.T) {
	ok := Success(1)
	bad := Failure[int](NewSemanticError(TypeError, "nope"))

	both := ok.Append(bad).Append(Success(2))
	assert.Equal(t, []int{1, 2}, both.Successes())
	assert.Len(t, both.Errors(), 1)

	mapped := BindMayFail(both, func(n int) MayFail[int] {
		if n == 2 {
			return Failure[int](NewSemanticError(UserError, "two"))
		}
		return Success(n * 10)
	})
	assert.Equal(t, []int{10}, mapped.Successes())
	assert.Len(t, mapped.Errors(), 2)
}

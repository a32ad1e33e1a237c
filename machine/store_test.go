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

func addr(name string) Address {
	return VariableAddress{Id: Identifier{Name: name}, Ctx: "[]"}
}

func TestStoreLookupMissingIsBottom(t *testing.T) {
	lat := NewConcreteLattice(false)
	store := NewStore(lat)
	v, ok := store.Lookup(addr("x"))
	assert.False(t, ok)
	assert.True(t, lat.IsBottom(v))
}

func TestStoreExtendJoins(t *testing.T) {
	lat := NewConcreteLattice(false)
	store := NewStore(lat)
	a := addr("x")

	s1 := store.Extend(a, lat.InjectInt(1))
	s2 := s1.Extend(a, lat.InjectInt(2))

	// The original store is untouched.
	v1, _ := s1.Lookup(a)
	assert.False(t, lat.Subsumes(v1, lat.InjectInt(2)))

	v2, _ := s2.Lookup(a)
	assert.True(t, lat.Subsumes(v2, lat.InjectInt(1)))
	assert.True(t, lat.Subsumes(v2, lat.InjectInt(2)))
}

func TestStoreMonotonicity(t *testing.T) {
	lat := NewConcreteLattice(false)
	store := NewStore(lat)
	a := addr("x")
	b := addr("y")

	prev := store
	for i, v := range []Value{lat.InjectInt(1), lat.InjectInt(2), lat.InjectBool(true)} {
		var next Store
		if i%2 == 0 {
			next = prev.Extend(a, v)
		} else {
			next = prev.Extend(b, v)
		}
		assert.True(t, next.Subsumes(prev), "step %v must go up in the lattice", i)
		prev = next
	}
}

func TestStoreJoinReportsGrowth(t *testing.T) {
	lat := NewConcreteLattice(false)
	a := addr("x")
	s1 := NewStore(lat).Extend(a, lat.InjectInt(1))
	s2 := NewStore(lat).Extend(a, lat.InjectInt(2))

	joined, grew := s1.Join(s2)
	assert.True(t, grew)
	v, _ := joined.Lookup(a)
	assert.True(t, lat.Subsumes(v, lat.InjectInt(1)))
	assert.True(t, lat.Subsumes(v, lat.InjectInt(2)))

	_, again := joined.Join(s2)
	assert.False(t, again, "joining a subsumed store must not grow")
}

func TestStoreUpdateWithCounting(t *testing.T) {
	lat := NewConcreteLattice(true)
	a := addr("x")
	store := NewStore(lat).Extend(a, lat.InjectInt(1))

	// A single allocation allows a strong update.
	updated := store.Update(a, lat.InjectInt(2))
	v, _ := updated.Lookup(a)
	assert.False(t, lat.Subsumes(v, lat.InjectInt(1)))
	assert.True(t, lat.Subsumes(v, lat.InjectInt(2)))

	// After a second allocation the update is weak.
	double := store.Extend(a, lat.InjectInt(3)).Update(a, lat.InjectInt(4))
	v, _ = double.Lookup(a)
	assert.True(t, lat.Subsumes(v, lat.InjectInt(1)))
	assert.True(t, lat.Subsumes(v, lat.InjectInt(4)))
}

func TestStoreUpdateWithoutCountingJoins(t *testing.T) {
	lat := NewConcreteLattice(false)
	a := addr("x")
	store := NewStore(lat).Extend(a, lat.InjectInt(1))
	updated := store.Update(a, lat.InjectInt(2))
	v, _ := updated.Lookup(a)
	assert.True(t, lat.Subsumes(v, lat.InjectInt(1)))
	assert.True(t, lat.Subsumes(v, lat.InjectInt(2)))
}

func TestStoreDescriptorIsStructural(t *testing.T) {
	lat := NewConcreteLattice(false)
	a := addr("x")
	b := addr("y")

	s1 := NewStore(lat).Extend(a, lat.InjectInt(1)).Extend(b, lat.InjectInt(2))
	s2 := NewStore(lat).Extend(b, lat.InjectInt(2)).Extend(a, lat.InjectInt(1))
	assert.Equal(t, s1.Descriptor(), s2.Descriptor())

	s3 := s1.Extend(a, lat.InjectInt(3))
	assert.NotEqual(t, s1.Descriptor(), s3.Descriptor())
}

func TestKontStore(t *testing.T) {
	ks := NewKontStore()
	ka := KontAddress{Pos: Position{Line: 2}}
	k := Kont{Frame: testFrame{"f1"}, Next: HaltAddress{}}

	ks2 := ks.Extend(ka, k)
	assert.Empty(t, ks.Lookup(ka), "extend must not mutate the receiver")
	require.Len(t, ks2.Lookup(ka), 1)

	// Joining the same kont twice is idempotent.
	ks3 := ks2.Extend(ka, k)
	assert.Len(t, ks3.Lookup(ka), 1)
	assert.Equal(t, ks2.Descriptor(), ks3.Descriptor())

	k2 := Kont{Frame: testFrame{"f2"}, Next: HaltAddress{}}
	ks4 := ks3.Extend(ka, k2)
	assert.Len(t, ks4.Lookup(ka), 2)
	assert.NotEqual(t, ks3.Descriptor(), ks4.Descriptor())
}

type testFrame struct {
	name string
}

func (f testFrame) String() string {
	return f.name
}

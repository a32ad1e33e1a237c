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
	"fmt"
	"hash/fnv"
	"sort"
)

// count tracks how many times an address has been allocated, for
// abstract counting.
type count int

const (
	countOne count = iota + 1
	countMany
)

// Store maps addresses to lattice cells. A missing address reads as
// bottom; Extend always joins into the cell and never loses content.
// Only Update replaces content, and only when abstract counting proves
// the cell has a single allocation.
type Store struct {
	lat    Lattice
	vals   map[Address]Value
	counts map[Address]count
}

// NewStore returns the empty store over the given lattice.
func NewStore(lat Lattice) Store {
	return Store{
		lat:    lat,
		vals:   map[Address]Value{},
		counts: map[Address]count{},
	}
}

// Lookup reads a cell. The boolean is false when the address has never
// been allocated; the value is bottom in that case.
func (s Store) Lookup(a Address) (Value, bool) {
	v, ok := s.vals[a]
	if !ok {
		return s.lat.Bottom(), false
	}
	return v, true
}

// clone does a deep copy of the store's maps.
func (s Store) clone() Store {
	nv := make(map[Address]Value, len(s.vals))
	for a, v := range s.vals {
		nv[a] = v
	}
	nc := make(map[Address]count, len(s.counts))
	for a, c := range s.counts {
		nc[a] = c
	}
	return Store{lat: s.lat, vals: nv, counts: nc}
}

// Extend returns a new store with v joined into the cell at a.
func (s Store) Extend(a Address, v Value) Store {
	ns := s.clone()
	ns.extendInPlace(a, v)
	return ns
}

func (s Store) extendInPlace(a Address, v Value) bool {
	old, ok := s.vals[a]
	if !ok {
		s.vals[a] = v
		s.counts[a] = countOne
		return true
	}
	s.counts[a] = countMany
	nv := s.lat.Join(old, v)
	if s.lat.Subsumes(old, nv) {
		return false
	}
	s.vals[a] = nv
	return true
}

// Update writes v at a. With abstract counting enabled and a single
// allocation at a, the update is strong; otherwise it joins.
func (s Store) Update(a Address, v Value) Store {
	ns := s.clone()
	if s.lat.Counting() && ns.counts[a] == countOne {
		ns.vals[a] = v
		return ns
	}
	old, ok := ns.vals[a]
	if !ok {
		ns.vals[a] = v
		return ns
	}
	ns.vals[a] = s.lat.Join(old, v)
	return ns
}

// StrongUpdate replaces the cell at a unconditionally and records a
// single allocation there.
func (s Store) StrongUpdate(a Address, v Value) Store {
	ns := s.clone()
	ns.vals[a] = v
	ns.counts[a] = countOne
	return ns
}

// Join computes the pointwise join of two stores. It also returns a
// boolean indicating whether we went up (with respect to the first
// store) in the lattice.
func (s Store) Join(other Store) (Store, bool) {
	ns := s.clone()
	diff := ns.joinInPlace(other)
	return ns, diff
}

// joinInPlace joins another store into this one and reports whether
// any cell grew.
func (s Store) joinInPlace(other Store) bool {
	diff := false
	for a, v := range other.vals {
		old, ok := s.vals[a]
		if !ok {
			s.vals[a] = v
			s.counts[a] = other.counts[a]
			diff = true
			continue
		}
		// Both stores allocated the address, so the cell may hold more
		// than one allocation.
		s.counts[a] = countMany
		nv := s.lat.Join(old, v)
		if !s.lat.Subsumes(old, nv) {
			s.vals[a] = nv
			diff = true
		}
	}
	return diff
}

// Subsumes reports whether every cell of other is below the
// corresponding cell of s.
func (s Store) Subsumes(other Store) bool {
	for a, v := range other.vals {
		old, ok := s.vals[a]
		if !ok {
			if !other.lat.IsBottom(v) {
				return false
			}
			continue
		}
		if !s.lat.Subsumes(old, v) {
			return false
		}
	}
	return true
}

// Size returns the number of allocated cells.
func (s Store) Size() int {
	return len(s.vals)
}

// Descriptor hashes the store contents so that stores can participate
// in state identity. Equal stores have equal descriptors.
func (s Store) Descriptor() string {
	entries := make([]string, 0, len(s.vals))
	for a, v := range s.vals {
		entries = append(entries, fmt.Sprintf("%v=%v;", a, v))
	}
	sort.Strings(entries)
	h := fnv.New32a()
	for _, e := range entries {
		h.Write([]byte(e))
	}
	return fmt.Sprintf("%x", h.Sum32())
}

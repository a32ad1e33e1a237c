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

// Frame is one suspended continuation frame. Frames are defined by a
// language's semantics and opaque to the machine; their printed form
// is their identity.
type Frame interface {
	String() string
}

// Kont pairs a frame with the address of the rest of the continuation.
// Continuations reference their tail by address, never by pointer, so
// recursive call stacks collapse into cycles in the kont store.
type Kont struct {
	Frame Frame
	Next  Address
}

func (k Kont) String() string {
	return fmt.Sprintf("%v->%v", k.Frame, k.Next)
}

// KontStore maps continuation addresses to sets of konts. Cells only
// grow; a continuation pushed at an address stays there for the rest
// of the exploration.
type KontStore struct {
	konts map[Address]map[string]Kont
}

// NewKontStore returns the empty continuation store.
func NewKontStore() KontStore {
	return KontStore{konts: map[Address]map[string]Kont{}}
}

// Lookup returns every kont stored at the address, in deterministic
// order.
func (ks KontStore) Lookup(a Address) []Kont {
	cell := ks.konts[a]
	keys := make([]string, 0, len(cell))
	for k := range cell {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]Kont, 0, len(keys))
	for _, k := range keys {
		res = append(res, cell[k])
	}
	return res
}

// clone does a deep copy of the continuation store.
func (ks KontStore) clone() KontStore {
	nk := make(map[Address]map[string]Kont, len(ks.konts))
	for a, cell := range ks.konts {
		nc := make(map[string]Kont, len(cell))
		for k, v := range cell {
			nc[k] = v
		}
		nk[a] = nc
	}
	return KontStore{konts: nk}
}

// Extend returns a new store with the kont joined into the cell at a.
func (ks KontStore) Extend(a Address, k Kont) KontStore {
	nks := ks.clone()
	nks.extendInPlace(a, k)
	return nks
}

func (ks KontStore) extendInPlace(a Address, k Kont) bool {
	cell := ks.konts[a]
	if cell == nil {
		cell = map[string]Kont{}
		ks.konts[a] = cell
	}
	key := k.String()
	if _, ok := cell[key]; ok {
		return false
	}
	cell[key] = k
	return true
}

// joinInPlace joins another kont store into this one and reports
// whether any cell grew.
func (ks KontStore) joinInPlace(other KontStore) bool {
	diff := false
	for a, cell := range other.konts {
		for _, k := range cell {
			if ks.extendInPlace(a, k) {
				diff = true
			}
		}
	}
	return diff
}

// Size returns the number of continuation cells.
func (ks KontStore) Size() int {
	return len(ks.konts)
}

// Descriptor hashes the store contents for state identity.
func (ks KontStore) Descriptor() string {
	entries := make([]string, 0, len(ks.konts))
	for a, cell := range ks.konts {
		keys := make([]string, 0, len(cell))
		for k := range cell {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries = append(entries, fmt.Sprintf("%v=%v;", a, keys))
	}
	sort.Strings(entries)
	h := fnv.New32a()
	for _, e := range entries {
		h.Write([]byte(e))
	}
	return fmt.Sprintf("%x", h.Sum32())
}

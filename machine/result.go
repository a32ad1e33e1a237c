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

import "time"

// Result is what an exploration returns: the values that flowed to the
// final continuation, the size of the reachable state graph, and the
// reachable semantic errors.
type Result struct {
	lat Lattice

	finalValues    []Value
	errors         []SemanticError
	numberOfStates int
	elapsed        time.Duration
	timedOut       bool
	graph          *Graph
}

func newResult(lat Lattice) *Result {
	return &Result{lat: lat}
}

// FinalValues returns the distinct values reached at the final
// continuation.
func (r *Result) FinalValues() []Value {
	return r.finalValues
}

// addFinalValue records a halted value, deduplicating by mutual
// subsumption.
func (r *Result) addFinalValue(v Value) {
	if r.lat.IsBottom(v) {
		return
	}
	for _, old := range r.finalValues {
		if r.lat.Subsumes(old, v) && r.lat.Subsumes(v, old) {
			return
		}
	}
	r.finalValues = append(r.finalValues, v)
}

// ContainsFinalValue reports whether any final value subsumes v.
func (r *Result) ContainsFinalValue(v Value) bool {
	for _, fv := range r.finalValues {
		if r.lat.Subsumes(fv, v) {
			return true
		}
	}
	return false
}

// Errors returns the semantic errors reachable on some branch.
func (r *Result) Errors() []SemanticError {
	return r.errors
}

func (r *Result) addError(err SemanticError) {
	for _, old := range r.errors {
		if old == err {
			return
		}
	}
	r.errors = append(r.errors, err)
}

// NumberOfStates returns the number of distinct states explored.
func (r *Result) NumberOfStates() int {
	return r.numberOfStates
}

// Time returns the exploration wall time.
func (r *Result) Time() time.Duration {
	return r.elapsed
}

// TimedOut reports whether the deadline expired before the graph was
// exhausted. The partial result is still a set of valid reachable
// states.
func (r *Result) TimedOut() bool {
	return r.timedOut
}

// Graph returns the recorded state graph, or nil when graph recording
// was off.
func (r *Result) Graph() *Graph {
	return r.graph
}

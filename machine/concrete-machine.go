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

import "context"

// defaultConcreteSteps bounds a concrete run that was given no step
// budget; the concrete machine may not terminate on its own.
const defaultConcreteSteps = 1000000

// ConcreteMachine runs a program concretely: every timestamp is
// globally fresh, every address is unique, every cell holds a single
// allocation, and updates are strong. It is the AAM with the concrete
// capability instances; it serves as the soundness reference for the
// abstract machines.
type ConcreteMachine struct {
	aam *AAM
}

// NewConcreteMachine builds the concrete machine for a semantics. The
// lattice must be a concrete (precise-set) lattice with counting
// enabled for updates to be strong.
func NewConcreteMachine(sem Semantics, lat Lattice, opts Options) *ConcreteMachine {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = defaultConcreteSteps
	}
	return &ConcreteMachine{
		aam: NewAAM(sem, lat, ConcreteAllocator{}, ConcreteTimestamps{}, opts),
	}
}

func (m *ConcreteMachine) Name() string {
	return "ConcreteMachine"
}

func (m *ConcreteMachine) Run(ctx context.Context, program Exp) *Result {
	return m.aam.Run(ctx, program)
}

func (m *ConcreteMachine) RunSource(ctx context.Context, source string) (*Result, error) {
	return m.aam.RunSource(ctx, source)
}

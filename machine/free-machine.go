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
	"context"
	"fmt"
)

// Free is the machine with a global value store and a global
// continuation store. States shrink to (control, kont address,
// timestamp); continuations at the same address join into one cell, so
// the machine explores an over-approximated call graph and always
// terminates on finite lattices.
type Free struct {
	sem     Semantics
	lat     Lattice
	alloc   Allocator
	tpolicy TimestampPolicy
	opts    Options

	store  Store
	kstore KontStore
	dirty  bool
	seen   []freeState
	keys   map[string]bool
}

func NewFree(sem Semantics, lat Lattice, alloc Allocator, tpolicy TimestampPolicy, opts Options) *Free {
	return &Free{sem: sem, lat: lat, alloc: alloc, tpolicy: tpolicy, opts: opts}
}

func (m *Free) Name() string {
	return "Free"
}

// freeState is a vertex of the free machine: control, kont address and
// timestamp. Both stores live in the machine.
type freeState struct {
	control Control
	kaddr   Address
	t       Timestamp
}

func (s freeState) descriptor() string {
	return fmt.Sprintf("%v|%v|%v", s.control, s.kaddr, s.t)
}

func (s freeState) halted() bool {
	switch s.control.(type) {
	case ControlError:
		return true
	case ControlKont:
		return s.kaddr == Address(HaltAddress{})
	}
	return false
}

func (m *Free) initialState(program Exp) freeState {
	t0 := m.tpolicy.Zero()
	env, store := m.sem.Initial(m.alloc, t0)
	m.store = store
	m.kstore = NewKontStore()
	m.dirty = false
	m.seen = nil
	m.keys = map[string]bool{}
	return freeState{
		control: ControlEval{Exp: program, Env: env},
		kaddr:   HaltAddress{},
		t:       t0,
	}
}

func (m *Free) absorb(out Store) {
	if m.store.joinInPlace(out) {
		m.dirty = true
	}
}

func (m *Free) remember(s freeState) {
	key := s.descriptor()
	if !m.keys[key] {
		m.keys[key] = true
		m.seen = append(m.seen, s)
	}
}

func (m *Free) step(s freeState) []freeState {
	m.remember(s)
	switch c := s.control.(type) {
	case ControlEval:
		return m.applyActions(s, s.kaddr, m.sem.StepEval(c.Exp, c.Env, m.store, s.t))
	case ControlKont:
		var res []freeState
		for _, k := range m.kstore.Lookup(s.kaddr) {
			res = append(res, m.applyActions(s, k.Next, m.sem.StepKont(c.V, k.Frame, m.store, s.t))...)
		}
		return res
	}
	return nil
}

func (m *Free) applyActions(s freeState, popTo Address, acts []Action) []freeState {
	var res []freeState
	for _, act := range acts {
		switch a := act.(type) {
		case ActionReachedValue:
			m.absorb(a.Store)
			res = append(res, freeState{ControlKont{V: a.V}, popTo, s.t.Tick(nil)})
		case ActionPush:
			m.absorb(a.Store)
			ak := m.alloc.Kont(a.E, s.t)
			if m.kstore.extendInPlace(ak, Kont{Frame: a.Frame, Next: popTo}) {
				m.dirty = true
			}
			res = append(res, freeState{ControlEval{Exp: a.E, Env: a.Env}, ak, s.t.Tick(a.E)})
		case ActionEval:
			m.absorb(a.Store)
			res = append(res, freeState{ControlEval{Exp: a.E, Env: a.Env}, popTo, s.t.Tick(a.E)})
		case ActionStepIn:
			m.absorb(a.Store)
			res = append(res, freeState{ControlEval{Exp: a.Body, Env: a.Env}, popTo, s.t.TickCall(a.Fexp)})
		case ActionError:
			res = append(res, freeState{ControlError{Err: a.Err}, popTo, s.t})
		default:
			err := NewSemanticError(NotSupported, "action requires a concurrent machine")
			res = append(res, freeState{ControlError{Err: err}, popTo, s.t})
		}
	}
	return res
}

// refill re-expands every seen state once either global store grew.
func (m *Free) refill() []freeState {
	if !m.dirty {
		return nil
	}
	m.dirty = false
	return append([]freeState{}, m.seen...)
}

func (m *Free) Run(ctx context.Context, program Exp) *Result {
	return explore(ctx, m.opts, m.lat, []freeState{m.initialState(program)}, exploration[freeState]{
		descriptor: freeState.descriptor,
		label: func(s freeState) string {
			return s.control.String()
		},
		halted: freeState.halted,
		finalValue: func(s freeState) (Value, bool) {
			if c, ok := s.control.(ControlKont); ok && s.halted() {
				return c.V, true
			}
			return nil, false
		},
		errorOf: func(s freeState) (SemanticError, bool) {
			if c, ok := s.control.(ControlError); ok {
				return c.Err, true
			}
			return SemanticError{}, false
		},
		step:         m.step,
		refill:       m.refill,
		parallelSafe: false,
	})
}

func (m *Free) RunSource(ctx context.Context, source string) (*Result, error) {
	program, err := m.sem.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	return m.Run(ctx, program), nil
}

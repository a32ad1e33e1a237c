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

// GlobalStoreAAM lifts the value store out of the states: one widened
// store is shared by the whole exploration and grows monotonically.
// When a transition makes the store grow, every state expanded against
// the smaller store is re-expanded.
type GlobalStoreAAM struct {
	sem     Semantics
	lat     Lattice
	alloc   Allocator
	tpolicy TimestampPolicy
	opts    Options

	store      Store
	storeDirty bool
	seen       []gsState
	seenKeys   map[string]bool
}

func NewGlobalStoreAAM(sem Semantics, lat Lattice, alloc Allocator, tpolicy TimestampPolicy, opts Options) *GlobalStoreAAM {
	return &GlobalStoreAAM{sem: sem, lat: lat, alloc: alloc, tpolicy: tpolicy, opts: opts}
}

func (m *GlobalStoreAAM) Name() string {
	return "AAMGlobalStore"
}

// gsState is a state without its value store; the continuation still
// travels with the state.
type gsState struct {
	control Control
	kstore  KontStore
	kaddr   Address
	t       Timestamp
}

func (s gsState) descriptor() string {
	return fmt.Sprintf("%v|%v|%v|%v", s.control, s.kstore.Descriptor(), s.kaddr, s.t)
}

func (s gsState) halted() bool {
	switch s.control.(type) {
	case ControlError:
		return true
	case ControlKont:
		return s.kaddr == Address(HaltAddress{})
	}
	return false
}

func (m *GlobalStoreAAM) initialState(program Exp) gsState {
	t0 := m.tpolicy.Zero()
	env, store := m.sem.Initial(m.alloc, t0)
	m.store = store
	m.storeDirty = false
	m.seen = nil
	m.seenKeys = map[string]bool{}
	return gsState{
		control: ControlEval{Exp: program, Env: env},
		kstore:  NewKontStore(),
		kaddr:   HaltAddress{},
		t:       t0,
	}
}

// absorb joins a step's output store into the global store, tracking
// whether it properly grew.
func (m *GlobalStoreAAM) absorb(out Store) {
	if m.store.joinInPlace(out) {
		m.storeDirty = true
	}
}

func (m *GlobalStoreAAM) step(s gsState) []gsState {
	m.remember(s)
	switch c := s.control.(type) {
	case ControlEval:
		return m.applyActions(s, s.kaddr, m.sem.StepEval(c.Exp, c.Env, m.store, s.t))
	case ControlKont:
		var res []gsState
		for _, k := range s.kstore.Lookup(s.kaddr) {
			res = append(res, m.applyActions(s, k.Next, m.sem.StepKont(c.V, k.Frame, m.store, s.t))...)
		}
		return res
	}
	return nil
}

// remember keeps every expanded state so it can be re-expanded after
// widening.
func (m *GlobalStoreAAM) remember(s gsState) {
	key := s.descriptor()
	if !m.seenKeys[key] {
		m.seenKeys[key] = true
		m.seen = append(m.seen, s)
	}
}

func (m *GlobalStoreAAM) applyActions(s gsState, popTo Address, acts []Action) []gsState {
	var res []gsState
	for _, act := range acts {
		switch a := act.(type) {
		case ActionReachedValue:
			m.absorb(a.Store)
			res = append(res, gsState{ControlKont{V: a.V}, s.kstore, popTo, s.t.Tick(nil)})
		case ActionPush:
			m.absorb(a.Store)
			ak := m.alloc.Kont(a.E, s.t)
			ks := s.kstore.Extend(ak, Kont{Frame: a.Frame, Next: popTo})
			res = append(res, gsState{ControlEval{Exp: a.E, Env: a.Env}, ks, ak, s.t.Tick(a.E)})
		case ActionEval:
			m.absorb(a.Store)
			res = append(res, gsState{ControlEval{Exp: a.E, Env: a.Env}, s.kstore, popTo, s.t.Tick(a.E)})
		case ActionStepIn:
			m.absorb(a.Store)
			res = append(res, gsState{ControlEval{Exp: a.Body, Env: a.Env}, s.kstore, popTo, s.t.TickCall(a.Fexp)})
		case ActionError:
			res = append(res, gsState{ControlError{Err: a.Err}, s.kstore, popTo, s.t})
		default:
			err := NewSemanticError(NotSupported, "action requires a concurrent machine")
			res = append(res, gsState{ControlError{Err: err}, s.kstore, popTo, s.t})
		}
	}
	return res
}

// refill re-enqueues every expanded state after the store grew; the
// fixed point is reached when a full re-expansion leaves the store
// unchanged.
func (m *GlobalStoreAAM) refill() []gsState {
	if !m.storeDirty {
		return nil
	}
	m.storeDirty = false
	return append([]gsState{}, m.seen...)
}

func (m *GlobalStoreAAM) Run(ctx context.Context, program Exp) *Result {
	return explore(ctx, m.opts, m.lat, []gsState{m.initialState(program)}, exploration[gsState]{
		descriptor: gsState.descriptor,
		label: func(s gsState) string {
			return s.control.String()
		},
		halted: gsState.halted,
		finalValue: func(s gsState) (Value, bool) {
			if c, ok := s.control.(ControlKont); ok && s.halted() {
				return c.V, true
			}
			return nil, false
		},
		errorOf: func(s gsState) (SemanticError, bool) {
			if c, ok := s.control.(ControlError); ok {
				return c.Err, true
			}
			return SemanticError{}, false
		},
		step:   m.step,
		refill: m.refill,
		// The global store is single-writer-per-step.
		parallelSafe: false,
	})
}

func (m *GlobalStoreAAM) RunSource(ctx context.Context, source string) (*Result, error) {
	program, err := m.sem.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	return m.Run(ctx, program), nil
}

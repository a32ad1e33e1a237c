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

// AAM is the classical abstracting abstract machine: every state
// carries its own value store and continuation store, so the stores
// participate in state identity. Maximum precision, many distinct
// stores.
type AAM struct {
	sem     Semantics
	lat     Lattice
	alloc   Allocator
	tpolicy TimestampPolicy
	opts    Options
}

// NewAAM builds the machine from its four capability parameters.
func NewAAM(sem Semantics, lat Lattice, alloc Allocator, tpolicy TimestampPolicy, opts Options) *AAM {
	return &AAM{sem: sem, lat: lat, alloc: alloc, tpolicy: tpolicy, opts: opts}
}

func (m *AAM) Name() string {
	return "AAM"
}

// aamState is one vertex of the AAM state graph.
type aamState struct {
	control Control
	store   Store
	kstore  KontStore
	kaddr   Address
	t       Timestamp
}

func (s aamState) descriptor() string {
	return fmt.Sprintf("%v|%v|%v|%v|%v",
		s.control, s.store.Descriptor(), s.kstore.Descriptor(), s.kaddr, s.t)
}

func (s aamState) halted() bool {
	switch s.control.(type) {
	case ControlError:
		return true
	case ControlKont:
		return s.kaddr == Address(HaltAddress{})
	}
	return false
}

// initialState sets the machine at the program entry.
func (m *AAM) initialState(program Exp) aamState {
	t0 := m.tpolicy.Zero()
	env, store := m.sem.Initial(m.alloc, t0)
	return aamState{
		control: ControlEval{Exp: program, Env: env},
		store:   store,
		kstore:  NewKontStore(),
		kaddr:   HaltAddress{},
		t:       t0,
	}
}

func (m *AAM) step(s aamState) []aamState {
	switch c := s.control.(type) {
	case ControlEval:
		return m.applyActions(s, s.kaddr, m.sem.StepEval(c.Exp, c.Env, s.store, s.t))
	case ControlKont:
		var res []aamState
		for _, k := range s.kstore.Lookup(s.kaddr) {
			res = append(res, m.applyActions(s, k.Next, m.sem.StepKont(c.V, k.Frame, s.store, s.t))...)
		}
		return res
	}
	return nil
}

// applyActions folds the actions of one semantics step into successor
// states. popTo is the continuation address the step resumes at.
func (m *AAM) applyActions(s aamState, popTo Address, acts []Action) []aamState {
	var res []aamState
	for _, act := range acts {
		switch a := act.(type) {
		case ActionReachedValue:
			res = append(res, aamState{
				control: ControlKont{V: a.V},
				store:   a.Store,
				kstore:  s.kstore,
				kaddr:   popTo,
				t:       s.t.Tick(nil),
			})
		case ActionPush:
			ak := m.alloc.Kont(a.E, s.t)
			ks := s.kstore.Extend(ak, Kont{Frame: a.Frame, Next: popTo})
			res = append(res, aamState{
				control: ControlEval{Exp: a.E, Env: a.Env},
				store:   a.Store,
				kstore:  ks,
				kaddr:   ak,
				t:       s.t.Tick(a.E),
			})
		case ActionEval:
			res = append(res, aamState{
				control: ControlEval{Exp: a.E, Env: a.Env},
				store:   a.Store,
				kstore:  s.kstore,
				kaddr:   popTo,
				t:       s.t.Tick(a.E),
			})
		case ActionStepIn:
			res = append(res, aamState{
				control: ControlEval{Exp: a.Body, Env: a.Env},
				store:   a.Store,
				kstore:  s.kstore,
				kaddr:   popTo,
				t:       s.t.TickCall(a.Fexp),
			})
		case ActionError:
			res = append(res, aamState{
				control: ControlError{Err: a.Err},
				store:   s.store,
				kstore:  s.kstore,
				kaddr:   popTo,
				t:       s.t,
			})
		default:
			err := NewSemanticError(NotSupported, "action requires a concurrent machine")
			res = append(res, aamState{
				control: ControlError{Err: err},
				store:   s.store,
				kstore:  s.kstore,
				kaddr:   popTo,
				t:       s.t,
			})
		}
	}
	return res
}

// Run explores the reachable states of the program.
func (m *AAM) Run(ctx context.Context, program Exp) *Result {
	return explore(ctx, m.opts, m.lat, []aamState{m.initialState(program)}, exploration[aamState]{
		descriptor: aamState.descriptor,
		label: func(s aamState) string {
			return s.control.String()
		},
		halted: aamState.halted,
		finalValue: func(s aamState) (Value, bool) {
			if c, ok := s.control.(ControlKont); ok && s.halted() {
				return c.V, true
			}
			return nil, false
		},
		errorOf: func(s aamState) (SemanticError, bool) {
			if c, ok := s.control.(ControlError); ok {
				return c.Err, true
			}
			return SemanticError{}, false
		},
		step:         m.step,
		parallelSafe: true,
	})
}

// RunSource parses and explores a source program.
func (m *AAM) RunSource(ctx context.Context, source string) (*Result, error) {
	program, err := m.sem.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	return m.Run(ctx, program), nil
}

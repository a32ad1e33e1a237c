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
	"sort"
)

// ConcurrentAAM explores a multi-threaded program. The state carries a
// thread pool mapping thread identifiers to sets of local contexts;
// the value store and continuation store are global, as in the free
// machine. Every interleaving of steps with conflicting effects is
// explored; a thread whose enabled steps carry no effects commutes
// with every other thread and is stepped alone.
type ConcurrentAAM struct {
	sem     Semantics
	lat     Lattice
	alloc   Allocator
	tpolicy TimestampPolicy
	opts    Options

	store  Store
	kstore KontStore
	dirty  bool
	seen   []concState
	keys   map[string]bool
}

func NewConcurrentAAM(sem Semantics, lat Lattice, alloc Allocator, tpolicy TimestampPolicy, opts Options) *ConcurrentAAM {
	return &ConcurrentAAM{sem: sem, lat: lat, alloc: alloc, tpolicy: tpolicy, opts: opts}
}

func (m *ConcurrentAAM) Name() string {
	return "ConcurrentAAM"
}

// threadCtx is the local state of one thread: its control point, the
// address of its continuation in the global kont store, and its
// timestamp.
type threadCtx struct {
	control Control
	kaddr   Address
	t       Timestamp
}

func (c threadCtx) key() string {
	return fmt.Sprintf("%v|%v|%v", c.control, c.kaddr, c.t)
}

func (c threadCtx) halted() bool {
	switch c.control.(type) {
	case ControlError:
		return true
	case ControlKont:
		return c.kaddr == Address(HaltAddress{})
	}
	return false
}

// concState maps each thread to the set of contexts it may be in.
type concState struct {
	threads map[TID]map[string]threadCtx
}

func newConcState() concState {
	return concState{threads: map[TID]map[string]threadCtx{}}
}

func (s concState) clone() concState {
	ns := newConcState()
	for tid, ctxs := range s.threads {
		nc := make(map[string]threadCtx, len(ctxs))
		for k, c := range ctxs {
			nc[k] = c
		}
		ns.threads[tid] = nc
	}
	return ns
}

// withCtx replaces one context of a thread.
func (s concState) withCtx(tid TID, oldKey string, nc threadCtx) concState {
	ns := s.clone()
	delete(ns.threads[tid], oldKey)
	ns.threads[tid][nc.key()] = nc
	return ns
}

// withThread installs a context for a (possibly new) thread.
func (s concState) withThread(tid TID, nc threadCtx) concState {
	ns := s.clone()
	if ns.threads[tid] == nil {
		ns.threads[tid] = map[string]threadCtx{}
	}
	ns.threads[tid][nc.key()] = nc
	return ns
}

func (s concState) sortedTids() []TID {
	tids := make([]TID, 0, len(s.threads))
	for tid := range s.threads {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i].String() < tids[j].String() })
	return tids
}

func (s concState) descriptor() string {
	var parts []string
	for _, tid := range s.sortedTids() {
		ctxs := s.threads[tid]
		keys := make([]string, 0, len(ctxs))
		for k := range ctxs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, fmt.Sprintf("%v=%v", tid, keys))
	}
	return fmt.Sprintf("%v", parts)
}

// halted reports whether every context of every thread has halted.
func (s concState) halted() bool {
	for _, ctxs := range s.threads {
		for _, c := range ctxs {
			if !c.halted() {
				return false
			}
		}
	}
	return true
}

func (m *ConcurrentAAM) initialState(program Exp) concState {
	t0 := m.tpolicy.Zero()
	env, store := m.sem.Initial(m.alloc, t0)
	m.store = store
	m.kstore = NewKontStore()
	m.dirty = false
	m.seen = nil
	m.keys = map[string]bool{}
	s := newConcState()
	return s.withThread(MainTID, threadCtx{
		control: ControlEval{Exp: program, Env: env},
		kaddr:   HaltAddress{},
		t:       t0,
	})
}

func (m *ConcurrentAAM) absorb(out Store) {
	if m.store.joinInPlace(out) {
		m.dirty = true
	}
}

func (m *ConcurrentAAM) remember(s concState) {
	key := s.descriptor()
	if !m.keys[key] {
		m.keys[key] = true
		m.seen = append(m.seen, s)
	}
}

// enabledActions collects the actions of one context without folding
// them into states.
func (m *ConcurrentAAM) enabledActions(c threadCtx) map[Address][]Action {
	res := map[Address][]Action{}
	switch ctl := c.control.(type) {
	case ControlEval:
		res[c.kaddr] = m.sem.StepEval(ctl.Exp, ctl.Env, m.store, c.t)
	case ControlKont:
		if c.halted() {
			return res
		}
		for _, k := range m.kstore.Lookup(c.kaddr) {
			res[k.Next] = append(res[k.Next], m.sem.StepKont(ctl.V, k.Frame, m.store, c.t)...)
		}
	}
	return res
}

// invisible reports whether every action is effect-free and
// sequential: such a step commutes with the steps of all other
// threads.
func invisible(byPop map[Address][]Action) bool {
	for _, acts := range byPop {
		for _, act := range acts {
			if 0 < len(act.Effects()) {
				return false
			}
			switch act.(type) {
			case ActionSpawn, ActionJoin, ActionSend, ActionCreate, ActionBecome, ActionTerminate:
				return false
			}
		}
	}
	return true
}

func (m *ConcurrentAAM) step(s concState) []concState {
	m.remember(s)

	type enabled struct {
		tid   TID
		key   string
		ctx   threadCtx
		byPop map[Address][]Action
	}
	var en []enabled
	for _, tid := range s.sortedTids() {
		ctxs := s.threads[tid]
		keys := make([]string, 0, len(ctxs))
		for k := range ctxs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c := ctxs[k]
			if c.halted() {
				continue
			}
			en = append(en, enabled{tid: tid, key: k, ctx: c, byPop: m.enabledActions(c)})
		}
	}

	// Step an invisible thread alone when one exists.
	for _, e := range en {
		if invisible(e.byPop) {
			return m.applyCtx(s, e.tid, e.key, e.ctx, e.byPop)
		}
	}

	// Otherwise interleave: every enabled context steps from this
	// state, so both orders of any conflicting pair are reachable.
	var res []concState
	for _, e := range en {
		res = append(res, m.applyCtx(s, e.tid, e.key, e.ctx, e.byPop)...)
	}
	return res
}

func (m *ConcurrentAAM) applyCtx(s concState, tid TID, key string, c threadCtx, byPop map[Address][]Action) []concState {
	var res []concState
	pops := make([]Address, 0, len(byPop))
	for popTo := range byPop {
		pops = append(pops, popTo)
	}
	sort.Slice(pops, func(i, j int) bool { return pops[i].String() < pops[j].String() })
	for _, popTo := range pops {
		for _, act := range byPop[popTo] {
			res = append(res, m.applyAction(s, tid, key, c, popTo, act)...)
		}
	}
	return res
}

// contToCtx folds a sequential action into a new context for the
// current thread.
func (m *ConcurrentAAM) contToCtx(c threadCtx, popTo Address, act Action) (threadCtx, bool) {
	switch a := act.(type) {
	case ActionReachedValue:
		m.absorb(a.Store)
		return threadCtx{control: ControlKont{V: a.V}, kaddr: popTo, t: c.t.Tick(nil)}, true
	case ActionPush:
		m.absorb(a.Store)
		ak := m.alloc.Kont(a.E, c.t)
		if m.kstore.extendInPlace(ak, Kont{Frame: a.Frame, Next: popTo}) {
			m.dirty = true
		}
		return threadCtx{control: ControlEval{Exp: a.E, Env: a.Env}, kaddr: ak, t: c.t.Tick(a.E)}, true
	case ActionEval:
		m.absorb(a.Store)
		return threadCtx{control: ControlEval{Exp: a.E, Env: a.Env}, kaddr: popTo, t: c.t.Tick(a.E)}, true
	case ActionStepIn:
		m.absorb(a.Store)
		return threadCtx{control: ControlEval{Exp: a.Body, Env: a.Env}, kaddr: popTo, t: c.t.TickCall(a.Fexp)}, true
	case ActionError:
		return threadCtx{control: ControlError{Err: a.Err}, kaddr: popTo, t: c.t}, true
	}
	return threadCtx{}, false
}

func (m *ConcurrentAAM) applyAction(s concState, tid TID, key string, c threadCtx, popTo Address, act Action) []concState {
	if nc, ok := m.contToCtx(c, popTo, act); ok {
		return []concState{s.withCtx(tid, key, nc)}
	}
	switch a := act.(type) {
	case ActionSpawn:
		m.absorb(a.Store)
		child := threadCtx{
			control: ControlEval{Exp: a.E, Env: a.Env},
			kaddr:   HaltAddress{},
			t:       m.tpolicy.Zero(),
		}
		var res []concState
		for _, succ := range m.applyAction(s, tid, key, c, popTo, a.Cont) {
			res = append(res, succ.withThread(a.Tid, child))
		}
		return res
	case ActionJoin:
		m.absorb(a.Store)
		var res []concState
		for _, jt := range m.lat.Tids(a.V) {
			final, ok := m.finalOf(s, jt)
			if !ok {
				// The joined thread may still run; this branch blocks.
				continue
			}
			nc := threadCtx{control: ControlKont{V: final}, kaddr: popTo, t: c.t.Tick(nil)}
			res = append(res, s.withCtx(tid, key, nc))
		}
		if len(m.lat.Tids(a.V)) == 0 {
			err := NewSemanticError(TypeError, "join on a non-thread value")
			nc := threadCtx{control: ControlError{Err: err}, kaddr: popTo, t: c.t}
			res = append(res, s.withCtx(tid, key, nc))
		}
		return res
	default:
		err := NewSemanticError(NotSupported, "actor action on a thread machine")
		nc := threadCtx{control: ControlError{Err: err}, kaddr: popTo, t: c.t}
		return []concState{s.withCtx(tid, key, nc)}
	}
}

// finalOf yields the joined final value of a thread once every one of
// its contexts has halted.
func (m *ConcurrentAAM) finalOf(s concState, tid TID) (Value, bool) {
	ctxs := s.threads[tid]
	if len(ctxs) == 0 {
		return nil, false
	}
	res := m.lat.Bottom()
	for _, c := range ctxs {
		if !c.halted() {
			return nil, false
		}
		if k, ok := c.control.(ControlKont); ok {
			res = m.lat.Join(res, k.V)
		}
	}
	return res, true
}

func (m *ConcurrentAAM) refill() []concState {
	if !m.dirty {
		return nil
	}
	m.dirty = false
	return append([]concState{}, m.seen...)
}

func (m *ConcurrentAAM) Run(ctx context.Context, program Exp) *Result {
	return explore(ctx, m.opts, m.lat, []concState{m.initialState(program)}, exploration[concState]{
		descriptor: concState.descriptor,
		label: func(s concState) string {
			return fmt.Sprintf("threads:%v", len(s.threads))
		},
		halted: concState.halted,
		finalValue: func(s concState) (Value, bool) {
			if !s.halted() {
				return nil, false
			}
			res := m.lat.Bottom()
			for _, c := range s.threads[MainTID] {
				if k, ok := c.control.(ControlKont); ok {
					res = m.lat.Join(res, k.V)
				}
			}
			if m.lat.IsBottom(res) {
				return nil, false
			}
			return res, true
		},
		errorOf: func(s concState) (SemanticError, bool) {
			for _, ctxs := range s.threads {
				for _, c := range ctxs {
					if e, ok := c.control.(ControlError); ok {
						return e.Err, true
					}
				}
			}
			return SemanticError{}, false
		},
		step:         m.step,
		refill:       m.refill,
		parallelSafe: false,
	})
}

func (m *ConcurrentAAM) RunSource(ctx context.Context, source string) (*Result, error) {
	program, err := m.sem.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	return m.Run(ctx, program), nil
}

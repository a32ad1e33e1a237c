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

// Message is an abstract actor message: a name and abstract arguments.
type Message struct {
	Name string
	Args []Value
}

func (msg Message) key() string {
	return fmt.Sprintf("%v%v", msg.Name, msg.Args)
}

// defaultActorBound is the number of actors kept apart per creation
// site before new creations fold into the last one.
const defaultActorBound = 1

// ActorAAM explores an actor program. Each actor is a triple of
// identifier, behavior set and mailbox; mailboxes are set-like lattice
// cells, so delivery is unordered and at-least-once. The value store
// and continuation store are global.
type ActorAAM struct {
	sem     ActorSemantics
	lat     Lattice
	alloc   Allocator
	tpolicy TimestampPolicy
	opts    Options
	bound   int

	store  Store
	kstore KontStore
	dirty  bool
	seen   []actorSysState
	keys   map[string]bool
}

// NewActorAAM builds the actor machine; bound is the number of actors
// per creation site (defaulted when zero or negative).
func NewActorAAM(sem ActorSemantics, lat Lattice, alloc Allocator, tpolicy TimestampPolicy, bound int, opts Options) *ActorAAM {
	if bound < 1 {
		bound = defaultActorBound
	}
	return &ActorAAM{sem: sem, lat: lat, alloc: alloc, tpolicy: tpolicy, bound: bound, opts: opts}
}

func (m *ActorAAM) Name() string {
	return "ActorAAM"
}

// actorCtx is the state of one actor: its behaviors, its mailbox, and
// its evaluation context while it processes a message. An actor with a
// nil control is idle, waiting for a message.
type actorCtx struct {
	behs    map[string]Behavior
	mailbox map[string]Message
	control Control
	kaddr   Address
	t       Timestamp
	dead    bool
}

func newActorCtx() actorCtx {
	return actorCtx{
		behs:    map[string]Behavior{},
		mailbox: map[string]Message{},
	}
}

func (c actorCtx) clone() actorCtx {
	nc := newActorCtx()
	for k, b := range c.behs {
		nc.behs[k] = b
	}
	for k, msg := range c.mailbox {
		nc.mailbox[k] = msg
	}
	nc.control = c.control
	nc.kaddr = c.kaddr
	nc.t = c.t
	nc.dead = c.dead
	return nc
}

func (c actorCtx) idle() bool {
	return c.control == nil && !c.dead
}

func (c actorCtx) key() string {
	behKeys := make([]string, 0, len(c.behs))
	for k := range c.behs {
		behKeys = append(behKeys, k)
	}
	sort.Strings(behKeys)
	msgKeys := make([]string, 0, len(c.mailbox))
	for k := range c.mailbox {
		msgKeys = append(msgKeys, k)
	}
	sort.Strings(msgKeys)
	ctl := "idle"
	if c.dead {
		ctl = "dead"
	} else if c.control != nil {
		ctl = fmt.Sprintf("%v|%v|%v", c.control, c.kaddr, c.t)
	}
	return fmt.Sprintf("%v/%v/%v", behKeys, msgKeys, ctl)
}

// actorSysState is one vertex of the actor system graph.
type actorSysState struct {
	actors map[PID]actorCtx
}

func newActorSysState() actorSysState {
	return actorSysState{actors: map[PID]actorCtx{}}
}

func (s actorSysState) clone() actorSysState {
	ns := newActorSysState()
	for pid, c := range s.actors {
		ns.actors[pid] = c.clone()
	}
	return ns
}

func (s actorSysState) sortedPids() []PID {
	pids := make([]PID, 0, len(s.actors))
	for pid := range s.actors {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i].String() < pids[j].String() })
	return pids
}

func (s actorSysState) descriptor() string {
	var parts []string
	for _, pid := range s.sortedPids() {
		parts = append(parts, fmt.Sprintf("%v=%v", pid, s.actors[pid].key()))
	}
	return fmt.Sprintf("%v", parts)
}

// rootPID runs the program's top-level expression.
var rootPID = PID{Site: "main"}

func (m *ActorAAM) initialState(program Exp) actorSysState {
	t0 := m.tpolicy.Zero()
	env, store := m.sem.Initial(m.alloc, t0)
	m.store = store
	m.kstore = NewKontStore()
	m.dirty = false
	m.seen = nil
	m.keys = map[string]bool{}
	s := newActorSysState()
	root := newActorCtx()
	root.control = ControlEval{Exp: program, Env: env}
	root.kaddr = HaltAddress{}
	root.t = t0
	s.actors[rootPID] = root
	return s
}

func (m *ActorAAM) absorb(out Store) {
	if m.store.joinInPlace(out) {
		m.dirty = true
	}
}

func (m *ActorAAM) remember(s actorSysState) {
	key := s.descriptor()
	if !m.keys[key] {
		m.keys[key] = true
		m.seen = append(m.seen, s)
	}
}

// halted: every live actor is idle with nothing it can still handle,
// and the root has finished. Idle actors with messages they may handle
// keep the system live.
func (m *ActorAAM) halted(s actorSysState) bool {
	for _, pid := range s.sortedPids() {
		c := s.actors[pid]
		if c.dead {
			continue
		}
		if c.control != nil {
			if _, isErr := c.control.(ControlError); isErr {
				continue
			}
			if pid == rootPID && rootHalted(c) {
				continue
			}
			return false
		}
		if 0 < len(c.mailbox) && 0 < len(c.behs) {
			return false
		}
	}
	return true
}

func rootHalted(c actorCtx) bool {
	switch c.control.(type) {
	case ControlError:
		return true
	case ControlKont:
		return c.kaddr == Address(HaltAddress{})
	}
	return false
}

func (m *ActorAAM) step(s actorSysState) []actorSysState {
	m.remember(s)
	var res []actorSysState
	for _, pid := range s.sortedPids() {
		c := s.actors[pid]
		if c.dead {
			continue
		}
		if c.control != nil {
			if _, isErr := c.control.(ControlError); isErr {
				continue
			}
			if pid == rootPID && rootHalted(c) {
				continue
			}
			res = append(res, m.stepEvaluating(s, pid, c)...)
			continue
		}
		// Idle: the actor may handle every message its mailbox may
		// contain, with every behavior it may have.
		res = append(res, m.stepReceives(s, pid, c)...)
	}
	return res
}

func (m *ActorAAM) stepEvaluating(s actorSysState, pid PID, c actorCtx) []actorSysState {
	switch ctl := c.control.(type) {
	case ControlEval:
		return m.applyActions(s, pid, c, c.kaddr, m.sem.StepEval(ctl.Exp, ctl.Env, m.store, c.t))
	case ControlKont:
		if c.kaddr == Address(HaltAddress{}) {
			// A finished message turn returns the actor to idle.
			if pid == rootPID {
				return nil
			}
			nc := c.clone()
			nc.control = nil
			return []actorSysState{withActor(s, pid, nc)}
		}
		var res []actorSysState
		for _, k := range m.kstore.Lookup(c.kaddr) {
			res = append(res, m.applyActions(s, pid, c, k.Next, m.sem.StepKont(ctl.V, k.Frame, m.store, c.t))...)
		}
		return res
	}
	return nil
}

func (m *ActorAAM) stepReceives(s actorSysState, pid PID, c actorCtx) []actorSysState {
	var res []actorSysState
	msgKeys := make([]string, 0, len(c.mailbox))
	for k := range c.mailbox {
		msgKeys = append(msgKeys, k)
	}
	sort.Strings(msgKeys)
	behKeys := make([]string, 0, len(c.behs))
	for k := range c.behs {
		behKeys = append(behKeys, k)
	}
	sort.Strings(behKeys)
	for _, mk := range msgKeys {
		msg := c.mailbox[mk]
		for _, bk := range behKeys {
			beh := c.behs[bk]
			acts := m.sem.StepReceive(pid, beh, msg.Name, msg.Args, m.store, c.t)
			// The message stays in the mailbox: delivery is
			// at-least-once over a set-like cell.
			res = append(res, m.applyActions(s, pid, c, HaltAddress{}, acts)...)
		}
	}
	return res
}

func withActor(s actorSysState, pid PID, nc actorCtx) actorSysState {
	ns := s.clone()
	ns.actors[pid] = nc
	return ns
}

func (m *ActorAAM) applyActions(s actorSysState, pid PID, c actorCtx, popTo Address, acts []Action) []actorSysState {
	var res []actorSysState
	for _, act := range acts {
		res = append(res, m.applyAction(s, pid, c, popTo, act)...)
	}
	return res
}

func (m *ActorAAM) applyAction(s actorSysState, pid PID, c actorCtx, popTo Address, act Action) []actorSysState {
	newCtx := func(ctl Control, kaddr Address, t Timestamp) actorSysState {
		nc := c.clone()
		nc.control = ctl
		nc.kaddr = kaddr
		nc.t = t
		return withActor(s, pid, nc)
	}
	switch a := act.(type) {
	case ActionReachedValue:
		m.absorb(a.Store)
		return []actorSysState{newCtx(ControlKont{V: a.V}, popTo, c.t.Tick(nil))}
	case ActionPush:
		m.absorb(a.Store)
		ak := m.alloc.Kont(a.E, c.t)
		if m.kstore.extendInPlace(ak, Kont{Frame: a.Frame, Next: popTo}) {
			m.dirty = true
		}
		return []actorSysState{newCtx(ControlEval{Exp: a.E, Env: a.Env}, ak, c.t.Tick(a.E))}
	case ActionEval:
		m.absorb(a.Store)
		return []actorSysState{newCtx(ControlEval{Exp: a.E, Env: a.Env}, popTo, c.t.Tick(a.E))}
	case ActionStepIn:
		m.absorb(a.Store)
		return []actorSysState{newCtx(ControlEval{Exp: a.Body, Env: a.Env}, popTo, c.t.TickCall(a.Fexp))}
	case ActionError:
		return []actorSysState{newCtx(ControlError{Err: a.Err}, popTo, c.t)}
	case ActionCreate:
		m.absorb(a.Store)
		pidNew, merged := m.allocPID(s, a.E, c.t)
		ns := s.clone()
		child, ok := ns.actors[pidNew]
		if !ok || !merged {
			child = newActorCtx()
			child.t = m.tpolicy.Zero()
		}
		child.behs[a.Beh.key()] = a.Beh
		ns.actors[pidNew] = child
		nc := ns.actors[pid].clone()
		nc.control = ControlKont{V: m.lat.InjectPid(pidNew)}
		nc.kaddr = popTo
		nc.t = c.t.Tick(nil)
		ns.actors[pid] = nc
		return []actorSysState{ns}
	case ActionSend:
		m.absorb(a.Store)
		targets := m.lat.Pids(a.To)
		if len(targets) == 0 {
			err := NewSemanticError(TypeError, "send to a non-actor value")
			return []actorSysState{newCtx(ControlError{Err: err}, popTo, c.t)}
		}
		msg := Message{Name: a.Message, Args: a.Args}
		var res []actorSysState
		for _, succ := range m.applyAction(s, pid, c, popTo, a.Cont) {
			ns := succ.clone()
			for _, to := range targets {
				tc, ok := ns.actors[to]
				if !ok || tc.dead {
					continue
				}
				ntc := tc.clone()
				ntc.mailbox[msg.key()] = msg
				ns.actors[to] = ntc
			}
			res = append(res, ns)
		}
		return res
	case ActionBecome:
		m.absorb(a.Store)
		nc := c.clone()
		nc.behs = map[string]Behavior{a.Beh.key(): a.Beh}
		// Become ends the current turn.
		nc.control = nil
		return []actorSysState{withActor(s, pid, nc)}
	case ActionTerminate:
		nc := c.clone()
		nc.dead = true
		nc.control = nil
		nc.mailbox = map[string]Message{}
		return []actorSysState{withActor(s, pid, nc)}
	default:
		err := NewSemanticError(NotSupported, "thread action on an actor machine")
		return []actorSysState{newCtx(ControlError{Err: err}, popTo, c.t)}
	}
}

// allocPID allocates an actor identifier bounded per creation site.
// The boolean reports whether the identifier folds into an existing
// actor.
func (m *ActorAAM) allocPID(s actorSysState, e Exp, t Timestamp) (PID, bool) {
	site := e.Pos().String()
	ctx := t.String()
	used := 0
	for pid := range s.actors {
		if pid.Site == site && pid.Ctx == ctx {
			used++
		}
	}
	if used < m.bound {
		return PID{Site: site, Ctx: ctx, Idx: used}, false
	}
	return PID{Site: site, Ctx: ctx, Idx: m.bound - 1}, true
}

func (m *ActorAAM) refill() []actorSysState {
	if !m.dirty {
		return nil
	}
	m.dirty = false
	return append([]actorSysState{}, m.seen...)
}

func (m *ActorAAM) Run(ctx context.Context, program Exp) *Result {
	return explore(ctx, m.opts, m.lat, []actorSysState{m.initialState(program)}, exploration[actorSysState]{
		descriptor: actorSysState.descriptor,
		label: func(s actorSysState) string {
			return fmt.Sprintf("actors:%v", len(s.actors))
		},
		halted: m.halted,
		finalValue: func(s actorSysState) (Value, bool) {
			c, ok := s.actors[rootPID]
			if !ok {
				return nil, false
			}
			if k, isKont := c.control.(ControlKont); isKont && rootHalted(c) {
				return k.V, true
			}
			return nil, false
		},
		errorOf: func(s actorSysState) (SemanticError, bool) {
			for _, pid := range s.sortedPids() {
				if e, ok := s.actors[pid].control.(ControlError); ok {
					return e.Err, true
				}
			}
			return SemanticError{}, false
		},
		step:         m.step,
		refill:       m.refill,
		parallelSafe: false,
	})
}

func (m *ActorAAM) RunSource(ctx context.Context, source string) (*Result, error) {
	program, err := m.sem.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	return m.Run(ctx, program), nil
}

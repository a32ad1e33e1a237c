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

package scheme

import (
	"fmt"

	"github.com/practical-formal-methods/spelt/machine"
)

// Semantics is the Scheme language plug-in: it compiles programs and
// produces the machine actions for every control point. It is pure;
// all stores it returns travel inside actions.
type Semantics struct {
	lat   machine.Lattice
	alloc machine.Allocator
	prims map[string]Primitive
}

// NewSemantics builds the semantics over a lattice and an address
// allocation policy.
func NewSemantics(lat machine.Lattice, alloc machine.Allocator) *Semantics {
	return &Semantics{
		lat:   lat,
		alloc: alloc,
		prims: primitiveTable(),
	}
}

func (s *Semantics) Parse(source string) (machine.Exp, error) {
	return Parse(source)
}

// Initial binds every primitive in the global environment.
func (s *Semantics) Initial(alloc machine.Allocator, t machine.Timestamp) (machine.Env, machine.Store) {
	env := machine.EmptyEnv()
	store := machine.NewStore(s.lat)
	binds := make([]machine.Binding, 0, len(s.prims))
	for name := range s.prims {
		a := alloc.Primitive(name)
		binds = append(binds, machine.Binding{Name: name, Addr: a})
		store = store.Extend(a, s.lat.InjectPrimitive(name))
	}
	return env.ExtendAll(binds), store
}

func errAction(kind machine.ErrorKind, msg string) machine.Action {
	return machine.ActionError{Err: machine.NewSemanticError(kind, msg)}
}

func one(act machine.Action) []machine.Action {
	return []machine.Action{act}
}

// StepEval produces the actions for evaluating an expression.
func (s *Semantics) StepEval(e machine.Exp, env machine.Env, store machine.Store, t machine.Timestamp) []machine.Action {
	switch exp := e.(type) {
	case Var:
		addr, ok := env.Lookup(exp.Name)
		if !ok {
			return one(errAction(machine.UnboundVariable, exp.Name))
		}
		v, ok := store.Lookup(addr)
		if !ok {
			return one(errAction(machine.UnboundAddress, addr.String()))
		}
		return one(machine.ActionReachedValue{
			V:     v,
			Store: store,
			Effs:  machine.Effects(machine.Effect{Kind: machine.ReadVar, Addr: addr}),
		})
	case Num:
		return one(machine.ActionReachedValue{V: s.lat.InjectInt(exp.Val), Store: store})
	case Flo:
		return one(machine.ActionReachedValue{V: s.lat.InjectFloat(exp.Val), Store: store})
	case Bool:
		return one(machine.ActionReachedValue{V: s.lat.InjectBool(exp.Val), Store: store})
	case Str:
		return one(machine.ActionReachedValue{V: s.lat.InjectString(exp.Val), Store: store})
	case Char:
		return one(machine.ActionReachedValue{V: s.lat.InjectChar(exp.Val), Store: store})
	case Sym:
		return one(machine.ActionReachedValue{V: s.lat.InjectSymbol(exp.Name), Store: store})
	case Nil:
		return one(machine.ActionReachedValue{V: s.lat.InjectNil(), Store: store})
	case Lambda:
		return one(machine.ActionReachedValue{V: s.lat.InjectClosure(exp, env), Store: store})
	case If:
		return one(machine.ActionPush{
			Frame: FrameIf{Cons: exp.Cons, Alt: exp.Alt, Env: env},
			E:     exp.Cond,
			Env:   env,
			Store: store,
		})
	case Let:
		if len(exp.Bindings) == 0 {
			return one(machine.ActionEval{E: exp.Body, Env: env, Store: store})
		}
		return one(machine.ActionPush{
			Frame: FrameLet{Bindings: exp.Bindings, Body: exp.Body, Env: env},
			E:     exp.Bindings[0].Init,
			Env:   env,
			Store: store,
		})
	case LetStar:
		if len(exp.Bindings) == 0 {
			return one(machine.ActionEval{E: exp.Body, Env: env, Store: store})
		}
		return one(machine.ActionPush{
			Frame: FrameLetStar{Name: exp.Bindings[0].Name, Rest: exp.Bindings[1:], Body: exp.Body, Env: env},
			E:     exp.Bindings[0].Init,
			Env:   env,
			Store: store,
		})
	case Letrec:
		if len(exp.Bindings) == 0 {
			return one(machine.ActionEval{E: exp.Body, Env: env, Store: store})
		}
		// Allocate every address first so inits see all bindings.
		binds := make([]machine.Binding, 0, len(exp.Bindings))
		lrbs := make([]letrecBinding, 0, len(exp.Bindings))
		nstore := store
		for _, b := range exp.Bindings {
			addr := s.alloc.Variable(machine.Identifier{Name: b.Name, Pos: exp.Pos()}, s.lat.Bottom(), t)
			binds = append(binds, machine.Binding{Name: b.Name, Addr: addr})
			lrbs = append(lrbs, letrecBinding{Addr: addr, Init: b.Init})
			nstore = nstore.Extend(addr, s.lat.Bottom())
		}
		nenv := env.ExtendAll(binds)
		return one(machine.ActionPush{
			Frame: FrameLetrec{Addr: lrbs[0].Addr, Rest: lrbs[1:], Body: exp.Body, Env: nenv},
			E:     lrbs[0].Init,
			Env:   nenv,
			Store: nstore,
		})
	case Set:
		addr, ok := env.Lookup(exp.Name)
		if !ok {
			return one(errAction(machine.UnboundVariable, exp.Name))
		}
		return one(machine.ActionPush{
			Frame: FrameSet{Name: exp.Name, Addr: addr},
			E:     exp.Init,
			Env:   env,
			Store: store,
		})
	case Begin:
		switch len(exp.Body) {
		case 0:
			return one(machine.ActionReachedValue{V: s.lat.InjectBool(false), Store: store})
		case 1:
			return one(machine.ActionEval{E: exp.Body[0], Env: env, Store: store})
		default:
			return one(machine.ActionPush{
				Frame: FrameBegin{Rest: exp.Body[1:], Env: env},
				E:     exp.Body[0],
				Env:   env,
				Store: store,
			})
		}
	case And:
		if len(exp.Exps) == 0 {
			return one(machine.ActionReachedValue{V: s.lat.InjectBool(true), Store: store})
		}
		return one(machine.ActionPush{
			Frame: FrameAnd{Rest: exp.Exps[1:], Env: env},
			E:     exp.Exps[0],
			Env:   env,
			Store: store,
		})
	case Or:
		if len(exp.Exps) == 0 {
			return one(machine.ActionReachedValue{V: s.lat.InjectBool(false), Store: store})
		}
		return one(machine.ActionPush{
			Frame: FrameOr{Rest: exp.Exps[1:], Env: env},
			E:     exp.Exps[0],
			Env:   env,
			Store: store,
		})
	case App:
		return one(machine.ActionPush{
			Frame: FrameOperator{Fexp: e, Operands: exp.Operands, Env: env},
			E:     exp.Operator,
			Env:   env,
			Store: store,
		})
	case Spawn:
		tid := machine.TID{Site: exp.E.Pos().String(), Ctx: t.String()}
		return one(machine.ActionSpawn{
			Tid:   tid,
			E:     exp.E,
			Env:   env,
			Store: store,
			Cont:  machine.ActionReachedValue{V: s.lat.InjectTid(tid), Store: store},
		})
	case Join:
		return one(machine.ActionPush{
			Frame: FrameJoin{Fexp: e},
			E:     exp.E,
			Env:   env,
			Store: store,
		})
	case NewLock:
		addr := machine.CellAddress{Pos: e.Pos(), Tag: "lock", Ctx: t.String()}
		nstore := store.Extend(addr, s.lat.InjectBool(false))
		return one(machine.ActionReachedValue{V: s.lat.InjectLock(addr), Store: nstore})
	case Acquire:
		return one(machine.ActionPush{Frame: FrameAcquire{Fexp: e}, E: exp.E, Env: env, Store: store})
	case Release:
		return one(machine.ActionPush{Frame: FrameRelease{Fexp: e}, E: exp.E, Env: env, Store: store})
	case ActorExp:
		return one(machine.ActionReachedValue{
			V:     s.lat.InjectBehavior(machine.Behavior{Act: exp, Env: env}),
			Store: store,
		})
	case Create:
		return one(machine.ActionPush{
			Frame: FrameCreateBeh{Fexp: e, Args: exp.Args, Env: env},
			E:     exp.Beh,
			Env:   env,
			Store: store,
		})
	case Send:
		return one(machine.ActionPush{
			Frame: FrameSendTarget{Fexp: e, Message: exp.Message, Args: exp.Args, Env: env},
			E:     exp.Target,
			Env:   env,
			Store: store,
		})
	case Become:
		return one(machine.ActionPush{
			Frame: FrameBecomeBeh{Fexp: e, Args: exp.Args, Env: env},
			E:     exp.Beh,
			Env:   env,
			Store: store,
		})
	case Terminate:
		return one(machine.ActionTerminate{})
	default:
		return one(errAction(machine.NotSupported, fmt.Sprintf("expression %v", e)))
	}
}

// StepKont produces the actions for returning a value to a frame.
func (s *Semantics) StepKont(v machine.Value, f machine.Frame, store machine.Store, t machine.Timestamp) []machine.Action {
	switch fr := f.(type) {
	case FrameIf:
		var acts []machine.Action
		if s.lat.IsTrue(v) {
			acts = append(acts, machine.ActionEval{E: fr.Cons, Env: fr.Env, Store: store})
		}
		if s.lat.IsFalse(v) {
			acts = append(acts, machine.ActionEval{E: fr.Alt, Env: fr.Env, Store: store})
		}
		if len(acts) == 0 && s.lat.IsError(v) {
			for _, err := range s.lat.Errors(v) {
				acts = append(acts, machine.ActionError{Err: err})
			}
		}
		return acts
	case FrameLet:
		done := append(append([]machine.Value{}, fr.Done...), v)
		if len(done) < len(fr.Bindings) {
			return one(machine.ActionPush{
				Frame: FrameLet{Bindings: fr.Bindings, Done: done, Body: fr.Body, Env: fr.Env},
				E:     fr.Bindings[len(done)].Init,
				Env:   fr.Env,
				Store: store,
			})
		}
		env := fr.Env
		nstore := store
		effs := machine.NoEffects()
		for i, b := range fr.Bindings {
			addr := s.alloc.Variable(machine.Identifier{Name: b.Name, Pos: b.Init.Pos()}, done[i], t)
			env = env.Extend(b.Name, addr)
			nstore = nstore.Extend(addr, done[i])
			effs = effs.Union(machine.Effects(machine.Effect{Kind: machine.WriteVar, Addr: addr}))
		}
		return one(machine.ActionEval{E: fr.Body, Env: env, Store: nstore, Effs: effs})
	case FrameLetStar:
		addr := s.alloc.Variable(machine.Identifier{Name: fr.Name, Pos: fr.Body.Pos()}, v, t)
		env := fr.Env.Extend(fr.Name, addr)
		nstore := store.Extend(addr, v)
		effs := machine.Effects(machine.Effect{Kind: machine.WriteVar, Addr: addr})
		if len(fr.Rest) == 0 {
			return one(machine.ActionEval{E: fr.Body, Env: env, Store: nstore, Effs: effs})
		}
		return one(machine.ActionPush{
			Frame: FrameLetStar{Name: fr.Rest[0].Name, Rest: fr.Rest[1:], Body: fr.Body, Env: env},
			E:     fr.Rest[0].Init,
			Env:   env,
			Store: nstore,
			Effs:  effs,
		})
	case FrameLetrec:
		nstore := store.Update(fr.Addr, v)
		effs := machine.Effects(machine.Effect{Kind: machine.WriteVar, Addr: fr.Addr})
		if len(fr.Rest) == 0 {
			return one(machine.ActionEval{E: fr.Body, Env: fr.Env, Store: nstore, Effs: effs})
		}
		return one(machine.ActionPush{
			Frame: FrameLetrec{Addr: fr.Rest[0].Addr, Rest: fr.Rest[1:], Body: fr.Body, Env: fr.Env},
			E:     fr.Rest[0].Init,
			Env:   fr.Env,
			Store: nstore,
			Effs:  effs,
		})
	case FrameSet:
		nstore := store.Update(fr.Addr, v)
		return one(machine.ActionReachedValue{
			V:     s.lat.InjectBool(false),
			Store: nstore,
			Effs:  machine.Effects(machine.Effect{Kind: machine.WriteVar, Addr: fr.Addr}),
		})
	case FrameBegin:
		if len(fr.Rest) == 1 {
			return one(machine.ActionEval{E: fr.Rest[0], Env: fr.Env, Store: store})
		}
		return one(machine.ActionPush{
			Frame: FrameBegin{Rest: fr.Rest[1:], Env: fr.Env},
			E:     fr.Rest[0],
			Env:   fr.Env,
			Store: store,
		})
	case FrameAnd:
		var acts []machine.Action
		if s.lat.IsFalse(v) {
			acts = append(acts, machine.ActionReachedValue{V: s.lat.InjectBool(false), Store: store})
		}
		if s.lat.IsTrue(v) {
			if len(fr.Rest) == 0 {
				acts = append(acts, machine.ActionReachedValue{V: v, Store: store})
			} else {
				acts = append(acts, machine.ActionPush{
					Frame: FrameAnd{Rest: fr.Rest[1:], Env: fr.Env},
					E:     fr.Rest[0],
					Env:   fr.Env,
					Store: store,
				})
			}
		}
		return acts
	case FrameOr:
		var acts []machine.Action
		if s.lat.IsTrue(v) {
			acts = append(acts, machine.ActionReachedValue{V: v, Store: store})
		}
		if s.lat.IsFalse(v) {
			if len(fr.Rest) == 0 {
				acts = append(acts, machine.ActionReachedValue{V: s.lat.InjectBool(false), Store: store})
			} else {
				acts = append(acts, machine.ActionPush{
					Frame: FrameOr{Rest: fr.Rest[1:], Env: fr.Env},
					E:     fr.Rest[0],
					Env:   fr.Env,
					Store: store,
				})
			}
		}
		return acts
	case FrameOperator:
		if len(fr.Operands) == 0 {
			return s.apply(fr.Fexp, v, nil, store, t)
		}
		return one(machine.ActionPush{
			Frame: FrameOperands{F: v, Fexp: fr.Fexp, Rest: fr.Operands[1:], Env: fr.Env},
			E:     fr.Operands[0],
			Env:   fr.Env,
			Store: store,
		})
	case FrameOperands:
		done := append(append([]machine.Value{}, fr.Done...), v)
		if 0 < len(fr.Rest) {
			return one(machine.ActionPush{
				Frame: FrameOperands{F: fr.F, Fexp: fr.Fexp, Done: done, Rest: fr.Rest[1:], Env: fr.Env},
				E:     fr.Rest[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.apply(fr.Fexp, fr.F, done, store, t)
	case FrameJoin:
		return one(machine.ActionJoin{V: v, Store: store})
	case FrameAcquire:
		return s.stepAcquire(v, store)
	case FrameRelease:
		return s.stepRelease(v, store)
	case FrameCreateBeh:
		if 0 < len(fr.Args) {
			return one(machine.ActionPush{
				Frame: FrameCreateArgs{Fexp: fr.Fexp, Beh: v, Rest: fr.Args[1:], Env: fr.Env},
				E:     fr.Args[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.finishCreate(fr.Fexp, v, nil, store, t)
	case FrameCreateArgs:
		done := append(append([]machine.Value{}, fr.Done...), v)
		if 0 < len(fr.Rest) {
			return one(machine.ActionPush{
				Frame: FrameCreateArgs{Fexp: fr.Fexp, Beh: fr.Beh, Done: done, Rest: fr.Rest[1:], Env: fr.Env},
				E:     fr.Rest[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.finishCreate(fr.Fexp, fr.Beh, done, store, t)
	case FrameSendTarget:
		if 0 < len(fr.Args) {
			return one(machine.ActionPush{
				Frame: FrameSendArgs{Fexp: fr.Fexp, To: v, Message: fr.Message, Rest: fr.Args[1:], Env: fr.Env},
				E:     fr.Args[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.finishSend(v, fr.Message, nil, store)
	case FrameSendArgs:
		done := append(append([]machine.Value{}, fr.Done...), v)
		if 0 < len(fr.Rest) {
			return one(machine.ActionPush{
				Frame: FrameSendArgs{Fexp: fr.Fexp, To: fr.To, Message: fr.Message, Done: done, Rest: fr.Rest[1:], Env: fr.Env},
				E:     fr.Rest[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.finishSend(fr.To, fr.Message, done, store)
	case FrameBecomeBeh:
		if 0 < len(fr.Args) {
			return one(machine.ActionPush{
				Frame: FrameBecomeArgs{Fexp: fr.Fexp, Beh: v, Rest: fr.Args[1:], Env: fr.Env},
				E:     fr.Args[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.finishBecome(fr.Fexp, v, nil, store, t)
	case FrameBecomeArgs:
		done := append(append([]machine.Value{}, fr.Done...), v)
		if 0 < len(fr.Rest) {
			return one(machine.ActionPush{
				Frame: FrameBecomeArgs{Fexp: fr.Fexp, Beh: fr.Beh, Done: done, Rest: fr.Rest[1:], Env: fr.Env},
				E:     fr.Rest[0],
				Env:   fr.Env,
				Store: store,
			})
		}
		return s.finishBecome(fr.Fexp, fr.Beh, done, store, t)
	default:
		return one(errAction(machine.NotSupported, fmt.Sprintf("frame %v", f)))
	}
}

// apply dispatches an application over the closures and primitives a
// function value may denote.
func (s *Semantics) apply(fexp machine.Exp, f machine.Value, args []machine.Value, store machine.Store, t machine.Timestamp) []machine.Action {
	var acts []machine.Action
	for _, clo := range s.lat.Closures(f) {
		lam, ok := clo.Lam.(Lambda)
		if !ok {
			acts = append(acts, errAction(machine.TypeError, "closure over a non-lambda"))
			continue
		}
		if len(lam.Params) != len(args) {
			acts = append(acts, errAction(machine.ArityError,
				fmt.Sprintf("%v expects %v arguments, got %v", lam, len(lam.Params), len(args))))
			continue
		}
		env := clo.Env
		nstore := store
		effs := machine.NoEffects()
		for i, p := range lam.Params {
			addr := s.alloc.Variable(machine.Identifier{Name: p, Pos: lam.Pos()}, args[i], t)
			env = env.Extend(p, addr)
			nstore = nstore.Extend(addr, args[i])
			effs = effs.Union(machine.Effects(machine.Effect{Kind: machine.WriteVar, Addr: addr}))
		}
		acts = append(acts, machine.ActionStepIn{
			Fexp:  fexp,
			Clo:   clo,
			Body:  lam.Body,
			Env:   env,
			Store: nstore,
			Args:  args,
			Effs:  effs,
		})
	}
	for _, name := range s.lat.Primitives(f) {
		prim, ok := s.prims[name]
		if !ok {
			acts = append(acts, errAction(machine.NotSupported, name))
			continue
		}
		acts = append(acts, s.applyPrimitive(prim, fexp, args, store, t)...)
	}
	if len(acts) == 0 {
		acts = append(acts, errAction(machine.TypeError, fmt.Sprintf("cannot apply %v", f)))
	}
	return acts
}

// applyPrimitive lowers a primitive's MayFail outcome to actions.
func (s *Semantics) applyPrimitive(prim Primitive, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) []machine.Action {
	if len(args) < prim.MinArity || (0 <= prim.MaxArity && prim.MaxArity < len(args)) {
		if prim.MinArity == prim.MaxArity {
			return one(errAction(machine.ArityError,
				fmt.Sprintf("%v expects %v arguments, got %v", prim.Name, prim.MinArity, len(args))))
		}
		return one(errAction(machine.VariadicArityError,
			fmt.Sprintf("%v got %v arguments", prim.Name, len(args))))
	}
	ctx := PrimCtx{Lat: s.lat, Alloc: s.alloc}
	outcome := prim.Call(ctx, fexp, args, store, t)
	var acts []machine.Action
	for _, ok := range outcome.Successes() {
		acts = append(acts, machine.ActionReachedValue{V: ok.V, Store: ok.Store, Effs: ok.Effs})
	}
	for _, err := range outcome.Errors() {
		acts = append(acts, machine.ActionError{Err: err})
	}
	return acts
}

func (s *Semantics) stepAcquire(v machine.Value, store machine.Store) []machine.Action {
	locks := s.lat.Locks(v)
	if len(locks) == 0 {
		return one(errAction(machine.TypeError, "acquire on a non-lock value"))
	}
	var acts []machine.Action
	for _, la := range locks {
		cell, _ := store.Lookup(la)
		if !s.lat.IsFalse(cell) {
			// The lock may not be free; this branch blocks.
			continue
		}
		nstore := store.Update(la, s.lat.InjectBool(true))
		acts = append(acts, machine.ActionReachedValue{
			V:     s.lat.InjectBool(true),
			Store: nstore,
			Effs:  machine.Effects(machine.Effect{Kind: machine.Acquire, Addr: la}),
		})
	}
	return acts
}

func (s *Semantics) stepRelease(v machine.Value, store machine.Store) []machine.Action {
	locks := s.lat.Locks(v)
	if len(locks) == 0 {
		return one(errAction(machine.TypeError, "release on a non-lock value"))
	}
	var acts []machine.Action
	for _, la := range locks {
		nstore := store.Update(la, s.lat.InjectBool(false))
		acts = append(acts, machine.ActionReachedValue{
			V:     s.lat.InjectBool(true),
			Store: nstore,
			Effs:  machine.Effects(machine.Effect{Kind: machine.Release, Addr: la}),
		})
	}
	return acts
}

// instantiate binds a behavior's state parameters.
func (s *Semantics) instantiate(beh machine.Behavior, args []machine.Value, store machine.Store, t machine.Timestamp) (machine.Behavior, machine.Store, *machine.SemanticError) {
	ae, ok := beh.Act.(ActorExp)
	if !ok {
		err := machine.NewSemanticError(machine.TypeError, "behavior over a non-actor expression")
		return machine.Behavior{}, store, &err
	}
	if len(ae.StateParams) != len(args) {
		err := machine.NewSemanticError(machine.ArityError,
			fmt.Sprintf("behavior %v expects %v state arguments, got %v", ae, len(ae.StateParams), len(args)))
		return machine.Behavior{}, store, &err
	}
	env := beh.Env
	nstore := store
	for i, p := range ae.StateParams {
		addr := s.alloc.Variable(machine.Identifier{Name: p, Pos: ae.Pos()}, args[i], t)
		env = env.Extend(p, addr)
		nstore = nstore.Extend(addr, args[i])
	}
	return machine.Behavior{Act: ae, Env: env}, nstore, nil
}

func (s *Semantics) finishCreate(fexp machine.Exp, behVal machine.Value, args []machine.Value, store machine.Store, t machine.Timestamp) []machine.Action {
	behs := s.lat.Behaviors(behVal)
	if len(behs) == 0 {
		return one(errAction(machine.TypeError, "create on a non-behavior value"))
	}
	var acts []machine.Action
	for _, beh := range behs {
		inst, nstore, err := s.instantiate(beh, args, store, t)
		if err != nil {
			acts = append(acts, machine.ActionError{Err: *err})
			continue
		}
		acts = append(acts, machine.ActionCreate{Beh: inst, E: fexp, Store: nstore})
	}
	return acts
}

func (s *Semantics) finishSend(to machine.Value, message string, args []machine.Value, store machine.Store) []machine.Action {
	return one(machine.ActionSend{
		To:      to,
		Message: message,
		Args:    args,
		Store:   store,
		Cont:    machine.ActionReachedValue{V: s.lat.InjectBool(true), Store: store},
	})
}

func (s *Semantics) finishBecome(fexp machine.Exp, behVal machine.Value, args []machine.Value, store machine.Store, t machine.Timestamp) []machine.Action {
	behs := s.lat.Behaviors(behVal)
	if len(behs) == 0 {
		return one(errAction(machine.TypeError, "become on a non-behavior value"))
	}
	var acts []machine.Action
	for _, beh := range behs {
		inst, nstore, err := s.instantiate(beh, args, store, t)
		if err != nil {
			acts = append(acts, machine.ActionError{Err: *err})
			continue
		}
		acts = append(acts, machine.ActionBecome{Beh: inst, Store: nstore})
	}
	return acts
}

// StepReceive dispatches a mailbox message to the matching handler of
// a behavior, by name and with an arity check.
func (s *Semantics) StepReceive(self machine.PID, beh machine.Behavior, message string, args []machine.Value, store machine.Store, t machine.Timestamp) []machine.Action {
	ae, ok := beh.Act.(ActorExp)
	if !ok {
		return one(errAction(machine.TypeError, "behavior over a non-actor expression"))
	}
	for _, h := range ae.Handlers {
		if h.Name != message {
			continue
		}
		if len(h.Params) != len(args) {
			return one(errAction(machine.ArityError,
				fmt.Sprintf("handler %v of %v expects %v arguments, got %v", h.Name, ae, len(h.Params), len(args))))
		}
		sb := s.selfAddr(self, store, t)
		env := beh.Env.Extend("self", sb.Addr)
		nstore := sb.Store
		for i, p := range h.Params {
			addr := s.alloc.Variable(machine.Identifier{Name: p, Pos: h.Body.Pos()}, args[i], t)
			env = env.Extend(p, addr)
			nstore = nstore.Extend(addr, args[i])
		}
		return one(machine.ActionEval{E: h.Body, Env: env, Store: nstore})
	}
	return one(errAction(machine.MessageNotSupported, message))
}

// selfBinding is the cell holding the current actor's own identifier.
type selfBinding struct {
	Addr  machine.Address
	Store machine.Store
}

func (s *Semantics) selfAddr(self machine.PID, store machine.Store, t machine.Timestamp) selfBinding {
	id := machine.Identifier{Name: "self", Pos: machine.Position{}}
	addr := s.alloc.Variable(id, s.lat.InjectPid(self), t)
	return selfBinding{Addr: addr, Store: store.Extend(addr, s.lat.InjectPid(self))}
}

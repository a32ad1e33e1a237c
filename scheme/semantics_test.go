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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practical-formal-methods/spelt/machine"
)

func testSemantics() (*Semantics, machine.Lattice, machine.Env, machine.Store, machine.Timestamp) {
	lat := machine.NewConcreteLattice(false)
	alloc := machine.ClassicalAllocator{}
	sem := NewSemantics(lat, alloc)
	t0 := machine.KCFA{K: 0}.Zero()
	env, store := sem.Initial(alloc, t0)
	return sem, lat, env, store, t0
}

func parseOne(t *testing.T, src string) machine.Exp {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err)
	return e
}

func TestStepEvalLiteral(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	acts := sem.StepEval(parseOne(t, `42`), env, store, t0)
	require.Len(t, acts, 1)
	rv, ok := acts[0].(machine.ActionReachedValue)
	require.True(t, ok)
	assert.True(t, lat.Subsumes(rv.V, lat.InjectInt(42)))
}

func TestStepEvalVariableReadsTheStore(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	acts := sem.StepEval(parseOne(t, `+`), env, store, t0)
	require.Len(t, acts, 1)
	rv, ok := acts[0].(machine.ActionReachedValue)
	require.True(t, ok)
	assert.Equal(t, []string{"+"}, lat.Primitives(rv.V))
	assert.NotEmpty(t, rv.Effects(), "variable references carry a read effect")
}

func TestStepEvalUnboundVariable(t *testing.T) {
	sem, _, env, store, t0 := testSemantics()
	acts := sem.StepEval(parseOne(t, `nope`), env, store, t0)
	require.Len(t, acts, 1)
	errAct, ok := acts[0].(machine.ActionError)
	require.True(t, ok)
	assert.Equal(t, machine.UnboundVariable, errAct.Err.Kind)
}

func TestStepEvalLambdaMakesAClosure(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	acts := sem.StepEval(parseOne(t, `(lambda (x) x)`), env, store, t0)
	require.Len(t, acts, 1)
	rv := acts[0].(machine.ActionReachedValue)
	require.Len(t, lat.Closures(rv.V), 1)
}

func TestStepEvalApplicationPushesOperatorFrame(t *testing.T) {
	sem, _, env, store, t0 := testSemantics()
	acts := sem.StepEval(parseOne(t, `(+ 1 2)`), env, store, t0)
	require.Len(t, acts, 1)
	push, ok := acts[0].(machine.ActionPush)
	require.True(t, ok)
	_, ok = push.Frame.(FrameOperator)
	assert.True(t, ok)
	assert.Equal(t, "+", push.E.String())
}

func TestStepKontIfBranchesOnBothTruths(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	frame := FrameIf{
		Cons: parseOne(t, `1`),
		Alt:  parseOne(t, `2`),
		Env:  env,
	}
	both := lat.Join(lat.InjectBool(true), lat.InjectBool(false))
	acts := sem.StepKont(both, frame, store, t0)
	require.Len(t, acts, 2)

	acts = sem.StepKont(lat.InjectBool(true), frame, store, t0)
	require.Len(t, acts, 1)
	ev := acts[0].(machine.ActionEval)
	assert.Equal(t, "1", ev.E.String())
}

func TestApplyPrimitiveThroughFrames(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	plus, _ := store.Lookup(machine.PrimitiveAddress{Name: "+"})
	frame := FrameOperands{
		F:    plus,
		Fexp: parseOne(t, `(+ 1 2)`),
		Done: []machine.Value{lat.InjectInt(1)},
		Env:  env,
	}
	acts := sem.StepKont(lat.InjectInt(2), frame, store, t0)
	require.Len(t, acts, 1)
	rv, ok := acts[0].(machine.ActionReachedValue)
	require.True(t, ok)
	assert.True(t, lat.Subsumes(rv.V, lat.InjectInt(3)))
}

func TestApplyClosureChecksArity(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	lam := parseOne(t, `(lambda (x y) x)`)
	clo := lat.InjectClosure(lam, env)
	acts := sem.apply(parseOne(t, `(f 1)`), clo, []machine.Value{lat.InjectInt(1)}, store, t0)
	require.Len(t, acts, 1)
	errAct, ok := acts[0].(machine.ActionError)
	require.True(t, ok)
	assert.Equal(t, machine.ArityError, errAct.Err.Kind)
}

func TestApplyNonProcedure(t *testing.T) {
	sem, lat, _, store, t0 := testSemantics()
	acts := sem.apply(parseOne(t, `(3 4)`), lat.InjectInt(3), []machine.Value{lat.InjectInt(4)}, store, t0)
	require.Len(t, acts, 1)
	errAct, ok := acts[0].(machine.ActionError)
	require.True(t, ok)
	assert.Equal(t, machine.TypeError, errAct.Err.Kind)
}

func TestPrimitiveArityIsChecked(t *testing.T) {
	sem, lat, env, store, t0 := testSemantics()
	car, _ := store.Lookup(machine.PrimitiveAddress{Name: "car"})
	frame := FrameOperands{
		F:    car,
		Fexp: parseOne(t, `(car 1 2)`),
		Done: []machine.Value{lat.InjectInt(1)},
		Env:  env,
	}
	acts := sem.StepKont(lat.InjectInt(2), frame, store, t0)
	require.Len(t, acts, 1)
	errAct, ok := acts[0].(machine.ActionError)
	require.True(t, ok)
	assert.Equal(t, machine.ArityError, errAct.Err.Kind)
}

func TestConsCarRoundTrip(t *testing.T) {
	sem, lat, _, store, t0 := testSemantics()
	ctx := PrimCtx{Lat: lat, Alloc: machine.ClassicalAllocator{}}
	fexp := parseOne(t, `(cons 1 2)`)

	consRes := sem.prims["cons"].Call(ctx, fexp, []machine.Value{lat.InjectInt(1), lat.InjectInt(2)}, store, t0)
	require.Len(t, consRes.Successes(), 1)
	pair := consRes.Successes()[0]

	carRes := sem.prims["car"].Call(ctx, fexp, []machine.Value{pair.V}, pair.Store, t0)
	require.Len(t, carRes.Successes(), 1)
	assert.True(t, lat.Subsumes(carRes.Successes()[0].V, lat.InjectInt(1)))
	assert.NotEmpty(t, carRes.Successes()[0].Effs)

	cdrRes := sem.prims["cdr"].Call(ctx, fexp, []machine.Value{pair.V}, pair.Store, t0)
	require.Len(t, cdrRes.Successes(), 1)
	assert.True(t, lat.Subsumes(cdrRes.Successes()[0].V, lat.InjectInt(2)))
}

func TestMinusIsSubtraction(t *testing.T) {
	sem, lat, _, store, t0 := testSemantics()
	ctx := PrimCtx{Lat: lat, Alloc: machine.ClassicalAllocator{}}
	res := sem.prims["-"].Call(ctx, parseOne(t, `(- 7 2)`),
		[]machine.Value{lat.InjectInt(7), lat.InjectInt(2)}, store, t0)
	require.Len(t, res.Successes(), 1)
	assert.True(t, lat.Subsumes(res.Successes()[0].V, lat.InjectInt(5)))
	assert.False(t, lat.Subsumes(res.Successes()[0].V, lat.InjectInt(9)))
}

func TestErrorPrimitiveCarriesThePosition(t *testing.T) {
	sem, lat, _, store, t0 := testSemantics()
	ctx := PrimCtx{Lat: lat, Alloc: machine.ClassicalAllocator{}}
	fexp := parseOne(t, `(error "boom")`)
	res := sem.prims["error"].Call(ctx, fexp, []machine.Value{lat.InjectString("boom")}, store, t0)
	require.Empty(t, res.Successes())
	require.Len(t, res.Errors(), 1)
	assert.Equal(t, machine.UserError, res.Errors()[0].Kind)
	assert.Equal(t, fexp.Pos(), res.Errors()[0].Pos)
}

func TestStepReceiveDispatchesByName(t *testing.T) {
	sem, lat, _, store, t0 := testSemantics()
	ae := parseOne(t, `(actor () (ping (x) x))`).(ActorExp)
	beh := machine.Behavior{Act: ae, Env: machine.EmptyEnv()}
	self := machine.PID{Site: "here"}

	acts := sem.StepReceive(self, beh, "ping", []machine.Value{lat.InjectInt(1)}, store, t0)
	require.Len(t, acts, 1)
	_, ok := acts[0].(machine.ActionEval)
	assert.True(t, ok)

	acts = sem.StepReceive(self, beh, "pong", nil, store, t0)
	require.Len(t, acts, 1)
	errAct, ok := acts[0].(machine.ActionError)
	require.True(t, ok)
	assert.Equal(t, machine.MessageNotSupported, errAct.Err.Kind)

	acts = sem.StepReceive(self, beh, "ping", nil, store, t0)
	errAct, ok = acts[0].(machine.ActionError)
	require.True(t, ok)
	assert.Equal(t, machine.ArityError, errAct.Err.Kind)
}

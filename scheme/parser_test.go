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
)

func TestParseDefinesBecomeLetrec(t *testing.T) {
	e, err := Parse(`
(define (f x) (+ x 1))
(define y 2)
(f y)`)
	require.NoError(t, err)
	lr, ok := e.(Letrec)
	require.True(t, ok, "top-level defines compile to a letrec, got %T", e)
	require.Len(t, lr.Bindings, 2)
	assert.Equal(t, "f", lr.Bindings[0].Name)
	_, isLambda := lr.Bindings[0].Init.(Lambda)
	assert.True(t, isLambda, "define with a header compiles to a lambda")
	assert.Equal(t, "y", lr.Bindings[1].Name)
	_, isApp := lr.Body.(App)
	assert.True(t, isApp)
}

func TestParseNamedLet(t *testing.T) {
	e, err := Parse(`(let loop ((n 5)) (if (= n 0) 0 (loop (- n 1))))`)
	require.NoError(t, err)
	lr, ok := e.(Letrec)
	require.True(t, ok)
	require.Len(t, lr.Bindings, 1)
	assert.Equal(t, "loop", lr.Bindings[0].Name)
	call, ok := lr.Body.(App)
	require.True(t, ok)
	assert.Equal(t, "loop", call.Operator.String())
}

func TestParseCondDesugarsToIfs(t *testing.T) {
	e, err := Parse(`(cond ((= x 1) 1) ((= x 2) 2) (else 3))`)
	require.NoError(t, err)
	top, ok := e.(If)
	require.True(t, ok)
	inner, ok := top.Alt.(If)
	require.True(t, ok)
	assert.Equal(t, "3", inner.Alt.String())
}

func TestParseQuotedListBuildsConses(t *testing.T) {
	e, err := Parse(`'(1 2)`)
	require.NoError(t, err)
	app, ok := e.(App)
	require.True(t, ok)
	assert.Equal(t, "cons", app.Operator.String())
	require.Len(t, app.Operands, 2)
	_, ok = app.Operands[1].(App)
	assert.True(t, ok, "the tail is the rest of the cons chain")
}

func TestParseQuotedSymbol(t *testing.T) {
	e, err := Parse(`'foo`)
	require.NoError(t, err)
	s, ok := e.(Sym)
	require.True(t, ok)
	assert.Equal(t, "foo", s.Name)
}

func TestParseIfWithoutAlternative(t *testing.T) {
	e, err := Parse(`(if #t 1)`)
	require.NoError(t, err)
	ifExp, ok := e.(If)
	require.True(t, ok)
	assert.Equal(t, "#f", ifExp.Alt.String())
}

func TestParseActorForms(t *testing.T) {
	e, err := Parse(`(actor (st) (ping (x) (terminate)) (pong () (become b)))`)
	require.NoError(t, err)
	ae, ok := e.(ActorExp)
	require.True(t, ok)
	assert.Equal(t, []string{"st"}, ae.StateParams)
	require.Len(t, ae.Handlers, 2)
	assert.Equal(t, "ping", ae.Handlers[0].Name)
	assert.Equal(t, []string{"x"}, ae.Handlers[0].Params)
	assert.Equal(t, "pong", ae.Handlers[1].Name)
}

func TestParseConcurrencyForms(t *testing.T) {
	e, err := Parse(`(begin (spawn (f)) (join t) (new-lock) (acquire l) (release l))`)
	require.NoError(t, err)
	b, ok := e.(Begin)
	require.True(t, ok)
	require.Len(t, b.Body, 5)
	_, ok = b.Body[0].(Spawn)
	assert.True(t, ok)
	_, ok = b.Body[1].(Join)
	assert.True(t, ok)
	_, ok = b.Body[2].(NewLock)
	assert.True(t, ok)
	_, ok = b.Body[3].(Acquire)
	assert.True(t, ok)
	_, ok = b.Body[4].(Release)
	assert.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		``,
		`(if)`,
		`(lambda x x)`,
		`(let ((x)) x)`,
		`(set! 3 4)`,
		`(send a)`,
		`(define x 1)`,
	} {
		_, err := Parse(src)
		assert.Error(t, err, "program %q must not parse", src)
	}
}

func TestParsePositionsSurvive(t *testing.T) {
	e, err := Parse("(+ 1\n   2)")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Pos().Line)
	app := e.(App)
	assert.Equal(t, 2, app.Operands[1].Pos().Line)
}

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
	"strings"

	"github.com/practical-formal-methods/spelt/machine"
)

// The expression forms below are what the parser produces after
// desugaring: define blocks become letrec, cond becomes nested ifs,
// quoted lists become cons chains, and named let becomes a letrec of a
// lambda.

// Var is a variable reference.
type Var struct {
	Name string
	pos  machine.Position
}

func (e Var) Pos() machine.Position { return e.pos }
func (e Var) String() string        { return e.Name }

// Num is an integer literal.
type Num struct {
	Val int64
	pos machine.Position
}

func (e Num) Pos() machine.Position { return e.pos }
func (e Num) String() string        { return fmt.Sprintf("%v", e.Val) }

// Flo is a float literal.
type Flo struct {
	Val float64
	pos machine.Position
}

func (e Flo) Pos() machine.Position { return e.pos }
func (e Flo) String() string        { return fmt.Sprintf("%v", e.Val) }

// Bool is #t or #f.
type Bool struct {
	Val bool
	pos machine.Position
}

func (e Bool) Pos() machine.Position { return e.pos }
func (e Bool) String() string {
	if e.Val {
		return "#t"
	}
	return "#f"
}

// Str is a string literal.
type Str struct {
	Val string
	pos machine.Position
}

func (e Str) Pos() machine.Position { return e.pos }
func (e Str) String() string        { return fmt.Sprintf("%q", e.Val) }

// Char is a character literal.
type Char struct {
	Val rune
	pos machine.Position
}

func (e Char) Pos() machine.Position { return e.pos }
func (e Char) String() string        { return fmt.Sprintf("#\\%c", e.Val) }

// Sym is a quoted symbol.
type Sym struct {
	Name string
	pos  machine.Position
}

func (e Sym) Pos() machine.Position { return e.pos }
func (e Sym) String() string        { return "'" + e.Name }

// Nil is the quoted empty list.
type Nil struct {
	pos machine.Position
}

func (e Nil) Pos() machine.Position { return e.pos }
func (e Nil) String() string        { return "'()" }

// Lambda is a function literal with a fixed parameter list and an
// implicit-begin body.
type Lambda struct {
	Params []string
	Body   machine.Exp
	pos    machine.Position
}

func (e Lambda) Pos() machine.Position { return e.pos }
func (e Lambda) String() string {
	return fmt.Sprintf("(lambda (%v) %v)", strings.Join(e.Params, " "), e.Body)
}

// If is the two- or three-armed conditional.
type If struct {
	Cond machine.Exp
	Cons machine.Exp
	Alt  machine.Exp
	pos  machine.Position
}

func (e If) Pos() machine.Position { return e.pos }
func (e If) String() string {
	return fmt.Sprintf("(if %v %v %v)", e.Cond, e.Cons, e.Alt)
}

// BindingExp pairs a bound name with its right-hand side.
type BindingExp struct {
	Name string
	Init machine.Exp
}

func (b BindingExp) String() string {
	return fmt.Sprintf("(%v %v)", b.Name, b.Init)
}

// Let evaluates all inits in the outer environment.
type Let struct {
	Bindings []BindingExp
	Body     machine.Exp
	pos      machine.Position
}

func (e Let) Pos() machine.Position { return e.pos }
func (e Let) String() string {
	return fmt.Sprintf("(let (%v) %v)", joinBindings(e.Bindings), e.Body)
}

// LetStar evaluates inits sequentially, each seeing the previous.
type LetStar struct {
	Bindings []BindingExp
	Body     machine.Exp
	pos      machine.Position
}

func (e LetStar) Pos() machine.Position { return e.pos }
func (e LetStar) String() string {
	return fmt.Sprintf("(let* (%v) %v)", joinBindings(e.Bindings), e.Body)
}

// Letrec binds all names before evaluating any init, so inits may
// refer to each other.
type Letrec struct {
	Bindings []BindingExp
	Body     machine.Exp
	pos      machine.Position
}

func (e Letrec) Pos() machine.Position { return e.pos }
func (e Letrec) String() string {
	return fmt.Sprintf("(letrec (%v) %v)", joinBindings(e.Bindings), e.Body)
}

func joinBindings(bs []BindingExp) string {
	parts := make([]string, 0, len(bs))
	for _, b := range bs {
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

// Set is assignment to an existing binding.
type Set struct {
	Name string
	Init machine.Exp
	pos  machine.Position
}

func (e Set) Pos() machine.Position { return e.pos }
func (e Set) String() string        { return fmt.Sprintf("(set! %v %v)", e.Name, e.Init) }

// Begin is a sequence; its value is the last expression's.
type Begin struct {
	Body []machine.Exp
	pos  machine.Position
}

func (e Begin) Pos() machine.Position { return e.pos }
func (e Begin) String() string {
	parts := make([]string, 0, len(e.Body))
	for _, b := range e.Body {
		parts = append(parts, b.String())
	}
	return fmt.Sprintf("(begin %v)", strings.Join(parts, " "))
}

// And short-circuits on the first false value.
type And struct {
	Exps []machine.Exp
	pos  machine.Position
}

func (e And) Pos() machine.Position { return e.pos }
func (e And) String() string {
	return fmt.Sprintf("(and %v)", joinExps(e.Exps))
}

// Or short-circuits on the first true value.
type Or struct {
	Exps []machine.Exp
	pos  machine.Position
}

func (e Or) Pos() machine.Position { return e.pos }
func (e Or) String() string {
	return fmt.Sprintf("(or %v)", joinExps(e.Exps))
}

func joinExps(es []machine.Exp) string {
	parts := make([]string, 0, len(es))
	for _, x := range es {
		parts = append(parts, x.String())
	}
	return strings.Join(parts, " ")
}

// App is function application, operator first.
type App struct {
	Operator machine.Exp
	Operands []machine.Exp
	pos      machine.Position
}

func (e App) Pos() machine.Position { return e.pos }
func (e App) String() string {
	if len(e.Operands) == 0 {
		return fmt.Sprintf("(%v)", e.Operator)
	}
	return fmt.Sprintf("(%v %v)", e.Operator, joinExps(e.Operands))
}

// Spawn starts a new thread evaluating its expression.
type Spawn struct {
	E   machine.Exp
	pos machine.Position
}

func (e Spawn) Pos() machine.Position { return e.pos }
func (e Spawn) String() string        { return fmt.Sprintf("(spawn %v)", e.E) }

// Join waits for a thread and yields its final value.
type Join struct {
	E   machine.Exp
	pos machine.Position
}

func (e Join) Pos() machine.Position { return e.pos }
func (e Join) String() string        { return fmt.Sprintf("(join %v)", e.E) }

// NewLock allocates a lock in the unlocked state.
type NewLock struct {
	pos machine.Position
}

func (e NewLock) Pos() machine.Position { return e.pos }
func (e NewLock) String() string        { return "(new-lock)" }

// Acquire takes a lock; it blocks while the lock may not be free.
type Acquire struct {
	E   machine.Exp
	pos machine.Position
}

func (e Acquire) Pos() machine.Position { return e.pos }
func (e Acquire) String() string        { return fmt.Sprintf("(acquire %v)", e.E) }

// Release frees a lock.
type Release struct {
	E   machine.Exp
	pos machine.Position
}

func (e Release) Pos() machine.Position { return e.pos }
func (e Release) String() string        { return fmt.Sprintf("(release %v)", e.E) }

// Handler is one message handler of an actor behavior.
type Handler struct {
	Name   string
	Params []string
	Body   machine.Exp
}

func (h Handler) String() string {
	return fmt.Sprintf("(%v (%v) %v)", h.Name, strings.Join(h.Params, " "), h.Body)
}

// ActorExp is an actor behavior literal: state parameters plus message
// handlers.
type ActorExp struct {
	StateParams []string
	Handlers    []Handler
	pos         machine.Position
}

func (e ActorExp) Pos() machine.Position { return e.pos }
func (e ActorExp) String() string {
	parts := make([]string, 0, len(e.Handlers))
	for _, h := range e.Handlers {
		parts = append(parts, h.String())
	}
	return fmt.Sprintf("(actor (%v) %v)", strings.Join(e.StateParams, " "), strings.Join(parts, " "))
}

// Create instantiates a behavior into a fresh actor.
type Create struct {
	Beh  machine.Exp
	Args []machine.Exp
	pos  machine.Position
}

func (e Create) Pos() machine.Position { return e.pos }
func (e Create) String() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("(create %v)", e.Beh)
	}
	return fmt.Sprintf("(create %v %v)", e.Beh, joinExps(e.Args))
}

// Send delivers a message to an actor.
type Send struct {
	Target  machine.Exp
	Message string
	Args    []machine.Exp
	pos     machine.Position
}

func (e Send) Pos() machine.Position { return e.pos }
func (e Send) String() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("(send %v %v)", e.Target, e.Message)
	}
	return fmt.Sprintf("(send %v %v %v)", e.Target, e.Message, joinExps(e.Args))
}

// Become swaps the current actor's behavior.
type Become struct {
	Beh  machine.Exp
	Args []machine.Exp
	pos  machine.Position
}

func (e Become) Pos() machine.Position { return e.pos }
func (e Become) String() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("(become %v)", e.Beh)
	}
	return fmt.Sprintf("(become %v %v)", e.Beh, joinExps(e.Args))
}

// Terminate removes the current actor.
type Terminate struct {
	pos machine.Position
}

func (e Terminate) Pos() machine.Position { return e.pos }
func (e Terminate) String() string        { return "(terminate)" }

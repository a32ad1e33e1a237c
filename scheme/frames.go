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

// The continuation frames of the Scheme semantics. A frame's printed
// form is its identity in the kont store, so every field that
// distinguishes two frames must appear in String.

// FrameIf awaits the condition value.
type FrameIf struct {
	Cons machine.Exp
	Alt  machine.Exp
	Env  machine.Env
}

func (f FrameIf) String() string {
	return fmt.Sprintf("if(%v,%v,%v)", f.Cons, f.Alt, f.Env)
}

// FrameLet awaits the value of binding number len(Done); all inits
// are evaluated in the outer environment before the body is entered.
type FrameLet struct {
	Bindings []BindingExp
	Done     []machine.Value
	Body     machine.Exp
	Env      machine.Env
}

func (f FrameLet) String() string {
	return fmt.Sprintf("let(%v,%v,%v,%v)", f.Bindings, f.Done, f.Body, f.Env)
}

// FrameLetStar awaits the value of one sequential binding.
type FrameLetStar struct {
	Name string
	Rest []BindingExp
	Body machine.Exp
	Env  machine.Env
}

func (f FrameLetStar) String() string {
	return fmt.Sprintf("let*(%v,%v,%v,%v)", f.Name, f.Rest, f.Body, f.Env)
}

// FrameLetrec awaits the value for the address of one recursive
// binding.
type FrameLetrec struct {
	Addr machine.Address
	Rest []letrecBinding
	Body machine.Exp
	Env  machine.Env
}

func (f FrameLetrec) String() string {
	return fmt.Sprintf("letrec(%v,%v,%v,%v)", f.Addr, f.Rest, f.Body, f.Env)
}

// letrecBinding pairs a pre-allocated address with its init.
type letrecBinding struct {
	Addr machine.Address
	Init machine.Exp
}

func (b letrecBinding) String() string {
	return fmt.Sprintf("(%v %v)", b.Addr, b.Init)
}

// FrameSet awaits the value assigned to a variable.
type FrameSet struct {
	Name string
	Addr machine.Address
}

func (f FrameSet) String() string {
	return fmt.Sprintf("set(%v,%v)", f.Name, f.Addr)
}

// FrameBegin awaits the value of a non-final sequence element.
type FrameBegin struct {
	Rest []machine.Exp
	Env  machine.Env
}

func (f FrameBegin) String() string {
	return fmt.Sprintf("begin(%v,%v)", f.Rest, f.Env)
}

// FrameAnd awaits one conjunct.
type FrameAnd struct {
	Rest []machine.Exp
	Env  machine.Env
}

func (f FrameAnd) String() string {
	return fmt.Sprintf("and(%v,%v)", f.Rest, f.Env)
}

// FrameOr awaits one disjunct.
type FrameOr struct {
	Rest []machine.Exp
	Env  machine.Env
}

func (f FrameOr) String() string {
	return fmt.Sprintf("or(%v,%v)", f.Rest, f.Env)
}

// FrameOperator awaits the operator of an application.
type FrameOperator struct {
	Fexp     machine.Exp
	Operands []machine.Exp
	Env      machine.Env
}

func (f FrameOperator) String() string {
	return fmt.Sprintf("rator(%v,%v,%v)", f.Fexp, f.Operands, f.Env)
}

// FrameOperands awaits one operand; F is the operator value and Done
// the operands already evaluated.
type FrameOperands struct {
	F    machine.Value
	Fexp machine.Exp
	Done []machine.Value
	Rest []machine.Exp
	Env  machine.Env
}

func (f FrameOperands) String() string {
	return fmt.Sprintf("rand(%v,%v,%v,%v,%v)", f.F, f.Fexp, f.Done, f.Rest, f.Env)
}

// FrameJoin awaits the thread value being joined.
type FrameJoin struct {
	Fexp machine.Exp
}

func (f FrameJoin) String() string {
	return fmt.Sprintf("join(%v)", f.Fexp)
}

// FrameAcquire awaits the lock value being acquired.
type FrameAcquire struct {
	Fexp machine.Exp
}

func (f FrameAcquire) String() string {
	return fmt.Sprintf("acquire(%v)", f.Fexp)
}

// FrameRelease awaits the lock value being released.
type FrameRelease struct {
	Fexp machine.Exp
}

func (f FrameRelease) String() string {
	return fmt.Sprintf("release(%v)", f.Fexp)
}

// FrameCreateBeh awaits the behavior of a create.
type FrameCreateBeh struct {
	Fexp machine.Exp
	Args []machine.Exp
	Env  machine.Env
}

func (f FrameCreateBeh) String() string {
	return fmt.Sprintf("create-beh(%v,%v,%v)", f.Fexp, f.Args, f.Env)
}

// FrameCreateArgs awaits one state argument of a create.
type FrameCreateArgs struct {
	Fexp machine.Exp
	Beh  machine.Value
	Done []machine.Value
	Rest []machine.Exp
	Env  machine.Env
}

func (f FrameCreateArgs) String() string {
	return fmt.Sprintf("create-args(%v,%v,%v,%v,%v)", f.Fexp, f.Beh, f.Done, f.Rest, f.Env)
}

// FrameSendTarget awaits the target of a send.
type FrameSendTarget struct {
	Fexp    machine.Exp
	Message string
	Args    []machine.Exp
	Env     machine.Env
}

func (f FrameSendTarget) String() string {
	return fmt.Sprintf("send-target(%v,%v,%v,%v)", f.Fexp, f.Message, f.Args, f.Env)
}

// FrameSendArgs awaits one message argument of a send.
type FrameSendArgs struct {
	Fexp    machine.Exp
	To      machine.Value
	Message string
	Done    []machine.Value
	Rest    []machine.Exp
	Env     machine.Env
}

func (f FrameSendArgs) String() string {
	return fmt.Sprintf("send-args(%v,%v,%v,%v,%v,%v)", f.Fexp, f.To, f.Message, f.Done, f.Rest, f.Env)
}

// FrameBecomeBeh awaits the behavior of a become.
type FrameBecomeBeh struct {
	Fexp machine.Exp
	Args []machine.Exp
	Env  machine.Env
}

func (f FrameBecomeBeh) String() string {
	return fmt.Sprintf("become-beh(%v,%v,%v)", f.Fexp, f.Args, f.Env)
}

// FrameBecomeArgs awaits one state argument of a become.
type FrameBecomeArgs struct {
	Fexp machine.Exp
	Beh  machine.Value
	Done []machine.Value
	Rest []machine.Exp
	Env  machine.Env
}

func (f FrameBecomeArgs) String() string {
	return fmt.Sprintf("become-args(%v,%v,%v,%v,%v)", f.Fexp, f.Beh, f.Done, f.Rest, f.Env)
}

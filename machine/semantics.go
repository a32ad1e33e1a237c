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

// Semantics is a language plug-in. Given a control point it produces
// the set of actions the machine may take; non-determinism is
// first-class, so every returned action becomes a successor. Step
// functions must be pure: all state they need arrives as arguments and
// all state they produce leaves inside actions.
type Semantics interface {
	// Parse turns source text into the program expression.
	Parse(source string) (Exp, error)
	// Initial returns the environment and store the program starts in,
	// with the language's primitives bound.
	Initial(alloc Allocator, t Timestamp) (Env, Store)
	// StepEval is called when the machine is about to evaluate e.
	StepEval(e Exp, env Env, store Store, t Timestamp) []Action
	// StepKont is called when the value v has surfaced and frame f is
	// the topmost frame.
	StepKont(v Value, f Frame, store Store, t Timestamp) []Action
}

// ActorSemantics extends a semantics with message receives.
type ActorSemantics interface {
	Semantics
	// StepReceive is called when the actor self, currently in behavior
	// beh, may handle a mailbox message. Dispatch is by message name
	// with an arity check; a message the behavior does not support
	// yields a MessageNotSupported error action.
	StepReceive(self PID, beh Behavior, message string, args []Value, store Store, t Timestamp) []Action
}

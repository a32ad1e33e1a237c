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

import "fmt"

// ErrorKind classifies semantic failures.
type ErrorKind int

const (
	OperatorNotApplicable ErrorKind = iota
	ArityError
	VariadicArityError
	TypeError
	UserError
	UnboundVariable
	UnboundAddress
	MessageNotSupported
	NotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case OperatorNotApplicable:
		return "operator-not-applicable"
	case ArityError:
		return "arity-error"
	case VariadicArityError:
		return "variadic-arity-error"
	case TypeError:
		return "type-error"
	case UserError:
		return "user-error"
	case UnboundVariable:
		return "unbound-variable"
	case UnboundAddress:
		return "unbound-address"
	case MessageNotSupported:
		return "message-not-supported"
	case NotSupported:
		return "not-supported"
	default:
		return "unknown-error"
	}
}

// SemanticError is a structured semantic failure. It is carried on the
// state graph as a value, never raised as a Go error: reaching one ends
// a single branch of the exploration, not the exploration itself.
type SemanticError struct {
	Kind ErrorKind
	Msg  string
	Pos  Position
}

func (e SemanticError) String() string {
	if e.Kind == UserError {
		return fmt.Sprintf("%v: %v (at %v)", e.Kind, e.Msg, e.Pos)
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Msg)
}

// NewSemanticError creates an error of the given kind.
func NewSemanticError(kind ErrorKind, msg string) SemanticError {
	return SemanticError{Kind: kind, Msg: msg}
}

// NewUserError creates an error raised by the analyzed program itself.
func NewUserError(msg string, pos Position) SemanticError {
	return SemanticError{Kind: UserError, Msg: msg, Pos: pos}
}

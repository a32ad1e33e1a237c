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

// UnaryOperator enumerates the unary operations a lattice must
// interpret.
type UnaryOperator int

const (
	OpIsNull UnaryOperator = iota
	OpIsPair
	OpIsChar
	OpIsSymbol
	OpIsString
	OpIsInteger
	OpIsFloat
	OpIsBoolean
	OpIsVector
	OpIsLock
	OpIsProcedure
	OpNot
	OpCeiling
	OpRound
	OpRandom
	OpStringLength
	OpNumberToString
)

func (op UnaryOperator) String() string {
	switch op {
	case OpIsNull:
		return "null?"
	case OpIsPair:
		return "pair?"
	case OpIsChar:
		return "char?"
	case OpIsSymbol:
		return "symbol?"
	case OpIsString:
		return "string?"
	case OpIsInteger:
		return "integer?"
	case OpIsFloat:
		return "real?"
	case OpIsBoolean:
		return "boolean?"
	case OpIsVector:
		return "vector?"
	case OpIsLock:
		return "lock?"
	case OpIsProcedure:
		return "procedure?"
	case OpNot:
		return "not"
	case OpCeiling:
		return "ceiling"
	case OpRound:
		return "round"
	case OpRandom:
		return "random"
	case OpStringLength:
		return "string-length"
	case OpNumberToString:
		return "number->string"
	default:
		return "unknown-unary-op"
	}
}

// BinaryOperator enumerates the binary operations a lattice must
// interpret.
type BinaryOperator int

const (
	OpPlus BinaryOperator = iota
	OpMinus
	OpTimes
	OpDiv
	OpQuotient
	OpModulo
	OpRemainder
	OpLt
	OpLe
	OpGt
	OpGe
	OpNumEq
	OpEq
	OpStringAppend
)

func (op BinaryOperator) String() string {
	switch op {
	case OpPlus:
		return "+"
	case OpMinus:
		return "-"
	case OpTimes:
		return "*"
	case OpDiv:
		return "/"
	case OpQuotient:
		return "quotient"
	case OpModulo:
		return "modulo"
	case OpRemainder:
		return "remainder"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpNumEq:
		return "="
	case OpEq:
		return "eq?"
	case OpStringAppend:
		return "string-append"
	default:
		return "unknown-binary-op"
	}
}

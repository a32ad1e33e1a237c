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
	"fmt"

	"github.com/google/uuid"
)

// Address is an abstract allocation handle. Every implementation is a
// comparable struct: two addresses are the same store cell exactly when
// their allocation coordinates are equal.
type Address interface {
	address()
	String() string
}

// Identifier names a source binding: the variable name plus the
// position of its binder, so that the same name in different
// functions never shares a cell.
type Identifier struct {
	Name string
	Pos  Position
}

func (id Identifier) String() string {
	return fmt.Sprintf("%v@%v", id.Name, id.Pos)
}

// VariableAddress binds a source variable under some context.
type VariableAddress struct {
	Id  Identifier
	Ctx string
}

func (VariableAddress) address() {}

func (a VariableAddress) String() string {
	return fmt.Sprintf("var(%v@%v)", a.Id, a.Ctx)
}

// PrimitiveAddress holds a primitive operation. There is one per
// primitive name, independent of context.
type PrimitiveAddress struct {
	Name string
}

func (PrimitiveAddress) address() {}

func (a PrimitiveAddress) String() string {
	return fmt.Sprintf("prim(%v)", a.Name)
}

// CellAddress holds the content of a pair or vector allocated at some
// expression under some context.
type CellAddress struct {
	Pos Position
	Tag string
	Ctx string
}

func (CellAddress) address() {}

func (a CellAddress) String() string {
	return fmt.Sprintf("cell(%v:%v@%v)", a.Tag, a.Pos, a.Ctx)
}

// KontAddress holds continuation frames pushed while evaluating the
// expression at the given position. Recursive continuations coalesce
// because the position, not the dynamic stack depth, names the cell.
type KontAddress struct {
	Pos Position
	Ctx string
}

func (KontAddress) address() {}

func (a KontAddress) String() string {
	return fmt.Sprintf("kont(%v@%v)", a.Pos, a.Ctx)
}

// HaltAddress is the terminal continuation marker.
type HaltAddress struct{}

func (HaltAddress) address() {}

func (a HaltAddress) String() string {
	return "halt"
}

// Allocator is an address allocation policy. Distinct coordinates
// yield distinct addresses; identical coordinates yield identical
// addresses.
type Allocator interface {
	Variable(id Identifier, v Value, t Timestamp) Address
	Primitive(name string) Address
	Cell(e Exp, t Timestamp) Address
	Kont(e Exp, t Timestamp) Address
}

// ClassicalAllocator allocates variable addresses from the identifier
// and the timestamp only.
type ClassicalAllocator struct{}

func (ClassicalAllocator) Variable(id Identifier, v Value, t Timestamp) Address {
	return VariableAddress{Id: id, Ctx: t.String()}
}

func (ClassicalAllocator) Primitive(name string) Address {
	return PrimitiveAddress{Name: name}
}

func (ClassicalAllocator) Cell(e Exp, t Timestamp) Address {
	return CellAddress{Pos: e.Pos(), Tag: e.String(), Ctx: t.String()}
}

func (ClassicalAllocator) Kont(e Exp, t Timestamp) Address {
	return KontAddress{Pos: e.Pos()}
}

// ValueSensitiveAllocator additionally folds the bound value into
// variable addresses, so that bindings of observably different values
// do not share a cell.
type ValueSensitiveAllocator struct{}

func (ValueSensitiveAllocator) Variable(id Identifier, v Value, t Timestamp) Address {
	ctx := t.String()
	if v != nil {
		ctx = fmt.Sprintf("%v/%v", v, ctx)
	}
	return VariableAddress{Id: id, Ctx: ctx}
}

func (ValueSensitiveAllocator) Primitive(name string) Address {
	return PrimitiveAddress{Name: name}
}

func (ValueSensitiveAllocator) Cell(e Exp, t Timestamp) Address {
	return CellAddress{Pos: e.Pos(), Tag: e.String(), Ctx: t.String()}
}

func (ValueSensitiveAllocator) Kont(e Exp, t Timestamp) Address {
	return KontAddress{Pos: e.Pos()}
}

// ConcreteAllocator mints a fresh address on every allocation. It is
// only used by the concrete machine, where the state space need not be
// finite.
type ConcreteAllocator struct{}

func (ConcreteAllocator) Variable(id Identifier, v Value, t Timestamp) Address {
	return VariableAddress{Id: id, Ctx: uuid.NewString()}
}

func (ConcreteAllocator) Primitive(name string) Address {
	return PrimitiveAddress{Name: name}
}

func (ConcreteAllocator) Cell(e Exp, t Timestamp) Address {
	return CellAddress{Pos: e.Pos(), Tag: e.String(), Ctx: uuid.NewString()}
}

func (ConcreteAllocator) Kont(e Exp, t Timestamp) Address {
	return KontAddress{Pos: e.Pos(), Ctx: uuid.NewString()}
}

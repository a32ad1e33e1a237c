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

// PrimCtx carries the capabilities a primitive may use.
type PrimCtx struct {
	Lat   machine.Lattice
	Alloc machine.Allocator
}

// PrimOutcome is one successful primitive result: a value, the store
// it was computed against, and the effects of computing it.
type PrimOutcome struct {
	V     machine.Value
	Store machine.Store
	Effs  machine.EffectSet
}

// PrimFn computes a primitive application. It never panics and never
// returns a Go error; recoverable failures travel in the MayFail.
type PrimFn func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome]

// Primitive is one entry of the primitive table. MaxArity -1 means
// variadic.
type Primitive struct {
	Name     string
	MinArity int
	MaxArity int
	Call     PrimFn
}

func okOut(v machine.Value, store machine.Store, effs machine.EffectSet) machine.MayFail[PrimOutcome] {
	return machine.Success(PrimOutcome{V: v, Store: store, Effs: effs})
}

// opResult splits an operator result into its proper value and its
// error tags.
func opResult(ctx PrimCtx, v machine.Value, store machine.Store, effs machine.EffectSet) machine.MayFail[PrimOutcome] {
	res := machine.MayFail[PrimOutcome]{}
	clean := ctx.Lat.WithoutErrors(v)
	if !ctx.Lat.IsBottom(clean) {
		res = res.Append(okOut(clean, store, effs))
	}
	for _, err := range ctx.Lat.Errors(v) {
		res = res.AddError(err)
	}
	return res
}

// unaryPrim lifts a lattice unary operator into a primitive.
func unaryPrim(name string, op machine.UnaryOperator) Primitive {
	return Primitive{
		Name:     name,
		MinArity: 1,
		MaxArity: 1,
		Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			return opResult(ctx, ctx.Lat.UnaryOp(op, args[0]), store, nil)
		},
	}
}

// foldPrim lifts a binary operator into a variadic left fold.
func foldPrim(name string, op machine.BinaryOperator, unit int64, invertSingle bool) Primitive {
	return Primitive{
		Name:     name,
		MinArity: 0,
		MaxArity: -1,
		Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			if len(args) == 0 {
				return okOut(ctx.Lat.InjectInt(unit), store, nil)
			}
			var acc machine.Value
			rest := args
			if len(args) == 1 && invertSingle {
				// (- x) and (/ x) start from the unit.
				acc = ctx.Lat.InjectInt(unit)
			} else {
				acc = args[0]
				rest = args[1:]
			}
			for _, arg := range rest {
				acc = ctx.Lat.BinaryOp(op, acc, arg)
			}
			return opResult(ctx, acc, store, nil)
		},
	}
}

// chainPrim lifts a comparison into a chained variadic predicate:
// (< a b c) holds when every adjacent pair holds.
func chainPrim(name string, op machine.BinaryOperator) Primitive {
	return Primitive{
		Name:     name,
		MinArity: 2,
		MaxArity: -1,
		Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			mayTrue := true
			mayFalse := false
			acc := ctx.Lat.Bottom()
			var errs []machine.SemanticError
			for i := 0; i+1 < len(args); i++ {
				r := ctx.Lat.BinaryOp(op, args[i], args[i+1])
				errs = append(errs, ctx.Lat.Errors(r)...)
				if !ctx.Lat.IsTrue(r) {
					mayTrue = false
				}
				if ctx.Lat.IsFalse(r) {
					mayFalse = true
				}
			}
			if mayTrue {
				acc = ctx.Lat.Join(acc, ctx.Lat.InjectBool(true))
			}
			if mayFalse {
				acc = ctx.Lat.Join(acc, ctx.Lat.InjectBool(false))
			}
			res := machine.MayFail[PrimOutcome]{}
			if !ctx.Lat.IsBottom(acc) {
				res = res.Append(okOut(acc, store, nil))
			}
			for _, err := range errs {
				res = res.AddError(err)
			}
			return res
		},
	}
}

func binPrim(name string, op machine.BinaryOperator) Primitive {
	return Primitive{
		Name:     name,
		MinArity: 2,
		MaxArity: 2,
		Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			return opResult(ctx, ctx.Lat.BinaryOp(op, args[0], args[1]), store, nil)
		},
	}
}

// consCells allocates the car and cdr cells of a pair built at fexp.
func consCells(fexp machine.Exp, tag string, t machine.Timestamp) (machine.Address, machine.Address) {
	car := machine.CellAddress{Pos: fexp.Pos(), Tag: tag + "car", Ctx: t.String()}
	cdr := machine.CellAddress{Pos: fexp.Pos(), Tag: tag + "cdr", Ctx: t.String()}
	return car, cdr
}

func primCons(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	car, cdr := consCells(fexp, "", t)
	nstore := store.Extend(car, args[0]).Extend(cdr, args[1])
	effs := machine.Effects(
		machine.Effect{Kind: machine.WriteCar, Addr: car},
		machine.Effect{Kind: machine.WriteCdr, Addr: cdr},
	)
	return okOut(ctx.Lat.InjectCons(car, cdr), nstore, effs)
}

func primList(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	res := ctx.Lat.InjectNil()
	nstore := store
	effs := machine.NoEffects()
	for i := len(args) - 1; 0 <= i; i-- {
		car, cdr := consCells(fexp, fmt.Sprintf("%v:", i), t)
		nstore = nstore.Extend(car, args[i]).Extend(cdr, res)
		effs = effs.Union(machine.Effects(
			machine.Effect{Kind: machine.WriteCar, Addr: car},
			machine.Effect{Kind: machine.WriteCdr, Addr: cdr},
		))
		res = ctx.Lat.InjectCons(car, cdr)
	}
	return okOut(res, nstore, effs)
}

// pairAccess reads through every cell a pair value may point at.
func pairAccess(kind machine.EffectKind, addrsOf func(machine.Lattice, machine.Value) []machine.Address, opName string) PrimFn {
	return func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
		addrs := addrsOf(ctx.Lat, args[0])
		if len(addrs) == 0 {
			return machine.Failure[PrimOutcome](machine.NewSemanticError(machine.TypeError,
				fmt.Sprintf("%v on a non-pair value", opName)))
		}
		res := ctx.Lat.Bottom()
		effs := machine.NoEffects()
		for _, a := range addrs {
			cell, _ := store.Lookup(a)
			res = ctx.Lat.Join(res, cell)
			effs = effs.Union(machine.Effects(machine.Effect{Kind: kind, Addr: a}))
		}
		return okOut(res, store, effs)
	}
}

// pairMutate writes through every cell a pair value may point at.
func pairMutate(kind machine.EffectKind, addrsOf func(machine.Lattice, machine.Value) []machine.Address, opName string) PrimFn {
	return func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
		addrs := addrsOf(ctx.Lat, args[0])
		if len(addrs) == 0 {
			return machine.Failure[PrimOutcome](machine.NewSemanticError(machine.TypeError,
				fmt.Sprintf("%v on a non-pair value", opName)))
		}
		nstore := store
		effs := machine.NoEffects()
		for _, a := range addrs {
			nstore = nstore.Update(a, args[1])
			effs = effs.Union(machine.Effects(machine.Effect{Kind: kind, Addr: a}))
		}
		return okOut(ctx.Lat.InjectBool(false), nstore, effs)
	}
}

func primMakeVector(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	cell := machine.CellAddress{Pos: fexp.Pos(), Tag: "vec", Ctx: t.String()}
	init := machine.Value(ctx.Lat.InjectInt(0))
	if len(args) == 2 {
		init = args[1]
	}
	nstore := store.Extend(cell, init)
	effs := machine.Effects(machine.Effect{Kind: machine.WriteVec, Addr: cell})
	return okOut(ctx.Lat.InjectVector(cell, args[0]), nstore, effs)
}

func primVector(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	cell := machine.CellAddress{Pos: fexp.Pos(), Tag: "vec", Ctx: t.String()}
	content := ctx.Lat.Bottom()
	for _, a := range args {
		content = ctx.Lat.Join(content, a)
	}
	nstore := store.Extend(cell, content)
	effs := machine.Effects(machine.Effect{Kind: machine.WriteVec, Addr: cell})
	return okOut(ctx.Lat.InjectVector(cell, ctx.Lat.InjectInt(int64(len(args)))), nstore, effs)
}

func primVectorRef(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	cells := ctx.Lat.Vectors(args[0])
	if len(cells) == 0 {
		return machine.Failure[PrimOutcome](machine.NewSemanticError(machine.TypeError, "vector-ref on a non-vector value"))
	}
	res := ctx.Lat.Bottom()
	effs := machine.NoEffects()
	for _, cell := range cells {
		content, _ := store.Lookup(cell)
		res = ctx.Lat.Join(res, content)
		effs = effs.Union(machine.Effects(machine.Effect{Kind: machine.ReadVec, Addr: cell}))
	}
	return okOut(res, store, effs)
}

func primVectorSet(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	cells := ctx.Lat.Vectors(args[0])
	if len(cells) == 0 {
		return machine.Failure[PrimOutcome](machine.NewSemanticError(machine.TypeError, "vector-set! on a non-vector value"))
	}
	nstore := store
	effs := machine.NoEffects()
	for _, cell := range cells {
		nstore = nstore.Update(cell, args[2])
		effs = effs.Union(machine.Effects(machine.Effect{Kind: machine.WriteVec, Addr: cell}))
	}
	return okOut(ctx.Lat.InjectBool(false), nstore, effs)
}

func primVectorLength(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	if len(ctx.Lat.Vectors(args[0])) == 0 {
		return machine.Failure[PrimOutcome](machine.NewSemanticError(machine.TypeError, "vector-length on a non-vector value"))
	}
	return okOut(ctx.Lat.VectorSize(args[0]), store, nil)
}

func primError(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
	return machine.Failure[PrimOutcome](machine.NewUserError(fmt.Sprintf("%v", args[0]), fexp.Pos()))
}

// numPredicate builds predicates such as zero? from a comparison against
// a constant.
func numPredicate(name string, build func(ctx PrimCtx, v machine.Value) machine.Value) Primitive {
	return Primitive{
		Name:     name,
		MinArity: 1,
		MaxArity: 1,
		Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			return opResult(ctx, build(ctx, args[0]), store, nil)
		},
	}
}

// primitiveTable is the full primitive operator table. The subtraction
// operator is genuine subtraction.
func primitiveTable() map[string]Primitive {
	prims := []Primitive{
		foldPrim("+", machine.OpPlus, 0, false),
		foldPrim("-", machine.OpMinus, 0, true),
		foldPrim("*", machine.OpTimes, 1, false),
		foldPrim("/", machine.OpDiv, 1, true),
		binPrim("quotient", machine.OpQuotient),
		binPrim("modulo", machine.OpModulo),
		binPrim("remainder", machine.OpRemainder),
		chainPrim("=", machine.OpNumEq),
		chainPrim("<", machine.OpLt),
		chainPrim("<=", machine.OpLe),
		chainPrim(">", machine.OpGt),
		chainPrim(">=", machine.OpGe),
		binPrim("eq?", machine.OpEq),
		binPrim("equal?", machine.OpEq),
		binPrim("string-append", machine.OpStringAppend),
		unaryPrim("not", machine.OpNot),
		unaryPrim("null?", machine.OpIsNull),
		unaryPrim("pair?", machine.OpIsPair),
		unaryPrim("char?", machine.OpIsChar),
		unaryPrim("symbol?", machine.OpIsSymbol),
		unaryPrim("string?", machine.OpIsString),
		unaryPrim("integer?", machine.OpIsInteger),
		unaryPrim("real?", machine.OpIsFloat),
		unaryPrim("boolean?", machine.OpIsBoolean),
		unaryPrim("vector?", machine.OpIsVector),
		unaryPrim("lock?", machine.OpIsLock),
		unaryPrim("procedure?", machine.OpIsProcedure),
		unaryPrim("ceiling", machine.OpCeiling),
		unaryPrim("round", machine.OpRound),
		unaryPrim("random", machine.OpRandom),
		unaryPrim("string-length", machine.OpStringLength),
		unaryPrim("number->string", machine.OpNumberToString),
		numPredicate("zero?", func(ctx PrimCtx, v machine.Value) machine.Value {
			return ctx.Lat.BinaryOp(machine.OpNumEq, v, ctx.Lat.InjectInt(0))
		}),
		numPredicate("even?", func(ctx PrimCtx, v machine.Value) machine.Value {
			return ctx.Lat.BinaryOp(machine.OpNumEq,
				ctx.Lat.BinaryOp(machine.OpModulo, v, ctx.Lat.InjectInt(2)), ctx.Lat.InjectInt(0))
		}),
		numPredicate("odd?", func(ctx PrimCtx, v machine.Value) machine.Value {
			return ctx.Lat.BinaryOp(machine.OpNumEq,
				ctx.Lat.BinaryOp(machine.OpModulo, v, ctx.Lat.InjectInt(2)), ctx.Lat.InjectInt(1))
		}),
		numPredicate("number?", func(ctx PrimCtx, v machine.Value) machine.Value {
			return ctx.Lat.Join(
				ctx.Lat.UnaryOp(machine.OpIsInteger, v),
				ctx.Lat.UnaryOp(machine.OpIsFloat, v))
		}),
		{Name: "cons", MinArity: 2, MaxArity: 2, Call: primCons},
		{Name: "list", MinArity: 0, MaxArity: -1, Call: primList},
		{Name: "car", MinArity: 1, MaxArity: 1, Call: pairAccess(machine.ReadCar, machine.Lattice.Car, "car")},
		{Name: "cdr", MinArity: 1, MaxArity: 1, Call: pairAccess(machine.ReadCdr, machine.Lattice.Cdr, "cdr")},
		{Name: "set-car!", MinArity: 2, MaxArity: 2, Call: pairMutate(machine.WriteCar, machine.Lattice.Car, "set-car!")},
		{Name: "set-cdr!", MinArity: 2, MaxArity: 2, Call: pairMutate(machine.WriteCdr, machine.Lattice.Cdr, "set-cdr!")},
		{Name: "make-vector", MinArity: 1, MaxArity: 2, Call: primMakeVector},
		{Name: "vector", MinArity: 0, MaxArity: -1, Call: primVector},
		{Name: "vector-ref", MinArity: 2, MaxArity: 2, Call: primVectorRef},
		{Name: "vector-set!", MinArity: 3, MaxArity: 3, Call: primVectorSet},
		{Name: "vector-length", MinArity: 1, MaxArity: 1, Call: primVectorLength},
		{Name: "error", MinArity: 1, MaxArity: -1, Call: primError},
		{Name: "display", MinArity: 1, MaxArity: 1, Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			return okOut(args[0], store, nil)
		}},
		{Name: "newline", MinArity: 0, MaxArity: 0, Call: func(ctx PrimCtx, fexp machine.Exp, args []machine.Value, store machine.Store, t machine.Timestamp) machine.MayFail[PrimOutcome] {
			return okOut(ctx.Lat.InjectBool(false), store, nil)
		}},
	}
	table := make(map[string]Primitive, len(prims))
	for _, p := range prims {
		table[p.Name] = p
	}
	return table
}

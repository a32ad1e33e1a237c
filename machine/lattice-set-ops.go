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
	"math"
	"strconv"
)

// Operator interpretations for the set lattice family. An operator
// applies to the applicable leaves of its operands and tags the result
// with an error when some leaf is inapplicable; it never reports a Go
// error.

func (l *setLattice) addErr(v *setValue, kind ErrorKind, msg string) {
	e := NewSemanticError(kind, msg)
	v.errs[e.String()] = e
}

// boolVal builds a possibly-both boolean.
func (l *setLattice) boolVal(mayTrue, mayFalse bool) *setValue {
	v := newSetValue()
	v.mayTrue = mayTrue
	v.mayFals = mayFalse
	return v
}

// hasNonBool reports whether the value has a truthy leaf besides the
// booleans.
func (v *setValue) hasNonBool() bool {
	return !v.ints.empty() || !v.floats.empty() || !v.strs.empty() || !v.chars.empty() ||
		0 < len(v.syms) || v.isNil || v.hasPair() || 0 < len(v.vecs) ||
		0 < len(v.closures) || 0 < len(v.prims) || 0 < len(v.tids) ||
		0 < len(v.pids) || 0 < len(v.locks) || 0 < len(v.behs)
}

func (l *setLattice) UnaryOp(op UnaryOperator, v Value) Value {
	a := l.asSet(v)
	if a.isBottom() {
		return l.Bottom()
	}
	switch op {
	case OpIsNull:
		return l.boolVal(a.isNil, l.mayBeOtherThan(a, "nil"))
	case OpIsPair:
		return l.boolVal(a.hasPair(), l.mayBeOtherThan(a, "pair"))
	case OpIsVector:
		return l.boolVal(0 < len(a.vecs), l.mayBeOtherThan(a, "vector"))
	case OpIsChar:
		return l.boolVal(!a.chars.empty(), l.mayBeOtherThan(a, "char"))
	case OpIsSymbol:
		return l.boolVal(0 < len(a.syms), l.mayBeOtherThan(a, "symbol"))
	case OpIsString:
		return l.boolVal(!a.strs.empty(), l.mayBeOtherThan(a, "string"))
	case OpIsInteger:
		return l.boolVal(!a.ints.empty(), l.mayBeOtherThan(a, "int"))
	case OpIsFloat:
		return l.boolVal(!a.floats.empty(), l.mayBeOtherThan(a, "float"))
	case OpIsBoolean:
		return l.boolVal(a.mayTrue || a.mayFals, a.hasNonBool())
	case OpIsLock:
		return l.boolVal(0 < len(a.locks), l.mayBeOtherThan(a, "lock"))
	case OpIsProcedure:
		return l.boolVal(0 < len(a.closures) || 0 < len(a.prims), l.mayBeOtherThan(a, "procedure"))
	case OpNot:
		return l.boolVal(l.IsFalse(a), l.IsTrue(a))
	case OpCeiling, OpRound:
		return l.roundOp(op, a)
	case OpRandom:
		return l.randomOp(a)
	case OpStringLength:
		return l.stringLengthOp(a)
	case OpNumberToString:
		return l.numberToStringOp(a)
	default:
		return l.InjectError(NewSemanticError(NotSupported, op.String()))
	}
}

// mayBeOtherThan reports whether the value has a leaf outside the
// named kind, which makes the corresponding predicate possibly false.
func (l *setLattice) mayBeOtherThan(a *setValue, kind string) bool {
	other := false
	if kind != "int" && !a.ints.empty() {
		other = true
	}
	if kind != "float" && !a.floats.empty() {
		other = true
	}
	if kind != "string" && !a.strs.empty() {
		other = true
	}
	if kind != "char" && !a.chars.empty() {
		other = true
	}
	if kind != "symbol" && 0 < len(a.syms) {
		other = true
	}
	if kind != "nil" && a.isNil {
		other = true
	}
	if kind != "pair" && a.hasPair() {
		other = true
	}
	if kind != "vector" && 0 < len(a.vecs) {
		other = true
	}
	if kind != "lock" && 0 < len(a.locks) {
		other = true
	}
	if kind != "procedure" && (0 < len(a.closures) || 0 < len(a.prims)) {
		other = true
	}
	if a.mayTrue || a.mayFals || 0 < len(a.tids) || 0 < len(a.pids) || 0 < len(a.behs) {
		other = true
	}
	return other
}

func (l *setLattice) roundOp(op UnaryOperator, a *setValue) Value {
	res := newSetValue()
	applicable := false
	if !a.ints.empty() {
		res.ints = a.ints
		applicable = true
	}
	if !a.floats.empty() {
		applicable = true
		if a.floats.top {
			res.ints = intAbs{top: true}
		} else {
			for f := range a.floats.vals {
				var r float64
				if op == OpCeiling {
					r = math.Ceil(f)
				} else {
					r = math.Round(f)
				}
				res.ints = joinIntAbs(res.ints, l.injectIntAbs(int64(r)), l.intBound < 0)
			}
		}
	}
	if !applicable {
		l.addErr(res, OperatorNotApplicable, op.String())
	}
	return res
}

func (l *setLattice) randomOp(a *setValue) Value {
	res := newSetValue()
	if a.ints.empty() {
		l.addErr(res, OperatorNotApplicable, "random")
		return res
	}
	// The draw is not tracked precisely even in the concrete lattice;
	// a small bound keeps the result enumerable.
	if !a.ints.top && len(a.ints.vals) == 1 {
		for n := range a.ints.vals {
			if 0 < n && n <= 64 {
				vals := map[int64]bool{}
				for i := int64(0); i < n; i++ {
					vals[i] = true
				}
				res.ints = intAbs{vals: vals}
				return res
			}
		}
	}
	res.ints = intAbs{top: true}
	return res
}

func (l *setLattice) stringLengthOp(a *setValue) Value {
	res := newSetValue()
	if a.strs.empty() {
		l.addErr(res, OperatorNotApplicable, "string-length")
		return res
	}
	if a.strs.top {
		res.ints = intAbs{top: true}
		return res
	}
	for s := range a.strs.vals {
		res.ints = joinIntAbs(res.ints, l.injectIntAbs(int64(len(s))), l.intBound < 0)
	}
	return res
}

func (l *setLattice) numberToStringOp(a *setValue) Value {
	res := newSetValue()
	if a.ints.empty() && a.floats.empty() {
		l.addErr(res, OperatorNotApplicable, "number->string")
		return res
	}
	if l.intBound >= 0 || a.ints.top || a.floats.top {
		res.strs = strAbs{top: true}
		return res
	}
	vals := map[string]bool{}
	for n := range a.ints.vals {
		vals[strconv.FormatInt(n, 10)] = true
	}
	for f := range a.floats.vals {
		vals[strconv.FormatFloat(f, 'g', -1, 64)] = true
	}
	res.strs = strAbs{vals: vals}
	return res
}

func (l *setLattice) BinaryOp(op BinaryOperator, x, y Value) Value {
	a := l.asSet(x)
	b := l.asSet(y)
	if a.isBottom() || b.isBottom() {
		return l.Bottom()
	}
	switch op {
	case OpPlus, OpMinus, OpTimes, OpDiv:
		return l.arithOp(op, a, b)
	case OpQuotient, OpModulo, OpRemainder:
		return l.intOp(op, a, b)
	case OpLt, OpLe, OpGt, OpGe, OpNumEq:
		return l.cmpOp(op, a, b)
	case OpEq:
		return l.eqOp(a, b)
	case OpStringAppend:
		return l.stringAppendOp(a, b)
	default:
		return l.InjectError(NewSemanticError(NotSupported, op.String()))
	}
}

func (a *setValue) numeric() bool {
	return !a.ints.empty() || !a.floats.empty()
}

// arithOp interprets + - * / over the numeric leaves.
func (l *setLattice) arithOp(op BinaryOperator, a, b *setValue) Value {
	res := newSetValue()
	if !a.numeric() || !b.numeric() {
		l.addErr(res, OperatorNotApplicable, op.String())
		if !a.numeric() && !b.numeric() {
			return res
		}
	}

	// integer × integer
	if !a.ints.empty() && !b.ints.empty() {
		if a.ints.top || b.ints.top {
			res.ints = intAbs{top: true}
			if op == OpDiv {
				// Division may leave the integers and may divide by zero.
				res.floats = floatAbs{top: true}
				l.addErr(res, OperatorNotApplicable, "division by zero")
			}
		} else {
			for n1 := range a.ints.vals {
				for n2 := range b.ints.vals {
					switch op {
					case OpPlus:
						res.ints = joinIntAbs(res.ints, l.injectIntAbs(n1+n2), l.intBound < 0)
					case OpMinus:
						res.ints = joinIntAbs(res.ints, l.injectIntAbs(n1-n2), l.intBound < 0)
					case OpTimes:
						res.ints = joinIntAbs(res.ints, l.injectIntAbs(n1*n2), l.intBound < 0)
					case OpDiv:
						if n2 == 0 {
							l.addErr(res, OperatorNotApplicable, "division by zero")
						} else if n1%n2 == 0 {
							res.ints = joinIntAbs(res.ints, l.injectIntAbs(n1/n2), l.intBound < 0)
						} else {
							fv := l.asSet(l.InjectFloat(float64(n1) / float64(n2)))
							res.floats = joinFloatAbs(res.floats, fv.floats, l.intBound < 0)
						}
					}
				}
			}
		}
	}

	// any combination involving floats
	if !a.floats.empty() || !b.floats.empty() {
		af := a.floats
		bf := b.floats
		if !a.ints.empty() {
			af = joinFloatAbs(af, intAbsToFloat(a.ints), l.intBound < 0)
		}
		if !b.ints.empty() {
			bf = joinFloatAbs(bf, intAbsToFloat(b.ints), l.intBound < 0)
		}
		if af.top || bf.top || l.intBound >= 0 {
			res.floats = floatAbs{top: true}
			if op == OpDiv {
				l.addErr(res, OperatorNotApplicable, "division by zero")
			}
		} else {
			for f1 := range af.vals {
				for f2 := range bf.vals {
					switch op {
					case OpPlus:
						res.floats = joinFloatAbs(res.floats, floatAbs{vals: map[float64]bool{f1 + f2: true}}, true)
					case OpMinus:
						res.floats = joinFloatAbs(res.floats, floatAbs{vals: map[float64]bool{f1 - f2: true}}, true)
					case OpTimes:
						res.floats = joinFloatAbs(res.floats, floatAbs{vals: map[float64]bool{f1 * f2: true}}, true)
					case OpDiv:
						if f2 == 0 {
							l.addErr(res, OperatorNotApplicable, "division by zero")
						} else {
							res.floats = joinFloatAbs(res.floats, floatAbs{vals: map[float64]bool{f1 / f2: true}}, true)
						}
					}
				}
			}
		}
	}
	return res
}

func intAbsToFloat(a intAbs) floatAbs {
	if a.top {
		return floatAbs{top: true}
	}
	vals := make(map[float64]bool, len(a.vals))
	for n := range a.vals {
		vals[float64(n)] = true
	}
	return floatAbs{vals: vals}
}

// intOp interprets quotient, modulo and remainder.
func (l *setLattice) intOp(op BinaryOperator, a, b *setValue) Value {
	res := newSetValue()
	if a.ints.empty() || b.ints.empty() {
		l.addErr(res, OperatorNotApplicable, op.String())
		return res
	}
	if a.ints.top || b.ints.top {
		res.ints = intAbs{top: true}
		l.addErr(res, OperatorNotApplicable, "division by zero")
		return res
	}
	for n1 := range a.ints.vals {
		for n2 := range b.ints.vals {
			if n2 == 0 {
				l.addErr(res, OperatorNotApplicable, "division by zero")
				continue
			}
			var r int64
			switch op {
			case OpQuotient:
				r = n1 / n2
			case OpRemainder:
				r = n1 % n2
			case OpModulo:
				r = ((n1 % n2) + n2) % n2
			}
			res.ints = joinIntAbs(res.ints, l.injectIntAbs(r), l.intBound < 0)
		}
	}
	return res
}

// cmpOp interprets the numeric comparisons.
func (l *setLattice) cmpOp(op BinaryOperator, a, b *setValue) Value {
	res := newSetValue()
	if !a.numeric() || !b.numeric() {
		l.addErr(res, OperatorNotApplicable, op.String())
	}
	af := numsAsFloat(a)
	bf := numsAsFloat(b)
	if af.top || bf.top {
		res.mayTrue = true
		res.mayFals = true
		return res
	}
	for f1 := range af.vals {
		for f2 := range bf.vals {
			var holds bool
			switch op {
			case OpLt:
				holds = f1 < f2
			case OpLe:
				holds = f1 <= f2
			case OpGt:
				holds = f1 > f2
			case OpGe:
				holds = f1 >= f2
			case OpNumEq:
				holds = f1 == f2
			}
			if holds {
				res.mayTrue = true
			} else {
				res.mayFals = true
			}
		}
	}
	return res
}

func numsAsFloat(a *setValue) floatAbs {
	return joinFloatAbs(a.floats, intAbsToFloat(a.ints), true)
}

// eqOp interprets eq?: definitely true only for equal singletons,
// definitely false only for provably disjoint values.
func (l *setLattice) eqOp(a, b *setValue) Value {
	overlap := false
	if a.ints.top && !b.ints.empty() || b.ints.top && !a.ints.empty() {
		overlap = true
	} else {
		for n := range a.ints.vals {
			if b.ints.vals[n] {
				overlap = true
			}
		}
	}
	if a.floats.top && !b.floats.empty() || b.floats.top && !a.floats.empty() {
		overlap = true
	} else {
		for f := range a.floats.vals {
			if b.floats.vals[f] {
				overlap = true
			}
		}
	}
	if a.strs.top && !b.strs.empty() || b.strs.top && !a.strs.empty() {
		overlap = true
	} else {
		for s := range a.strs.vals {
			if b.strs.vals[s] {
				overlap = true
			}
		}
	}
	for s := range a.syms {
		if b.syms[s] {
			overlap = true
		}
	}
	if a.mayTrue && b.mayTrue || a.mayFals && b.mayFals || a.isNil && b.isNil {
		overlap = true
	}
	for k := range a.closures {
		if _, ok := b.closures[k]; ok {
			overlap = true
		}
	}
	for p := range a.prims {
		if b.prims[p] {
			overlap = true
		}
	}
	for t := range a.tids {
		if b.tids[t] {
			overlap = true
		}
	}
	for p := range a.pids {
		if b.pids[p] {
			overlap = true
		}
	}
	for lk := range a.locks {
		if b.locks[lk] {
			overlap = true
		}
	}
	for c := range a.cars {
		if b.cars[c] {
			overlap = true
		}
	}
	for vc := range a.vecs {
		if b.vecs[vc] {
			overlap = true
		}
	}
	if !overlap {
		return l.boolVal(false, true)
	}
	// Equal singletons are definitely eq.
	if s1, ok1 := a.singleton(); ok1 {
		if s2, ok2 := b.singleton(); ok2 && s1 == s2 {
			return l.boolVal(true, false)
		}
	}
	return l.boolVal(true, true)
}

// singleton reports the canonical form of a one-element scalar value.
func (v *setValue) singleton() (string, bool) {
	count := 0
	repr := ""
	if v.ints.top || v.floats.top || v.strs.top || v.chars.top {
		return "", false
	}
	for n := range v.ints.vals {
		count++
		repr = fmt.Sprintf("i%v", n)
	}
	for f := range v.floats.vals {
		count++
		repr = fmt.Sprintf("f%v", f)
	}
	for s := range v.strs.vals {
		count++
		repr = "s" + s
	}
	for c := range v.chars.vals {
		count++
		repr = fmt.Sprintf("c%v", c)
	}
	for s := range v.syms {
		count++
		repr = "y" + s
	}
	if v.mayTrue {
		count++
		repr = "#t"
	}
	if v.mayFals {
		count++
		repr = "#f"
	}
	if v.isNil {
		count++
		repr = "()"
	}
	count += len(v.closures) + len(v.prims) + len(v.tids) + len(v.pids) +
		len(v.locks) + len(v.behs) + len(v.cars) + len(v.cdrs) + len(v.vecs)
	if count != 1 || repr == "" {
		return "", false
	}
	return repr, true
}

func (l *setLattice) stringAppendOp(a, b *setValue) Value {
	res := newSetValue()
	if a.strs.empty() || b.strs.empty() {
		l.addErr(res, OperatorNotApplicable, "string-append")
		if a.strs.empty() && b.strs.empty() {
			return res
		}
	}
	if a.strs.top || b.strs.top || l.intBound >= 0 {
		res.strs = strAbs{top: true}
		return res
	}
	vals := map[string]bool{}
	for s1 := range a.strs.vals {
		for s2 := range b.strs.vals {
			vals[s1+s2] = true
		}
	}
	res.strs = strAbs{vals: vals}
	return res
}

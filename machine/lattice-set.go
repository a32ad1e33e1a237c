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
	"sort"
	"strconv"
	"strings"
)

// maxScalarCard is the widening threshold for precise scalar sets.
// A set that grows past it collapses to top. The concrete lattice is
// exempt.
const maxScalarCard = 256

// setLattice implements the Concrete, TypeSet and BoundedInt domains
// as one family. The intBound parameter decides how much scalar
// precision survives injection:
//
//	intBound < 0   every scalar stays precise (Concrete)
//	intBound == 0  every scalar widens to its type (TypeSet)
//	intBound == N  integers within [-N, N] stay precise (BoundedInt)
type setLattice struct {
	name     string
	intBound int64
	counting bool
}

// NewConcreteLattice returns the lattice of precise value sets.
func NewConcreteLattice(counting bool) Lattice {
	return &setLattice{name: "Concrete", intBound: -1, counting: counting}
}

// NewTypeSetLattice returns the lattice that tracks scalars by type
// only. Closures, primitives, addresses, thread and actor identifiers
// are always kept as sets.
func NewTypeSetLattice(counting bool) Lattice {
	return &setLattice{name: "TypeSet", intBound: 0, counting: counting}
}

// NewBoundedIntLattice keeps integers with magnitude at most bound
// precise and widens the rest.
func NewBoundedIntLattice(bound int64, counting bool) Lattice {
	if bound < 0 {
		bound = 0
	}
	return &setLattice{name: "BoundedInt", intBound: bound, counting: counting}
}

// scalar abstractions: a set of precise values or top.

type intAbs struct {
	top  bool
	vals map[int64]bool
}

type floatAbs struct {
	top  bool
	vals map[float64]bool
}

type strAbs struct {
	top  bool
	vals map[string]bool
}

type charAbs struct {
	top  bool
	vals map[rune]bool
}

func (a intAbs) empty() bool   { return !a.top && len(a.vals) == 0 }
func (a floatAbs) empty() bool { return !a.top && len(a.vals) == 0 }
func (a strAbs) empty() bool   { return !a.top && len(a.vals) == 0 }
func (a charAbs) empty() bool  { return !a.top && len(a.vals) == 0 }

// setValue is the value representation shared by the whole family.
// Each field is one leaf of the union; bottom is the value with every
// leaf empty.
type setValue struct {
	ints    intAbs
	floats  floatAbs
	strs    strAbs
	chars   charAbs
	syms    map[string]bool
	mayTrue bool
	mayFals bool
	isNil   bool

	closures map[string]Closure
	prims    map[string]bool
	tids     map[TID]bool
	pids     map[PID]bool
	locks    map[Address]bool
	behs     map[string]Behavior
	cars     map[Address]bool
	cdrs     map[Address]bool
	vecs     map[Address]bool
	vecSize  intAbs
	errs     map[string]SemanticError
}

func newSetValue() *setValue {
	return &setValue{
		syms:     map[string]bool{},
		closures: map[string]Closure{},
		prims:    map[string]bool{},
		tids:     map[TID]bool{},
		pids:     map[PID]bool{},
		locks:    map[Address]bool{},
		behs:     map[string]Behavior{},
		cars:     map[Address]bool{},
		cdrs:     map[Address]bool{},
		vecs:     map[Address]bool{},
		errs:     map[string]SemanticError{},
	}
}

func (v *setValue) isBottom() bool {
	return v.ints.empty() && v.floats.empty() && v.strs.empty() && v.chars.empty() &&
		len(v.syms) == 0 && !v.mayTrue && !v.mayFals && !v.isNil &&
		len(v.closures) == 0 && len(v.prims) == 0 && len(v.tids) == 0 &&
		len(v.pids) == 0 && len(v.locks) == 0 && len(v.behs) == 0 &&
		len(v.cars) == 0 && len(v.cdrs) == 0 && len(v.vecs) == 0 &&
		len(v.errs) == 0
}

// hasPair reports whether the value denotes at least one pair.
func (v *setValue) hasPair() bool {
	return 0 < len(v.cars) || 0 < len(v.cdrs)
}

func (v *setValue) String() string {
	var parts []string
	if v.ints.top {
		parts = append(parts, "Int")
	} else {
		ints := make([]string, 0, len(v.ints.vals))
		for n := range v.ints.vals {
			ints = append(ints, strconv.FormatInt(n, 10))
		}
		sort.Strings(ints)
		parts = append(parts, ints...)
	}
	if v.floats.top {
		parts = append(parts, "Float")
	} else {
		for f := range v.floats.vals {
			repr := strconv.FormatFloat(f, 'g', -1, 64)
			if !strings.ContainsAny(repr, ".eE") {
				repr += ".0"
			}
			parts = append(parts, repr)
		}
	}
	if v.strs.top {
		parts = append(parts, "String")
	} else {
		for s := range v.strs.vals {
			parts = append(parts, strconv.Quote(s))
		}
	}
	if v.chars.top {
		parts = append(parts, "Char")
	} else {
		for c := range v.chars.vals {
			parts = append(parts, fmt.Sprintf("#\\%c", c))
		}
	}
	syms := make([]string, 0, len(v.syms))
	for s := range v.syms {
		syms = append(syms, "'"+s)
	}
	sort.Strings(syms)
	parts = append(parts, syms...)
	if v.mayTrue {
		parts = append(parts, "#t")
	}
	if v.mayFals {
		parts = append(parts, "#f")
	}
	if v.isNil {
		parts = append(parts, "()")
	}
	if 0 < len(v.closures) {
		parts = append(parts, fmt.Sprintf("#<closures:%v>", len(v.closures)))
	}
	if 0 < len(v.prims) {
		parts = append(parts, fmt.Sprintf("#<prims:%v>", len(v.prims)))
	}
	if 0 < len(v.tids) {
		parts = append(parts, fmt.Sprintf("#<tids:%v>", len(v.tids)))
	}
	if 0 < len(v.pids) {
		parts = append(parts, fmt.Sprintf("#<pids:%v>", len(v.pids)))
	}
	if 0 < len(v.locks) {
		parts = append(parts, fmt.Sprintf("#<locks:%v>", len(v.locks)))
	}
	if 0 < len(v.behs) {
		parts = append(parts, fmt.Sprintf("#<behaviors:%v>", len(v.behs)))
	}
	if v.hasPair() {
		parts = append(parts, "Pair")
	}
	if 0 < len(v.vecs) {
		parts = append(parts, "Vector")
	}
	for _, e := range v.sortedErrs() {
		parts = append(parts, fmt.Sprintf("error(%v)", e))
	}
	if len(parts) == 0 {
		return "bot"
	}
	if len(parts) == 1 {
		return parts[0]
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

func (v *setValue) sortedErrs() []SemanticError {
	keys := make([]string, 0, len(v.errs))
	for k := range v.errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]SemanticError, 0, len(keys))
	for _, k := range keys {
		res = append(res, v.errs[k])
	}
	return res
}

// asSet coerces a Value to the family representation, treating any
// foreign value as bottom.
func (l *setLattice) asSet(v Value) *setValue {
	if sv, ok := v.(*setValue); ok {
		return sv
	}
	return newSetValue()
}

func (l *setLattice) Name() string {
	return l.name
}

func (l *setLattice) Counting() bool {
	return l.counting
}

func (l *setLattice) Bottom() Value {
	return newSetValue()
}

func (l *setLattice) IsBottom(v Value) bool {
	return l.asSet(v).isBottom()
}

// injections

func (l *setLattice) injectIntAbs(n int64) intAbs {
	if l.intBound == 0 {
		return intAbs{top: true}
	}
	if 0 < l.intBound && (n < -l.intBound || l.intBound < n) {
		return intAbs{top: true}
	}
	return intAbs{vals: map[int64]bool{n: true}}
}

func (l *setLattice) InjectInt(n int64) Value {
	v := newSetValue()
	v.ints = l.injectIntAbs(n)
	return v
}

func (l *setLattice) InjectFloat(f float64) Value {
	v := newSetValue()
	if l.intBound < 0 {
		v.floats = floatAbs{vals: map[float64]bool{f: true}}
	} else {
		v.floats = floatAbs{top: true}
	}
	return v
}

func (l *setLattice) InjectBool(b bool) Value {
	v := newSetValue()
	if b {
		v.mayTrue = true
	} else {
		v.mayFals = true
	}
	return v
}

func (l *setLattice) InjectString(s string) Value {
	v := newSetValue()
	if l.intBound < 0 {
		v.strs = strAbs{vals: map[string]bool{s: true}}
	} else {
		v.strs = strAbs{top: true}
	}
	return v
}

// Symbols stay precise in every member of the family: the set of
// symbols is bounded by the program text.
func (l *setLattice) InjectSymbol(s string) Value {
	v := newSetValue()
	v.syms[s] = true
	return v
}

func (l *setLattice) InjectChar(r rune) Value {
	v := newSetValue()
	if l.intBound < 0 {
		v.chars = charAbs{vals: map[rune]bool{r: true}}
	} else {
		v.chars = charAbs{top: true}
	}
	return v
}

func (l *setLattice) InjectNil() Value {
	v := newSetValue()
	v.isNil = true
	return v
}

func (l *setLattice) InjectClosure(lam Exp, env Env) Value {
	v := newSetValue()
	c := Closure{Lam: lam, Env: env}
	v.closures[c.key()] = c
	return v
}

func (l *setLattice) InjectPrimitive(name string) Value {
	v := newSetValue()
	v.prims[name] = true
	return v
}

func (l *setLattice) InjectTid(tid TID) Value {
	v := newSetValue()
	v.tids[tid] = true
	return v
}

func (l *setLattice) InjectPid(pid PID) Value {
	v := newSetValue()
	v.pids[pid] = true
	return v
}

func (l *setLattice) InjectLock(a Address) Value {
	v := newSetValue()
	v.locks[a] = true
	return v
}

func (l *setLattice) InjectBehavior(b Behavior) Value {
	v := newSetValue()
	v.behs[b.key()] = b
	return v
}

func (l *setLattice) InjectCons(car, cdr Address) Value {
	v := newSetValue()
	v.cars[car] = true
	v.cdrs[cdr] = true
	return v
}

func (l *setLattice) InjectVector(cell Address, size Value) Value {
	v := newSetValue()
	v.vecs[cell] = true
	v.vecSize = l.asSet(size).ints
	return v
}

func (l *setLattice) InjectError(err SemanticError) Value {
	v := newSetValue()
	v.errs[err.String()] = err
	return v
}

// joins on scalar abstractions

func joinIntAbs(a, b intAbs, unbounded bool) intAbs {
	if a.top || b.top {
		return intAbs{top: true}
	}
	if len(a.vals) == 0 {
		return b
	}
	if len(b.vals) == 0 {
		return a
	}
	vals := make(map[int64]bool, len(a.vals)+len(b.vals))
	for n := range a.vals {
		vals[n] = true
	}
	for n := range b.vals {
		vals[n] = true
	}
	if !unbounded && maxScalarCard < len(vals) {
		return intAbs{top: true}
	}
	return intAbs{vals: vals}
}

func joinFloatAbs(a, b floatAbs, unbounded bool) floatAbs {
	if a.top || b.top {
		return floatAbs{top: true}
	}
	if len(a.vals) == 0 {
		return b
	}
	if len(b.vals) == 0 {
		return a
	}
	vals := make(map[float64]bool, len(a.vals)+len(b.vals))
	for n := range a.vals {
		vals[n] = true
	}
	for n := range b.vals {
		vals[n] = true
	}
	if !unbounded && maxScalarCard < len(vals) {
		return floatAbs{top: true}
	}
	return floatAbs{vals: vals}
}

func joinStrAbs(a, b strAbs, unbounded bool) strAbs {
	if a.top || b.top {
		return strAbs{top: true}
	}
	if len(a.vals) == 0 {
		return b
	}
	if len(b.vals) == 0 {
		return a
	}
	vals := make(map[string]bool, len(a.vals)+len(b.vals))
	for s := range a.vals {
		vals[s] = true
	}
	for s := range b.vals {
		vals[s] = true
	}
	if !unbounded && maxScalarCard < len(vals) {
		return strAbs{top: true}
	}
	return strAbs{vals: vals}
}

func joinCharAbs(a, b charAbs) charAbs {
	if a.top || b.top {
		return charAbs{top: true}
	}
	if len(a.vals) == 0 {
		return b
	}
	if len(b.vals) == 0 {
		return a
	}
	vals := make(map[rune]bool, len(a.vals)+len(b.vals))
	for c := range a.vals {
		vals[c] = true
	}
	for c := range b.vals {
		vals[c] = true
	}
	return charAbs{vals: vals}
}

func (l *setLattice) Join(x, y Value) Value {
	a := l.asSet(x)
	b := l.asSet(y)
	unbounded := l.intBound < 0
	res := newSetValue()
	res.ints = joinIntAbs(a.ints, b.ints, unbounded)
	res.floats = joinFloatAbs(a.floats, b.floats, unbounded)
	res.strs = joinStrAbs(a.strs, b.strs, unbounded)
	res.chars = joinCharAbs(a.chars, b.chars)
	res.vecSize = joinIntAbs(a.vecSize, b.vecSize, unbounded)
	res.mayTrue = a.mayTrue || b.mayTrue
	res.mayFals = a.mayFals || b.mayFals
	res.isNil = a.isNil || b.isNil
	for _, src := range []*setValue{a, b} {
		for s := range src.syms {
			res.syms[s] = true
		}
		for k, c := range src.closures {
			res.closures[k] = c
		}
		for p := range src.prims {
			res.prims[p] = true
		}
		for t := range src.tids {
			res.tids[t] = true
		}
		for p := range src.pids {
			res.pids[p] = true
		}
		for lk := range src.locks {
			res.locks[lk] = true
		}
		for k, bh := range src.behs {
			res.behs[k] = bh
		}
		for c := range src.cars {
			res.cars[c] = true
		}
		for c := range src.cdrs {
			res.cdrs[c] = true
		}
		for vc := range src.vecs {
			res.vecs[vc] = true
		}
		for k, e := range src.errs {
			res.errs[k] = e
		}
	}
	return res
}

func subsumesIntAbs(a, b intAbs) bool {
	if a.top {
		return true
	}
	if b.top {
		return false
	}
	for n := range b.vals {
		if !a.vals[n] {
			return false
		}
	}
	return true
}

func subsumesFloatAbs(a, b floatAbs) bool {
	if a.top {
		return true
	}
	if b.top {
		return false
	}
	for n := range b.vals {
		if !a.vals[n] {
			return false
		}
	}
	return true
}

func subsumesStrAbs(a, b strAbs) bool {
	if a.top {
		return true
	}
	if b.top {
		return false
	}
	for s := range b.vals {
		if !a.vals[s] {
			return false
		}
	}
	return true
}

func subsumesCharAbs(a, b charAbs) bool {
	if a.top {
		return true
	}
	if b.top {
		return false
	}
	for c := range b.vals {
		if !a.vals[c] {
			return false
		}
	}
	return true
}

// Subsumes reports x ⊒ y.
func (l *setLattice) Subsumes(x, y Value) bool {
	a := l.asSet(x)
	b := l.asSet(y)
	if !subsumesIntAbs(a.ints, b.ints) || !subsumesFloatAbs(a.floats, b.floats) ||
		!subsumesStrAbs(a.strs, b.strs) || !subsumesCharAbs(a.chars, b.chars) ||
		!subsumesIntAbs(a.vecSize, b.vecSize) {
		return false
	}
	if (b.mayTrue && !a.mayTrue) || (b.mayFals && !a.mayFals) || (b.isNil && !a.isNil) {
		return false
	}
	for s := range b.syms {
		if !a.syms[s] {
			return false
		}
	}
	for k := range b.closures {
		if _, ok := a.closures[k]; !ok {
			return false
		}
	}
	for p := range b.prims {
		if !a.prims[p] {
			return false
		}
	}
	for t := range b.tids {
		if !a.tids[t] {
			return false
		}
	}
	for p := range b.pids {
		if !a.pids[p] {
			return false
		}
	}
	for lk := range b.locks {
		if !a.locks[lk] {
			return false
		}
	}
	for k := range b.behs {
		if _, ok := a.behs[k]; !ok {
			return false
		}
	}
	for c := range b.cars {
		if !a.cars[c] {
			return false
		}
	}
	for c := range b.cdrs {
		if !a.cdrs[c] {
			return false
		}
	}
	for vc := range b.vecs {
		if !a.vecs[vc] {
			return false
		}
	}
	for k := range b.errs {
		if _, ok := a.errs[k]; !ok {
			return false
		}
	}
	return true
}

// IsTrue reports whether the value may be truthy. Everything except
// #f is truthy.
func (l *setLattice) IsTrue(v Value) bool {
	a := l.asSet(v)
	if a.mayTrue || a.isNil || a.hasPair() {
		return true
	}
	return !a.ints.empty() || !a.floats.empty() || !a.strs.empty() || !a.chars.empty() ||
		0 < len(a.syms) || 0 < len(a.closures) || 0 < len(a.prims) ||
		0 < len(a.tids) || 0 < len(a.pids) || 0 < len(a.locks) ||
		0 < len(a.behs) || 0 < len(a.vecs)
}

func (l *setLattice) IsFalse(v Value) bool {
	return l.asSet(v).mayFals
}

func (l *setLattice) IsError(v Value) bool {
	return 0 < len(l.asSet(v).errs)
}

// extractors

func (l *setLattice) Closures(v Value) []Closure {
	a := l.asSet(v)
	keys := make([]string, 0, len(a.closures))
	for k := range a.closures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]Closure, 0, len(keys))
	for _, k := range keys {
		res = append(res, a.closures[k])
	}
	return res
}

func (l *setLattice) Primitives(v Value) []string {
	a := l.asSet(v)
	res := make([]string, 0, len(a.prims))
	for p := range a.prims {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

func (l *setLattice) Tids(v Value) []TID {
	a := l.asSet(v)
	res := make([]TID, 0, len(a.tids))
	for t := range a.tids {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (l *setLattice) Pids(v Value) []PID {
	a := l.asSet(v)
	res := make([]PID, 0, len(a.pids))
	for p := range a.pids {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (l *setLattice) Locks(v Value) []Address {
	a := l.asSet(v)
	res := make([]Address, 0, len(a.locks))
	for lk := range a.locks {
		res = append(res, lk)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (l *setLattice) Behaviors(v Value) []Behavior {
	a := l.asSet(v)
	keys := make([]string, 0, len(a.behs))
	for k := range a.behs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]Behavior, 0, len(keys))
	for _, k := range keys {
		res = append(res, a.behs[k])
	}
	return res
}

func (l *setLattice) Car(v Value) []Address {
	a := l.asSet(v)
	res := make([]Address, 0, len(a.cars))
	for c := range a.cars {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (l *setLattice) Cdr(v Value) []Address {
	a := l.asSet(v)
	res := make([]Address, 0, len(a.cdrs))
	for c := range a.cdrs {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (l *setLattice) Vectors(v Value) []Address {
	a := l.asSet(v)
	res := make([]Address, 0, len(a.vecs))
	for c := range a.vecs {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

func (l *setLattice) VectorSize(v Value) Value {
	res := newSetValue()
	res.ints = l.asSet(v).vecSize
	return res
}

func (l *setLattice) Errors(v Value) []SemanticError {
	return l.asSet(v).sortedErrs()
}

func (l *setLattice) WithoutErrors(v Value) Value {
	a := l.asSet(v)
	if len(a.errs) == 0 {
		return a
	}
	res := l.asSet(l.Join(l.Bottom(), a))
	res.errs = map[string]SemanticError{}
	return res
}

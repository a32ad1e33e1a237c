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

// Parse reads a whole program and compiles it to a single expression.
// Top-level defines become a letrec around the remaining forms.
func Parse(source string) (machine.Exp, error) {
	forms, err := ReadAll(source)
	if err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	return compileBody(forms, forms[0].Pos())
}

// compileBody compiles a form sequence with leading defines into a
// letrec, so definitions may be mutually recursive.
func compileBody(forms []*SExp, pos machine.Position) (machine.Exp, error) {
	var defs []BindingExp
	idx := 0
	for idx < len(forms) && isDefine(forms[idx]) {
		name, init, err := compileDefine(forms[idx])
		if err != nil {
			return nil, err
		}
		defs = append(defs, BindingExp{Name: name, Init: init})
		idx++
	}
	rest := forms[idx:]
	if len(rest) == 0 {
		return nil, fmt.Errorf("%v: a body needs at least one expression", pos)
	}
	var body machine.Exp
	if len(rest) == 1 {
		e, err := compile(rest[0])
		if err != nil {
			return nil, err
		}
		body = e
	} else {
		exps := make([]machine.Exp, 0, len(rest))
		for _, f := range rest {
			if isDefine(f) {
				return nil, fmt.Errorf("%v: define must precede body expressions", f.Pos())
			}
			e, err := compile(f)
			if err != nil {
				return nil, err
			}
			exps = append(exps, e)
		}
		body = Begin{Body: exps, pos: rest[0].Pos()}
	}
	if len(defs) == 0 {
		return body, nil
	}
	return Letrec{Bindings: defs, Body: body, pos: pos}, nil
}

func isDefine(s *SExp) bool {
	return s.Kind == SExpList && 0 < len(s.List) &&
		s.List[0].Kind == SExpSymbol && s.List[0].Sym == "define"
}

func compileDefine(s *SExp) (string, machine.Exp, error) {
	if len(s.List) < 3 {
		return "", nil, fmt.Errorf("%v: malformed define", s.Pos())
	}
	target := s.List[1]
	if target.Kind == SExpSymbol {
		if len(s.List) != 3 {
			return "", nil, fmt.Errorf("%v: malformed define", s.Pos())
		}
		init, err := compile(s.List[2])
		return target.Sym, init, err
	}
	// (define (f x ...) body ...) sugar.
	if target.Kind != SExpList || len(target.List) == 0 || target.List[0].Kind != SExpSymbol {
		return "", nil, fmt.Errorf("%v: malformed define header", s.Pos())
	}
	name := target.List[0].Sym
	params, err := symbolNames(target.List[1:])
	if err != nil {
		return "", nil, err
	}
	body, err := compileBody(s.List[2:], s.Pos())
	if err != nil {
		return "", nil, err
	}
	return name, Lambda{Params: params, Body: body, pos: s.Pos()}, nil
}

func symbolNames(forms []*SExp) ([]string, error) {
	names := make([]string, 0, len(forms))
	for _, f := range forms {
		if f.Kind != SExpSymbol {
			return nil, fmt.Errorf("%v: expected a name", f.Pos())
		}
		names = append(names, f.Sym)
	}
	return names, nil
}

func compile(s *SExp) (machine.Exp, error) {
	switch s.Kind {
	case SExpInt:
		return Num{Val: s.Int, pos: s.Pos()}, nil
	case SExpFloat:
		return Flo{Val: s.Float, pos: s.Pos()}, nil
	case SExpString:
		return Str{Val: s.Str, pos: s.Pos()}, nil
	case SExpBool:
		return Bool{Val: s.Bool, pos: s.Pos()}, nil
	case SExpChar:
		return Char{Val: s.Char, pos: s.Pos()}, nil
	case SExpSymbol:
		return Var{Name: s.Sym, pos: s.Pos()}, nil
	}
	if len(s.List) == 0 {
		return Nil{pos: s.Pos()}, nil
	}
	if head := s.List[0]; head.Kind == SExpSymbol {
		switch head.Sym {
		case "quote":
			if len(s.List) != 2 {
				return nil, fmt.Errorf("%v: malformed quote", s.Pos())
			}
			return compileQuoted(s.List[1])
		case "lambda":
			return compileLambda(s)
		case "if":
			return compileIf(s)
		case "let":
			return compileLet(s)
		case "let*":
			return compileLetStar(s)
		case "letrec":
			return compileLetrec(s)
		case "set!":
			if len(s.List) != 3 || s.List[1].Kind != SExpSymbol {
				return nil, fmt.Errorf("%v: malformed set!", s.Pos())
			}
			init, err := compile(s.List[2])
			if err != nil {
				return nil, err
			}
			return Set{Name: s.List[1].Sym, Init: init, pos: s.Pos()}, nil
		case "begin":
			return compileBody(s.List[1:], s.Pos())
		case "and":
			exps, err := compileAll(s.List[1:])
			if err != nil {
				return nil, err
			}
			return And{Exps: exps, pos: s.Pos()}, nil
		case "or":
			exps, err := compileAll(s.List[1:])
			if err != nil {
				return nil, err
			}
			return Or{Exps: exps, pos: s.Pos()}, nil
		case "cond":
			return compileCond(s)
		case "define":
			return nil, fmt.Errorf("%v: define not allowed here", s.Pos())
		case "spawn":
			if len(s.List) != 2 {
				return nil, fmt.Errorf("%v: malformed spawn", s.Pos())
			}
			e, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			return Spawn{E: e, pos: s.Pos()}, nil
		case "join":
			if len(s.List) != 2 {
				return nil, fmt.Errorf("%v: malformed join", s.Pos())
			}
			e, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			return Join{E: e, pos: s.Pos()}, nil
		case "new-lock":
			if len(s.List) != 1 {
				return nil, fmt.Errorf("%v: malformed new-lock", s.Pos())
			}
			return NewLock{pos: s.Pos()}, nil
		case "acquire":
			if len(s.List) != 2 {
				return nil, fmt.Errorf("%v: malformed acquire", s.Pos())
			}
			e, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			return Acquire{E: e, pos: s.Pos()}, nil
		case "release":
			if len(s.List) != 2 {
				return nil, fmt.Errorf("%v: malformed release", s.Pos())
			}
			e, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			return Release{E: e, pos: s.Pos()}, nil
		case "actor":
			return compileActor(s)
		case "create":
			if len(s.List) < 2 {
				return nil, fmt.Errorf("%v: malformed create", s.Pos())
			}
			beh, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			args, err := compileAll(s.List[2:])
			if err != nil {
				return nil, err
			}
			return Create{Beh: beh, Args: args, pos: s.Pos()}, nil
		case "send":
			if len(s.List) < 3 || s.List[2].Kind != SExpSymbol {
				return nil, fmt.Errorf("%v: malformed send", s.Pos())
			}
			target, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			args, err := compileAll(s.List[3:])
			if err != nil {
				return nil, err
			}
			return Send{Target: target, Message: s.List[2].Sym, Args: args, pos: s.Pos()}, nil
		case "become":
			if len(s.List) < 2 {
				return nil, fmt.Errorf("%v: malformed become", s.Pos())
			}
			beh, err := compile(s.List[1])
			if err != nil {
				return nil, err
			}
			args, err := compileAll(s.List[2:])
			if err != nil {
				return nil, err
			}
			return Become{Beh: beh, Args: args, pos: s.Pos()}, nil
		case "terminate":
			if len(s.List) != 1 {
				return nil, fmt.Errorf("%v: malformed terminate", s.Pos())
			}
			return Terminate{pos: s.Pos()}, nil
		}
	}
	// Application.
	operator, err := compile(s.List[0])
	if err != nil {
		return nil, err
	}
	operands, err := compileAll(s.List[1:])
	if err != nil {
		return nil, err
	}
	return App{Operator: operator, Operands: operands, pos: s.Pos()}, nil
}

func compileAll(forms []*SExp) ([]machine.Exp, error) {
	exps := make([]machine.Exp, 0, len(forms))
	for _, f := range forms {
		e, err := compile(f)
		if err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return exps, nil
}

// compileQuoted turns a quoted datum into an expression. Quoted lists
// become cons chains, so the store layout of literal and constructed
// lists is the same.
func compileQuoted(s *SExp) (machine.Exp, error) {
	switch s.Kind {
	case SExpInt:
		return Num{Val: s.Int, pos: s.Pos()}, nil
	case SExpFloat:
		return Flo{Val: s.Float, pos: s.Pos()}, nil
	case SExpString:
		return Str{Val: s.Str, pos: s.Pos()}, nil
	case SExpBool:
		return Bool{Val: s.Bool, pos: s.Pos()}, nil
	case SExpChar:
		return Char{Val: s.Char, pos: s.Pos()}, nil
	case SExpSymbol:
		return Sym{Name: s.Sym, pos: s.Pos()}, nil
	}
	res := machine.Exp(Nil{pos: s.Pos()})
	for i := len(s.List) - 1; 0 <= i; i-- {
		elem, err := compileQuoted(s.List[i])
		if err != nil {
			return nil, err
		}
		res = App{
			Operator: Var{Name: "cons", pos: s.List[i].Pos()},
			Operands: []machine.Exp{elem, res},
			pos:      s.List[i].Pos(),
		}
	}
	return res, nil
}

func compileLambda(s *SExp) (machine.Exp, error) {
	if len(s.List) < 3 || s.List[1].Kind != SExpList {
		return nil, fmt.Errorf("%v: malformed lambda", s.Pos())
	}
	params, err := symbolNames(s.List[1].List)
	if err != nil {
		return nil, err
	}
	body, err := compileBody(s.List[2:], s.Pos())
	if err != nil {
		return nil, err
	}
	return Lambda{Params: params, Body: body, pos: s.Pos()}, nil
}

func compileIf(s *SExp) (machine.Exp, error) {
	if len(s.List) != 3 && len(s.List) != 4 {
		return nil, fmt.Errorf("%v: malformed if", s.Pos())
	}
	cond, err := compile(s.List[1])
	if err != nil {
		return nil, err
	}
	cons, err := compile(s.List[2])
	if err != nil {
		return nil, err
	}
	alt := machine.Exp(Bool{Val: false, pos: s.Pos()})
	if len(s.List) == 4 {
		alt, err = compile(s.List[3])
		if err != nil {
			return nil, err
		}
	}
	return If{Cond: cond, Cons: cons, Alt: alt, pos: s.Pos()}, nil
}

func compileBindings(s *SExp) ([]BindingExp, error) {
	if s.Kind != SExpList {
		return nil, fmt.Errorf("%v: expected a binding list", s.Pos())
	}
	bindings := make([]BindingExp, 0, len(s.List))
	for _, b := range s.List {
		if b.Kind != SExpList || len(b.List) != 2 || b.List[0].Kind != SExpSymbol {
			return nil, fmt.Errorf("%v: malformed binding", b.Pos())
		}
		init, err := compile(b.List[1])
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, BindingExp{Name: b.List[0].Sym, Init: init})
	}
	return bindings, nil
}

func compileLet(s *SExp) (machine.Exp, error) {
	if len(s.List) < 3 {
		return nil, fmt.Errorf("%v: malformed let", s.Pos())
	}
	// Named let desugars into a letrec of a lambda.
	if s.List[1].Kind == SExpSymbol {
		if len(s.List) < 4 {
			return nil, fmt.Errorf("%v: malformed named let", s.Pos())
		}
		name := s.List[1].Sym
		bindings, err := compileBindings(s.List[2])
		if err != nil {
			return nil, err
		}
		body, err := compileBody(s.List[3:], s.Pos())
		if err != nil {
			return nil, err
		}
		params := make([]string, 0, len(bindings))
		args := make([]machine.Exp, 0, len(bindings))
		for _, b := range bindings {
			params = append(params, b.Name)
			args = append(args, b.Init)
		}
		loop := Lambda{Params: params, Body: body, pos: s.Pos()}
		call := App{Operator: Var{Name: name, pos: s.Pos()}, Operands: args, pos: s.Pos()}
		return Letrec{
			Bindings: []BindingExp{{Name: name, Init: loop}},
			Body:     call,
			pos:      s.Pos(),
		}, nil
	}
	bindings, err := compileBindings(s.List[1])
	if err != nil {
		return nil, err
	}
	body, err := compileBody(s.List[2:], s.Pos())
	if err != nil {
		return nil, err
	}
	return Let{Bindings: bindings, Body: body, pos: s.Pos()}, nil
}

func compileLetStar(s *SExp) (machine.Exp, error) {
	if len(s.List) < 3 {
		return nil, fmt.Errorf("%v: malformed let*", s.Pos())
	}
	bindings, err := compileBindings(s.List[1])
	if err != nil {
		return nil, err
	}
	body, err := compileBody(s.List[2:], s.Pos())
	if err != nil {
		return nil, err
	}
	return LetStar{Bindings: bindings, Body: body, pos: s.Pos()}, nil
}

func compileLetrec(s *SExp) (machine.Exp, error) {
	if len(s.List) < 3 {
		return nil, fmt.Errorf("%v: malformed letrec", s.Pos())
	}
	bindings, err := compileBindings(s.List[1])
	if err != nil {
		return nil, err
	}
	body, err := compileBody(s.List[2:], s.Pos())
	if err != nil {
		return nil, err
	}
	return Letrec{Bindings: bindings, Body: body, pos: s.Pos()}, nil
}

func compileCond(s *SExp) (machine.Exp, error) {
	res := machine.Exp(Bool{Val: false, pos: s.Pos()})
	for i := len(s.List) - 1; 1 <= i; i-- {
		clause := s.List[i]
		if clause.Kind != SExpList || len(clause.List) < 2 {
			return nil, fmt.Errorf("%v: malformed cond clause", clause.Pos())
		}
		body, err := compileBody(clause.List[1:], clause.Pos())
		if err != nil {
			return nil, err
		}
		if clause.List[0].Kind == SExpSymbol && clause.List[0].Sym == "else" {
			if i != len(s.List)-1 {
				return nil, fmt.Errorf("%v: else must be the last cond clause", clause.Pos())
			}
			res = body
			continue
		}
		cond, err := compile(clause.List[0])
		if err != nil {
			return nil, err
		}
		res = If{Cond: cond, Cons: body, Alt: res, pos: clause.Pos()}
	}
	return res, nil
}

func compileActor(s *SExp) (machine.Exp, error) {
	if len(s.List) < 2 || s.List[1].Kind != SExpList {
		return nil, fmt.Errorf("%v: malformed actor", s.Pos())
	}
	stateParams, err := symbolNames(s.List[1].List)
	if err != nil {
		return nil, err
	}
	handlers := make([]Handler, 0, len(s.List)-2)
	for _, h := range s.List[2:] {
		if h.Kind != SExpList || len(h.List) < 3 ||
			h.List[0].Kind != SExpSymbol || h.List[1].Kind != SExpList {
			return nil, fmt.Errorf("%v: malformed message handler", h.Pos())
		}
		params, err := symbolNames(h.List[1].List)
		if err != nil {
			return nil, err
		}
		body, err := compileBody(h.List[2:], h.Pos())
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, Handler{Name: h.List[0].Sym, Params: params, Body: body})
	}
	return ActorExp{StateParams: stateParams, Handlers: handlers, pos: s.Pos()}, nil
}

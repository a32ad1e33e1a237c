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

// MayFail threads recoverable errors through a single semantics step.
// It is a plain pair of successes and errors with a monoid append; the
// driver lowers it to error actions plus success actions.
type MayFail[T any] struct {
	oks  []T
	errs []SemanticError
}

// Success wraps a single success.
func Success[T any](v T) MayFail[T] {
	return MayFail[T]{oks: []T{v}}
}

// Failure wraps a single error.
func Failure[T any](err SemanticError) MayFail[T] {
	return MayFail[T]{errs: []SemanticError{err}}
}

// Append combines two results; it is the monoid operation.
func (m MayFail[T]) Append(other MayFail[T]) MayFail[T] {
	return MayFail[T]{
		oks:  append(append([]T{}, m.oks...), other.oks...),
		errs: append(append([]SemanticError{}, m.errs...), other.errs...),
	}
}

// AddError tags the result with one more error.
func (m MayFail[T]) AddError(err SemanticError) MayFail[T] {
	return m.Append(Failure[T](err))
}

// Successes returns the successful outcomes.
func (m MayFail[T]) Successes() []T {
	return m.oks
}

// Errors returns the recoverable errors.
func (m MayFail[T]) Errors() []SemanticError {
	return m.errs
}

// BindMayFail applies f to every success, keeping the accumulated
// errors.
func BindMayFail[T, U any](m MayFail[T], f func(T) MayFail[U]) MayFail[U] {
	res := MayFail[U]{}
	for _, err := range m.errs {
		res = res.AddError(err)
	}
	for _, ok := range m.oks {
		res = res.Append(f(ok))
	}
	return res
}

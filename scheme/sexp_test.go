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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAtoms(t *testing.T) {
	forms, err := ReadAll(`42 -7 3.25 "hi" #t #f #\a #\space foo`)
	require.NoError(t, err)
	require.Len(t, forms, 9)

	assert.Equal(t, SExpInt, forms[0].Kind)
	assert.Equal(t, int64(42), forms[0].Int)
	assert.Equal(t, int64(-7), forms[1].Int)
	assert.Equal(t, SExpFloat, forms[2].Kind)
	assert.Equal(t, 3.25, forms[2].Float)
	assert.Equal(t, SExpString, forms[3].Kind)
	assert.Equal(t, "hi", forms[3].Str)
	assert.Equal(t, SExpBool, forms[4].Kind)
	assert.True(t, forms[4].Bool)
	assert.False(t, forms[5].Bool)
	assert.Equal(t, SExpChar, forms[6].Kind)
	assert.Equal(t, 'a', forms[6].Char)
	assert.Equal(t, ' ', forms[7].Char)
	assert.Equal(t, SExpSymbol, forms[8].Kind)
	assert.Equal(t, "foo", forms[8].Sym)
}

func TestReadNestedLists(t *testing.T) {
	forms, err := ReadAll(`(let ((x 1)) (+ x 2))`)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	top := forms[0]
	require.Equal(t, SExpList, top.Kind)
	require.Len(t, top.List, 3)
	assert.Equal(t, "let", top.List[0].Sym)
	assert.Equal(t, "(let ((x 1)) (+ x 2))", top.String())
}

func TestReadQuoteShorthand(t *testing.T) {
	forms, err := ReadAll(`'(a b)`)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	q := forms[0]
	require.Equal(t, SExpList, q.Kind)
	require.Len(t, q.List, 2)
	assert.Equal(t, "quote", q.List[0].Sym)
}

func TestReadComments(t *testing.T) {
	forms, err := ReadAll("; a comment\n(+ 1 2) ; trailing\n")
	require.NoError(t, err)
	require.Len(t, forms, 1)
}

func TestReadPositions(t *testing.T) {
	forms, err := ReadAll("(a)\n  (b)")
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, 1, forms[0].Pos().Line)
	assert.Equal(t, 2, forms[1].Pos().Line)
	assert.Equal(t, 3, forms[1].Pos().Col)
}

func TestReadErrors(t *testing.T) {
	_, err := ReadAll(`(unterminated`)
	assert.Error(t, err)
	_, err = ReadAll(`)`)
	assert.Error(t, err)
	_, err = ReadAll(`"open`)
	assert.Error(t, err)
}

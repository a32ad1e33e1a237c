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

package machine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practical-formal-methods/spelt/machine"
	"github.com/practical-formal-methods/spelt/scheme"
)

func actorRunner(lat machine.Lattice, bound int) func(context.Context, string) (*machine.Result, error) {
	alloc := machine.ClassicalAllocator{}
	sem := scheme.NewSemantics(lat, alloc)
	return machine.NewActorAAM(sem, lat, alloc, machine.KCFA{K: 1}, bound, machine.Options{}).RunSource
}

// pipe-seq: three +1 nodes in front of a sink, seeded with 0. The sink
// reports its input through a user error, which makes the received
// value observable on the result.
const pipeSeqProgram = `
(define node
  (actor (next)
    (msg (x)
      (send next msg (+ x 1))
      (terminate))))
(define sink
  (actor ()
    (msg (x)
      (error (number->string x)))))
(define s (create sink))
(define n3 (create node s))
(define n2 (create node n3))
(define n1 (create node n2))
(send n1 msg 0)`

func TestActorPipeline(t *testing.T) {
	lat := machine.NewConcreteLattice(false)
	res, err := actorRunner(lat, 1)(context.Background(), pipeSeqProgram)
	require.NoError(t, err)
	assert.False(t, res.TimedOut())
	assert.True(t, 0 < res.NumberOfStates())

	// The sink terminates the pipeline by raising on its input, and
	// the input is the seed incremented once per node.
	found := false
	for _, e := range res.Errors() {
		if e.Kind == machine.UserError && strings.Contains(e.Msg, "3") {
			found = true
		}
	}
	assert.True(t, found, "expected the sink to observe 3, errors: %v", res.Errors())
}

func TestActorPipelineAbstract(t *testing.T) {
	lat := machine.NewTypeSetLattice(false)
	res, err := actorRunner(lat, 1)(context.Background(), pipeSeqProgram)
	require.NoError(t, err)
	assert.False(t, res.TimedOut())
	assert.True(t, 0 < res.NumberOfStates())
	// The program itself finishes with the send's value.
	assert.True(t, res.ContainsFinalValue(lat.InjectBool(true)))
}

func TestBecomeSwitchesBehavior(t *testing.T) {
	lat := machine.NewConcreteLattice(false)
	program := `
(define cell
  (actor (v)
    (get ()
      (error (number->string v)))
    (put (w)
      (become cell w))))
(define c (create cell 1))
(send c put 2)
(send c get)`
	res, err := actorRunner(lat, 1)(context.Background(), program)
	require.NoError(t, err)

	// Unordered delivery: the get may see the cell before or after
	// the put, so both observations are reachable.
	saw := map[string]bool{}
	for _, e := range res.Errors() {
		if e.Kind == machine.UserError {
			saw[e.Msg] = true
		}
	}
	foundOld := false
	foundNew := false
	for msg := range saw {
		if strings.Contains(msg, "1") {
			foundOld = true
		}
		if strings.Contains(msg, "2") {
			foundNew = true
		}
	}
	assert.True(t, foundOld, "errors: %v", res.Errors())
	assert.True(t, foundNew, "errors: %v", res.Errors())
}

func TestUnsupportedMessage(t *testing.T) {
	lat := machine.NewTypeSetLattice(false)
	program := `
(define beh (actor () (ping () (terminate))))
(define a (create beh))
(send a pong)`
	res, err := actorRunner(lat, 1)(context.Background(), program)
	require.NoError(t, err)
	require.NotEmpty(t, res.Errors())
	found := false
	for _, e := range res.Errors() {
		if e.Kind == machine.MessageNotSupported {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", res.Errors())
}

func TestHandlerArityIsChecked(t *testing.T) {
	lat := machine.NewTypeSetLattice(false)
	program := `
(define beh (actor () (ping (x) (terminate))))
(define a (create beh))
(send a ping)`
	res, err := actorRunner(lat, 1)(context.Background(), program)
	require.NoError(t, err)
	found := false
	for _, e := range res.Errors() {
		if e.Kind == machine.ArityError {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", res.Errors())
}

func TestTerminateRemovesTheActor(t *testing.T) {
	lat := machine.NewTypeSetLattice(false)
	program := `
(define beh (actor () (stop () (terminate))))
(define a (create beh))
(send a stop)`
	res, err := actorRunner(lat, 1)(context.Background(), program)
	require.NoError(t, err)
	assert.False(t, res.TimedOut())
	assert.True(t, res.ContainsFinalValue(lat.InjectBool(true)))
	assert.Empty(t, res.Errors())
}

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
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/practical-formal-methods/spelt/machine"
	"github.com/practical-formal-methods/spelt/scheme"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const factProgram = `
(define (fact n)
  (if (= n 0) 1 (* n (fact (- n 1)))))
(fact 5)`

const fibProgram = `
(define (fib n)
  (if (< n 2) n (+ (fib (- n 1)) (fib (- n 2)))))
(fib 4)`

const ackProgram = `
(define (ack m n)
  (if (= m 0)
      (+ n 1)
      (if (= n 0)
          (ack (- m 1) 1)
          (ack (- m 1) (ack m (- n 1))))))
(ack 2 1)`

const collatzProgram = `
(define (collatz n)
  (let loop ((n n) (steps 0))
    (if (= n 1)
        steps
        (loop (if (even? n) (quotient n 2) (+ (* 3 n) 1)) (+ steps 1)))))
(collatz 5)`

const sqProgram = `
(define (sq x) (* x x))
(sq 3)`

const blurProgram = `
(define id (lambda (x) x))
(define blur (lambda (y) y))
(define (lp a n)
  (if (<= n 1)
      (id a)
      (let* ((r ((blur id) #t))
             (s ((blur id) #f)))
        (not ((blur lp) s (- n 1))))))
(lp #f 2)`

// runnersFor builds every sequential abstract machine variant over the
// TypeSet lattice.
func runnersFor(t *testing.T, opts machine.Options) map[string]func(context.Context, string) (*machine.Result, error) {
	t.Helper()
	lat := machine.NewTypeSetLattice(false)
	alloc := machine.ClassicalAllocator{}
	tp := machine.KCFA{K: 0}
	sem := scheme.NewSemantics(lat, alloc)
	return map[string]func(context.Context, string) (*machine.Result, error){
		"AAM":            machine.NewAAM(sem, lat, alloc, tp, opts).RunSource,
		"AAMGlobalStore": machine.NewGlobalStoreAAM(sem, lat, alloc, tp, opts).RunSource,
		"Free":           machine.NewFree(sem, lat, alloc, tp, opts).RunSource,
	}
}

func TestEndToEndScenarios(t *testing.T) {
	lat := machine.NewTypeSetLattice(false)
	scenarios := []struct {
		name     string
		program  string
		expected machine.Value
	}{
		{"fact", factProgram, lat.InjectInt(120)},
		{"fib", fibProgram, lat.InjectInt(3)},
		{"ack", ackProgram, lat.InjectInt(4)},
		{"collatz", collatzProgram, lat.InjectInt(5)},
		{"sq", sqProgram, lat.InjectInt(9)},
		{"blur", blurProgram, lat.InjectBool(true)},
	}
	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			for name, run := range runnersFor(t, machine.Options{}) {
				res, err := run(context.Background(), sc.program)
				require.NoError(t, err, name)
				assert.False(t, res.TimedOut(), name)
				assert.True(t, 0 < res.NumberOfStates(), name)
				assert.True(t, res.ContainsFinalValue(sc.expected),
					"%v: expected %v within %v", name, sc.expected, res.FinalValues())
			}
		})
	}
}

func TestConcreteMachineIsPrecise(t *testing.T) {
	lat := machine.NewConcreteLattice(true)
	sem := scheme.NewSemantics(lat, machine.ConcreteAllocator{})
	m := machine.NewConcreteMachine(sem, lat, machine.Options{})

	res, err := m.RunSource(context.Background(), factProgram)
	require.NoError(t, err)
	require.Len(t, res.FinalValues(), 1)
	assert.True(t, res.ContainsFinalValue(lat.InjectInt(120)))
	assert.False(t, res.ContainsFinalValue(lat.InjectInt(121)))
}

// The abstract result subsumes the concrete one whenever the concrete
// machine terminates.
func TestSubsumptionSoundness(t *testing.T) {
	for _, program := range []string{factProgram, fibProgram, collatzProgram, sqProgram} {
		clat := machine.NewConcreteLattice(true)
		csem := scheme.NewSemantics(clat, machine.ConcreteAllocator{})
		concrete, err := machine.NewConcreteMachine(csem, clat, machine.Options{}).
			RunSource(context.Background(), program)
		require.NoError(t, err)
		require.NotEmpty(t, concrete.FinalValues())

		for name, run := range runnersFor(t, machine.Options{}) {
			abstract, err := run(context.Background(), program)
			require.NoError(t, err, name)
			for _, cv := range concrete.FinalValues() {
				assert.True(t, abstract.ContainsFinalValue(cv),
					"%v: %v not subsumed by %v", name, cv, abstract.FinalValues())
			}
		}
	}
}

func finalValueStrings(res *machine.Result) []string {
	strs := make([]string, 0, len(res.FinalValues()))
	for _, v := range res.FinalValues() {
		strs = append(strs, v.String())
	}
	sort.Strings(strs)
	return strs
}

// The reachable states and final values do not depend on the
// work-queue discipline.
func TestConfluenceAcrossQueueDisciplines(t *testing.T) {
	fifoRun := runnersFor(t, machine.Options{})["AAM"]
	lifoRun := runnersFor(t, machine.Options{LIFO: true})["AAM"]

	fifo, err := fifoRun(context.Background(), fibProgram)
	require.NoError(t, err)
	lifo, err := lifoRun(context.Background(), fibProgram)
	require.NoError(t, err)

	assert.Equal(t, fifo.NumberOfStates(), lifo.NumberOfStates())
	if diff := cmp.Diff(finalValueStrings(fifo), finalValueStrings(lifo)); diff != "" {
		t.Errorf("final values differ between disciplines:\n%v", diff)
	}
}

// For a fixed configuration the result set is identical across runs.
func TestDeterminism(t *testing.T) {
	var prev []string
	var prevStates int
	for i := 0; i < 3; i++ {
		res, err := runnersFor(t, machine.Options{})["Free"](context.Background(), blurProgram)
		require.NoError(t, err)
		strs := finalValueStrings(res)
		if prev != nil {
			if diff := cmp.Diff(prev, strs); diff != "" {
				t.Fatalf("run %v differs:\n%v", i, diff)
			}
			assert.Equal(t, prevStates, res.NumberOfStates())
		}
		prev = strs
		prevStates = res.NumberOfStates()
	}
}

func TestParallelWorkersAgree(t *testing.T) {
	serial, err := runnersFor(t, machine.Options{})["AAM"](context.Background(), fibProgram)
	require.NoError(t, err)
	parallel, err := runnersFor(t, machine.Options{Workers: 4})["AAM"](context.Background(), fibProgram)
	require.NoError(t, err)

	if diff := cmp.Diff(finalValueStrings(serial), finalValueStrings(parallel)); diff != "" {
		t.Errorf("parallel exploration changed the final values:\n%v", diff)
	}
}

func TestDeadlineFlagsTimeout(t *testing.T) {
	lat := machine.NewConcreteLattice(true)
	sem := scheme.NewSemantics(lat, machine.ConcreteAllocator{})
	m := machine.NewConcreteMachine(sem, lat, machine.Options{Timeout: 20 * time.Millisecond})

	loop := `(define (f x) (f x)) (f 0)`
	res, err := m.RunSource(context.Background(), loop)
	require.NoError(t, err)
	assert.True(t, res.TimedOut())
	assert.True(t, 0 < res.NumberOfStates(), "partial exploration is still reported")
}

func TestStepBudgetFlagsTimeout(t *testing.T) {
	lat := machine.NewConcreteLattice(true)
	sem := scheme.NewSemantics(lat, machine.ConcreteAllocator{})
	m := machine.NewConcreteMachine(sem, lat, machine.Options{MaxSteps: 16})

	loop := `(define (f x) (f x)) (f 0)`
	res, err := m.RunSource(context.Background(), loop)
	require.NoError(t, err)
	assert.True(t, res.TimedOut())
}

func TestReachableErrorsAreReported(t *testing.T) {
	program := `(car 5)`
	res, err := runnersFor(t, machine.Options{})["AAM"](context.Background(), program)
	require.NoError(t, err)
	require.NotEmpty(t, res.Errors())
	assert.Equal(t, machine.TypeError, res.Errors()[0].Kind)
}

func TestUnboundVariableIsAnErrorState(t *testing.T) {
	res, err := runnersFor(t, machine.Options{})["AAM"](context.Background(), `(+ x 1)`)
	require.NoError(t, err)
	require.NotEmpty(t, res.Errors())
	assert.Equal(t, machine.UnboundVariable, res.Errors()[0].Kind)
}

// Errors stop a branch, not the exploration: the sibling branch still
// reaches its final value.
func TestErrorsDoNotStopSiblingBranches(t *testing.T) {
	lat := machine.NewTypeSetLattice(false)
	// The abstract draw makes the condition both true and false, so
	// the machine explores the error branch and the value branch.
	program := `
(define (f b) (if b (error "boom") 42))
(f (= (random 10) 0))`
	res, err := runnersFor(t, machine.Options{})["AAM"](context.Background(), program)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Errors())
	assert.True(t, res.ContainsFinalValue(lat.InjectInt(42)))
}

func TestDotExport(t *testing.T) {
	run := runnersFor(t, machine.Options{RecordGraph: true})["AAM"]
	res, err := run(context.Background(), sqProgram)
	require.NoError(t, err)
	require.NotNil(t, res.Graph())
	assert.True(t, 0 < res.Graph().Size())

	var buf bytes.Buffer
	require.NoError(t, res.Graph().WriteDot(&buf))
	out := buf.String()
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "->")
}

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
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures an exploration run.
type Options struct {
	// Workers is the number of parallel frontier workers. Machines
	// with global mutable stores ignore it and run single-threaded.
	Workers int
	// LIFO switches the work queue from breadth-first to depth-first.
	// The reachable set is the same under either discipline.
	LIFO bool
	// RecordGraph keeps the transition graph for DOT export.
	RecordGraph bool
	// Timeout bounds the exploration wall time; zero means none.
	Timeout time.Duration
	// MaxSteps bounds the number of expanded states; zero means none.
	// It is the safety net for the concrete machine, which may not
	// terminate.
	MaxSteps int
	// Logger receives driver diagnostics. Nil disables logging.
	Logger *zap.SugaredLogger
}

func (o Options) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}

// exploration is the variant-specific part of the reachability loop.
// The driver owns every shared structure; an exploration only
// describes states.
type exploration[S any] struct {
	// descriptor names a state; states with equal descriptors are the
	// same graph vertex.
	descriptor func(S) string
	// label is the short node label used for graph export.
	label func(S) string
	// halted reports whether the state has no successors by design.
	halted func(S) bool
	// finalValue extracts the value a halted state returns, if any.
	finalValue func(S) (Value, bool)
	// errorOf extracts the error of a stuck state, if any.
	errorOf func(S) (SemanticError, bool)
	// step produces the successors of a non-halted state.
	step func(S) []S
	// refill is called when the worklist drains; returning states
	// restarts exploration with a cleared visited set. Global-store
	// machines use it to re-expand after widening.
	refill func() []S
	// parallelSafe reports whether step may run concurrently for
	// distinct states.
	parallelSafe bool
}

// explore runs the shared reachability loop: pick a pending state,
// skip it if visited, record it if halted, otherwise enqueue its
// successors.
func explore[S any](ctx context.Context, opts Options, lat Lattice, init []S, ex exploration[S]) *Result {
	log := opts.logger()
	res := newResult(lat)
	if opts.RecordGraph {
		res.graph = NewGraph()
	}
	start := time.Now()
	var deadline time.Time
	if 0 < opts.Timeout {
		deadline = start.Add(opts.Timeout)
	}

	states := map[string]S{}
	visited := map[string]bool{}
	var worklist []string
	workset := map[string]bool{}

	addState := func(s S) string {
		loc := ex.descriptor(s)
		if _, exists := states[loc]; !exists {
			states[loc] = s
			if res.graph != nil {
				res.graph.AddNode(loc, ex.label(s))
			}
		}
		if !visited[loc] && !workset[loc] {
			worklist = append(worklist, loc)
			workset[loc] = true
		}
		return loc
	}

	popState := func() (S, string) {
		var loc string
		if opts.LIFO {
			loc = worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
		} else {
			loc = worklist[0]
			worklist = worklist[1:]
		}
		delete(workset, loc)
		return states[loc], loc
	}

	for _, s := range init {
		addState(s)
	}

	expanded := 0
	timedOut := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return !deadline.IsZero() && !time.Now().Before(deadline)
	}

	record := func(s S, loc string) {
		if v, ok := ex.finalValue(s); ok {
			res.addFinalValue(v)
		}
		if err, ok := ex.errorOf(s); ok {
			res.addError(err)
		}
	}

	integrate := func(loc string, succs []S) {
		for _, succ := range succs {
			sloc := addState(succ)
			if res.graph != nil {
				res.graph.AddEdge(loc, sloc)
			}
		}
	}

	workers := opts.Workers
	if workers < 1 || !ex.parallelSafe {
		workers = 1
	}

	// Widened machines may need another round once a global store has
	// grown: re-seed the worklist and forget the visited set.
	maybeRefill := func() {
		if ex.refill == nil || timedOut() {
			return
		}
		if seeds := ex.refill(); 0 < len(seeds) {
			log.Debugw("re-expanding after store widening", "seeds", len(seeds))
			visited = map[string]bool{}
			for _, s := range seeds {
				addState(s)
			}
		}
	}

	for 0 < len(worklist) {
		if timedOut() {
			res.timedOut = true
			break
		}
		if 0 < opts.MaxSteps && opts.MaxSteps <= expanded {
			log.Debugw("step budget exhausted", "expanded", expanded)
			res.timedOut = true
			break
		}

		// Pick up to one batch of pending states.
		var batch []S
		var batchLocs []string
		for 0 < len(worklist) && len(batch) < workers {
			s, loc := popState()
			if visited[loc] {
				continue
			}
			visited[loc] = true
			expanded++
			if ex.halted(s) {
				record(s, loc)
				continue
			}
			batch = append(batch, s)
			batchLocs = append(batchLocs, loc)
		}
		if len(batch) == 0 {
			if len(worklist) == 0 {
				maybeRefill()
				if len(worklist) == 0 {
					break
				}
			}
			continue
		}

		if workers == 1 || len(batch) == 1 {
			for i := range batch {
				integrate(batchLocs[i], ex.step(batch[i]))
			}
		} else {
			succs := make([][]S, len(batch))
			g, _ := errgroup.WithContext(ctx)
			for i := range batch {
				i := i
				g.Go(func() error {
					succs[i] = ex.step(batch[i])
					return nil
				})
			}
			_ = g.Wait()
			for i := range batch {
				integrate(batchLocs[i], succs[i])
			}
		}

		if len(worklist) == 0 {
			maybeRefill()
		}
	}

	res.numberOfStates = len(visited)
	res.elapsed = time.Since(start)
	log.Debugw("exploration finished",
		"states", res.numberOfStates,
		"finalValues", len(res.finalValues),
		"errors", len(res.errors),
		"timedOut", res.timedOut,
		"elapsed", res.elapsed)
	return res
}

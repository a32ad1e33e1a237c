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
	"strings"

	"github.com/google/uuid"
)

// Timestamp is the context-sensitivity coordinate of a state.
// Implementations must be comparable so that timestamps can key maps
// and participate in state identity.
type Timestamp interface {
	// Tick advances the timestamp on a control step.
	Tick(e Exp) Timestamp
	// TickCall advances the timestamp when entering a closure body,
	// recording the call site.
	TickCall(callsite Exp) Timestamp
	String() string
}

// TimestampPolicy produces the timestamp at program entry.
type TimestampPolicy interface {
	Zero() Timestamp
}

// kcfaTime retains the last k call sites. The history is kept as a
// single string so that timestamps stay comparable.
type kcfaTime struct {
	k       int
	history string
}

func (t kcfaTime) Tick(e Exp) Timestamp {
	// Only calls refine the context.
	return t
}

func (t kcfaTime) TickCall(callsite Exp) Timestamp {
	if t.k == 0 {
		return t
	}
	sites := []string{callsite.Pos().String()}
	if t.history != "" {
		sites = append(sites, strings.Split(t.history, ",")...)
	}
	if t.k < len(sites) {
		sites = sites[:t.k]
	}
	return kcfaTime{k: t.k, history: strings.Join(sites, ",")}
}

func (t kcfaTime) String() string {
	if t.history == "" {
		return "[]"
	}
	return "[" + t.history + "]"
}

// KCFA is the k-CFA timestamp policy: zero retains no context and
// TickCall prepends the call site, truncating the history to length k.
type KCFA struct {
	K int
}

func (p KCFA) Zero() Timestamp {
	return kcfaTime{k: p.K}
}

// concreteTime is globally unique per step.
type concreteTime struct {
	id string
}

func (t concreteTime) Tick(e Exp) Timestamp {
	return concreteTime{id: uuid.NewString()}
}

func (t concreteTime) TickCall(callsite Exp) Timestamp {
	return concreteTime{id: uuid.NewString()}
}

func (t concreteTime) String() string {
	return t.id
}

// ConcreteTimestamps makes every timestamp fresh, which makes every
// allocated address fresh. The state space under this policy is
// unbounded, so a run need not terminate.
type ConcreteTimestamps struct{}

func (p ConcreteTimestamps) Zero() Timestamp {
	return concreteTime{id: uuid.NewString()}
}

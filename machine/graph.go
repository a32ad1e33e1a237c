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
	"io"
	"os"
	"sort"
	"strings"
)

// Graph records the explored state graph for DOT export. Nodes are
// state descriptors; labels are the printable controls.
type Graph struct {
	labels map[string]string
	ids    map[string]int
	edges  map[string]map[string]bool
	next   int
}

func NewGraph() *Graph {
	return &Graph{
		labels: map[string]string{},
		ids:    map[string]int{},
		edges:  map[string]map[string]bool{},
	}
}

// AddNode registers a state with its label. Adding the same state
// twice is a no-op.
func (g *Graph) AddNode(id, label string) {
	if _, ok := g.ids[id]; ok {
		return
	}
	g.ids[id] = g.next
	g.next++
	g.labels[id] = label
}

// AddEdge registers a transition between two registered states.
func (g *Graph) AddEdge(from, to string) {
	cell := g.edges[from]
	if cell == nil {
		cell = map[string]bool{}
		g.edges[from] = cell
	}
	cell[to] = true
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	return len(g.ids)
}

// WriteDot renders the graph in DOT format.
func (g *Graph) WriteDot(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph G {"); err != nil {
		return err
	}
	ordered := make([]string, 0, len(g.ids))
	for id := range g.ids {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return g.ids[ordered[i]] < g.ids[ordered[j]] })
	for _, id := range ordered {
		label := strings.ReplaceAll(g.labels[id], `"`, `\"`)
		if _, err := fmt.Fprintf(w, "  n%v [label=\"%v\"];\n", g.ids[id], label); err != nil {
			return err
		}
	}
	for _, from := range ordered {
		tos := make([]string, 0, len(g.edges[from]))
		for to := range g.edges[from] {
			tos = append(tos, to)
		}
		sort.Slice(tos, func(i, j int) bool { return g.ids[tos[i]] < g.ids[tos[j]] })
		for _, to := range tos {
			if _, ok := g.ids[to]; !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, "  n%v -> n%v;\n", g.ids[from], g.ids[to]); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteDotFile writes the graph to a file.
func (g *Graph) WriteDotFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dot file: %w", err)
	}
	defer f.Close()
	return g.WriteDot(f)
}

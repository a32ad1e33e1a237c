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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProgram(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.scm")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

const testFact = `
(define (fact n) (if (= n 0) 1 (* n (fact (- n 1)))))
(fact 5)`

func TestRunCompletes(t *testing.T) {
	path := writeProgram(t, testFact)
	for _, m := range []string{"AAM", "AAMGlobalStore", "Free", "ConcreteMachine"} {
		code := run([]string{"-m", m, "-f", path})
		assert.Equal(t, exitOK, code, m)
	}
}

func TestRunLatticeAndAddressOptions(t *testing.T) {
	path := writeProgram(t, testFact)
	assert.Equal(t, exitOK, run([]string{"-l", "BoundedInt", "-b", "200", "-f", path}))
	assert.Equal(t, exitOK, run([]string{"-l", "Concrete", "--counting", "-f", path}))
	assert.Equal(t, exitOK, run([]string{"-a", "ValueSensitive", "-f", path}))
	assert.Equal(t, exitOK, run([]string{"-w", "4", "-f", path}))
}

func TestRunParseErrorExitsOne(t *testing.T) {
	path := writeProgram(t, `(unterminated`)
	assert.Equal(t, exitInputError, run([]string{"-f", path}))
}

func TestRunMissingFileExitsOne(t *testing.T) {
	assert.Equal(t, exitInputError, run([]string{"-f", "no-such-program.scm"}))
}

func TestRunUnsupportedConfigurationExitsThree(t *testing.T) {
	path := writeProgram(t, testFact)
	assert.Equal(t, exitUnsupported, run([]string{"-m", "NoSuchMachine", "-f", path}))
	assert.Equal(t, exitUnsupported, run([]string{"-l", "NoSuchLattice", "-f", path}))
	assert.Equal(t, exitUnsupported, run([]string{"-a", "NoSuchPolicy", "-f", path}))
	assert.Equal(t, exitUnsupported, run([]string{"-m", "ConcreteMachine", "-l", "BoundedInt", "-f", path}))
}

func TestRunTimeoutExitsTwo(t *testing.T) {
	path := writeProgram(t, `(define (f x) (f x)) (f 0)`)
	code := run([]string{"-m", "ConcreteMachine", "-t", "50ms", "-f", path})
	assert.Equal(t, exitTimeout, code)
}

func TestRunWritesDotFile(t *testing.T) {
	path := writeProgram(t, testFact)
	dot := filepath.Join(t.TempDir(), "graph.dot")
	require.Equal(t, exitOK, run([]string{"-f", path, "-d", dot}))
	data, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph")
}

func TestRunReadsYAMLConfig(t *testing.T) {
	program := writeProgram(t, testFact)
	cfgPath := filepath.Join(t.TempDir(), "spelt.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("machine: Free\nfile: "+program+"\n"), 0o644))
	assert.Equal(t, exitOK, run([]string{"--config", cfgPath}))
	// Flags win over the file.
	assert.Equal(t, exitUnsupported, run([]string{"--config", cfgPath, "-m", "NoSuchMachine"}))
}

func TestRunUnknownFlagExitsNonZero(t *testing.T) {
	assert.Equal(t, exitInputError, run([]string{"--no-such-flag"}))
}

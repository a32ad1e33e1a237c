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
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/practical-formal-methods/spelt/machine"
	"github.com/practical-formal-methods/spelt/scheme"
)

// Exit codes of the analyzer.
const (
	exitOK          = 0
	exitInputError  = 1
	exitTimeout     = 2
	exitUnsupported = 3
)

// config is the full configuration surface. Flags override the
// values read from an optional YAML config file.
type config struct {
	Machine  string        `yaml:"machine"`
	Lattice  string        `yaml:"lattice"`
	Concrete bool          `yaml:"concrete"`
	Address  string        `yaml:"address"`
	File     string        `yaml:"file"`
	DotFile  string        `yaml:"dotfile"`
	Timeout  time.Duration `yaml:"timeout"`
	Bound    int64         `yaml:"bound"`
	Inspect  bool          `yaml:"inspect"`
	Counting bool          `yaml:"counting"`
	Workers  int           `yaml:"workers"`
	Verbose  bool          `yaml:"verbose"`

	configFile string
}

func defaultConfig() config {
	return config{
		Machine: "AAM",
		Lattice: "TypeSet",
		Address: "Classical",
		Bound:   100,
		Workers: 1,
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := defaultConfig()
	exitCode := exitOK

	cmd := &cobra.Command{
		Use:           "spelt",
		Short:         "Abstracting abstract machine for a Scheme-like language",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			exitCode, err = analyze(cmd, &cfg)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Machine, "machine", "m", cfg.Machine, "machine variant (AAM, AAMGlobalStore, Free, ConcreteMachine)")
	flags.StringVarP(&cfg.Lattice, "lattice", "l", cfg.Lattice, "lattice instance (Concrete, ConcreteNew, TypeSet, BoundedInt)")
	flags.BoolVarP(&cfg.Concrete, "concrete", "c", cfg.Concrete, "force concrete semantics")
	flags.StringVarP(&cfg.Address, "address", "a", cfg.Address, "address policy (Classical, ValueSensitive)")
	flags.StringVarP(&cfg.File, "file", "f", cfg.File, "input program file; reads the REPL otherwise")
	flags.StringVarP(&cfg.DotFile, "dotfile", "d", cfg.DotFile, "emit the state graph in DOT format")
	flags.DurationVarP(&cfg.Timeout, "timeout", "t", cfg.Timeout, "wall-clock deadline; unset means none")
	flags.Int64VarP(&cfg.Bound, "bound", "b", cfg.Bound, "bound for the bounded lattice")
	flags.BoolVarP(&cfg.Inspect, "inspect", "i", cfg.Inspect, "enable the inspection REPL after analysis")
	flags.BoolVar(&cfg.Counting, "counting", cfg.Counting, "enable abstract counting")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "parallel driver workers")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "verbose driver logging")
	flags.StringVar(&cfg.configFile, "config", "", "YAML config file with the same options")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spelt: %v\n", err)
		if exitCode == exitOK {
			exitCode = exitInputError
		}
	}
	return exitCode
}

func analyze(cmd *cobra.Command, cfg *config) (int, error) {
	if cfg.configFile != "" {
		if err := loadConfigFile(cmd, cfg); err != nil {
			return exitInputError, err
		}
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return exitInputError, err
	}
	defer log.Sync()

	lat, code, err := buildLattice(cfg)
	if err != nil {
		return code, err
	}
	alloc, err := buildAllocator(cfg)
	if err != nil {
		return exitUnsupported, err
	}
	sem := scheme.NewSemantics(lat, alloc)

	opts := machine.Options{
		Workers:     cfg.Workers,
		RecordGraph: cfg.DotFile != "",
		Timeout:     cfg.Timeout,
		Logger:      log.Sugar(),
	}
	if cfg.Workers < 1 {
		return exitUnsupported, fmt.Errorf("workers must be at least 1")
	}

	runner, code, err := buildMachine(cfg, sem, lat, alloc, opts)
	if err != nil {
		return code, err
	}

	source, err := readSource(cfg)
	if err != nil {
		return exitInputError, err
	}

	res, err := runner(context.Background(), source)
	if err != nil {
		return exitInputError, err
	}

	report(res)
	if cfg.DotFile != "" && res.Graph() != nil {
		if err := res.Graph().WriteDotFile(cfg.DotFile); err != nil {
			return exitInputError, err
		}
	}
	if cfg.Inspect {
		inspect(res)
	}
	if res.TimedOut() {
		return exitTimeout, nil
	}
	return exitOK, nil
}

func loadConfigFile(cmd *cobra.Command, cfg *config) error {
	data, err := os.ReadFile(cfg.configFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	fromFile := defaultConfig()
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	// Explicit flags win over file values.
	merge := func(flag string, apply func()) {
		if !cmd.Flags().Changed(flag) {
			apply()
		}
	}
	merge("machine", func() { cfg.Machine = fromFile.Machine })
	merge("lattice", func() { cfg.Lattice = fromFile.Lattice })
	merge("concrete", func() { cfg.Concrete = fromFile.Concrete })
	merge("address", func() { cfg.Address = fromFile.Address })
	merge("file", func() { cfg.File = fromFile.File })
	merge("dotfile", func() { cfg.DotFile = fromFile.DotFile })
	merge("timeout", func() { cfg.Timeout = fromFile.Timeout })
	merge("bound", func() { cfg.Bound = fromFile.Bound })
	merge("inspect", func() { cfg.Inspect = fromFile.Inspect })
	merge("counting", func() { cfg.Counting = fromFile.Counting })
	merge("workers", func() { cfg.Workers = fromFile.Workers })
	merge("verbose", func() { cfg.Verbose = fromFile.Verbose })
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zcfg.Build()
}

func buildLattice(cfg *config) (machine.Lattice, int, error) {
	name := cfg.Lattice
	if cfg.Concrete || cfg.Machine == "ConcreteMachine" {
		name = "Concrete"
	}
	switch name {
	case "Concrete", "ConcreteNew":
		// The concrete machine needs counting for strong updates.
		counting := cfg.Counting || cfg.Machine == "ConcreteMachine"
		return machine.NewConcreteLattice(counting), exitOK, nil
	case "TypeSet":
		return machine.NewTypeSetLattice(cfg.Counting), exitOK, nil
	case "BoundedInt":
		return machine.NewBoundedIntLattice(cfg.Bound, cfg.Counting), exitOK, nil
	default:
		return nil, exitUnsupported, fmt.Errorf("unsupported lattice %v", cfg.Lattice)
	}
}

func buildAllocator(cfg *config) (machine.Allocator, error) {
	switch cfg.Address {
	case "Classical":
		return machine.ClassicalAllocator{}, nil
	case "ValueSensitive":
		return machine.ValueSensitiveAllocator{}, nil
	default:
		return nil, fmt.Errorf("unsupported address policy %v", cfg.Address)
	}
}

// runnerFn parses and explores one source program.
type runnerFn func(ctx context.Context, source string) (*machine.Result, error)

func buildMachine(cfg *config, sem *scheme.Semantics, lat machine.Lattice, alloc machine.Allocator, opts machine.Options) (runnerFn, int, error) {
	tp := machine.KCFA{K: 0}
	switch cfg.Machine {
	case "AAM":
		return machine.NewAAM(sem, lat, alloc, tp, opts).RunSource, exitOK, nil
	case "AAMGlobalStore":
		return machine.NewGlobalStoreAAM(sem, lat, alloc, tp, opts).RunSource, exitOK, nil
	case "Free":
		return machine.NewFree(sem, lat, alloc, tp, opts).RunSource, exitOK, nil
	case "ConcreteMachine":
		if cfg.Lattice == "BoundedInt" {
			return nil, exitUnsupported, fmt.Errorf("the concrete machine requires a concrete lattice")
		}
		return machine.NewConcreteMachine(sem, lat, opts).RunSource, exitOK, nil
	case "ConcurrentAAM":
		return machine.NewConcurrentAAM(sem, lat, alloc, tp, opts).RunSource, exitOK, nil
	case "ActorAAM":
		return machine.NewActorAAM(sem, lat, alloc, tp, 1, opts).RunSource, exitOK, nil
	default:
		return nil, exitUnsupported, fmt.Errorf("unsupported machine %v", cfg.Machine)
	}
}

func readSource(cfg *config) (string, error) {
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return "", fmt.Errorf("reading program: %w", err)
		}
		return string(data), nil
	}
	fmt.Println("Enter a program, end with EOF:")
	var sb strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading program: %w", err)
	}
	return sb.String(), nil
}

func report(res *machine.Result) {
	for _, v := range res.FinalValues() {
		fmt.Printf("final value: %v\n", v)
	}
	for _, e := range res.Errors() {
		fmt.Printf("reachable error: %v\n", e)
	}
	status := ""
	if res.TimedOut() {
		status = " (timed out)"
	}
	fmt.Printf("%v states explored in %v%v\n", res.NumberOfStates(), res.Time(), status)
}

// inspect is a minimal post-analysis REPL over the result object.
func inspect(res *machine.Result) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("inspect> ")
		if !scanner.Scan() {
			return
		}
		switch cmd := strings.TrimSpace(scanner.Text()); cmd {
		case "finals":
			for _, v := range res.FinalValues() {
				fmt.Println(v)
			}
		case "errors":
			for _, e := range res.Errors() {
				fmt.Println(e)
			}
		case "states":
			fmt.Println(res.NumberOfStates())
		case "time":
			fmt.Println(res.Time())
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("commands: finals, errors, states, time, quit")
		}
	}
}

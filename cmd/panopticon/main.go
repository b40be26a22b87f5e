// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"panopticon/internal/absint"
	"panopticon/internal/kset"
	"panopticon/internal/perrors"
	"panopticon/internal/program"
	"panopticon/internal/region"
	"panopticon/internal/ssa"
	"panopticon/internal/toyarch"
)

var entryFlag string

func main() {
	root := &cobra.Command{
		Use:   "panopticon",
		Short: "Recursive-descent disassembler and abstract-interpretation toolkit",
	}
	root.PersistentFlags().StringVar(&entryFlag, "entry", "0x0", "entry point address, e.g. 0x10")

	root.AddCommand(disasmCmd(), callgraphCmd())

	if err := root.Execute(); err != nil {
		color.Red("panopticon: %s", err)
		os.Exit(1)
	}
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Disassemble a raw binary with the toy reference architecture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, _, err := runToyDriver(args[0])
			if err != nil {
				return err
			}
			reporter := perrors.NewReporter()
			for v := 0; v < fn.NumVertices(); v++ {
				ct := fn.Vertex(v)
				switch ct.Kind {
				case program.Resolved:
					fmt.Print(ct.Block.String())
				case program.Failed:
					diag := perrors.FromDisassemblyFailure(fn.RegionName, perrors.DisassemblyFailure{Address: ct.Address, Reason: ct.Reason})
					fmt.Print(reporter.Format(diag))
				default:
					color.Yellow("%s", ct.String())
				}
			}

			if err := ssa.Transform(fn); err != nil {
				color.Yellow("ssa: %s", err)
				return nil
			}
			values, err := absint.Approximate[kset.Kset](fn)
			var divergence absint.AnalysisDivergence
			if errors.As(err, &divergence) {
				diag := perrors.FromAnalysisDivergence(fn.RegionName, perrors.AnalysisDivergence{Function: fn.UUID, Iterations: divergence.Iterations})
				fmt.Print(reporter.Format(diag))
			} else if err != nil {
				return err
			}
			for name, v := range values {
				fmt.Printf("  %s = %s\n", name, v)
			}
			return nil
		},
	}
}

func callgraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callgraph <file>",
		Short: "Print the call graph discovered from the entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, prog, err := runToyDriver(args[0])
			if err != nil {
				return err
			}
			for _, t := range prog.Targets() {
				fmt.Printf("%s %#x %s (%s)\n", t.UUID, t.Address, t.Name, kindString(t.Kind))
				for _, callee := range prog.Callees(t.UUID) {
					if ct, ok := prog.Get(callee); ok {
						fmt.Printf("  -> %s %#x\n", ct.UUID, ct.Address)
					}
				}
			}
			return nil
		},
	}
}

func kindString(k program.CallTargetKind) string {
	switch k {
	case program.Concrete:
		return "concrete"
	case program.Symbolic:
		return "symbolic"
	default:
		return "todo"
	}
}

func runToyDriver(path string) (*program.Function, *program.Program, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("panopticon: %w", err)
	}

	entry, err := strconv.ParseUint(entryFlag, 0, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("panopticon: invalid --entry %q: %w", entryFlag, err)
	}

	reg := region.New(path, uint64(len(bytes)))
	reg.AddLayer(0, bytes)

	prog := program.NewProgram()
	arch := toyarch.New()
	driver := program.NewDriver[uint8](arch, reg, prog)

	fn, err := runWithRecover(func() (*program.Function, error) {
		return driver.RunEntry(context.Background(), entry, "entry")
	})
	if err != nil {
		return nil, nil, err
	}
	return fn, prog, nil
}

// runWithRecover turns a ProgrammingError panic — never meant to
// propagate past the component that raised it in a well-formed program
// — into a returned error at the CLI boundary, rather than crashing
// the process.
func runWithRecover(f func() (*program.Function, error)) (fn *program.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(perrors.ProgrammingError); ok {
				err = fmt.Errorf("panopticon: %s", pe.Error())
				return
			}
			panic(r)
		}
	}()
	return f()
}

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"blockvm/internal/asyncrt"
	"blockvm/internal/engine"
	"blockvm/internal/primitives"
	"blockvm/internal/project"
	"blockvm/internal/project/dag"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [project.json]",
	Short: "Show compiled operation lists and procedure call order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Bool("ops", true, "print the compiled operation list of every block")
	inspectCmd.Flags().Bool("procs", true, "print the procedure call graph of every target")
	inspectCmd.Flags().String("target", "", "only inspect the target with this name")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Project.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no project given: pass a project file or set [project] path in blockvm.toml")
	}
	showOps, err := cmd.Flags().GetBool("ops")
	if err != nil {
		return err
	}
	showProcs, err := cmd.Flags().GetBool("procs")
	if err != nil {
		return err
	}
	only, err := cmd.Flags().GetString("target")
	if err != nil {
		return err
	}

	p, err := project.Load(path)
	if err != nil {
		return err
	}
	rt := engine.NewRuntime(engine.Options{Clock: asyncrt.NewVirtualClock(0)})
	primitives.Register(rt)
	targets := p.Instantiate(rt, nil)

	out := cmd.OutOrStdout()
	found := false
	for _, t := range targets {
		if only != "" && t.Name != only {
			continue
		}
		found = true
		color.New(color.Bold).Fprintf(out, "%s", t.Name)
		fmt.Fprintf(out, " (%d blocks, %d scripts)\n", t.Blocks.Len(), len(t.Blocks.Scripts()))
		if showOps {
			printOps(out, rt, t)
		}
		if showProcs {
			printProcedures(out, dag.Analyze(t.Blocks))
		}
	}
	if only != "" && !found {
		return fmt.Errorf("no target named %q", only)
	}
	return nil
}

// scriptBlocks returns the stack blocks of the script starting at top, in
// execution order, descending into substacks.
func scriptBlocks(t *engine.Target, top string) []string {
	var ids []string
	var walk func(id string)
	walk = func(id string) {
		for id != "" {
			ids = append(ids, id)
			for n := 1; n <= 2; n++ {
				if branch := t.Blocks.GetBranch(id, n); branch != "" {
					walk(branch)
				}
			}
			id = t.Blocks.GetNextBlock(id)
		}
	}
	walk(top)
	return ids
}

func printOps(out io.Writer, rt *engine.Runtime, t *engine.Target) {
	dim := color.New(color.Faint)
	bad := color.New(color.FgRed)

	scripts := t.Blocks.Scripts()
	sort.Strings(scripts)
	for _, top := range scripts {
		fmt.Fprintf(out, "  script %s\n", top)
		for _, id := range scriptBlocks(t, top) {
			bc := rt.Compile(t.Blocks, id)
			if bc == nil {
				continue
			}
			fmt.Fprintf(out, "    %s %s\n", id, bc.Opcode)
			for _, op := range bc.Ops() {
				fmt.Fprintf(out, "      %-16s %-32s", op.ID, op.Opcode)
				if op.ParentID() != "" {
					dim.Fprintf(out, " -> %s.%s", op.ParentID(), op.ParentSlot())
				}
				if _, ok := rt.GetOpcodeFunction(op.Opcode); !ok && !op.IsHat() && !op.IsShadow() {
					bad.Fprint(out, " (unknown opcode)")
				}
				fmt.Fprintln(out)
			}
		}
	}
}

func printProcedures(out io.Writer, a dag.Analysis) {
	if len(a.Order) == 0 && len(a.InCycle) == 0 && len(a.Problems) == 0 {
		return
	}
	fmt.Fprintln(out, "  procedures (callers first)")
	for i, batch := range a.Batches {
		fmt.Fprintf(out, "    %d: %s\n", i, strings.Join(batch, ", "))
	}
	if len(a.InCycle) > 0 {
		color.New(color.FgYellow).Fprintf(out, "    recursive: %s\n", strings.Join(a.InCycle, ", "))
	}
	for _, problem := range a.Problems {
		color.New(color.FgRed).Fprintf(out, "    %s\n", problem)
	}
}

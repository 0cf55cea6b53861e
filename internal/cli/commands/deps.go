package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/dag"
	"github.com/leapstack-labs/pushset/internal/modelstore"
	"github.com/leapstack-labs/pushset/pkg/pushschema"
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	var (
		modelPath string
		focus     []string
	)

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Show measure dependencies",
		Long: `Display which measures reference which, grouped by level.

Level 0 holds measures that reference no other measure; a measure at level N
references at least one measure of level N-1. Unsupported measures are marked
so the chain that made a measure unsupported can be followed.

A reference is any [Name] inside an expression, matched case-insensitively.
With --measure only the named measures and the measures that depend on them,
directly or through other measures, are shown.`,
		Example: `  # Show the dependency levels
  pushset deps -m model.bim

  # What breaks when Total is removed
  pushset deps -m model.bim --measure Total

  # As JSON
  pushset deps -m model.bim --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modelPath == "" {
				return errors.New("no model given\nHint: use -m path/to/model.bim")
			}
			return runDeps(cmd, modelPath, focus)
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path or s3:// URI of the .bim model")
	cmd.Flags().StringSliceVar(&focus, "measure", nil, "Only show these measures and their dependents")

	return cmd
}

func runDeps(cmd *cobra.Command, modelPath string, focus []string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	db, err := newModelStore(cmdCtx.Cfg).Load(cmd.Context(), modelPath)
	if errors.Is(err, modelstore.ErrNotFound) {
		r.Error(fmt.Sprintf("%s: file not found, skipped", modelPath))
		return nil
	}
	if err != nil {
		return err
	}

	out := buildDepsOutput(db.Model, focus)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		depsMarkdown(r, out)
	default:
		depsText(r, out)
	}
	return nil
}

// buildDepsOutput computes the reference levels of the measures of m. A
// non-empty focus limits the levels to those measures and their dependents.
func buildDepsOutput(m *tabular.Model, focus []string) output.DepsOutput {
	graph := pushschema.MeasureGraph(m)
	check := pushschema.Check(m)

	out := output.DepsOutput{
		TotalMeasures: graph.NodeCount(),
		TotalEdges:    graph.EdgeCount(),
	}

	if hasCycle, cycle := graph.HasCycle(); hasCycle {
		out.Cycle = cycle
		return out
	}

	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return out
	}

	unsupported := make(map[string]pushschema.UnsupportedMeasure, len(check.Measures))
	for _, u := range check.Measures {
		unsupported[u.Name] = u
	}

	var keep map[string]bool
	if len(focus) > 0 {
		keep = make(map[string]bool)
		for _, name := range graph.Downstream(focus) {
			keep[name] = true
		}
	}

	for i, level := range levels {
		dl := output.DepsLevel{Level: i, Measures: make([]output.DepsNode, 0, len(level))}
		for _, name := range level {
			if keep != nil && !keep[name] {
				continue
			}
			dl.Measures = append(dl.Measures, depsNode(graph, name, unsupported))
		}
		if len(dl.Measures) > 0 {
			out.Levels = append(out.Levels, dl)
		}
	}
	return out
}

func depsNode(graph *dag.Graph, name string, unsupported map[string]pushschema.UnsupportedMeasure) output.DepsNode {
	node := output.DepsNode{
		Name:      name,
		DependsOn: graph.GetParents(name),
		UsedBy:    graph.GetChildren(name),
	}
	if n, ok := graph.GetNode(name); ok {
		if ref, ok := n.Data.(tabular.MeasureRef); ok {
			node.Table = ref.Table
		}
	}
	if u, ok := unsupported[name]; ok {
		node.Unsupported = true
		node.Reason = string(u.Reason)
	}
	return node
}

func depsText(r *output.Renderer, out output.DepsOutput) {
	styles := r.Styles()

	r.Header(1, "Measure Dependencies")
	if len(out.Cycle) > 0 {
		r.Warning("reference cycle: " + strings.Join(out.Cycle, " -> "))
		return
	}

	for _, level := range out.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", level.Level)))
		for _, m := range level.Measures {
			name := styles.Path.Render(fmt.Sprintf("'%s'[%s]", m.Table, m.Name))
			if m.Unsupported {
				name += "  " + styles.Error.Render("unsupported: "+m.Reason)
			}
			r.Printf("  %s\n", name)
			if len(m.DependsOn) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("references:"), strings.Join(m.DependsOn, ", "))
			}
			if len(m.UsedBy) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(m.UsedBy, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d measures, %d references", out.TotalMeasures, out.TotalEdges)))
}

func depsMarkdown(r *output.Renderer, out output.DepsOutput) {
	r.Println(output.FormatHeader(1, "Measure Dependencies"))
	r.Println("")

	if len(out.Cycle) > 0 {
		r.Println("Reference cycle: " + strings.Join(out.Cycle, " -> "))
		return
	}

	for _, level := range out.Levels {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", level.Level)))
		for _, m := range level.Measures {
			line := fmt.Sprintf("- '%s'[%s]", m.Table, m.Name)
			if m.Unsupported {
				line += " (unsupported: " + m.Reason + ")"
			}
			r.Println(line)
			if len(m.DependsOn) > 0 {
				r.Printf("  - references: %s\n", strings.Join(m.DependsOn, ", "))
			}
			if len(m.UsedBy) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(m.UsedBy, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Measures", fmt.Sprintf("%d", out.TotalMeasures)))
	r.Println(output.FormatKeyValue("Total References", fmt.Sprintf("%d", out.TotalEdges)))
}

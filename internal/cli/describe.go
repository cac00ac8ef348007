package cli

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/spf13/cobra"
)

type nodeInfo struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Next        []string `json:"next"`
	Predecessor []string `json:"predecessors"`
	Join        string   `json:"join,omitempty"`
}

type graphInfo struct {
	Name     string     `json:"name"`
	Fields   []string   `json:"fields"`
	Nodes    []nodeInfo `json:"nodes"`
	Warnings []string   `json:"warnings,omitempty"`
}

func newDescribeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "describe WORKFLOW",
		Short: "Show a workflow's nodes and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := e.opts.Registry.Lookup(args[0])
			if err != nil {
				return err
			}
			compiled, err := wf.Build()
			if err != nil {
				return fmt.Errorf("build %s: %w", wf.Name, err)
			}

			info := describeGraph(compiled)
			rows := make([][]string, 0, len(info.Nodes))
			for _, n := range info.Nodes {
				next := strings.Join(n.Next, ", ")
				if n.Join != "" {
					next += " (join " + n.Join + ")"
				}
				rows = append(rows, []string{n.Name, n.Kind, next})
			}

			out := e.output()
			if err := out.Print([]string{"NODE", "KIND", "NEXT"}, rows, info); err != nil {
				return err
			}
			if !out.JSONMode() {
				out.KeyValue("fields", strings.Join(info.Fields, ", "))
				for _, w := range info.Warnings {
					out.Error(w)
				}
			}
			return nil
		},
	}
}

// describeGraph lists START followed by every node in declaration order.
func describeGraph(cg *stepgraph.CompiledGraph) graphInfo {
	info := graphInfo{
		Name:   cg.Name(),
		Fields: cg.Schema().Names(),
	}
	for _, w := range cg.Warnings() {
		info.Warnings = append(info.Warnings, w.String())
	}

	for _, name := range append([]string{stepgraph.START}, cg.NodeNames()...) {
		n := nodeInfo{
			Name:        name,
			Kind:        "step",
			Predecessor: cg.Predecessors(name),
		}
		switch {
		case cg.IsConditional(name):
			n.Kind = "conditional"
			n.Next = cg.RouteTargets(name)
		default:
			n.Next = cg.Successors(name)
		}
		if fork := cg.Fork(name); fork != nil {
			n.Kind = "fork"
			n.Next = fork.Branches
			n.Join = fork.Join
		}
		if name == stepgraph.START && n.Kind == "step" {
			n.Kind = "entry"
		}
		if cg.IsJoinNode(name) {
			n.Kind += "+join"
		}
		info.Nodes = append(info.Nodes, n)
	}
	return info
}

package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

type workflowInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Inputs      []string       `json:"inputs"`
	Example     map[string]any `json:"example"`
	NeedsLLM    bool           `json:"needs_llm"`
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the demo workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := e.opts.Registry
			names := reg.Names()

			infos := make([]workflowInfo, 0, len(names))
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				w, _ := reg.Get(name)
				infos = append(infos, workflowInfo{
					Name:        w.Name,
					Description: w.Description,
					Inputs:      w.Inputs,
					Example:     w.Example,
					NeedsLLM:    w.NeedsLLM,
				})
				llmCol := "no"
				if w.NeedsLLM {
					llmCol = "yes"
				}
				rows = append(rows, []string{w.Name, strings.Join(w.Inputs, ", "), llmCol, w.Description})
			}

			return e.output().Print([]string{"NAME", "INPUTS", "LLM", "DESCRIPTION"}, rows, infos)
		},
	}
}

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := map[string]string{
				"version": e.opts.Version,
				"go":      runtime.Version(),
			}
			out := e.output()
			if out.JSONMode() {
				return out.JSON(v)
			}
			_, err := fmt.Fprintf(e.opts.Stdout, "stepgraph %s (%s)\n", v["version"], v["go"])
			return err
		},
	}
}

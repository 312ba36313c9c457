package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// inspectCmd dumps a table's B+Tree structure for debugging — the cobra
// equivalent of the teacher's standalone cmd/inspect_idx tool, folded into
// the main binary instead of shipping as its own `go run` target.
var inspectCmd = &cobra.Command{
	Use:   "inspect <table>",
	Short: "Print a table's B+Tree node structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		rel, ok := e.LookupTable(args[0])
		if !ok {
			return fmt.Errorf("inspect: no such table %q", args[0])
		}
		return rel.Tree.DebugPrint(os.Stdout)
	},
}

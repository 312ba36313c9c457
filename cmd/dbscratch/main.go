// Command dbscratch is the REPL/CLI entry point for the dbscratch engine,
// replacing the teacher's inline main.go with a cobra command the way
// leftmike-maho.v1 wraps its own server/REPL behind a root command.
package main

import (
	"fmt"
	"os"

	"dbscratch/cmd/dbscratch/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

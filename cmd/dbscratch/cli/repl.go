package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"dbscratch/engine"
	"dbscratch/types"
	"dbscratch/vm"
)

// runREPL is the teacher's main.go loop (bufio.Scanner, "db> " prompt,
// "exit" to quit) generalized to run real statements through Engine.Exec
// instead of printing the parsed AST/bytecode and a hardcoded search list.
func runREPL(e *engine.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}

		if strings.HasPrefix(line, ".") {
			runMetaCommand(e, line)
			continue
		}

		rows, err := e.Exec(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printRows(rows)
	}
	return scanner.Err()
}

// runMetaCommand dispatches a "." REPL command — currently just .import,
// the CSV-seeding meta-command SPEC_FULL.md calls for; unrecognized
// commands print a usage hint rather than erroring the whole session.
func runMetaCommand(e *engine.Engine, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".import":
		if len(fields) != 3 {
			fmt.Println("usage: .import <file.csv> <table>")
			return
		}
		n, err := importCSV(e, fields[1], fields[2])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("imported %d rows into %s\n", n, fields[2])
	default:
		fmt.Printf("unknown meta-command %q (try .import <file> <table>)\n", fields[0])
	}
}

// printRows renders result rows the way a REPL client needs them: one
// line per row, tab-separated, values formatted per their declared type.
func printRows(rows []engine.Row) {
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

func formatValue(v vm.Value) string {
	switch {
	case v.Type.IsChar():
		return types.DecodeChar(v.Data)
	case v.Type.IsFloat():
		return fmt.Sprintf("%v", types.AsFloat64(v.Type, v.Data))
	default:
		return fmt.Sprintf("%d", types.AsInt64(v.Type, v.Data))
	}
}

package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dbscratch/engine"
)

// importCmd lets .import also run as a standalone subcommand
// (`dbscratch import file.csv table`) — SPEC_FULL.md's CSV import feature
// is specified as a REPL meta-command, but the same underlying streaming
// INSERT logic is just as useful outside an interactive session.
var importCmd = &cobra.Command{
	Use:   "import <file.csv> <table>",
	Short: "Import a CSV file's rows into an existing table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := importCSV(e, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("imported %d rows into %s\n", n, args[1])
		return nil
	},
}

// importCSV streams a header-led CSV file's rows through INSERT
// statements against table — one Exec call (and one implicit transaction,
// per engine.Exec's injection rule) per row, the way
// original_source/src/demo.cpp's seed data and the teacher's cmd/seed
// feed rows through one INSERT per row rather than a bulk-load path.
func importCSV(e *engine.Engine, path, table string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("import: read header: %w", err)
	}

	columns := strings.Join(header, ", ")
	count := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("import: row %d: %w", count+1, err)
		}

		values := make([]string, len(record))
		for i, field := range record {
			values[i] = csvLiteral(field)
		}

		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columns, strings.Join(values, ", "))
		if _, err := e.Exec(sql); err != nil {
			return count, fmt.Errorf("import: row %d: %w", count+1, err)
		}
		count++
	}
	return count, nil
}

// csvLiteral renders one CSV field as a SQL literal: bare if it parses as
// a number, single-quoted otherwise. Embedded single quotes are escaped
// by doubling, matching the lexer's own string-body convention.
func csvLiteral(field string) string {
	if _, err := strconv.ParseFloat(field, 64); err == nil {
		return field
	}
	escaped := strings.ReplaceAll(field, "'", "''")
	return "'" + escaped + "'"
}

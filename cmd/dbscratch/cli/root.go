// Package cli implements the dbscratch command: a cobra root command
// whose default action (no subcommand) runs the REPL, plus an inspect
// subcommand for debugging — grounded on leftmike-maho.v1/cmd's
// mahoCmd/replCmd split between a persistent-flags root and an "if no
// subcommand, run the REPL" default.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dbscratch/engine"
)

var (
	dbPath           string
	pageSize         int
	journalSuffix    string
	arenaMaxCapacity int
	logLevel         string

	rootCmd = &cobra.Command{
		Use:   "dbscratch",
		Short: "A small disk-backed SQL engine",
		Long:  "dbscratch is a single-file SQL database: pager, B+Tree, VM, and compiler behind one REPL.",
		RunE:  runRoot,
	}
)

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&dbPath, "db", "dbscratch.db", "path to the database file")
	fs.IntVar(&pageSize, "page-size", 4096, "page size in bytes (informational; this build's pager uses a fixed 4096-byte page)")
	fs.StringVar(&journalSuffix, "journal-suffix", "-journal", "journal file suffix (informational; this build's pager uses a fixed suffix)")
	fs.IntVar(&arenaMaxCapacity, "arena-max-capacity", 0, "cap in bytes on the per-statement scratch arena; 0 means unbounded by this flag")
	fs.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(importCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() (*logrus.Logger, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}

func openEngine() (*engine.Engine, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	if pageSize != 4096 {
		log.WithField("requested", pageSize).Warn("--page-size is accepted for CLI parity but this pager's page size is fixed at 4096 bytes")
	}
	if journalSuffix != "-journal" {
		log.WithField("requested", journalSuffix).Warn("--journal-suffix is accepted for CLI parity but this pager's journal suffix is fixed")
	}

	return engine.Open(dbPath, engine.Options{Logger: log, ArenaMaxCapacity: arenaMaxCapacity})
}

func runRoot(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	return runREPL(e)
}

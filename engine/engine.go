// Package engine wires the pager, catalog, SQL front end, compiler, and
// VM into the single entry point a REPL or embedder drives: Exec(sql).
// Grounded on DaemonDB/main.go's REPL loop collapsed into a reusable type
// instead of living inline in main, the way leftmike-maho.v1's engine
// package separates "run one statement" from "read a line of input".
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"dbscratch/catalog"
	"dbscratch/compiler"
	"dbscratch/internal/arena"
	"dbscratch/pager"
	"dbscratch/sql/parser"
	"dbscratch/sql/semantic"
	"dbscratch/vm"
)

// Row is one result row, e.g. from a SELECT. Its values are backed by
// Engine's per-statement scratch arena, reset at the start of the next
// Exec call (spec §5's "per-query arena ... reset after each top-level
// SQL statement") — valid until then, not indefinitely.
type Row []vm.Value

// Options configures New.
type Options struct {
	Logger *logrus.Logger
	// ArenaMaxCapacity bounds the per-statement scratch arena (spec §5's
	// "per-query arena ... reset after each top-level SQL statement").
	// 0 uses arena.New's own default.
	ArenaMaxCapacity int
}

// Engine runs SQL statements against one open database file end to end:
// parse, resolve, compile, execute, per spec §5's single-active-
// transaction, single-thread model.
type Engine struct {
	pager   *pager.Pager
	catalog *catalog.Catalog
	sem     *semantic.Resolver
	log     *logrus.Logger
	scratch *arena.Arena
}

// Open opens (or creates) the database file at path and bootstraps its
// catalog, ready for Exec.
func Open(path string, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	p, err := pager.Open(path, pager.Options{Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("engine: open pager: %w", err)
	}

	cat, err := catalog.Open(p, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open catalog: %w", err)
	}

	scratch, err := arena.New("query", arena.Options{
		MaxCapacity: opts.ArenaMaxCapacity,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: reserve query arena: %w", err)
	}

	return &Engine{
		pager:   p,
		catalog: cat,
		sem:     semantic.New(cat),
		log:     opts.Logger,
		scratch: scratch,
	}, nil
}

// LookupTable returns name's relation, Attach-ing it (opening its B+Tree)
// if this is the first reference to it in the process — used by the
// inspect command, which needs a live *catalog.Relation without running a
// statement against it.
func (e *Engine) LookupTable(name string) (*catalog.Relation, bool) {
	rel, err := e.sem.AttachTable(name)
	if err != nil {
		return nil, false
	}
	return rel, true
}

// Close releases the engine's file handles and scratch arena.
func (e *Engine) Close() error {
	if err := e.scratch.Close(); err != nil {
		return err
	}
	return e.pager.Close()
}

// Exec parses, resolves, compiles, and runs one SQL statement, returning
// any rows it produced via RESULT. A statement that isn't itself
// BEGIN/COMMIT/ROLLBACK runs inside an engine-injected transaction when
// none is already open, per spec §5 ("either the SQL explicitly wraps
// itself in BEGIN/COMMIT or the driver injects an implicit transaction
// around the statement"); an explicit BEGIN/COMMIT/ROLLBACK always passes
// straight through since nesting is illegal.
func (e *Engine) Exec(sql string) ([]Row, error) {
	e.scratch.Reset()

	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("engine: parse: %w", err)
	}

	if err := e.sem.Resolve(stmt); err != nil {
		return nil, fmt.Errorf("engine: resolve: %w", err)
	}

	prog, err := compiler.Compile(stmt, e.catalog)
	if err != nil {
		return nil, fmt.Errorf("engine: compile: %w", err)
	}

	isTxnControl := isTransactionControl(stmt)
	injectedTxn := false
	if !isTxnControl && !e.pager.InTransaction() {
		if err := e.pager.BeginTransaction(); err != nil {
			return nil, fmt.Errorf("engine: begin implicit transaction: %w", err)
		}
		injectedTxn = true
	}

	var rows []Row
	m := vm.New(e.pager, prog.NumRegisters, prog.HostFunctions, func(row []vm.Value) {
		rows = append(rows, e.copyRow(row))
	})

	outcome, execErr := m.Execute(prog.Instructions)

	if injectedTxn {
		switch outcome {
		case vm.OutcomeOK:
			if err := e.pager.Commit(); err != nil {
				return rows, fmt.Errorf("engine: commit: %w", err)
			}
		default:
			e.log.WithFields(logrus.Fields{
				"outcome": outcome,
				"error":   execErr,
			}).Warn("implicit transaction rolled back")
			if err := e.pager.Rollback(); err != nil {
				return rows, fmt.Errorf("engine: rollback after %v: %w", execErr, err)
			}
		}
	}

	if execErr != nil {
		return rows, fmt.Errorf("engine: execute: %w", execErr)
	}
	return rows, nil
}

// copyRow copies row's values out of the VM's register file into the
// scratch arena, so they stay valid after the VM is gone, until the next
// Exec call resets the arena.
func (e *Engine) copyRow(row []vm.Value) Row {
	out := make(Row, len(row))
	for i, v := range row {
		buf := e.scratch.Alloc(len(v.Data))
		if buf == nil && len(v.Data) > 0 {
			// Scratch arena exhausted (ArenaMaxCapacity hit) — fall back to
			// the Go heap rather than drop the value silently.
			buf = make([]byte, len(v.Data))
		}
		copy(buf, v.Data)
		out[i] = vm.Value{Type: v.Type, Data: buf}
	}
	return out
}

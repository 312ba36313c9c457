// Package vm implements the register-based virtual machine (spec §4.5):
// a fixed register file, a cursor table, and a tight instruction loop.
// Grounded on query_executor/vm.go's Execute-loop shape (a top-level
// switch over opcodes, one case per effect, errors returned immediately)
// generalized from its stack-based, string-keyed operations to the spec's
// typed, register-addressed instruction set.
package vm

import (
	"fmt"

	"dbscratch/pager"
	"dbscratch/types"
)

// Outcome classifies how Execute terminated, per spec §4.5/§7: OK on a
// normal HALT, Abort when the error may have left the catalog or a table
// partially mutated (duplicate insert, delete on an invalid cursor,
// arithmetic/comparison type mismatch), Fail for everything else (I/O,
// pager exhaustion) where no such partial mutation is implied.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeAbort
	OutcomeFail
)

// HostFunction is a function the compiler can call via the FUNCTION
// opcode — spec §6 names create_relation/drop_relation as the two the
// compiler needs; the engine registers the concrete implementations.
type HostFunction func(args []Value) (Value, error)

// VM is one execution of a compiled program against one pager. Register
// file and cursor table are fresh per VM — the compiler's per-query arena
// discipline (spec §5) means a VM's state never outlives one top-level SQL
// statement.
type VM struct {
	pager     *pager.Pager
	registers []Value
	cursors   map[int]*runtimeCursor
	functions map[string]HostFunction
	resultFn  func([]Value)
	exitCode  int
}

// New returns a VM with numRegisters register slots, ready to Execute a
// program compiled against the same register allocation.
func New(p *pager.Pager, numRegisters int, functions map[string]HostFunction, resultFn func([]Value)) *VM {
	return &VM{
		pager:     p,
		registers: make([]Value, numRegisters),
		cursors:   make(map[int]*runtimeCursor),
		functions: functions,
		resultFn:  resultFn,
	}
}

// ExitCode returns the code HALT terminated with.
func (m *VM) ExitCode() int {
	return m.exitCode
}

// Execute runs program to completion (HALT or error), per spec §4.5.
func (m *VM) Execute(program []Instruction) (Outcome, error) {
	pc := 0
	for pc < len(program) {
		instr := program[pc]
		switch instr.Op {
		case OpLoad:
			lit, ok := instr.P4.(Value)
			if !ok {
				return OutcomeFail, fmt.Errorf("vm: LOAD missing literal payload at pc %d", pc)
			}
			m.registers[instr.P1] = copyValue(lit)

		case OpMove:
			m.registers[instr.P2] = copyValue(m.registers[instr.P1])

		case OpArithmetic:
			op, _ := instr.P4.(ArithOp)
			r, err := arithmetic(op, m.registers[instr.P1], m.registers[instr.P2])
			if err != nil {
				return OutcomeAbort, fmt.Errorf("vm: pc %d: %w", pc, err)
			}
			m.registers[instr.P3] = r

		case OpTest:
			op, _ := instr.P4.(CompareOp)
			ok, err := compareValues(op, m.registers[instr.P1], m.registers[instr.P2])
			if err != nil {
				return OutcomeAbort, fmt.Errorf("vm: pc %d: %w", pc, err)
			}
			m.registers[instr.P3] = boolValue(ok)

		case OpLogic:
			op, _ := instr.P4.(LogicOp)
			a, b := truthy(m.registers[instr.P1]), truthy(m.registers[instr.P2])
			var r bool
			switch op {
			case LogicAnd:
				r = a && b
			case LogicOr:
				r = a || b
			}
			m.registers[instr.P3] = boolValue(r)

		case OpGoto:
			pc = instr.P1
			continue

		case OpJumpIf:
			want := instr.P2 != 0
			if truthy(m.registers[instr.P1]) == want {
				pc = instr.P3
				continue
			}

		case OpOpen:
			ctx, ok := instr.P4.(CursorContext)
			if !ok {
				return OutcomeFail, fmt.Errorf("vm: OPEN missing cursor context at pc %d", pc)
			}
			rc, err := openCursor(ctx)
			if err != nil {
				return OutcomeFail, err
			}
			m.cursors[instr.P1] = rc

		case OpClose:
			delete(m.cursors, instr.P1)

		case OpRewind:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			var ok bool
			if instr.P2 != 0 {
				ok, err = rc.last()
			} else {
				ok, err = rc.first()
			}
			if err != nil {
				return OutcomeFail, err
			}
			m.registers[instr.P3] = boolValue(ok)

		case OpStep:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			var ok bool
			if instr.P2 != 0 {
				ok, err = rc.previous()
			} else {
				ok, err = rc.next()
			}
			if err != nil {
				return OutcomeFail, err
			}
			m.registers[instr.P3] = boolValue(ok)

		case OpSeek:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			op, _ := instr.P4.(CompareOp)
			ok, err := rc.seek(m.registers[instr.P2].Data, op)
			if err != nil {
				return OutcomeFail, err
			}
			m.registers[instr.P3] = boolValue(ok)

		case OpColumn:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			if !rc.valid() {
				return OutcomeFail, fmt.Errorf("vm: COLUMN on invalid cursor %d at pc %d", instr.P1, pc)
			}
			col := instr.P2
			format := rc.ctx.Format
			var t = format.KeyType
			var raw []byte
			if col == 0 {
				raw = rc.key()
			} else {
				raw = format.ColumnSlice(rc.record(), col)
				t = format.Columns[col]
			}
			m.registers[instr.P3] = Value{Type: t, Data: append([]byte(nil), raw...)}

		case OpInsert:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			key, record := m.buildRow(rc.ctx.Format, instr.P2)
			if err := rc.insert(key, record); err != nil {
				return OutcomeAbort, fmt.Errorf("vm: pc %d: %w", pc, err)
			}

		case OpUpdate:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			record := m.assembleRecord(rc.ctx.Format, instr.P2)
			if err := rc.update(record); err != nil {
				return OutcomeAbort, fmt.Errorf("vm: pc %d: %w", pc, err)
			}

		case OpDelete:
			rc, err := m.cursor(instr.P1)
			if err != nil {
				return OutcomeFail, err
			}
			if !rc.valid() {
				return OutcomeAbort, fmt.Errorf("vm: DELETE on invalid cursor %d at pc %d", instr.P1, pc)
			}
			occurred, stillValid, err := rc.delete()
			if err != nil {
				return OutcomeAbort, fmt.Errorf("vm: pc %d: %w", pc, err)
			}
			m.registers[instr.P2] = boolValue(occurred)
			m.registers[instr.P3] = boolValue(stillValid)

		case OpResult:
			if m.resultFn != nil {
				row := make([]Value, instr.P2)
				copy(row, m.registers[instr.P1:instr.P1+instr.P2])
				m.resultFn(row)
			}

		case OpFunction:
			name, _ := instr.P4.(string)
			fn, ok := m.functions[name]
			if !ok {
				return OutcomeFail, fmt.Errorf("vm: unknown host function %q at pc %d", name, pc)
			}
			args := m.registers[instr.P1 : instr.P1+instr.P2]
			result, err := fn(args)
			if err != nil {
				return OutcomeAbort, fmt.Errorf("vm: host function %q: %w", name, err)
			}
			m.registers[instr.P3] = result

		case OpBegin:
			if err := m.pager.BeginTransaction(); err != nil {
				return OutcomeFail, err
			}

		case OpCommit:
			if err := m.pager.Commit(); err != nil {
				return OutcomeFail, err
			}

		case OpRollback:
			if err := m.pager.Rollback(); err != nil {
				return OutcomeFail, err
			}

		case OpPack2:
			a, b := m.registers[instr.P1], m.registers[instr.P2]
			packed := append(append([]byte(nil), a.Data...), b.Data...)
			m.registers[instr.P3] = Value{Data: packed}

		case OpUnpack2:
			widths, _ := instr.P4.([2]int)
			src := m.registers[instr.P1].Data
			m.registers[instr.P2] = Value{Data: append([]byte(nil), src[:widths[0]]...)}
			m.registers[instr.P3] = Value{Data: append([]byte(nil), src[widths[0]:widths[0]+widths[1]]...)}

		case OpHalt:
			m.exitCode = instr.P1
			if instr.P1 != 0 {
				return OutcomeFail, fmt.Errorf("vm: HALT with exit code %d", instr.P1)
			}
			return OutcomeOK, nil

		default:
			return OutcomeFail, fmt.Errorf("vm: unknown opcode %d at pc %d", instr.Op, pc)
		}
		pc++
	}
	return OutcomeOK, nil
}

func (m *VM) cursor(id int) (*runtimeCursor, error) {
	rc, ok := m.cursors[id]
	if !ok {
		return nil, fmt.Errorf("vm: cursor %d not open", id)
	}
	return rc, nil
}

// buildRow reads a contiguous register range [start, start+len(Columns)) —
// one register per column of the tree's tuple format, key first — and
// returns the key bytes and an assembled fixed-width record, per spec
// §4.6's "evaluate each literal into its column's register slot".
func (m *VM) buildRow(format types.TupleFormat, start int) (key, record []byte) {
	return m.registers[start].Data, m.assembleRecord(format, start)
}

// assembleRecord packs registers [start+1, start+len(Columns)) — the
// non-key columns, key excluded — into one fixed-width record buffer per
// format's offsets.
func (m *VM) assembleRecord(format types.TupleFormat, start int) []byte {
	record := make([]byte, format.RecordSize)
	for i := 1; i < len(format.Columns); i++ {
		copy(format.ColumnSlice(record, i), m.registers[start+i].Data)
	}
	return record
}

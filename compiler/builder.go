package compiler

import (
	"fmt"

	"dbscratch/types"
	"dbscratch/vm"
)

// patchTarget names which Instruction field a forward jump's target PC
// gets written into once its label resolves — OpGoto carries its target
// in P1, OpJumpIf in P3 (see vm/vm.go's Execute switch), unlike the C++
// original where both opcodes share p2.
type patchTarget int

const (
	patchGotoTarget patchTarget = iota
	patchJumpIfTarget
)

type patch struct {
	instrIdx int
	label    string
	target   patchTarget
}

// whileContext and ifContext carry what begin_while/begin_if (compile.hpp)
// need to thread through to their matching end_while/end_if/begin_else.
type whileContext struct {
	loopLabel, endLabel string
	savedMark           int
}

type ifContext struct {
	elseLabel, endLabel string
	savedMark           int
	hasElse             bool
}

// builder assembles one compiled program: the instruction stream, its
// register allocator, and the label/patch bookkeeping for forward jumps.
// One builder per compiled statement — ported from program_builder in
// compile.hpp.
type builder struct {
	instructions []vm.Instruction
	regs         registerAllocator
	nextCursor   int
	labelCounter int
	labels       map[string]int
	patches      []patch
}

func newBuilder() *builder {
	return &builder{labels: make(map[string]int)}
}

func (b *builder) emit(instr vm.Instruction) int {
	b.instructions = append(b.instructions, instr)
	return len(b.instructions) - 1
}

func (b *builder) uniqueLabel() string {
	b.labelCounter++
	return fmt.Sprintf(".L%d", b.labelCounter)
}

func (b *builder) defineLabel(name string) {
	b.labels[name] = len(b.instructions)
}

func (b *builder) jumpTo(label string) {
	idx := b.emit(vm.Instruction{Op: vm.OpGoto})
	b.patches = append(b.patches, patch{instrIdx: idx, label: label, target: patchGotoTarget})
}

// jumpIf emits a conditional jump to label, taken when testReg's
// truthiness equals jumpIfTrue.
func (b *builder) jumpIf(testReg int, label string, jumpIfTrue bool) {
	want := 0
	if jumpIfTrue {
		want = 1
	}
	idx := b.emit(vm.Instruction{Op: vm.OpJumpIf, P1: testReg, P2: want})
	b.patches = append(b.patches, patch{instrIdx: idx, label: label, target: patchJumpIfTarget})
}

// resolveLabels patches every forward jump now that every label's PC is
// known. An unresolved label here is a compiler bug, not a malformed
// query — every label this package defines is always later defined on
// every code path that references it.
func (b *builder) resolveLabels() {
	for _, p := range b.patches {
		target, ok := b.labels[p.label]
		if !ok {
			panic(fmt.Sprintf("compiler: undefined label %q", p.label))
		}
		switch p.target {
		case patchGotoTarget:
			b.instructions[p.instrIdx].P1 = target
		case patchJumpIfTarget:
			b.instructions[p.instrIdx].P3 = target
		}
	}
}

func (b *builder) halt(exitCode int) {
	b.emit(vm.Instruction{Op: vm.OpHalt, P1: exitCode})
}

// beginWhile/endWhile bracket a "loop while conditionReg is truthy" body,
// re-testing conditionReg (which the body is expected to refresh, e.g.
// via next()/prev()) each iteration — ported from begin_while/end_while.
func (b *builder) beginWhile(conditionReg int) whileContext {
	loopLabel, endLabel := b.uniqueLabel(), b.uniqueLabel()
	b.defineLabel(loopLabel)
	b.jumpIf(conditionReg, endLabel, false)
	return whileContext{loopLabel: loopLabel, endLabel: endLabel, savedMark: b.regs.mark()}
}

func (b *builder) endWhile(ctx whileContext) {
	b.jumpTo(ctx.loopLabel)
	b.defineLabel(ctx.endLabel)
	b.regs.restore(ctx.savedMark)
}

// beginIf/beginElse/endIf bracket an "if testReg is truthy" body, ported
// from begin_if/begin_else/end_if.
func (b *builder) beginIf(testReg int) ifContext {
	elseLabel, endLabel := b.uniqueLabel(), b.uniqueLabel()
	b.jumpIf(testReg, elseLabel, false)
	return ifContext{elseLabel: elseLabel, endLabel: endLabel, savedMark: b.regs.mark()}
}

func (b *builder) beginElse(ctx *ifContext) {
	b.jumpTo(ctx.endLabel)
	b.defineLabel(ctx.elseLabel)
	ctx.hasElse = true
}

func (b *builder) endIf(ctx ifContext) {
	if !ctx.hasElse {
		b.defineLabel(ctx.elseLabel)
	}
	b.defineLabel(ctx.endLabel)
	b.regs.restore(ctx.savedMark)
}

// load emits a LOAD of v into dest (or a freshly allocated register when
// dest is autoRegister). Go's vm.Value already carries type and raw bytes
// together, so unlike compile.hpp's separate load()/load_string()
// template instantiations, one method covers every type.
func (b *builder) load(v vm.Value, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpLoad, P1: dest, P4: v})
	return dest
}

func (b *builder) move(src, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpMove, P1: src, P2: dest})
	return dest
}

func (b *builder) arithmetic(left, right int, op vm.ArithOp, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpArithmetic, P1: left, P2: right, P3: dest, P4: op})
	return dest
}

func (b *builder) test(left, right int, op vm.CompareOp, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpTest, P1: left, P2: right, P3: dest, P4: op})
	return dest
}

func (b *builder) logic(left, right int, op vm.LogicOp, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpLogic, P1: left, P2: right, P3: dest, P4: op})
	return dest
}

func (b *builder) openCursor(ctx vm.CursorContext) int {
	id := b.nextCursor
	b.nextCursor++
	b.emit(vm.Instruction{Op: vm.OpOpen, P1: id, P4: ctx})
	return id
}

func (b *builder) closeCursor(cursor int) {
	b.emit(vm.Instruction{Op: vm.OpClose, P1: cursor})
}

// rewind/first/last, step/next/prev mirror the C++ names: P2 of REWIND and
// STEP is a direction flag (vm.go: REWIND's P2!=0 means "to end"; STEP's
// P2!=0 means "previous" rather than "next").
func (b *builder) rewind(cursor int, toEnd bool, dest int) int {
	dest = b.regs.allocate(dest)
	p2 := 0
	if toEnd {
		p2 = 1
	}
	b.emit(vm.Instruction{Op: vm.OpRewind, P1: cursor, P2: p2, P3: dest})
	return dest
}

func (b *builder) first(cursor, dest int) int { return b.rewind(cursor, false, dest) }
func (b *builder) last(cursor, dest int) int  { return b.rewind(cursor, true, dest) }

func (b *builder) step(cursor int, backward bool, dest int) int {
	dest = b.regs.allocate(dest)
	p2 := 0
	if backward {
		p2 = 1
	}
	b.emit(vm.Instruction{Op: vm.OpStep, P1: cursor, P2: p2, P3: dest})
	return dest
}

func (b *builder) next(cursor, dest int) int { return b.step(cursor, false, dest) }
func (b *builder) prev(cursor, dest int) int { return b.step(cursor, true, dest) }

func (b *builder) seek(cursor, keyReg int, op vm.CompareOp, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpSeek, P1: cursor, P2: keyReg, P3: dest, P4: op})
	return dest
}

func (b *builder) column(cursor, colIndex, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpColumn, P1: cursor, P2: colIndex, P3: dest})
	return dest
}

// columns emits one COLUMN per index in [startCol, startCol+count) into a
// freshly allocated contiguous range, ported from get_columns.
func (b *builder) columns(cursor, startCol, count int) int {
	first := b.regs.allocateRange(count)
	for i := 0; i < count; i++ {
		b.emit(vm.Instruction{Op: vm.OpColumn, P1: cursor, P2: startCol + i, P3: first + i})
	}
	return first
}

// insertRecord emits INSERT; the row's column count comes from the
// cursor's own tuple format at run time, so there is no length operand.
func (b *builder) insertRecord(cursor, rowStart int) {
	b.emit(vm.Instruction{Op: vm.OpInsert, P1: cursor, P2: rowStart})
}

func (b *builder) updateRecord(cursor, recordReg int) {
	b.emit(vm.Instruction{Op: vm.OpUpdate, P1: cursor, P2: recordReg})
}

// deleteRecord emits DELETE, writing whether a row was actually removed
// into occurredReg and whether the cursor still addresses a valid row
// (the next one shifted into this slot) into stillValidReg.
func (b *builder) deleteRecord(cursor int, occurredReg, stillValidReg int) {
	occurredReg = b.regs.allocate(occurredReg)
	stillValidReg = b.regs.allocate(stillValidReg)
	b.emit(vm.Instruction{Op: vm.OpDelete, P1: cursor, P2: occurredReg, P3: stillValidReg})
}

func (b *builder) result(firstReg, count int) {
	b.emit(vm.Instruction{Op: vm.OpResult, P1: firstReg, P2: count})
}

func (b *builder) begin()    { b.emit(vm.Instruction{Op: vm.OpBegin}) }
func (b *builder) commit()   { b.emit(vm.Instruction{Op: vm.OpCommit}) }
func (b *builder) rollback() { b.emit(vm.Instruction{Op: vm.OpRollback}) }

// function emits a FUNCTION call to the host function named fn, passing
// the contiguous register range [firstArgReg, firstArgReg+argCount) as
// its arguments.
func (b *builder) function(fn string, firstArgReg, argCount int, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpFunction, P1: firstArgReg, P2: argCount, P3: dest, P4: fn})
	return dest
}

func (b *builder) pack2(left, right, dest int) int {
	dest = b.regs.allocate(dest)
	b.emit(vm.Instruction{Op: vm.OpPack2, P1: left, P2: right, P3: dest})
	return dest
}

func (b *builder) unpack2(src int, leftWidth, rightWidth int) (left, right int) {
	first := b.regs.allocateRange(2)
	b.emit(vm.Instruction{Op: vm.OpUnpack2, P1: src, P2: first, P3: first + 1, P4: [2]int{leftWidth, rightWidth}})
	return first, first + 1
}

// loadLiteral loads an already-typed ast literal's bytes directly, since
// semantic resolution has already coerced every literal to its target
// column's declared type and width.
func (b *builder) loadLiteral(typ types.DataType, data []byte) int {
	return b.load(vm.Value{Type: typ, Data: append([]byte(nil), data...)}, autoRegister)
}

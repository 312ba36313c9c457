package vm

import (
	"fmt"

	"dbscratch/types"
)

// Value is the contents of one register: a typed, register-owned byte
// slice. Spec §9 flags COLUMN reads as pointers into page memory that a
// later mutation can invalidate — Execute's COLUMN case always copies into
// a fresh slice before storing it in a register, so that hazard never
// crosses the register boundary.
type Value struct {
	Type types.DataType
	Data []byte
}

func copyValue(v Value) Value {
	return Value{Type: v.Type, Data: append([]byte(nil), v.Data...)}
}

// truthy reports whether v should be treated as "true" by JUMPIF/LOGIC:
// any nonzero numeric value. Non-numeric registers are never condition
// operands in a well-formed program; truthy on one is a compiler bug, not
// a runtime condition to recover from.
func truthy(v Value) bool {
	if !v.Type.IsNumeric() {
		panic(fmt.Sprintf("vm: truthy on non-numeric register (type %s)", v.Type))
	}
	zero := make([]byte, len(v.Data))
	return types.Compare(v.Type, v.Data, zero) != 0
}

func boolValue(b bool) Value {
	if b {
		return Value{Type: types.TypeU8, Data: []byte{1}}
	}
	return Value{Type: types.TypeU8, Data: []byte{0}}
}

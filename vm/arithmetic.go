package vm

import (
	"fmt"

	"dbscratch/types"
)

func arithmetic(op ArithOp, a, b Value) (Value, error) {
	if a.Type != b.Type || !a.Type.IsNumeric() {
		return Value{}, fmt.Errorf("vm: arithmetic type mismatch (%s vs %s)", a.Type, b.Type)
	}

	out := Value{Type: a.Type, Data: make([]byte, types.Size(a.Type))}
	if a.Type.IsFloat() {
		x, y := types.AsFloat64(a.Type, a.Data), types.AsFloat64(b.Type, b.Data)
		r, err := applyFloat(op, x, y)
		if err != nil {
			return Value{}, err
		}
		types.PutFloat64(a.Type, out.Data, r)
		return out, nil
	}

	x, y := types.AsInt64(a.Type, a.Data), types.AsInt64(b.Type, b.Data)
	r, err := applyInt(op, x, y)
	if err != nil {
		return Value{}, err
	}
	types.PutInt64(a.Type, out.Data, r)
	return out, nil
}

func applyFloat(op ArithOp, x, y float64) (float64, error) {
	switch op {
	case ArithAdd:
		return x + y, nil
	case ArithSub:
		return x - y, nil
	case ArithMul:
		return x * y, nil
	case ArithDiv:
		if y == 0 {
			return 0, fmt.Errorf("vm: division by zero")
		}
		return x / y, nil
	default:
		return 0, fmt.Errorf("vm: unknown arithmetic op %d", op)
	}
}

func applyInt(op ArithOp, x, y int64) (int64, error) {
	switch op {
	case ArithAdd:
		return x + y, nil
	case ArithSub:
		return x - y, nil
	case ArithMul:
		return x * y, nil
	case ArithDiv:
		if y == 0 {
			return 0, fmt.Errorf("vm: division by zero")
		}
		return x / y, nil
	default:
		return 0, fmt.Errorf("vm: unknown arithmetic op %d", op)
	}
}

func compareValues(op CompareOp, a, b Value) (bool, error) {
	if a.Type != b.Type {
		return false, fmt.Errorf("vm: comparison type mismatch (%s vs %s)", a.Type, b.Type)
	}
	c := types.Compare(a.Type, a.Data, b.Data)
	switch op {
	case CompareEQ:
		return c == 0, nil
	case CompareNE:
		return c != 0, nil
	case CompareLT:
		return c < 0, nil
	case CompareLE:
		return c <= 0, nil
	case CompareGT:
		return c > 0, nil
	case CompareGE:
		return c >= 0, nil
	default:
		return false, fmt.Errorf("vm: unknown compare op %d", op)
	}
}

package expr

import (
	"fmt"
	"strings"
)

// builtinOps is ordered so that two-character operators are tried before
// their one-character prefixes.
var builtinOps = []struct {
	token   string
	name    string
	compare BinaryOp
}{
	{"==", "==", compareEquals},
	{"!=", "!=", compareNotEquals},
	{">=", ">=", compareGTE},
	{"<=", "<=", compareLTE},
	{">", ">", compareGT},
	{"<", "<", compareLT},
	{" contains ", "contains", compareContains},
}

// Compare compares two values using the named operator.
func Compare(left, right any, op string) (bool, error) {
	for _, b := range builtinOps {
		if b.name == op {
			return b.compare(left, right), nil
		}
	}
	return false, fmt.Errorf("unknown operator: %s", op)
}

func compareEquals(left, right any) bool {
	return fmt.Sprint(left) == fmt.Sprint(right)
}

func compareNotEquals(left, right any) bool {
	return !compareEquals(left, right)
}

func compareLT(left, right any) bool {
	return ToFloat64(left) < ToFloat64(right)
}

func compareGT(left, right any) bool {
	return ToFloat64(left) > ToFloat64(right)
}

func compareLTE(left, right any) bool {
	return ToFloat64(left) <= ToFloat64(right)
}

func compareGTE(left, right any) bool {
	return ToFloat64(left) >= ToFloat64(right)
}

func compareContains(left, right any) bool {
	return strings.Contains(fmt.Sprint(left), fmt.Sprint(right))
}

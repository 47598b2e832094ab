package validate

import (
	"fmt"
	"strings"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
)

// ExprType выводит тип результата выражения.
// Строка в любом операнде "+" даёт String, иначе арифметика над Int/Decimal.
func ExprType(e dsl.Expr, fieldKind func(name string) (ir.TypeKind, bool)) (ir.TypeKind, error) {
	switch n := e.(type) {
	case *dsl.StringLit:
		return ir.TypeString, nil
	case *dsl.NumberLit:
		if strings.Contains(n.Raw, ".") {
			return ir.TypeDecimal, nil
		}
		return ir.TypeInt, nil
	case *dsl.FieldRef:
		k, ok := fieldKind(n.Name)
		if !ok {
			return "", fmt.Errorf("unknown field %q", n.Name)
		}
		if !ir.IsNumeric(k) && !ir.IsTextual(k) {
			return "", fmt.Errorf("field %q of type %s cannot be used in an expression", n.Name, k)
		}
		return k, nil
	case *dsl.BinaryExpr:
		l, err := ExprType(n.Left, fieldKind)
		if err != nil {
			return "", err
		}
		r, err := ExprType(n.Right, fieldKind)
		if err != nil {
			return "", err
		}
		if n.Op == "+" && (ir.IsTextual(l) || ir.IsTextual(r)) {
			return ir.TypeString, nil
		}
		if !ir.IsNumeric(l) || !ir.IsNumeric(r) {
			return "", fmt.Errorf("operator %s needs numeric operands, got %s and %s", n.Op, l, r)
		}
		if l == ir.TypeDecimal || r == ir.TypeDecimal {
			return ir.TypeDecimal, nil
		}
		return ir.TypeInt, nil
	}
	return "", fmt.Errorf("unsupported expression node %T", e)
}

// Assignable: значение типа got можно хранить в поле типа declared.
func Assignable(declared, got ir.TypeKind) bool {
	switch declared {
	case ir.TypeString, ir.TypeText:
		return ir.IsTextual(got)
	case ir.TypeDecimal:
		return ir.IsNumeric(got)
	}
	return declared == got
}

package ir

import "encoding/json"

// Expr: узел выражения вычисляемого поля в IR.
// Каждый узел сериализуется с дискриминатором "kind".
type Expr interface {
	exprNode()
}

type FieldRef struct {
	Name string
}

// Literal: строковый или числовой литерал. Value — текст числа как в исходнике.
type Literal struct {
	Type  TypeKind
	Value string
}

type Binary struct {
	Op    string
	Left  Expr
	Right Expr
	Type  TypeKind // тип результата
}

func (*FieldRef) exprNode() {}
func (*Literal) exprNode()  {}
func (*Binary) exprNode()   {}

func (e *FieldRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}{"field", e.Name})
}

func (e *Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string   `json:"kind"`
		Type  TypeKind `json:"type"`
		Value string   `json:"value"`
	}{"literal", e.Type, e.Value})
}

func (e *Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string   `json:"kind"`
		Op    string   `json:"op"`
		Left  Expr     `json:"left"`
		Right Expr     `json:"right"`
		Type  TypeKind `json:"type"`
	}{"binary", e.Op, e.Left, e.Right, e.Type})
}

// ExprType: тип результата узла; для ссылки на поле его знает только владелец.
func ExprType(e Expr, fieldType func(string) TypeKind) TypeKind {
	switch n := e.(type) {
	case *Literal:
		return n.Type
	case *Binary:
		return n.Type
	case *FieldRef:
		if fieldType == nil {
			return ""
		}
		return fieldType(n.Name)
	}
	return ""
}

// Refs: имена полей выражения в порядке первого появления.
func Refs(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *FieldRef:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e)
	return out
}

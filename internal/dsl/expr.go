package dsl

// Expr: узел выражения вычисляемого поля.
//
//	expr   = term (("+" | "-") term)*
//	term   = factor (("*" | "/") factor)*
//	factor = STRING | NUMBER | NAME | "(" expr ")" | "-" factor
type Expr interface {
	ExprPos() Pos
	exprNode()
}

type FieldRef struct {
	Name string
	Pos  Pos
}

type BinaryExpr struct {
	Op    string // + - * /
	Left  Expr
	Right Expr
	Pos   Pos
}

func (e *FieldRef) ExprPos() Pos   { return e.Pos }
func (e *BinaryExpr) ExprPos() Pos { return e.Pos }
func (e *StringLit) ExprPos() Pos  { return e.Pos }
func (e *NumberLit) ExprPos() Pos  { return e.Pos }

func (*FieldRef) exprNode()   {}
func (*BinaryExpr) exprNode() {}
func (*StringLit) exprNode()  {}
func (*NumberLit) exprNode()  {}

// ParseExpr разбирает строку выражения. Позиции ошибок — относительно самой строки.
func ParseExpr(src string) (Expr, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	if p.peek().Kind == EOF {
		return nil, p.fail(p.peek(), "expression")
	}
	e, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != EOF {
		return nil, p.fail(t, "operator or end of expression")
	}
	return e, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == PLUS || p.peek().Kind == MINUS {
		op := p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Lexeme, Left: left, Right: right, Pos: op.Pos}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == STAR || p.peek().Kind == SLASH {
		op := p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Lexeme, Left: left, Right: right, Pos: op.Pos}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	t := p.peek()
	switch t.Kind {
	case STRING:
		p.advance()
		return &StringLit{Value: t.Lexeme, Pos: t.Pos}, nil
	case NUMBER:
		p.advance()
		return &NumberLit{Raw: t.Lexeme, Pos: t.Pos}, nil
	case IDENT, KEYWORD:
		p.advance()
		return &FieldRef{Name: t.Lexeme, Pos: t.Pos}, nil
	case LPAREN:
		p.advance()
		e, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case MINUS:
		p.advance()
		if n := p.peek(); n.Kind == NUMBER {
			p.advance()
			return &NumberLit{Raw: "-" + n.Lexeme, Pos: t.Pos}, nil
		}
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		// -x == 0 - x, отдельный унарный узел генераторам не нужен
		return &BinaryExpr{Op: "-", Left: &NumberLit{Raw: "0", Pos: t.Pos}, Right: operand, Pos: t.Pos}, nil
	}
	return nil, p.fail(t, "field name, literal or '('")
}

// FieldRefs собирает имена полей из выражения в порядке появления, без повторов.
func FieldRefs(e Expr) []*FieldRef {
	var out []*FieldRef
	seen := map[string]bool{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *FieldRef:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n)
			}
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e)
	return out
}

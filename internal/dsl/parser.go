package dsl

import "strings"

// модификаторы поля — контекстные слова, а не ключевые: поле может называться unique
var fieldModifiers = map[string]struct{}{
	"primaryKey": {},
	"unique":     {},
	"optional":   {},
}

// parser: рекурсивный спуск по готовому срезу токенов.
type parser struct {
	tokens []Token
	pos    int
	file   string
}

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		if len(p.tokens) == 0 {
			return Token{Kind: EOF}
		}
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *parser) advance() Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) fail(t Token, expected string) error {
	return &SyntaxError{File: p.file, Pos: t.Pos, Expected: expected, Found: t.String()}
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	t := p.peek()
	if t.Kind != kind {
		return t, p.fail(t, kind.String())
	}
	return p.advance(), nil
}

// isName: в позиции имени годится и идентификатор, и ключевое слово
func isName(t Token) bool { return t.Kind == IDENT || t.Kind == KEYWORD }

func (p *parser) expectName(what string) (Token, error) {
	t := p.peek()
	if !isName(t) {
		return t, p.fail(t, what)
	}
	return p.advance(), nil
}

// Parse строит дерево из полного списка токенов. Первая же ошибка прерывает разбор.
func Parse(tokens []Token) (*File, error) {
	return parseTokens("", tokens)
}

// ParseSource: Lex + Parse; path подставляется в позиции ошибок.
func ParseSource(path, src string) (*File, error) {
	tokens, err := Lex(src)
	if err != nil {
		if le, ok := err.(*LexError); ok {
			le.File = path
		}
		return nil, err
	}
	return parseTokens(path, tokens)
}

func parseTokens(path string, tokens []Token) (*File, error) {
	p := &parser{tokens: tokens, file: path}
	f := &File{Path: path}
	for p.peek().Kind != EOF {
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		f.Decls = append(f.Decls, d)
	}
	return f, nil
}

func (p *parser) parseDecl() (Decl, error) {
	t := p.peek()
	if t.Kind != KEYWORD {
		return nil, p.fail(t, "block keyword (entity, page, view, workflow, enum, config)")
	}
	switch t.Lexeme {
	case "entity":
		return p.parseEntity()
	case "enum":
		return p.parseEnum()
	case "page":
		p.advance()
		name, err := p.expectName("page name")
		if err != nil {
			return nil, err
		}
		props, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		return &PageDecl{Name: name.Lexeme, Pos: t.Pos, File: p.file, Props: props}, nil
	case "view":
		p.advance()
		name, err := p.expectName("view name")
		if err != nil {
			return nil, err
		}
		props, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		return &ViewDecl{Name: name.Lexeme, Pos: t.Pos, File: p.file, Props: props}, nil
	case "workflow":
		return p.parseWorkflow()
	case "config":
		p.advance()
		d := &ConfigDecl{Pos: t.Pos, File: p.file}
		if isName(p.peek()) {
			d.Name = p.advance().Lexeme
		}
		props, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		d.Props = props
		return d, nil
	}
	return nil, p.fail(t, "block keyword")
}

// ----- entity -----

func (p *parser) parseEntity() (*EntityDecl, error) {
	kw := p.advance()
	name, err := p.expectName("entity name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	e := &EntityDecl{Name: name.Lexeme, Pos: kw.Pos, File: p.file}
	for {
		t := p.peek()
		if t.Kind == RBRACE {
			p.advance()
			return e, nil
		}
		if t.Kind == COMMA {
			p.advance()
			continue
		}
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}
}

func (p *parser) parseField() (*FieldDecl, error) {
	name, err := p.expectName("field name or '}'")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	typ, err := p.expectName("field type")
	if err != nil {
		return nil, err
	}
	f := &FieldDecl{Name: name.Lexeme, Pos: name.Pos, Type: TypeRef{Name: typ.Lexeme, Pos: typ.Pos}}
	if p.peek().Kind == LBRACKET {
		p.advance()
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		f.Type.List = true
	}

	seen := map[string]bool{}
	mark := func(m string) {
		if seen[m] {
			f.Repeated = append(f.Repeated, m)
		}
		seen[m] = true
	}

	for {
		t := p.peek()
		next := p.peekAt(1)
		switch {
		case t.Kind == IDENT && next.Kind != COLON && isModifier(t.Lexeme):
			p.advance()
			mark(t.Lexeme)
			switch t.Lexeme {
			case "primaryKey":
				f.PrimaryKey = true
			case "unique":
				f.Unique = true
			case "optional":
				f.Optional = true
			}
		case t.Kind == IDENT && t.Lexeme == "default" && next.Kind == LPAREN:
			p.advance()
			p.advance()
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			mark("default")
			f.Default = v
		case t.Kind == ATTR:
			a, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			mark("@" + a.Name)
			f.Attrs = append(f.Attrs, a)
		case t.Kind == COMMA || t.Kind == RBRACE:
			return f, nil
		case isName(t) && next.Kind == COLON:
			// начало следующего поля
			return f, nil
		default:
			return nil, p.fail(t, "field modifier, ',' or '}'")
		}
	}
}

func isModifier(s string) bool {
	_, ok := fieldModifiers[s]
	return ok
}

func (p *parser) parseAttribute() (*Attribute, error) {
	open := p.advance()
	a := &Attribute{Name: open.Lexeme, Pos: open.Pos}
	if p.peek().Kind == RPAREN {
		p.advance()
		return a, nil
	}
	for {
		prop, err := p.parseProp()
		if err != nil {
			return nil, err
		}
		a.Args = append(a.Args, prop)
		t := p.peek()
		if t.Kind == COMMA {
			p.advance()
			continue
		}
		if t.Kind == RPAREN {
			p.advance()
			return a, nil
		}
		return nil, p.fail(t, "',' or ')'")
	}
}

// ----- enum -----

func (p *parser) parseEnum() (*EnumDecl, error) {
	kw := p.advance()
	name, err := p.expectName("enum name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	e := &EnumDecl{Name: name.Lexeme, Pos: kw.Pos, File: p.file}
	for {
		t := p.peek()
		switch {
		case t.Kind == RBRACE:
			p.advance()
			return e, nil
		case t.Kind == COMMA:
			p.advance()
		case isName(t):
			p.advance()
			e.Values = append(e.Values, &EnumValue{Name: t.Lexeme, Pos: t.Pos})
		default:
			return nil, p.fail(t, "enum value or '}'")
		}
	}
}

// ----- workflow -----

func (p *parser) parseWorkflow() (*WorkflowDecl, error) {
	kw := p.advance()
	name, err := p.expectName("workflow name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	w := &WorkflowDecl{Name: name.Lexeme, Pos: kw.Pos, File: p.file}
	for {
		t := p.peek()
		switch {
		case t.Kind == RBRACE:
			p.advance()
			return w, nil
		case t.Kind == COMMA:
			p.advance()
		case t.Kind == IDENT && t.Lexeme == "step" && isName(p.peekAt(1)) && p.peekAt(2).Kind == LBRACE:
			p.advance()
			action := p.advance()
			inputs, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			w.Steps = append(w.Steps, &StepDecl{Action: action.Lexeme, Pos: t.Pos, Inputs: inputs})
		default:
			prop, err := p.parseProp()
			if err != nil {
				return nil, err
			}
			w.Props = append(w.Props, prop)
		}
	}
}

// ----- общие конструкции -----

// parseBody: "{" (prop ","?)* "}"
func (p *parser) parseBody() ([]*Property, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	var props []*Property
	for {
		t := p.peek()
		switch t.Kind {
		case RBRACE:
			p.advance()
			return props, nil
		case COMMA:
			p.advance()
		default:
			prop, err := p.parseProp()
			if err != nil {
				return nil, err
			}
			props = append(props, prop)
		}
	}
}

func (p *parser) parseProp() (*Property, error) {
	key, err := p.expectName("property name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Property{Key: key.Lexeme, Pos: key.Pos, Value: v}, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.peek()
	switch t.Kind {
	case STRING:
		p.advance()
		return &StringLit{Value: t.Lexeme, Pos: t.Pos}, nil
	case NUMBER:
		p.advance()
		return &NumberLit{Raw: t.Lexeme, Pos: t.Pos}, nil
	case MINUS:
		p.advance()
		n, err := p.expect(NUMBER)
		if err != nil {
			return nil, err
		}
		return &NumberLit{Raw: "-" + n.Lexeme, Pos: t.Pos}, nil
	case BOOL:
		p.advance()
		return &BoolLit{Value: t.Lexeme == "true", Pos: t.Pos}, nil
	case LBRACKET:
		return p.parseArray()
	case LBRACE:
		props, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		return &ObjectLit{Props: props, Pos: t.Pos}, nil
	case IDENT, KEYWORD:
		if p.peekAt(1).Kind == LPAREN {
			return p.parseCall()
		}
		p.advance()
		id := &Ident{Path: []string{t.Lexeme}, Pos: t.Pos}
		for p.peek().Kind == DOT {
			p.advance()
			seg, err := p.expectName("name after '.'")
			if err != nil {
				return nil, err
			}
			id.Path = append(id.Path, seg.Lexeme)
		}
		return id, nil
	}
	return nil, p.fail(t, "value")
}

func (p *parser) parseArray() (*ArrayLit, error) {
	open := p.advance()
	arr := &ArrayLit{Pos: open.Pos}
	for {
		if p.peek().Kind == RBRACKET {
			p.advance()
			return arr, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, v)
		t := p.peek()
		if t.Kind == COMMA {
			p.advance()
			continue
		}
		if t.Kind != RBRACKET {
			return nil, p.fail(t, "',' or ']'")
		}
	}
}

// parseCall: env(VAR) или fn(args...)
func (p *parser) parseCall() (Value, error) {
	name := p.advance()
	p.advance() // (
	if name.Lexeme == "env" {
		v, err := p.expectName("environment variable name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &EnvRef{Var: v.Lexeme, Pos: name.Pos}, nil
	}
	c := &Call{Name: name.Lexeme, Pos: name.Pos}
	for {
		if p.peek().Kind == RPAREN {
			p.advance()
			return c, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, v)
		t := p.peek()
		if t.Kind == COMMA {
			p.advance()
			continue
		}
		if t.Kind != RPAREN {
			return nil, p.fail(t, "',' or ')'")
		}
	}
}

// Merge склеивает несколько файлов в один, сохраняя порядок объявлений.
func Merge(files ...*File) *File {
	out := &File{}
	var paths []string
	for _, f := range files {
		if f == nil {
			continue
		}
		if f.Path != "" {
			paths = append(paths, f.Path)
		}
		out.Decls = append(out.Decls, f.Decls...)
	}
	out.Path = strings.Join(paths, ",")
	return out
}

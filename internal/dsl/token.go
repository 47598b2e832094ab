package dsl

import "fmt"

// TokenKind: категория токена
type TokenKind int

const (
	EOF TokenKind = iota

	KEYWORD // entity, page, view, workflow, enum, config
	IDENT
	STRING
	NUMBER
	BOOL
	ATTR // "@name(" — имя атрибута лежит в Lexeme

	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	COLON    // :
	COMMA    // ,
	DOT      // .

	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /
)

var kindNames = [...]string{
	EOF:      "EOF",
	KEYWORD:  "KEYWORD",
	IDENT:    "IDENT",
	STRING:   "STRING",
	NUMBER:   "NUMBER",
	BOOL:     "BOOL",
	ATTR:     "ATTR",
	LBRACE:   "'{'",
	RBRACE:   "'}'",
	LPAREN:   "'('",
	RPAREN:   "')'",
	LBRACKET: "'['",
	RBRACKET: "']'",
	COLON:    "':'",
	COMMA:    "','",
	DOT:      "'.'",
	PLUS:     "'+'",
	MINUS:    "'-'",
	STAR:     "'*'",
	SLASH:    "'/'",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// блочные ключевые слова верхнего уровня
var keywords = map[string]struct{}{
	"entity":   {},
	"page":     {},
	"view":     {},
	"workflow": {},
	"enum":     {},
	"config":   {},
}

// Pos — позиция в исходнике: строка и колонка с 1, смещение в байтах с 0
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token: одна лексема
type Token struct {
	Kind   TokenKind
	Lexeme string // для STRING — уже без кавычек и с раскрытыми escape
	Pos    Pos
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case STRING:
		return fmt.Sprintf("string %q", t.Lexeme)
	case ATTR:
		return fmt.Sprintf("'@%s('", t.Lexeme)
	case KEYWORD:
		return fmt.Sprintf("keyword %q", t.Lexeme)
	case IDENT:
		return fmt.Sprintf("identifier %q", t.Lexeme)
	case NUMBER, BOOL:
		return fmt.Sprintf("%s %s", t.Kind, t.Lexeme)
	default:
		return t.Kind.String()
	}
}

// TokenStream: конечная последовательность токенов, которую можно пройти заново с начала.
type TokenStream struct {
	tokens []Token
	pos    int
}

func NewTokenStream(tokens []Token) *TokenStream {
	return &TokenStream{tokens: tokens}
}

// Next отдаёт следующий токен; после EOF продолжает отдавать EOF.
func (s *TokenStream) Next() Token {
	if s.pos >= len(s.tokens) {
		if len(s.tokens) > 0 {
			return s.tokens[len(s.tokens)-1]
		}
		return Token{Kind: EOF}
	}
	t := s.tokens[s.pos]
	s.pos++
	return t
}

// Reset возвращает поток в начало.
func (s *TokenStream) Reset() { s.pos = 0 }

func (s *TokenStream) Len() int { return len(s.tokens) }

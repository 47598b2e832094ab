package dsl

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer держит состояние одного прохода по src.
type lexer struct {
	src    string
	off    int // байтовое смещение следующей руны
	line   int
	col    int
	tokens []Token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) pos() Pos { return Pos{Line: l.line, Column: l.col, Offset: l.off} }

func (l *lexer) peek() rune {
	if l.off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off:])
	return r
}

func (l *lexer) peek2() rune {
	if l.off >= len(l.src) {
		return 0
	}
	_, w := utf8.DecodeRuneInString(l.src[l.off:])
	if l.off+w >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off+w:])
	return r
}

func (l *lexer) advance() rune {
	if l.off >= len(l.src) {
		return 0
	}
	r, w := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) emit(kind TokenKind, lexeme string, at Pos) {
	l.tokens = append(l.tokens, Token{Kind: kind, Lexeme: lexeme, Pos: at})
}

// skipTrivia пропускает пробелы и оба вида комментариев.
func (l *lexer) skipTrivia() error {
	for l.off < len(l.src) {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peek2() == '/':
			for l.off < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peek2() == '*':
			start := l.pos()
			l.advance()
			l.advance()
			closed := false
			for l.off < len(l.src) {
				if l.peek() == '*' && l.peek2() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return &LexError{Pos: start, Char: '/', Msg: "unterminated block comment"}
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func (l *lexer) scanIdent() string {
	start := l.off
	for l.off < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	return l.src[start:l.off]
}

func (l *lexer) scanNumber() string {
	start := l.off
	for l.off < len(l.src) && unicode.IsDigit(l.peek()) {
		l.advance()
	}
	// дробная часть только если после точки цифра: "1.field" не число
	if l.peek() == '.' && unicode.IsDigit(l.peek2()) {
		l.advance()
		for l.off < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	return l.src[start:l.off]
}

func (l *lexer) scanString() (string, error) {
	start := l.pos()
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.off >= len(l.src) {
			return "", &LexError{Pos: start, Char: quote, Msg: "unterminated string literal"}
		}
		r := l.peek()
		if r == '\n' {
			return "", &LexError{Pos: start, Char: quote, Msg: "unterminated string literal"}
		}
		if r == quote {
			l.advance()
			return sb.String(), nil
		}
		if r == '\\' {
			escPos := l.pos()
			l.advance()
			next := l.advance()
			switch next {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"', '\'', '\\':
				sb.WriteRune(next)
			default:
				return "", &LexError{Pos: escPos, Char: next, Msg: "unknown escape sequence \\" + string(next)}
			}
			continue
		}
		sb.WriteRune(l.advance())
	}
}

func (l *lexer) run() error {
	for {
		if err := l.skipTrivia(); err != nil {
			return err
		}
		at := l.pos()
		if l.off >= len(l.src) {
			l.emit(EOF, "", at)
			return nil
		}
		r := l.peek()
		switch {
		case isIdentStart(r):
			word := l.scanIdent()
			switch {
			case word == "true" || word == "false":
				l.emit(BOOL, word, at)
			default:
				if _, ok := keywords[word]; ok {
					l.emit(KEYWORD, word, at)
				} else {
					l.emit(IDENT, word, at)
				}
			}
			continue
		case unicode.IsDigit(r):
			l.emit(NUMBER, l.scanNumber(), at)
			continue
		case r == '"' || r == '\'':
			s, err := l.scanString()
			if err != nil {
				return err
			}
			l.emit(STRING, s, at)
			continue
		case r == '@':
			l.advance()
			if !isIdentStart(l.peek()) {
				return &LexError{Pos: l.pos(), Char: l.peek(), Msg: "expected attribute name after '@'"}
			}
			name := l.scanIdent()
			if l.peek() != '(' {
				return &LexError{Pos: l.pos(), Char: l.peek(), Msg: "expected '(' after @" + name}
			}
			l.advance()
			l.emit(ATTR, name, at)
			continue
		}

		l.advance()
		switch r {
		case '{':
			l.emit(LBRACE, "{", at)
		case '}':
			l.emit(RBRACE, "}", at)
		case '(':
			l.emit(LPAREN, "(", at)
		case ')':
			l.emit(RPAREN, ")", at)
		case '[':
			l.emit(LBRACKET, "[", at)
		case ']':
			l.emit(RBRACKET, "]", at)
		case ':':
			l.emit(COLON, ":", at)
		case ',':
			l.emit(COMMA, ",", at)
		case '.':
			l.emit(DOT, ".", at)
		case '+':
			l.emit(PLUS, "+", at)
		case '-':
			l.emit(MINUS, "-", at)
		case '*':
			l.emit(STAR, "*", at)
		case '/':
			l.emit(SLASH, "/", at)
		default:
			return &LexError{Pos: at, Char: r}
		}
	}
}

// Lex разбивает src на токены, последний всегда EOF.
// При ошибке токены не возвращаются вовсе.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

package dsl

import "fmt"

// LexError — неразбираемый символ. Лексер не восстанавливается: одна ошибка на вызов.
type LexError struct {
	File string
	Pos  Pos
	Char rune
	Msg  string // уточнение: "unterminated string" и т.п.
}

func (e *LexError) Error() string {
	loc := e.Pos.String()
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: lex error: %s", loc, e.Msg)
	}
	return fmt.Sprintf("%s: lex error: unexpected character %q", loc, e.Char)
}

// SyntaxError: первая структурная ошибка; дерево в этом случае не возвращается.
type SyntaxError struct {
	File     string
	Pos      Pos
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	loc := e.Pos.String()
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: syntax error: expected %s, found %s", loc, e.Expected, e.Found)
}

package ir

import (
	"strconv"
	"strings"
	"unicode"
)

// words режет идентификатор на слова: "UserProfile" -> [User Profile], "HTTPServer" -> [HTTP Server].
func words(s string) []string {
	rs := []rune(s)
	var out []string
	start := -1
	flush := func(i int) {
		if start >= 0 && i > start {
			out = append(out, string(rs[start:i]))
		}
		start = -1
	}
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := rs[i-1]
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush(i)
			start = i
		case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
			flush(i)
			start = i
		}
	}
	flush(len(rs))
	return out
}

// Kebab: "UserProfile" -> "user-profile"
func Kebab(s string) string {
	w := words(s)
	for i := range w {
		w[i] = strings.ToLower(w[i])
	}
	return strings.Join(w, "-")
}

// Snake: "createdAt" -> "created_at"
func Snake(s string) string {
	w := words(s)
	for i := range w {
		w[i] = strings.ToLower(w[i])
	}
	return strings.Join(w, "_")
}

// Pascal: "full_name" -> "FullName"
func Pascal(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		rs := []rune(w)
		b.WriteRune(unicode.ToUpper(rs[0]))
		b.WriteString(string(rs[1:]))
	}
	return b.String()
}

// Camel: "FullName" -> "fullName"
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return p
	}
	rs := []rune(p)
	// ведущая аббревиатура целиком: "HTTPServer" -> "httpServer"
	i := 0
	for i < len(rs) && unicode.IsUpper(rs[i]) {
		i++
	}
	switch {
	case i == len(rs):
		return strings.ToLower(p)
	case i > 1:
		i--
	}
	return strings.ToLower(string(rs[:i])) + string(rs[i:])
}

// DefaultRoute: маршрут страницы по умолчанию.
func DefaultRoute(page string) string { return "/" + Kebab(page) }

// ResolverName: стабильное имя функции-резолвера для (владелец, поле).
func ResolverName(owner, field string) string {
	return "resolve" + Pascal(owner) + Pascal(field)
}

// TypeName: имя сгенерированного типа для сущности, enum или представления.
func TypeName(name string) string { return Pascal(name) }

// EnumConstName: "OrderStatus", "IN_PROGRESS" -> "OrderStatusInProgress".
func EnumConstName(enum, value string) string {
	return Pascal(enum) + Pascal(strings.ToLower(value))
}

// HandlerName: обработчик workflow в сгенерированном коде.
func HandlerName(workflow string) string { return "handle" + Pascal(workflow) }

// StepRegion: id пользовательской области шага workflow.
func StepRegion(workflow string, step int) string {
	return Camel(workflow) + ".step" + strconv.Itoa(step)
}

// RuntimeNames: имена, которые генератор объявляет сам в пакете приложения.
var RuntimeNames = []string{"Event", "WorkflowHandler", "Workflows"}

// RelationName: каноническое имя неименованной связи, стороны упорядочены.
func RelationName(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "To" + b
}

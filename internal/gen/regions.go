package gen

import (
	"fmt"
	"strings"
)

// Маркеры пользовательских областей. Строка маркера может начинаться
// с любого комментария языка: "// ", "# ", "-- ".
const (
	MarkerBegin    = "stalmer:custom:begin"
	MarkerEnd      = "stalmer:custom:end"
	MarkerOrphaned = "stalmer:custom:orphaned"
)

// Region рендерит пустую область с телом по умолчанию.
// body без завершающего перевода строки допустим.
func Region(comment, id, body string) string {
	var b strings.Builder
	b.WriteString(comment + " " + MarkerBegin + " " + id + "\n")
	if body != "" {
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString(comment + " " + MarkerEnd + " " + id + "\n")
	return b.String()
}

type region struct {
	id     string
	prefix string
	begin  string
	body   string
	end    string
}

// MergeRegions переносит тела областей из existing в fresh.
// Области, которых больше нет в fresh, дописываются в конец под маркером orphaned.
// Разметка fresh проверяется всегда, в том числе при первой генерации.
func MergeRegions(fresh, existing []byte) ([]byte, error) {
	if _, err := parseRegions(string(fresh)); err != nil {
		return nil, fmt.Errorf("generated output: %w", err)
	}
	if existing == nil {
		return fresh, nil
	}
	old, err := parseRegions(string(existing))
	if err != nil {
		return nil, fmt.Errorf("existing file: %w", err)
	}
	if len(old) == 0 {
		return fresh, nil
	}
	byID := make(map[string]region, len(old))
	for _, r := range old {
		byID[r.id] = r
	}

	var out strings.Builder
	used := map[string]bool{}
	lines := splitLines(string(fresh))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		_, id, ok := markerID(line, MarkerBegin)
		if !ok {
			out.WriteString(line)
			continue
		}
		var body strings.Builder
		j := i + 1
		for ; j < len(lines); j++ {
			if _, endID, ok := markerID(lines[j], MarkerEnd); ok && endID == id {
				break
			}
			body.WriteString(lines[j])
		}
		used[id] = true
		out.WriteString(line)
		if prev, ok := byID[id]; ok {
			out.WriteString(prev.body)
		} else {
			out.WriteString(body.String())
		}
		out.WriteString(lines[j])
		i = j
	}

	for _, r := range old {
		if used[r.id] {
			continue
		}
		if s := out.String(); s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
		out.WriteString(r.prefix + MarkerOrphaned + " " + r.id + "\n")
		out.WriteString(r.begin)
		out.WriteString(r.body)
		out.WriteString(r.end)
		if !strings.HasSuffix(r.end, "\n") {
			out.WriteByte('\n')
		}
	}
	return []byte(out.String()), nil
}

func parseRegions(s string) ([]region, error) {
	var out []region
	seen := map[string]bool{}
	lines := splitLines(s)
	for i := 0; i < len(lines); i++ {
		prefix, id, ok := markerID(lines[i], MarkerBegin)
		if !ok {
			if _, stray, ok := markerID(lines[i], MarkerEnd); ok {
				return nil, fmt.Errorf("line %d: end of custom region %q without begin", i+1, stray)
			}
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("line %d: custom region %q declared twice", i+1, id)
		}
		seen[id] = true
		r := region{id: id, prefix: prefix, begin: lines[i]}
		var body strings.Builder
		j := i + 1
		for ; j < len(lines); j++ {
			if _, nested, ok := markerID(lines[j], MarkerBegin); ok {
				return nil, fmt.Errorf("line %d: custom region %q opened inside %q", j+1, nested, id)
			}
			if _, endID, ok := markerID(lines[j], MarkerEnd); ok {
				if endID != id {
					return nil, fmt.Errorf("line %d: custom region %q closed by %q", j+1, id, endID)
				}
				break
			}
			body.WriteString(lines[j])
		}
		if j == len(lines) {
			return nil, fmt.Errorf("line %d: custom region %q is not terminated", i+1, id)
		}
		r.body = body.String()
		r.end = lines[j]
		out = append(out, r)
		i = j
	}
	return out, nil
}

// markerID ищет маркер в строке и возвращает текст до него и идентификатор после.
func markerID(line, marker string) (prefix, id string, ok bool) {
	i := strings.Index(line, marker+" ")
	if i < 0 {
		return "", "", false
	}
	fields := strings.Fields(line[i+len(marker):])
	if len(fields) == 0 {
		return "", "", false
	}
	return line[:i], fields[0], true
}

// splitLines режет текст на строки, сохраняя "\n".
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

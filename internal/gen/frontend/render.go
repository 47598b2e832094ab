package frontend

import (
	"encoding/json"
	"fmt"
	"strings"

	"stalmer/internal/gen"
	"stalmer/internal/gen/backend"
	"stalmer/internal/ir"
)

const header = "// Code generated by stalmer. DO NOT EDIT outside custom regions.\n\n"

func renderRoutes(s *backend.APISchema) []byte {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("import type { ComponentType } from \"react\";\n")
	for _, p := range s.Pages {
		fmt.Fprintf(&b, "import %s from \"./pages/%s\";\n", p.Name, p.Name)
	}
	b.WriteString(`
export interface RouteDef {
  path: string;
  title: string;
  permissions: string[];
  component: ComponentType;
}

export const routes: RouteDef[] = [
`)
	for _, p := range s.Pages {
		fmt.Fprintf(&b, "  { path: %s, title: %s, permissions: %s, component: %s },\n",
			tsString(p.Route), tsString(p.Title), tsStrings(p.Permissions), p.Name)
	}
	b.WriteString(`];

// canAccess: a route without permissions is public.
export function canAccess(route: RouteDef, roles: string[]): boolean {
  return route.permissions.length === 0 || route.permissions.some((p) => roles.includes(p));
}
`)
	return []byte(b.String())
}

func renderClient(s *backend.APISchema) []byte {
	var b strings.Builder
	b.WriteString(header)
	for _, r := range s.Resources {
		fmt.Fprintf(&b, "export interface %s {\n", ir.Pascal(r.Name))
		for _, f := range r.Fields {
			opt := ""
			if f.Optional || f.ReadOnly || f.WriteOnly {
				opt = "?"
			}
			fmt.Fprintf(&b, "  %s%s: %s;\n", f.Name, opt, tsType(f))
		}
		b.WriteString("}\n\n")
	}
	for _, v := range s.Views {
		fmt.Fprintf(&b, "export interface %s {\n", ir.Pascal(v.Name))
		for _, f := range v.Fields {
			fmt.Fprintf(&b, "  %s: %s;\n", f.Name, tsType(f))
		}
		b.WriteString("}\n\n")
	}

	b.WriteString(`export const BASE_URL = "";

async function request<T>(method: string, path: string, body?: unknown): Promise<T> {
  const res = await fetch(BASE_URL + path, {
    method,
    headers: body === undefined ? undefined : { "Content-Type": "application/json" },
    body: body === undefined ? undefined : JSON.stringify(body),
    credentials: "include",
  });
  if (!res.ok) {
    throw new Error(method + " " + path + ": " + res.status);
  }
  return res.status === 204 ? (undefined as T) : ((await res.json()) as T);
}

export const api = {
`)
	for _, r := range s.Resources {
		typ := ir.Pascal(r.Name)
		for _, op := range r.Operations {
			fmt.Fprintf(&b, "  %s: %s,\n", op.ID, clientCall(typ, op))
		}
	}
	for _, v := range s.Views {
		fmt.Fprintf(&b, "  view%s: () => request<%s[]>(\"GET\", %s),\n", ir.Pascal(v.Name), ir.Pascal(v.Name), tsString(v.Path))
	}
	b.WriteString("};\n")
	return []byte(b.String())
}

// clientCall: "/api/posts/{postId}" -> (postId: string) => request<Post>("GET", `/api/posts/${postId}`)
func clientCall(typ string, op backend.Operation) string {
	var params []string
	path := op.Path
	if i := strings.Index(path, "{"); i >= 0 {
		j := strings.Index(path, "}")
		param := path[i+1 : j]
		params = append(params, param+": string")
		path = path[:i] + "${" + param + "}" + path[j+1:]
	}
	var ret, body string
	switch op.Method {
	case "GET":
		ret = typ
		if len(params) == 0 {
			ret = typ + "[]"
		}
	case "POST", "PUT":
		params = append(params, "data: Partial<"+typ+">")
		ret, body = typ, ", data"
	case "DELETE":
		ret = "void"
	}
	return fmt.Sprintf("(%s) => request<%s>(%q, `%s`%s)", strings.Join(params, ", "), ret, op.Method, path, body)
}

func renderPage(s *backend.APISchema, p backend.PageAccess) []byte {
	var b strings.Builder
	b.WriteString(header)
	typ := ir.Pascal(p.Entity)

	switch p.Type {
	case ir.PageCustom:
		fmt.Fprintf(&b, "import %s from \"../components/%s\";\n\n", p.Component, p.Component)
		fmt.Fprintf(&b, "export default function %sPage() {\n", p.Name)
		b.WriteString(gen.Region("  //", p.Name, ""))
		fmt.Fprintf(&b, "  return <%s />;\n}\n", p.Component)
		return []byte(b.String())

	case ir.PageTable:
		b.WriteString("import { useEffect, useState } from \"react\";\n")
		fmt.Fprintf(&b, "import { api, type %s } from \"../api/client\";\n\n", typ)
		fmt.Fprintf(&b, "export default function %sPage() {\n", p.Name)
		fmt.Fprintf(&b, "  const [rows, setRows] = useState<%s[]>([]);\n", typ)
		fmt.Fprintf(&b, "  useEffect(() => {\n    api.list%s().then(setRows);\n  }, []);\n", typ)
		b.WriteString(gen.Region("  //", p.Name, ""))
		fmt.Fprintf(&b, "  return (\n    <section>\n      <h1>%s</h1>\n      <table>\n        <thead>\n          <tr>\n", jsxText(p.Title))
		for _, c := range p.Columns {
			fmt.Fprintf(&b, "            <th>%s</th>\n", c)
		}
		b.WriteString("          </tr>\n        </thead>\n        <tbody>\n          {rows.map((row, i) => (\n            <tr key={i}>\n")
		for _, c := range p.Columns {
			fmt.Fprintf(&b, "              <td>{String(row.%s ?? \"\")}</td>\n", c)
		}
		b.WriteString("            </tr>\n          ))}\n        </tbody>\n      </table>\n    </section>\n  );\n}\n")

	case ir.PageForm:
		b.WriteString("import { useState } from \"react\";\n")
		fmt.Fprintf(&b, "import { api, type %s } from \"../api/client\";\n\n", typ)
		fmt.Fprintf(&b, "export default function %sPage() {\n", p.Name)
		fmt.Fprintf(&b, "  const [data, setData] = useState<Partial<%s>>({});\n", typ)
		b.WriteString(gen.Region("  //", p.Name, ""))
		fmt.Fprintf(&b, "  return (\n    <form\n      onSubmit={(e) => {\n        e.preventDefault();\n        api.create%s(data);\n      }}\n    >\n      <h1>%s</h1>\n", typ, jsxText(p.Title))
		for _, f := range p.Fields {
			fmt.Fprintf(&b, "      <label>\n        %s\n        <input type=%q name=%q onChange={(e) => setData({ ...data, %s: e.target.value })} />\n      </label>\n",
				f, inputType(s, p.Entity, f), f, f)
		}
		b.WriteString("      <button type=\"submit\">Save</button>\n    </form>\n  );\n}\n")

	default: // details
		b.WriteString("import { useEffect, useState } from \"react\";\n")
		fmt.Fprintf(&b, "import { api, type %s } from \"../api/client\";\n\n", typ)
		fmt.Fprintf(&b, "export default function %sPage({ id }: { id: string }) {\n", p.Name)
		fmt.Fprintf(&b, "  const [record, setRecord] = useState<%s | null>(null);\n", typ)
		fmt.Fprintf(&b, "  useEffect(() => {\n    api.get%s(id).then(setRecord);\n  }, [id]);\n", typ)
		b.WriteString(gen.Region("  //", p.Name, ""))
		fmt.Fprintf(&b, "  if (!record) {\n    return null;\n  }\n  return (\n    <section>\n      <h1>%s</h1>\n      <dl>\n", jsxText(p.Title))
		for _, f := range resourceFields(s, p.Entity) {
			if f.WriteOnly {
				continue
			}
			fmt.Fprintf(&b, "        <dt>%s</dt>\n        <dd>{String(record.%s ?? \"\")}</dd>\n", f.Name, f.Name)
		}
		b.WriteString("      </dl>\n    </section>\n  );\n}\n")
	}
	return []byte(b.String())
}

func hasOperation(s *backend.APISchema, entity, id string) bool {
	for _, r := range s.Resources {
		if r.Name != entity {
			continue
		}
		for _, op := range r.Operations {
			if op.ID == id {
				return true
			}
		}
	}
	return false
}

func resourceFields(s *backend.APISchema, entity string) []backend.ResourceField {
	for _, r := range s.Resources {
		if r.Name == entity {
			return r.Fields
		}
	}
	return nil
}

func inputType(s *backend.APISchema, entity, field string) string {
	for _, f := range resourceFields(s, entity) {
		if f.Name != field {
			continue
		}
		switch f.Type {
		case ir.TypeInt, ir.TypeDecimal:
			return "number"
		case ir.TypeBoolean:
			return "checkbox"
		case ir.TypeDateTime:
			return "datetime-local"
		case ir.TypePassword:
			return "password"
		}
	}
	return "text"
}

func tsType(f backend.ResourceField) string {
	var t string
	switch f.Type {
	case ir.TypeInt, ir.TypeDecimal:
		t = "number"
	case ir.TypeBoolean:
		t = "boolean"
	case ir.TypeJSON, ir.TypeRelation:
		t = "unknown"
	default:
		t = "string"
	}
	if f.List {
		t += "[]"
	}
	return t
}

// tsString: JSON-строка — корректный литерал TS.
func tsString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}

var jsxEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"{", "&#123;",
	"}", "&#125;",
	`"`, "&quot;",
	"'", "&apos;",
)

// jsxText экранирует текст, выводимый между тегами JSX.
func jsxText(s string) string { return jsxEscaper.Replace(s) }

func tsStrings(list []string) string {
	q := make([]string, len(list))
	for i, s := range list {
		q[i] = tsString(s)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"strings"

	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

const (
	generatedHeader = "Code generated by stalmer. DO NOT EDIT outside custom regions."
	goPackage       = "app"
)

// goFile копит тело файла и набор импортов; bytes() прогоняет результат через gofmt.
type goFile struct {
	body    bytes.Buffer
	imports map[string]bool
}

func newGoFile() *goFile { return &goFile{imports: map[string]bool{}} }

func (g *goFile) printf(format string, args ...any) { fmt.Fprintf(&g.body, format, args...) }

func (g *goFile) use(pkg string) { g.imports[pkg] = true }

func (g *goFile) bytes() ([]byte, error) {
	var out bytes.Buffer
	fmt.Fprintf(&out, "// %s\n\npackage %s\n\n", generatedHeader, goPackage)
	if len(g.imports) > 0 {
		pkgs := make([]string, 0, len(g.imports))
		for p := range g.imports {
			pkgs = append(pkgs, p)
		}
		sort.Strings(pkgs)
		out.WriteString("import (\n")
		for _, p := range pkgs {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		out.WriteString(")\n\n")
	}
	out.Write(g.body.Bytes())
	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated go: %w", err)
	}
	return src, nil
}

// goName: "author_id" -> "AuthorID".
func goName(snake string) string {
	p := ir.Pascal(snake)
	if strings.HasSuffix(p, "Id") {
		p = strings.TrimSuffix(p, "Id") + "ID"
	}
	return p
}

func goField(field string) string { return goName(ir.Snake(field)) }

func goType(g *goFile, kind ir.TypeKind, enum string) string {
	switch kind {
	case ir.TypeInt:
		return "int64"
	case ir.TypeDecimal:
		return "float64"
	case ir.TypeBoolean:
		return "bool"
	case ir.TypeDateTime:
		g.use("time")
		return "time.Time"
	case ir.TypeJSON:
		g.use("encoding/json")
		return "json.RawMessage"
	case ir.TypeEnum:
		return ir.Pascal(enum)
	default:
		return "string"
	}
}

// renderModels: структуры записей, enum-типы и структуры представлений.
func renderModels(app *ir.Application, tables []*table) ([]byte, error) {
	g := newGoFile()

	for _, e := range app.Enums {
		name := ir.TypeName(e.Name)
		g.printf("type %s string\n\nconst (\n", name)
		for _, v := range e.Values {
			g.printf("\t%s %s = %q\n", ir.EnumConstName(e.Name, v), name, v)
		}
		g.printf(")\n\n")
	}

	for _, t := range tables {
		if t.Entity == "" {
			continue
		}
		e := app.Entity(t.Entity)
		g.printf("// %s is a stored %s record.\n", ir.Pascal(e.Name), e.Name)
		g.printf("type %s struct {\n", ir.Pascal(e.Name))
		for _, c := range t.Columns {
			g.printf("\t%s %s `json:%q db:%q`\n", goName(c.Name), goType(g, c.Kind, c.Enum), ir.Camel(c.Name), c.Name)
		}
		for _, f := range e.Fields {
			if f.Virtual == nil {
				continue
			}
			g.printf("\t%s %s `json:%q db:\"-\"`\n", goField(f.Name), goType(g, f.Type.Kind, f.Type.Ref), f.Name)
		}
		g.printf("}\n\n")
	}

	for _, v := range app.Views {
		src := app.Entity(v.Source)
		g.printf("// %s is a read model over %s.\n", ir.Pascal(v.Name), v.Source)
		g.printf("type %s struct {\n", ir.Pascal(v.Name))
		for _, f := range v.Fields {
			kind, enum := f.ResultType, ""
			if f.Ref != "" && src != nil {
				if sf := src.Field(f.Ref); sf != nil {
					kind, enum = sf.Type.Kind, sf.Type.Ref
				}
			}
			g.printf("\t%s %s `json:%q`\n", goField(f.Name), goType(g, kind, enum), f.Name)
		}
		g.printf("}\n\n")
	}
	return g.bytes()
}

// renderResolvers: по функции на каждое вычисляемое поле и каждое поле-выражение представления.
// Выражение перегенерируется; пользовательская область позволяет поправить значение перед возвратом.
func renderResolvers(app *ir.Application) ([]byte, error) {
	g := newGoFile()
	n := 0
	for _, e := range app.Entities {
		for _, f := range e.Fields {
			if f.Virtual == nil {
				continue
			}
			expr, err := goExpr(g, e, f.Virtual.Expr, f.Type.Kind)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
			}
			writeResolver(g, f.Virtual.Resolver, ir.Pascal(e.Name), goType(g, f.Type.Kind, f.Type.Ref),
				fmt.Sprintf("%s.%s = %s", e.Name, f.Name, f.Virtual.Source), expr)
			n++
		}
	}
	for _, v := range app.Views {
		src := app.Entity(v.Source)
		for _, f := range v.Fields {
			if f.Expr == nil {
				continue
			}
			expr, err := goExpr(g, src, f.Expr, f.ResultType)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", v.Name, f.Name, err)
			}
			writeResolver(g, f.Resolver, ir.Pascal(v.Source), goType(g, f.ResultType, ""),
				fmt.Sprintf("%s.%s = %s", v.Name, f.Name, f.Source), expr)
			n++
		}
	}
	if n == 0 {
		g.printf("// No computed fields are declared.\n")
	}
	return g.bytes()
}

func writeResolver(g *goFile, name, recv, typ, doc, expr string) {
	g.printf("// %s computes %s.\n", name, doc)
	g.printf("func %s(r *%s) (%s, error) {\n", name, recv, typ)
	g.printf("\tv := %s\n", expr)
	g.printf("%s", gen.Region("\t//", name, ""))
	g.printf("\treturn v, nil\n}\n\n")
}

// goExpr переводит выражение IR в Go над записью r.
func goExpr(g *goFile, owner *ir.Entity, e ir.Expr, want ir.TypeKind) (string, error) {
	s, kind, err := goExprNode(g, owner, e)
	if err != nil {
		return "", err
	}
	if _, ok := e.(*ir.Binary); ok {
		s = s[1 : len(s)-1]
	}
	switch {
	case want == ir.TypeDecimal && kind == ir.TypeInt:
		s = "float64(" + s + ")"
	case want == ir.TypeString || want == ir.TypeText:
		s = goString(g, e, s, kind)
	}
	return s, nil
}

func goExprNode(g *goFile, owner *ir.Entity, e ir.Expr) (string, ir.TypeKind, error) {
	switch n := e.(type) {
	case *ir.Literal:
		if n.Type == ir.TypeString {
			return strconv.Quote(n.Value), n.Type, nil
		}
		return n.Value, n.Type, nil
	case *ir.FieldRef:
		f := owner.Field(n.Name)
		if f == nil {
			return "", "", fmt.Errorf("unknown field %q", n.Name)
		}
		s := "r." + goField(n.Name)
		if f.Type.Kind == ir.TypeEnum {
			return s, ir.TypeEnum, nil
		}
		return s, f.Type.Kind, nil
	case *ir.Binary:
		l, lk, err := goExprNode(g, owner, n.Left)
		if err != nil {
			return "", "", err
		}
		r, rk, err := goExprNode(g, owner, n.Right)
		if err != nil {
			return "", "", err
		}
		switch {
		case n.Type == ir.TypeString || n.Type == ir.TypeText:
			l, r = goString(g, n.Left, l, lk), goString(g, n.Right, r, rk)
		case n.Type == ir.TypeDecimal:
			l, r = goFloat(n.Left, l, lk), goFloat(n.Right, r, rk)
		}
		return "(" + l + " " + n.Op + " " + r + ")", n.Type, nil
	}
	return "", "", fmt.Errorf("unsupported expression %T", e)
}

func goString(g *goFile, node ir.Expr, s string, kind ir.TypeKind) string {
	if lit, ok := node.(*ir.Literal); ok {
		return strconv.Quote(lit.Value)
	}
	switch kind {
	case ir.TypeEnum:
		return "string(" + s + ")"
	case ir.TypeDateTime:
		g.use("time")
		return s + ".Format(time.RFC3339)"
	case ir.TypeInt:
		g.use("strconv")
		return "strconv.FormatInt(" + s + ", 10)"
	case ir.TypeDecimal:
		g.use("strconv")
		return "strconv.FormatFloat(" + s + ", 'f', -1, 64)"
	}
	return s
}

func goFloat(node ir.Expr, s string, kind ir.TypeKind) string {
	if _, ok := node.(*ir.Literal); ok || kind != ir.TypeInt {
		return s
	}
	return "float64(" + s + ")"
}

// renderWorkflows: обработчик на каждый workflow, область на каждый шаг.
func renderWorkflows(app *ir.Application) ([]byte, error) {
	g := newGoFile()
	g.use("context")
	g.printf("// Event is a domain event delivered to workflows.\n")
	g.printf("type Event struct {\n\tName string\n\tPayload map[string]any\n}\n\n")
	g.printf("// WorkflowHandler binds a workflow to its trigger event.\n")
	g.printf("type WorkflowHandler struct {\n\tName string\n\tEvent string\n\tRun func(context.Context, Event) error\n}\n\n")

	g.printf("// Workflows lists handlers in declaration order.\n")
	g.printf("var Workflows = []WorkflowHandler{\n")
	for _, w := range app.Workflows {
		g.printf("\t{Name: %q, Event: %q, Run: %s},\n", w.Name, w.Trigger.Event, ir.HandlerName(w.Name))
	}
	g.printf("}\n\n")

	for _, w := range app.Workflows {
		g.printf("// %s runs workflow %s on %q.\n", ir.HandlerName(w.Name), w.Name, w.Trigger.Event)
		g.printf("func %s(ctx context.Context, ev Event) error {\n", ir.HandlerName(w.Name))
		for i, st := range w.Steps {
			g.printf("\t// step %d: %s\n\t{\n\t\tin := map[string]any{\n", i+1, st.Action)
			for _, in := range st.Inputs {
				v, err := goInput(g, in)
				if err != nil {
					return nil, fmt.Errorf("workflow %s step %d: %w", w.Name, i+1, err)
				}
				g.printf("\t\t\t%q: %s,\n", in.Key, v)
			}
			g.printf("\t\t}\n")
			g.printf("%s", gen.Region("\t\t//", ir.StepRegion(w.Name, i+1),
				fmt.Sprintf("\t\tif err := dispatch(ctx, %q, in); err != nil {\n\t\t\treturn err\n\t\t}", st.Action)))
			g.printf("\t}\n")
		}
		g.printf("\treturn nil\n}\n\n")
	}

	g.printf("// dispatch hands a step to its action implementation.\n")
	g.printf("func dispatch(ctx context.Context, action string, in map[string]any) error {\n")
	g.printf("%s", gen.Region("\t//", "dispatch", "\t_, _, _ = ctx, action, in"))
	g.printf("\treturn nil\n}\n\n")

	g.printf("func lookup(m map[string]any, path ...string) any {\n")
	g.printf("\tvar cur any = m\n\tfor _, p := range path {\n\t\tnext, ok := cur.(map[string]any)\n\t\tif !ok {\n\t\t\treturn nil\n\t\t}\n\t\tcur = next[p]\n\t}\n\treturn cur\n}\n")
	return g.bytes()
}

func goInput(g *goFile, in *ir.Input) (string, error) {
	switch in.Kind {
	case ir.InputEnv:
		g.use("os")
		return fmt.Sprintf("os.Getenv(%q)", in.Env), nil
	case ir.InputTrigger:
		args := []string{"ev.Payload"}
		for _, p := range in.Path {
			args = append(args, strconv.Quote(p))
		}
		return "lookup(" + strings.Join(args, ", ") + ")", nil
	default:
		return goLiteral(in.Value)
	}
}

func goLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "nil", nil
	case string:
		return strconv.Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return x.String(), nil
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			s, err := goLiteral(el)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[]any{" + strings.Join(parts, ", ") + "}", nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			s, err := goLiteral(x[k])
			if err != nil {
				return "", err
			}
			parts[i] = strconv.Quote(k) + ": " + s
		}
		return "map[string]any{" + strings.Join(parts, ", ") + "}", nil
	}
	return "", fmt.Errorf("unsupported literal %T", v)
}

// Package builder строит канонический IR из проверенного дерева.
// Build — чистая функция: без I/O, часов и зависимости от порядка обхода map.
package builder

import (
	"encoding/json"
	"strings"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
	"stalmer/internal/validate"
)

// DefaultAppName: имя приложения, если его нет ни в config, ни в Options.
const DefaultAppName = "app"

type Options struct {
	// DefaultName: имя приложения, если в config его нет (обычно имя каталога исходников).
	DefaultName string
}

type builder struct {
	c   *validate.Checked
	app *ir.Application
}

// Build собирает IR. Вход обязан пройти validate.Validate.
func Build(c *validate.Checked, opts Options) *ir.Application {
	b := &builder{
		c: c,
		app: &ir.Application{
			Entities:  make([]*ir.Entity, 0, len(c.Entities)),
			Enums:     make([]*ir.Enum, 0, len(c.Enums)),
			Pages:     make([]*ir.Page, 0, len(c.Pages)),
			Views:     make([]*ir.View, 0, len(c.Views)),
			Workflows: make([]*ir.Workflow, 0, len(c.Workflows)),
			Relations: []*ir.Relation{},
		},
	}
	b.buildName(opts)
	b.buildEnums()
	b.buildEntities()
	b.buildRelations()
	b.buildPages()
	b.buildViews()
	b.buildWorkflows()
	b.buildConfig()
	return b.app
}

func (b *builder) buildName(opts Options) {
	b.app.Name = DefaultAppName
	if opts.DefaultName != "" {
		b.app.Name = opts.DefaultName
	}
	if r := b.c.Root; r != nil {
		if p := dsl.Lookup(r.Props, "name"); p != nil {
			if name, ok := nameOf(p.Value); ok && name != "" {
				b.app.Name = name
			}
		}
	}
}

func (b *builder) buildEnums() {
	for _, e := range b.c.Enums {
		values := make([]string, len(e.Values))
		for i, v := range e.Values {
			values[i] = v.Name
		}
		b.app.Enums = append(b.app.Enums, &ir.Enum{Name: e.Name, Values: values})
	}
}

func (b *builder) buildEntities() {
	for _, d := range b.c.Entities {
		e := &ir.Entity{Name: d.Name, Fields: make([]*ir.Field, 0, len(d.Fields))}
		for _, fd := range d.Fields {
			f := b.buildField(d, fd)
			if f.PrimaryKey {
				e.PrimaryKey = f.Name
			}
			e.Fields = append(e.Fields, f)
		}
		b.app.Entities = append(b.app.Entities, e)
	}
}

func (b *builder) buildField(owner *dsl.EntityDecl, fd *dsl.FieldDecl) *ir.Field {
	ft, _ := b.c.FieldType(fd.Type)
	f := &ir.Field{
		Name:       fd.Name,
		Type:       ft,
		PrimaryKey: fd.PrimaryKey,
		Unique:     fd.Unique,
		Optional:   fd.Optional,
	}

	if src, ok := validate.VirtualSource(fd); ok {
		expr, _ := dsl.ParseExpr(src)
		kind := b.fieldKind(owner)
		result, _ := validate.ExprType(expr, kind)
		f.Virtual = &ir.Virtual{
			Source:     src,
			Expr:       convertExpr(expr, kind),
			ResultType: result,
			Resolver:   ir.ResolverName(owner.Name, fd.Name),
			DependsOn:  refNames(expr),
		}
		return f
	}

	if fd.Default != nil {
		f.Default = buildDefault(fd.Default)
	}

	if ft.Kind == ir.TypeRelation {
		f.Relation = &ir.RelationRef{
			Target:   ft.Ref,
			Name:     validate.RelationName(fd),
			OnDelete: ir.OnDeleteRestrict,
		}
		f.Relation.Named = f.Relation.Name != ""
		if od := validate.OnDelete(fd); od != "" {
			f.Relation.OnDelete = ir.OnDelete(od)
		}
	}
	return f
}

func buildDefault(v dsl.Value) *ir.Default {
	if call, ok := v.(*dsl.Call); ok {
		return &ir.Default{Kind: ir.DefaultFunction, Func: call.Name}
	}
	return &ir.Default{Kind: ir.DefaultLiteral, Value: literalValue(v)}
}

// literalValue переводит литерал DSL в значение, пригодное для JSON.
func literalValue(v dsl.Value) any {
	switch x := v.(type) {
	case *dsl.StringLit:
		return x.Value
	case *dsl.NumberLit:
		return json.Number(x.Raw)
	case *dsl.BoolLit:
		return x.Value
	case *dsl.Ident:
		return x.Name()
	case *dsl.EnvRef:
		return "env(" + x.Var + ")"
	case *dsl.ArrayLit:
		out := make([]any, len(x.Elems))
		for i, el := range x.Elems {
			out[i] = literalValue(el)
		}
		return out
	case *dsl.ObjectLit:
		out := make(map[string]any, len(x.Props))
		for _, p := range x.Props {
			out[p.Key] = literalValue(p.Value)
		}
		return out
	}
	return nil
}

// fieldKind: тип поля для вывода типов выражений.
func (b *builder) fieldKind(e *dsl.EntityDecl) func(string) (ir.TypeKind, bool) {
	return func(name string) (ir.TypeKind, bool) {
		for _, f := range e.Fields {
			if f.Name == name {
				ft, ok := b.c.FieldType(f.Type)
				return ft.Kind, ok
			}
		}
		return "", false
	}
}

func convertExpr(e dsl.Expr, kind func(string) (ir.TypeKind, bool)) ir.Expr {
	switch n := e.(type) {
	case *dsl.FieldRef:
		return &ir.FieldRef{Name: n.Name}
	case *dsl.StringLit:
		return &ir.Literal{Type: ir.TypeString, Value: n.Value}
	case *dsl.NumberLit:
		t := ir.TypeInt
		if strings.Contains(n.Raw, ".") {
			t = ir.TypeDecimal
		}
		return &ir.Literal{Type: t, Value: n.Raw}
	case *dsl.BinaryExpr:
		t, _ := validate.ExprType(n, kind)
		return &ir.Binary{
			Op:    n.Op,
			Left:  convertExpr(n.Left, kind),
			Right: convertExpr(n.Right, kind),
			Type:  t,
		}
	}
	return nil
}

func refNames(e dsl.Expr) []string {
	refs := dsl.FieldRefs(e)
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func nameOf(v dsl.Value) (string, bool) {
	switch x := v.(type) {
	case *dsl.Ident:
		return x.Name(), true
	case *dsl.StringLit:
		return x.Value, true
	}
	return "", false
}

// Package validate — семантическая проверка дерева разбора.
// Ошибки не прерывают проход: собираем все и отдаём пачкой.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
)

type Options struct {
	// Roles: дополнительные роли из справочников (reference/*.yaml).
	Roles []string
}

// Checked: дерево, прошедшее проверку, и таблицы символов для builder.
type Checked struct {
	File      *dsl.File
	Entities  []*dsl.EntityDecl
	Enums     []*dsl.EnumDecl
	Pages     []*dsl.PageDecl
	Views     []*dsl.ViewDecl
	Workflows []*dsl.WorkflowDecl

	Root         *dsl.ConfigDecl
	Auth         *dsl.ConfigDecl
	Integrations *dsl.ConfigDecl

	// Roles: замкнутый набор ролей, отсортирован.
	Roles []string

	entities map[string]*dsl.EntityDecl
	enums    map[string]*dsl.EnumDecl
}

func (c *Checked) Entity(name string) *dsl.EntityDecl { return c.entities[name] }
func (c *Checked) Enum(name string) *dsl.EnumDecl     { return c.enums[name] }

// FieldType резолвит ссылку на тип: встроенный, enum или сущность.
func (c *Checked) FieldType(t dsl.TypeRef) (ir.FieldType, bool) {
	if k, ok := ir.ScalarType(t.Name); ok {
		return ir.FieldType{Kind: k, List: t.List}, true
	}
	if _, ok := c.enums[t.Name]; ok {
		return ir.FieldType{Kind: ir.TypeEnum, Ref: t.Name, List: t.List}, true
	}
	if _, ok := c.entities[t.Name]; ok {
		return ir.FieldType{Kind: ir.TypeRelation, Ref: t.Name, List: t.List}, true
	}
	return ir.FieldType{}, false
}

// Validate проверяет дерево в два прохода: сначала собирает имена, потом резолвит ссылки.
func Validate(f *dsl.File, opts Options) (*Checked, error) {
	v := &validator{
		opts: opts,
		c: &Checked{
			File:     f,
			entities: map[string]*dsl.EntityDecl{},
			enums:    map[string]*dsl.EnumDecl{},
		},
	}
	v.collect()
	for _, e := range v.c.Entities {
		v.checkEntity(e)
	}
	for _, e := range v.c.Enums {
		v.checkEnum(e)
	}
	v.checkConfig()
	v.resolveRoles()
	v.checkPages()
	for _, vw := range v.c.Views {
		v.checkView(vw)
	}
	for _, w := range v.c.Workflows {
		v.checkWorkflow(w)
	}
	v.checkGeneratedNames()

	if len(v.errs) > 0 {
		v.errs.sort()
		return nil, v.errs
	}
	return v.c, nil
}

type validator struct {
	c    *Checked
	opts Options
	errs SemanticErrors
}

// site: блок, к которому относится ошибка.
type site struct {
	file, block, name string
}

func (v *validator) report(s site, pos dsl.Pos, code, format string, args ...any) {
	v.errs = append(v.errs, &SemanticError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		File:    s.file,
		Pos:     pos,
		Block:   s.block,
		Name:    s.name,
	})
}

// collect — первый проход: имена всех блоков, чтобы разрешить ссылки вперёд.
func (v *validator) collect() {
	pages := map[string]*dsl.PageDecl{}
	views := map[string]*dsl.ViewDecl{}
	workflows := map[string]*dsl.WorkflowDecl{}

	for _, d := range v.c.File.Decls {
		switch d := d.(type) {
		case *dsl.EntityDecl:
			s := site{d.File, "entity", d.Name}
			switch {
			case ir.IsBuiltin(d.Name):
				v.report(s, d.Pos, CodeReservedName, "entity name %q is a builtin type", d.Name)
			case v.c.entities[d.Name] != nil:
				v.report(s, d.Pos, CodeDuplicateName, "entity %q already declared at %s", d.Name, v.c.entities[d.Name].Pos)
			case v.c.enums[d.Name] != nil:
				v.report(s, d.Pos, CodeDuplicateType, "entity %q clashes with enum of the same name", d.Name)
			default:
				v.c.entities[d.Name] = d
				v.c.Entities = append(v.c.Entities, d)
			}
		case *dsl.EnumDecl:
			s := site{d.File, "enum", d.Name}
			switch {
			case ir.IsBuiltin(d.Name):
				v.report(s, d.Pos, CodeReservedName, "enum name %q is a builtin type", d.Name)
			case v.c.enums[d.Name] != nil:
				v.report(s, d.Pos, CodeDuplicateName, "enum %q already declared at %s", d.Name, v.c.enums[d.Name].Pos)
			case v.c.entities[d.Name] != nil:
				v.report(s, d.Pos, CodeDuplicateType, "enum %q clashes with entity of the same name", d.Name)
			default:
				v.c.enums[d.Name] = d
				v.c.Enums = append(v.c.Enums, d)
			}
		case *dsl.PageDecl:
			if prev := pages[d.Name]; prev != nil {
				v.report(site{d.File, "page", d.Name}, d.Pos, CodeDuplicateName, "page %q already declared at %s", d.Name, prev.Pos)
				continue
			}
			pages[d.Name] = d
			v.c.Pages = append(v.c.Pages, d)
		case *dsl.ViewDecl:
			if prev := views[d.Name]; prev != nil {
				v.report(site{d.File, "view", d.Name}, d.Pos, CodeDuplicateName, "view %q already declared at %s", d.Name, prev.Pos)
				continue
			}
			views[d.Name] = d
			v.c.Views = append(v.c.Views, d)
		case *dsl.WorkflowDecl:
			if prev := workflows[d.Name]; prev != nil {
				v.report(site{d.File, "workflow", d.Name}, d.Pos, CodeDuplicateName, "workflow %q already declared at %s", d.Name, prev.Pos)
				continue
			}
			workflows[d.Name] = d
			v.c.Workflows = append(v.c.Workflows, d)
		case *dsl.ConfigDecl:
			v.collectConfig(d)
		}
	}

	// view и сущность порождают одноимённые резолверы
	for _, vw := range v.c.Views {
		if e := v.c.entities[vw.Name]; e != nil {
			v.report(site{vw.File, "view", vw.Name}, vw.Pos, CodeDuplicateType, "view %q clashes with entity of the same name", vw.Name)
		}
	}
}

func (v *validator) collectConfig(d *dsl.ConfigDecl) {
	var slot **dsl.ConfigDecl
	switch d.Name {
	case "":
		slot = &v.c.Root
	case ir.BlockAuth:
		slot = &v.c.Auth
	case ir.BlockIntegrations:
		slot = &v.c.Integrations
	default:
		v.report(site{d.File, "config", d.Name}, d.Pos, CodeConfigBlock,
			"unknown config block %q (allowed: auth, integrations)", d.Name)
		return
	}
	if *slot != nil {
		label := "config"
		if d.Name != "" {
			label = "config " + d.Name
		}
		v.report(site{d.File, "config", d.Name}, d.Pos, CodeDuplicateConfig, "%s already declared at %s", label, (*slot).Pos)
		return
	}
	*slot = d
}

func (v *validator) checkEnum(e *dsl.EnumDecl) {
	s := site{e.File, "enum", e.Name}
	if len(e.Values) == 0 {
		v.report(s, e.Pos, CodeEmptyEnum, "enum %q has no values", e.Name)
	}
	seen := map[string]bool{}
	for _, val := range e.Values {
		if seen[val.Name] {
			v.report(s, val.Pos, CodeDuplicateValue, "enum %q repeats value %q", e.Name, val.Name)
			continue
		}
		seen[val.Name] = true
	}
}

// resolveRoles строит замкнутый набор ролей.
func (v *validator) resolveRoles() {
	set := map[string]bool{}
	for _, r := range ir.ReservedRoles {
		set[r] = true
	}
	for _, r := range v.opts.Roles {
		set[r] = true
	}
	addEnum := func(e *dsl.EnumDecl) {
		if e == nil {
			return
		}
		for _, val := range e.Values {
			set[val.Name] = true
		}
	}
	addEnum(v.c.enums[ir.RoleEnumName])

	if v.c.Auth != nil {
		if p := dsl.Lookup(v.c.Auth.Props, "userEntity"); p != nil {
			name, _ := nameOf(p.Value)
			if ent := v.c.entities[name]; ent != nil {
				for _, f := range ent.Fields {
					if f.Name == "role" && !f.Type.List {
						addEnum(v.c.enums[f.Type.Name])
					}
				}
			}
		}
	}

	v.c.Roles = make([]string, 0, len(set))
	for r := range set {
		v.c.Roles = append(v.c.Roles, r)
	}
	sort.Strings(v.c.Roles)
}

// props проверяет повторы и допустимые ключи, возвращает свойства по ключу.
func (v *validator) props(s site, props []*dsl.Property, allowed ...string) map[string]*dsl.Property {
	out := make(map[string]*dsl.Property, len(props))
	for _, p := range props {
		if _, dup := out[p.Key]; dup {
			v.report(s, p.Pos, CodeDuplicateProperty, "%s %q repeats property %q", s.block, s.name, p.Key)
			continue
		}
		if allowed != nil && !contains(allowed, p.Key) {
			v.report(s, p.Pos, CodeUnknownProperty, "%s %q has no property %q (allowed: %s)",
				s.block, s.name, p.Key, strings.Join(allowed, ", "))
			continue
		}
		out[p.Key] = p
	}
	return out
}

// nameOf: голый идентификатор или строка.
func nameOf(val dsl.Value) (string, bool) {
	switch x := val.(type) {
	case *dsl.Ident:
		if len(x.Path) == 1 {
			return x.Path[0], true
		}
	case *dsl.StringLit:
		return x.Value, true
	}
	return "", false
}

func contains[T comparable](xs []T, x T) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}

func fieldNames(fs []*dsl.FieldDecl) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func findField(e *dsl.EntityDecl, name string) *dsl.FieldDecl {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func attr(f *dsl.FieldDecl, name string) *dsl.Attribute {
	for _, a := range f.Attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// RelationName: явное имя связи из @relation(name: ...), "" если не задано.
func RelationName(f *dsl.FieldDecl) string {
	a := attr(f, "relation")
	if a == nil {
		return ""
	}
	if p := a.Arg("name"); p != nil {
		if s, ok := p.Value.(*dsl.StringLit); ok {
			return s.Value
		}
	}
	return ""
}

// VirtualSource: строка выражения из @virtual(from: ...).
func VirtualSource(f *dsl.FieldDecl) (string, bool) {
	a := attr(f, "virtual")
	if a == nil {
		return "", false
	}
	if p := a.Arg("from"); p != nil {
		if s, ok := p.Value.(*dsl.StringLit); ok {
			return s.Value, true
		}
	}
	return "", false
}

// OnDelete: политика из @relation(onDelete: ...), "" если не задана.
func OnDelete(f *dsl.FieldDecl) string {
	a := attr(f, "relation")
	if a == nil {
		return ""
	}
	if p := a.Arg("onDelete"); p != nil {
		n, _ := nameOf(p.Value)
		return n
	}
	return ""
}

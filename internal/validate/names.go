package validate

import (
	"fmt"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
)

// имена, которые сгенерированный фронтенд объявляет в routes.tsx
var frontendNames = []string{"ComponentType", "RouteDef", "routes", "canAccess"}

// owner: кто первым занял производное имя.
type owner struct {
	what string
	pos  dsl.Pos
}

// nameSet: пространство имён сгенерированного кода.
type nameSet struct {
	v     *validator
	kind  string
	taken map[string]owner
}

func (v *validator) namespace(kind string) *nameSet {
	return &nameSet{v: v, kind: kind, taken: map[string]owner{}}
}

func (n *nameSet) reserve(ident, what string) {
	n.taken[ident] = owner{what: what}
}

// claim занимает ident; повтор — ошибка на позиции второго объявления.
func (n *nameSet) claim(s site, pos dsl.Pos, ident, what string) bool {
	prev, ok := n.taken[ident]
	if !ok {
		n.taken[ident] = owner{what: what, pos: pos}
		return true
	}
	by := prev.what
	if prev.pos.Line > 0 {
		by += " at " + prev.pos.String()
	}
	n.v.report(s, pos, CodeNameCollision, "%s generates %s %q, already produced by %s; rename one of them", what, n.kind, ident, by)
	return false
}

// checkGeneratedNames: разные объявления не должны сходиться в одно имя
// после Pascal/Camel/Snake — иначе сгенерированный код не соберётся,
// а повторная генерация споткнётся о дублирующиеся области.
func (v *validator) checkGeneratedNames() {
	pkg := v.namespace("Go identifier")
	for _, name := range ir.RuntimeNames {
		pkg.reserve(name, "the workflow runtime")
	}
	steps := v.namespace("region id prefix")

	for _, d := range v.c.File.Decls {
		switch d := d.(type) {
		case *dsl.EntityDecl:
			if v.c.entities[d.Name] != d {
				continue
			}
			s := site{d.File, "entity", d.Name}
			pkg.claim(s, d.Pos, ir.TypeName(d.Name), fmt.Sprintf("entity %q", d.Name))
			v.checkColumnNames(s, d)
			for _, f := range d.Fields {
				if _, ok := VirtualSource(f); ok {
					pkg.claim(s, f.Pos, ir.ResolverName(d.Name, f.Name), fmt.Sprintf("field %s.%s", d.Name, f.Name))
				}
			}
		case *dsl.EnumDecl:
			if v.c.enums[d.Name] != d {
				continue
			}
			s := site{d.File, "enum", d.Name}
			pkg.claim(s, d.Pos, ir.TypeName(d.Name), fmt.Sprintf("enum %q", d.Name))
			seen := map[string]bool{}
			for _, val := range d.Values {
				if seen[val.Name] {
					continue
				}
				seen[val.Name] = true
				pkg.claim(s, val.Pos, ir.EnumConstName(d.Name, val.Name), fmt.Sprintf("value %s.%s", d.Name, val.Name))
			}
		case *dsl.ViewDecl:
			// совпадение с сущностью уже отмечено в collect
			if !contains(v.c.Views, d) || v.c.entities[d.Name] != nil {
				continue
			}
			s := site{d.File, "view", d.Name}
			pkg.claim(s, d.Pos, ir.TypeName(d.Name), fmt.Sprintf("view %q", d.Name))
			fp := dsl.Lookup(d.Props, "fields")
			if fp == nil {
				continue
			}
			obj, ok := fp.Value.(*dsl.ObjectLit)
			if !ok {
				continue
			}
			seen := map[string]bool{}
			for _, p := range obj.Props {
				if _, isExpr := p.Value.(*dsl.StringLit); !isExpr || seen[p.Key] {
					continue
				}
				seen[p.Key] = true
				pkg.claim(s, p.Pos, ir.ResolverName(d.Name, p.Key), fmt.Sprintf("field %s.%s", d.Name, p.Key))
			}
		case *dsl.WorkflowDecl:
			if !contains(v.c.Workflows, d) {
				continue
			}
			s := site{d.File, "workflow", d.Name}
			what := fmt.Sprintf("workflow %q", d.Name)
			if pkg.claim(s, d.Pos, ir.HandlerName(d.Name), what) {
				steps.claim(s, d.Pos, ir.StepRegion(d.Name, 1), what)
			}
		}
	}

	v.checkPageNames()
}

// checkColumnNames: поля, различные в DSL, но совпадающие в snake_case,
// дали бы одну колонку и одно поле Go-структуры.
func (v *validator) checkColumnNames(s site, e *dsl.EntityDecl) {
	cols := v.namespace("column")
	seen := map[string]bool{}
	for _, f := range e.Fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		cols.claim(s, f.Pos, ir.Snake(f.Name), fmt.Sprintf("field %s.%s", e.Name, f.Name))
	}
}

// checkPageNames: страница импортируется в routes.tsx под своим именем,
// а её функция называется <Name>Page.
func (v *validator) checkPageNames() {
	for _, p := range v.c.Pages {
		s := site{p.File, "page", p.Name}
		if contains(frontendNames, p.Name) {
			v.report(s, p.Pos, CodeNameCollision, "page %q clashes with a name declared by the generated routes module; rename the page", p.Name)
			continue
		}
		cp := dsl.Lookup(p.Props, "component")
		if cp == nil {
			continue
		}
		if comp, ok := nameOf(cp.Value); ok && comp == p.Name+"Page" {
			v.report(s, cp.Value.ValuePos(), CodeNameCollision, "page %q: component %q clashes with the generated page function %q", p.Name, comp, p.Name+"Page")
		}
	}
}

package validate

import (
	"strings"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
)

var pageProps = []string{"type", "entity", "route", "title", "permissions", "columns", "fields", "component"}

func (v *validator) checkPages() {
	routes := map[string]*dsl.PageDecl{}
	for _, p := range v.c.Pages {
		v.checkPage(p, routes)
	}
}

func (v *validator) checkPage(p *dsl.PageDecl, routes map[string]*dsl.PageDecl) {
	s := site{p.File, "page", p.Name}
	props := v.props(s, p.Props, pageProps...)

	var typ ir.PageType
	if tp := props["type"]; tp == nil {
		v.report(s, p.Pos, CodePageTypeMissing, "page %q has no type", p.Name)
	} else {
		name, _ := nameOf(tp.Value)
		if !contains(ir.PageTypes, ir.PageType(name)) {
			v.report(s, tp.Value.ValuePos(), CodePageType, "page %q has unknown type %q (allowed: table, form, details, custom)", p.Name, name)
		} else {
			typ = ir.PageType(name)
		}
	}

	// неразрешённая сущность — одна ошибка, зависящие от неё проверки пропускаем
	var ent *dsl.EntityDecl
	if ep := props["entity"]; ep != nil {
		name, _ := nameOf(ep.Value)
		if ent = v.c.entities[name]; ent == nil {
			v.report(s, ep.Value.ValuePos(), CodePageEntity, "page %q references unknown entity %q", p.Name, name)
		}
	} else if typ != "" && typ != ir.PageCustom {
		v.report(s, p.Pos, CodePageEntityNeeded, "page %q of type %s requires an entity", p.Name, typ)
	}
	// карточка читает запись по ключу: get<Entity> есть только у сущностей с primary key
	if ent != nil && typ == ir.PageDetails && !hasPrimaryKey(ent) {
		v.report(s, props["entity"].Value.ValuePos(), CodePageEntityNoPK,
			"details page %q: entity %q has no primary key to load a record by", p.Name, ent.Name)
	}

	if typ == ir.PageCustom {
		if cp := props["component"]; cp == nil {
			v.report(s, p.Pos, CodePageComponent, "custom page %q requires a component", p.Name)
		} else if _, ok := nameOf(cp.Value); !ok {
			v.report(s, cp.Pos, CodePropertyType, "page %q: component must be a name or string, got %s", p.Name, dsl.Describe(cp.Value))
		}
	}

	route := ir.DefaultRoute(p.Name)
	if rp := props["route"]; rp != nil {
		str, ok := rp.Value.(*dsl.StringLit)
		if !ok || !strings.HasPrefix(str.Value, "/") {
			v.report(s, rp.Value.ValuePos(), CodePageRoute, "page %q: route must be a string starting with /", p.Name)
		} else {
			route = str.Value
		}
	}
	if prev := routes[route]; prev != nil {
		v.report(s, p.Pos, CodePageRouteDup, "page %q: route %s already used by page %q", p.Name, route, prev.Name)
	} else {
		routes[route] = p
	}

	if tp := props["title"]; tp != nil {
		if _, ok := tp.Value.(*dsl.StringLit); !ok {
			v.report(s, tp.Value.ValuePos(), CodePropertyType, "page %q: title must be a string, got %s", p.Name, dsl.Describe(tp.Value))
		}
	}

	if pp := props["permissions"]; pp != nil {
		v.checkPermissions(s, pp)
	}

	for key, only := range map[string]ir.PageType{"columns": ir.PageTable, "fields": ir.PageForm} {
		lp := props[key]
		if lp == nil {
			continue
		}
		if typ != "" && typ != only {
			v.report(s, lp.Pos, CodeMisplacedProp, "page %q: %s applies to %s pages only", p.Name, key, only)
			continue
		}
		if ent != nil {
			v.checkFieldList(s, ent, lp, key == "fields")
		}
	}
}

func (v *validator) checkPermissions(s site, pp *dsl.Property) {
	arr, ok := pp.Value.(*dsl.ArrayLit)
	if !ok {
		v.report(s, pp.Value.ValuePos(), CodePropertyType, "page %q: permissions must be an array of roles", s.name)
		return
	}
	for _, el := range arr.Elems {
		role, ok := nameOf(el)
		if !ok {
			v.report(s, el.ValuePos(), CodePropertyType, "page %q: permission must be a role name, got %s", s.name, dsl.Describe(el))
			continue
		}
		if !contains(v.c.Roles, role) {
			v.report(s, el.ValuePos(), CodeRoleUnknown, "page %q: permission %q is not a known role (known: %s)",
				s.name, role, strings.Join(v.c.Roles, ", "))
		}
	}
}

// checkFieldList: columns/fields страницы ссылаются на поля сущности; в формах вычисляемые поля не редактируются.
func (v *validator) checkFieldList(s site, ent *dsl.EntityDecl, lp *dsl.Property, editable bool) {
	arr, ok := lp.Value.(*dsl.ArrayLit)
	if !ok {
		v.report(s, lp.Value.ValuePos(), CodePropertyType, "page %q: %s must be an array of field names", s.name, lp.Key)
		return
	}
	for _, el := range arr.Elems {
		name, ok := nameOf(el)
		if !ok {
			v.report(s, el.ValuePos(), CodePropertyType, "page %q: %s entries must be field names", s.name, lp.Key)
			continue
		}
		f := findField(ent, name)
		if f == nil {
			v.report(s, el.ValuePos(), CodePageField, "page %q: entity %q has no field %q", s.name, ent.Name, name)
			continue
		}
		if _, virtual := VirtualSource(f); editable && virtual {
			v.report(s, el.ValuePos(), CodePageField, "page %q: virtual field %q cannot be a form field", s.name, name)
		}
	}
}

func (v *validator) checkView(vw *dsl.ViewDecl) {
	s := site{vw.File, "view", vw.Name}
	props := v.props(s, vw.Props, "source", "fields")

	var src *dsl.EntityDecl
	if sp := props["source"]; sp == nil {
		v.report(s, vw.Pos, CodeViewSourceNeeded, "view %q has no source entity", vw.Name)
	} else {
		name, _ := nameOf(sp.Value)
		if src = v.c.entities[name]; src == nil {
			v.report(s, sp.Value.ValuePos(), CodeViewSource, "view %q references unknown entity %q", vw.Name, name)
		}
	}

	fp := props["fields"]
	if fp == nil {
		v.report(s, vw.Pos, CodeViewFields, "view %q has no fields", vw.Name)
		return
	}
	obj, ok := fp.Value.(*dsl.ObjectLit)
	if !ok || len(obj.Props) == 0 {
		v.report(s, fp.Value.ValuePos(), CodeViewFields, "view %q: fields must be a non-empty object", vw.Name)
		return
	}
	entries := v.props(s, obj.Props)
	if src == nil {
		return
	}
	for _, p := range obj.Props {
		if entries[p.Key] != p {
			continue
		}
		v.checkViewField(s, src, p)
	}
}

func (v *validator) checkViewField(s site, src *dsl.EntityDecl, p *dsl.Property) {
	switch val := p.Value.(type) {
	case *dsl.Ident:
		if len(val.Path) != 1 {
			v.report(s, val.Pos, CodeViewField, "view %q: field %q must reference a field of %q directly", s.name, p.Key, src.Name)
			return
		}
		f := findField(src, val.Path[0])
		if f == nil {
			v.report(s, val.Pos, CodeUnknownFieldRef, "view %q: field %q references unknown field %q on %q", s.name, p.Key, val.Path[0], src.Name)
			return
		}
		if ft, ok := v.c.FieldType(f.Type); ok && ft.List {
			v.report(s, val.Pos, CodeViewField, "view %q: field %q cannot expose list field %q", s.name, p.Key, f.Name)
		}
	case *dsl.StringLit:
		expr, err := dsl.ParseExpr(val.Value)
		if err != nil {
			v.report(s, val.Pos, CodeViewField, "view %q: field %q has invalid expression %q: %v", s.name, p.Key, val.Value, err)
			return
		}
		resolved := true
		for _, ref := range dsl.FieldRefs(expr) {
			if findField(src, ref.Name) == nil {
				v.report(s, val.Pos, CodeUnknownFieldRef, "view %q: field %q references unknown field %q on %q", s.name, p.Key, ref.Name, src.Name)
				resolved = false
			}
		}
		if !resolved {
			return
		}
		if _, err := ExprType(expr, v.entityFieldKind(src)); err != nil {
			v.report(s, val.Pos, CodeViewField, "view %q: field %q: %v", s.name, p.Key, err)
		}
	default:
		v.report(s, p.Value.ValuePos(), CodeViewField, "view %q: field %q must be a field name or an expression string, got %s",
			s.name, p.Key, dsl.Describe(p.Value))
	}
}

func (v *validator) checkWorkflow(w *dsl.WorkflowDecl) {
	s := site{w.File, "workflow", w.Name}
	props := v.props(s, w.Props, "trigger")

	if tp := props["trigger"]; tp == nil {
		v.report(s, w.Pos, CodeTriggerMissing, "workflow %q has no trigger", w.Name)
	} else {
		switch tv := tp.Value.(type) {
		case *dsl.StringLit:
			if tv.Value == "" {
				v.report(s, tv.Pos, CodeTriggerMissing, "workflow %q has an empty trigger", w.Name)
			}
		case *dsl.Ident:
		default:
			v.report(s, tp.Value.ValuePos(), CodePropertyType, "workflow %q: trigger must be an event name, got %s", w.Name, dsl.Describe(tp.Value))
		}
	}

	if len(w.Steps) == 0 {
		v.report(s, w.Pos, CodeStepsEmpty, "workflow %q has no steps", w.Name)
	}
	for _, st := range w.Steps {
		v.props(site{w.File, "step", st.Action}, st.Inputs)
		for _, in := range st.Inputs {
			v.checkInput(s, st, in.Key, in.Value)
		}
	}
}

func (v *validator) checkInput(s site, st *dsl.StepDecl, key string, val dsl.Value) {
	switch x := val.(type) {
	case *dsl.Ident:
		if len(x.Path) > 1 && x.Path[0] != "trigger" {
			v.report(s, x.Pos, CodeTriggerPath, "workflow %q step %s: %s must start with trigger, got %s", s.name, st.Action, key, x.Name())
		}
	case *dsl.Call:
		v.report(s, x.Pos, CodeWorkflowInput, "workflow %q step %s: %s cannot be a function call", s.name, st.Action, key)
	case *dsl.ArrayLit:
		for _, el := range x.Elems {
			v.checkInput(s, st, key, el)
		}
	case *dsl.ObjectLit:
		for _, p := range x.Props {
			v.checkInput(s, st, key+"."+p.Key, p.Value)
		}
	}
}

package validate

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
)

var onDeletePolicies = []string{string(ir.OnDeleteCascade), string(ir.OnDeleteRestrict), string(ir.OnDeleteSetNull)}

func (v *validator) checkEntity(e *dsl.EntityDecl) {
	s := site{e.File, "entity", e.Name}
	seen := map[string]*dsl.FieldDecl{}
	var pk *dsl.FieldDecl

	for _, f := range e.Fields {
		if prev := seen[f.Name]; prev != nil {
			v.report(s, f.Pos, CodeDuplicateField, "entity %q repeats field %q (first at %s)", e.Name, f.Name, prev.Pos)
		} else {
			seen[f.Name] = f
		}
		if f.PrimaryKey {
			if pk != nil {
				v.report(s, f.Pos, CodeDuplicatePK, "entity %q already has primary key %q", e.Name, pk.Name)
			} else {
				pk = f
			}
		}
		for _, m := range f.Repeated {
			v.report(s, f.Pos, CodeDuplicateModifier, "field %q repeats modifier %q", f.Name, m)
		}
		v.checkField(s, e, f)
	}
	v.checkRelationGroups(s, e)
	v.checkVirtuals(s, e)
}

func (v *validator) checkField(s site, e *dsl.EntityDecl, f *dsl.FieldDecl) {
	ft, ok := v.c.FieldType(f.Type)
	if !ok {
		if f.Type.Name == string(ir.TypeEnum) {
			v.report(s, f.Type.Pos, CodeBareEnum, "field %q: type Enum needs a declared enum name", f.Name)
		} else {
			v.report(s, f.Type.Pos, CodeUnknownType, "field %q has unknown type %q", f.Name, f.Type.Name)
		}
		return
	}
	if f.Type.List && ft.Kind != ir.TypeRelation {
		v.report(s, f.Type.Pos, CodeListNotRelation, "field %q: only entity types can be lists, got %s", f.Name, ft)
	}
	if f.PrimaryKey && (ft.Kind == ir.TypeRelation || f.Optional) {
		v.report(s, f.Pos, CodePrimaryKey, "field %q: primary key must be a required scalar", f.Name)
	}
	if ft.Kind == ir.TypeRelation {
		if target := v.c.entities[ft.Ref]; target != nil && !hasPrimaryKey(target) {
			v.report(s, f.Type.Pos, CodeRelationNoPK, "field %q: target entity %q has no primary key", f.Name, ft.Ref)
		}
	}

	seenAttrs := map[string]bool{}
	for _, a := range f.Attrs {
		if seenAttrs[a.Name] {
			v.report(s, a.Pos, CodeDuplicateAttr, "field %q repeats @%s", f.Name, a.Name)
			continue
		}
		seenAttrs[a.Name] = true
		switch a.Name {
		case "relation":
			v.checkRelationAttr(s, f, ft, a)
		case "virtual":
			v.checkVirtualAttr(s, f, ft, a)
		default:
			v.report(s, a.Pos, CodeUnknownAttr, "field %q: unknown attribute @%s (allowed: @relation, @virtual)", f.Name, a.Name)
		}
	}

	if f.Default != nil && attr(f, "virtual") == nil {
		v.checkDefault(s, e, f, ft)
	}
}

func hasPrimaryKey(e *dsl.EntityDecl) bool {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return true
		}
	}
	return false
}

func (v *validator) attrArgs(s site, f *dsl.FieldDecl, a *dsl.Attribute, allowed ...string) {
	seen := map[string]bool{}
	for _, arg := range a.Args {
		switch {
		case seen[arg.Key]:
			v.report(s, arg.Pos, CodeDuplicateProperty, "field %q: @%s repeats argument %q", f.Name, a.Name, arg.Key)
		case !contains(allowed, arg.Key):
			v.report(s, arg.Pos, CodeUnknownAttrArg, "field %q: @%s has no argument %q (allowed: %s)",
				f.Name, a.Name, arg.Key, strings.Join(allowed, ", "))
		}
		seen[arg.Key] = true
	}
}

func (v *validator) checkRelationAttr(s site, f *dsl.FieldDecl, ft ir.FieldType, a *dsl.Attribute) {
	if ft.Kind != ir.TypeRelation {
		v.report(s, a.Pos, CodeRelationAttr, "field %q: @relation needs an entity type, got %s", f.Name, ft)
		return
	}
	v.attrArgs(s, f, a, "name", "onDelete")
	if p := a.Arg("name"); p != nil {
		if str, ok := p.Value.(*dsl.StringLit); !ok || str.Value == "" {
			v.report(s, p.Pos, CodePropertyType, "field %q: @relation name must be a non-empty string", f.Name)
		}
	}
	if p := a.Arg("onDelete"); p != nil {
		policy, _ := nameOf(p.Value)
		switch {
		case !contains(onDeletePolicies, policy):
			v.report(s, p.Pos, CodeOnDeleteUnknown, "field %q: unknown onDelete policy %q (allowed: %s)",
				f.Name, policy, strings.Join(onDeletePolicies, ", "))
		case policy == string(ir.OnDeleteSetNull) && !f.Optional && !ft.List:
			v.report(s, p.Pos, CodeRequiredSetNull, "field %q: required relation cannot use onDelete setNull; make it optional or use restrict", f.Name)
		}
	}
}

func (v *validator) checkVirtualAttr(s site, f *dsl.FieldDecl, ft ir.FieldType, a *dsl.Attribute) {
	v.attrArgs(s, f, a, "from")
	p := a.Arg("from")
	if p == nil {
		v.report(s, a.Pos, CodeVirtualFrom, "field %q: @virtual requires a from expression", f.Name)
		return
	}
	if _, ok := p.Value.(*dsl.StringLit); !ok {
		v.report(s, p.Pos, CodePropertyType, "field %q: @virtual from must be a string, got %s", f.Name, dsl.Describe(p.Value))
	}
	if ft.Kind == ir.TypeRelation || f.PrimaryKey || f.Default != nil {
		v.report(s, a.Pos, CodeVirtualModifier, "field %q: virtual field cannot be a relation, a primary key or have a default", f.Name)
	}
}

func (v *validator) checkDefault(s site, e *dsl.EntityDecl, f *dsl.FieldDecl, ft ir.FieldType) {
	if call, ok := f.Default.(*dsl.Call); ok {
		kinds, known := ir.DefaultFuncs[call.Name]
		switch {
		case !known:
			v.report(s, call.Pos, CodeDefaultFunc, "field %q: unknown default function %s() (allowed: autoincrement, now, uuid)", f.Name, call.Name)
		case len(call.Args) > 0:
			v.report(s, call.Pos, CodeDefaultFunc, "field %q: %s() takes no arguments", f.Name, call.Name)
		case ft.List || !contains(kinds, ft.Kind):
			v.report(s, call.Pos, CodeDefaultMismatch, "field %q: %s() cannot default a %s field", f.Name, call.Name, ft)
		}
		return
	}
	if !v.literalFits(ft, f.Default) {
		v.report(s, f.Default.ValuePos(), CodeDefaultMismatch, "field %q: default %s does not match type %s",
			f.Name, dsl.Describe(f.Default), ft)
	}
}

// literalFits: литерал default(...) совместим с типом поля.
func (v *validator) literalFits(ft ir.FieldType, val dsl.Value) bool {
	if ft.List || ft.Kind == ir.TypeRelation {
		return false
	}
	switch ft.Kind {
	case ir.TypeString, ir.TypeText, ir.TypePassword:
		_, ok := val.(*dsl.StringLit)
		return ok
	case ir.TypeInt:
		n, ok := val.(*dsl.NumberLit)
		return ok && !strings.Contains(n.Raw, ".")
	case ir.TypeDecimal:
		_, ok := val.(*dsl.NumberLit)
		return ok
	case ir.TypeBoolean:
		_, ok := val.(*dsl.BoolLit)
		return ok
	case ir.TypeDateTime:
		str, ok := val.(*dsl.StringLit)
		return ok && parsesAsTime(str.Value)
	case ir.TypeUUID:
		str, ok := val.(*dsl.StringLit)
		if !ok {
			return false
		}
		_, err := uuid.Parse(str.Value)
		return err == nil
	case ir.TypeJSON:
		switch val.(type) {
		case *dsl.StringLit, *dsl.NumberLit, *dsl.BoolLit, *dsl.ArrayLit, *dsl.ObjectLit:
			return true
		}
		return false
	case ir.TypeEnum:
		name, ok := nameOf(val)
		if !ok {
			return false
		}
		en := v.c.enums[ft.Ref]
		for _, ev := range en.Values {
			if ev.Name == name {
				return true
			}
		}
		return false
	}
	return false
}

func parsesAsTime(s string) bool {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// checkRelationGroups: несколько связей к одной сущности требуют явных и различных имён.
// Для самоссылки одно имя допустимо на двух полях — это две стороны одной связи.
func (v *validator) checkRelationGroups(s site, e *dsl.EntityDecl) {
	groups := map[string][]*dsl.FieldDecl{}
	var order []string
	for _, f := range e.Fields {
		ft, ok := v.c.FieldType(f.Type)
		if !ok || ft.Kind != ir.TypeRelation {
			continue
		}
		if _, seen := groups[ft.Ref]; !seen {
			order = append(order, ft.Ref)
		}
		groups[ft.Ref] = append(groups[ft.Ref], f)
	}

	for _, target := range order {
		fs := groups[target]
		if len(fs) < 2 {
			continue
		}
		limit := 1
		if target == e.Name {
			limit = 2
		}
		counts := map[string]int{}
		ok := true
		for _, f := range fs {
			name := RelationName(f)
			if name == "" {
				ok = false
				break
			}
			counts[name]++
			if counts[name] > limit {
				ok = false
				break
			}
		}
		if !ok {
			v.report(s, fs[0].Pos, CodeRelationAmbig,
				"entity %q has %d relation fields to %q (%s); each needs a distinct @relation(name: ...)",
				e.Name, len(fs), target, fieldNames(fs))
		}
	}
}

// checkVirtuals проверяет выражения @virtual: ссылки, типы и циклы.
func (v *validator) checkVirtuals(s site, e *dsl.EntityDecl) {
	deps := map[string][]string{}
	var virtuals []*dsl.FieldDecl

	for _, f := range e.Fields {
		src, ok := VirtualSource(f)
		if !ok {
			continue
		}
		pos := attr(f, "virtual").Arg("from").Value.ValuePos()
		expr, err := dsl.ParseExpr(src)
		if err != nil {
			v.report(s, pos, CodeVirtualExpr, "field %q: invalid expression %q: %v", f.Name, src, err)
			continue
		}
		virtuals = append(virtuals, f)

		resolved := true
		for _, ref := range dsl.FieldRefs(expr) {
			target := findField(e, ref.Name)
			if target == nil {
				v.report(s, pos, CodeUnknownFieldRef, "field %q: expression references unknown field %q on %q", f.Name, ref.Name, e.Name)
				resolved = false
				continue
			}
			if _, isVirtual := VirtualSource(target); isVirtual {
				deps[f.Name] = append(deps[f.Name], target.Name)
			}
		}
		if !resolved {
			continue
		}

		got, err := ExprType(expr, v.entityFieldKind(e))
		if err != nil {
			v.report(s, pos, CodeVirtualExpr, "field %q: %v", f.Name, err)
			continue
		}
		if ft, ok := v.c.FieldType(f.Type); ok && !Assignable(ft.Kind, got) {
			v.report(s, pos, CodeVirtualType, "field %q is %s but its expression yields %s", f.Name, ft, got)
		}
	}

	for _, f := range virtuals {
		if reaches(deps, f.Name, f.Name, map[string]bool{}) {
			v.report(s, f.Pos, CodeVirtualCycle, "field %q: virtual expression depends on itself", f.Name)
		}
	}
}

func reaches(deps map[string][]string, from, target string, visited map[string]bool) bool {
	for _, d := range deps[from] {
		if d == target {
			return true
		}
		if visited[d] {
			continue
		}
		visited[d] = true
		if reaches(deps, d, target, visited) {
			return true
		}
	}
	return false
}

// entityFieldKind: тип поля сущности для вывода типа выражения.
func (v *validator) entityFieldKind(e *dsl.EntityDecl) func(string) (ir.TypeKind, bool) {
	return func(name string) (ir.TypeKind, bool) {
		f := findField(e, name)
		if f == nil {
			return "", false
		}
		ft, ok := v.c.FieldType(f.Type)
		if !ok || ft.List {
			return ir.TypeRelation, true
		}
		return ft.Kind, true
	}
}

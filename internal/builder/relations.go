package builder

import "stalmer/internal/ir"

// fieldRef — адрес поля в арене: индекс сущности и индекс поля.
type fieldRef struct {
	entity, field int
}

// buildRelations: пост-проход по арене сущностей, индексированной по имени.
// Ссылки между сущностями резолвятся индексами, поэтому самоссылки и циклы не зацикливают обход.
func (b *builder) buildRelations() {
	ents := b.app.Entities
	index := make(map[string]int, len(ents))
	for i, e := range ents {
		index[e.Name] = i
	}

	var refs []fieldRef
	for i, e := range ents {
		for j, f := range e.Fields {
			if f.Relation == nil {
				continue
			}
			f.Relation.TargetIndex = index[f.Relation.Target]
			refs = append(refs, fieldRef{i, j})
		}
	}

	inverse := make(map[fieldRef]*fieldRef, len(refs))
	for _, r := range refs {
		inverse[r] = b.findInverse(r)
	}

	for _, r := range refs {
		owner := ents[r.entity]
		f := owner.Fields[r.field]
		rel := f.Relation
		inv := inverse[r]

		var invField *ir.Field
		if inv != nil {
			invField = ents[inv.entity].Fields[inv.field]
			rel.Inverse = invField.Name
		}
		rel.Cardinality = cardinality(f, invField)
		if !rel.Named {
			rel.Name = ir.RelationName(owner.Name, rel.Target)
		}
	}

	// каноническая запись — одна на связь, в порядке первого объявления
	done := map[fieldRef]bool{}
	for _, r := range refs {
		if done[r] {
			continue
		}
		done[r] = true
		inv := inverse[r]
		if inv != nil {
			done[*inv] = true
		}
		b.app.Relations = append(b.app.Relations, b.canonical(r, inv))
	}
}

// findInverse ищет на целевой сущности поле обратно на владельца с тем же именем связи.
// Безымянная связь пары ищет среди безымянных; поле само себе не пара.
func (b *builder) findInverse(r fieldRef) *fieldRef {
	ents := b.app.Entities
	owner := ents[r.entity]
	f := owner.Fields[r.field]
	target := f.Relation.TargetIndex
	explicit := ""
	if f.Relation.Named {
		explicit = f.Relation.Name
	}

	for j, g := range ents[target].Fields {
		if g.Relation == nil || g.Relation.Target != owner.Name {
			continue
		}
		if target == r.entity && j == r.field {
			continue
		}
		other := ""
		if g.Relation.Named {
			other = g.Relation.Name
		}
		if other == explicit {
			return &fieldRef{target, j}
		}
	}
	return nil
}

// cardinality: с точки зрения владельца поля.
func cardinality(f, inverse *ir.Field) ir.Cardinality {
	invList := inverse != nil && inverse.Type.List
	switch {
	case !f.Type.List && (inverse == nil || invList):
		return ir.ManyToOne
	case !f.Type.List:
		return ir.OneToOne
	case inverse != nil && invList:
		return ir.ManyToMany
	default:
		return ir.OneToMany
	}
}

func (b *builder) canonical(r fieldRef, inv *fieldRef) *ir.Relation {
	ents := b.app.Entities
	owner := ents[r.entity]
	f := owner.Fields[r.field]
	target := ents[f.Relation.TargetIndex]
	invName := f.Relation.Inverse

	rel := &ir.Relation{Name: f.Relation.Name, SelfRef: owner.Name == target.Name}
	switch f.Relation.Cardinality {
	case ir.ManyToOne:
		// ссылочное поле у владельца, "один" — цель
		rel.Kind = ir.OneToMany
		rel.One, rel.OneField = target.Name, invName
		rel.Many, rel.ManyField = owner.Name, f.Name
	case ir.OneToMany:
		rel.Kind = ir.OneToMany
		rel.One, rel.OneField = owner.Name, f.Name
		rel.Many, rel.ManyField = target.Name, invName
	case ir.OneToOne:
		// внешний ключ держит поле, объявленное первым
		rel.Kind = ir.OneToOne
		rel.Many, rel.ManyField = owner.Name, f.Name
		rel.One, rel.OneField = target.Name, invName
	case ir.ManyToMany:
		rel.Kind = ir.ManyToMany
		rel.One, rel.OneField = owner.Name, f.Name
		rel.Many, rel.ManyField = target.Name, invName
	}
	return rel
}

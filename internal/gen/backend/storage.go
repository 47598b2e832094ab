package backend

import (
	"fmt"
	"strings"

	"stalmer/internal/ir"
)

// table — физическая таблица: сущность или join-таблица many-to-many.
type table struct {
	Name    string
	Entity  string // пусто для join-таблицы
	Columns []*column
	FKs     []foreignKey
	// PrimaryKey: составной ключ join-таблицы; у сущностей ключ помечен на колонке.
	PrimaryKey []string
}

type column struct {
	Name    string
	Kind    ir.TypeKind
	Enum    string
	NotNull bool
	PK      bool
	Unique  bool
	Default *ir.Default
}

type foreignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  ir.OnDelete
}

func (t *table) column(name string) *column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (t *table) add(c *column) error {
	if t.column(c.Name) != nil {
		return fmt.Errorf("table %s: column %s declared twice", t.Name, c.Name)
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// planStorage раскладывает сущности и связи по таблицам.
// Порядок: таблицы сущностей в порядке объявления, затем join-таблицы в порядке связей.
func planStorage(app *ir.Application) ([]*table, error) {
	var out []*table
	byEntity := make(map[string]*table, len(app.Entities))

	for _, e := range app.Entities {
		t := &table{Name: tableName(e.Name), Entity: e.Name}
		for _, f := range e.StoredFields() {
			if f.Relation != nil {
				continue
			}
			c := &column{
				Name:    ir.Snake(f.Name),
				Kind:    f.Type.Kind,
				NotNull: !f.Optional || f.PrimaryKey,
				PK:      f.PrimaryKey,
				Unique:  f.Unique && !f.PrimaryKey,
				Default: f.Default,
			}
			if f.Type.Kind == ir.TypeEnum {
				c.Enum = f.Type.Ref
			}
			if err := t.add(c); err != nil {
				return nil, err
			}
		}
		byEntity[e.Name] = t
		out = append(out, t)
	}

	for _, rel := range app.Relations {
		switch rel.Kind {
		case ir.OneToMany, ir.OneToOne:
			if err := planForeignKey(app, byEntity, rel); err != nil {
				return nil, err
			}
		case ir.ManyToMany:
			t, err := planJoinTable(app, rel)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// planForeignKey кладёт ссылочную колонку на сторону Many.
// Список без обратного поля хранится колонкой на цели списка.
func planForeignKey(app *ir.Application, byEntity map[string]*table, rel *ir.Relation) error {
	one := app.Entity(rel.One)
	pk, err := keyField(one, rel)
	if err != nil {
		return err
	}
	t := byEntity[rel.Many]

	c := &column{Kind: pk.Type.Kind, Unique: rel.Kind == ir.OneToOne}
	if pk.Type.Kind == ir.TypeEnum {
		c.Enum = pk.Type.Ref
	}
	var policy ir.OnDelete
	if rel.ManyField != "" {
		f := app.Entity(rel.Many).Field(rel.ManyField)
		c.Name = ir.Snake(f.Name) + "_id"
		c.NotNull = !f.Optional
		policy = f.Relation.OnDelete
	} else {
		f := one.Field(rel.OneField)
		c.Name = ir.Snake(rel.One) + "_" + ir.Snake(rel.OneField) + "_id"
		policy = f.Relation.OnDelete
	}
	if err := t.add(c); err != nil {
		return err
	}
	t.FKs = append(t.FKs, foreignKey{
		Column:    c.Name,
		RefTable:  tableName(one.Name),
		RefColumn: ir.Snake(pk.Name),
		OnDelete:  policy,
	})
	return nil
}

func planJoinTable(app *ir.Application, rel *ir.Relation) (*table, error) {
	left, right := app.Entity(rel.One), app.Entity(rel.Many)
	lpk, err := keyField(left, rel)
	if err != nil {
		return nil, err
	}
	rpk, err := keyField(right, rel)
	if err != nil {
		return nil, err
	}
	lcol, rcol := ir.Snake(rel.One)+"_id", ir.Snake(rel.Many)+"_id"
	if rel.SelfRef {
		lcol, rcol = ir.Snake(rel.OneField)+"_id", ir.Snake(rel.ManyField)+"_id"
	}

	t := &table{Name: ir.Snake(rel.Name), PrimaryKey: []string{lcol, rcol}}
	t.Columns = []*column{
		{Name: lcol, Kind: lpk.Type.Kind, Enum: enumRef(lpk), NotNull: true},
		{Name: rcol, Kind: rpk.Type.Kind, Enum: enumRef(rpk), NotNull: true},
	}
	t.FKs = []foreignKey{
		{Column: lcol, RefTable: tableName(left.Name), RefColumn: ir.Snake(lpk.Name), OnDelete: ir.OnDeleteCascade},
		{Column: rcol, RefTable: tableName(right.Name), RefColumn: ir.Snake(rpk.Name), OnDelete: ir.OnDeleteCascade},
	}
	return t, nil
}

func keyField(e *ir.Entity, rel *ir.Relation) (*ir.Field, error) {
	if e.PrimaryKey == "" {
		return nil, fmt.Errorf("relation %s: entity %s has no primary key to reference", rel.Name, e.Name)
	}
	return e.Field(e.PrimaryKey), nil
}

func enumRef(f *ir.Field) string {
	if f.Type.Kind == ir.TypeEnum {
		return f.Type.Ref
	}
	return ""
}

// tableName: snake_case во множественном числе, "Category" -> "categories".
func tableName(entity string) string {
	return plural(ir.Snake(entity))
}

// элементарная плюрализация английских имён
func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "ss"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "z"),
		strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "s"):
		return s
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

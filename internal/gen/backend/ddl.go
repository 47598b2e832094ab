package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

type dialect interface {
	columnType(c *column) string
	// defaultClause: хвост определения колонки для default(...); пусто, если нечего писать.
	defaultClause(c *column) string
	boolLiteral(v bool) string
	enumCheck(c *column, values []string) string
	// inlineFKs: внешние ключи объявляются внутри create table.
	inlineFKs() bool
}

func dialectFor(db ir.Database) (dialect, error) {
	switch db {
	case ir.PostgreSQL:
		return postgres{}, nil
	case ir.SQLite:
		return sqlite{}, nil
	}
	return nil, fmt.Errorf("unsupported database %q", db)
}

type postgres struct{}

func (postgres) columnType(c *column) string {
	switch c.Kind {
	case ir.TypeInt:
		if isAutoIncrement(c) {
			return "bigint generated by default as identity"
		}
		return "bigint"
	case ir.TypeDecimal:
		return "numeric"
	case ir.TypeBoolean:
		return "boolean"
	case ir.TypeDateTime:
		return "timestamp with time zone"
	case ir.TypeUUID:
		return "uuid"
	case ir.TypeJSON:
		return "jsonb"
	case ir.TypeEnum:
		return sqlIdent(ir.Snake(c.Enum))
	default:
		return "text"
	}
}

func (d postgres) defaultClause(c *column) string {
	if c.Default == nil {
		return ""
	}
	if c.Default.Kind == ir.DefaultFunction {
		switch c.Default.Func {
		case "now":
			return " default now()"
		case "uuid":
			return " default gen_random_uuid()"
		}
		return ""
	}
	return " default " + literalSQL(d, c)
}

func (postgres) boolLiteral(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// enum в postgres — отдельный тип, проверка не нужна
func (postgres) enumCheck(*column, []string) string { return "" }

func (postgres) inlineFKs() bool { return false }

type sqlite struct{}

func (sqlite) columnType(c *column) string {
	switch c.Kind {
	case ir.TypeInt, ir.TypeBoolean:
		return "integer"
	case ir.TypeDecimal:
		return "numeric"
	default:
		return "text"
	}
}

func (d sqlite) defaultClause(c *column) string {
	if c.Default == nil {
		return ""
	}
	if c.Default.Kind == ir.DefaultFunction {
		switch c.Default.Func {
		case "now":
			return " default current_timestamp"
		case "uuid":
			return " default (lower(hex(randomblob(16))))"
		}
		// autoincrement в sqlite возможен только у integer primary key
		return ""
	}
	return " default " + literalSQL(d, c)
}

func (sqlite) boolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (sqlite) enumCheck(c *column, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = sqlString(v)
	}
	return fmt.Sprintf(" check (%s in (%s))", sqlIdent(c.Name), strings.Join(quoted, ", "))
}

func (sqlite) inlineFKs() bool { return true }

func isAutoIncrement(c *column) bool {
	return c.Default != nil && c.Default.Kind == ir.DefaultFunction && c.Default.Func == "autoincrement"
}

// DDL рендерит schema.sql для выбранной СУБД.
// Postgres: enum-типы, таблицы и уникальные индексы, затем внешние ключи.
// SQLite: внешние ключи внутри create table.
func DDL(app *ir.Application, db ir.Database) (string, error) {
	d, err := dialectFor(db)
	if err != nil {
		return "", err
	}
	tables, err := planStorage(app)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n-- application: %s, database: %s\n\n", generatedHeader, app.Name, db)

	if db == ir.PostgreSQL && len(app.Enums) > 0 {
		for _, e := range app.Enums {
			quoted := make([]string, len(e.Values))
			for i, v := range e.Values {
				quoted[i] = sqlString(v)
			}
			fmt.Fprintf(&b, "create type %s as enum (%s);\n", sqlIdent(ir.Snake(e.Name)), strings.Join(quoted, ", "))
		}
		b.WriteString("\n")
	}

	// --- phase A: таблицы и уникальные индексы ---
	for _, t := range tables {
		var defs []string
		for _, c := range t.Columns {
			defs = append(defs, columnDef(d, app, t, c))
		}
		if len(t.PrimaryKey) > 0 {
			defs = append(defs, fmt.Sprintf("primary key (%s)", identList(t.PrimaryKey)))
		}
		fmt.Fprintf(&b, "create table if not exists %s (\n  %s\n);\n", sqlIdent(t.Name), strings.Join(defs, ",\n  "))
		for _, c := range t.Columns {
			if c.Unique {
				fmt.Fprintf(&b, "create unique index if not exists %s on %s (%s);\n",
					sqlIdent(t.Name+"_"+c.Name+"_uq"), sqlIdent(t.Name), sqlIdent(c.Name))
			}
		}
		b.WriteString("\n")
	}

	// --- phase B: внешние ключи после создания всех таблиц ---
	if !d.inlineFKs() {
		n := 0
		for _, t := range tables {
			for _, fk := range t.FKs {
				fmt.Fprintf(&b, "alter table %s add constraint %s foreign key (%s) references %s (%s) on delete %s;\n",
					sqlIdent(t.Name), sqlIdent(t.Name+"_"+fk.Column+"_fk"), sqlIdent(fk.Column),
					sqlIdent(fk.RefTable), sqlIdent(fk.RefColumn), onDeleteSQL(fk.OnDelete))
				n++
			}
		}
		if n > 0 {
			b.WriteString("\n")
		}
	}

	b.WriteString(gen.Region("--", "schema", ""))
	return b.String(), nil
}

func columnDef(d dialect, app *ir.Application, t *table, c *column) string {
	var s strings.Builder
	s.WriteString(sqlIdent(c.Name) + " ")
	_, isSQLite := d.(sqlite)
	switch {
	case c.PK && isSQLite && isAutoIncrement(c):
		s.WriteString("integer primary key autoincrement")
		return s.String()
	default:
		s.WriteString(d.columnType(c))
	}
	if c.PK {
		s.WriteString(" primary key")
	} else if c.NotNull {
		s.WriteString(" not null")
	}
	if !isAutoIncrement(c) {
		s.WriteString(d.defaultClause(c))
	}
	if c.Enum != "" {
		if e := app.Enum(c.Enum); e != nil {
			s.WriteString(d.enumCheck(c, e.Values))
		}
	}
	if d.inlineFKs() {
		for _, fk := range t.FKs {
			if fk.Column == c.Name {
				fmt.Fprintf(&s, " references %s (%s) on delete %s",
					sqlIdent(fk.RefTable), sqlIdent(fk.RefColumn), onDeleteSQL(fk.OnDelete))
			}
		}
	}
	return s.String()
}

func onDeleteSQL(p ir.OnDelete) string {
	switch p {
	case ir.OnDeleteCascade:
		return "cascade"
	case ir.OnDeleteSetNull:
		return "set null"
	default:
		return "restrict"
	}
}

// literalSQL: значение default(...) колонки; Json-колонка получает JSON-документ.
func literalSQL(d dialect, c *column) string {
	v := c.Default.Value
	if c.Kind == ir.TypeJSON {
		raw, _ := json.Marshal(v)
		return sqlString(string(raw))
	}
	switch x := v.(type) {
	case bool:
		return d.boolLiteral(x)
	case json.Number:
		return x.String()
	case string:
		return sqlString(x)
	default:
		raw, _ := json.Marshal(x)
		return sqlString(string(raw))
	}
}

func sqlIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func sqlString(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

func identList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = sqlIdent(n)
	}
	return strings.Join(out, ", ")
}

// Package ir — канонизированная модель приложения, которую потребляют генераторы.
// Модель собирается заново на каждый запуск и после builder.Build не меняется.
package ir

// Application: корень IR.
type Application struct {
	Name      string      `json:"name"`
	Entities  []*Entity   `json:"entities"`
	Enums     []*Enum     `json:"enums"`
	Pages     []*Page     `json:"pages"`
	Views     []*View     `json:"views"`
	Workflows []*Workflow `json:"workflows"`
	Relations []*Relation `json:"relations"`
	Config    Config      `json:"config"`
}

// Entity находит сущность по имени.
func (a *Application) Entity(name string) *Entity {
	for _, e := range a.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Enum находит enum по имени.
func (a *Application) Enum(name string) *Enum {
	for _, e := range a.Enums {
		if e.Name == name {
			return e
		}
	}
	return nil
}

type Entity struct {
	Name       string   `json:"name"`
	Fields     []*Field `json:"fields"`
	PrimaryKey string   `json:"primaryKey,omitempty"`
}

// Field находит поле по имени.
func (e *Entity) Field(name string) *Field {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// StoredFields — поля, которые лежат в таблице: без вычисляемых и без списков-обратных ссылок.
func (e *Entity) StoredFields() []*Field {
	out := make([]*Field, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Virtual != nil || f.Type.List {
			continue
		}
		out = append(out, f)
	}
	return out
}

type Field struct {
	Name       string       `json:"name"`
	Type       FieldType    `json:"type"`
	PrimaryKey bool         `json:"primaryKey,omitempty"`
	Unique     bool         `json:"unique,omitempty"`
	Optional   bool         `json:"optional,omitempty"`
	Default    *Default     `json:"default,omitempty"`
	Virtual    *Virtual     `json:"virtual,omitempty"`
	Relation   *RelationRef `json:"relation,omitempty"`
}

// FieldType: тег из реестра типов плюс имя enum/сущности для Enum/Relation.
type FieldType struct {
	Kind TypeKind `json:"kind"`
	Ref  string   `json:"ref,omitempty"` // имя enum или целевой сущности
	List bool     `json:"list,omitempty"`
}

func (t FieldType) String() string {
	s := string(t.Kind)
	if t.Ref != "" {
		s = t.Ref
	}
	if t.List {
		s += "[]"
	}
	return s
}

type DefaultKind string

const (
	DefaultLiteral  DefaultKind = "literal"
	DefaultFunction DefaultKind = "function"
)

// Default: default(...) поля. Value — string/bool/json.Number-совместимая строка числа.
type Default struct {
	Kind  DefaultKind `json:"kind"`
	Value any         `json:"value,omitempty"`
	Func  string      `json:"func,omitempty"` // now, uuid, autoincrement
}

// Virtual — вычисляемое поле: исходная строка, разобранное выражение и имя резолвера.
type Virtual struct {
	Source     string   `json:"source"`
	Expr       Expr     `json:"expr"`
	ResultType TypeKind `json:"resultType"`
	Resolver   string   `json:"resolver"`
	DependsOn  []string `json:"dependsOn"`
}

type Cardinality string

const (
	OneToOne   Cardinality = "one-to-one"
	OneToMany  Cardinality = "one-to-many"
	ManyToOne  Cardinality = "many-to-one"
	ManyToMany Cardinality = "many-to-many"
)

type OnDelete string

const (
	OnDeleteRestrict OnDelete = "restrict"
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteSetNull  OnDelete = "setNull"
)

// RelationRef: метаданные связи на поле, кардинальность — с точки зрения владельца поля.
type RelationRef struct {
	Target      string      `json:"target"`
	TargetIndex int         `json:"targetIndex"` // индекс в Application.Entities
	Name        string      `json:"name"`
	Named       bool        `json:"named,omitempty"` // имя задано явно через @relation
	Cardinality Cardinality `json:"cardinality"`
	Inverse     string      `json:"inverse,omitempty"` // поле на целевой сущности
	OnDelete    OnDelete    `json:"onDelete"`
}

// Relation: каноническая запись связи, по одной на связь.
// Для one-to-many One — сторона "один", Many — сторона со ссылочным полем.
type Relation struct {
	Name      string      `json:"name"`
	Kind      Cardinality `json:"kind"`
	One       string      `json:"one"`
	Many      string      `json:"many"`
	OneField  string      `json:"oneField,omitempty"`
	ManyField string      `json:"manyField,omitempty"`
	SelfRef   bool        `json:"selfRef,omitempty"`
}

type Enum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type PageType string

const (
	PageTable   PageType = "table"
	PageForm    PageType = "form"
	PageDetails PageType = "details"
	PageCustom  PageType = "custom"
)

// PageTypes: закрытый набор типов страниц.
var PageTypes = []PageType{PageTable, PageForm, PageDetails, PageCustom}

type Page struct {
	Name        string   `json:"name"`
	Type        PageType `json:"type"`
	Route       string   `json:"route"`
	Entity      string   `json:"entity,omitempty"`
	Title       string   `json:"title"`
	Permissions []string `json:"permissions"` // пустой список — доступ без аутентификации
	Columns     []string `json:"columns,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	Component   string   `json:"component,omitempty"`
}

// Public: страница без ограничений доступа.
func (p *Page) Public() bool { return len(p.Permissions) == 0 }

type View struct {
	Name   string       `json:"name"`
	Source string       `json:"source"`
	Fields []*ViewField `json:"fields"`
}

// ViewField: либо ссылка на поле (Ref), либо выражение (Expr).
type ViewField struct {
	Name       string   `json:"name"`
	Ref        string   `json:"ref,omitempty"`
	Source     string   `json:"source,omitempty"`
	Expr       Expr     `json:"expr,omitempty"`
	ResultType TypeKind `json:"resultType"`
	Resolver   string   `json:"resolver"`
}

type Workflow struct {
	Name    string  `json:"name"`
	Trigger Trigger `json:"trigger"`
	Steps   []*Step `json:"steps"`
}

type Trigger struct {
	Event string `json:"event"`
}

type Step struct {
	Action string   `json:"action"`
	Inputs []*Input `json:"inputs"`
}

type InputKind string

const (
	InputLiteral InputKind = "literal"
	InputTrigger InputKind = "trigger"
	InputEnv     InputKind = "env"
)

// Input: вход шага. Порядок входов сохраняется как в исходнике.
type Input struct {
	Key   string    `json:"key"`
	Kind  InputKind `json:"kind"`
	Value any       `json:"value,omitempty"` // для literal
	Path  []string  `json:"path,omitempty"`  // для trigger: путь после "trigger"
	Env   string    `json:"env,omitempty"`
}

package dsl

// File: результат разбора одного или нескольких .dsl файлов; объявления в порядке исходника.
type File struct {
	Path  string
	Decls []Decl
}

// Decl: блок верхнего уровня.
type Decl interface {
	DeclKind() string // "entity", "page", ...
	DeclName() string
	DeclPos() Pos
}

type EntityDecl struct {
	Name   string
	Pos    Pos
	File   string
	Fields []*FieldDecl
}

type FieldDecl struct {
	Name       string
	Pos        Pos
	Type       TypeRef
	PrimaryKey bool
	Unique     bool
	Optional   bool
	Default    Value // nil если default(...) не задан
	Attrs      []*Attribute
	// Repeated: модификаторы, встреченные больше одного раза (ловит валидатор)
	Repeated []string
}

// TypeRef: "String", "User", "Post[]"
type TypeRef struct {
	Name string
	List bool
	Pos  Pos
}

// Attribute: @name(key: value, ...)
type Attribute struct {
	Name string
	Pos  Pos
	Args []*Property
}

// Arg ищет аргумент атрибута по ключу.
func (a *Attribute) Arg(key string) *Property {
	for _, p := range a.Args {
		if p.Key == key {
			return p
		}
	}
	return nil
}

type EnumDecl struct {
	Name   string
	Pos    Pos
	File   string
	Values []*EnumValue
}

type EnumValue struct {
	Name string
	Pos  Pos
}

type PageDecl struct {
	Name  string
	Pos   Pos
	File  string
	Props []*Property
}

type ViewDecl struct {
	Name  string
	Pos   Pos
	File  string
	Props []*Property
}

type WorkflowDecl struct {
	Name  string
	Pos   Pos
	File  string
	Props []*Property
	Steps []*StepDecl
}

type StepDecl struct {
	Action string
	Pos    Pos
	Inputs []*Property
}

// ConfigDecl: config { ... }, config auth { ... }, config integrations { ... }
type ConfigDecl struct {
	Name  string // "" для корневого блока
	Pos   Pos
	File  string
	Props []*Property
}

func (d *EntityDecl) DeclKind() string   { return "entity" }
func (d *EnumDecl) DeclKind() string     { return "enum" }
func (d *PageDecl) DeclKind() string     { return "page" }
func (d *ViewDecl) DeclKind() string     { return "view" }
func (d *WorkflowDecl) DeclKind() string { return "workflow" }
func (d *ConfigDecl) DeclKind() string   { return "config" }

func (d *EntityDecl) DeclName() string   { return d.Name }
func (d *EnumDecl) DeclName() string     { return d.Name }
func (d *PageDecl) DeclName() string     { return d.Name }
func (d *ViewDecl) DeclName() string     { return d.Name }
func (d *WorkflowDecl) DeclName() string { return d.Name }
func (d *ConfigDecl) DeclName() string   { return d.Name }

func (d *EntityDecl) DeclPos() Pos   { return d.Pos }
func (d *EnumDecl) DeclPos() Pos     { return d.Pos }
func (d *PageDecl) DeclPos() Pos     { return d.Pos }
func (d *ViewDecl) DeclPos() Pos     { return d.Pos }
func (d *WorkflowDecl) DeclPos() Pos { return d.Pos }
func (d *ConfigDecl) DeclPos() Pos   { return d.Pos }

// Property: key: value
type Property struct {
	Key   string
	Pos   Pos
	Value Value
}

// Lookup ищет первое свойство с ключом key.
func Lookup(props []*Property, key string) *Property {
	for _, p := range props {
		if p.Key == key {
			return p
		}
	}
	return nil
}

// Value: значение свойства или аргумента.
type Value interface {
	ValuePos() Pos
	valueNode()
}

type StringLit struct {
	Value string
	Pos   Pos
}

type NumberLit struct {
	Raw string // "-3.5" — как в исходнике, со знаком
	Pos Pos
}

type BoolLit struct {
	Value bool
	Pos   Pos
}

// Ident — голый идентификатор или путь через точку: ADMIN, User, trigger.user.email
type Ident struct {
	Path []string
	Pos  Pos
}

func (i *Ident) Name() string {
	if len(i.Path) == 0 {
		return ""
	}
	if len(i.Path) == 1 {
		return i.Path[0]
	}
	out := i.Path[0]
	for _, p := range i.Path[1:] {
		out += "." + p
	}
	return out
}

type ArrayLit struct {
	Elems []Value
	Pos   Pos
}

type ObjectLit struct {
	Props []*Property
	Pos   Pos
}

// EnvRef: env(VAR_NAME), косвенная ссылка на секрет
type EnvRef struct {
	Var string
	Pos Pos
}

// Call — функция в значении: now(), uuid()
type Call struct {
	Name string
	Args []Value
	Pos  Pos
}

func (v *StringLit) ValuePos() Pos { return v.Pos }
func (v *NumberLit) ValuePos() Pos { return v.Pos }
func (v *BoolLit) ValuePos() Pos   { return v.Pos }
func (v *Ident) ValuePos() Pos     { return v.Pos }
func (v *ArrayLit) ValuePos() Pos  { return v.Pos }
func (v *ObjectLit) ValuePos() Pos { return v.Pos }
func (v *EnvRef) ValuePos() Pos    { return v.Pos }
func (v *Call) ValuePos() Pos      { return v.Pos }

func (*StringLit) valueNode() {}
func (*NumberLit) valueNode() {}
func (*BoolLit) valueNode()   {}
func (*Ident) valueNode()     {}
func (*ArrayLit) valueNode()  {}
func (*ObjectLit) valueNode() {}
func (*EnvRef) valueNode()    {}
func (*Call) valueNode()      {}

// Describe: короткое имя вида значения для сообщений об ошибках.
func Describe(v Value) string {
	switch v.(type) {
	case *StringLit:
		return "string"
	case *NumberLit:
		return "number"
	case *BoolLit:
		return "boolean"
	case *Ident:
		return "identifier"
	case *ArrayLit:
		return "array"
	case *ObjectLit:
		return "object"
	case *EnvRef:
		return "env reference"
	case *Call:
		return "function call"
	default:
		return "value"
	}
}

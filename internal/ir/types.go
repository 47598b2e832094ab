package ir

// TypeKind: тег типа из фиксированного реестра.
type TypeKind string

const (
	TypeString   TypeKind = "String"
	TypeText     TypeKind = "Text"
	TypeInt      TypeKind = "Int"
	TypeDecimal  TypeKind = "Decimal"
	TypeBoolean  TypeKind = "Boolean"
	TypeDateTime TypeKind = "DateTime"
	TypeUUID     TypeKind = "UUID"
	TypeJSON     TypeKind = "JSON"
	TypeEnum     TypeKind = "Enum"
	TypePassword TypeKind = "Password"
	TypeRelation TypeKind = "Relation"
)

// scalarTypes: встроенные типы, которые можно написать в DSL напрямую.
// Enum пишется именем объявленного enum, связь — именем сущности.
var scalarTypes = map[string]TypeKind{
	"String":   TypeString,
	"Text":     TypeText,
	"Int":      TypeInt,
	"Decimal":  TypeDecimal,
	"Boolean":  TypeBoolean,
	"DateTime": TypeDateTime,
	"UUID":     TypeUUID,
	"JSON":     TypeJSON,
	"Password": TypePassword,
}

// ScalarType возвращает встроенный тип по имени из DSL.
func ScalarType(name string) (TypeKind, bool) {
	k, ok := scalarTypes[name]
	return k, ok
}

// IsBuiltin: имя занято реестром (включая сам "Enum"), объявлять сущность с таким именем нельзя.
func IsBuiltin(name string) bool {
	if _, ok := scalarTypes[name]; ok {
		return true
	}
	return name == string(TypeEnum)
}

// IsNumeric: тип участвует в арифметике выражений.
func IsNumeric(k TypeKind) bool { return k == TypeInt || k == TypeDecimal }

// IsTextual: тип участвует в конкатенации.
func IsTextual(k TypeKind) bool {
	switch k {
	case TypeString, TypeText, TypeUUID, TypeEnum, TypeDateTime:
		return true
	}
	return false
}

// DefaultFuncs: функции, допустимые в default(...), и типы, к которым они применимы.
var DefaultFuncs = map[string][]TypeKind{
	"now":           {TypeDateTime},
	"uuid":          {TypeUUID, TypeString},
	"autoincrement": {TypeInt},
}

// ReservedRoles: словарь ролей, доступный без объявления enum Role.
var ReservedRoles = []string{"ADMIN", "USER", "AUTHENTICATED", "PUBLIC"}

// RoleEnumName: enum с этим именем пополняет набор ролей.
const RoleEnumName = "Role"

package validate

import (
	"fmt"
	"sort"
	"strings"

	"stalmer/internal/dsl"
)

// Коды ошибок валидатора.
const (
	CodeReservedName      = "reserved_type_name"
	CodeDuplicateName     = "duplicate_name"
	CodeDuplicateType     = "duplicate_type_name"
	CodeDuplicateField    = "duplicate_field"
	CodeDuplicatePK       = "duplicate_primary_key"
	CodeDuplicateValue    = "duplicate_enum_value"
	CodeDuplicateModifier = "duplicate_modifier"
	CodeDuplicateAttr     = "duplicate_attribute"
	CodeDuplicateProperty = "duplicate_property"
	CodeDuplicateConfig   = "duplicate_config"

	CodeUnknownType      = "unknown_type"
	CodeBareEnum         = "enum_type_bare"
	CodeListNotRelation  = "list_not_relation"
	CodePrimaryKey       = "primary_key_invalid"
	CodeDefaultMismatch  = "default_type_mismatch"
	CodeDefaultFunc      = "default_func_unknown"
	CodeUnknownAttr      = "unknown_attribute"
	CodeUnknownAttrArg   = "unknown_attribute_arg"
	CodeVirtualFrom      = "virtual_from_required"
	CodeVirtualExpr      = "virtual_expr_invalid"
	CodeVirtualModifier  = "virtual_modifier_invalid"
	CodeVirtualType      = "virtual_type_mismatch"
	CodeVirtualCycle     = "virtual_cycle"
	CodeUnknownFieldRef  = "unknown_field_ref"
	CodePropertyType     = "property_type"
	CodeUnknownProperty  = "unknown_property"
	CodeMisplacedProp    = "page_prop_misplaced"
	CodeEmptyEnum        = "enum_empty"
	CodeRelationAttr     = "relation_attr_on_scalar"
	CodeRelationAmbig    = "relation_ambiguous"
	CodeRelationNoPK     = "relation_target_no_pk"
	CodeOnDeleteUnknown  = "on_delete_unknown"
	CodeRequiredSetNull  = "required_conflicts_on_delete"
	CodePageType         = "page_type_unknown"
	CodePageTypeMissing  = "page_type_missing"
	CodePageEntity       = "page_entity_unresolved"
	CodePageEntityNeeded = "page_entity_missing"
	CodePageComponent    = "page_component_missing"
	CodePageRoute        = "page_route_invalid"
	CodePageRouteDup     = "page_route_duplicate"
	CodePageField        = "page_field_unknown"
	CodeRoleUnknown      = "role_unknown"
	CodeViewSource       = "view_source_unresolved"
	CodeViewSourceNeeded = "view_source_missing"
	CodeViewFields       = "view_fields_missing"
	CodeViewField        = "view_field_invalid"
	CodeTriggerMissing   = "workflow_trigger_missing"
	CodeStepsEmpty       = "workflow_steps_empty"
	CodeTriggerPath      = "trigger_path_invalid"
	CodeWorkflowInput    = "workflow_input_invalid"
	CodeConfigBlock      = "config_block_unknown"
	CodeDatabase         = "db_unknown"
	CodeProviderMissing  = "provider_missing"
	CodeProviderUnknown  = "provider_unknown"
	CodeConfigRequired   = "config_prop_required"
	CodeConfigUnknown    = "config_prop_unknown"
	CodeUserEntity       = "user_entity_unresolved"
	CodeNameCollision    = "generated_name_collision"
	CodePageEntityNoPK   = "page_entity_no_pk"
)

// SemanticError: одно нарушение с позицией и блоком, в котором оно найдено.
type SemanticError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	File    string  `json:"file,omitempty"`
	Pos     dsl.Pos `json:"pos"`
	Block   string  `json:"block"` // entity, page, config, ...
	Name    string  `json:"name"`  // имя блока
}

func (e *SemanticError) Error() string {
	loc := e.Pos.String()
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s [%s]", loc, e.Message, e.Code)
}

// SemanticErrors: все нарушения прохода, отсортированные по позиции.
type SemanticErrors []*SemanticError

func (es SemanticErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d semantic errors:", len(es))
	for _, e := range es {
		b.WriteString("\n  ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// Codes: коды в порядке ошибок, удобно для тестов и логов.
func (es SemanticErrors) Codes() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Code
	}
	return out
}

func (es SemanticErrors) sort() {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].File != es[j].File {
			return es[i].File < es[j].File
		}
		return es[i].Pos.Offset < es[j].Pos.Offset
	})
}

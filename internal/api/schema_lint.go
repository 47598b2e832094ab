package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"stalmer/internal/ir"
)

// SchemaIssue: предупреждение о корректной, но подозрительной модели.
type SchemaIssue struct {
	Block   string `json:"block"` // entity | page
	Name    string `json:"name"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint не блокирует генерацию; блокирующие проверки живут в валидаторе.
func Lint(app *ir.Application) []SchemaIssue {
	issues := []SchemaIssue{}

	for _, e := range app.Entities {
		if e.PrimaryKey == "" {
			issues = append(issues, SchemaIssue{
				Block:   "entity",
				Name:    e.Name,
				Code:    "entity_without_pk",
				Message: "entity has no primary key; only list and create endpoints are generated",
			})
		}
		for _, f := range e.Fields {
			if f.Unique && f.Optional {
				issues = append(issues, SchemaIssue{
					Block:   "entity",
					Name:    e.Name,
					Field:   f.Name,
					Code:    "unique_optional",
					Message: "optional unique field allows many empty values",
				})
			}
			if r := f.Relation; r != nil && f.Type.List && r.Inverse == "" && r.Cardinality == ir.OneToMany {
				issues = append(issues, SchemaIssue{
					Block:   "entity",
					Name:    e.Name,
					Field:   f.Name,
					Code:    "list_without_inverse",
					Message: fmt.Sprintf("list of %s has no inverse field; a hidden foreign key column is generated on %s", f.Type.Ref, f.Type.Ref),
				})
			}
		}
	}

	if app.Config.Auth == nil {
		for _, p := range app.Pages {
			if !p.Public() {
				issues = append(issues, SchemaIssue{
					Block:   "page",
					Name:    p.Name,
					Code:    "permissions_without_auth",
					Message: "page declares permissions but no auth provider is configured",
				})
			}
		}
	}
	return issues
}

func LintHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Lint(s.App()))
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stalmer/internal/dsl"
	"stalmer/internal/validate"
)

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// compileErrorBody раскладывает ошибку компиляции для ответа клиенту.
// ok=false — ошибка не из DSL (файловая система и т.п.).
func compileErrorBody(err error) (gin.H, bool) {
	var sem validate.SemanticErrors
	if errors.As(err, &sem) {
		return gin.H{"error": "validation failed", "issues": sem}, true
	}
	var lexErr *dsl.LexError
	var synErr *dsl.SyntaxError
	if errors.As(err, &lexErr) || errors.As(err, &synErr) {
		return gin.H{"error": "syntax error", "details": err.Error()}, true
	}
	return gin.H{"error": "reload failed", "details": err.Error()}, false
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminReloadHandler перекомпилирует исходники и атомарно подменяет модель.
// При ошибках компиляции текущая модель остаётся.
func AdminReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.reload == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "reload is not configured"})
			return
		}
		app, err := s.reload(c.Request.Context())
		if err != nil {
			body, user := compileErrorBody(err)
			status := http.StatusInternalServerError
			if user {
				status = http.StatusBadRequest
			}
			c.JSON(status, body)
			return
		}
		issues := Lint(app)
		s.swap(app)
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"app":      app.Name,
			"entities": len(app.Entities),
			"pages":    len(app.Pages),
			"warnings": issues,
		})
	}
}

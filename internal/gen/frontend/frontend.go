// Package frontend генерирует клиентское приложение по API-схеме бэкенда.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"

	"stalmer/internal/gen"
	"stalmer/internal/gen/backend"
	"stalmer/internal/ir"
	"stalmer/internal/logging"
)

const Name = "frontend"

type Generator struct{}

func New() *Generator { return &Generator{} }

func (*Generator) Name() string        { return Name }
func (*Generator) DependsOn() []string { return []string{backend.Name} }

// Generate читает api/schema.json из дерева бэкенда; сам IR для маршрутов не нужен.
func (*Generator) Generate(ctx context.Context, req *gen.Request) (gen.FileTree, error) {
	raw, ok := req.Upstream[backend.Name][backend.SchemaPath]
	if !ok {
		return nil, fmt.Errorf("%s: %s not found in upstream output", backend.Name, backend.SchemaPath)
	}
	var schema backend.APISchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode %s: %w", backend.SchemaPath, err)
	}

	tree := gen.FileTree{
		"src/routes.ts":     renderRoutes(&schema),
		"src/api/client.ts": renderClient(&schema),
	}
	for _, p := range schema.Pages {
		// карточке нужен get<Entity>; без первичного ключа бэкенд его не объявляет
		if p.Type == ir.PageDetails && !hasOperation(&schema, p.Entity, "get"+ir.Pascal(p.Entity)) {
			return nil, fmt.Errorf("page %s: resource %s has no get operation", p.Name, p.Entity)
		}
		tree["src/pages/"+p.Name+".tsx"] = renderPage(&schema, p)
	}
	logging.FromContext(ctx).With("generator", Name).Debug("Frontend rendered.", "pages", len(schema.Pages), "resources", len(schema.Resources))
	return tree, nil
}

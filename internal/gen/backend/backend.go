// Package backend генерирует серверную часть: схему БД, API-схему и Go-заготовки.
package backend

import (
	"context"
	"fmt"

	"stalmer/internal/gen"
	"stalmer/internal/logging"
)

const (
	Name = "backend"
	// DDLPath: схема БД внутри дерева бэкенда.
	DDLPath = "schema.sql"
)

type Generator struct{}

func New() *Generator { return &Generator{} }

func (*Generator) Name() string        { return Name }
func (*Generator) DependsOn() []string { return nil }

func (*Generator) Generate(ctx context.Context, req *gen.Request) (gen.FileTree, error) {
	app := req.App
	logger := logging.FromContext(ctx).With("generator", Name)

	ddl, err := DDL(app, req.Options.Database)
	if err != nil {
		return nil, fmt.Errorf(DDLPath+": %w", err)
	}
	tables, err := planStorage(app)
	if err != nil {
		return nil, err
	}
	schema, err := renderAPISchema(BuildAPISchema(app, req.Options))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SchemaPath, err)
	}
	models, err := renderModels(app, tables)
	if err != nil {
		return nil, fmt.Errorf("models.go: %w", err)
	}
	resolvers, err := renderResolvers(app)
	if err != nil {
		return nil, fmt.Errorf("resolvers.go: %w", err)
	}
	workflows, err := renderWorkflows(app)
	if err != nil {
		return nil, fmt.Errorf("workflows.go: %w", err)
	}

	logger.Debug("Backend rendered.", "tables", len(tables), "database", req.Options.Database)
	return gen.FileTree{
		DDLPath:        []byte(ddl),
		SchemaPath:     schema,
		"models.go":    models,
		"resolvers.go": resolvers,
		"workflows.go": workflows,
	}, nil
}

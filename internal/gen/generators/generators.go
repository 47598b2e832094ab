// Package generators собирает статический реестр встроенных генераторов.
package generators

import (
	"context"

	"stalmer/internal/gen"
	"stalmer/internal/gen/backend"
	"stalmer/internal/gen/frontend"
	"stalmer/internal/gen/infra"
	"stalmer/internal/ir"
)

// Default: backend, frontend (читает API-схему бэкенда), infra.
func Default() *gen.Registry {
	r := gen.NewRegistry()
	r.Register(backend.New())
	r.Register(frontend.New())
	r.Register(infra.New())
	return r
}

// Generate запускает встроенные генераторы.
func Generate(ctx context.Context, app *ir.Application, outputRoot string, enabled []string, opts gen.Options) (*gen.Report, error) {
	return Default().Generate(ctx, app, outputRoot, enabled, opts)
}

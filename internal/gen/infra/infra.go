// Package infra генерирует окружение запуска: docker-compose, .env.example и terraform.
package infra

import (
	"context"
	"fmt"
	"sort"

	"github.com/joho/godotenv"

	"stalmer/internal/gen"
	"stalmer/internal/ir"
	"stalmer/internal/logging"
)

const Name = "infra"

type Generator struct{}

func New() *Generator { return &Generator{} }

func (*Generator) Name() string        { return Name }
func (*Generator) DependsOn() []string { return nil }

func (*Generator) Generate(ctx context.Context, req *gen.Request) (gen.FileTree, error) {
	compose, err := renderCompose(req.App, req.Options)
	if err != nil {
		return nil, fmt.Errorf("docker-compose.yml: %w", err)
	}
	env, err := renderEnv(req.App, req.Options)
	if err != nil {
		return nil, fmt.Errorf(".env.example: %w", err)
	}
	tf := renderTerraform(req.App, req.Options)

	logging.FromContext(ctx).With("generator", Name).Debug("Infra rendered.", "database", req.Options.Database, "env_vars", len(EnvVars(req.App, req.Options)))
	return gen.FileTree{
		"docker-compose.yml": compose,
		".env.example":       env,
		"terraform/main.tf":  tf,
	}, nil
}

const databaseURLVar = "DATABASE_URL"

// EnvVars: все переменные окружения, на которые ссылается приложение, по алфавиту.
func EnvVars(app *ir.Application, opts gen.Options) []string {
	set := map[string]bool{databaseURLVar: true}
	if opts.Database == ir.PostgreSQL {
		set["POSTGRES_PASSWORD"] = true
	}
	for _, name := range app.Config.Secrets() {
		set[name] = true
	}
	for _, w := range app.Workflows {
		for _, st := range w.Steps {
			for _, in := range st.Inputs {
				if in.Kind == ir.InputEnv {
					set[in.Env] = true
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func renderEnv(app *ir.Application, opts gen.Options) ([]byte, error) {
	vars := map[string]string{}
	for _, name := range EnvVars(app, opts) {
		vars[name] = ""
	}
	vars[databaseURLVar] = databaseURL(app, opts)
	s, err := godotenv.Marshal(vars)
	if err != nil {
		return nil, err
	}
	return []byte("# " + headerText + "\n" + s + "\n"), nil
}

const headerText = "Code generated by stalmer. DO NOT EDIT outside custom regions."

func databaseURL(app *ir.Application, opts gen.Options) string {
	db := ir.Snake(app.Name)
	if opts.Database == ir.PostgreSQL {
		return fmt.Sprintf("postgres://%s:${POSTGRES_PASSWORD}@db:5432/%s?sslmode=disable", db, db)
	}
	return "file:/data/" + db + ".db"
}

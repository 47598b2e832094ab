package infra

import (
	"context"
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"stalmer/internal/compiler"
	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

const pgApp = `
config { name: "Shop Front", db: postgresql }
entity User { id: UUID primaryKey, email: String }
config auth { provider: jwt, userEntity: User }
config integrations {
  email: { provider: sendgrid, apiKey: env(SENDGRID_API_KEY) }
  monitoring: { provider: datadog, apiKey: env(DD_API_KEY), site: "datadoghq.eu" }
}
workflow Welcome {
  trigger: "user.created"
  step notify { webhook: env(SLACK_WEBHOOK_URL), to: trigger.user.email }
}
`

func generate(t *testing.T, src string) gen.FileTree {
	t.Helper()
	app, err := compiler.Compile("app.dsl", src, compiler.Options{})
	require.NoError(t, err)
	opts, err := gen.Options{}.Resolve(app)
	require.NoError(t, err)
	tree, err := New().Generate(context.Background(), &gen.Request{App: app, Options: opts})
	require.NoError(t, err)
	return tree
}

func TestCompose_Postgres(t *testing.T) {
	tree := generate(t, pgApp)

	var doc struct {
		Name     string `yaml:"name"`
		Services map[string]struct {
			Image       string            `yaml:"image"`
			Build       string            `yaml:"build"`
			Environment map[string]string `yaml:"environment"`
			DependsOn   []string          `yaml:"depends_on"`
		} `yaml:"services"`
		Volumes map[string]any `yaml:"volumes"`
	}
	require.NoError(t, yaml.Unmarshal(tree["docker-compose.yml"], &doc))

	assert.Equal(t, "shop-front", doc.Name)
	assert.ElementsMatch(t, []string{"backend", "frontend", "db", "datadog-agent"}, keys(doc.Services))
	assert.Equal(t, "postgres:16-alpine", doc.Services["db"].Image)
	assert.Equal(t, "shop_front", doc.Services["db"].Environment["POSTGRES_DB"])
	assert.Equal(t, []string{"db", "datadog-agent"}, doc.Services["backend"].DependsOn)
	assert.Equal(t, "postgres://shop_front:${POSTGRES_PASSWORD}@db:5432/shop_front?sslmode=disable",
		doc.Services["backend"].Environment["DATABASE_URL"])
	assert.Equal(t, "${DD_API_KEY}", doc.Services["datadog-agent"].Environment["DD_API_KEY"])
	assert.Equal(t, "datadoghq.eu", doc.Services["datadog-agent"].Environment["DD_SITE"])
	assert.Contains(t, doc.Volumes, "db-data")
}

func TestCompose_SQLiteWithoutMonitoring(t *testing.T) {
	tree := generate(t, `entity Note { id: Int primaryKey, body: Text }`)

	var doc struct {
		Services map[string]map[string]any `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal(tree["docker-compose.yml"], &doc))
	assert.ElementsMatch(t, []string{"backend", "frontend"}, keys(doc.Services))
	assert.Equal(t, []any{"./data:/data"}, doc.Services["backend"]["volumes"])
	assert.Equal(t, map[string]any{"DATABASE_URL": "file:/data/app.db"}, doc.Services["backend"]["environment"])
}

func TestEnvExample(t *testing.T) {
	tree := generate(t, pgApp)
	raw := string(tree[".env.example"])
	require.True(t, strings.HasPrefix(raw, "# Code generated by stalmer."))

	vars, err := godotenv.Unmarshal(raw)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"DATABASE_URL", "DD_API_KEY", "JWT_SECRET", "POSTGRES_PASSWORD", "SENDGRID_API_KEY", "SLACK_WEBHOOK_URL",
	}, keys(vars))
	assert.Equal(t, "", vars["SENDGRID_API_KEY"])

	app, err := compiler.Compile("app.dsl", pgApp, compiler.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"DATABASE_URL", "DD_API_KEY", "JWT_SECRET", "POSTGRES_PASSWORD", "SENDGRID_API_KEY", "SLACK_WEBHOOK_URL"},
		EnvVars(app, gen.Options{Database: ir.PostgreSQL}))
}

func TestTerraform(t *testing.T) {
	pg := generate(t, pgApp)["terraform/main.tf"]
	_, diags := hclwrite.ParseConfig(pg, "main.tf", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())

	out := string(pg)
	assert.Contains(t, out, `resource "postgresql_database" "shop_front" {`)
	assert.Contains(t, out, `provider "postgresql" {`)
	assert.Regexp(t, `password\s+= var\.db_password`, out)
	assert.Contains(t, out, `variable "sendgrid_api_key" {`)
	assert.Regexp(t, `sensitive\s+= true`, out)
	assert.Regexp(t, `source\s+= "cyrilgdn/postgresql"`, out)

	lite := string(generate(t, `entity Note { id: Int primaryKey }`)["terraform/main.tf"])
	assert.Contains(t, lite, `resource "local_file" "app_data" {`)
	assert.NotContains(t, lite, "postgresql")
}

func TestGenerate_Deterministic(t *testing.T) {
	a, b := generate(t, pgApp), generate(t, pgApp)
	for _, p := range a.Paths() {
		assert.Equal(t, string(a[p]), string(b[p]), p)
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

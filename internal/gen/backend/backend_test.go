package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stalmer/internal/compiler"
	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

func compile(t *testing.T, src string) *ir.Application {
	t.Helper()
	app, err := compiler.Compile("app.dsl", src, compiler.Options{DefaultName: "demo"})
	require.NoError(t, err)
	return app
}

const blog = `
enum Status { DRAFT, PUBLISHED }
entity User { id: UUID primaryKey default(uuid()), email: String unique, password: Password }
entity Post {
  id: UUID primaryKey default(uuid())
  title: String
  status: Status default(DRAFT)
  views: Int default(0)
  createdAt: DateTime default(now())
  author: User
}
page Posts { type: table, entity: Post, permissions: ["ADMIN"] }
`

func TestDDL_SQLite(t *testing.T) {
	ddl, err := DDL(compile(t, blog), ir.SQLite)
	require.NoError(t, err)

	assert.Contains(t, ddl, `create table if not exists "users" (`)
	assert.Contains(t, ddl, `"id" text primary key default (lower(hex(randomblob(16))))`)
	assert.Contains(t, ddl, `create unique index if not exists "users_email_uq" on "users" ("email");`)
	assert.Contains(t, ddl, `"status" text not null default 'DRAFT' check ("status" in ('DRAFT', 'PUBLISHED'))`)
	assert.Contains(t, ddl, `"views" integer not null default 0`)
	assert.Contains(t, ddl, `"created_at" text not null default current_timestamp`)
	assert.Contains(t, ddl, `"author_id" text not null references "users" ("id") on delete restrict`)
	assert.NotContains(t, ddl, "alter table")
	assert.True(t, strings.HasSuffix(ddl, "-- stalmer:custom:begin schema\n-- stalmer:custom:end schema\n"))
}

func TestDDL_PostgresPhases(t *testing.T) {
	ddl, err := DDL(compile(t, blog), ir.PostgreSQL)
	require.NoError(t, err)

	assert.Contains(t, ddl, `create type "status" as enum ('DRAFT', 'PUBLISHED');`)
	assert.Contains(t, ddl, `"status" "status" not null default 'DRAFT'`)
	assert.Contains(t, ddl, `"id" uuid primary key default gen_random_uuid()`)
	assert.Contains(t, ddl, `"created_at" timestamp with time zone not null default now()`)

	fk := `alter table "posts" add constraint "posts_author_id_fk" foreign key ("author_id") references "users" ("id") on delete restrict;`
	require.Contains(t, ddl, fk)
	assert.Greater(t, strings.Index(ddl, fk), strings.LastIndex(ddl, "create table"), "foreign keys come after all tables")
}

func TestDDL_JSONDefaults(t *testing.T) {
	app := compile(t, `
entity Setting {
  id: Int primaryKey
  label: JSON default("hi")
  flags: JSON default({ beta: true, tags: ["a", "b"] })
  max: JSON default(10)
  note: String default("it's")
}`)
	lite, err := DDL(app, ir.SQLite)
	require.NoError(t, err)
	assert.Contains(t, lite, `"label" text not null default '"hi"'`)
	assert.Contains(t, lite, `"flags" text not null default '{"beta":true,"tags":["a","b"]}'`)
	assert.Contains(t, lite, `"max" text not null default '10'`)
	assert.Contains(t, lite, `"note" text not null default 'it''s'`)

	pg, err := DDL(app, ir.PostgreSQL)
	require.NoError(t, err)
	assert.Contains(t, pg, `"label" jsonb not null default '"hi"'`)
	assert.Contains(t, pg, `"max" jsonb not null default '10'`)
}

func TestDDL_Relations(t *testing.T) {
	app := compile(t, `
entity User {
  id: UUID primaryKey
  profile: Profile optional
  groups: Group[]
}
entity Profile { id: UUID primaryKey, user: User }
entity Post {
  id: Int primaryKey default(autoincrement())
  author: User @relation(name: "Authored", onDelete: cascade)
  reviewer: User optional @relation(name: "Reviewed", onDelete: setNull)
}
entity Group { id: UUID primaryKey, members: User[] }
entity Category {
  id: Int primaryKey
  parent: Category optional @relation(name: "Tree")
  children: Category[] @relation(name: "Tree")
}
`)

	sq, err := DDL(app, ir.SQLite)
	require.NoError(t, err)
	assert.Contains(t, sq, `"profile_id" text references "profiles" ("id") on delete restrict`)
	assert.Contains(t, sq, `create unique index if not exists "users_profile_id_uq" on "users" ("profile_id");`)
	assert.Contains(t, sq, `"id" integer primary key autoincrement`)
	assert.Contains(t, sq, `"author_id" text not null references "users" ("id") on delete cascade`)
	assert.Contains(t, sq, `"reviewer_id" text references "users" ("id") on delete set null`)
	assert.Contains(t, sq, `"parent_id" integer references "categories" ("id") on delete restrict`)
	assert.Contains(t, sq, `create table if not exists "group_to_user" (`)
	assert.Contains(t, sq, `primary key ("user_id", "group_id")`)
	assert.Contains(t, sq, `"group_id" text not null references "groups" ("id") on delete cascade`)

	pg, err := DDL(app, ir.PostgreSQL)
	require.NoError(t, err)
	assert.Contains(t, pg, `"id" bigint generated by default as identity primary key`)
	assert.Contains(t, pg, `alter table "group_to_user" add constraint "group_to_user_user_id_fk"`)
}

func TestDDL_ListWithoutInverse(t *testing.T) {
	app := compile(t, `
entity Author { id: UUID primaryKey, books: Book[] }
entity Book { id: UUID primaryKey, title: String }
`)
	ddl, err := DDL(app, ir.SQLite)
	require.NoError(t, err)
	assert.Contains(t, ddl, `"author_books_id" text references "authors" ("id") on delete restrict`)

	app = compile(t, `
entity Shelf { label: String, books: Book[] }
entity Book { id: UUID primaryKey }
`)
	_, err = DDL(app, ir.SQLite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Shelf has no primary key")
}

func TestPlural(t *testing.T) {
	for in, want := range map[string]string{
		"user": "users", "category": "categories", "day": "days", "address": "addresses",
		"box": "boxes", "news": "news", "branch": "branches", "user_profile": "user_profiles",
	} {
		assert.Equal(t, want, plural(in), in)
	}
}

func TestAPISchema(t *testing.T) {
	app := compile(t, blog)
	s := BuildAPISchema(app, gen.Options{Database: ir.SQLite, Auth: gen.AuthNone})

	require.Len(t, s.Resources, 2)
	users := s.Resources[0]
	assert.Equal(t, "/api/users", users.Path)
	require.Len(t, users.Operations, 5)
	assert.Equal(t, "/api/users/{userId}", users.Operations[2].Path)
	assert.Equal(t, "getUser", users.Operations[2].ID)
	pw := users.Fields[2]
	assert.Equal(t, "password", pw.Name)
	assert.True(t, pw.WriteOnly)
	assert.True(t, users.Fields[0].ReadOnly, "generated key is read-only")

	author := s.Resources[1].Fields[5]
	assert.Equal(t, ir.ManyToOne, author.Cardinality)
	assert.Equal(t, "User", author.Ref)

	require.Len(t, s.Pages, 1)
	assert.Equal(t, "/api/posts", s.Pages[0].Resource)
	assert.Equal(t, []string{"ADMIN"}, s.Pages[0].Permissions)

	raw, err := renderAPISchema(s)
	require.NoError(t, err)
	var back APISchema
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "demo", back.Name)
}

func TestRenderResolvers(t *testing.T) {
	app := compile(t, `
entity Person {
  id: Int primaryKey
  first: String
  last: String
  price: Decimal
  qty: Int
  fullName: String @virtual(from: "first + ' ' + last")
  total: Decimal @virtual(from: "price * qty")
  label: String @virtual(from: "'#' + qty")
}
view PersonCard { source: Person, fields: { name: fullName, cost: "total + 1.5" } }
`)
	src, err := renderResolvers(app)
	require.NoError(t, err)
	out := string(src)

	assert.Contains(t, out, "func resolvePersonFullName(r *Person) (string, error) {")
	assert.Contains(t, out, "v := r.Price * float64(r.Qty)")
	assert.Contains(t, out, `v := "#" + strconv.FormatInt(r.Qty, 10)`)
	assert.Contains(t, out, "func resolvePersonCardCost(r *Person) (float64, error) {")
	assert.Contains(t, out, "v := r.Total + 1.5")
	assert.Contains(t, out, "\t// stalmer:custom:begin resolvePersonTotal\n\t// stalmer:custom:end resolvePersonTotal\n")
	assert.NotContains(t, out, "resolvePersonCardName", "field references need no resolver")
	assert.Contains(t, out, `"strconv"`)

	models, err := renderModels(app, mustPlan(t, app))
	require.NoError(t, err)
	assert.Regexp(t, `FullName\s+string\s+`+"`"+`json:"fullName" db:"-"`+"`", string(models))
	assert.Regexp(t, `type PersonCard struct \{\n\s+Name\s+string`, string(models))
}

func mustPlan(t *testing.T, app *ir.Application) []*table {
	t.Helper()
	tables, err := planStorage(app)
	require.NoError(t, err)
	return tables
}

func TestRenderModels(t *testing.T) {
	app := compile(t, blog)
	src, err := renderModels(app, mustPlan(t, app))
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, "type Status string")
	assert.Regexp(t, `StatusDraft\s+Status = "DRAFT"`, out)
	assert.Regexp(t, `AuthorID\s+string\s+`+"`"+`json:"authorId" db:"author_id"`+"`", out)
	assert.Regexp(t, `CreatedAt\s+time\.Time`, out)
	assert.Regexp(t, `Status\s+Status\s+`, out)
	assert.Contains(t, out, `"time"`)
}

func TestRenderWorkflows(t *testing.T) {
	app := compile(t, `
entity User { id: UUID primaryKey, email: String }
workflow Welcome {
  trigger: "user.created"
  step sendEmail { to: trigger.user.email, template: "welcome", key: env(SENDGRID_API_KEY), retries: 3 }
  step audit { tags: [signup, "email"] }
}
`)
	src, err := renderWorkflows(app)
	require.NoError(t, err)
	out := string(src)

	assert.Regexp(t, `Name: "Welcome",\s+Event: "user.created",\s+Run: handleWelcome`, out)
	assert.Contains(t, out, "func handleWelcome(ctx context.Context, ev Event) error {")
	assert.Regexp(t, `"to":\s+lookup\(ev\.Payload, "user", "email"\),`, out)
	assert.Regexp(t, `"key":\s+os\.Getenv\("SENDGRID_API_KEY"\),`, out)
	assert.Regexp(t, `"retries":\s+3,`, out)
	assert.Contains(t, out, `"tags": []any{"signup", "email"},`)
	assert.Contains(t, out, "// stalmer:custom:begin welcome.step1")
	assert.Contains(t, out, "// stalmer:custom:begin welcome.step2")
	assert.Contains(t, out, `if err := dispatch(ctx, "audit", in); err != nil {`)
}

func TestGenerator_DeterministicAndPreservesRegions(t *testing.T) {
	app := compile(t, blog+`
entity Invoice { id: Int primaryKey, net: Decimal, tax: Decimal, gross: Decimal @virtual(from: "net + tax") }
`)
	reg := gen.NewRegistry()
	reg.Register(New())
	ctx := context.Background()

	first, second := t.TempDir(), t.TempDir()
	for _, root := range []string{first, second} {
		report, err := reg.Generate(ctx, app, root, nil, gen.Options{})
		require.NoError(t, err)
		require.True(t, report.OK(), "%v", report.Err())
	}
	for _, p := range []string{"schema.sql", SchemaPath, "models.go", "resolvers.go", "workflows.go"} {
		a, err := os.ReadFile(filepath.Join(first, Name, p))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, Name, p))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), p)
	}

	path := filepath.Join(first, Name, "resolvers.go")
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	custom := strings.Replace(string(src),
		"\t// stalmer:custom:begin resolveInvoiceGross\n",
		"\t// stalmer:custom:begin resolveInvoiceGross\n\tv = v * 1.01\n", 1)
	require.NotEqual(t, string(src), custom)
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	report, err := reg.Generate(ctx, app, first, nil, gen.Options{})
	require.NoError(t, err)
	require.True(t, report.OK())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, string(got))
}

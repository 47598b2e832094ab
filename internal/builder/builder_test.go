package builder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
	"stalmer/internal/validate"
)

func build(t *testing.T, src string, opts Options) *ir.Application {
	t.Helper()
	f, err := dsl.ParseSource("app.dsl", src)
	require.NoError(t, err)
	c, err := validate.Validate(f, validate.Options{})
	require.NoError(t, err)
	return Build(c, opts)
}

const example = `
entity User { id: UUID primaryKey, email: String unique }
entity Post { id: UUID primaryKey, author: User }
page Posts { type: table, entity: Post, permissions: ["ADMIN"] }
`

func TestBuild_ExampleApplication(t *testing.T) {
	app := build(t, example, Options{})

	require.Len(t, app.Entities, 2)
	assert.Equal(t, "User", app.Entities[0].Name)
	assert.Equal(t, "Post", app.Entities[1].Name)
	assert.Equal(t, "id", app.Entities[0].PrimaryKey)

	author := app.Entity("Post").Field("author")
	require.NotNil(t, author)
	require.NotNil(t, author.Relation)
	assert.Equal(t, ir.FieldType{Kind: ir.TypeRelation, Ref: "User"}, author.Type)
	assert.Equal(t, "User", author.Relation.Target)
	assert.Equal(t, 0, author.Relation.TargetIndex)
	assert.Equal(t, ir.ManyToOne, author.Relation.Cardinality)
	assert.Equal(t, "PostToUser", author.Relation.Name)
	assert.Equal(t, ir.OnDeleteRestrict, author.Relation.OnDelete)

	// с точки зрения User связь one-to-many
	require.Len(t, app.Relations, 1)
	rel := app.Relations[0]
	assert.Equal(t, ir.OneToMany, rel.Kind)
	assert.Equal(t, "User", rel.One)
	assert.Equal(t, "Post", rel.Many)
	assert.Equal(t, "author", rel.ManyField)

	require.Len(t, app.Pages, 1)
	page := app.Pages[0]
	assert.Equal(t, "Post", page.Entity)
	assert.Equal(t, []string{"ADMIN"}, page.Permissions)
	assert.Equal(t, "/posts", page.Route)
	assert.Equal(t, []string{"id", "author"}, page.Columns)

	assert.Equal(t, ir.SQLite, app.Config.Database)
	assert.Equal(t, DefaultAppName, app.Name)
	assert.Nil(t, app.Config.Auth)
}

func TestBuild_Deterministic(t *testing.T) {
	src := example + `
enum Role { EDITOR }
view PostCard { source: Post, fields: { who: author, label: "'#' + id" } }
workflow Notify { trigger: "post.created"  step email { to: trigger.post.author, meta: { a: 1, b: [x, "y"] } } }
`
	first, err := json.Marshal(build(t, src, Options{}))
	require.NoError(t, err)
	second, err := json.Marshal(build(t, src, Options{}))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestBuild_Defaults(t *testing.T) {
	app := build(t, `
entity Account {
  id: Int primaryKey default(autoincrement())
  login: String
  password: Password
  balance: Decimal default(10.50)
  active: Boolean default(true)
}
page AccountList { type: table, entity: Account }
page NewAccount { type: form, entity: Account, title: "Create account" }
page Stats { type: custom, component: StatsBoard, route: "/stats/all" }
`, Options{DefaultName: "bank"})

	assert.Equal(t, "bank", app.Name)

	acc := app.Entity("Account")
	assert.Equal(t, &ir.Default{Kind: ir.DefaultFunction, Func: "autoincrement"}, acc.Field("id").Default)
	assert.Equal(t, &ir.Default{Kind: ir.DefaultLiteral, Value: json.Number("10.50")}, acc.Field("balance").Default)
	assert.Equal(t, &ir.Default{Kind: ir.DefaultLiteral, Value: true}, acc.Field("active").Default)

	list := app.Pages[0]
	assert.Equal(t, "/account-list", list.Route)
	assert.Equal(t, []string{}, list.Permissions)
	assert.True(t, list.Public())
	assert.Equal(t, []string{"id", "login", "balance", "active"}, list.Columns, "passwords are not listed")
	assert.Equal(t, "AccountList", list.Title)

	form := app.Pages[1]
	assert.Equal(t, []string{"login", "password", "balance", "active"}, form.Fields)
	assert.Equal(t, "Create account", form.Title)

	custom := app.Pages[2]
	assert.Equal(t, "/stats/all", custom.Route)
	assert.Equal(t, "StatsBoard", custom.Component)
	assert.Empty(t, custom.Entity)
}

func TestBuild_ConfigName(t *testing.T) {
	app := build(t, `config { name: "Blog", db: postgresql }`, Options{DefaultName: "ignored"})
	assert.Equal(t, "Blog", app.Name)
	assert.Equal(t, ir.PostgreSQL, app.Config.Database)
}

func TestBuild_Cardinality(t *testing.T) {
	app := build(t, `
entity User {
  id: UUID primaryKey
  profile: Profile optional
  posts: Post[] @relation(name: "Authored")
  groups: Group[]
}
entity Profile { id: UUID primaryKey, user: User }
entity Post {
  id: UUID primaryKey
  author: User @relation(name: "Authored", onDelete: cascade)
  reviewer: User optional @relation(name: "Reviewed", onDelete: setNull)
}
entity Group { id: UUID primaryKey, members: User[] }
entity Category {
  id: Int primaryKey
  parent: Category optional @relation(name: "Tree")
  children: Category[] @relation(name: "Tree")
  related: Category optional @relation(name: "Related")
}
`, Options{})

	testCases := []struct {
		entity, field string
		card          ir.Cardinality
		inverse, name string
	}{
		{"User", "profile", ir.OneToOne, "user", "ProfileToUser"},
		{"Profile", "user", ir.OneToOne, "profile", "ProfileToUser"},
		{"User", "posts", ir.OneToMany, "author", "Authored"},
		{"Post", "author", ir.ManyToOne, "posts", "Authored"},
		{"Post", "reviewer", ir.ManyToOne, "", "Reviewed"},
		{"User", "groups", ir.ManyToMany, "members", "GroupToUser"},
		{"Group", "members", ir.ManyToMany, "groups", "GroupToUser"},
		{"Category", "parent", ir.ManyToOne, "children", "Tree"},
		{"Category", "children", ir.OneToMany, "parent", "Tree"},
		{"Category", "related", ir.ManyToOne, "", "Related"},
	}
	for _, tc := range testCases {
		t.Run(tc.entity+"."+tc.field, func(t *testing.T) {
			rel := app.Entity(tc.entity).Field(tc.field).Relation
			require.NotNil(t, rel)
			assert.Equal(t, tc.card, rel.Cardinality)
			assert.Equal(t, tc.inverse, rel.Inverse)
			assert.Equal(t, tc.name, rel.Name)
		})
	}

	assert.Equal(t, ir.OnDeleteCascade, app.Entity("Post").Field("author").Relation.OnDelete)
	assert.Equal(t, ir.OnDeleteSetNull, app.Entity("Post").Field("reviewer").Relation.OnDelete)
	assert.Equal(t, indexOf(app, "Category"), app.Entity("Category").Field("parent").Relation.TargetIndex)

	// по одной канонической записи на связь, в порядке первого объявления
	var got []string
	for _, r := range app.Relations {
		got = append(got, r.Name+":"+string(r.Kind))
	}
	assert.Equal(t, []string{
		"ProfileToUser:one-to-one",
		"Authored:one-to-many",
		"GroupToUser:many-to-many",
		"Reviewed:one-to-many",
		"Tree:one-to-many",
		"Related:one-to-many",
	}, got)

	tree := app.Relations[4]
	assert.True(t, tree.SelfRef)
	assert.Equal(t, "children", tree.OneField)
	assert.Equal(t, "parent", tree.ManyField)
}

func indexOf(app *ir.Application, name string) int {
	for i, e := range app.Entities {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func TestBuild_VirtualFieldsAndViews(t *testing.T) {
	app := build(t, `
entity Person {
  id: Int primaryKey
  first: String
  last: String
  price: Decimal
  qty: Int
  fullName: String @virtual(from: "first + ' ' + last")
  total: Decimal @virtual(from: "price * qty")
  doubled: Int @virtual(from: "qty * 2")
}
view PersonCard {
  source: Person
  fields: { name: fullName, cost: "total + 1.5", who: "last" }
}
`, Options{})

	full := app.Entity("Person").Field("fullName")
	require.NotNil(t, full.Virtual)
	assert.Equal(t, "resolvePersonFullName", full.Virtual.Resolver)
	assert.Equal(t, ir.TypeString, full.Virtual.ResultType)
	assert.Equal(t, []string{"first", "last"}, full.Virtual.DependsOn)
	top := full.Virtual.Expr.(*ir.Binary)
	assert.Equal(t, "+", top.Op)
	assert.Equal(t, &ir.FieldRef{Name: "last"}, top.Right)
	assert.Equal(t, &ir.Literal{Type: ir.TypeString, Value: " "}, top.Left.(*ir.Binary).Right)

	assert.Equal(t, ir.TypeDecimal, app.Entity("Person").Field("total").Virtual.ResultType)
	assert.Equal(t, ir.TypeInt, app.Entity("Person").Field("doubled").Virtual.ResultType)

	stored := app.Entity("Person").StoredFields()
	assert.Len(t, stored, 5, "virtual fields are not stored")

	view := app.Views[0]
	assert.Equal(t, "Person", view.Source)
	require.Len(t, view.Fields, 3)
	assert.Equal(t, "fullName", view.Fields[0].Ref)
	assert.Equal(t, ir.TypeString, view.Fields[0].ResultType)
	assert.Equal(t, "resolvePersonCardName", view.Fields[0].Resolver)
	assert.Equal(t, "total + 1.5", view.Fields[1].Source)
	assert.Equal(t, ir.TypeDecimal, view.Fields[1].ResultType)
	assert.Equal(t, ir.TypeString, view.Fields[2].ResultType)
}

func TestBuild_WorkflowsAndConfig(t *testing.T) {
	app := build(t, `
entity User { id: UUID primaryKey, email: String }
config auth { provider: jwt, userEntity: User, expiresIn: "24h" }
config integrations {
  email: { provider: sendgrid, apiKey: env(SENDGRID_API_KEY), from: "noreply@example.com" }
  monitoring: { provider: datadog, apiKey: env(DD_API_KEY) }
}
workflow Welcome {
  trigger: "user.created"
  step sendEmail { to: trigger.user.email, template: "welcome", key: env(SENDGRID_API_KEY), retries: 3 }
}
`, Options{})

	jwt, ok := app.Config.Auth.(ir.JWTAuth)
	require.True(t, ok)
	assert.Equal(t, "User", jwt.UserEntity())
	assert.Equal(t, ir.EnvSecret("JWT_SECRET"), jwt.Secret, "jwt secret defaults to env")
	assert.Equal(t, "24h", jwt.ExpiresIn)

	assert.Equal(t, ir.SendGridEmail{APIKey: ir.EnvSecret("SENDGRID_API_KEY"), From: "noreply@example.com"}, app.Config.Integrations.Email)
	assert.Equal(t, ir.DatadogMonitoring{APIKey: ir.EnvSecret("DD_API_KEY")}, app.Config.Integrations.Monitoring)
	assert.Equal(t, []string{"JWT_SECRET", "SENDGRID_API_KEY", "DD_API_KEY"}, app.Config.Secrets())

	require.Len(t, app.Workflows, 1)
	w := app.Workflows[0]
	assert.Equal(t, "user.created", w.Trigger.Event)
	require.Len(t, w.Steps, 1)
	assert.Equal(t, []*ir.Input{
		{Key: "to", Kind: ir.InputTrigger, Path: []string{"user", "email"}},
		{Key: "template", Kind: ir.InputLiteral, Value: "welcome"},
		{Key: "key", Kind: ir.InputEnv, Env: "SENDGRID_API_KEY"},
		{Key: "retries", Kind: ir.InputLiteral, Value: json.Number("3")},
	}, w.Steps[0].Inputs)
}

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stalmer/internal/dsl"
)

func check(t *testing.T, src string, opts Options) (*Checked, SemanticErrors) {
	t.Helper()
	f, err := dsl.ParseSource("app.dsl", src)
	require.NoError(t, err)
	c, err := Validate(f, opts)
	if err == nil {
		return c, nil
	}
	var errs SemanticErrors
	require.ErrorAs(t, err, &errs)
	return nil, errs
}

func mustCheck(t *testing.T, src string) *Checked {
	t.Helper()
	c, errs := check(t, src, Options{})
	require.Empty(t, errs, "%v", errs)
	return c
}

func TestValidate_ExampleApplication(t *testing.T) {
	c := mustCheck(t, `
entity User { id: UUID primaryKey, email: String unique }
entity Post { id: UUID primaryKey, author: User }
page Posts { type: table, entity: Post, permissions: ["ADMIN"] }
`)
	require.Len(t, c.Entities, 2)
	assert.NotNil(t, c.Entity("Post"))
	require.Len(t, c.Pages, 1)
}

func TestValidate_ForwardReferences(t *testing.T) {
	mustCheck(t, `
page Posts { type: table, entity: Post }
entity Post { id: UUID primaryKey, author: Writer, status: Status default(DRAFT) }
entity Writer { id: UUID primaryKey }
enum Status { DRAFT, PUBLISHED }
`)
}

func TestValidate_AmbiguousRelations(t *testing.T) {
	_, errs := check(t, `
entity User { id: UUID primaryKey }
entity Post { id: UUID primaryKey, author: User, editor: User }
`, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRelationAmbig, errs[0].Code)
	assert.Contains(t, errs[0].Message, "author")
	assert.Contains(t, errs[0].Message, "editor")
	assert.Equal(t, "Post", errs[0].Name)

	// одинаковые имена не снимают неоднозначность
	_, errs = check(t, `
entity User { id: UUID primaryKey }
entity Post {
  id: UUID primaryKey
  author: User @relation(name: "Writes")
  editor: User @relation(name: "Writes")
}`, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRelationAmbig, errs[0].Code)

	mustCheck(t, `
entity User { id: UUID primaryKey }
entity Post {
  id: UUID primaryKey
  author: User @relation(name: "Author")
  editor: User @relation(name: "Editor")
}`)
}

func TestValidate_SelfRelation(t *testing.T) {
	mustCheck(t, `
entity Employee {
  id: Int primaryKey
  manager: Employee optional @relation(name: "Reports")
  reports: Employee[] @relation(name: "Reports")
}`)

	_, errs := check(t, `
entity Employee { id: Int primaryKey, manager: Employee, mentor: Employee }
`, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRelationAmbig, errs[0].Code)
}

func TestValidate_AuthMissingUserEntity(t *testing.T) {
	_, errs := check(t, `
entity User { id: UUID primaryKey }
config auth { provider: jwt }
`, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeConfigRequired, errs[0].Code)
	assert.Contains(t, errs[0].Message, "userEntity")
	assert.Equal(t, "auth", errs[0].Name)
}

func TestValidate_PageUnknownEntity(t *testing.T) {
	_, errs := check(t, `
entity User { id: UUID primaryKey }
page Posts { type: table, entity: Psot, columns: [title, body] }
`, Options{})
	require.Len(t, errs, 1, "no cascaded errors for the same page")
	assert.Equal(t, CodePageEntity, errs[0].Code)
	assert.Contains(t, errs[0].Message, "Posts")
	assert.Contains(t, errs[0].Message, "Psot")
	assert.Equal(t, dsl.Pos{Line: 3, Column: 35, Offset: 71}, errs[0].Pos)
}

func TestValidate_AggregatesSortedByPosition(t *testing.T) {
	_, errs := check(t, `
entity A { id: Int primaryKey, id: String, x: Foo }
entity A { id: Int }
page P { type: grid, entity: A }
`, Options{})
	assert.Equal(t, []string{CodeDuplicateField, CodeUnknownType, CodeDuplicateName, CodePageType}, errs.Codes())
	assert.Contains(t, errs.Error(), "4 semantic errors")
	assert.Equal(t, "app.dsl", errs[0].File)
}

func TestValidate_Defaults(t *testing.T) {
	testCases := []struct {
		name  string
		field string
		code  string
	}{
		{name: "valid uuid", field: `ref: UUID default("7b2f0c9e-4a51-4f0e-9d8c-2f3a1b5c6d7e")`},
		{name: "invalid uuid", field: `ref: UUID default("not-a-uuid")`, code: CodeDefaultMismatch},
		{name: "fraction in int", field: `n: Int default(1.5)`, code: CodeDefaultMismatch},
		{name: "negative decimal", field: `n: Decimal default(-1.5)`},
		{name: "wrong function target", field: `at: DateTime default(uuid())`, code: CodeDefaultMismatch},
		{name: "unknown function", field: `s: String default(random())`, code: CodeDefaultFunc},
		{name: "enum value", field: `st: Status default(ACTIVE)`},
		{name: "unknown enum value", field: `st: Status default(ARCHIVED)`, code: CodeDefaultMismatch},
		{name: "date literal", field: `at: DateTime default("2024-01-31")`},
		{name: "bad date literal", field: `at: DateTime default("yesterday")`, code: CodeDefaultMismatch},
		{name: "bool for string", field: `s: String default(true)`, code: CodeDefaultMismatch},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := check(t, "enum Status { ACTIVE }\nentity E { id: Int primaryKey, "+tc.field+" }", Options{})
			if tc.code == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tc.code, errs[0].Code)
		})
	}
}

func TestValidate_FieldTypes(t *testing.T) {
	_, errs := check(t, `
entity E {
  id: Int primaryKey
  a: Enum
  b: String[]
  c: Strnig
  d: Int @index(name: "x")
  e: Int unique unique
  f: Int @relation(name: "R")
}`, Options{})
	assert.Equal(t, []string{
		CodeBareEnum, CodeListNotRelation, CodeUnknownType, CodeUnknownAttr, CodeDuplicateModifier, CodeRelationAttr,
	}, errs.Codes())
}

func TestValidate_RelationPolicies(t *testing.T) {
	_, errs := check(t, `
entity User { id: UUID primaryKey }
entity Tag { name: String }
entity Editor { id: UUID primaryKey }
entity Post {
  id: UUID primaryKey
  author: User @relation(onDelete: setNull)
  reviewer: Tag optional
  editors: Editor[] @relation(onDelete: explode)
}`, Options{})
	assert.Equal(t, []string{CodeRequiredSetNull, CodeRelationNoPK, CodeOnDeleteUnknown}, errs.Codes())
}

func TestValidate_Virtuals(t *testing.T) {
	_, errs := check(t, `
entity Item {
  id: Int primaryKey
  name: String
  price: Decimal
  qty: Int
  label: String @virtual(from: "name + ' x' + qty")
  full: String @virtual(from: "name + lastt")
  total: Int @virtual(from: "price * qty")
  bad: Int @virtual(from: "name - 1")
  broken: String @virtual(from: "name +")
  a: Int @virtual(from: "b + 1")
  b: Int @virtual(from: "a + 1")
  none: String @virtual()
}`, Options{})
	assert.Equal(t, []string{
		CodeUnknownFieldRef,
		CodeVirtualType,
		CodeVirtualExpr,
		CodeVirtualExpr,
		CodeVirtualCycle,
		CodeVirtualCycle,
		CodeVirtualFrom,
	}, errs.Codes())
}

func TestValidate_Roles(t *testing.T) {
	src := `
enum Role { EDITOR }
enum Tier { GOLD }
entity User { id: UUID primaryKey, role: Tier }
config auth { provider: jwt, userEntity: User }
page Users { type: table, entity: User, permissions: [EDITOR, GOLD, ADMIN, "AUDITOR"] }
`
	_, errs := check(t, src, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRoleUnknown, errs[0].Code)
	assert.Contains(t, errs[0].Message, "AUDITOR")

	c, errs := check(t, src, Options{Roles: []string{"AUDITOR"}})
	require.Empty(t, errs)
	assert.Equal(t, []string{"ADMIN", "AUDITOR", "AUTHENTICATED", "EDITOR", "GOLD", "PUBLIC", "USER"}, c.Roles)
}

func TestValidate_Pages(t *testing.T) {
	_, errs := check(t, `
entity User { id: UUID primaryKey, name: String, full: String @virtual(from: "name") }
page Users { type: table, entity: User, columns: [name, age] }
page UserList { type: table, entity: User, route: "/users" }
page Edit { type: form, entity: User, fields: [full], columns: [name] }
page Dash { type: custom }
page Bad { type: table }
`, Options{})
	assert.Equal(t, []string{
		CodePageField,
		CodePageRouteDup,
		CodePageField,
		CodeMisplacedProp,
		CodePageComponent,
		CodePageEntityNeeded,
	}, errs.Codes())
}

func TestValidate_ViewsAndWorkflows(t *testing.T) {
	_, errs := check(t, `
entity User { id: UUID primaryKey, first: String, last: String }
view Card { source: User, fields: { full: "first + ' ' + last", mail: email } }
workflow Welcome {
  trigger: "user.created"
  step send { to: user.email, subject: "hi" }
}
workflow Empty { trigger: "x" }
view Ghost { source: Nobody, fields: { a: b } }
`, Options{})
	assert.Equal(t, []string{CodeUnknownFieldRef, CodeTriggerPath, CodeStepsEmpty, CodeViewSource}, errs.Codes())
}

func TestValidate_Config(t *testing.T) {
	_, errs := check(t, `
config { db: mysql }
config auth { provider: okta }
config integrations { email: { provider: smtp, port: "25", bogus: 1 }, sms: {} }
config extra {}
`, Options{})
	assert.Equal(t, []string{
		CodeDatabase,
		CodeProviderUnknown,
		CodeConfigRequired,
		CodePropertyType,
		CodeConfigUnknown,
		CodeUnknownProperty,
		CodeConfigBlock,
	}, errs.Codes())
}

func TestValidate_ValidConfig(t *testing.T) {
	c := mustCheck(t, `
entity User { id: UUID primaryKey }
config { name: "Blog", db: postgresql }
config auth { provider: auth0, userEntity: User, domain: "blog.eu.auth0.com", clientId: "abc", clientSecret: env(AUTH0_SECRET) }
config integrations {
  email: { provider: smtp, host: "smtp.local", port: 587 }
  monitoring: { provider: sentry, dsn: env(SENTRY_DSN) }
}
`)
	assert.NotNil(t, c.Root)
	assert.NotNil(t, c.Auth)
	assert.NotNil(t, c.Integrations)
}

func TestValidate_DuplicateConfig(t *testing.T) {
	_, errs := check(t, `
config { db: sqlite }
config { db: postgresql }
`, Options{})
	assert.Equal(t, []string{CodeDuplicateConfig}, errs.Codes())
}

func TestValidate_Positions(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		code string
		line int
		col  int
	}{
		{
			name: "second primary key",
			src:  "entity E { id: Int primaryKey, code: String primaryKey }",
			code: CodeDuplicatePK,
			line: 1, col: 32,
		},
		{
			name: "auth user entity not declared",
			src:  "entity User { id: UUID primaryKey }\nconfig auth { provider: jwt, userEntity: Member }",
			code: CodeUserEntity,
			line: 2, col: 42,
		},
		{
			name: "details page without primary key",
			src:  "entity Log { message: String }\npage LogCard { type: details, entity: Log }",
			code: CodePageEntityNoPK,
			line: 2, col: 39,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := check(t, tc.src, Options{})
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tc.code, errs[0].Code)
			assert.Equal(t, tc.line, errs[0].Pos.Line)
			assert.Equal(t, tc.col, errs[0].Pos.Column)
		})
	}
}

func TestValidate_FormPageWithoutPrimaryKey(t *testing.T) {
	// форма только создаёт записи, ключ ей не нужен
	mustCheck(t, `
entity Log { message: String }
page NewLog { type: form, entity: Log, fields: [message] }
page Logs { type: table, entity: Log }
`)
}

func TestValidate_GeneratedNameCollisions(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		line    int
		col     int
		message string
	}{
		{
			name: "virtual resolvers",
			src: `entity User { id: Int primaryKey, first: String, profileName: String @virtual(from: "first") }
entity UserProfile { id: Int primaryKey, nick: String, name: String @virtual(from: "nick") }`,
			line: 2, col: 56,
			message: `"resolveUserProfileName"`,
		},
		{
			name:    "enum constant and entity type",
			src:     "enum OrderState { NEW }\nentity OrderStateNew { id: Int primaryKey }",
			line:    2, col: 1,
			message: "value OrderState.NEW",
		},
		{
			name:    "view type and enum type",
			src:     "enum Card { A }\nentity U { id: Int primaryKey, n: String }\nview Card { source: U, fields: { n: n } }",
			line:    3, col: 1,
			message: `enum "Card"`,
		},
		{
			name:    "workflow handlers",
			src:     "workflow send_mail { trigger: \"a\" step notify { to: \"x\" } }\nworkflow SendMail { trigger: \"b\" step notify { to: \"y\" } }",
			line:    2, col: 1,
			message: `"handleSendMail"`,
		},
		{
			name:    "runtime type",
			src:     "entity Event { id: Int primaryKey }",
			line:    1, col: 1,
			message: "workflow runtime",
		},
		{
			name:    "snake case columns",
			src:     "entity E { id: Int primaryKey, firstName: String, first_name: String }",
			line:    1, col: 51,
			message: `column "first_name"`,
		},
		{
			name:    "page named like a routes export",
			src:     "entity U { id: Int primaryKey }\npage routes { type: table, entity: U }",
			line:    2, col: 1,
			message: "routes module",
		},
		{
			name:    "component named like the page function",
			src:     "page Dash { type: custom, component: DashPage }",
			line:    1, col: 38,
			message: `"DashPage"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := check(t, tc.src, Options{})
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, CodeNameCollision, errs[0].Code)
			assert.Equal(t, tc.line, errs[0].Pos.Line)
			assert.Equal(t, tc.col, errs[0].Pos.Column)
			assert.Contains(t, errs[0].Message, tc.message)
		})
	}

	mustCheck(t, `
entity User { id: Int primaryKey, first: String, fullName: String @virtual(from: "first") }
entity UserInfo { id: Int primaryKey, nick: String, name: String @virtual(from: "nick") }
enum Status { ACTIVE, IN_PROGRESS }
workflow SendMail { trigger: "a" step notify { to: "x" } }
`)
}

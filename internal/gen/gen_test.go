package gen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stalmer/internal/ir"
)

type fakeGen struct {
	name string
	deps []string
	fn   func(req *Request) (FileTree, error)
}

func (f *fakeGen) Name() string        { return f.name }
func (f *fakeGen) DependsOn() []string { return f.deps }
func (f *fakeGen) Generate(_ context.Context, req *Request) (FileTree, error) {
	return f.fn(req)
}

func static(tree FileTree) func(*Request) (FileTree, error) {
	return func(*Request) (FileTree, error) { return tree, nil }
}

func testApp() *ir.Application {
	return &ir.Application{Name: "demo", Config: ir.Config{Database: ir.SQLite}}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGen{name: "backend"})
	assert.Panics(t, func() { r.Register(&fakeGen{name: "backend"}) })
	assert.Panics(t, func() { r.Register(&fakeGen{name: "frontend", deps: []string{"missing"}}) })
	r.Register(&fakeGen{name: "frontend", deps: []string{"backend"}})
	assert.Equal(t, []string{"backend", "frontend"}, r.Names())
}

func TestRegistry_SelectedPullsDependencies(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGen{name: "backend"})
	r.Register(&fakeGen{name: "frontend", deps: []string{"backend"}})
	r.Register(&fakeGen{name: "infra"})

	gens, err := r.selected([]string{"frontend"})
	require.NoError(t, err)
	assert.Equal(t, []string{"backend", "frontend"}, namesOf(gens))

	gens, err = r.selected(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend", "frontend", "infra"}, namesOf(gens))

	_, err = r.selected([]string{"mobile"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown generator "mobile"`)
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(map[string]string{"db": "postgresql", "auth": "jwt", "integrations": "monitoring, email"})
	require.NoError(t, err)
	assert.Equal(t, ir.PostgreSQL, opts.Database)
	assert.Equal(t, "jwt", opts.Auth)
	assert.Equal(t, []string{"email", "monitoring"}, opts.Integrations)

	tests := []struct {
		raw  map[string]string
		want string
	}{
		{map[string]string{"database": "sqlite"}, `unknown option "database"`},
		{map[string]string{"db": "mysql"}, `unknown database "mysql"`},
		{map[string]string{"auth": "okta"}, `unknown provider "okta"`},
		{map[string]string{"integrations": "sms"}, `unknown integration "sms"`},
		{map[string]string{"integrations": "email,email"}, "listed twice"},
	}
	for _, tt := range tests {
		_, err := ParseOptions(tt.raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestOptions_Resolve(t *testing.T) {
	app := testApp()
	app.Config.Auth = ir.JWTAuth{User: "User"}
	app.Config.Integrations.Email = ir.SMTPEmail{Host: "mail"}

	opts, err := Options{}.Resolve(app)
	require.NoError(t, err)
	assert.Equal(t, ir.SQLite, opts.Database)
	assert.Equal(t, "jwt", opts.Auth)
	assert.Equal(t, []string{"email"}, opts.Integrations)
	assert.True(t, opts.Integration("email"))
	assert.False(t, opts.Integration("monitoring"))

	_, err = Options{Database: ir.PostgreSQL}.Resolve(app)
	assert.ErrorContains(t, err, "conflicts with config db")
	_, err = Options{Auth: "clerk"}.Resolve(app)
	assert.ErrorContains(t, err, "conflicts with config auth")
	_, err = Options{Integrations: []string{"monitoring"}}.Resolve(app)
	assert.ErrorContains(t, err, "not configured")

	opts, err = Options{Integrations: []string{}}.Resolve(app)
	require.NoError(t, err)
	assert.Empty(t, opts.Integrations)
}

func TestMergeRegions(t *testing.T) {
	fresh := []byte("package x\n\n" + Region("//", "a", "\treturn nil") + "\n" + Region("//", "b", "") + "// tail\n")
	existing := []byte("package old\n" +
		"// stalmer:custom:begin a\n\tcustomA()\n\n\treturn err\n// stalmer:custom:end a\n" +
		"// stalmer:custom:begin gone\nkeep me\n// stalmer:custom:end gone\n")

	merged, err := MergeRegions(fresh, existing)
	require.NoError(t, err)
	want := "package x\n\n" +
		"// stalmer:custom:begin a\n\tcustomA()\n\n\treturn err\n// stalmer:custom:end a\n\n" +
		"// stalmer:custom:begin b\n// stalmer:custom:end b\n" +
		"// tail\n" +
		"// stalmer:custom:orphaned gone\n" +
		"// stalmer:custom:begin gone\nkeep me\n// stalmer:custom:end gone\n"
	assert.Equal(t, want, string(merged))

	again, err := MergeRegions(fresh, merged)
	require.NoError(t, err)
	assert.Equal(t, string(merged), string(again))
}

func TestMergeRegions_Fresh(t *testing.T) {
	fresh := []byte(Region("#", "hooks", "echo hi"))
	out, err := MergeRegions(fresh, nil)
	require.NoError(t, err)
	assert.Equal(t, "# stalmer:custom:begin hooks\necho hi\n# stalmer:custom:end hooks\n", string(out))
}

func TestMergeRegions_Malformed(t *testing.T) {
	fresh := []byte(Region("//", "a", ""))
	for _, existing := range []string{
		"// stalmer:custom:begin a\nbody\n",
		"// stalmer:custom:end a\n",
		"// stalmer:custom:begin a\n// stalmer:custom:begin b\n",
		"// stalmer:custom:begin a\n// stalmer:custom:end b\n",
	} {
		_, err := MergeRegions(fresh, []byte(existing))
		assert.Error(t, err, existing)
	}

	_, err := MergeRegions([]byte("// stalmer:custom:begin a\n"), []byte("// stalmer:custom:begin a\n// stalmer:custom:end a\n"))
	assert.ErrorContains(t, err, "not terminated")
}

func TestMergeRegions_DuplicateInFreshOutput(t *testing.T) {
	fresh := []byte(Region("//", "resolveUserName", "") + Region("//", "resolveUserName", ""))

	// первая генерация: файла на диске ещё нет
	_, err := MergeRegions(fresh, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "generated output")
	assert.ErrorContains(t, err, `custom region "resolveUserName" declared twice`)

	_, err = MergeRegions(fresh, []byte(Region("//", "resolveUserName", "custom()")))
	assert.ErrorContains(t, err, "declared twice")
}

func TestCheckRelPath(t *testing.T) {
	for _, ok := range []string{"schema.sql", "api/schema.json", "src/pages/Posts.tsx"} {
		assert.NoError(t, checkRelPath(ok), ok)
	}
	for _, bad := range []string{"", "/etc/passwd", "../x", "a/../../x", "a//b", `a\b`, "."} {
		assert.Error(t, checkRelPath(bad), bad)
	}
}

func TestGenerate_WritesAndPreservesRegions(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(&fakeGen{name: "backend", fn: static(FileTree{
		"b.txt":         []byte("second\n"),
		"dir/a.go":      []byte("package a\n" + Region("//", "impl", "\tpanic(\"todo\")")),
		"api/spec.json": []byte("{}\n"),
	})})

	ctx := context.Background()
	report, err := r.Generate(ctx, testApp(), root, nil, Options{})
	require.NoError(t, err)
	require.True(t, report.OK())
	assert.Len(t, report.RunID, 26)
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, []string{"api/spec.json", "b.txt", "dir/a.go"}, []string{res.Files[0].Path, res.Files[1].Path, res.Files[2].Path})
	for _, f := range res.Files {
		assert.True(t, f.Written)
		assert.Len(t, f.SHA256, 64)
	}

	target := filepath.Join(root, "backend", "dir", "a.go")
	edited := "package a\n// stalmer:custom:begin impl\n\treturn 42\n// stalmer:custom:end impl\n"
	require.NoError(t, os.WriteFile(target, []byte(edited), 0o644))

	report, err = r.Generate(ctx, testApp(), root, nil, Options{})
	require.NoError(t, err)
	for _, f := range report.Results[0].Files {
		assert.False(t, f.Written, f.Path)
	}
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, edited, string(got))
}

func TestGenerate_FailureIsolation(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(&fakeGen{name: "backend", fn: func(*Request) (FileTree, error) {
		return nil, errors.New("boom")
	}})
	r.Register(&fakeGen{name: "frontend", deps: []string{"backend"}, fn: static(FileTree{"x": []byte("x")})})
	r.Register(&fakeGen{name: "infra", fn: static(FileTree{"docker-compose.yml": []byte("services: {}\n")})})
	r.Register(&fakeGen{name: "docs", fn: func(*Request) (FileTree, error) { panic("nil map") }})

	report, err := r.Generate(context.Background(), testApp(), root, nil, Options{})
	require.NoError(t, err)
	assert.False(t, report.OK())

	require.Len(t, report.Succeeded(), 1)
	assert.Equal(t, "infra", report.Succeeded()[0].Generator)
	assert.FileExists(t, filepath.Join(root, "infra", "docker-compose.yml"))

	failed := report.Failed()
	require.Len(t, failed, 3)
	assert.Equal(t, "backend", failed[0].Generator)
	var genErr *GenerationError
	require.ErrorAs(t, failed[0].Err, &genErr)
	assert.Equal(t, "backend", genErr.Generator)

	assert.Equal(t, "frontend", failed[1].Generator)
	assert.True(t, failed[1].Skipped)
	assert.ErrorContains(t, failed[1].Err, "dependency backend failed")
	assert.NoDirExists(t, filepath.Join(root, "frontend"))

	assert.Equal(t, "docs", failed[2].Generator)
	assert.ErrorContains(t, failed[2].Err, "panic: nil map")
	assert.ErrorContains(t, report.Err(), "boom")
}

func TestGenerate_UpstreamAndOptions(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(&fakeGen{name: "backend", fn: static(FileTree{"api/schema.json": []byte(`{"resources":[]}`)})})
	var seen *Request
	r.Register(&fakeGen{name: "frontend", deps: []string{"backend"}, fn: func(req *Request) (FileTree, error) {
		seen = req
		return FileTree{}, nil
	}})

	report, err := r.Generate(context.Background(), testApp(), root, []string{"frontend"}, Options{})
	require.NoError(t, err)
	require.True(t, report.OK())
	require.NotNil(t, seen)
	assert.Equal(t, `{"resources":[]}`, string(seen.Upstream["backend"]["api/schema.json"]))
	assert.Equal(t, filepath.Join(root, "frontend"), seen.OutputDir)
	assert.Equal(t, ir.SQLite, seen.Options.Database)
	assert.Equal(t, AuthNone, seen.Options.Auth)

	_, err = r.Generate(context.Background(), testApp(), root, nil, Options{Database: ir.PostgreSQL})
	assert.Error(t, err)
}

func TestGenerate_RejectsEscapingPath(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGen{name: "backend", fn: static(FileTree{"../escape.txt": []byte("x")})})
	report, err := r.Generate(context.Background(), testApp(), t.TempDir(), nil, Options{})
	require.NoError(t, err)
	assert.ErrorContains(t, report.Err(), "invalid output path")
}

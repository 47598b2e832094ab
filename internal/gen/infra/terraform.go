package infra

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

// renderTerraform: база postgres через провайдер cyrilgdn/postgresql
// или каталог данных sqlite через hashicorp/local; секреты — sensitive-переменные.
func renderTerraform(app *ir.Application, opts gen.Options) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	db := ir.Snake(app.Name)

	tf := root.AppendNewBlock("terraform", nil).Body()
	providers := tf.AppendNewBlock("required_providers", nil).Body()

	switch opts.Database {
	case ir.PostgreSQL:
		providers.SetAttributeValue("postgresql", cty.ObjectVal(map[string]cty.Value{
			"source":  cty.StringVal("cyrilgdn/postgresql"),
			"version": cty.StringVal("~> 1.22"),
		}))
		root.AppendNewline()

		for _, v := range []struct {
			name, def string
			sensitive bool
		}{
			{"db_host", "localhost", false},
			{"db_port", "5432", false},
			{"db_password", "", true},
		} {
			variable(root, v.name, v.def, v.sensitive)
		}

		p := root.AppendNewBlock("provider", []string{"postgresql"}).Body()
		p.SetAttributeTraversal("host", varRef("db_host"))
		p.SetAttributeTraversal("port", varRef("db_port"))
		p.SetAttributeValue("username", cty.StringVal(db))
		p.SetAttributeTraversal("password", varRef("db_password"))
		p.SetAttributeValue("sslmode", cty.StringVal("disable"))
		root.AppendNewline()

		res := root.AppendNewBlock("resource", []string{"postgresql_database", db}).Body()
		res.SetAttributeValue("name", cty.StringVal(db))
		res.SetAttributeValue("owner", cty.StringVal(db))
		root.AppendNewline()
	default:
		providers.SetAttributeValue("local", cty.ObjectVal(map[string]cty.Value{
			"source":  cty.StringVal("hashicorp/local"),
			"version": cty.StringVal("~> 2.5"),
		}))
		root.AppendNewline()

		res := root.AppendNewBlock("resource", []string{"local_file", db + "_data"}).Body()
		res.SetAttributeValue("filename", cty.StringVal("../data/.keep"))
		res.SetAttributeValue("content", cty.StringVal(""))
		root.AppendNewline()
	}

	for _, name := range app.Config.Secrets() {
		variable(root, strings.ToLower(name), "", true)
	}
	return append([]byte("# "+headerText+"\n\n"), hclwrite.Format(f.Bytes())...)
}

func variable(body *hclwrite.Body, name, def string, sensitive bool) {
	v := body.AppendNewBlock("variable", []string{name}).Body()
	v.SetAttributeTraversal("type", hcl.Traversal{hcl.TraverseRoot{Name: "string"}})
	if def != "" {
		v.SetAttributeValue("default", cty.StringVal(def))
	}
	if sensitive {
		v.SetAttributeValue("sensitive", cty.True)
	}
	body.AppendNewline()
}

func varRef(name string) hcl.Traversal {
	return hcl.Traversal{hcl.TraverseRoot{Name: "var"}, hcl.TraverseAttr{Name: name}}
}

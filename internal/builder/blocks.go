package builder

import (
	"strconv"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
	"stalmer/internal/validate"
)

func (b *builder) buildPages() {
	for _, d := range b.c.Pages {
		p := &ir.Page{
			Name:        d.Name,
			Route:       ir.DefaultRoute(d.Name),
			Title:       d.Name,
			Permissions: []string{},
		}
		for _, prop := range d.Props {
			switch prop.Key {
			case "type":
				name, _ := nameOf(prop.Value)
				p.Type = ir.PageType(name)
			case "entity":
				p.Entity, _ = nameOf(prop.Value)
			case "route":
				p.Route, _ = nameOf(prop.Value)
			case "title":
				p.Title, _ = nameOf(prop.Value)
			case "component":
				p.Component, _ = nameOf(prop.Value)
			case "permissions":
				p.Permissions = names(prop.Value)
			case "columns":
				p.Columns = names(prop.Value)
			case "fields":
				p.Fields = names(prop.Value)
			}
		}

		ent := b.app.Entity(p.Entity)
		switch {
		case ent == nil:
		case p.Type == ir.PageTable && p.Columns == nil:
			p.Columns = defaultColumns(ent)
		case p.Type == ir.PageForm && p.Fields == nil:
			p.Fields = defaultFormFields(ent)
		}
		b.app.Pages = append(b.app.Pages, p)
	}
}

func names(v dsl.Value) []string {
	arr, ok := v.(*dsl.ArrayLit)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr.Elems))
	for _, el := range arr.Elems {
		if n, ok := nameOf(el); ok {
			out = append(out, n)
		}
	}
	return out
}

// defaultColumns: хранимые поля без паролей.
func defaultColumns(e *ir.Entity) []string {
	var out []string
	for _, f := range e.StoredFields() {
		if f.Type.Kind == ir.TypePassword {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// defaultFormFields: хранимые поля кроме первичного ключа.
func defaultFormFields(e *ir.Entity) []string {
	var out []string
	for _, f := range e.StoredFields() {
		if f.PrimaryKey {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func (b *builder) buildViews() {
	for _, d := range b.c.Views {
		v := &ir.View{Name: d.Name, Fields: []*ir.ViewField{}}
		if p := dsl.Lookup(d.Props, "source"); p != nil {
			v.Source, _ = nameOf(p.Value)
		}
		src := b.c.Entity(v.Source)
		kind := b.fieldKind(src)

		if p := dsl.Lookup(d.Props, "fields"); p != nil {
			obj, _ := p.Value.(*dsl.ObjectLit)
			for _, fp := range obj.Props {
				vf := &ir.ViewField{Name: fp.Key, Resolver: ir.ResolverName(d.Name, fp.Key)}
				switch val := fp.Value.(type) {
				case *dsl.Ident:
					vf.Ref = val.Name()
					vf.ResultType, _ = kind(vf.Ref)
				case *dsl.StringLit:
					expr, _ := dsl.ParseExpr(val.Value)
					vf.Source = val.Value
					vf.Expr = convertExpr(expr, kind)
					vf.ResultType, _ = validate.ExprType(expr, kind)
				}
				v.Fields = append(v.Fields, vf)
			}
		}
		b.app.Views = append(b.app.Views, v)
	}
}

func (b *builder) buildWorkflows() {
	for _, d := range b.c.Workflows {
		w := &ir.Workflow{Name: d.Name, Steps: make([]*ir.Step, 0, len(d.Steps))}
		if p := dsl.Lookup(d.Props, "trigger"); p != nil {
			w.Trigger.Event, _ = nameOf(p.Value)
		}
		for _, sd := range d.Steps {
			st := &ir.Step{Action: sd.Action, Inputs: make([]*ir.Input, 0, len(sd.Inputs))}
			for _, in := range sd.Inputs {
				st.Inputs = append(st.Inputs, buildInput(in))
			}
			w.Steps = append(w.Steps, st)
		}
		b.app.Workflows = append(b.app.Workflows, w)
	}
}

func buildInput(p *dsl.Property) *ir.Input {
	switch v := p.Value.(type) {
	case *dsl.Ident:
		if v.Path[0] == "trigger" {
			return &ir.Input{Key: p.Key, Kind: ir.InputTrigger, Path: append([]string{}, v.Path[1:]...)}
		}
	case *dsl.EnvRef:
		return &ir.Input{Key: p.Key, Kind: ir.InputEnv, Env: v.Var}
	}
	return &ir.Input{Key: p.Key, Kind: ir.InputLiteral, Value: literalValue(p.Value)}
}

func (b *builder) buildConfig() {
	cfg := &b.app.Config
	cfg.Database = ir.SQLite
	if r := b.c.Root; r != nil {
		if p := dsl.Lookup(r.Props, "db"); p != nil {
			db, _ := nameOf(p.Value)
			cfg.Database = ir.Database(db)
		}
	}

	if a := b.c.Auth; a != nil {
		cfg.Auth = buildAuth(props(a.Props))
	}
	if in := b.c.Integrations; in != nil {
		if p := dsl.Lookup(in.Props, ir.BlockEmail); p != nil {
			cfg.Integrations.Email = buildEmail(props(p.Value.(*dsl.ObjectLit).Props))
		}
		if p := dsl.Lookup(in.Props, ir.BlockMonitoring); p != nil {
			cfg.Integrations.Monitoring = buildMonitoring(props(p.Value.(*dsl.ObjectLit).Props))
		}
	}
}

// propBag: свойства блока по ключу; значения уже проверены по схеме провайдера.
type propBag map[string]dsl.Value

func props(ps []*dsl.Property) propBag {
	out := make(propBag, len(ps))
	for _, p := range ps {
		if _, dup := out[p.Key]; !dup {
			out[p.Key] = p.Value
		}
	}
	return out
}

func (pb propBag) str(key string) string {
	if v, ok := pb[key]; ok {
		s, _ := nameOf(v)
		return s
	}
	return ""
}

func (pb propBag) secret(key string) ir.Secret {
	switch v := pb[key].(type) {
	case *dsl.EnvRef:
		return ir.EnvSecret(v.Var)
	case *dsl.StringLit:
		return ir.Secret{Literal: v.Value}
	}
	return ir.Secret{}
}

func (pb propBag) integer(key string) int {
	if n, ok := pb[key].(*dsl.NumberLit); ok {
		i, _ := strconv.Atoi(n.Raw)
		return i
	}
	return 0
}

func buildAuth(pb propBag) ir.Auth {
	switch pb.str("provider") {
	case "jwt":
		a := ir.JWTAuth{User: pb.str("userEntity"), Secret: pb.secret("secret"), ExpiresIn: pb.str("expiresIn")}
		if a.Secret.IsZero() {
			a.Secret = ir.EnvSecret("JWT_SECRET")
		}
		return a
	case "clerk":
		return ir.ClerkAuth{User: pb.str("userEntity"), PublishableKey: pb.secret("publishableKey"), SecretKey: pb.secret("secretKey")}
	case "auth0":
		return ir.Auth0Auth{
			User:         pb.str("userEntity"),
			Domain:       pb.str("domain"),
			ClientID:     pb.str("clientId"),
			ClientSecret: pb.secret("clientSecret"),
			Audience:     pb.str("audience"),
		}
	}
	return nil
}

func buildEmail(pb propBag) ir.Email {
	switch pb.str("provider") {
	case "sendgrid":
		return ir.SendGridEmail{APIKey: pb.secret("apiKey"), From: pb.str("from")}
	case "smtp":
		return ir.SMTPEmail{
			Host:     pb.str("host"),
			Port:     pb.integer("port"),
			User:     pb.str("user"),
			Password: pb.secret("password"),
			From:     pb.str("from"),
		}
	case "resend":
		return ir.ResendEmail{APIKey: pb.secret("apiKey"), From: pb.str("from")}
	}
	return nil
}

func buildMonitoring(pb propBag) ir.Monitoring {
	switch pb.str("provider") {
	case "sentry":
		return ir.SentryMonitoring{DSN: pb.secret("dsn"), Environment: pb.str("environment")}
	case "datadog":
		return ir.DatadogMonitoring{APIKey: pb.secret("apiKey"), Site: pb.str("site")}
	}
	return nil
}

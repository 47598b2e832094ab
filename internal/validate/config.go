package validate

import (
	"strings"

	"stalmer/internal/dsl"
	"stalmer/internal/ir"
)

func (v *validator) checkConfig() {
	if r := v.c.Root; r != nil {
		s := site{r.File, "config", ""}
		props := v.props(s, r.Props, "name", "db")
		if np := props["name"]; np != nil {
			if _, ok := nameOf(np.Value); !ok {
				v.report(s, np.Value.ValuePos(), CodePropertyType, "config name must be a string, got %s", dsl.Describe(np.Value))
			}
		}
		if dp := props["db"]; dp != nil {
			db, _ := nameOf(dp.Value)
			if !contains(ir.Databases, ir.Database(db)) {
				v.report(s, dp.Value.ValuePos(), CodeDatabase, "unknown database %q (allowed: postgresql, sqlite)", db)
			}
		}
	}

	if a := v.c.Auth; a != nil {
		v.checkProviderBlock(site{a.File, "config", ir.BlockAuth}, ir.BlockAuth, a.Pos, a.Props)
	}

	if in := v.c.Integrations; in != nil {
		s := site{in.File, "config", ir.BlockIntegrations}
		props := v.props(s, in.Props, ir.BlockEmail, ir.BlockMonitoring)
		for _, block := range []string{ir.BlockEmail, ir.BlockMonitoring} {
			p := props[block]
			if p == nil {
				continue
			}
			obj, ok := p.Value.(*dsl.ObjectLit)
			if !ok {
				v.report(s, p.Value.ValuePos(), CodePropertyType, "integration %s must be an object, got %s", block, dsl.Describe(p.Value))
				continue
			}
			v.checkProviderBlock(s, block, p.Pos, obj.Props)
		}
	}
}

// checkProviderBlock сверяет свойства блока со схемой выбранного провайдера.
func (v *validator) checkProviderBlock(s site, block string, at dsl.Pos, props []*dsl.Property) {
	pp := dsl.Lookup(props, "provider")
	if pp == nil {
		v.report(s, at, CodeProviderMissing, "%s block requires a provider (allowed: %s)", block, strings.Join(ir.Providers(block), ", "))
		return
	}
	provider, _ := nameOf(pp.Value)
	schema, ok := ir.LookupProvider(block, provider)
	if !ok {
		v.report(s, pp.Value.ValuePos(), CodeProviderUnknown, "unknown %s provider %q (allowed: %s)",
			block, provider, strings.Join(ir.Providers(block), ", "))
		return
	}

	seen := map[string]bool{"provider": true}
	for _, p := range props {
		if p == pp {
			continue
		}
		if seen[p.Key] {
			v.report(s, p.Pos, CodeDuplicateProperty, "%s provider %q repeats property %q", block, provider, p.Key)
			continue
		}
		seen[p.Key] = true
		spec, ok := schema.Prop(p.Key)
		if !ok {
			v.report(s, p.Pos, CodeConfigUnknown, "%s provider %q has no property %q", block, provider, p.Key)
			continue
		}
		v.checkPropKind(s, block, provider, spec, p)
	}
	for _, name := range schema.Required() {
		if !seen[name] {
			v.report(s, at, CodeConfigRequired, "%s provider %q requires property %q", block, provider, name)
		}
	}
}

func (v *validator) checkPropKind(s site, block, provider string, spec ir.PropSpec, p *dsl.Property) {
	bad := func(want string) {
		v.report(s, p.Value.ValuePos(), CodePropertyType, "%s provider %q: %s must be %s, got %s",
			block, provider, p.Key, want, dsl.Describe(p.Value))
	}
	switch spec.Kind {
	case ir.PropString:
		if _, ok := nameOf(p.Value); !ok {
			bad("a string")
		}
	case ir.PropSecret:
		switch p.Value.(type) {
		case *dsl.StringLit, *dsl.EnvRef:
		default:
			bad("a string or env(VAR)")
		}
	case ir.PropInt:
		n, ok := p.Value.(*dsl.NumberLit)
		if !ok || strings.Contains(n.Raw, ".") {
			bad("an integer")
		}
	case ir.PropEntity:
		name, ok := nameOf(p.Value)
		if !ok {
			bad("an entity name")
			return
		}
		if v.c.entities[name] == nil {
			v.report(s, p.Value.ValuePos(), CodeUserEntity, "%s provider %q: %s %q is not a declared entity", block, provider, p.Key, name)
		}
	}
}

package gen

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"stalmer/internal/ir"
)

const (
	OptDB           = "db"
	OptAuth         = "auth"
	OptIntegrations = "integrations"
)

// OptionKeys: закрытый набор ключей опций генерации.
var OptionKeys = []string{OptDB, OptAuth, OptIntegrations}

// AuthNone: явное «без аутентификации».
const AuthNone = "none"

// Options: опции генерации. Пустые поля берутся из IR в Resolve.
type Options struct {
	Database     ir.Database
	Auth         string
	Integrations []string
}

// ParseOptions разбирает key=value опции. Незнакомые ключи и значения — ошибка.
func ParseOptions(raw map[string]string) (Options, error) {
	var opts Options
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := strings.TrimSpace(raw[k])
		switch k {
		case OptDB:
			db := ir.Database(v)
			if !slices.Contains(ir.Databases, db) {
				return Options{}, fmt.Errorf("option %s: unknown database %q", k, v)
			}
			opts.Database = db
		case OptAuth:
			if v != AuthNone && !slices.Contains(ir.Providers(ir.BlockAuth), v) {
				return Options{}, fmt.Errorf("option %s: unknown provider %q", k, v)
			}
			opts.Auth = v
		case OptIntegrations:
			list, err := parseIntegrations(v)
			if err != nil {
				return Options{}, fmt.Errorf("option %s: %w", k, err)
			}
			opts.Integrations = list
		default:
			return Options{}, fmt.Errorf("unknown option %q (allowed: %s)", k, strings.Join(OptionKeys, ", "))
		}
	}
	return opts, nil
}

func parseIntegrations(v string) ([]string, error) {
	out := []string{}
	if v == "" || v == AuthNone {
		return out, nil
	}
	for _, part := range strings.Split(v, ",") {
		name := strings.TrimSpace(part)
		if name != ir.BlockEmail && name != ir.BlockMonitoring {
			return nil, fmt.Errorf("unknown integration %q", name)
		}
		if slices.Contains(out, name) {
			return nil, fmt.Errorf("integration %q listed twice", name)
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Resolve сверяет опции с IR и заполняет пропуски значениями из IR.
func (o Options) Resolve(app *ir.Application) (Options, error) {
	cfg := app.Config
	out := o

	if out.Database == "" {
		out.Database = cfg.Database
	} else if out.Database != cfg.Database {
		return Options{}, fmt.Errorf("option %s=%s conflicts with config db %s", OptDB, out.Database, cfg.Database)
	}

	declared := AuthNone
	if cfg.Auth != nil {
		declared = cfg.Auth.Provider()
	}
	if out.Auth == "" {
		out.Auth = declared
	} else if out.Auth != declared {
		return Options{}, fmt.Errorf("option %s=%s conflicts with config auth provider %s", OptAuth, out.Auth, declared)
	}

	configured := cfg.Integrations.Configured()
	if out.Integrations == nil {
		out.Integrations = append([]string{}, configured...)
	} else {
		for _, name := range out.Integrations {
			if !slices.Contains(configured, name) {
				return Options{}, fmt.Errorf("option %s: integration %q is not configured", OptIntegrations, name)
			}
		}
	}
	return out, nil
}

// Integration сообщает, включена ли интеграция.
func (o Options) Integration(name string) bool {
	return slices.Contains(o.Integrations, name)
}

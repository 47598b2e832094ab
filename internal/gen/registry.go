package gen

import (
	"fmt"
	"log/slog"
)

// Registry: статический упорядоченный список генераторов.
// Зависимость должна быть зарегистрирована раньше зависимого.
type Registry struct {
	order  []Generator
	byName map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Generator)}
}

// Register добавляет генератор. Повтор имени или неизвестная зависимость — паника.
func (r *Registry) Register(g Generator) {
	name := g.Name()
	if _, exists := r.byName[name]; exists {
		panic(fmt.Sprintf("generator with name '%s' already registered", name))
	}
	for _, dep := range g.DependsOn() {
		if _, ok := r.byName[dep]; !ok {
			panic(fmt.Sprintf("generator '%s' depends on '%s', which is not registered before it", name, dep))
		}
	}
	slog.Debug("Registering generator.", "name", name, "depends_on", g.DependsOn())
	r.order = append(r.order, g)
	r.byName[name] = g
}

func (r *Registry) Lookup(name string) (Generator, bool) {
	g, ok := r.byName[name]
	return g, ok
}

// Names: имена в порядке регистрации.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, g := range r.order {
		out[i] = g.Name()
	}
	return out
}

// selected отбирает включённые генераторы в порядке регистрации,
// добавляя их зависимости. Пустой enabled значит «все».
func (r *Registry) selected(enabled []string) ([]Generator, error) {
	if len(enabled) == 0 {
		return append([]Generator(nil), r.order...), nil
	}
	want := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("unknown generator %q (known: %v)", n, r.Names())
		}
		want[n] = true
	}
	// зависимости всегда левее, поэтому хватает одного прохода справа налево
	for i := len(r.order) - 1; i >= 0; i-- {
		g := r.order[i]
		if !want[g.Name()] {
			continue
		}
		for _, dep := range g.DependsOn() {
			want[dep] = true
		}
	}
	var out []Generator
	for _, g := range r.order {
		if want[g.Name()] {
			out = append(out, g)
		}
	}
	return out, nil
}

package api

import (
	"strings"

	"stalmer/internal/ir"
)

// findEntity: сначала точное имя, затем единственное совпадение без учёта регистра.
func findEntity(app *ir.Application, name string) (*ir.Entity, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	if e := app.Entity(name); e != nil {
		return e, true
	}
	var found *ir.Entity
	for _, e := range app.Entities {
		if strings.EqualFold(e.Name, name) {
			if found != nil { // неуникально
				return nil, false
			}
			found = e
		}
	}
	return found, found != nil
}

func findEnum(app *ir.Application, name string) (*ir.Enum, bool) {
	if e := app.Enum(name); e != nil {
		return e, true
	}
	for _, e := range app.Enums {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return nil, false
}

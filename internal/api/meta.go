package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"stalmer/internal/ir"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Entity     string `json:"entity"`
	PrimaryKey string `json:"primaryKey,omitempty"`
	Fields     int    `json:"fields"`
}

func MetaListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		app := s.App()
		out := make([]metaEntityListItem, 0, len(app.Entities))
		for _, e := range app.Entities {
			out = append(out, metaEntityListItem{Entity: e.Name, PrimaryKey: e.PrimaryKey, Fields: len(e.Fields)})
		}
		c.JSON(http.StatusOK, gin.H{"app": app.Name, "entities": out})
	}
}

type metaField struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	ElemType string            `json:"elemType,omitempty"`
	Ref      string            `json:"ref,omitempty"`
	Enum     []string          `json:"enum,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
	Virtual  string            `json:"virtual,omitempty"`
	Relation *metaRelation     `json:"relation,omitempty"`
}

type metaRelation struct {
	Name        string `json:"name"`
	Cardinality string `json:"cardinality"`
	Inverse     string `json:"inverse,omitempty"`
	OnDelete    string `json:"onDelete"`
}

type metaEntity struct {
	Entity      string         `json:"entity"`
	PrimaryKey  string         `json:"primaryKey,omitempty"`
	Fields      []metaField    `json:"fields"`
	Constraints map[string]any `json:"constraints,omitempty"` // {"unique":[["email"]]}
}

func MetaEntityHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		app := s.App()
		e, ok := findEntity(app, c.Param("entity"))
		if !ok {
			notFound(c, "Entity")
			return
		}

		fields := make([]metaField, 0, len(e.Fields))
		var unique [][]string
		for _, f := range e.Fields {
			mf := metaField{Name: f.Name, Type: string(f.Type.Kind), Options: fieldOptions(f)}
			if f.Type.List {
				mf.Type, mf.ElemType = "array", string(f.Type.Kind)
			}
			switch f.Type.Kind {
			case ir.TypeEnum:
				mf.Ref = f.Type.Ref
				if en := app.Enum(f.Type.Ref); en != nil {
					mf.Enum = append([]string(nil), en.Values...)
				}
			case ir.TypeRelation:
				mf.Ref = f.Type.Ref
			}
			if f.Virtual != nil {
				mf.Virtual = f.Virtual.Source
			}
			if r := f.Relation; r != nil {
				mf.Relation = &metaRelation{
					Name:        r.Name,
					Cardinality: string(r.Cardinality),
					Inverse:     r.Inverse,
					OnDelete:    string(r.OnDelete),
				}
			}
			if f.Unique {
				unique = append(unique, []string{f.Name})
			}
			fields = append(fields, mf)
		}

		var constraints map[string]any
		if len(unique) > 0 {
			constraints = map[string]any{"unique": unique}
		}
		c.JSON(http.StatusOK, metaEntity{
			Entity:      e.Name,
			PrimaryKey:  e.PrimaryKey,
			Fields:      fields,
			Constraints: constraints,
		})
	}
}

func fieldOptions(f *ir.Field) map[string]string {
	opts := map[string]string{}
	if f.PrimaryKey {
		opts["primaryKey"] = "true"
	}
	if f.Optional {
		opts["optional"] = "true"
	}
	if d := f.Default; d != nil {
		if d.Kind == ir.DefaultFunction {
			opts["default"] = d.Func + "()"
		} else {
			opts["default"] = fmt.Sprint(d.Value)
		}
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func MetaEnumHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		en, ok := findEnum(s.App(), c.Param("name"))
		if !ok {
			notFound(c, "Enum")
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": en.Name, "items": en.Values})
	}
}

type metaPage struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Route       string   `json:"route"`
	Title       string   `json:"title"`
	Entity      string   `json:"entity,omitempty"`
	Public      bool     `json:"public"`
	Permissions []string `json:"permissions"`
}

func MetaPagesHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		app := s.App()
		out := make([]metaPage, 0, len(app.Pages))
		for _, p := range app.Pages {
			out = append(out, metaPage{
				Name:        p.Name,
				Type:        string(p.Type),
				Route:       p.Route,
				Title:       p.Title,
				Entity:      p.Entity,
				Public:      p.Public(),
				Permissions: append([]string{}, p.Permissions...),
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// MetaIRHandler: модель целиком; литеральные секреты скрывает Config.MarshalJSON.
func MetaIRHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.App())
	}
}

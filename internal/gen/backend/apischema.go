package backend

import (
	"encoding/json"
	"net/http"

	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

// SchemaPath: путь артефакта API-схемы внутри дерева backend; вход фронтенда.
const SchemaPath = "api/schema.json"

// APISchema: описание HTTP API сгенерированного бэкенда.
type APISchema struct {
	Name      string        `json:"name"`
	Database  ir.Database   `json:"database"`
	Auth      string        `json:"auth"`
	Resources []Resource    `json:"resources"`
	Views     []ViewRoute   `json:"views"`
	Pages     []PageAccess  `json:"pages"`
	Workflows []WorkflowRef `json:"workflows"`
}

type Resource struct {
	Name       string          `json:"name"`
	Path       string          `json:"path"`
	PrimaryKey string          `json:"primaryKey,omitempty"`
	Fields     []ResourceField `json:"fields"`
	Operations []Operation     `json:"operations"`
}

type ResourceField struct {
	Name        string         `json:"name"`
	Type        ir.TypeKind    `json:"type"`
	Ref         string         `json:"ref,omitempty"`
	List        bool           `json:"list,omitempty"`
	Optional    bool           `json:"optional,omitempty"`
	Unique      bool           `json:"unique,omitempty"`
	ReadOnly    bool           `json:"readOnly,omitempty"`
	WriteOnly   bool           `json:"writeOnly,omitempty"`
	Cardinality ir.Cardinality `json:"cardinality,omitempty"`
	Relation    string         `json:"relation,omitempty"`
}

type Operation struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

type ViewRoute struct {
	Name   string          `json:"name"`
	Path   string          `json:"path"`
	Source string          `json:"source"`
	Fields []ResourceField `json:"fields"`
}

type PageAccess struct {
	Name        string      `json:"name"`
	Type        ir.PageType `json:"type"`
	Route       string      `json:"route"`
	Title       string      `json:"title"`
	Entity      string      `json:"entity,omitempty"`
	Resource    string      `json:"resource,omitempty"`
	Permissions []string    `json:"permissions"`
	Columns     []string    `json:"columns,omitempty"`
	Fields      []string    `json:"fields,omitempty"`
	Component   string      `json:"component,omitempty"`
}

type WorkflowRef struct {
	Name    string `json:"name"`
	Event   string `json:"event"`
	Handler string `json:"handler"`
}

// BuildAPISchema строит схему API из IR.
func BuildAPISchema(app *ir.Application, opts gen.Options) *APISchema {
	s := &APISchema{
		Name:      app.Name,
		Database:  opts.Database,
		Auth:      opts.Auth,
		Resources: []Resource{},
		Views:     []ViewRoute{},
		Pages:     []PageAccess{},
		Workflows: []WorkflowRef{},
	}
	for _, e := range app.Entities {
		s.Resources = append(s.Resources, resourceOf(e))
	}
	for _, v := range app.Views {
		vr := ViewRoute{Name: v.Name, Path: "/api/views/" + ir.Kebab(v.Name), Source: v.Source, Fields: []ResourceField{}}
		src := app.Entity(v.Source)
		for _, f := range v.Fields {
			rf := ResourceField{Name: f.Name, Type: f.ResultType, ReadOnly: true}
			if f.Ref != "" && src != nil {
				if sf := src.Field(f.Ref); sf != nil {
					rf.Type, rf.Ref = sf.Type.Kind, sf.Type.Ref
					rf.Optional = sf.Optional
				}
			}
			vr.Fields = append(vr.Fields, rf)
		}
		s.Views = append(s.Views, vr)
	}
	for _, p := range app.Pages {
		pa := PageAccess{
			Name:        p.Name,
			Type:        p.Type,
			Route:       p.Route,
			Title:       p.Title,
			Entity:      p.Entity,
			Permissions: p.Permissions,
			Columns:     p.Columns,
			Fields:      p.Fields,
			Component:   p.Component,
		}
		if p.Entity != "" {
			pa.Resource = resourcePath(p.Entity)
		}
		s.Pages = append(s.Pages, pa)
	}
	for _, w := range app.Workflows {
		s.Workflows = append(s.Workflows, WorkflowRef{Name: w.Name, Event: w.Trigger.Event, Handler: ir.HandlerName(w.Name)})
	}
	return s
}

func resourceOf(e *ir.Entity) Resource {
	path := resourcePath(e.Name)
	r := Resource{Name: e.Name, Path: path, PrimaryKey: e.PrimaryKey, Fields: []ResourceField{}}
	for _, f := range e.Fields {
		rf := ResourceField{
			Name:      f.Name,
			Type:      f.Type.Kind,
			Ref:       f.Type.Ref,
			List:      f.Type.List,
			Optional:  f.Optional,
			Unique:    f.Unique,
			ReadOnly:  f.Virtual != nil || (f.PrimaryKey && f.Default != nil),
			WriteOnly: f.Type.Kind == ir.TypePassword,
		}
		if f.Relation != nil {
			rf.Cardinality = f.Relation.Cardinality
			rf.Relation = f.Relation.Name
		}
		r.Fields = append(r.Fields, rf)
	}

	id := ir.Camel(e.Name)
	r.Operations = []Operation{
		{ID: "list" + ir.Pascal(e.Name), Method: http.MethodGet, Path: path},
		{ID: "create" + ir.Pascal(e.Name), Method: http.MethodPost, Path: path},
	}
	// операции над одной записью требуют ключа
	if e.PrimaryKey != "" {
		item := path + "/{" + id + "Id}"
		r.Operations = append(r.Operations,
			Operation{ID: "get" + ir.Pascal(e.Name), Method: http.MethodGet, Path: item},
			Operation{ID: "update" + ir.Pascal(e.Name), Method: http.MethodPut, Path: item},
			Operation{ID: "delete" + ir.Pascal(e.Name), Method: http.MethodDelete, Path: item},
		)
	}
	return r
}

func resourcePath(entity string) string {
	return "/api/" + plural(ir.Kebab(entity))
}

func renderAPISchema(s *APISchema) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

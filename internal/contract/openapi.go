package contract

import (
	"encoding/json"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/spec"
	"github.com/swaggo/swag"

	"repaytrack/internal/models"
)

// Version is reported in the API document.
const Version = "1.0"

var (
	dateType = reflect.TypeOf(models.Date{})
	timeType = reflect.TypeOf(time.Time{})
)

// OpenAPI renders Routes as a Swagger 2.0 document.
func OpenAPI() *spec.Swagger {
	doc := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger:  "2.0",
			Consumes: []string{"application/json"},
			Produces: []string{"application/json"},
			Info: &spec.Info{
				InfoProps: spec.InfoProps{
					Title:       "repaytrack API",
					Description: "Track repayment budgets and their monthly installments.",
					Version:     Version,
				},
			},
			Paths:       &spec.Paths{Paths: map[string]spec.PathItem{}},
			Definitions: spec.Definitions{},
			SecurityDefinitions: spec.SecurityDefinitions{
				"BearerAuth": spec.APIKeyAuth("Authorization", "header"),
			},
		},
	}

	for _, r := range Routes {
		op := spec.NewOperation(r.Name).
			WithSummary(r.Summary).
			WithTags(r.Tag)

		for _, name := range pathParams(r.Path) {
			op.AddParam(spec.PathParam(name).Typed("integer", "int64"))
		}
		if r.Input != nil {
			op.AddParam(spec.BodyParam("body", schemaRef(doc, reflect.TypeOf(r.Input))).AsRequired())
		}
		if !r.Public {
			op.SecuredWith("BearerAuth")
		}

		statuses := make([]int, 0, len(r.Responses))
		for status := range r.Responses {
			statuses = append(statuses, status)
		}
		sort.Ints(statuses)
		for _, status := range statuses {
			resp := spec.NewResponse().WithDescription(http.StatusText(status))
			if body := r.Responses[status]; body != nil {
				resp.WithSchema(schemaRef(doc, reflect.TypeOf(body)))
			}
			op.RespondsWith(status, resp)
		}

		path := swaggerPath(r.Path)
		item := doc.Paths.Paths[path]
		switch r.Method {
		case http.MethodGet:
			item.Get = op
		case http.MethodPost:
			item.Post = op
		case http.MethodPut:
			item.Put = op
		case http.MethodPatch:
			item.Patch = op
		case http.MethodDelete:
			item.Delete = op
		}
		doc.Paths.Paths[path] = item
	}

	return doc
}

// schemaRef returns the schema for t, registering named structs as
// definitions and referring to them.
func schemaRef(doc *spec.Swagger, t reflect.Type) *spec.Schema {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch {
	case t == dateType:
		return spec.DateProperty()
	case t == timeType:
		return spec.DateTimeProperty()
	}

	switch t.Kind() {
	case reflect.Bool:
		return spec.BoolProperty()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return spec.Int32Property()
	case reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return spec.Int64Property()
	case reflect.Float32, reflect.Float64:
		return spec.Float64Property()
	case reflect.String:
		return spec.StringProperty()
	case reflect.Slice, reflect.Array:
		return spec.ArrayProperty(schemaRef(doc, t.Elem()))
	case reflect.Struct:
		name := t.Name()
		if _, ok := doc.Definitions[name]; !ok {
			// Reserve the name first so self-referencing types terminate.
			doc.Definitions[name] = spec.Schema{}
			doc.Definitions[name] = *structSchema(doc, t)
		}
		return spec.RefSchema("#/definitions/" + name)
	default:
		return &spec.Schema{}
	}
}

func structSchema(doc *spec.Swagger, t reflect.Type) *spec.Schema {
	s := new(spec.Schema).Typed("object", "")

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			embedded := structSchema(doc, f.Type)
			for name, prop := range embedded.Properties {
				s.SetProperty(name, prop)
			}
			s.Required = append(s.Required, embedded.Required...)
			continue
		}

		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		prop := schemaRef(doc, f.Type)
		applyBindingRules(prop, f.Tag.Get("binding"))
		s.SetProperty(name, *prop)
		if hasRule(f.Tag.Get("binding"), "required") {
			s.Required = append(s.Required, name)
		}
	}
	return s
}

// applyBindingRules mirrors the numeric bounds of validation tags into the
// schema.
func applyBindingRules(s *spec.Schema, tag string) {
	for _, rule := range strings.Split(tag, ",") {
		key, value, ok := strings.Cut(rule, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		switch key {
		case "gt":
			s.WithMinimum(n, true)
		case "min", "gte":
			s.WithMinimum(n, false)
		case "max", "lte":
			s.WithMaximum(n, false)
		case "lt":
			s.WithMaximum(n, true)
		}
	}
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if r == rule {
			return true
		}
	}
	return false
}

func pathParams(path string) []string {
	var params []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ":") {
			params = append(params, seg[1:])
		}
	}
	return params
}

// swaggerPath converts /a/:id to /a/{id}.
func swaggerPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

type swaggerDoc struct {
	once sync.Once
	json string
}

// ReadDoc implements swag.Swagger.
func (d *swaggerDoc) ReadDoc() string {
	d.once.Do(func() {
		b, err := json.Marshal(OpenAPI())
		if err != nil {
			d.json = "{}"
			return
		}
		d.json = string(b)
	})
	return d.json
}

var registerOnce sync.Once

// RegisterDocs publishes the API document under swag's default instance
// name so gin-swagger can serve it. Safe to call more than once.
func RegisterDocs() {
	registerOnce.Do(func() {
		swag.Register(swag.Name, &swaggerDoc{})
	})
}

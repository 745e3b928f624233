package openapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

var documentedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// RouteSource lists registered routes. *echo.Echo satisfies it.
type RouteSource interface {
	Routes() []*echo.Route
}

// Generator builds an OpenAPI 3.0 document from the routes registered under
// prefix. It is evaluated on every request so routes added after the
// generator was created still appear.
type Generator struct {
	routes  RouteSource
	prefix  string
	version string
	baseURL string
}

// NewGenerator creates a new OpenAPI document generator.
func NewGenerator(routes RouteSource, prefix, version, baseURL string) *Generator {
	return &Generator{routes: routes, prefix: prefix, version: version, baseURL: baseURL}
}

// GenerateSpec produces the OpenAPI 3.0 document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})
	tagSet := make(map[string]bool)

	for _, r := range g.routes.Routes() {
		if !documentedMethods[r.Method] || !strings.HasPrefix(r.Path, g.prefix+"/") || strings.HasSuffix(r.Path, "*") {
			continue
		}
		rel := strings.TrimPrefix(r.Path, g.prefix)
		if rel == "/openapi.json" || rel == "/docs" {
			continue
		}

		path, params := convertPath(rel)
		tag := tagFor(rel)
		tagSet[tag] = true

		item, _ := paths[path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[path] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r, tag, params)
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	tagList := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		tagList = append(tagList, map[string]string{"name": t})
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Randevu Appointment API",
			"version":     g.version,
			"description": "Patient, doctor and appointment administration with a public booking flow",
		},
		"servers": []map[string]string{
			{"url": g.baseURL + g.prefix},
		},
		"tags":  tagList,
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error":      buildErrorSchema(),
				"FieldError": buildFieldErrorSchema(),
			},
		},
	}
}

func (g *Generator) buildOperation(r *echo.Route, tag string, params []string) map[string]interface{} {
	op := map[string]interface{}{
		"operationId": operationID(r),
		"summary":     summaryFor(r),
		"tags":        []string{tag},
		"responses":   buildResponses(r.Method, len(params) > 0),
	}

	if len(params) > 0 {
		list := make([]map[string]interface{}, 0, len(params))
		for _, p := range params {
			list = append(list, map[string]interface{}{
				"name":     p,
				"in":       "path",
				"required": true,
				"schema":   map[string]interface{}{"type": "integer", "format": "int64", "minimum": 1},
			})
		}
		op["parameters"] = list
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		op["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				echo.MIMEApplicationJSON: map[string]interface{}{
					"schema": map[string]interface{}{"type": "object"},
				},
				echo.MIMEApplicationForm: map[string]interface{}{
					"schema": map[string]interface{}{"type": "object"},
				},
			},
		}
	}
	return op
}

// convertPath turns echo's :name segments into {name} and returns the names.
func convertPath(path string) (string, []string) {
	segments := strings.Split(path, "/")
	var params []string
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			name := s[1:]
			params = append(params, name)
			segments[i] = "{" + name + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

// tagFor groups routes by their first path segment.
func tagFor(rel string) string {
	seg := strings.SplitN(strings.TrimPrefix(rel, "/"), "/", 2)[0]
	if seg == "" {
		return "default"
	}
	return seg
}

// operationID derives a name from the handler, e.g.
// "github.com/x/identity.(*Handler).ListPatients-fm" becomes "identity.ListPatients".
func operationID(r *echo.Route) string {
	name := strings.TrimSuffix(r.Name, "-fm")
	pkg := name
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	if i := strings.Index(pkg, "."); i >= 0 {
		pkg = pkg[:i]
	}
	fn := name
	if i := strings.LastIndex(fn, "."); i >= 0 {
		fn = fn[i+1:]
	}
	if fn == "" || strings.HasPrefix(fn, "func") {
		return strings.ToLower(r.Method) + strings.NewReplacer("/", "_", ":", "").Replace(r.Path)
	}
	return pkg + "." + fn
}

// summaryFor splits a handler name into words: "ListPatients" becomes "List patients".
func summaryFor(r *echo.Route) string {
	id := operationID(r)
	if i := strings.LastIndex(id, "."); i >= 0 {
		id = id[i+1:]
	}
	var b strings.Builder
	for i, c := range id {
		if i > 0 && c >= 'A' && c <= 'Z' {
			b.WriteByte(' ')
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}

func buildResponses(method string, hasID bool) map[string]interface{} {
	success := "200"
	switch method {
	case http.MethodPost:
		success = "201"
	case http.MethodDelete:
		success = "204"
	}

	responses := map[string]interface{}{
		success: map[string]interface{}{"description": "Success"},
		"500":   errorResponse("Store failure"),
	}
	if method != http.MethodGet {
		responses["400"] = errorResponse("Malformed request or missing CSRF token")
		responses["403"] = errorResponse("Forbidden")
		responses["409"] = errorResponse("Conflicting state")
		responses["422"] = errorResponse("Validation failed")
	}
	if hasID {
		responses["400"] = errorResponse("Malformed id or request")
		responses["404"] = errorResponse("Not found")
	}
	return responses
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			echo.MIMEApplicationJSON: map[string]interface{}{
				"schema": map[string]interface{}{"$ref": "#/components/schemas/Error"},
			},
		},
	}
}

func buildErrorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"message"},
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string"},
			"fields": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"$ref": "#/components/schemas/FieldError"},
			},
		},
	}
}

func buildFieldErrorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"field", "message"},
		"properties": map[string]interface{}{
			"field":   map[string]interface{}{"type": "string"},
			"message": map[string]interface{}{"type": "string"},
		},
	}
}

// ── Swagger UI ──────────────────────────────────────────────────────────

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Randevu API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "%s/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	docs := fmt.Sprintf(swaggerUIHTML, g.prefix)
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, docs)
	})
}

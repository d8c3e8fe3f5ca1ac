// Package openapi converts OpenAPI 3 documents into endpoint definitions.
package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/abdul-hamid-achik/apischema/packages/body"
	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/abdul-hamid-achik/apischema/packages/params"
	"github.com/abdul-hamid-achik/apischema/packages/schema"
)

const maxSchemaDepth = 5

var (
	templateParam = regexp.MustCompile(`\{([^}]+)\}`)
	nonWord       = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

// Converter turns OpenAPI operations into endpoint definitions.
type Converter struct {
	rootURL     string
	tags        []string
	excludeTags []string
	operations  []string
	logger      *slog.Logger
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithRootURL overrides the root URL taken from the document servers.
func WithRootURL(u string) Option {
	return func(c *Converter) {
		c.rootURL = u
	}
}

// WithTags keeps only operations carrying one of tags.
func WithTags(tags []string) Option {
	return func(c *Converter) {
		c.tags = tags
	}
}

// WithExcludeTags drops operations carrying any of tags.
func WithExcludeTags(tags []string) Option {
	return func(c *Converter) {
		c.excludeTags = tags
	}
}

// WithOperations keeps only the named operation IDs.
func WithOperations(ops []string) Option {
	return func(c *Converter) {
		c.operations = ops
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewConverter(opts ...Option) *Converter {
	c := &Converter{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile loads a document from a path or an http(s) URL.
func (c *Converter) ConvertFile(ctx context.Context, source string) (*schema.Document, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	var (
		doc *openapi3.T
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		var u *url.URL
		u, err = url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		loader.IsExternalRefsAllowed = true
		doc, err = loader.LoadFromURI(u)
	} else {
		doc, err = loader.LoadFromFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return c.Convert(ctx, doc)
}

// ConvertData loads a document held in memory, in JSON or YAML.
func (c *Converter) ConvertData(ctx context.Context, data []byte) (*schema.Document, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return c.Convert(ctx, doc)
}

// Convert builds one endpoint per selected operation. Paths and methods are
// visited in sorted order so output is stable. Names are unique and made of
// word characters only.
func (c *Converter) Convert(ctx context.Context, doc *openapi3.T) (*schema.Document, error) {
	if err := doc.Validate(ctx); err != nil {
		c.logger.WarnContext(ctx, "OpenAPI document has validation issues", "error", err)
	}

	out := &schema.Document{RootURL: c.getRootURL(doc)}
	if doc.Paths == nil {
		return out, nil
	}

	seen := make(map[string]int)
	pathItems := doc.Paths.Map()
	paths := make([]string, 0, len(pathItems))
	for p := range pathItems {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := pathItems[path]
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, m := range methods {
			op := ops[m]
			method, err := http.ParseMethod(m)
			if err != nil {
				c.logger.DebugContext(ctx, "skipping unsupported method", "method", m, "path", path)
				continue
			}
			if !c.shouldInclude(op) {
				continue
			}

			ep := c.convertOperation(path, method, item.Parameters, op)
			seen[ep.Name]++
			if n := seen[ep.Name]; n > 1 {
				ep.Name = fmt.Sprintf("%s_%d", ep.Name, n)
			}
			out.Endpoints = append(out.Endpoints, ep)
		}
	}

	return out, nil
}

func (c *Converter) getRootURL(doc *openapi3.T) string {
	if c.rootURL != "" {
		return c.rootURL
	}
	if len(doc.Servers) == 0 {
		return ""
	}
	server := doc.Servers[0]
	u := server.URL
	for name, v := range server.Variables {
		u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
	}
	// Relative server URLs cannot serve as a root.
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return ""
	}
	return strings.TrimSuffix(u, "/")
}

func (c *Converter) shouldInclude(op *openapi3.Operation) bool {
	if len(c.operations) > 0 && !slices.Contains(c.operations, op.OperationID) {
		return false
	}
	for _, tag := range op.Tags {
		if slices.Contains(c.excludeTags, tag) {
			return false
		}
	}
	if len(c.tags) > 0 {
		for _, tag := range op.Tags {
			if slices.Contains(c.tags, tag) {
				return true
			}
		}
		return false
	}
	return true
}

func (c *Converter) convertOperation(path string, method http.Method, shared openapi3.Parameters, op *openapi3.Operation) schema.Endpoint {
	name := op.OperationID
	if name == "" {
		name = strings.ToLower(method.String()) + "_" + path
	}

	ep := schema.Endpoint{
		Name:   sanitizeName(name),
		Path:   convertPath(path),
		Method: method,
	}

	pathValues := make(map[string]any)
	var query []params.Param
	for _, ref := range mergeParameters(shared, op.Parameters) {
		p := ref.Value
		switch p.In {
		case openapi3.ParameterInPath:
			pathValues[sanitizeName(p.Name)] = getParamExample(p)
		case openapi3.ParameterInQuery:
			if !p.Required && !hasExample(p) {
				continue
			}
			query = append(query, params.Param{Name: p.Name, Value: getParamExample(p)})
		}
	}
	if len(pathValues) > 0 {
		ep.PathParams = params.Map(pathValues)
	}
	if len(query) > 0 {
		ep.QueryString = params.List(query...)
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		ep.Body, ep.Uploads = generateRequestBody(op.RequestBody.Value)
	}
	if method == http.MethodPost && returnsBinary(op) {
		ep.Encoding = "binary"
	}
	return ep
}

// mergeParameters lets operation parameters override path-level ones of the
// same name and location.
func mergeParameters(shared, own openapi3.Parameters) openapi3.Parameters {
	var out openapi3.Parameters
	for _, ref := range shared {
		if ref == nil || ref.Value == nil {
			continue
		}
		if own.GetByInAndName(ref.Value.In, ref.Value.Name) != nil {
			continue
		}
		out = append(out, ref)
	}
	for _, ref := range own {
		if ref != nil && ref.Value != nil {
			out = append(out, ref)
		}
	}
	return out
}

// convertPath rewrites {name} templates as :name placeholders.
func convertPath(path string) string {
	return templateParam.ReplaceAllStringFunc(path, func(m string) string {
		return ":" + sanitizeName(m[1:len(m)-1])
	})
}

func hasExample(p *openapi3.Parameter) bool {
	if p.Example != nil {
		return true
	}
	return p.Schema != nil && p.Schema.Value != nil && p.Schema.Value.Example != nil
}

func getParamExample(p *openapi3.Parameter) any {
	if p.Example != nil {
		return scalar(p.Example)
	}
	if p.Schema == nil || p.Schema.Value == nil {
		return "value"
	}
	s := p.Schema.Value
	if s.Example != nil {
		return scalar(s.Example)
	}
	if s.Default != nil {
		return scalar(s.Default)
	}
	switch {
	case s.Type.Is("integer"), s.Type.Is("number"):
		return 1
	case s.Type.Is("boolean"):
		return "true"
	case len(s.Enum) > 0:
		return scalar(s.Enum[0])
	}
	return "value"
}

// scalar keeps numbers and strings, rendering anything else as text.
func scalar(v any) any {
	switch val := v.(type) {
	case string, int, int64, float64:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func generateRequestBody(rb *openapi3.RequestBody) (map[string]any, []body.Upload) {
	if mt := rb.Content.Get("application/json"); mt != nil {
		if m, ok := mediaExample(mt).(map[string]any); ok {
			return m, nil
		}
		return nil, nil
	}

	mt := rb.Content.Get("multipart/form-data")
	if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
		return nil, nil
	}

	fields := make(map[string]any)
	var uploads []body.Upload
	props := mt.Schema.Value.Properties
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		prop := props[n]
		if prop == nil || prop.Value == nil {
			continue
		}
		if prop.Value.Format == "binary" {
			uploads = append(uploads, body.Upload{FieldName: n, SourcePath: "./" + n})
			continue
		}
		fields[n] = generateValue(prop.Value, 0)
	}
	if len(fields) == 0 {
		fields = nil
	}
	return fields, uploads
}

func mediaExample(mt *openapi3.MediaType) any {
	if mt.Example != nil {
		return mt.Example
	}
	for _, ex := range mt.Examples {
		if ex != nil && ex.Value != nil && ex.Value.Value != nil {
			return ex.Value.Value
		}
	}
	if mt.Schema != nil && mt.Schema.Value != nil {
		return generateValue(mt.Schema.Value, 0)
	}
	return nil
}

func generateValue(s *openapi3.Schema, depth int) any {
	if depth > maxSchemaDepth {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if s.Default != nil {
		return s.Default
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch {
	case s.Type.Is("object") || len(s.Properties) > 0:
		obj := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			if prop != nil && prop.Value != nil {
				obj[name] = generateValue(prop.Value, depth+1)
			}
		}
		return obj
	case s.Type.Is("array"):
		if s.Items != nil && s.Items.Value != nil {
			return []any{generateValue(s.Items.Value, depth+1)}
		}
		return []any{}
	case s.Type.Is("integer"):
		return 0
	case s.Type.Is("number"):
		return 0.0
	case s.Type.Is("boolean"):
		return false
	case s.Type.Is("string"):
		switch s.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "00000000-0000-0000-0000-000000000000"
		case "uri", "url":
			return "https://example.com"
		}
		return "string"
	}
	return nil
}

// returnsBinary reports whether the first success response is a raw byte
// stream.
func returnsBinary(op *openapi3.Operation) bool {
	if op.Responses == nil {
		return false
	}
	for _, code := range []string{"200", "201"} {
		resp := op.Responses.Value(code)
		if resp == nil || resp.Value == nil {
			continue
		}
		return resp.Value.Content.Get("application/octet-stream") != nil
	}
	return false
}

func sanitizeName(name string) string {
	result := strings.Trim(nonWord.ReplaceAllString(name, "_"), "_")
	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	if result == "" {
		return "endpoint"
	}
	return result
}

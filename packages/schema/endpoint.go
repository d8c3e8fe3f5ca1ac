package schema

import (
	"time"

	"github.com/abdul-hamid-achik/apischema/packages/body"
	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/abdul-hamid-achik/apischema/packages/params"
)

// Endpoint is the static definition of one named HTTP operation.
type Endpoint struct {
	Name        string         `json:"name" yaml:"name"`
	Path        string         `json:"path" yaml:"path"`
	Method      http.Method    `json:"method" yaml:"method"`
	QueryString *params.Set    `json:"queryString,omitempty" yaml:"queryString,omitempty"`
	PathParams  *params.Set    `json:"pathParams,omitempty" yaml:"pathParams,omitempty"`
	Body        map[string]any `json:"body,omitempty" yaml:"body,omitempty"`
	Uploads     []body.Upload  `json:"uploads,omitempty" yaml:"uploads,omitempty"`
	// Encoding controls how POST response bodies are decoded: "" for text,
	// "binary" for raw bytes, or a charset label such as "latin1".
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	// Timeout bounds each call in milliseconds. Zero uses the client timeout.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TimeoutDuration converts the millisecond timeout into a time.Duration.
func (e Endpoint) TimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Millisecond
}

// Clone returns a deep copy that shares no mutable state with e.
func (e Endpoint) Clone() Endpoint {
	out := e
	out.QueryString = e.QueryString.Clone()
	out.PathParams = e.PathParams.Clone()
	out.Body = cloneMap(e.Body)
	out.Uploads = body.CloneUploads(e.Uploads)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

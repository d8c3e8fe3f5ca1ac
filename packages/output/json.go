package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/abdul-hamid-achik/apischema/packages/http"
)

// JSONOutput is the machine-readable form of one call.
type JSONOutput struct {
	Endpoint string        `json:"endpoint"`
	Request  *JSONRequest  `json:"request,omitempty"`
	Response *JSONResponse `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body"`
	Duration   int64             `json:"elapsedTimeMs"`
}

// JSONFormatter writes call results as JSON documents.
type JSONFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	indent bool
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		indent: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithCompact disables indentation.
func JSONWithCompact(compact bool) JSONOption {
	return func(f *JSONFormatter) {
		f.indent = !compact
	}
}

func (f *JSONFormatter) FormatResponse(name string, resp *http.Response) {
	f.write(JSONOutput{
		Endpoint: name,
		Request:  &JSONRequest{Method: resp.Method, URL: resp.URL},
		Response: &JSONResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
			Duration:   resp.DurationMs(),
		},
	})
}

func (f *JSONFormatter) FormatValue(v any) {
	f.write(v)
}

func (f *JSONFormatter) FormatError(err error) {
	f.write(JSONOutput{Error: err.Error()})
}

func (f *JSONFormatter) FormatHeader(string) {}

func (f *JSONFormatter) write(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	enc := json.NewEncoder(f.writer)
	if f.indent {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

package http

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/htmlindex"
)

// EncodingBinary keeps the response body as raw bytes.
const EncodingBinary = "binary"

type Response struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Headers    map[string]string
	Raw        []byte
	// Body is the parsed body: decoded JSON when the payload is JSON, a string
	// otherwise, or []byte for binary encoding.
	Body     any
	Duration time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Raw)
}

// Get looks up a gjson path in the JSON body.
func (r *Response) Get(path string) gjson.Result {
	if !gjson.ValidBytes(r.Raw) {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Raw, path)
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// ToJSON returns the normalized {request:{method, uri}, statusCode, body} shape.
func (r *Response) ToJSON() map[string]any {
	return map[string]any{
		"request": map[string]any{
			"method": r.Method,
			"uri":    r.URL,
		},
		"statusCode":    r.StatusCode,
		"headers":       r.Headers,
		"body":          r.Body,
		"elapsedTimeMs": r.DurationMs(),
	}
}

// decodeBody converts raw bytes according to the requested encoding, then
// parses JSON when the text is valid JSON.
func decodeBody(raw []byte, encoding string) any {
	if encoding == EncodingBinary {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}

	text := raw
	if encoding != "" {
		if enc, err := htmlindex.Get(encoding); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(raw); err == nil {
				text = decoded
			}
		}
	}

	trimmed := bytes.TrimSpace(text)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var parsed any
		if err := json.Unmarshal(trimmed, &parsed); err == nil {
			return parsed
		}
	}
	return string(text)
}

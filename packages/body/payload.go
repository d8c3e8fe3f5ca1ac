package body

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/apischema/packages/params"
)

// JSON is a structured body encoded as JSON.
type JSON struct {
	Value map[string]any
}

func (p *JSON) ContentType() string {
	return "application/json"
}

func (p *JSON) Reader() (io.Reader, error) {
	data, err := json.Marshal(p.Value)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON body: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (p *JSON) Close() error {
	return nil
}

type filePart struct {
	upload Upload
	stream io.ReadCloser
}

// Multipart is a form-data body with file parts followed by string fields.
type Multipart struct {
	files    []filePart
	fields   []Field
	boundary string
	closed   bool
}

// Field is a string form field of a multipart body.
type Field struct {
	Name  string
	Value string
}

// Fields returns the string fields in the order they are written.
func (p *Multipart) Fields() []Field {
	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Uploads returns the file uploads in the order they are written.
func (p *Multipart) Uploads() []Upload {
	out := make([]Upload, 0, len(p.files))
	for _, f := range p.files {
		out = append(out, f.upload)
	}
	return out
}

func (p *Multipart) ContentType() string {
	return "multipart/form-data; boundary=" + p.boundary
}

// Reader copies every open upload stream into the encoded form.
func (p *Multipart) Reader() (io.Reader, error) {
	if p.closed {
		return nil, errors.New("multipart payload already closed")
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if err := writer.SetBoundary(p.boundary); err != nil {
		return nil, err
	}

	for _, f := range p.files {
		part, err := writer.CreatePart(fileHeader(f.upload))
		if err != nil {
			return nil, fmt.Errorf("creating part %s: %w", f.upload.FieldName, err)
		}
		if _, err := io.Copy(part, f.stream); err != nil {
			return nil, fmt.Errorf("copying %s: %w", f.upload.SourcePath, err)
		}
	}

	for _, f := range p.fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", f.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes every upload stream. It is safe to call more than once.
func (p *Multipart) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for _, f := range p.files {
		if err := f.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(u Upload) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(u.FieldName), quoteEscaper.Replace(u.Name())))
	if ct := u.MediaType(); ct != "" {
		h.Set("Content-Type", ct)
	}
	return h
}

// formFields coerces every body value to a string, in key order.
func formFields(values map[string]any) []Field {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: stringifyField(values[k])})
	}
	return fields
}

func stringifyField(v any) string {
	switch v.(type) {
	case map[string]any, []any, map[string]string, []string:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	s, _ := params.Stringify(v)
	return s
}

package body

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/abdul-hamid-achik/apischema/packages/http"
)

// ErrOpenUpload is matched by errors from opening an upload source.
var ErrOpenUpload = errors.New("cannot open upload")

// Assembler decides between a JSON and a multipart payload for a call.
type Assembler struct {
	files  Files
	logger *slog.Logger
}

type AssemblerOption func(*Assembler)

func NewAssembler(files Files, opts ...AssemblerOption) *Assembler {
	if files == nil {
		files = OSFiles{}
	}
	a := &Assembler{
		files:  files,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assemble builds the payload for a call. The call-time body replaces the
// static one when present. A nil payload means no request body.
//
// Uploads are honored only for POST, where they turn the request into
// multipart form data carrying the body fields as strings. GET never sends a
// body. The caller must Close the returned payload.
func (a *Assembler) Assemble(method http.Method, staticBody, callBody map[string]any, uploads []Upload) (http.Payload, error) {
	values := staticBody
	if callBody != nil {
		values = callBody
	}

	if len(uploads) > 0 && !method.AllowsUploads() {
		a.logger.Warn("ignoring uploads for method without upload support",
			"method", method.String(), "uploads", len(uploads))
		uploads = nil
	}

	if len(uploads) > 0 {
		p, err := a.multipart(values, uploads)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	if !method.AllowsBody() || values == nil {
		return nil, nil
	}
	return &JSON{Value: maps.Clone(values)}, nil
}

func (a *Assembler) multipart(values map[string]any, uploads []Upload) (*Multipart, error) {
	boundary, err := randomBoundary()
	if err != nil {
		return nil, err
	}

	p := &Multipart{boundary: boundary, fields: formFields(values)}
	for _, u := range uploads {
		stream, err := a.files.Open(u.SourcePath)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("%w: field %q from %s: %w", ErrOpenUpload, u.FieldName, u.SourcePath, err)
		}
		p.files = append(p.files, filePart{upload: u, stream: stream})
	}
	return p, nil
}

func randomBoundary() (string, error) {
	var buf [30]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

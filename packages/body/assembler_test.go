package body

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingFiles struct {
	contents map[string]string
	opened   []*trackedStream
}

type trackedStream struct {
	io.Reader
	closed bool
}

func (s *trackedStream) Close() error {
	s.closed = true
	return nil
}

func (f *trackingFiles) Open(path string) (io.ReadCloser, error) {
	content, ok := f.contents[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	s := &trackedStream{Reader: strings.NewReader(content)}
	f.opened = append(f.opened, s)
	return s, nil
}

func (f *trackingFiles) ReadFile(path string) ([]byte, error) {
	content, ok := f.contents[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

type part struct {
	filename    string
	contentType string
	content     string
}

func readMultipart(t *testing.T, p http.Payload) map[string]part {
	t.Helper()
	_, mediaParams, err := mime.ParseMediaType(p.ContentType())
	require.NoError(t, err)

	r, err := p.Reader()
	require.NoError(t, err)

	parts := make(map[string]part)
	mr := multipart.NewReader(r, mediaParams["boundary"])
	for {
		pt, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(pt)
		require.NoError(t, err)
		parts[pt.FormName()] = part{
			filename:    pt.FileName(),
			contentType: pt.Header.Get("Content-Type"),
			content:     string(data),
		}
	}
	return parts
}

func TestAssemble_MultipartWithFields(t *testing.T) {
	files := &trackingFiles{contents: map[string]string{"/data/photo.png": "PNGDATA"}}
	a := NewAssembler(files)

	payload, err := a.Assemble(http.MethodPost, nil,
		map[string]any{"title": "x", "userId": 1, "meta": map[string]any{"k": "v"}},
		[]Upload{{FieldName: "file", SourcePath: "/data/photo.png"}})
	require.NoError(t, err)
	defer payload.Close()

	assert.True(t, strings.HasPrefix(payload.ContentType(), "multipart/form-data; boundary="))

	parts := readMultipart(t, payload)
	require.Len(t, parts, 4)
	assert.Equal(t, part{filename: "photo.png", contentType: "image/png", content: "PNGDATA"}, parts["file"])
	assert.Equal(t, "x", parts["title"].content)
	assert.Equal(t, "1", parts["userId"].content)
	assert.Equal(t, `{"k":"v"}`, parts["meta"].content)
	assert.Empty(t, parts["title"].filename)
}

func TestMultipart_Describe(t *testing.T) {
	files := &trackingFiles{contents: map[string]string{"a.txt": "A", "b.csv": "B"}}
	a := NewAssembler(files)

	payload, err := a.Assemble(http.MethodPost, map[string]any{"z": true, "a": 2}, nil, []Upload{
		{FieldName: "second", SourcePath: "b.csv"},
		{FieldName: "first", SourcePath: "a.txt", ContentType: "text/plain"},
	})
	require.NoError(t, err)
	defer payload.Close()

	mp, ok := payload.(*Multipart)
	require.True(t, ok, "expected multipart payload, got %T", payload)

	assert.Equal(t, []Field{{Name: "a", Value: "2"}, {Name: "z", Value: "true"}}, mp.Fields())

	uploads := mp.Uploads()
	require.Len(t, uploads, 2)
	assert.Equal(t, "second", uploads[0].FieldName)
	assert.Equal(t, "first", uploads[1].FieldName)
	assert.Equal(t, "text/plain", uploads[1].ContentType)
}

func TestAssemble_PlainJSON(t *testing.T) {
	a := NewAssembler(&trackingFiles{})

	payload, err := a.Assemble(http.MethodPost, nil, map[string]any{"title": "x"}, nil)
	require.NoError(t, err)
	require.IsType(t, &JSON{}, payload)
	assert.Equal(t, "application/json", payload.ContentType())

	r, err := payload.Reader()
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.JSONEq(t, `{"title":"x"}`, string(data))
}

func TestAssemble_CallBodyReplacesStatic(t *testing.T) {
	a := NewAssembler(&trackingFiles{})

	payload, err := a.Assemble(http.MethodPut, map[string]any{"a": 1}, map[string]any{"b": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 2}, payload.(*JSON).Value)

	payload, err = a.Assemble(http.MethodPatch, map[string]any{"a": 1}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, payload.(*JSON).Value)
}

func TestAssemble_NoBody(t *testing.T) {
	a := NewAssembler(&trackingFiles{})

	payload, err := a.Assemble(http.MethodGet, nil, map[string]any{"ignored": true}, nil)
	require.NoError(t, err)
	assert.Nil(t, payload)

	payload, err = a.Assemble(http.MethodDelete, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestAssemble_UploadsIgnoredOutsidePost(t *testing.T) {
	files := &trackingFiles{contents: map[string]string{"a.txt": "A"}}
	a := NewAssembler(files)

	payload, err := a.Assemble(http.MethodPut, nil, map[string]any{"title": "x"},
		[]Upload{{FieldName: "file", SourcePath: "a.txt"}})
	require.NoError(t, err)
	assert.IsType(t, &JSON{}, payload)
	assert.Empty(t, files.opened)
}

func TestAssemble_OpenFailureClosesOpenedStreams(t *testing.T) {
	files := &trackingFiles{contents: map[string]string{"a.txt": "A"}}
	a := NewAssembler(files)

	payload, err := a.Assemble(http.MethodPost, nil, nil, []Upload{
		{FieldName: "first", SourcePath: "a.txt"},
		{FieldName: "second", SourcePath: "missing.txt"},
	})

	require.Error(t, err)
	assert.Nil(t, payload)
	assert.True(t, errors.Is(err, ErrOpenUpload))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.Len(t, files.opened, 1)
	assert.True(t, files.opened[0].closed)
}

func TestMultipart_CloseReleasesStreams(t *testing.T) {
	files := &trackingFiles{contents: map[string]string{"a.txt": "A", "b.bin": "B"}}
	a := NewAssembler(files)

	payload, err := a.Assemble(http.MethodPost, nil, nil, []Upload{
		{FieldName: "a", SourcePath: "a.txt"},
		{FieldName: "b", SourcePath: "b.bin", ContentType: "application/x-custom", Filename: "renamed.bin"},
	})
	require.NoError(t, err)

	parts := readMultipart(t, payload)
	assert.Equal(t, "renamed.bin", parts["b"].filename)
	assert.Equal(t, "application/x-custom", parts["b"].contentType)

	require.NoError(t, payload.Close())
	require.NoError(t, payload.Close())
	for _, s := range files.opened {
		assert.True(t, s.closed)
	}

	_, err = payload.Reader()
	assert.Error(t, err)
}

func TestOSFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0644))

	files := OSFiles{BaseDir: dir}

	data, err := files.ReadFile("note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	stream, err := files.Open("note.txt")
	require.NoError(t, err)
	content, _ := io.ReadAll(stream)
	require.NoError(t, stream.Close())
	assert.Equal(t, "hello", string(content))

	_, err = files.Open("../outside.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestValidatePathWithinBase(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		baseDir string
		wantErr bool
	}{
		{"path within base", "/home/user/project/file.txt", "/home/user/project", false},
		{"path traversal attempt", "/home/user/project/../../../etc/passwd", "/home/user/project", true},
		{"relative path traversal", "../../../etc/passwd", "/home/user/project", true},
		{"empty base dir", "/any/path", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePathWithinBase(tt.path, tt.baseDir)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "path traversal")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("a/b/photo.png"))
	assert.Equal(t, "", ContentTypeFor("README"))
	assert.Equal(t, "", ContentTypeFor("file.unknownext"))
}

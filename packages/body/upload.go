package body

// Upload identifies a file streamed into a multipart field.
type Upload struct {
	FieldName   string `json:"fieldName" yaml:"fieldName"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
	SourcePath  string `json:"sourcePath" yaml:"sourcePath"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
}

// Name returns the filename sent for the part, defaulting to the base name
// of the source path.
func (u Upload) Name() string {
	if u.Filename != "" {
		return u.Filename
	}
	return Filename(u.SourcePath)
}

// MediaType returns the declared content type or the one inferred from the
// source path extension.
func (u Upload) MediaType() string {
	if u.ContentType != "" {
		return u.ContentType
	}
	return ContentTypeFor(u.SourcePath)
}

// CloneUploads returns a copy of uploads.
func CloneUploads(uploads []Upload) []Upload {
	if uploads == nil {
		return nil
	}
	out := make([]Upload, len(uploads))
	copy(out, uploads)
	return out
}

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/apischema/packages/builtin"
	"github.com/abdul-hamid-achik/apischema/packages/core/env"
)

// Document is the on-disk form of a definition file. A file may also hold a
// bare list of endpoints, in which case the options stay empty.
type Document struct {
	RootURL    string     `json:"rootUrl,omitempty" yaml:"rootUrl,omitempty"`
	ShowResult bool       `json:"showResult,omitempty" yaml:"showResult,omitempty"`
	Endpoints  []Endpoint `json:"endpoints" yaml:"endpoints"`
}

// Options returns the registry options carried by the document.
func (d *Document) Options() Options {
	return Options{RootURL: d.RootURL, ShowResult: d.ShowResult}
}

// Format names a definition file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension. Anything but .json is
// read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads one definition file, expanding ${NAME} references through
// resolver first. A nil resolver expands against the process environment with
// the builtin functions enabled.
func LoadFile(path string, resolver *env.Resolver) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read definitions: %w", err)
	}
	if resolver == nil {
		resolver = env.NewResolver()
		resolver.SetFuncs(builtin.NewRegistry())
	}

	doc, err := Parse([]byte(resolver.Resolve(string(data))), FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadFiles reads every path and concatenates their endpoints in order. The
// first non-empty rootUrl wins and showResult is on if any file turns it on.
// Every unreadable file is reported, not only the first.
func LoadFiles(resolver *env.Resolver, paths ...string) (*Document, error) {
	merged := &Document{}
	var result *multierror.Error

	for _, path := range paths {
		doc, err := LoadFile(path, resolver)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if merged.RootURL == "" {
			merged.RootURL = doc.RootURL
		}
		merged.ShowResult = merged.ShowResult || doc.ShowResult
		merged.Endpoints = append(merged.Endpoints, doc.Endpoints...)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Parse decodes a definition document.
func Parse(data []byte, format Format) (*Document, error) {
	doc := &Document{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, nil
	}

	var err error
	switch format {
	case FormatJSON:
		if trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &doc.Endpoints)
		} else {
			err = json.Unmarshal(trimmed, doc)
		}
	case FormatYAML:
		var node yaml.Node
		if err = yaml.Unmarshal(trimmed, &node); err != nil {
			break
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			err = node.Decode(&doc.Endpoints)
		} else {
			err = node.Decode(doc)
		}
	default:
		err = fmt.Errorf("unsupported definition format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Marshal encodes doc in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", format)
	}
}

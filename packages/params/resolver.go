package params

import (
	"net/url"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`:(\w+)`)

// Resolver turns a path template plus static and call-time parameters into a
// concrete URL under a fixed root.
type Resolver struct {
	rootURL string
}

func NewResolver(rootURL string) *Resolver {
	return &Resolver{rootURL: strings.TrimSuffix(rootURL, "/")}
}

// Resolve substitutes path parameters, validates the result and builds the
// query string. It returns the final path and the serialized query string.
//
// Static path parameters are applied first and call-time ones after, so a
// call-time value wins on the same name. A non-empty call-time query string
// replaces the static one entirely.
func Resolve(path string, staticQuery, staticPath, callQuery, callPath *Set) (string, string, error) {
	values := make(map[string]string, staticPath.Len()+callPath.Len())
	for _, set := range []*Set{staticPath, callPath} {
		for _, p := range set.Pairs() {
			v, ok := Stringify(p.Value)
			if !ok {
				return "", "", &MissingParameterError{Name: p.Name}
			}
			values[p.Name] = v
		}
	}

	finalPath, unresolved := Substitute(path, values)
	if len(unresolved) > 0 {
		return "", "", &UnresolvedPathError{Path: finalPath, Tokens: unresolved}
	}

	query := staticQuery
	if callQuery.Len() > 0 {
		query = callQuery
	}

	return finalPath, query.Encode(), nil
}

// URL resolves the path and query and joins them onto the root URL.
func (r *Resolver) URL(path string, staticQuery, staticPath, callQuery, callPath *Set) (string, error) {
	finalPath, query, err := Resolve(path, staticQuery, staticPath, callQuery, callPath)
	if err != nil {
		return "", err
	}
	return JoinURL(r.rootURL, finalPath, query), nil
}

// JoinURL builds rootURL + path, adding "?query" when query is non-empty.
func JoinURL(rootURL, path, query string) string {
	full := rootURL + path
	if query != "" {
		full += "?" + query
	}
	return full
}

// Substitute replaces every :name token of the template that has a value,
// escaping the value as a path segment. Tokens match whole words, so :id
// never rewrites part of :idx. Tokens without a value are left in place and
// returned in order; inserted values are never scanned for tokens.
func Substitute(path string, values map[string]string) (string, []string) {
	var unresolved []string
	out := placeholderPattern.ReplaceAllStringFunc(path, func(match string) string {
		name := match[1:]
		if v, ok := values[name]; ok {
			return url.PathEscape(v)
		}
		unresolved = append(unresolved, name)
		return match
	})
	return out, unresolved
}

func escapeQuery(s string) string {
	return url.QueryEscape(s)
}

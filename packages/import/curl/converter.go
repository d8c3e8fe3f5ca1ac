// Package curl converts curl commands into endpoint definitions.
package curl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/apischema/packages/body"
	"github.com/abdul-hamid-achik/apischema/packages/http"
	"github.com/abdul-hamid-achik/apischema/packages/params"
	"github.com/abdul-hamid-achik/apischema/packages/schema"
)

var nonWord = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Converter turns curl commands into endpoints.
type Converter struct {
	logger *slog.Logger
}

// Option is a functional option for Converter.
type Option func(*Converter)

func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConverter creates a new curl converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FormField is one -F argument. A value starting with @ names a file.
type FormField struct {
	Name  string
	Value string
}

// ParsedCurl represents a parsed curl command.
type ParsedCurl struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Form    []FormField
	Name    string
}

// ConvertCommand converts a single curl command. The returned root URL is
// the scheme and host of the command's URL.
func (c *Converter) ConvertCommand(curlCmd string) (string, schema.Endpoint, error) {
	parsed, err := c.Parse(curlCmd)
	if err != nil {
		return "", schema.Endpoint{}, err
	}
	return c.ToEndpoint(parsed)
}

// ConvertFile converts a file of curl commands, one per line with backslash
// continuations. All commands should target the same host; the first one
// sets the root URL.
func (c *Converter) ConvertFile(path string) (*schema.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var commands []string
	var currentCmd strings.Builder
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "\\") {
			currentCmd.WriteString(strings.TrimSuffix(line, "\\"))
			currentCmd.WriteString(" ")
			continue
		}

		currentCmd.WriteString(line)
		commands = append(commands, currentCmd.String())
		currentCmd.Reset()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if currentCmd.Len() > 0 {
		commands = append(commands, currentCmd.String())
	}

	return c.ConvertCommands(commands)
}

// ConvertCommands converts each command in order. Duplicate names get a
// numeric suffix.
func (c *Converter) ConvertCommands(commands []string) (*schema.Document, error) {
	doc := &schema.Document{}
	seen := make(map[string]int)

	for i, cmd := range commands {
		root, ep, err := c.ConvertCommand(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to convert command %d: %w", i+1, err)
		}
		if doc.RootURL == "" {
			doc.RootURL = root
		} else if root != doc.RootURL {
			c.logger.Warn("command targets a different host than the root URL",
				"command", i+1, "root", doc.RootURL, "host", root)
		}

		seen[ep.Name]++
		if n := seen[ep.Name]; n > 1 {
			ep.Name = fmt.Sprintf("%s_%d", ep.Name, n)
		}
		doc.Endpoints = append(doc.Endpoints, ep)
	}
	return doc, nil
}

// Parse parses a curl command string into a ParsedCurl struct.
func (c *Converter) Parse(curlCmd string) (*ParsedCurl, error) {
	parsed := &ParsedCurl{
		Method:  "GET",
		Headers: make(map[string]string),
	}
	explicitMethod := false

	curlCmd = strings.TrimSpace(curlCmd)

	if strings.HasPrefix(curlCmd, "curl ") {
		curlCmd = strings.TrimPrefix(curlCmd, "curl ")
	} else if curlCmd == "curl" {
		return nil, fmt.Errorf("no URL specified")
	}

	tokens := tokenize(curlCmd)

	value := func(i int) (string, error) {
		if i+1 < len(tokens) {
			return tokens[i+1], nil
		}
		return "", fmt.Errorf("missing value for %s", tokens[i])
	}

	i := 0
	for i < len(tokens) {
		token := tokens[i]

		switch token {
		case "-X", "--request":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Method = strings.ToUpper(v)
			explicitMethod = true
			i += 2

		case "-H", "--header":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if key, val, ok := strings.Cut(v, ":"); ok {
				parsed.Headers[strings.TrimSpace(key)] = strings.TrimSpace(val)
			}
			i += 2

		case "-d", "--data", "--data-raw", "--data-binary":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Body = v
			i += 2

		case "-F", "--form":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			name, val, _ := strings.Cut(v, "=")
			parsed.Form = append(parsed.Form, FormField{Name: name, Value: val})
			i += 2

		case "-A", "--user-agent":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["User-Agent"] = v
			i += 2

		default:
			switch {
			case strings.HasPrefix(token, "-"):
				// Skip unknown flags with potential values
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i += 2
				} else {
					i++
				}
			default:
				if parsed.URL == "" && isURL(token) {
					parsed.URL = token
				}
				i++
			}
		}
	}

	if parsed.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}

	if !explicitMethod && (parsed.Body != "" || len(parsed.Form) > 0) {
		parsed.Method = "POST"
	}

	parsed.Name = generateName(parsed.URL, parsed.Method)

	return parsed, nil
}

// ToEndpoint maps a parsed command onto an endpoint. The query string keeps
// its order and repeated names. A JSON object body becomes the static body;
// -F fields become body fields and @file values become uploads. Headers are
// not part of an endpoint and are dropped with a warning.
func (c *Converter) ToEndpoint(parsed *ParsedCurl) (string, schema.Endpoint, error) {
	method, err := http.ParseMethod(parsed.Method)
	if err != nil {
		return "", schema.Endpoint{}, err
	}

	u, err := url.Parse(parsed.URL)
	if err != nil {
		return "", schema.Endpoint{}, fmt.Errorf("invalid URL %q: %w", parsed.URL, err)
	}

	ep := schema.Endpoint{
		Name:   parsed.Name,
		Path:   u.EscapedPath(),
		Method: method,
	}
	if ep.Path == "" {
		ep.Path = "/"
	}

	if u.RawQuery != "" {
		query, err := parseQuery(u.RawQuery)
		if err != nil {
			return "", schema.Endpoint{}, err
		}
		ep.QueryString = params.List(query...)
	}

	if parsed.Body != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(parsed.Body), &m); err != nil {
			return "", schema.Endpoint{}, fmt.Errorf("body of %s is not a JSON object: %w", parsed.Name, err)
		}
		ep.Body = m
	}

	for _, f := range parsed.Form {
		if src, ok := strings.CutPrefix(f.Value, "@"); ok {
			up := body.Upload{FieldName: f.Name, SourcePath: src}
			if path, ct, ok := strings.Cut(src, ";type="); ok {
				up.SourcePath, up.ContentType = path, ct
			}
			ep.Uploads = append(ep.Uploads, up)
			continue
		}
		if ep.Body == nil {
			ep.Body = make(map[string]any)
		}
		ep.Body[f.Name] = f.Value
	}

	for key := range parsed.Headers {
		c.logger.Warn("dropping header, set it in the config file instead", "endpoint", ep.Name, "header", key)
	}

	return u.Scheme + "://" + u.Host, ep, nil
}

func parseQuery(raw string) ([]params.Param, error) {
	var out []params.Param
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		n, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("invalid query %q: %w", raw, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("invalid query %q: %w", raw, err)
		}
		out = append(out, params.Param{Name: n, Value: v})
	}
	return out, nil
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			escaped = true
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// generateName derives a word-only name from the method and URL path.
func generateName(rawURL, method string) string {
	path := "root"
	if u, err := url.Parse(rawURL); err == nil {
		if p := strings.Trim(u.Path, "/"); p != "" {
			path = p
		}
	}
	return sanitizeName(strings.ToLower(method) + "_" + path)
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

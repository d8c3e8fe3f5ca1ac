package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/apischema/packages/params"
)

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// keyValueFlag collects repeated name=value flags in order.
type keyValueFlag struct {
	pairs []params.Param
}

var _ pflag.Value = (*keyValueFlag)(nil)

func (f *keyValueFlag) String() string {
	parts := make([]string, len(f.pairs))
	for i, p := range f.pairs {
		parts[i] = fmt.Sprintf("%s=%v", p.Name, p.Value)
	}
	return strings.Join(parts, ",")
}

func (f *keyValueFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	f.pairs = append(f.pairs, params.Param{Name: name, Value: value})
	return nil
}

func (f *keyValueFlag) Type() string {
	return "name=value"
}

// Params returns the collected pairs, or nil when the flag was never given.
func (f *keyValueFlag) Params() *params.Set {
	if len(f.pairs) == 0 {
		return nil
	}
	return params.List(f.pairs...)
}

// Map returns the pairs as a map; later values win.
func (f *keyValueFlag) Map() map[string]string {
	out := make(map[string]string, len(f.pairs))
	for _, p := range f.pairs {
		out[p.Name] = fmt.Sprint(p.Value)
	}
	return out
}

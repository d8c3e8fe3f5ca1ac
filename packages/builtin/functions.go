// Package builtin holds the value generators available in definition files
// as ${$name(args)}, for example ${$uuid()} or ${$random(1, 10)}.
package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Func produces a value from its string arguments.
type Func func(args []string) (any, error)

// Registry maps function names to generators. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = func([]string) (any, error) { return r.now().UTC().Format(time.RFC3339), nil }
	r.funcs["timestamp"] = func([]string) (any, error) { return r.now().Unix(), nil }
	r.funcs["timestampMs"] = func([]string) (any, error) { return r.now().UnixMilli(), nil }
	r.funcs["date"] = r.funcDate
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = oneArg(func(s string) any { return base64.StdEncoding.EncodeToString([]byte(s)) })
	r.funcs["sha256"] = oneArg(func(s string) any {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	})
	r.funcs["urlEncode"] = oneArg(func(s string) any { return url.QueryEscape(s) })
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as random(1, 6). The boolean is false
// when expr is not a call or names no registered function.
func (r *Registry) Call(expr string) (string, bool, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return "", false, nil
	}

	r.mu.RLock()
	fn, ok := r.funcs[matches[1]]
	r.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	v, err := fn(args)
	if err != nil {
		return "", true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return fmt.Sprint(v), true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func oneArg(fn func(string) any) Func {
	return func(args []string) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(args[0]), nil
	}
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %q is not an integer", args[i])
	}
	return v, nil
}

func (r *Registry) funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return r.now().UTC().Format(format), nil
}

func funcUUID([]string) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []string) (any, error) {
	lo, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	hi, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return rand.Intn(hi-lo+1) + lo, nil
}

func funcRandomString(args []string) (any, error) {
	n, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	return randomString(n, alphanumeric), nil
}

func funcRandomEmail([]string) (any, error) {
	const lower = "abcdefghijklmnopqrstuvwxyz"
	return fmt.Sprintf("%s@%s.com", randomString(8, lower), randomString(6, lower)), nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}

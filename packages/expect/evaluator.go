package expect

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/apischema/packages/body"
	"github.com/abdul-hamid-achik/apischema/packages/http"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

func (r *Result) Error() string {
	return fmt.Sprintf("%s %s: %s", r.Subject, r.Operator, r.Message)
}

type compareFunc func(e *Evaluator, actual, expected any) (bool, string)

var comparators map[Operator]compareFunc

func init() {
	comparators = map[Operator]compareFunc{
		OpEquals:         (*Evaluator).equals,
		OpNotEquals:      negate((*Evaluator).equals, "expected not to equal %v"),
		OpGreaterThan:    numeric(">"),
		OpGreaterOrEqual: numeric(">="),
		OpLessThan:       numeric("<"),
		OpLessOrEqual:    numeric("<="),
		OpContains:       (*Evaluator).contains,
		OpNotContains:    negate((*Evaluator).contains, "expected not to contain %v"),
		OpStartsWith:     (*Evaluator).startsWith,
		OpEndsWith:       (*Evaluator).endsWith,
		OpMatches:        (*Evaluator).matches,
		OpExists:         (*Evaluator).exists,
		OpNotExists:      negate((*Evaluator).exists, "expected not to exist"),
		OpLength:         (*Evaluator).length,
		OpIncludes:       (*Evaluator).includes,
		OpIn:             (*Evaluator).in,
		OpType:           (*Evaluator).typeCheck,
		OpSchema:         (*Evaluator).schema,
	}
}

func negate(fn compareFunc, format string) compareFunc {
	return func(e *Evaluator, actual, expected any) (bool, string) {
		if passed, _ := fn(e, actual, expected); passed {
			if strings.Contains(format, "%v") {
				return false, fmt.Sprintf(format, expected)
			}
			return false, format
		}
		return true, ""
	}
}

func numeric(op string) compareFunc {
	return func(e *Evaluator, actual, expected any) (bool, string) {
		return e.compareNumeric(actual, expected, op)
	}
}

type Evaluator struct {
	response *http.Response
	bodyJSON gjson.Result
	files    body.Files
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir resolves schema file paths against dir and keeps them inside it.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.files = body.OSFiles{BaseDir: dir}
	}
}

// WithFiles sets where schema files are read from.
func WithFiles(f body.Files) EvaluatorOption {
	return func(e *Evaluator) {
		e.files = f
	}
}

func NewEvaluator(resp *http.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		response: resp,
		files:    body.OSFiles{},
	}
	if gjson.ValidBytes(resp.Raw) {
		e.bodyJSON = gjson.ParseBytes(resp.Raw)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ForBody evaluates against a decoded body alone. Subjects other than body
// paths see an empty response.
func ForBody(v any, opts ...EvaluatorOption) *Evaluator {
	resp := &http.Response{Body: v}
	switch val := v.(type) {
	case string:
		resp.Raw = []byte(val)
	case []byte:
		resp.Raw = val
	default:
		resp.Raw, _ = json.Marshal(v)
	}
	return NewEvaluator(resp, opts...)
}

func (e *Evaluator) Evaluate(a *Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: a.Operator.String(),
		Expected: a.Expected,
	}

	cmp, ok := comparators[a.Operator]
	if !ok {
		result.Message = fmt.Sprintf("unknown operator: %v", a.Operator)
		return result
	}

	actual, present, err := e.actualValue(a.Subject)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	if !present && (a.Operator == OpExists || a.Operator == OpNotExists) {
		actual = absent{}
	}
	result.Passed, result.Message = cmp(e, actual, a.Expected)

	if a.Operator == OpLength {
		result.Actual = computeLength(actual)
	}
	return result
}

// actualValue looks up the subject and reports whether it is present. A
// present JSON null yields a nil value.
func (e *Evaluator) actualValue(subject string) (any, bool, error) {
	switch {
	case subject == "status":
		return e.response.StatusCode, true, nil
	case subject == "duration":
		return e.response.DurationMs(), true, nil
	case strings.HasPrefix(subject, "header"):
		name := strings.TrimSpace(strings.TrimPrefix(subject, "header"))
		if name == "" {
			return e.response.Headers, true, nil
		}
		if v := e.response.Header(name); v != "" {
			return v, true, nil
		}
		return nil, false, nil
	case subject == "body" || strings.HasPrefix(subject, "body."):
		return e.bodyValue(strings.TrimPrefix(strings.TrimPrefix(subject, "body"), "."))
	default:
		return e.bodyValue(subject)
	}
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// gjsonPath rewrites "items[0].tags[1]" as "items.0.tags.1".
func gjsonPath(path string) string {
	return strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
}

func (e *Evaluator) bodyValue(path string) (any, bool, error) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true, nil
		}
		return nil, false, fmt.Errorf("response body is not JSON")
	}
	if path == "" {
		return e.bodyJSON.Value(), true, nil
	}
	result := e.bodyJSON.Get(gjsonPath(path))
	if !result.Exists() {
		return nil, false, nil
	}
	return result.Value(), true, nil
}

// absent stands in for a subject that is not in the response, so a present
// null still exists.
type absent struct{}

func (e *Evaluator) exists(actual, _ any) (bool, string) {
	if _, missing := actual.(absent); missing {
		return false, "expected to exist"
	}
	return true, ""
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	a, aOk := toFloat64(actual)
	b, bOk := toFloat64(expected)
	if aOk && bOk && a == b {
		return true, ""
	}
	if fmt.Sprint(actual) == fmt.Sprint(expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func (e *Evaluator) compareNumeric(actual, expected any, op string) (bool, string) {
	a, aOk := toFloat64(actual)
	b, bOk := toFloat64(expected)
	if !aOk || !bOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = a > b
	case ">=":
		passed = a >= b
	case "<":
		passed = a < b
	case "<=":
		passed = a <= b
	}
	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func (e *Evaluator) contains(actual, expected any) (bool, string) {
	if strings.Contains(fmt.Sprint(actual), fmt.Sprint(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	if strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) endsWith(actual, expected any) (bool, string) {
	if strings.HasSuffix(fmt.Sprint(actual), fmt.Sprint(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	pattern := strings.TrimSuffix(strings.TrimPrefix(fmt.Sprint(expected), "/"), "/")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}
	if re.MatchString(fmt.Sprint(actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	rv := reflect.ValueOf(actual)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return -1
	}
}

func (e *Evaluator) length(actual, expected any) (bool, string) {
	want, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}
	got := computeLength(actual)
	if got == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}
	if got == want {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", want, got)
}

func (e *Evaluator) includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	for _, item := range arr {
		if passed, _ := e.equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func (e *Evaluator) in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}
	for _, item := range arr {
		if passed, _ := e.equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	// "type null" parses to a nil expected value
	want, ok := expected.(string)
	if !ok {
		want = typeName(expected)
	}
	got := typeName(actual)
	if got == want {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", want, got)
}

// schema validates actual against a JSON schema given inline as an object or
// as a path to a schema file.
func (e *Evaluator) schema(actual, expected any) (bool, string) {
	var loader gojsonschema.JSONLoader
	switch v := expected.(type) {
	case map[string]any:
		loader = gojsonschema.NewGoLoader(v)
	default:
		data, err := e.files.ReadFile(fmt.Sprint(v))
		if err != nil {
			return false, fmt.Sprintf("failed to read schema file: %v", err)
		}
		loader = gojsonschema.NewBytesLoader(data)
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewGoLoader(actual))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; "))
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

// EvaluateAll runs every assertion against resp.
func EvaluateAll(resp *http.Response, assertions []*Assertion, opts ...EvaluatorOption) []*Result {
	e := NewEvaluator(resp, opts...)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = e.Evaluate(a)
	}
	return results
}

// Failed returns the failing results as a single error, or nil.
func Failed(results []*Result) error {
	var errs *multierror.Error
	for _, r := range results {
		if !r.Passed {
			errs = multierror.Append(errs, r)
		}
	}
	return errs.ErrorOrNil()
}

// Check evaluates body assertions against a decoded body.
func Check(v any, assertions ...*Assertion) error {
	e := ForBody(v)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = e.Evaluate(a)
	}
	return Failed(results)
}

// Tester returns a body tester that fails when any assertion fails.
func Tester(assertions ...*Assertion) func(any) error {
	return func(v any) error {
		return Check(v, assertions...)
	}
}

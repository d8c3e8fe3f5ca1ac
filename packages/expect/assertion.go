package expect

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidAssertion is returned by Parse for malformed expressions.
var ErrInvalidAssertion = errors.New("invalid assertion")

type Operator string

const (
	OpEquals         Operator = "=="
	OpNotEquals      Operator = "!="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "contains"
	OpNotContains    Operator = "!contains"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
	OpMatches        Operator = "matches"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "!exists"
	OpLength         Operator = "length"
	OpIncludes       Operator = "includes"
	OpIn             Operator = "in"
	OpType           Operator = "type"
	OpSchema         Operator = "schema"
)

func (o Operator) String() string {
	return string(o)
}

// unary operators take no expected value.
func (o Operator) unary() bool {
	return o == OpExists || o == OpNotExists
}

// Assertion is a single expectation on a response.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

func (a *Assertion) String() string {
	if a.Operator.unary() {
		return fmt.Sprintf("%s %s", a.Subject, a.Operator)
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

// symbolic operators, longest first so ">=" wins over ">".
var symbolic = []Operator{OpGreaterOrEqual, OpLessOrEqual, OpEquals, OpNotEquals, OpGreaterThan, OpLessThan}

// Parse reads "subject operator [expected]". Symbolic operators may be
// written without spaces, as in "body.id==101". The subject "header" takes
// the header name as a second word. Expected values that are valid JSON are
// decoded, anything else stays a string.
func Parse(expr string) (*Assertion, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidAssertion)
	}

	fields := strings.Fields(expr)
	subjectWords := 1
	if fields[0] == "header" && len(fields) > 1 {
		subjectWords = 2
	}

	if len(fields) > subjectWords {
		if op, ok := lookupOperator(fields[subjectWords]); ok {
			subject := strings.Join(fields[:subjectWords], " ")
			rest := strings.Join(fields[subjectWords+1:], " ")
			return build(subject, op, rest)
		}
	}

	for _, op := range symbolic {
		if idx := strings.Index(expr, string(op)); idx > 0 {
			subject := strings.TrimSpace(expr[:idx])
			rest := strings.TrimSpace(expr[idx+len(op):])
			return build(subject, op, rest)
		}
	}

	return nil, fmt.Errorf("%w: no operator in %q", ErrInvalidAssertion, expr)
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) *Assertion {
	a, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return a
}

func build(subject string, op Operator, rest string) (*Assertion, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidAssertion)
	}
	a := &Assertion{Subject: subject, Operator: op}
	if op.unary() {
		if rest != "" {
			return nil, fmt.Errorf("%w: %s takes no value", ErrInvalidAssertion, op)
		}
		return a, nil
	}
	if rest == "" {
		return nil, fmt.Errorf("%w: %s needs a value", ErrInvalidAssertion, op)
	}
	a.Expected = parseValue(rest)
	return a, nil
}

func lookupOperator(word string) (Operator, bool) {
	_, ok := comparators[Operator(word)]
	return Operator(word), ok
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// Operators lists every supported operator, sorted.
func Operators() []string {
	out := make([]string, 0, len(comparators))
	for op := range comparators {
		out = append(out, string(op))
	}
	sort.Strings(out)
	return out
}

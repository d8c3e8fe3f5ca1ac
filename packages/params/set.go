package params

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Param is a single name/value pair. Value is a string or a number.
type Param struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Set is an ordered collection of parameters. It is built either from a list,
// which may repeat names, or from a mapping, whose keys are unique and are kept
// in sorted order.
type Set struct {
	pairs   []Param
	mapping bool
}

// List builds a Set from pairs in the given order.
func List(pairs ...Param) *Set {
	s := &Set{pairs: make([]Param, len(pairs))}
	copy(s.pairs, pairs)
	return s
}

// Map builds a Set from a name-to-value mapping.
func Map(values map[string]any) *Set {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &Set{pairs: make([]Param, 0, len(keys)), mapping: true}
	for _, k := range keys {
		s.pairs = append(s.pairs, Param{Name: k, Value: values[k]})
	}
	return s
}

// Len returns the number of pairs. A nil Set is empty.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pairs)
}

// IsMapping reports whether the Set was built from a mapping.
func (s *Set) IsMapping() bool {
	return s != nil && s.mapping
}

// Pairs returns a copy of the pairs in order.
func (s *Set) Pairs() []Param {
	if s == nil {
		return nil
	}
	out := make([]Param, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Clone returns an independent copy of the Set.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	return &Set{pairs: s.Pairs(), mapping: s.mapping}
}

// Values flattens the Set into a mapping where later pairs win.
func (s *Set) Values() map[string]string {
	out := make(map[string]string, s.Len())
	if s == nil {
		return out
	}
	for _, p := range s.pairs {
		v, _ := Stringify(p.Value)
		out[p.Name] = v
	}
	return out
}

// Encode serializes the Set as name=value pairs joined by '&'.
func (s *Set) Encode() string {
	if s.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range s.pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		v, _ := Stringify(p.Value)
		sb.WriteString(escapeQuery(p.Name))
		sb.WriteByte('=')
		sb.WriteString(escapeQuery(v))
	}
	return sb.String()
}

// UnmarshalYAML accepts either a sequence of {name, value} entries or a mapping.
func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var pairs []Param
		if err := node.Decode(&pairs); err != nil {
			return err
		}
		*s = *List(pairs...)
		return nil
	case yaml.MappingNode:
		var values map[string]any
		if err := node.Decode(&values); err != nil {
			return err
		}
		*s = *Map(values)
		return nil
	default:
		return fmt.Errorf("line %d: parameters must be a list of {name, value} or a mapping", node.Line)
	}
}

// UnmarshalJSON accepts either an array of {name, value} objects or an object.
func (s *Set) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var pairs []Param
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		*s = *List(pairs...)
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var values map[string]any
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*s = *Map(values)
		return nil
	default:
		return fmt.Errorf("parameters must be an array of {name, value} or an object")
	}
}

// MarshalJSON writes mappings as objects and lists as arrays.
func (s *Set) MarshalJSON() ([]byte, error) {
	if s.IsMapping() {
		values := make(map[string]any, len(s.pairs))
		for _, p := range s.pairs {
			values[p.Name] = p.Value
		}
		return json.Marshal(values)
	}
	return json.Marshal(s.Pairs())
}

// MarshalYAML mirrors MarshalJSON.
func (s *Set) MarshalYAML() (any, error) {
	if s.IsMapping() {
		values := make(map[string]any, len(s.pairs))
		for _, p := range s.pairs {
			values[p.Name] = p.Value
		}
		return values, nil
	}
	return s.Pairs(), nil
}

// Stringify converts a parameter value to its string form. The boolean result
// is false when the value counts as missing: nil or the empty string. Zero is
// a valid value.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case int:
		return strconv.Itoa(val), true
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		return val.String(), val != ""
	case fmt.Stringer:
		str := val.String()
		return str, str != ""
	default:
		str := fmt.Sprintf("%v", val)
		return str, str != ""
	}
}

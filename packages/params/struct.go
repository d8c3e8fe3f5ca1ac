package params

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/gorilla/schema"
)

var encoder = schema.NewEncoder()

// FromStruct builds a Set from the exported fields of a struct, named by their
// `schema` tags. Slice fields contribute one pair per element. Fields tagged
// with omitempty and holding a zero value are skipped.
func FromStruct(v any) (*Set, error) {
	if rv := reflect.Indirect(reflect.ValueOf(v)); rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("encoding parameters: %T is not a struct", v)
	}

	values := make(map[string][]string)
	if err := encoder.Encode(v, values); err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	repeated := false
	var pairs []Param
	for _, k := range keys {
		if len(values[k]) > 1 {
			repeated = true
		}
		for _, val := range values[k] {
			pairs = append(pairs, Param{Name: k, Value: val})
		}
	}

	s := List(pairs...)
	s.mapping = !repeated
	return s, nil
}

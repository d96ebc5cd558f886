package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ErrNotObject is returned when partial input is not a JSON object.
var ErrNotObject = errors.New("partial record must be a JSON object")

// Issue describes a field rejected during partial decoding.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Reason
}

var (
	scoreType      = reflect.TypeOf(Score(0))
	vitalSignsType = reflect.TypeOf(VitalSigns{})
	stringPtrType  = reflect.TypeOf((*string)(nil))
)

// DecodeAdmissionPartial builds an admission from loosely typed input.
// Blank fields in the result mean "absent". Unknown keys and mistyped values
// are dropped and reported; everything else is kept.
func DecodeAdmissionPartial(m map[string]any) (*Admission, []Issue) {
	rec := &Admission{}
	issues := decodeStruct(reflect.ValueOf(rec).Elem(), m, "")
	issues = append(issues, checkGlasgow(&rec.G, "g")...)
	return rec, issues
}

// DecodeEvolutionPartial builds an evolution note from loosely typed input.
func DecodeEvolutionPartial(m map[string]any) (*Evolution, []Issue) {
	rec := &Evolution{}
	issues := decodeStruct(reflect.ValueOf(rec).Elem(), m, "")
	issues = append(issues, checkGlasgow(&rec.G, "g")...)
	return rec, issues
}

// DecodePartialJSON decodes a JSON object into a partial record of kind.
func DecodePartialJSON(kind Kind, data []byte) (Record, []Issue, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil, ErrNotObject
	}
	if kind == KindEvolution {
		rec, issues := DecodeEvolutionPartial(m)
		return rec, issues, nil
	}
	rec, issues := DecodeAdmissionPartial(m)
	return rec, issues, nil
}

func decodeStruct(v reflect.Value, m map[string]any, prefix string) []Issue {
	t := v.Type()
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			fields[name] = i
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var issues []Issue
	for _, key := range keys {
		path := prefix + key
		idx, ok := fields[key]
		if !ok {
			issues = append(issues, Issue{Field: path, Reason: "unknown field"})
			continue
		}
		raw := m[key]
		if raw == nil {
			continue
		}
		if reason := decodeField(v.Field(idx), raw, t, path, &issues); reason != "" {
			issues = append(issues, Issue{Field: path, Reason: reason})
		}
	}
	return issues
}

// decodeField sets f from raw and returns a rejection reason, or "".
func decodeField(f reflect.Value, raw any, parent reflect.Type, path string, issues *[]Issue) string {
	switch {
	case f.Type() == scoreType:
		n, err := scoreFromAny(raw)
		if err != nil {
			return err.Error()
		}
		f.SetInt(int64(n))

	case f.Type() == stringPtrType:
		s, ok := raw.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %s", jsonTypeName(raw))
		}
		f.Set(reflect.ValueOf(&s))

	case f.Kind() == reflect.String:
		switch val := raw.(type) {
		case string:
			f.SetString(val)
		case float64:
			// Vital signs are numeric-as-text; assistants often send bare numbers.
			if parent != vitalSignsType {
				return "expected string, got number"
			}
			f.SetString(strconv.FormatFloat(val, 'f', -1, 64))
		default:
			return fmt.Sprintf("expected string, got %s", jsonTypeName(raw))
		}

	case f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String:
		items, ok := raw.([]any)
		if !ok {
			return fmt.Sprintf("expected list of strings, got %s", jsonTypeName(raw))
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Sprintf("expected list of strings, found %s", jsonTypeName(item))
			}
			list = append(list, s)
		}
		f.Set(reflect.ValueOf(list))

	case f.Kind() == reflect.Struct:
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Sprintf("expected object, got %s", jsonTypeName(raw))
		}
		*issues = append(*issues, decodeStruct(f, obj, path+".")...)

	default:
		return "unsupported field"
	}
	return ""
}

// checkGlasgow clears out-of-range sub-scores and reports them.
func checkGlasgow(g *GlasgowScale, prefix string) []Issue {
	var issues []Issue
	check := func(name string, s *Score, b [2]int) {
		if *s != 0 && (int(*s) < b[0] || int(*s) > b[1]) {
			issues = append(issues, Issue{
				Field:  prefix + "." + name,
				Reason: fmt.Sprintf("must be between %d and %d, got %d", b[0], b[1], *s),
			})
			*s = 0
		}
	}
	check("o", &g.O, OcularBounds)
	check("v", &g.V, VerbalBounds)
	check("m", &g.M, MotorBounds)
	return issues
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

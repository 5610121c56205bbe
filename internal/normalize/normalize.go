// Package normalize converts raw adapter output into canonical
// (value, confidence) pairs.
package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/genericrobot77/meds-job/internal/model"
)

// Keys that identify a record rather than describe it. They may appear in
// adapter output and are dropped without being reported as unknown.
var identityKeys = map[string]bool{
	"preferred_term":             true,
	"concept_id":                 true,
	"snomed_uri":                 true,
	"status":                     true,
	model.KeyAutoLookupAttempted: true,
}

// Normalize converts one raw field value into its canonical form.
//
// A map exposing "value" is a structured pair and its "confidence" is used
// as given (0 when absent or non-numeric). Any other non-empty value is a
// bare response and is trusted at MaxConfidence. Empty input yields the
// field default at confidence 0.
func Normalize(spec *model.FieldSpec, raw any) model.FieldValue {
	value, confidence, structured := unwrap(raw)
	if !structured {
		confidence = model.MaxConfidence
	}
	out := coerce(spec.Shape, value)
	if out.IsEmpty() {
		return spec.Default()
	}
	out.Confidence = model.ClampConfidence(confidence)
	return out
}

// NormalizeWithConfidence applies Normalize but lets a flat sibling
// confidence (the stored "<field>_confidence" form) stand in for a missing
// structured one.
func NormalizeWithConfidence(spec *model.FieldSpec, raw any, sibling any, hasSibling bool) model.FieldValue {
	if _, _, structured := unwrap(raw); structured || !hasSibling {
		return Normalize(spec, raw)
	}
	out := coerce(spec.Shape, raw)
	if out.IsEmpty() {
		return spec.Default()
	}
	out.Confidence = Confidence(sibling)
	return out
}

// NormalizeFields maps a partial field map from one adapter into a
// candidate set. It returns the candidates and, sorted, any keys that are
// neither a recognized field nor an identity key.
func NormalizeFields(fields *model.FieldRegistry, src model.Source, raw map[string]any) (model.Candidates, []string) {
	cands := model.NewCandidates(src)
	var unknown []string

	lowered := lowerKeys(raw)
	for key, v := range lowered {
		switch {
		case key == model.KeyResearchedDate:
			date, _, _ := unwrap(v)
			cands.ResearchedDate = Text(date)
			continue
		case identityKeys[key]:
			continue
		}
		if strings.HasSuffix(key, model.ConfidenceSuffix) {
			if fields.Lookup(strings.TrimSuffix(key, model.ConfidenceSuffix)) != nil {
				continue
			}
		}
		spec := fields.Lookup(key)
		if spec == nil {
			unknown = append(unknown, key)
			continue
		}
		sibling, hasSibling := lowered[spec.ConfidenceKey()]
		cands.Set(spec.Key, NormalizeWithConfidence(spec, v, sibling, hasSibling))
	}

	sort.Strings(unknown)
	return cands, unknown
}

// lowerKeys folds keys to lower case. When several keys fold to the same
// name, a key already in lower case wins, then the first in sorted order.
func lowerKeys(raw map[string]any) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, seen := out[lk]; seen && (exact[lk] || k != lk) {
			continue
		}
		out[lk] = raw[k]
		exact[lk] = k == lk
	}
	return out
}

// unwrap splits a structured {value, confidence} pair. For anything else it
// returns raw unchanged and structured=false.
func unwrap(raw any) (value any, confidence int, structured bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw, 0, false
	}
	v, ok := m["value"]
	if !ok {
		return raw, 0, false
	}
	c, ok := m["confidence"]
	if !ok {
		return v, 0, true
	}
	return v, Confidence(c), true
}

// Confidence coerces a raw confidence to an integer in [0, MaxConfidence].
// Numbers and numeric strings are rounded to the nearest integer; anything
// else is 0.
func Confidence(raw any) int {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return model.ClampConfidence(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Round(f)
	if f <= 0 {
		return 0
	}
	if f >= model.MaxConfidence {
		return model.MaxConfidence
	}
	return int(f)
}

func coerce(shape model.Shape, v any) model.FieldValue {
	switch shape {
	case model.ShapeList:
		return model.FieldValue{List: List(v)}
	case model.ShapeFlag:
		b, ok := Flag(v)
		if !ok {
			return model.FieldValue{}
		}
		return model.FieldValue{Flag: &b}
	default:
		return model.FieldValue{Text: Text(v)}
	}
}

// Text coerces a raw scalar to trimmed text. A list yields its first
// non-empty element. Numbers are formatted without an exponent.
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case []string:
		for _, e := range s {
			if t := strings.TrimSpace(e); t != "" {
				return t
			}
		}
		return ""
	case []any:
		for _, e := range s {
			if t := Text(e); t != "" {
				return t
			}
		}
		return ""
	default:
		return ""
	}
}

// List coerces a raw value to a trimmed, duplicate-free list preserving
// first-seen order. Scalars become single-element lists.
func List(v any) []string {
	var items []string
	switch s := v.(type) {
	case nil:
	case []string:
		items = s
	case []any:
		for _, e := range s {
			items = append(items, Text(e))
		}
	default:
		items = []string{Text(s)}
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// Flag coerces a raw value to a boolean. The second result is false when
// the value is absent or not recognizably boolean.
func Flag(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
		return false, false
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	default:
		return false, false
	}
}

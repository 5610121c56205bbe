package model

import (
	"slices"
	"strconv"
	"strings"
)

// MaxConfidence marks an exact or official match that is safe for
// unattended downstream import.
const MaxConfidence = 100

// FieldValue is the canonical (value, confidence) pair stored per field.
// Only the member matching the field's Shape is populated.
type FieldValue struct {
	Text       string
	List       []string
	Flag       *bool
	Confidence int
}

// TextValue builds a scalar field value.
func TextValue(s string, confidence int) FieldValue {
	return FieldValue{Text: s, Confidence: confidence}
}

// ListValue builds a list field value. The slice is copied.
func ListValue(items []string, confidence int) FieldValue {
	return FieldValue{List: slices.Clone(items), Confidence: confidence}
}

// FlagValue builds a boolean field value.
func FlagValue(b bool, confidence int) FieldValue {
	return FieldValue{Flag: &b, Confidence: confidence}
}

// IsEmpty reports whether the value is the field default.
func (v FieldValue) IsEmpty() bool {
	return v.Text == "" && len(v.List) == 0 && v.Flag == nil
}

// Clone returns a deep copy so records never share list backing arrays.
func (v FieldValue) Clone() FieldValue {
	out := v
	if v.List != nil {
		out.List = slices.Clone(v.List)
	}
	if v.Flag != nil {
		b := *v.Flag
		out.Flag = &b
	}
	return out
}

// Equal compares values and confidence. A nil and an empty list are equal.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Text != o.Text || v.Confidence != o.Confidence {
		return false
	}
	if !slices.Equal(v.List, o.List) {
		return false
	}
	switch {
	case v.Flag == nil && o.Flag == nil:
		return true
	case v.Flag == nil || o.Flag == nil:
		return false
	default:
		return *v.Flag == *o.Flag
	}
}

// Display renders the value for tabular output; lists are joined with delim.
func (v FieldValue) Display(shape Shape, delim string) string {
	switch shape {
	case ShapeList:
		return strings.Join(v.List, delim)
	case ShapeFlag:
		if v.Flag == nil {
			return ""
		}
		return strconv.FormatBool(*v.Flag)
	default:
		return v.Text
	}
}

// Interface returns the value as a plain Go value for document encoding:
// string, []string, bool or nil.
func (v FieldValue) Interface(shape Shape) any {
	switch shape {
	case ShapeList:
		if v.List == nil {
			return []string{}
		}
		return v.List
	case ShapeFlag:
		if v.Flag == nil {
			return nil
		}
		return *v.Flag
	default:
		return v.Text
	}
}

// ClampConfidence forces c into [0, MaxConfidence].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

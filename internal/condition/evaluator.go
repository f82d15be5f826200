package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Evaluate applies op to a resolved field value and a rule literal.
//
// The boolean result is always meaningful: conversion failures (a non-numeric
// field or literal on a numeric operator, an invalid pattern) yield false
// together with a non-nil error the caller may log. Evaluate never panics.
func Evaluate(field interface{}, op Operator, literal string) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched, err = false, fmt.Errorf("operator %s: %v", op, r)
		}
	}()

	switch op {
	case OpEquals:
		return equals(field, literal), nil
	case OpNotEquals:
		return !equals(field, literal), nil
	case OpContains:
		return contains(field, literal), nil
	case OpNotContains:
		return !contains(field, literal), nil
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEquals, OpLessThanOrEquals:
		return numericCompare(op, field, literal)
	case OpRegex:
		return matchesRegex(field, literal)
	case OpInList:
		return inList(field, literal), nil
	case OpNotInList:
		return !inList(field, literal), nil
	case OpIsNull:
		return field == nil, nil
	case OpIsNotNull:
		return field != nil, nil
	default:
		return false, fmt.Errorf("unknown operator: %q", op)
	}
}

// equals compares textual forms. A null field only equals the literal "null".
func equals(field interface{}, literal string) bool {
	if field == nil {
		return strings.EqualFold(literal, "null")
	}
	return Text(field) == literal
}

func contains(field interface{}, literal string) bool {
	if field == nil {
		return false
	}
	return strings.Contains(strings.ToLower(Text(field)), strings.ToLower(literal))
}

func numericCompare(op Operator, field interface{}, literal string) (bool, error) {
	if field == nil {
		return false, fmt.Errorf("operator %s: field value is null", op)
	}
	lf, err := ToFloat64(field)
	if err != nil {
		return false, fmt.Errorf("operator %s: %w", op, err)
	}
	rf, err := strconv.ParseFloat(strings.TrimSpace(literal), 64)
	if err != nil {
		return false, fmt.Errorf("operator %s: literal %q is not numeric", op, literal)
	}
	switch op {
	case OpGreaterThan:
		return lf > rf, nil
	case OpGreaterThanOrEquals:
		return lf >= rf, nil
	case OpLessThan:
		return lf < rf, nil
	case OpLessThanOrEquals:
		return lf <= rf, nil
	}
	return false, nil
}

// matchesRegex requires the whole field text to match the pattern.
func matchesRegex(field interface{}, pattern string) (bool, error) {
	if field == nil {
		return false, nil
	}
	re, err := compileAnchored(pattern)
	if err != nil {
		return false, fmt.Errorf("operator %s: invalid regex %q: %w", OpRegex, pattern, err)
	}
	return re.MatchString(Text(field)), nil
}

// inList tests case-insensitive membership in a comma-separated literal.
func inList(field interface{}, literal string) bool {
	if field == nil {
		return false
	}
	text := Text(field)
	for _, tok := range strings.Split(literal, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), text) {
			return true
		}
	}
	return false
}

var patterns sync.Map // pattern -> *regexp.Regexp

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}

// Text renders a value the way rule literals are written: strings verbatim,
// numbers without a trailing ".0", nested values as JSON.
func Text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// ToFloat64 coerces native numeric types directly and parses textual values.
// NaN and infinities are rejected.
func ToFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return finite(float64(n), v)
	case float64:
		return finite(n, v)
	case json.Number:
		return parseFloat(n.String())
	case string:
		return parseFloat(n)
	}
	return 0, fmt.Errorf("value of type %T is not numeric", v)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric", s)
	}
	return finite(f, s)
}

func finite(f float64, orig interface{}) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not a finite number", orig)
	}
	return f, nil
}

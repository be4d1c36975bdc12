package matching

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/ohler55/ojg/jp"
)

// jsonPathCondition is a parsed JSONPath expression and the value it must
// produce.
type jsonPathCondition struct {
	path     string
	expr     jp.Expr
	expected interface{}
}

// compileJSONPath parses every JSONPath key once so matching never pays the
// parse cost. Conditions are sorted by path for deterministic evaluation.
func compileJSONPath(conditions map[string]interface{}) ([]jsonPathCondition, error) {
	compiled := make([]jsonPathCondition, 0, len(conditions))
	for path, expected := range conditions {
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
		}
		compiled = append(compiled, jsonPathCondition{path: path, expr: x, expected: expected})
	}
	sort.Slice(compiled, func(i, j int) bool { return compiled[i].path < compiled[j].path })
	return compiled, nil
}

// matchJSONPath evaluates all conditions against decoded JSON data.
func matchJSONPath(conditions []jsonPathCondition, data interface{}) bool {
	for _, c := range conditions {
		if !c.match(data) {
			return false
		}
	}
	return true
}

func (c jsonPathCondition) match(data interface{}) bool {
	results := c.expr.Get(data)

	if isExistenceCheck(c.expected) {
		return (len(results) > 0) == getExistsValue(c.expected)
	}

	// Wildcard paths can produce several results; any one may match.
	for _, result := range results {
		if valuesEqual(result, c.expected) {
			return true
		}
	}
	return false
}

// isExistenceCheck determines if the expected value is {"exists": bool}.
func isExistenceCheck(expected interface{}) bool {
	m, ok := expected.(map[string]interface{})
	if !ok {
		return false
	}
	_, hasExists := m["exists"]
	return hasExists && len(m) == 1
}

func getExistsValue(expected interface{}) bool {
	m, ok := expected.(map[string]interface{})
	if !ok {
		return false
	}
	b, ok := m["exists"].(bool)
	return ok && b
}

// valuesEqual compares two decoded values, treating all numeric kinds as
// comparable.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	if reflect.DeepEqual(actual, expected) {
		return true
	}

	actualNum, actualIsNum := toFloat64(actual)
	expectedNum, expectedIsNum := toFloat64(expected)
	if actualIsNum && expectedIsNum {
		return actualNum == expectedNum
	}

	return false
}

func toFloat64(v interface{}) (float64, bool) {
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
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

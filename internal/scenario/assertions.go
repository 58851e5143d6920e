package scenario

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// operator checks one {op: expected} pair against the value at a path.
// found is false when the path did not resolve.
type operator func(actual any, found bool, expected any) error

var operators = map[string]operator{
	"exists":   opExists,
	"eq":       requireFound(opEq),
	"gte":      requireFound(compareNum("gte", func(a, e float64) bool { return a >= e })),
	"lte":      requireFound(compareNum("lte", func(a, e float64) bool { return a <= e })),
	"contains": requireFound(opContains),
	"regex":    requireFound(opRegex),
	"len_gte":  requireFound(opLenGte),
}

// CheckBody evaluates path assertions against a JSON body. A plain value
// means equality; a map applies each operator it names. Paths are checked
// in sorted order so the first failure is stable.
func CheckBody(body []byte, assertions map[string]any) error {
	doc, err := decodeBody(body)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(assertions))
	for p := range assertions {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		actual, found, err := lookup(doc, path)
		if err != nil {
			return err
		}

		ops, isOps := assertions[path].(map[string]any)
		if !isOps {
			ops = map[string]any{"eq": assertions[path]}
		}
		names := make([]string, 0, len(ops))
		for name := range ops {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			op, known := operators[name]
			if !known {
				return fmt.Errorf("%s: unknown operator %q", path, name)
			}
			if err := op(actual, found, ops[name]); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return nil
}

func requireFound(op operator) operator {
	return func(actual any, found bool, expected any) error {
		if !found {
			return fmt.Errorf("no match")
		}
		return op(actual, found, expected)
	}
}

func opExists(actual any, found bool, expected any) error {
	want, ok := expected.(bool)
	if !ok {
		return fmt.Errorf("exists needs a boolean, got %T", expected)
	}
	if want != found {
		if want {
			return fmt.Errorf("expected to exist")
		}
		return fmt.Errorf("expected not to exist, found %v", actual)
	}
	return nil
}

func opEq(actual any, _ bool, expected any) error {
	if !equal(actual, expected) {
		return fmt.Errorf("expected %v, got %v", expected, actual)
	}
	return nil
}

func compareNum(name string, ok func(actual, expected float64) bool) operator {
	return func(actual any, _ bool, expected any) error {
		a, isNum := number(actual)
		if !isNum {
			return fmt.Errorf("%s: %v is not a number", name, actual)
		}
		e, isNum := number(expected)
		if !isNum {
			return fmt.Errorf("%s: expected value %v is not a number", name, expected)
		}
		if !ok(a, e) {
			return fmt.Errorf("%s %v failed, got %v", name, e, a)
		}
		return nil
	}
}

func opContains(actual any, _ bool, expected any) error {
	a, e := fmt.Sprint(actual), fmt.Sprint(expected)
	if !strings.Contains(a, e) {
		return fmt.Errorf("expected to contain %q, got %q", e, a)
	}
	return nil
}

func opRegex(actual any, _ bool, expected any) error {
	pattern, ok := expected.(string)
	if !ok {
		return fmt.Errorf("regex needs a string pattern, got %T", expected)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	if s := fmt.Sprint(actual); !re.MatchString(s) {
		return fmt.Errorf("%q does not match %q", s, pattern)
	}
	return nil
}

func opLenGte(actual any, _ bool, expected any) error {
	want, isNum := number(expected)
	if !isNum {
		return fmt.Errorf("len_gte needs a number, got %v", expected)
	}
	var n int
	switch v := actual.(type) {
	case []any:
		n = len(v)
	case map[string]any:
		n = len(v)
	case string:
		n = len(v)
	default:
		return fmt.Errorf("len_gte: %T has no length", actual)
	}
	if float64(n) < want {
		return fmt.Errorf("expected length >= %v, got %d", want, n)
	}
	return nil
}

// equal compares JSON values. Numbers compare numerically; a number never
// equals a string.
func equal(actual, expected any) bool {
	a, aNum := number(actual)
	e, eNum := number(expected)
	if aNum || eNum {
		return aNum && eNum && a == e
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func number(v any) (float64, bool) {
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
	}
	return 0, false
}

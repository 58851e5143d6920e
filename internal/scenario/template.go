package scenario

import (
	"fmt"
	"os"
	"strings"
)

// Expand replaces every {{expr}} in s. Expressions resolve, in order:
//   - env.NAME from the process environment
//   - config.KEY from params
//   - a captured or scenario variable
func Expand(s string, vars, params map[string]string) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return "", fmt.Errorf("unterminated template at position %d", start)
		}
		end += start

		value, err := resolve(strings.TrimSpace(s[start+2:end]), vars, params)
		if err != nil {
			return "", err
		}
		b.WriteString(s[:start])
		b.WriteString(value)
		s = s[end+2:]
	}
}

func resolve(expr string, vars, params map[string]string) (string, error) {
	if name, ok := strings.CutPrefix(expr, "env."); ok {
		return os.Getenv(name), nil
	}
	if key, ok := strings.CutPrefix(expr, "config."); ok {
		if v, found := params[key]; found {
			return v, nil
		}
		return "", fmt.Errorf("unknown config key in template: %q", key)
	}
	if v, ok := vars[expr]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unresolved template expression: %q", expr)
}

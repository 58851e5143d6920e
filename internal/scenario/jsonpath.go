package scenario

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookup evaluates a dot/index path such as $.storyId, $[0].title or
// $.items[2].id against decoded JSON. ok is false when the path does not
// resolve; err is set only for a malformed path.
func lookup(doc any, path string) (value any, ok bool, err error) {
	rest, found := strings.CutPrefix(path, "$")
	if !found {
		return nil, false, fmt.Errorf("path must start with $: %q", path)
	}

	tokens, err := tokenize(rest)
	if err != nil {
		return nil, false, fmt.Errorf("path %q: %w", path, err)
	}

	cur := doc
	for _, tok := range tokens {
		switch t := tok.(type) {
		case string:
			obj, isObj := cur.(map[string]any)
			if !isObj {
				return nil, false, nil
			}
			v, present := obj[t]
			if !present {
				return nil, false, nil
			}
			cur = v
		case int:
			arr, isArr := cur.([]any)
			if !isArr || t < 0 || t >= len(arr) {
				return nil, false, nil
			}
			cur = arr[t]
		}
	}
	return cur, true, nil
}

// tokenize turns ".a.b[0]" into ["a", "b", 0].
func tokenize(s string) ([]any, error) {
	var tokens []any
	for s != "" {
		switch s[0] {
		case '.':
			s = s[1:]
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			if end == 0 {
				return nil, fmt.Errorf("empty field name")
			}
			tokens = append(tokens, s[:end])
			s = s[end:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed [")
			}
			idx, err := strconv.Atoi(s[1:end])
			if err != nil {
				return nil, fmt.Errorf("invalid index %q", s[1:end])
			}
			tokens = append(tokens, idx)
			s = s[end+1:]
		default:
			return nil, fmt.Errorf("unexpected %q", s[0])
		}
	}
	return tokens, nil
}

func decodeBody(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	return doc, nil
}

// Extract returns the value at path in a JSON body.
func Extract(body []byte, path string) (any, error) {
	doc, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	v, ok, err := lookup(doc, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: no match", path)
	}
	return v, nil
}

package skill

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/skillflow/types"
)

// Params holds the decoded parameters of one invocation. Values come from
// JSON, so numbers arrive as float64 and lists as []any; the accessors
// normalize those shapes.
type Params map[string]any

// String returns the string value for key.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer value for key, accepting JSON numbers.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Float returns the float value for key.
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bool returns the boolean value for key.
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}

// StringSlice returns the string list for key, accepting []any from JSON.
func (p Params) StringSlice(key string) ([]string, bool) {
	switch v := p[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// RequireString returns the value for key or an INVALID_INPUT error when the
// key is missing, not a string, or blank after trimming whitespace.
func (p Params) RequireString(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", types.NewError(types.ErrInvalidInput, fmt.Sprintf("missing required parameter %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", types.NewError(types.ErrInvalidInput, fmt.Sprintf("parameter %q must be a string", key))
	}
	if strings.TrimSpace(s) == "" {
		return "", types.NewError(types.ErrInvalidInput, fmt.Sprintf("parameter %q must not be empty", key))
	}
	return s, nil
}

// RequireInt returns the integer value for key or an INVALID_INPUT error.
func (p Params) RequireInt(key string) (int, error) {
	if _, ok := p[key]; !ok {
		return 0, types.NewError(types.ErrInvalidInput, fmt.Sprintf("missing required parameter %q", key))
	}
	n, ok := p.Int(key)
	if !ok {
		return 0, types.NewError(types.ErrInvalidInput, fmt.Sprintf("parameter %q must be an integer", key))
	}
	return n, nil
}

// RequireOneOf returns the value for key, which must be one of allowed.
func (p Params) RequireOneOf(key string, allowed ...string) (string, error) {
	s, err := p.RequireString(key)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", types.NewError(types.ErrInvalidInput,
		fmt.Sprintf("parameter %q must be one of [%s]", key, strings.Join(allowed, ", ")))
}

// OptionalString returns the value for key or def when absent or blank.
func (p Params) OptionalString(key, def string) string {
	s, ok := p.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// OptionalInt returns the integer for key or def when absent.
func (p Params) OptionalInt(key string, def int) int {
	n, ok := p.Int(key)
	if !ok {
		return def
	}
	return n
}

// OptionalBool returns the boolean for key or def when absent.
func (p Params) OptionalBool(key string, def bool) bool {
	b, ok := p.Bool(key)
	if !ok {
		return def
	}
	return b
}

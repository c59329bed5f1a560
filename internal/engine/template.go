package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tokenPattern — плейсхолдер вида {{a.b.c}}.
var tokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolve подставляет значения из data вместо токенов {{path}}.
//
// Путь — ключи через точку. Если сегмент отсутствует, промежуточное
// значение не map или значение nil — токен остаётся как есть.
// Строки подставляются без кавычек, остальные значения — в
// каноническом текстовом виде (см. Stringify).
//
//	Resolve("Hello {{user.name}}", {"user": {"name": "Bob"}}) → "Hello Bob"
//	Resolve("{{a.b}}", {"a": {}})                           → "{{a.b}}"
func Resolve(template string, data map[string]any) string {
	return replaceTokens(template, data, Stringify)
}

// ResolveCondition — вариант Resolve для условий фильтра.
// Строковые значения подставляются как литералы в кавычках,
// чтобы вычислитель условий не принял их за путь в контексте.
func ResolveCondition(template string, data map[string]any) string {
	return replaceTokens(template, data, func(v any) string {
		if s, ok := v.(string); ok {
			return strconv.Quote(s)
		}
		return Stringify(v)
	})
}

func replaceTokens(template string, data map[string]any, format func(any) string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := strings.TrimSpace(token[2 : len(token)-2])
		value, ok := Lookup(data, path)
		if !ok || value == nil {
			return token
		}
		return format(value)
	})
}

// ResolveValue рекурсивно подставляет значения во все строковые
// листья и ключи map'ов и слайсов. Исходное значение не изменяется.
func ResolveValue(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		return Resolve(v, data)

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[Resolve(k, data)] = ResolveValue(val, data)
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = ResolveValue(val, data)
		}
		return out

	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[Resolve(k, data)] = Resolve(val, data)
		}
		return out

	case []string:
		out := make([]string, len(v))
		for i, val := range v {
			out[i] = Resolve(val, data)
		}
		return out

	default:
		return value
	}
}

// Lookup находит значение по пути через точку.
// Второе значение false, если путь не разрешается.
func Lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Stringify возвращает каноническое текстовое представление значения.
//
//	"abc" → abc, 5 → 5, 1.5 → 1.5, true → true, {"a":1} → {"a":1}
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

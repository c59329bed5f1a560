package engine

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Operator — оператор сравнения в условии фильтра.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

// operators в порядке поиска: двухсимвольные раньше односимвольных,
// иначе "<=" распознался бы как "<".
var operators = []Operator{
	OpEqual, OpNotEqual, OpLessEqual, OpGreaterEqual, OpLess, OpGreater,
}

// allowedChars — символы, допустимые вне строковых литералов.
const allowedChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 ._()[]{}\"'<>=!&|+-*/,%:"

// Comparison — разобранное условие.
// Для условия без оператора Op пустой, а Right не используется.
type Comparison struct {
	Left  string
	Op    Operator
	Right string
}

// Evaluate вычисляет условие фильтра.
//
// Грамматика фиксирована: <value> <op> <value>, где op — один из
// ==, !=, <, >, <=, >=, а value — литерал в кавычках, число,
// true/false/none или путь в контексте через точку. Без оператора
// результатом является истинность единственного значения.
//
// Произвольные выражения не вычисляются.
func Evaluate(condition string, data map[string]any) (bool, error) {
	cmp, err := ParseCondition(condition)
	if err != nil {
		return false, err
	}

	left := operandValue(cmp.Left, data)
	if cmp.Op == "" {
		return Truthy(left), nil
	}
	right := operandValue(cmp.Right, data)

	return compare(left, cmp.Op, right)
}

// ParseCondition проверяет символы условия и разбивает его на операнды.
func ParseCondition(condition string) (*Comparison, error) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return nil, ErrEmptyCondition
	}
	if err := checkCharacters(cond); err != nil {
		return nil, err
	}

	idx, op := findOperator(cond)
	if op == "" {
		return &Comparison{Left: cond}, nil
	}

	left := strings.TrimSpace(cond[:idx])
	right := strings.TrimSpace(cond[idx+len(op):])
	if left == "" || right == "" {
		return nil, fmt.Errorf("%w: operator %s needs two operands", ErrMalformedCondition, op)
	}
	if _, extra := findOperator(right); extra != "" {
		return nil, fmt.Errorf("%w: only one comparison is allowed", ErrMalformedCondition)
	}

	return &Comparison{Left: left, Op: op, Right: right}, nil
}

// checkCharacters проверяет, что вне литералов нет запрещённых символов
// и все кавычки закрыты. Содержимое литералов — данные, не код.
func checkCharacters(cond string) error {
	var quote rune
	escaped := false

	for _, r := range cond {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}

		if r == '"' || r == '\'' {
			quote = r
			continue
		}
		if !strings.ContainsRune(allowedChars, r) {
			return fmt.Errorf("%w: %q", ErrUnsafeCondition, r)
		}
	}

	if quote != 0 {
		return fmt.Errorf("%w: unterminated string literal", ErrMalformedCondition)
	}
	return nil
}

// findOperator возвращает позицию и оператор первого сравнения
// вне строковых литералов.
func findOperator(cond string) (int, Operator) {
	var quote byte
	escaped := false

	for i := 0; i < len(cond); i++ {
		c := cond[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}

		for _, op := range operators {
			if strings.HasPrefix(cond[i:], string(op)) {
				return i, op
			}
		}
	}
	return -1, ""
}

// operandValue превращает текст операнда в значение.
func operandValue(token string, data map[string]any) any {
	token = strings.TrimSpace(token)

	if len(token) >= 2 {
		first, last := token[0], token[len(token)-1]
		if (first == '"' || first == '\'') && first == last {
			if first == '"' {
				if s, err := strconv.Unquote(token); err == nil {
					return s
				}
			}
			return token[1 : len(token)-1]
		}
	}

	if n, ok := parseNumber(token); ok {
		return n
	}

	switch strings.ToLower(token) {
	case "true":
		return true
	case "false":
		return false
	case "none":
		return nil
	}

	value, ok := Lookup(data, token)
	if !ok {
		return nil
	}
	return value
}

// parseNumber: целое, если помещается в int64, иначе float
// (дробные, экспонента, большие целые). Токен должен начинаться с
// цифры: "inf" и "nan" остаются путями.
func parseNumber(token string) (any, bool) {
	digits := strings.TrimLeft(token, "+-")
	if digits == "" || !(isDigit(digits[0]) || digits[0] == '.') {
		return nil, false
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func compare(left any, op Operator, right any) (bool, error) {
	switch op {
	case OpEqual:
		return equal(left, right), nil
	case OpNotEqual:
		return !equal(left, right), nil
	}

	l, lok := toFloat(left)
	r, rok := toFloat(right)
	if !lok || !rok {
		return false, fmt.Errorf("%w: %v %s %v", ErrNotComparable, left, op, right)
	}

	switch op {
	case OpLess:
		return l < r, nil
	case OpGreater:
		return l > r, nil
	case OpLessEqual:
		return l <= r, nil
	case OpGreaterEqual:
		return l >= r, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrMalformedCondition, op)
	}
}

// equal: числа сравниваются как float64, остальное — структурно.
func equal(left, right any) bool {
	l, lok := numeric(left)
	r, rok := numeric(right)
	if lok && rok {
		return l == r
	}
	return reflect.DeepEqual(left, right)
}

// numeric приводит к float64 только числовые типы.
func numeric(v any) (float64, bool) {
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
	default:
		return 0, false
	}
}

// toFloat дополнительно принимает числовые строки и bool.
func toFloat(v any) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Truthy возвращает истинность значения:
// nil, false, 0, "" и пустые коллекции — ложь.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	if s, ok := v.(string); ok {
		return s != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

// Package extract provides field extractors that turn worker output into
// typed workflow fields. Dispatchers route on those fields instead of
// re-reading message text.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
)

// Kind is the type a captured value is converted to.
type Kind string

// Supported kinds.
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
)

// CreditScorePattern matches "credit score: 720", "Credit score is 720" and
// similar phrasings.
const CreditScorePattern = `credit score(?:\s+is)?(?:\s*:)?\s*(\d+)`

// RegexExtractor sets one field from the first regex match in a message.
type RegexExtractor struct {
	field string
	re    *regexp.Regexp
	kind  Kind
}

// Regex compiles a case-insensitive extractor. The first capture group is
// converted to kind; a pattern without groups uses the whole match.
func Regex(field, pattern string, kind Kind) (*RegexExtractor, error) {
	if field == "" {
		return nil, fmt.Errorf("extract: field name is required")
	}
	if kind == "" {
		kind = KindString
	}
	switch kind {
	case KindString, KindInt, KindFloat, KindBool:
	default:
		return nil, fmt.Errorf("extract: unknown kind %q for field %s", kind, field)
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("extract: field %s: %w", field, err)
	}
	return &RegexExtractor{field: field, re: re, kind: kind}, nil
}

// MustRegex is Regex that panics on error.
func MustRegex(field, pattern string, kind Kind) *RegexExtractor {
	e, err := Regex(field, pattern, kind)
	if err != nil {
		panic(err)
	}
	return e
}

// CreditScore extracts credit_score as an int.
func CreditScore() *RegexExtractor {
	return MustRegex("credit_score", CreditScorePattern, KindInt)
}

// Field returns the field this extractor sets.
func (e *RegexExtractor) Field() string {
	return e.field
}

// Extract implements agentrouter.Extractor. Error messages and values that
// don't convert are ignored.
func (e *RegexExtractor) Extract(msg agentrouter.Message) map[string]any {
	if msg.IsError {
		return nil
	}
	m := e.re.FindStringSubmatch(msg.Content)
	if m == nil {
		return nil
	}
	raw := m[0]
	if len(m) > 1 {
		raw = m[1]
	}
	v, ok := convert(strings.TrimSpace(raw), e.kind)
	if !ok {
		return nil
	}
	return map[string]any{e.field: v}
}

func convert(raw string, kind Kind) (any, bool) {
	switch kind {
	case KindInt:
		i, err := strconv.Atoi(raw)
		return i, err == nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	case KindBool:
		switch strings.ToLower(raw) {
		case "true", "yes", "y", "approved", "1":
			return true, true
		case "false", "no", "n", "rejected", "denied", "0":
			return false, true
		}
		return nil, false
	default:
		return raw, true
	}
}

// JSONFieldExtractor copies one key from a message whose content is a JSON
// object, such as tool output rendered verbatim.
type JSONFieldExtractor struct {
	field string
	key   string
}

// JSONField extracts key from JSON message content into field. An empty
// field reuses key. Dotted keys walk nested objects.
func JSONField(field, key string) *JSONFieldExtractor {
	if field == "" {
		field = key
	}
	return &JSONFieldExtractor{field: field, key: key}
}

// Field returns the field this extractor sets.
func (e *JSONFieldExtractor) Field() string {
	return e.field
}

// Extract implements agentrouter.Extractor.
func (e *JSONFieldExtractor) Extract(msg agentrouter.Message) map[string]any {
	if msg.IsError {
		return nil
	}
	content := strings.TrimSpace(msg.Content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(content[start : end+1]))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil
	}

	var cur any = obj
	for _, part := range strings.Split(e.key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return map[string]any{e.field: normalize(cur)}
}

// normalize converts integral json.Number values to int and the rest to
// float64.
func normalize(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	f, _ := n.Float64()
	return f
}

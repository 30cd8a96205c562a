// Package pipeline implements the dispatcher state machine that walks an
// event through a pipeline's extractors and destination call.
package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/integration-os/core/internal/ioserr"
)

// fieldRegex matches {{field.path}} placeholders in an extractor or
// destination header/body template. Compiled once and reused across every
// Resolve call, mirroring the compile-once/substitute-many shape used for
// dataset pattern aliasing elsewhere in this codebase.
var fieldRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Values is the substitution source for a template: a tree of named
// extractor outputs plus the original event payload, addressed by
// dot-separated paths such as "charge_lookup.id" or "event.amount".
type Values map[string]any

// Resolve substitutes every {{field.path}} placeholder in template against
// v. A placeholder whose path cannot be resolved is a terminal error,
// matching the contract that template substitution failures produce
// Dropped("template: <field>").
func Resolve(template string, v Values) (string, error) {
	var firstErr error

	result := fieldRegex.ReplaceAllStringFunc(template, func(match string) string {
		if firstErr != nil {
			return match
		}

		path := fieldRegex.FindStringSubmatch(match)[1]

		value, ok := lookup(v, path)
		if !ok {
			firstErr = ioserr.New(ioserr.BadRequest, "template: "+path)

			return match
		}

		return stringify(value)
	})

	if firstErr != nil {
		return "", firstErr
	}

	return result, nil
}

// lookup walks a dot-separated path through v, descending into nested
// maps and JSON-decoded objects as needed.
func lookup(v Values, path string) (any, bool) {
	segments := strings.Split(path, ".")

	var current any = map[string]any(v)

	for _, segment := range segments {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}

		next, present := m[segment]
		if !present {
			return nil, false
		}

		current = next
	}

	return current, true
}

// asMap coerces v into a string-keyed map, decoding json.RawMessage
// extractor results on demand so templates can address nested fields of a
// prior extractor's output without it having been pre-flattened.
func asMap(v any) (map[string]any, bool) {
	switch value := v.(type) {
	case map[string]any:
		return value, true
	case json.RawMessage:
		var decoded map[string]any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return nil, false
		}

		return decoded, true
	case []byte:
		var decoded map[string]any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return nil, false
		}

		return decoded, true
	default:
		return nil, false
	}
}

// stringify renders a resolved value for interpolation into a header or
// body template.
func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return ""
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}

		return string(b)
	}
}

// Package attrs mirrors slog-style key/value pairs onto trace spans.
package attrs

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// SpanAttributes converts an alternating key/value slice into trace
// attributes. Strings, ints, bools and fmt.Stringers (IDs, statuses) are
// kept; anything else, and pairs with a non-string key, is skipped.
func SpanAttributes(kv []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i < len(kv)-1; i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			out = append(out, attribute.String(k, v))
		case int:
			out = append(out, attribute.Int(k, v))
		case int64:
			out = append(out, attribute.Int64(k, v))
		case bool:
			out = append(out, attribute.Bool(k, v))
		case fmt.Stringer:
			out = append(out, attribute.String(k, v.String()))
		}
	}
	return out
}

package metrics

import (
	"strings"

	"perfreporter/internal/counters"
)

// Sanitize turns a counter, object or instance name into a metric name
// segment:
//
//	lowercase; '#' -> "num"; '%' -> "pct"
//	space ; : / ( ) * -> '_'
//	'\' and '.' -> '.' between two alphanumerics, '_' otherwise
//	a leading '\' or '.' becomes the prefix "dot"
//	runs of '_' collapse to one
//
// Sanitize is idempotent.
func Sanitize(name string) string {
	s := strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(s) + 4)

	if s != "" && (s[0] == '\\' || s[0] == '.') {
		b.WriteString("dot")
		s = s[1:]
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '#':
			b.WriteString("num")
		case '%':
			b.WriteString("pct")
		case ' ', ';', ':', '/', '(', ')', '*', '_':
			writeUnderscore(&b)
		case '\\', '.':
			if i > 0 && i < len(s)-1 && isAlnum(s[i-1]) && isAlnum(s[i+1]) {
				b.WriteByte('.')
			} else {
				writeUnderscore(&b)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func writeUnderscore(b *strings.Builder) {
	out := b.String()
	if len(out) > 0 && out[len(out)-1] == '_' {
		return
	}
	b.WriteByte('_')
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// MetricKey is the registry identity of a resolved path:
// object.counter, plus .instance=<label> for multi-instance objects
func MetricKey(p counters.Path) string {
	key := Context(p) + "." + Sanitize(p.Counter)
	if p.HasInstance() {
		key += ".instance=" + Sanitize(p.InstanceLabel())
	}
	return key
}

// Context is the report grouping of a resolved path, its sanitized object name
func Context(p counters.Path) string {
	return Sanitize(p.Object)
}

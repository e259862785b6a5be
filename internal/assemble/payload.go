package assemble

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// EmbeddedJSON finds a JSON object that was logged as an escaped string
// (`{\"k\":\"v\\n\"}`) and returns it unescaped and indented. The raw text
// is not modified. The object is unescaped and matched in one forward pass.
func EmbeddedJSON(text string) (string, bool) {
	start := strings.Index(text, `{\"`)
	if start < 0 {
		return "", false
	}
	doc, ok := unescapeObject(text[start:])
	if !ok || !json.Valid(doc) {
		return "", false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, doc, "", "  "); err != nil {
		return "", false
	}
	return out.String(), true
}

// unescapeObject undoes one level of string escaping while tracking JSON
// strings and nesting, and stops at the brace closing the first object.
func unescapeObject(s string) ([]byte, bool) {
	var (
		out   []byte
		depth int
		inStr bool
		esc   bool
	)
	for i := 0; i < len(s); {
		var unit []byte
		c := s[i]
		switch {
		case c == '"':
			// an unescaped quote ended the enclosing string
			return nil, false
		case c != '\\':
			unit = []byte{c}
			i++
		case i+1 >= len(s):
			return nil, false
		default:
			switch n := s[i+1]; n {
			case '"', '\\', '/':
				unit = []byte{n}
			case 'n':
				unit = []byte{'\n'}
			case 't':
				unit = []byte{'\t'}
			case 'r':
				unit = []byte{'\r'}
			case 'u':
				if i+6 > len(s) {
					return nil, false
				}
				v, err := strconv.ParseUint(s[i+2:i+6], 16, 32)
				if err != nil {
					return nil, false
				}
				unit = utf8.AppendRune(nil, rune(v))
				i += 4
			default:
				return nil, false
			}
			i += 2
		}
		for _, b := range unit {
			out = append(out, b)
			switch {
			case inStr && esc:
				esc = false
			case inStr && b == '\\':
				esc = true
			case inStr && b == '"':
				inStr = false
			case inStr:
			case b == '"':
				inStr = true
			case b == '{' || b == '[':
				depth++
			case b == '}' || b == ']':
				depth--
				if depth == 0 {
					return out, true
				}
			}
		}
	}
	return nil, false
}

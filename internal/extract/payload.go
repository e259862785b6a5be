package extract

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Payload finds a JSON object embedded in text, either wrapped as <{...}>
// or bare, and returns it indented.
func Payload(text string) (string, bool) {
	if i := strings.Index(text, "<{"); i >= 0 {
		if j := strings.LastIndex(text, "}>"); j > i {
			if p, ok := indent(text[i+1 : j+1]); ok {
				return p, true
			}
		}
	}
	i := strings.IndexByte(text, '{')
	j := strings.LastIndexByte(text, '}')
	if i < 0 || j <= i {
		return "", false
	}
	return indent(text[i : j+1])
}

func indent(s string) (string, bool) {
	if !json.Valid([]byte(s)) {
		return "", false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(s), "", "  "); err != nil {
		return "", false
	}
	return out.String(), true
}

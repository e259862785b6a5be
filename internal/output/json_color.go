package output

import (
	"encoding/json"
	"strconv"
	"strings"
)

// colorizeJSON re-indents a JSON document, styling keys and scalars. Object
// keys keep their document order. Invalid input is returned unchanged.
func colorizeJSON(doc string, st Styles) string {
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	var b strings.Builder
	if err := renderValue(&b, dec, st, 0); err != nil {
		return doc
	}
	return b.String()
}

func renderValue(b *strings.Builder, dec *json.Decoder, st Styles, indent int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	ind := strings.Repeat("  ", indent)
	switch t := tok.(type) {
	case json.Delim:
		closing := "}"
		if t == '[' {
			closing = "]"
		}
		b.WriteString(st.JSONPunct.Render(t.String()))
		first := true
		for dec.More() {
			if !first {
				b.WriteString(st.JSONPunct.Render(","))
			}
			first = false
			b.WriteString("\n" + ind + "  ")
			if t == '{' {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				b.WriteString(st.JSONKey.Render(strconv.Quote(key.(string))))
				b.WriteString(st.JSONPunct.Render(": "))
			}
			if err := renderValue(b, dec, st, indent+1); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		if !first {
			b.WriteString("\n" + ind)
		}
		b.WriteString(st.JSONPunct.Render(closing))
	case string:
		b.WriteString(st.JSONString.Render(strconv.Quote(t)))
	case json.Number:
		b.WriteString(st.JSONNumber.Render(t.String()))
	case bool:
		b.WriteString(st.JSONBool.Render(strconv.FormatBool(t)))
	case nil:
		b.WriteString(st.JSONNull.Render("null"))
	}
	return nil
}

func isJSON(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) && json.Valid([]byte(s))
}

package item

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/btouchard/boardcast/internal/config"
)

// Normalizer maps raw store records onto Items. Every property read is
// optional: a missing or wrong-shaped value yields nil (or false), never an error.
type Normalizer struct {
	props config.PropertiesConfig
}

// NewNormalizer creates a Normalizer for the given property mapping.
func NewNormalizer(props config.PropertiesConfig) *Normalizer {
	return &Normalizer{props: props}
}

// Normalize converts one raw record. The second return value is false when
// the record must be excluded (no id, or no name under any alias).
func (n *Normalizer) Normalize(raw []byte) (Item, bool) {
	rec := gjson.ParseBytes(raw)

	id := strings.TrimSpace(rec.Get("id").String())
	if id == "" || rec.Get("id").Type != gjson.String {
		return Item{}, false
	}

	props := rec.Get("properties")

	name := n.resolveName(props)
	if name == "" {
		return Item{}, false
	}

	return Item{
		ID:          id,
		Name:        name,
		Level:       readNumber(property(props, n.props.Level)),
		Upper:       readText(property(props, n.props.Upper)),
		Dependency:  readText(property(props, n.props.Dependency)),
		EarlyStart:  readDate(property(props, n.props.EarlyStart)),
		LateStart:   readDate(property(props, n.props.LateStart)),
		EarlyFinish: readDate(property(props, n.props.EarlyFinish)),
		LateFinish:  readDate(property(props, n.props.LateFinish)),
		Done:        readBool(property(props, n.props.Done)),
	}, true
}

// resolveName walks the alias list in order and returns the first non-empty
// trimmed value.
func (n *Normalizer) resolveName(props gjson.Result) string {
	for _, alias := range n.props.Name {
		if v := readText(property(props, alias)); v != nil {
			return *v
		}
	}
	return ""
}

// property looks up a property by its literal name. Names may contain
// characters that gjson treats as path syntax, so they are escaped.
func property(props gjson.Result, name string) gjson.Result {
	if name == "" || !props.IsObject() {
		return gjson.Result{}
	}
	return props.Get(escapeKey(name))
}

func escapeKey(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func readText(v gjson.Result) *string {
	var s string
	switch {
	case v.Type == gjson.String:
		s = v.String()
	case v.IsArray():
		s = joinPlainText(v)
	case v.IsObject():
		s = textFromObject(v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func textFromObject(v gjson.Result) string {
	for _, key := range []string{"title", "rich_text"} {
		if arr := v.Get(key); arr.IsArray() {
			if s := joinPlainText(arr); strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	for _, path := range []string{"select.name", "status.name", "formula.string", "url", "email", "phone_number"} {
		if r := v.Get(path); r.Type == gjson.String {
			return r.String()
		}
	}
	if r := v.Get("formula.number"); r.Type == gjson.Number {
		return r.Raw
	}
	if r := v.Get("number"); r.Type == gjson.Number {
		return r.Raw
	}
	return ""
}

func joinPlainText(arr gjson.Result) string {
	var sb strings.Builder
	for _, el := range arr.Array() {
		switch {
		case el.Type == gjson.String:
			sb.WriteString(el.String())
		case el.Get("plain_text").Type == gjson.String:
			sb.WriteString(el.Get("plain_text").String())
		case el.Get("text.content").Type == gjson.String:
			sb.WriteString(el.Get("text.content").String())
		}
	}
	return sb.String()
}

func readNumber(v gjson.Result) *float64 {
	switch {
	case v.Type == gjson.Number:
		f := v.Float()
		return &f
	case v.Type == gjson.String:
		return parseNumber(v.String())
	case v.IsObject():
		for _, path := range []string{"number", "formula.number", "rollup.number"} {
			if r := v.Get(path); r.Type == gjson.Number {
				f := r.Float()
				return &f
			}
		}
		for _, path := range []string{"select.name", "formula.string"} {
			if r := v.Get(path); r.Type == gjson.String {
				return parseNumber(r.String())
			}
		}
	}
	return nil
}

func parseNumber(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func readDate(v gjson.Result) *string {
	var s string
	switch {
	case v.Type == gjson.String:
		s = v.String()
	case v.IsObject():
		for _, path := range []string{"date.start", "formula.date.start", "rollup.date.start"} {
			if r := v.Get(path); r.Type == gjson.String {
				s = r.String()
				break
			}
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func readBool(v gjson.Result) bool {
	switch {
	case v.Type == gjson.True:
		return true
	case v.IsObject():
		for _, path := range []string{"checkbox", "formula.boolean"} {
			if r := v.Get(path); r.Type == gjson.True {
				return true
			}
		}
	}
	return false
}

package endpoint

import (
	"fmt"
	"strings"
)

// KeyValue a `key=value` argument, kept in the order it was written
type KeyValue struct {
	Key   string
	Value string
}

// Description a parsed endpoint string: `prefix:arg:arg:key=value`
type Description struct {
	Prefix string
	Args   []string
	Kwargs []KeyValue
}

// ParseDescription Splits on unescaped colons. `\:`, `\=` and `\\` stand for the literal characters.
// A segment holding an unescaped `=` is a keyword argument, split at the first one.
func ParseDescription(description string) (Description, error) {
	segments, err := split(description)
	if err != nil {
		return Description{}, err
	}

	if segments[0].text == "" {
		return Description{}, fmt.Errorf("endpoint %q has no type", description)
	}

	desc := Description{Prefix: segments[0].text}
	for _, seg := range segments[1:] {
		if seg.eq >= 0 {
			desc.Kwargs = append(desc.Kwargs, KeyValue{Key: seg.text[:seg.eq], Value: seg.text[seg.eq+1:]})
		} else {
			desc.Args = append(desc.Args, seg.text)
		}
	}
	return desc, nil
}

// Kwarg the last value given for key
func (d Description) Kwarg(key string) (string, bool) {
	val, found := "", false
	for _, kv := range d.Kwargs {
		if kv.Key == key {
			val, found = kv.Value, true
		}
	}
	return val, found
}

// KwargMap last value wins
func (d Description) KwargMap() map[string]any {
	m := make(map[string]any, len(d.Kwargs))
	for _, kv := range d.Kwargs {
		m[kv.Key] = kv.Value
	}
	return m
}

// Rest Re-joins everything after the first n positional arguments into a description of its own.
// This is how wrapping endpoints hand their remaining arguments to the endpoint they wrap.
func (d Description) Rest(n int) (string, error) {
	if len(d.Args) <= n {
		return "", fmt.Errorf("%s: missing wrapped endpoint", d.Prefix)
	}

	items := make([]string, 0, len(d.Args)-n+len(d.Kwargs))
	for _, arg := range d.Args[n:] {
		items = append(items, escape(arg, true))
	}
	for _, kv := range d.Kwargs {
		items = append(items, escape(kv.Key, true)+"="+escape(kv.Value, false))
	}
	return strings.Join(items, ":"), nil
}

func (d Description) String() string {
	items := []string{escape(d.Prefix, true)}
	for _, arg := range d.Args {
		items = append(items, escape(arg, true))
	}
	for _, kv := range d.Kwargs {
		items = append(items, escape(kv.Key, true)+"="+escape(kv.Value, false))
	}
	return strings.Join(items, ":")
}

type segment struct {
	text string
	eq   int // index of the first unescaped `=` in text, or -1
}

func split(description string) ([]segment, error) {
	var segments []segment
	var current strings.Builder
	eq := -1

	for i := 0; i < len(description); i++ {
		c := description[i]
		switch {
		case c == '\\':
			if i+1 >= len(description) {
				return nil, fmt.Errorf("endpoint %q ends with an escape", description)
			}
			i++
			current.WriteByte(description[i])
		case c == ':':
			segments = append(segments, segment{text: current.String(), eq: eq})
			current.Reset()
			eq = -1
		case c == '=' && eq < 0:
			eq = current.Len()
			current.WriteByte(c)
		default:
			current.WriteByte(c)
		}
	}
	return append(segments, segment{text: current.String(), eq: eq}), nil
}

func escape(s string, escapeEquals bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == ':' || (escapeEquals && c == '=') {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

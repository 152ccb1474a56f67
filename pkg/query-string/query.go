package querystring

import (
	"net/url"
	"sort"
	"strings"
)

// Param is a single query string entry.
// Positional entries are emitted by value only, without a `key=` prefix.
type Param struct {
	Key        string
	Value      string
	Positional bool
}

// Params is an ordered list of query string entries.
// The order of the list is the order of the serialized query string.
type Params []Param

// Named returns a `key=value` entry.
func Named(key, value string) Param {
	return Param{Key: key, Value: value}
}

// Positional returns an entry that is emitted by value only.
func Positional(value string) Param {
	return Param{Value: value, Positional: true}
}

// Add appends a named entry and returns the extended list.
func (p Params) Add(key, value string) Params {
	return append(p, Named(key, value))
}

// AddPositional appends a positional entry and returns the extended list.
func (p Params) AddPositional(value string) Params {
	return append(p, Positional(value))
}

// FromValues converts url.Values to Params.
// Keys are sorted, since url.Values has no order of its own.
// Multiple values of a key result in repeated entries.
func FromValues(values url.Values) Params {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make(Params, 0, len(values))
	for _, k := range keys {
		for _, v := range values[k] {
			params = append(params, Named(k, v))
		}
	}
	return params
}

// Escape percent-encodes s for use as a query component.
// Spaces are encoded as `%20` rather than `+`.
func Escape(s string) string {
	// QueryEscape encodes a literal plus as %2B, so every remaining plus is a space
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Build serializes the params to a query string.
// The result starts with `?` unless there are no params, in which case it is empty.
// Keys and values are encoded independently of each other.
func Build(params Params, encodeValues, encodeKeys bool) string {
	if len(params) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		if !p.Positional {
			if encodeKeys {
				b.WriteString(Escape(p.Key))
			} else {
				b.WriteString(p.Key)
			}
			b.WriteByte('=')
		}
		if encodeValues {
			b.WriteString(Escape(p.Value))
		} else {
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

package h1x

import "strings"

// Field is one header name/value pair.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered sequence of fields. Duplicates are preserved in
// arrival order; lookups are case-insensitive. The zero value is ready
// to use.
type Header struct {
	fields []Field
}

// Get returns the first value for key, or "".
func (h *Header) Get(key string) string {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, key) {
			return h.fields[i].Value
		}
	}
	return ""
}

// Values returns all values for key in order.
func (h *Header) Values(key string) []string {
	var vv []string
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, key) {
			vv = append(vv, h.fields[i].Value)
		}
	}
	return vv
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, key) {
			return true
		}
	}
	return false
}

// Add appends a field, preserving any existing values for key.
func (h *Header) Add(key, value string) {
	h.fields = append(h.fields, Field{Name: key, Value: value})
}

// Set replaces all values for key with value, keeping the position of
// the first occurrence.
func (h *Header) Set(key, value string) {
	set := false
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			if set {
				continue
			}
			f.Value = value
			set = true
		}
		out = append(out, f)
	}
	h.fields = out
	if !set {
		h.Add(key, value)
	}
}

// Del removes all values for key.
func (h *Header) Del(key string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, key) {
			continue
		}
		out = append(out, f)
	}
	h.fields = out
}

// Fields returns the underlying ordered fields. The slice is shared;
// callers must not mutate it.
func (h *Header) Fields() []Field { return h.fields }

// Len returns the number of fields.
func (h *Header) Len() int { return len(h.fields) }

// Clone returns a deep copy.
func (h *Header) Clone() Header {
	return Header{fields: append([]Field(nil), h.fields...)}
}

// valueListContains reports whether any value for key, split on
// commas, equals want case-insensitively. Used for Connection and
// Transfer-Encoding tokens.
func (h *Header) valueListContains(key, want string) bool {
	for _, v := range h.Values(key) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), want) {
				return true
			}
		}
	}
	return false
}

package sip

import (
	"io"
	"slices"
	"strings"
)

// HeaderKV is one ;key=value (or &key=value) pair carried by a URI or
// header parameter list.
type HeaderKV struct {
	K string
	V string
}

// HeaderParams is an ordered list of key/value pairs, used both for URI
// parameters (RFC 3261 §19.1.1) and for header field parameters such as the
// tag on To/From or branch on Via. A slice rather than a map because SIP
// parameter lists are short (typically one to four entries) and order
// matters when re-serializing a message byte-for-byte.
type HeaderParams []HeaderKV

// NewParams returns an empty list sized for the common case: a couple of
// URI/Via params, or up to four on a Route/Record-Route header.
func NewParams() HeaderParams {
	return make(HeaderParams, 0, 4)
}

// Items copies the list into a map, discarding order and any duplicate
// keys (last write wins).
func (hp HeaderParams) Items() map[string]string {
	m := make(map[string]string, len(hp))
	for _, kv := range hp {
		m[kv.K] = kv.V
	}
	return m
}

// Keys returns each distinct key once, in first-appearance order.
func (hp HeaderParams) Keys() []string {
	keys := make([]string, 0, len(hp))
	for _, kv := range hp {
		if slices.Contains(keys, kv.K) {
			continue
		}
		keys = append(keys, kv.K)
	}
	return keys
}

func (hp HeaderParams) index(key string) int {
	for i, kv := range hp {
		if kv.K == key {
			return i
		}
	}
	return -1
}

// Get returns the value for key and whether it was present.
func (hp HeaderParams) Get(key string) (string, bool) {
	if i := hp.index(key); i >= 0 {
		return hp[i].V, true
	}
	return "", false
}

// GetOr returns the value for key, or def if key is absent.
func (hp HeaderParams) GetOr(key, def string) string {
	if i := hp.index(key); i >= 0 {
		return hp[i].V
	}
	return def
}

// Add sets key to val, overwriting an existing entry in place rather than
// appending a duplicate.
func (hp *HeaderParams) Add(key, val string) HeaderParams {
	if i := hp.index(key); i >= 0 {
		(*hp)[i].V = val
	} else {
		*hp = append(*hp, HeaderKV{K: key, V: val})
	}
	return *hp
}

// Remove deletes every entry matching key.
func (hp *HeaderParams) Remove(key string) HeaderParams {
	for {
		i := hp.index(key)
		if i < 0 {
			return *hp
		}
		*hp = slices.Delete(*hp, i, i+1)
	}
}

// Has reports whether key is present.
func (hp HeaderParams) Has(key string) bool {
	return hp.index(key) >= 0
}

// Clone returns a copy backed by a new underlying array, so mutating the
// copy never touches the original.
func (hp HeaderParams) Clone() HeaderParams {
	return slices.Clone(hp)
}

// needsQuoting reports whether v contains a character that would make it
// ambiguous as a bare token value and must be wrapped in quotes when
// serialized. Values are expected to already be unescaped at this point.
func needsQuoting(v string) bool {
	return strings.ContainsAny(v, abnf)
}

// ToString joins the params with sep, in the form key=value, key;
// (value-less) for flag-style params like "lr".
func (hp HeaderParams) ToString(sep byte) string {
	if len(hp) == 0 {
		return ""
	}

	var b strings.Builder
	for _, kv := range hp {
		b.WriteByte(sep)
		b.WriteString(kv.K)
		switch {
		case needsQuoting(kv.V):
			b.WriteString("=\"")
			b.WriteString(kv.V)
			b.WriteByte('"')
		case kv.V != "":
			b.WriteByte('=')
			b.WriteString(kv.V)
		}
	}

	return b.String()[1:]
}

// ToStringWrite is ToString, but writes directly into w instead of
// allocating an intermediate string.
func (hp HeaderParams) ToStringWrite(sep byte, w io.StringWriter) {
	if len(hp) == 0 {
		return
	}

	sepStr := string(sep)
	for i, kv := range hp {
		if i > 0 {
			w.WriteString(sepStr)
		}
		w.WriteString(kv.K)
		if kv.V == "" {
			continue
		}
		if needsQuoting(kv.V) {
			w.WriteString("=\"")
			w.WriteString(kv.V)
			w.WriteString("\"")
		} else {
			w.WriteString("=")
			w.WriteString(kv.V)
		}
	}
}

// String renders the params &-joined, as they appear in a URI's header
// component.
func (hp HeaderParams) String() string {
	return hp.ToString('&')
}

// Length returns the number of params.
func (hp HeaderParams) Length() int {
	return len(hp)
}

// Equals reports whether hp and other hold the same set of key/value
// pairs, regardless of order.
func (hp HeaderParams) Equals(other interface{}) bool {
	q, ok := other.(HeaderParams)
	if !ok {
		return false
	}

	if hp.Length() != q.Length() {
		return false
	}
	if hp.Length() == 0 {
		return true
	}

	for key, val := range hp.Items() {
		qVal, ok := q.Get(key)
		if !ok || qVal != val {
			return false
		}
	}

	return true
}

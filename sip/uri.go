package sip

import (
	"io"
	"strconv"
	"strings"
)

// SIPUri is implemented by anything that can render itself as a sip: or
// sips: URI string, per RFC 3261 §19.1. The Request-URI, To/From targets,
// and Contact header values are all SIPUri.
type SIPUri interface {
	String() string
	IsEncrypted() bool
}

// ContactUri narrows SIPUri to the schemes that may legally appear inside a
// Contact header (sip/sips, plus the wildcard "*"). Kept distinct from
// SIPUri so call sites can document intent even though the two interfaces
// currently carry the same method set.
type ContactUri interface {
	SIPUri
}

// Uri is a parsed sip:/sips: URI: scheme, optional userinfo, host[:port],
// URI parameters, and header parameters (RFC 3261 §19.1.1).
//
//	sip:user:password@host:port;uri-parameters?headers
type Uri struct {
	Encrypted bool // true for sips:
	Wildcard  bool // true only for the literal Contact value "*"

	User     string
	Password string // RFC 3261 §19.1 discourages embedding credentials here

	Host string
	Port int // 0 means "not specified", not "port zero"

	// UriParams are the ;key=value pairs between the host[:port] and any "?"
	// (RFC 3261 §19.1.1, e.g. transport, user, method, ttl, lr).
	UriParams HeaderParams

	// Headers are the &-separated key=value pairs after "?", used to seed
	// header fields on a request built from this URI (RFC 3261 §19.1.1).
	Headers HeaderParams
}

func (uri *Uri) String() string {
	var b strings.Builder
	uri.StringWrite(&b)
	return b.String()
}

// StringWrite renders the URI directly into w, avoiding an intermediate
// strings.Builder when the caller already has one (e.g. while composing a
// full request line).
func (uri *Uri) StringWrite(w io.StringWriter) {
	if uri.IsEncrypted() {
		w.WriteString("sips:")
	} else {
		w.WriteString("sip:")
	}

	if uri.User != "" {
		w.WriteString(uri.User)
		if uri.Password != "" {
			w.WriteString(":")
			w.WriteString(uri.Password)
		}
		w.WriteString("@")
	}

	w.WriteString(uri.Host)

	if uri.Port > 0 {
		w.WriteString(":")
		w.WriteString(strconv.Itoa(uri.Port))
	}

	if uri.UriParams.Length() > 0 {
		w.WriteString(";")
		w.WriteString(uri.UriParams.ToString(';'))
	}

	if uri.Headers.Length() > 0 {
		w.WriteString("?")
		w.WriteString(uri.Headers.ToString('&'))
	}
}

// Clone returns a shallow copy; UriParams/Headers still alias the source's
// underlying storage, matching how callers already treat Uri as a small
// value type copied by assignment.
func (uri *Uri) Clone() *Uri {
	c := *uri
	return &c
}

func (uri *Uri) IsEncrypted() bool {
	return uri.Encrypted
}

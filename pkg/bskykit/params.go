package bskykit

import (
	"net/url"
	"strings"
)

// QueryParam is a single query item.
type QueryParam struct {
	Key   string
	Value string
}

// QueryParams keeps query items in the order they were added. Repeated keys
// are sent repeatedly, which is how XRPC encodes array parameters.
type QueryParams []QueryParam

// Params builds QueryParams from alternating keys and values. A trailing key
// without a value is sent with an empty value.
func Params(kv ...string) QueryParams {
	params := make(QueryParams, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		p := QueryParam{Key: kv[i]}
		if i+1 < len(kv) {
			p.Value = kv[i+1]
		}
		params = append(params, p)
	}
	return params
}

// Add returns params with key=value appended.
func (p QueryParams) Add(key, value string) QueryParams {
	return append(p, QueryParam{Key: key, Value: value})
}

// Get returns the first value for key.
func (p QueryParams) Get(key string) (string, bool) {
	for _, item := range p {
		if item.Key == key {
			return item.Value, true
		}
	}
	return "", false
}

// Encode renders the params as a raw query string in insertion order.
// Unlike url.Values.Encode it does not sort by key.
func (p QueryParams) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(item.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(item.Value))
	}
	return b.String()
}

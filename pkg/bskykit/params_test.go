package bskykit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	p := Params("limit", "10", "cursor")
	require.Equal(t, QueryParams{{"limit", "10"}, {"cursor", ""}}, p)
	require.Equal(t, "limit=10&cursor=", p.Encode())

	require.Empty(t, Params().Encode())
	require.Empty(t, QueryParams(nil).Encode())
}

func TestQueryParams_AddAndGet(t *testing.T) {
	var p QueryParams
	p = p.Add("actors", "a.test").Add("actors", "b.test").Add("q", "x y")

	v, ok := p.Get("actors")
	require.True(t, ok)
	require.Equal(t, "a.test", v)
	_, ok = p.Get("missing")
	require.False(t, ok)

	require.Equal(t, "actors=a.test&actors=b.test&q=x+y", p.Encode())
}

func TestQueryParams_EncodeEscapesKeys(t *testing.T) {
	p := Params("a&b", "c=d", "ünï", "ok")
	require.Equal(t, "a%26b=c%3Dd&%C3%BCn%C3%AF=ok", p.Encode())
}

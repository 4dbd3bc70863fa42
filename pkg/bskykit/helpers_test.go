package bskykit

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const timelineFixture = `{"feed":[{"post":{"uri":"at://did:plc:test/app.bsky.feed.post/1","record":{"text":"Hello, Bluesky!","createdAt":"2023-06-01T12:00:00Z"}}}],"cursor":"nextCursor123"}`

type recordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// spyTransport records every request and answers with respond.
type spyTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(req *http.Request) (*http.Response, error)
}

func newSpy(respond func(req *http.Request) (*http.Response, error)) *spyTransport {
	return &spyTransport{respond: respond}
}

func (s *spyTransport) Do(req *http.Request) (*http.Response, error) {
	rec := recordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		rec.Body = b
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()
	return s.respond(req)
}

func (s *spyTransport) calls() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func respondWith(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func respondError(err error) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return nil, err
	}
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func testSession(t *testing.T, spy *spyTransport) *AuthSession {
	session, err := NewAuthSession(
		"https://mock.bsky.social/xrpc",
		WithHTTPClient(spy),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)
	return session
}

// testAccessToken signs an access JWT for did, valid until expiry.
func testAccessToken(t *testing.T, did string, expiry time.Time) string {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.ES256,
		Key:       key,
	}, nil)
	require.NoError(t, err)
	token, err := jwt.Signed(signer).
		Claims(jwt.Claims{
			Subject:  did,
			Audience: jwt.Audience{"did:web:mock.bsky.social"},
			Expiry:   jwt.NewNumericDate(expiry),
		}).
		Claims(map[string]interface{}{"scope": "com.atproto.access"}).
		CompactSerialize()
	require.NoError(t, err)
	return token
}

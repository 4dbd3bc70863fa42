package bskykit

import (
	"bytes"
	"context"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"
)

// AuthSession holds the bearer credential for one account and performs
// authenticated requests against its instance.
type AuthSession struct {
	requester

	mu       sync.RWMutex
	token    string
	hasToken bool
}

// NewAuthSession creates an unauthenticated session. An empty instanceURL is
// not an error: it selects DefaultInstanceURL. A non-empty one that is not an
// absolute URL fails with ErrConfiguration.
func NewAuthSession(instanceURL string, opts ...Option) (*AuthSession, error) {
	if instanceURL == "" {
		instanceURL = DefaultInstanceURL
	}
	base, err := newEndpointBase(instanceURL)
	if err != nil {
		return nil, err
	}
	return &AuthSession{
		requester: requester{base: base, opts: buildOptions(opts)},
	}, nil
}

// SetCredential stores token as the bearer credential. The token is not inspected.
func (s *AuthSession) SetCredential(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.hasToken = true
}

// Credential returns the stored token, if any.
func (s *AuthSession) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.hasToken
}

func (s *AuthSession) IsAuthenticated() bool {
	_, ok := s.Credential()
	return ok
}

// Logout drops the credential. Calling it on a logged out session is a no-op.
func (s *AuthSession) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.hasToken = false
}

func (s *AuthSession) InstanceURL() string {
	return s.base.String()
}

// UpdateInstanceURL points the session at a different instance. The current
// base is kept when raw is not an absolute URL.
func (s *AuthSession) UpdateInstanceURL(raw string) error {
	if err := s.base.set(raw); err != nil {
		s.opts.logger.Warn().Err(err).Str("url", raw).Msg("ignoring instance url update")
		return err
	}
	return nil
}

// AuthenticatedGet issues a GET for endpoint with the bearer credential attached
// and decodes the JSON body into out. Without a credential it fails with
// ErrUnauthorized and sends nothing.
func (s *AuthSession) AuthenticatedGet(
	ctx context.Context,
	endpoint string,
	params QueryParams,
	out any,
) error {
	token, ok := s.Credential()
	if !ok {
		return newError(KindUnauthorized, "bearer token is missing", nil)
	}
	return s.do(ctx, request{
		method:   http.MethodGet,
		endpoint: endpoint,
		params:   params,
		token:    token,
		withAuth: true,
	}, out)
}

// AuthenticatedPost is AuthenticatedGet for procedures: body is sent as JSON.
func (s *AuthSession) AuthenticatedPost(
	ctx context.Context,
	endpoint string,
	body any,
	out any,
) error {
	token, ok := s.Credential()
	if !ok {
		return newError(KindUnauthorized, "bearer token is missing", nil)
	}
	return s.do(ctx, request{
		method:   http.MethodPost,
		endpoint: endpoint,
		body:     body,
		token:    token,
		withAuth: true,
	}, out)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges username and password for an access token at the login
// endpoint. On success the token is stored as the credential and returned; on
// any failure the session is left as it was.
func (s *AuthSession) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := s.send(ctx, request{
		method:   http.MethodPost,
		endpoint: s.opts.loginEndpoint,
		body:     loginRequest{Username: username, Password: password},
	})
	if err != nil {
		return "", err
	}
	token, err := parseLoginResponse(resp)
	if err != nil {
		return "", err
	}
	s.SetCredential(token)
	s.opts.logger.Debug().Str("username", username).Msg("logged in")
	return token, nil
}

func parseLoginResponse(resp *response) (string, error) {
	if !isSuccess(resp.status) {
		return "", &Error{
			Kind:       KindInvalidResponse,
			Message:    "login rejected",
			StatusCode: resp.status,
			Err:        checkStatus(resp),
		}
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return "", &Error{Kind: KindEmptyBody, Message: "no data received", StatusCode: resp.status}
	}
	if !gjson.ValidBytes(resp.body) {
		return "", &Error{Kind: KindDecode, Message: "login response is not valid json", StatusCode: resp.status}
	}
	parsed := gjson.ParseBytes(resp.body)
	if !parsed.IsObject() {
		return "", &Error{Kind: KindInvalidResponse, Message: "login response is not an object", StatusCode: resp.status}
	}
	token := parsed.Get("accessToken")
	if token.Type != gjson.String || token.Str == "" {
		return "", &Error{Kind: KindInvalidResponse, Message: "accessToken missing from login response", StatusCode: resp.status}
	}
	return token.Str, nil
}

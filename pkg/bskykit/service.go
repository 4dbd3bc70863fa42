package bskykit

import (
	"context"
	"net/http"
	"sync"
)

// BaseService is the entry point for application code. It performs anonymous
// reads itself and hands authenticated ones to an AuthSession it does not own.
type BaseService struct {
	requester

	mu      sync.RWMutex
	session *AuthSession
}

// NewBaseService creates a service for instanceURL. An empty instanceURL is
// not an error: it selects DefaultInstanceURL. A non-empty one that is not an
// absolute URL fails with ErrConfiguration. session may be nil and set later
// with SetAuthSession.
func NewBaseService(instanceURL string, session *AuthSession, opts ...Option) (*BaseService, error) {
	if instanceURL == "" {
		instanceURL = DefaultInstanceURL
	}
	base, err := newEndpointBase(instanceURL)
	if err != nil {
		return nil, err
	}
	return &BaseService{
		requester: requester{base: base, opts: buildOptions(opts)},
		session:   session,
	}, nil
}

// SetAuthSession replaces the session used for authenticated calls. Passing
// nil detaches the current one.
func (s *BaseService) SetAuthSession(session *AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *BaseService) AuthSession() *AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *BaseService) InstanceURL() string {
	return s.base.String()
}

// UpdateInstanceURL replaces the base URL. An unparseable or relative URL
// leaves the current one in place, is logged, and is returned as ErrInvalidInput.
func (s *BaseService) UpdateInstanceURL(raw string) error {
	if err := s.base.set(raw); err != nil {
		s.opts.logger.Warn().Err(err).Str("url", raw).Msg("ignoring instance url update")
		return err
	}
	return nil
}

func (s *BaseService) authenticatedSession() (*AuthSession, error) {
	session := s.AuthSession()
	if session == nil || !session.IsAuthenticated() {
		return nil, newError(KindUnauthorized, "no valid session", nil)
	}
	return session, nil
}

// AuthenticatedGet delegates to the attached AuthSession. Without a session,
// or with one that is logged out, it fails with ErrUnauthorized.
func (s *BaseService) AuthenticatedGet(
	ctx context.Context,
	endpoint string,
	params QueryParams,
	out any,
) error {
	session, err := s.authenticatedSession()
	if err != nil {
		return err
	}
	return session.AuthenticatedGet(ctx, endpoint, params, out)
}

func (s *BaseService) AuthenticatedPost(
	ctx context.Context,
	endpoint string,
	body any,
	out any,
) error {
	session, err := s.authenticatedSession()
	if err != nil {
		return err
	}
	return session.AuthenticatedPost(ctx, endpoint, body, out)
}

// Get issues an anonymous GET for endpoint and decodes the JSON body into out.
func (s *BaseService) Get(ctx context.Context, endpoint string, params QueryParams, out any) error {
	return s.do(ctx, request{
		method:   http.MethodGet,
		endpoint: endpoint,
		params:   params,
	}, out)
}

// Get is the generic form of BaseService.Get.
func Get[T any](ctx context.Context, s *BaseService, endpoint string, params QueryParams) (T, error) {
	var out T
	if err := s.Get(ctx, endpoint, params, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// AuthenticatedGet is the generic form of BaseService.AuthenticatedGet.
func AuthenticatedGet[T any](
	ctx context.Context,
	s *BaseService,
	endpoint string,
	params QueryParams,
) (T, error) {
	var out T
	if err := s.AuthenticatedGet(ctx, endpoint, params, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

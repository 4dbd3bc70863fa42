package bskykit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/habitat-network/bskykit/util"
)

// endpointBase is the instance URL every endpoint is resolved against.
type endpointBase struct {
	mu  sync.RWMutex
	url *url.URL
}

func parseInstanceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}

func newEndpointBase(raw string) (*endpointBase, error) {
	u, err := parseInstanceURL(raw)
	if err != nil {
		return nil, newError(KindConfiguration, "invalid instance url", err)
	}
	return &endpointBase{url: u}, nil
}

func (b *endpointBase) get() *url.URL {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u := *b.url
	return &u
}

// set replaces the base, or leaves it untouched if raw does not parse.
func (b *endpointBase) set(raw string) error {
	u, err := parseInstanceURL(raw)
	if err != nil {
		return newError(KindInvalidInput, "invalid instance url", err)
	}
	b.mu.Lock()
	b.url = u
	b.mu.Unlock()
	return nil
}

func (b *endpointBase) String() string {
	return b.get().String()
}

// buildURL appends endpoint to base as a path component and attaches params in
// their insertion order.
func buildURL(base *url.URL, endpoint string, params QueryParams) (*url.URL, error) {
	// JoinPath drops elements it cannot unescape without reporting it, so check first.
	unescaped, err := url.PathUnescape(endpoint)
	if err != nil {
		return nil, newError(KindInvalidURL, fmt.Sprintf("invalid endpoint %q", endpoint), err)
	}
	// JoinPath also resolves dot segments, which would step outside base.
	for _, seg := range strings.Split(unescaped, "/") {
		if seg == "." || seg == ".." {
			return nil, newError(KindInvalidURL, fmt.Sprintf("endpoint %q has a dot segment", endpoint), nil)
		}
	}
	u := base.JoinPath(endpoint)
	u.RawQuery = params.Encode()
	u.Fragment = ""
	if _, err := url.Parse(u.String()); err != nil {
		return nil, newError(KindInvalidURL, "endpoint and params do not form a valid url", err)
	}
	return u, nil
}

type request struct {
	method   string
	endpoint string
	params   QueryParams
	// body is JSON encoded when non-nil.
	body any
	// token is sent as a bearer credential when withAuth is set.
	token    string
	withAuth bool
}

type response struct {
	status int
	body   []byte
}

type xrpcErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// requester is the single request path shared by AuthSession and BaseService.
type requester struct {
	base *endpointBase
	opts *options
}

func (r *requester) send(ctx context.Context, req request) (*response, error) {
	u, err := buildURL(r.base.get(), req.endpoint, req.params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, newError(KindInvalidInput, "failed to encode request body", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, newError(KindInvalidURL, "failed to create request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", r.opts.userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.withAuth {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	logger := r.opts.logger.With().
		Str("request_id", uuid.NewString()).
		Str("method", req.method).
		Str("url", u.String()).
		Bool("authenticated", req.withAuth).
		Logger()
	logger.Debug().Msg("sending request")

	resp, err := r.opts.httpClient.Do(httpReq)
	if err != nil {
		logger.Debug().Err(err).Msg("request failed")
		return nil, newError(KindNetwork, "request failed", err)
	}
	defer util.DrainAndClose(resp.Body, func(err error) {
		logger.Warn().Err(err).Msg("failed to close response body")
	})

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			Kind:       KindNetwork,
			Message:    "failed to read response body",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(respBody)).Msg("received response")
	return &response{status: resp.StatusCode, body: respBody}, nil
}

// do sends req and decodes a successful response into out.
func (r *requester) do(ctx context.Context, req request, out any) error {
	resp, err := r.send(ctx, req)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	return decodeBody(resp.body, out)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func checkStatus(resp *response) error {
	if isSuccess(resp.status) {
		return nil
	}
	e := &Error{
		Kind:       KindStatus,
		Message:    http.StatusText(resp.status),
		StatusCode: resp.status,
	}
	if resp.status == http.StatusUnauthorized {
		e.Kind = KindUnauthorized
	}
	var xe xrpcErrorBody
	if err := json.Unmarshal(resp.body, &xe); err == nil && xe.Error != "" {
		e.XRPCError = xe.Error
		e.Message = xe.Error
		if xe.Message != "" {
			e.Message = xe.Error + ": " + xe.Message
		}
	}
	return e
}

func decodeBody(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return newError(KindEmptyBody, "no data received", nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newError(KindDecode, fmt.Sprintf("failed to decode response into %T", out), err)
	}
	return nil
}

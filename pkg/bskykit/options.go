package bskykit

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInstanceURL   = "https://bsky.app/xrpc"
	DefaultLoginEndpoint = "login"
	DefaultUserAgent     = "bskykit/0.1.0"
)

// HttpClient is the transport used for every request. *http.Client satisfies it.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type options struct {
	httpClient    HttpClient
	logger        *zerolog.Logger
	loginEndpoint string
	userAgent     string
}

// Option configures an AuthSession, BaseService or Client.
type Option func(*options)

// WithHTTPClient replaces http.DefaultClient as the transport.
func WithHTTPClient(c HttpClient) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLoginEndpoint changes the path AuthSession.Login posts to.
func WithLoginEndpoint(endpoint string) Option {
	return func(o *options) {
		o.loginEndpoint = endpoint
	}
}

func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		httpClient:    http.DefaultClient,
		logger:        &log.Logger,
		loginEndpoint: DefaultLoginEndpoint,
		userAgent:     DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	if o.logger == nil {
		o.logger = &log.Logger
	}
	return o
}

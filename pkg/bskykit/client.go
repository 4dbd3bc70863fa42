package bskykit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

const (
	EndpointCreateSession = "com.atproto.server.createSession"
	EndpointCreateRecord  = "com.atproto.repo.createRecord"
	EndpointGetTimeline   = "app.bsky.feed.getTimeline"
	EndpointGetProfile    = "app.bsky.actor.getProfile"

	CollectionPost = "app.bsky.feed.post"

	MaxTimelineLimit = 100
)

// Client bundles an AuthSession and a BaseService pointed at the same
// instance and exposes typed Bluesky operations on top of them.
type Client struct {
	session *AuthSession
	service *BaseService

	mu   sync.RWMutex
	info *SessionInfo
}

// NewClient creates a logged out client whose session and service share
// instanceURL and opts. An empty instanceURL selects DefaultInstanceURL.
func NewClient(instanceURL string, opts ...Option) (*Client, error) {
	session, err := NewAuthSession(instanceURL, opts...)
	if err != nil {
		return nil, err
	}
	service, err := NewBaseService(instanceURL, session, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{session: session, service: service}, nil
}

func (c *Client) Session() *AuthSession {
	return c.session
}

func (c *Client) Service() *BaseService {
	return c.service
}

// Info returns the account the client is logged in as.
func (c *Client) Info() (*SessionInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil {
		return nil, false
	}
	info := *c.info
	return &info, true
}

// SetInstanceURL moves both the session and the service to a new instance.
func (c *Client) SetInstanceURL(raw string) error {
	if err := c.service.UpdateInstanceURL(raw); err != nil {
		return err
	}
	return c.session.UpdateInstanceURL(raw)
}

// Login creates a session for identifier (handle, DID or email) with an
// account or app password, and keeps its access token as the credential.
func (c *Client) Login(ctx context.Context, identifier, password string) (*SessionInfo, error) {
	if identifier == "" || password == "" {
		return nil, newError(KindInvalidInput, "identifier and password are required", nil)
	}
	var info SessionInfo
	err := c.service.do(ctx, request{
		method:   http.MethodPost,
		endpoint: EndpointCreateSession,
		body:     createSessionInput{Identifier: identifier, Password: password},
	}, &info)
	if err != nil {
		return nil, err
	}
	if info.AccessJwt == "" {
		return nil, newError(KindInvalidResponse, "accessJwt missing from createSession response", nil)
	}
	c.Resume(&info)
	return &info, nil
}

// Resume restores a session obtained earlier, e.g. from a credential store.
func (c *Client) Resume(info *SessionInfo) {
	stored := *info
	c.mu.Lock()
	c.info = &stored
	c.mu.Unlock()
	c.session.SetCredential(info.AccessJwt)
}

func (c *Client) Logout() {
	c.mu.Lock()
	c.info = nil
	c.mu.Unlock()
	c.session.Logout()
}

type TimelineOptions struct {
	Algorithm string
	// Limit of 0 leaves the page size to the server.
	Limit  int
	Cursor string
}

// GetTimeline fetches one page of the home timeline. Pass the returned
// Cursor back in TimelineOptions to get the next page.
func (c *Client) GetTimeline(ctx context.Context, opts TimelineOptions) (*FeedResponse, error) {
	if opts.Limit < 0 || opts.Limit > MaxTimelineLimit {
		return nil, newError(
			KindInvalidInput,
			fmt.Sprintf("limit must be between 1 and %d", MaxTimelineLimit),
			nil,
		)
	}
	var params QueryParams
	if opts.Algorithm != "" {
		params = params.Add("algorithm", opts.Algorithm)
	}
	if opts.Limit > 0 {
		params = params.Add("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		params = params.Add("cursor", opts.Cursor)
	}
	var feed FeedResponse
	if err := c.service.AuthenticatedGet(ctx, EndpointGetTimeline, params, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// repo returns the DID records are written to: the one createSession returned,
// or else the subject of the access token.
func (c *Client) repo() (string, error) {
	if info, ok := c.Info(); ok && info.Did != "" {
		return info.Did, nil
	}
	claims, err := c.session.Claims()
	if err != nil {
		return "", err
	}
	did, err := syntax.ParseDID(claims.Subject)
	if err != nil {
		return "", newError(KindUnauthorized, "credential does not name an account", err)
	}
	return did.String(), nil
}

// CreatePost publishes a text post and returns a reference to the new record.
func (c *Client) CreatePost(ctx context.Context, text string) (*PostReference, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindInvalidInput, "post text is empty", nil)
	}
	if !c.session.IsAuthenticated() {
		return nil, newError(KindUnauthorized, "no valid session", nil)
	}
	repo, err := c.repo()
	if err != nil {
		return nil, err
	}
	input := createRecordInput{
		Repo:       repo,
		Collection: CollectionPost,
		Record: PostRecord{
			Type:      CollectionPost,
			Text:      text,
			CreatedAt: syntax.DatetimeNow().String(),
		},
	}
	var ref PostReference
	if err := c.service.AuthenticatedPost(ctx, EndpointCreateRecord, input, &ref); err != nil {
		return nil, err
	}
	if _, err := syntax.ParseATURI(ref.URI); err != nil {
		return nil, newError(KindInvalidResponse, "createRecord returned an invalid uri", err)
	}
	return &ref, nil
}

// GetProfile fetches the profile of actor, a handle or DID. The request is
// authenticated when the client is logged in and anonymous otherwise.
func (c *Client) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	atid, err := syntax.ParseAtIdentifier(actor)
	if err != nil {
		return nil, newError(KindInvalidInput, fmt.Sprintf("invalid actor %q", actor), err)
	}
	params := Params("actor", atid.String())
	var profile Profile
	if c.session.IsAuthenticated() {
		err = c.service.AuthenticatedGet(ctx, EndpointGetProfile, params, &profile)
	} else {
		err = c.service.Get(ctx, EndpointGetProfile, params, &profile)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

package activitypub

import (
	"context"
	stdcrypto "crypto"
	"fmt"
	"io"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/go-json-experiment/json"
	"github.com/wren-social/wren/internal/crypto"
	"github.com/wren-social/wren/internal/httpsig"
	"github.com/wren-social/wren/models"
)

const (
	// ContentType is the media type outbound activities are posted as.
	ContentType = "application/activity+json"

	// AcceptContentType is the media type requested when fetching remote
	// ActivityPub resources.
	AcceptContentType = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

	userAgent = "wren (+https://github.com/wren-social/wren)"
)

// Client is an ActivityPub client which can be used to fetch remote
// ActivityPub resources and deliver activities to remote inboxes. All
// requests are signed with the owning account's key.
type Client struct {
	keyID      string
	privateKey stdcrypto.PrivateKey
}

// NewClient returns a client that signs as the given account.
func NewClient(signAs *models.Account) (*Client, error) {
	_, privateKey, err := crypto.ParseRSAPrivateKey(signAs.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		keyID:      signAs.Actor.PublicKeyID(),
		privateKey: privateKey,
	}, nil
}

// Fetch fetches the ActivityPub resource at the given URL and decodes it
// into obj.
func (c *Client) Fetch(ctx context.Context, uri string, obj any) error {
	return requests.URL(uri).
		Accept(AcceptContentType).
		Transport(c).
		CheckContentType(
			"application/ld+json",
			"application/activity+json",
			"application/json",
			"application/octet-stream", // sigh
		).
		CheckStatus(http.StatusOK).
		ToJSON(obj).
		Fetch(ctx)
}

// Get fetches the resource at uri as generic activity JSON.
func (c *Client) Get(ctx context.Context, uri string) (map[string]any, error) {
	var obj map[string]any
	if err := c.Fetch(ctx, uri, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// A Response carries the remote inbox's verdict on a delivery. The
// postman inspects the status code itself rather than treating non-2xx
// as a transport error; 409 in particular means already in the desired
// state.
type Response struct {
	StatusCode int
	Body       []byte
}

// Post delivers the given activity to the inbox at url. A Response is
// returned for every completed HTTP exchange regardless of status code;
// an error indicates the exchange itself failed.
func (c *Client) Post(ctx context.Context, url string, obj map[string]any) (*Response, error) {
	body, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var res Response
	err = requests.URL(url).
		BodyBytes(body).
		Header("Content-Type", ContentType).
		Accept(AcceptContentType).
		Transport(c).
		AddValidator(nil).
		Handle(func(resp *http.Response) error {
			res.StatusCode = resp.StatusCode
			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			res.Body = body
			return err
		}).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RoundTrip signs the outgoing request. The User-Agent is pinned before
// signing; the transport would otherwise substitute its own after the
// signature was computed.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if err := httpsig.Sign(req, c.keyID, c.privateKey); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	return http.DefaultTransport.RoundTrip(req)
}

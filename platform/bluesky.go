package platform

import (
	"context"
	"strings"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/post"
)

const defaultPDSHost = "https://bsky.social"

// BlueskyConfig holds atproto credentials. Password should be an app
// password, not the account password.
type BlueskyConfig struct {
	PDSHost    string
	Identifier string
	Password   string
}

// Bluesky posts to an atproto PDS. The XRPC session is created lazily
// on first use and reused until a call fails authentication.
type Bluesky struct {
	cfg BlueskyConfig

	mu     sync.Mutex
	client *xrpc.Client
}

// NewBluesky creates a Bluesky poster.
func NewBluesky(cfg BlueskyConfig) *Bluesky {
	if cfg.PDSHost == "" {
		cfg.PDSHost = defaultPDSHost
	}
	return &Bluesky{cfg: cfg}
}

func (b *Bluesky) Platform() post.Platform { return post.PlatformBluesky }

// session returns an authenticated XRPC client, creating one on demand.
func (b *Bluesky) session(ctx context.Context) (*xrpc.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	if b.cfg.Identifier == "" || b.cfg.Password == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "bluesky credentials not configured")
	}

	client := &xrpc.Client{Host: b.cfg.PDSHost}

	session, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: b.cfg.Identifier,
		Password:   b.cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create session with PDS %s for %s", b.cfg.PDSHost, b.cfg.Identifier)
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	b.client = client
	return client, nil
}

// Post creates an app.bsky.feed.post record in the account's repo.
func (b *Bluesky) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	client, err := b.session(ctx)
	if err != nil {
		return post.Result{}, err
	}

	record := &appbsky.FeedPost{
		Text:      payload.Text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := comatproto.RepoCreateRecord(ctx, client, &comatproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       client.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: record},
	})
	if err != nil {
		b.invalidate()
		return post.Result{}, errors.Wrap(err, "failed to create post record")
	}

	return post.Result{
		ExternalID: resp.Uri,
		URL:        webPostURL(client.Auth.Handle, resp.Uri),
	}, nil
}

// Delete removes a post record. The external id is the post's AT URI.
func (b *Bluesky) Delete(ctx context.Context, externalID string) error {
	client, err := b.session(ctx)
	if err != nil {
		return err
	}

	collection, rkey, err := parseATURI(externalID)
	if err != nil {
		return err
	}

	_, err = comatproto.RepoDeleteRecord(ctx, client, &comatproto.RepoDeleteRecord_Input{
		Collection: collection,
		Repo:       client.Auth.Did,
		Rkey:       rkey,
	})
	if err != nil {
		b.invalidate()
		return errors.Wrapf(err, "failed to delete record %s", externalID)
	}
	return nil
}

func (b *Bluesky) invalidate() {
	b.mu.Lock()
	b.client = nil
	b.mu.Unlock()
}

// parseATURI splits at://did/collection/rkey.
func parseATURI(uri string) (collection, rkey string, err error) {
	trimmed := strings.TrimPrefix(uri, "at://")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 || trimmed == uri {
		return "", "", errors.NewInvalidRequestError("malformed AT URI %q", uri)
	}
	return parts[1], parts[2], nil
}

// webPostURL converts an AT URI into the bsky.app permalink.
func webPostURL(handle, uri string) string {
	parts := strings.Split(strings.TrimPrefix(uri, "at://"), "/")
	if len(parts) != 3 {
		return ""
	}
	return "https://bsky.app/profile/" + handle + "/post/" + parts[2]
}

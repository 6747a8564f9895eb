// Package post defines the content payload and the poster capability
// the scheduler dispatches through. Platform adapters implement Poster;
// the dispatcher depends only on this interface and forwards payloads
// opaquely.
package post

import (
	"context"

	"github.com/teranos/socialia/errors"
)

// Platform identifies a posting target.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformLinkedIn Platform = "linkedin"
	PlatformReddit   Platform = "reddit"
	PlatformYouTube  Platform = "youtube"
	PlatformSlack    Platform = "slack"
	PlatformBluesky  Platform = "bluesky"
)

// Platforms lists every supported target in display order.
var Platforms = []Platform{
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformReddit,
	PlatformYouTube,
	PlatformSlack,
	PlatformBluesky,
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Payload is the content of one post. Platform adapters read the fields
// they understand and ignore the rest; the scheduler never interprets
// any of them.
type Payload struct {
	Text string `json:"text"`

	// Reddit
	Title     string `json:"title,omitempty"`
	Subreddit string `json:"subreddit,omitempty"`

	// Slack
	Channel  string `json:"channel,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`

	// Twitter / YouTube threading
	ReplyTo string `json:"reply_to,omitempty"`

	// YouTube comment threads
	VideoID string `json:"video_id,omitempty"`

	// Optional media reference (pre-uploaded media id or local path)
	MediaRef string `json:"media_ref,omitempty"`
}

// Validate checks the payload has postable content.
func (p Payload) Validate() error {
	if p.Text == "" {
		return errors.NewInvalidRequestError("payload text is empty")
	}
	return nil
}

// Result is what a successful platform post returns.
type Result struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url,omitempty"`
}

// Poster is the capability the dispatcher invokes to perform a post.
// Implementations are thin pass-throughs to platform APIs; errors are
// returned as-is and recorded on the job by the dispatcher.
type Poster interface {
	// Platform returns the target this poster serves.
	Platform() Platform

	// Post publishes the payload and returns the platform-assigned
	// identifier. The context carries the per-call deadline.
	Post(ctx context.Context, payload Payload) (Result, error)

	// Delete removes a previously created post by its external id.
	Delete(ctx context.Context, externalID string) error
}

// FeedItem is one entry from a platform's recent-posts feed.
type FeedItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	URL       string `json:"url,omitempty"`
}

// FeedReader is the optional read capability: posters that can list the
// account's recent posts implement it alongside Poster. Callers
// discover it with a type assertion.
type FeedReader interface {
	// Feed returns up to limit recent posts, newest first.
	Feed(ctx context.Context, limit int) ([]FeedItem, error)
}

// Registry maps platforms to their posters.
type Registry struct {
	posters map[Platform]Poster
}

// NewRegistry builds a registry from the given posters.
func NewRegistry(posters ...Poster) *Registry {
	r := &Registry{posters: make(map[Platform]Poster, len(posters))}
	for _, p := range posters {
		r.posters[p.Platform()] = p
	}
	return r
}

// Get returns the poster for a platform.
func (r *Registry) Get(platform Platform) (Poster, error) {
	p, ok := r.posters[platform]
	if !ok {
		return nil, errors.NewInvalidRequestError("no poster configured for platform %q", platform)
	}
	return p, nil
}

// Platforms returns the platforms with a configured poster.
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.posters))
	for _, known := range Platforms {
		if _, ok := r.posters[known]; ok {
			out = append(out, known)
		}
	}
	return out
}

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
	"github.com/teranos/socialia/post"
)

const (
	linkedinUGCPostsEndpoint = "https://api.linkedin.com/v2/ugcPosts"
	linkedinSharesEndpoint   = "https://api.linkedin.com/v2/shares"
	linkedinPostURL          = "https://www.linkedin.com/feed/update/%s/"
)

// LinkedInConfig holds LinkedIn API credentials. PersonURN identifies
// the posting member, e.g. "urn:li:person:abc123".
type LinkedInConfig struct {
	AccessToken string
	PersonURN   string
	Visibility  string // PUBLIC, CONNECTIONS, or LOGGED_IN
}

// LinkedIn posts member updates through the UGC Posts API.
type LinkedIn struct {
	cfg LinkedInConfig
	hc  *httpclient.Client

	endpoint       string
	sharesEndpoint string
}

// NewLinkedIn creates a LinkedIn poster.
func NewLinkedIn(cfg LinkedInConfig, hc *httpclient.Client) *LinkedIn {
	if cfg.Visibility == "" {
		cfg.Visibility = "PUBLIC"
	}
	return &LinkedIn{
		cfg:            cfg,
		hc:             hc,
		endpoint:       linkedinUGCPostsEndpoint,
		sharesEndpoint: linkedinSharesEndpoint,
	}
}

func (l *LinkedIn) Platform() post.Platform { return post.PlatformLinkedIn }

func (l *LinkedIn) headers() map[string]string {
	return map[string]string{
		"Authorization":             "Bearer " + l.cfg.AccessToken,
		"X-Restli-Protocol-Version": "2.0.0",
	}
}

// Post publishes a text share on the member's feed. The post id comes
// back in the X-RestLi-Id response header rather than the body, so this
// adapter issues the request directly.
func (l *LinkedIn) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	if l.cfg.AccessToken == "" || l.cfg.PersonURN == "" {
		return post.Result{}, errors.Wrap(errors.ErrUnauthorized, "linkedin access token or person URN not configured")
	}

	body := map[string]interface{}{
		"author":         l.cfg.PersonURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary":    map[string]string{"text": payload.Text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": l.cfg.Visibility,
		},
	}

	req, err := jsonRequest(ctx, http.MethodPost, l.endpoint, l.headers(), body)
	if err != nil {
		return post.Result{}, err
	}

	resp, err := l.hc.Do(req)
	if err != nil {
		return post.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return post.Result{}, apiError("linkedin", resp.StatusCode, readBody(resp))
	}

	postID := resp.Header.Get("X-RestLi-Id")
	return post.Result{
		ExternalID: postID,
		URL:        fmt.Sprintf(linkedinPostURL, postID),
	}, nil
}

// Feed returns the member's recent shares, newest first. Reading
// shares needs the r_organization_social or w_member_social scope; the
// API rejects tokens without it.
func (l *LinkedIn) Feed(ctx context.Context, limit int) ([]post.FeedItem, error) {
	if l.cfg.AccessToken == "" || l.cfg.PersonURN == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "linkedin access token or person URN not configured")
	}

	url := fmt.Sprintf("%s?q=owners&owners=%s&count=%d", l.sharesEndpoint, l.cfg.PersonURN, limit)
	status, respBody, err := doJSON(ctx, l.hc, http.MethodGet, url, l.headers(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("linkedin", status, respBody)
	}

	var resp struct {
		Elements []struct {
			ID   string `json:"id"`
			Text struct {
				Text string `json:"text"`
			} `json:"text"`
			Created struct {
				Time int64 `json:"time"`
			} `json:"created"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "parse shares response")
	}

	items := make([]post.FeedItem, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		item := post.FeedItem{
			ID:   el.ID,
			Text: el.Text.Text,
			URL:  fmt.Sprintf(linkedinPostURL, el.ID),
		}
		if el.Created.Time > 0 {
			item.CreatedAt = time.UnixMilli(el.Created.Time).UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items, nil
}

// Delete removes a UGC post by URN.
func (l *LinkedIn) Delete(ctx context.Context, externalID string) error {
	if l.cfg.AccessToken == "" {
		return errors.Wrap(errors.ErrUnauthorized, "linkedin access token not configured")
	}

	url := l.endpoint + "/" + externalID
	status, respBody, err := doJSON(ctx, l.hc, http.MethodDelete, url, l.headers(), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return apiError("linkedin", status, respBody)
	}
	return nil
}

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
	"github.com/teranos/socialia/post"
)

const (
	twitterPostEndpoint   = "https://api.x.com/2/tweets"
	twitterDeleteEndpoint = "https://api.x.com/2/tweets/%s"
	twitterMeEndpoint     = "https://api.x.com/2/users/me"
	twitterTweetsEndpoint = "https://api.x.com/2/users/%s/tweets"
	twitterStatusURL      = "https://x.com/i/web/status/%s"
)

// TwitterConfig holds X API v2 credentials.
type TwitterConfig struct {
	BearerToken string
}

// Twitter posts tweets through the X API v2.
type Twitter struct {
	cfg TwitterConfig
	hc  *httpclient.Client

	// endpoint overrides for tests
	postEndpoint   string
	deleteEndpoint string
	meEndpoint     string
	tweetsEndpoint string
}

// NewTwitter creates a Twitter poster.
func NewTwitter(cfg TwitterConfig, hc *httpclient.Client) *Twitter {
	return &Twitter{
		cfg:            cfg,
		hc:             hc,
		postEndpoint:   twitterPostEndpoint,
		deleteEndpoint: twitterDeleteEndpoint,
		meEndpoint:     twitterMeEndpoint,
		tweetsEndpoint: twitterTweetsEndpoint,
	}
}

func (t *Twitter) Platform() post.Platform { return post.PlatformTwitter }

func (t *Twitter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + t.cfg.BearerToken}
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

// Post creates a tweet. ReplyTo in the payload links the tweet into an
// existing conversation.
func (t *Twitter) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	if t.cfg.BearerToken == "" {
		return post.Result{}, errors.Wrap(errors.ErrUnauthorized, "twitter bearer token not configured")
	}

	body := tweetRequest{Text: payload.Text}
	if payload.ReplyTo != "" {
		body.Reply = &tweetReply{InReplyToTweetID: payload.ReplyTo}
	}

	status, respBody, err := doJSON(ctx, t.hc, http.MethodPost, t.postEndpoint, t.headers(), body)
	if err != nil {
		return post.Result{}, err
	}
	if status != http.StatusCreated {
		return post.Result{}, apiError("twitter", status, respBody)
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return post.Result{}, errors.Wrap(err, "parse tweet response")
	}

	return post.Result{
		ExternalID: resp.Data.ID,
		URL:        fmt.Sprintf(twitterStatusURL, resp.Data.ID),
	}, nil
}

// Delete removes a tweet by id.
func (t *Twitter) Delete(ctx context.Context, externalID string) error {
	if t.cfg.BearerToken == "" {
		return errors.Wrap(errors.ErrUnauthorized, "twitter bearer token not configured")
	}

	url := fmt.Sprintf(t.deleteEndpoint, externalID)
	status, respBody, err := doJSON(ctx, t.hc, http.MethodDelete, url, t.headers(), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError("twitter", status, respBody)
	}
	return nil
}

// Feed returns the account's recent tweets, newest first.
func (t *Twitter) Feed(ctx context.Context, limit int) ([]post.FeedItem, error) {
	if t.cfg.BearerToken == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "twitter bearer token not configured")
	}

	status, respBody, err := doJSON(ctx, t.hc, http.MethodGet, t.meEndpoint, t.headers(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("twitter", status, respBody)
	}

	var me struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &me); err != nil {
		return nil, errors.Wrap(err, "parse user response")
	}

	// The tweets endpoint only accepts 5-100
	if limit < 5 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}
	url := fmt.Sprintf(t.tweetsEndpoint, me.Data.ID) +
		fmt.Sprintf("?max_results=%d&tweet.fields=created_at,text", limit)

	status, respBody, err = doJSON(ctx, t.hc, http.MethodGet, url, t.headers(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("twitter", status, respBody)
	}

	var resp struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "parse tweets response")
	}

	items := make([]post.FeedItem, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		items = append(items, post.FeedItem{
			ID:        tweet.ID,
			Text:      tweet.Text,
			Author:    me.Data.Username,
			CreatedAt: tweet.CreatedAt,
			URL:       fmt.Sprintf(twitterStatusURL, tweet.ID),
		})
	}
	return items, nil
}

// PostThread posts tweets as a reply chain, stopping at the first
// failure. Already-posted tweet ids are returned alongside the error so
// the caller can report a partial thread.
func (t *Twitter) PostThread(ctx context.Context, texts []string) ([]post.Result, error) {
	var results []post.Result
	replyTo := ""

	for i, text := range texts {
		result, err := t.Post(ctx, post.Payload{Text: text, ReplyTo: replyTo})
		if err != nil {
			return results, errors.Wrapf(err, "failed at tweet %d", i+1)
		}
		results = append(results, result)
		replyTo = result.ExternalID
	}

	return results, nil
}

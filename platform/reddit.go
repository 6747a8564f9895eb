package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
	"github.com/teranos/socialia/post"
)

const (
	redditSubmitEndpoint = "https://oauth.reddit.com/api/submit"
	redditDelEndpoint    = "https://oauth.reddit.com/api/del"
)

// RedditConfig holds Reddit OAuth credentials. AccessToken is a
// script-app token; UserAgent is required by Reddit's API rules.
type RedditConfig struct {
	AccessToken string
	UserAgent   string
	// DefaultSubreddit receives posts whose payload names none.
	DefaultSubreddit string
}

// Reddit submits self posts through the Reddit API.
type Reddit struct {
	cfg RedditConfig
	hc  *httpclient.Client

	submitEndpoint string
	delEndpoint    string
}

// NewReddit creates a Reddit poster.
func NewReddit(cfg RedditConfig, hc *httpclient.Client) *Reddit {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "socialia/1.0"
	}
	return &Reddit{
		cfg:            cfg,
		hc:             hc,
		submitEndpoint: redditSubmitEndpoint,
		delEndpoint:    redditDelEndpoint,
	}
}

func (r *Reddit) Platform() post.Platform { return post.PlatformReddit }

// Post submits a self post. A missing title falls back to the first
// line of the text, truncated to Reddit's 300-char limit.
func (r *Reddit) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	if r.cfg.AccessToken == "" {
		return post.Result{}, errors.Wrap(errors.ErrUnauthorized, "reddit access token not configured")
	}

	subreddit := payload.Subreddit
	if subreddit == "" {
		subreddit = r.cfg.DefaultSubreddit
	}
	if subreddit == "" {
		return post.Result{}, errors.NewInvalidRequestError("reddit post requires a subreddit")
	}

	title := payload.Title
	if title == "" {
		title = strings.SplitN(payload.Text, "\n", 2)[0]
		if len(title) > 300 {
			title = title[:300]
		}
	}

	form := url.Values{
		"sr":       {subreddit},
		"kind":     {"self"},
		"title":    {title},
		"text":     {payload.Text},
		"api_type": {"json"},
	}

	status, respBody, err := r.postForm(ctx, r.submitEndpoint, form)
	if err != nil {
		return post.Result{}, err
	}
	if status != http.StatusOK {
		return post.Result{}, apiError("reddit", status, respBody)
	}

	var resp struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return post.Result{}, errors.Wrap(err, "parse reddit response")
	}
	if len(resp.JSON.Errors) > 0 {
		return post.Result{}, errors.Newf("reddit API error: %v", resp.JSON.Errors[0])
	}

	return post.Result{
		ExternalID: resp.JSON.Data.ID,
		URL:        resp.JSON.Data.URL,
	}, nil
}

// Delete removes a submission. Reddit expects the thing fullname, so a
// bare id gets the t3_ link prefix.
func (r *Reddit) Delete(ctx context.Context, externalID string) error {
	if r.cfg.AccessToken == "" {
		return errors.Wrap(errors.ErrUnauthorized, "reddit access token not configured")
	}

	fullname := externalID
	if !strings.HasPrefix(fullname, "t3_") {
		fullname = "t3_" + fullname
	}

	status, respBody, err := r.postForm(ctx, r.delEndpoint, url.Values{"id": {fullname}})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError("reddit", status, respBody)
	}
	return nil
}

func (r *Reddit) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+r.cfg.AccessToken)
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, readBody(resp), nil
}

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
	"github.com/teranos/socialia/post"
)

const (
	slackPostMessageEndpoint = "https://slack.com/api/chat.postMessage"
	slackDeleteEndpoint      = "https://slack.com/api/chat.delete"
	slackHistoryEndpoint     = "https://slack.com/api/conversations.history"
)

// SlackConfig holds bot credentials and the fallback channel.
type SlackConfig struct {
	BotToken       string
	DefaultChannel string
}

// Slack posts messages through the Slack Web API.
type Slack struct {
	cfg SlackConfig
	hc  *httpclient.Client

	postEndpoint    string
	deleteEndpoint  string
	historyEndpoint string
}

// NewSlack creates a Slack poster.
func NewSlack(cfg SlackConfig, hc *httpclient.Client) *Slack {
	return &Slack{
		cfg:             cfg,
		hc:              hc,
		postEndpoint:    slackPostMessageEndpoint,
		deleteEndpoint:  slackDeleteEndpoint,
		historyEndpoint: slackHistoryEndpoint,
	}
}

func (s *Slack) Platform() post.Platform { return post.PlatformSlack }

func (s *Slack) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.cfg.BotToken}
}

// slackResponse is the Web API envelope. Slack reports failures with
// status 200 and ok=false.
type slackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// Post sends a message. ThreadTS in the payload replies into a thread.
func (s *Slack) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	if s.cfg.BotToken == "" {
		return post.Result{}, errors.Wrap(errors.ErrUnauthorized, "slack bot token not configured")
	}

	channel := payload.Channel
	if channel == "" {
		channel = s.cfg.DefaultChannel
	}
	if channel == "" {
		return post.Result{}, errors.NewInvalidRequestError("slack post requires a channel")
	}

	body := map[string]interface{}{
		"channel": channel,
		"text":    payload.Text,
	}
	if payload.ThreadTS != "" {
		body["thread_ts"] = payload.ThreadTS
	}

	status, respBody, err := doJSON(ctx, s.hc, http.MethodPost, s.postEndpoint, s.headers(), body)
	if err != nil {
		return post.Result{}, err
	}
	if status != http.StatusOK {
		return post.Result{}, apiError("slack", status, respBody)
	}

	var resp slackResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return post.Result{}, errors.Wrap(err, "parse slack response")
	}
	if !resp.OK {
		return post.Result{}, errors.Newf("slack API error: %s", resp.Error)
	}

	return post.Result{
		ExternalID: resp.Channel + ":" + resp.TS,
		URL:        fmt.Sprintf("https://slack.com/archives/%s/p%s", resp.Channel, strings.ReplaceAll(resp.TS, ".", "")),
	}, nil
}

// Feed returns recent messages from the default channel, newest first.
func (s *Slack) Feed(ctx context.Context, limit int) ([]post.FeedItem, error) {
	if s.cfg.BotToken == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "slack bot token not configured")
	}
	channel := s.cfg.DefaultChannel
	if channel == "" {
		return nil, errors.NewInvalidRequestError("slack feed requires a default channel")
	}

	url := fmt.Sprintf("%s?channel=%s&limit=%d", s.historyEndpoint, channel, limit)
	status, respBody, err := doJSON(ctx, s.hc, http.MethodGet, url, s.headers(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("slack", status, respBody)
	}

	var resp struct {
		OK       bool   `json:"ok"`
		Error    string `json:"error"`
		Messages []struct {
			TS   string `json:"ts"`
			Text string `json:"text"`
			User string `json:"user"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "parse slack response")
	}
	if !resp.OK {
		return nil, errors.Newf("slack API error: %s", resp.Error)
	}

	items := make([]post.FeedItem, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		items = append(items, post.FeedItem{
			ID:        channel + ":" + msg.TS,
			Text:      msg.Text,
			Author:    msg.User,
			CreatedAt: msg.TS,
			URL:       fmt.Sprintf("https://slack.com/archives/%s/p%s", channel, strings.ReplaceAll(msg.TS, ".", "")),
		})
	}
	return items, nil
}

// Delete removes a message. The external id carries both channel and
// message timestamp as channel:ts; a bare ts falls back to the default
// channel.
func (s *Slack) Delete(ctx context.Context, externalID string) error {
	if s.cfg.BotToken == "" {
		return errors.Wrap(errors.ErrUnauthorized, "slack bot token not configured")
	}

	channel := s.cfg.DefaultChannel
	ts := externalID
	if i := strings.IndexByte(externalID, ':'); i >= 0 {
		channel = externalID[:i]
		ts = externalID[i+1:]
	}
	if channel == "" {
		return errors.NewInvalidRequestError("slack delete requires a channel")
	}

	body := map[string]string{"channel": channel, "ts": ts}
	status, respBody, err := doJSON(ctx, s.hc, http.MethodPost, s.deleteEndpoint, s.headers(), body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError("slack", status, respBody)
	}

	var resp slackResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return errors.Wrap(err, "parse slack response")
	}
	if !resp.OK {
		return errors.Newf("slack API error: %s", resp.Error)
	}
	return nil
}

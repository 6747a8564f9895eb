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
	youtubeCommentThreadsEndpoint = "https://www.googleapis.com/youtube/v3/commentThreads?part=snippet"
	youtubeCommentsEndpoint       = "https://www.googleapis.com/youtube/v3/comments?id=%s"
	youtubeCommentURL             = "https://www.youtube.com/watch?v=%s&lc=%s"
)

// YouTubeConfig holds Data API credentials.
type YouTubeConfig struct {
	AccessToken string
}

// YouTube posts top-level comments on videos through the Data API v3.
// Video upload is out of reach for a text scheduler; a comment thread
// on an existing video is the one text-shaped write the API offers.
type YouTube struct {
	cfg YouTubeConfig
	hc  *httpclient.Client

	commentThreadsEndpoint string
	commentsEndpoint       string
}

// NewYouTube creates a YouTube poster.
func NewYouTube(cfg YouTubeConfig, hc *httpclient.Client) *YouTube {
	return &YouTube{
		cfg:                    cfg,
		hc:                     hc,
		commentThreadsEndpoint: youtubeCommentThreadsEndpoint,
		commentsEndpoint:       youtubeCommentsEndpoint,
	}
}

func (y *YouTube) Platform() post.Platform { return post.PlatformYouTube }

func (y *YouTube) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + y.cfg.AccessToken}
}

// Post creates a top-level comment on the video named in the payload.
func (y *YouTube) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	if y.cfg.AccessToken == "" {
		return post.Result{}, errors.Wrap(errors.ErrUnauthorized, "youtube access token not configured")
	}
	if payload.VideoID == "" {
		return post.Result{}, errors.NewInvalidRequestError("youtube post requires a video id")
	}

	body := map[string]interface{}{
		"snippet": map[string]interface{}{
			"videoId": payload.VideoID,
			"topLevelComment": map[string]interface{}{
				"snippet": map[string]string{"textOriginal": payload.Text},
			},
		},
	}

	status, respBody, err := doJSON(ctx, y.hc, http.MethodPost, y.commentThreadsEndpoint, y.headers(), body)
	if err != nil {
		return post.Result{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return post.Result{}, apiError("youtube", status, respBody)
	}

	var resp struct {
		ID      string `json:"id"`
		Snippet struct {
			VideoID string `json:"videoId"`
		} `json:"snippet"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return post.Result{}, errors.Wrap(err, "parse youtube response")
	}

	return post.Result{
		ExternalID: resp.ID,
		URL:        fmt.Sprintf(youtubeCommentURL, payload.VideoID, resp.ID),
	}, nil
}

// Delete removes a comment by id.
func (y *YouTube) Delete(ctx context.Context, externalID string) error {
	if y.cfg.AccessToken == "" {
		return errors.Wrap(errors.ErrUnauthorized, "youtube access token not configured")
	}

	url := fmt.Sprintf(y.commentsEndpoint, externalID)
	status, respBody, err := doJSON(ctx, y.hc, http.MethodDelete, url, y.headers(), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return apiError("youtube", status, respBody)
	}
	return nil
}

// Package analytics sends outreach events to Google Analytics 4 via
// the Measurement Protocol. Tracking is best-effort: a failed event
// never fails the operation that produced it.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/internal/httpclient"
)

const collectEndpoint = "https://www.google-analytics.com/mp/collect"

// Config holds GA4 Measurement Protocol credentials.
type Config struct {
	MeasurementID string // G-XXXXXXXXXX
	APISecret     string
}

// Enabled reports whether both credentials are present.
func (c Config) Enabled() bool {
	return c.MeasurementID != "" && c.APISecret != ""
}

// Tracker sends GA4 events. The zero-credential tracker silently drops
// every event so callers never need a nil check.
type Tracker struct {
	cfg      Config
	hc       *httpclient.Client
	clientID string
	log      *zap.SugaredLogger

	endpoint string
}

// NewTracker creates a GA4 tracker. The client id identifies this
// installation across events; a fresh one is generated per process.
func NewTracker(cfg Config, hc *httpclient.Client, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		cfg:      cfg,
		hc:       hc,
		clientID: uuid.NewString(),
		log:      log,
		endpoint: collectEndpoint,
	}
}

type event struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

type collectBody struct {
	ClientID string  `json:"client_id"`
	Events   []event `json:"events"`
}

// TrackEvent sends one named event with the given parameters.
func (t *Tracker) TrackEvent(ctx context.Context, name string, params map[string]string) error {
	if !t.cfg.Enabled() {
		return nil
	}

	if params == nil {
		params = map[string]string{}
	}
	params["engagement_time_msec"] = "100"

	body := collectBody{
		ClientID: t.clientID,
		Events:   []event{{Name: name, Params: params}},
	}

	q := url.Values{
		"measurement_id": {t.cfg.MeasurementID},
		"api_secret":     {t.cfg.APISecret},
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode analytics event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"?"+q.Encode(), bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, "build analytics request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "send analytics event")
	}
	defer resp.Body.Close()

	// Measurement Protocol returns 204 on success
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return errors.Newf("analytics collect returned %d", resp.StatusCode)
	}
	return nil
}

// TrackSocialPost records the outcome of one posting attempt. Failures
// to track are logged and swallowed.
func (t *Tracker) TrackSocialPost(ctx context.Context, platform, postID string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	err := t.TrackEvent(ctx, "social_post", map[string]string{
		"platform": platform,
		"post_id":  postID,
		"status":   status,
	})
	if err != nil {
		t.log.Debugw("Analytics event dropped", "error", err)
	}
}
